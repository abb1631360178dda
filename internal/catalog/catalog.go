// Package catalog ingests the published shop catalogue CSV into typed
// listing records.
package catalog

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// Column headers of the published sheet. Any other columns are ignored.
const (
	colName     = "Shop Name"
	colSuburb   = "Suburb"
	colPostcode = "Postcode"
	colMapLink  = "Google"
	colRating   = "Ox Rating"
)

// The sheet carries a trailing disclaimer row that is not a listing.
const disclaimerMarker = "THE KEBABALOGUE WILL NOT BE UPDATED"

// ParseCSV reads the catalogue CSV (first row is the header) and returns
// listing records in sheet order. Rows without a shop name and the
// disclaimer row are dropped.
func ParseCSV(r io.Reader) ([]model.ListingRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow ragged rows

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("catalog: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read header")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	if _, ok := idx[colName]; !ok {
		return nil, eris.Errorf("catalog: missing %q column", colName)
	}

	field := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []model.ListingRecord
	var skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "catalog: read row")
		}

		name := field(row, colName)
		if name == "" || strings.Contains(name, disclaimerMarker) {
			skipped++
			continue
		}

		records = append(records, model.ListingRecord{
			Name:        name,
			Suburb:      field(row, colSuburb),
			Postcode:    field(row, colPostcode),
			MapLink:     field(row, colMapLink),
			Rating:      field(row, colRating),
			SourceOrder: len(records),
		})
	}

	zap.L().Debug("catalog: parsed csv",
		zap.Int("records", len(records)),
		zap.Int("skipped", skipped),
	)
	return records, nil
}
