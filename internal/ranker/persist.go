package ranker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/kebabalogue/kebabctl/internal/model"
)

// WriteFile writes ranked listings to path, picking the format from the
// extension (.json, .yaml/.yml, .xlsx).
func WriteFile(path string, listings []model.ScoredListing) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return writeJSON(path, listings)
	case ".yaml", ".yml":
		return writeYAML(path, listings)
	case ".xlsx":
		return writeXLSX(path, listings)
	default:
		return eris.Errorf("ranker: unsupported output format %q", filepath.Ext(path))
	}
}

func writeJSON(path string, listings []model.ScoredListing) error {
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return eris.Wrap(err, "ranker: marshal json")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "ranker: write %s", path)
}

func writeYAML(path string, listings []model.ScoredListing) error {
	data, err := yaml.Marshal(listings)
	if err != nil {
		return eris.Wrap(err, "ranker: marshal yaml")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "ranker: write %s", path)
}

func writeXLSX(path string, listings []model.ScoredListing) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Rankings")
	if err != nil {
		return eris.Wrap(err, "ranker: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Badge", "Name", "Suburb", "Postcode", "Rating", "Distance (km)", "Score"} {
		header.AddCell().Value = h
	}

	for _, l := range listings {
		row := sheet.AddRow()
		badge := ""
		if l.Badge > 0 {
			badge = fmt.Sprintf("%d", l.Badge)
		}
		row.AddCell().Value = badge
		row.AddCell().Value = l.Name
		row.AddCell().Value = l.Suburb
		row.AddCell().Value = l.Postcode
		row.AddCell().Value = l.Rating
		row.AddCell().Value = fmt.Sprintf("%.1f", l.DistanceKm)
		row.AddCell().Value = fmt.Sprintf("%.1f", l.Score)
	}

	return eris.Wrapf(file.Save(path), "ranker: write %s", path)
}
