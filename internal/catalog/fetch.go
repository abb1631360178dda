package catalog

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/config"
	"github.com/kebabalogue/kebabctl/internal/model"
)

// Load reads the catalogue from an http(s) URL (the sheet's CSV export) or
// a local file path.
func Load(ctx context.Context, source string, cfg config.CatalogConfig) ([]model.ListingRecord, error) {
	if source == "" {
		return nil, eris.New("catalog: no source configured")
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchHTTP(ctx, source, cfg)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", source)
	}
	defer f.Close() //nolint:errcheck

	return ParseCSV(f)
}

func fetchHTTP(ctx context.Context, url string, cfg config.CatalogConfig) ([]model.ListingRecord, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: build request")
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: fetch csv")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("catalog: fetch returned status %d", resp.StatusCode)
	}

	zap.L().Debug("catalog: fetched csv", zap.String("url", url))
	return ParseCSV(resp.Body)
}
