package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/catalog"
	"github.com/kebabalogue/kebabctl/internal/model"
	"github.com/kebabalogue/kebabctl/internal/store"
)

var (
	geocodeCSV        string
	geocodeLimit      int
	geocodeNoPrefetch bool
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode the catalogue and grow the coordinate cache",
	Long:  "Loads the catalogue, resolves every listing through the cached fallback chain one at a time, and persists fresh coordinates incrementally so an interrupted run loses little work.",
	RunE:  runGeocode,
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeCSV, "csv", "", "catalogue CSV path or URL (overrides configured sheet URL)")
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "geocode at most this many records (0 = all)")
	geocodeCmd.Flags().BoolVar(&geocodeNoPrefetch, "no-prefetch", false, "disable concurrent map-link prefetching")
	rootCmd.AddCommand(geocodeCmd)
}

func runGeocode(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := geocodeCSV
	if source == "" {
		source = cfg.Catalog.SheetURL
	}

	records, err := catalog.Load(ctx, source, cfg.Catalog)
	if err != nil {
		return eris.Wrap(err, "load catalogue")
	}
	if geocodeLimit > 0 && len(records) > geocodeLimit {
		records = records[:geocodeLimit]
	}
	zap.L().Info("catalogue loaded", zap.Int("records", len(records)))

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "open store")
	}
	defer st.Close() //nolint:errcheck

	resolver, err := newResolver(cfg.Geocode, st)
	if err != nil {
		return err
	}

	if !geocodeNoPrefetch {
		uncached := make([]model.ListingRecord, 0, len(records))
		for _, rec := range records {
			cached, getErr := st.Get(ctx, rec.Key())
			if getErr == nil && cached != nil {
				continue
			}
			uncached = append(uncached, rec)
		}
		resolver.PrefetchLinks(ctx, uncached, cfg.Geocode.LinkConcurrency)
	}

	started := time.Now().UTC()
	for _, rec := range records {
		if _, err := resolver.Resolve(ctx, rec); err != nil {
			// Only cancellation surfaces here. Flush what we have and stop.
			zap.L().Warn("run interrupted", zap.Error(err))
			break
		}
	}

	if err := st.Flush(ctx); err != nil {
		zap.L().Warn("final flush failed", zap.Error(err))
	}

	stats := resolver.Stats()
	run := store.RunSummary{
		ID:         uuid.New().String(),
		Attempted:  stats.Attempted,
		CacheHits:  stats.CacheHits,
		Resolved:   stats.Resolved,
		Unresolved: stats.Unresolved,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	// Record against the parent context so an interrupted run still lands
	// in the history.
	if err := st.RecordRun(cmd.Context(), run); err != nil {
		zap.L().Warn("record run failed", zap.Error(err))
	}

	fmt.Printf("attempted %d, cache hits %d, freshly resolved %d, unresolved %d\n",
		stats.Attempted, stats.CacheHits, stats.Resolved, stats.Unresolved)
	return nil
}
