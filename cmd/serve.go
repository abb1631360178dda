package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/catalog"
	"github.com/kebabalogue/kebabctl/internal/config"
	"github.com/kebabalogue/kebabctl/internal/model"
	"github.com/kebabalogue/kebabctl/internal/ranker"
	"github.com/kebabalogue/kebabctl/internal/store"
)

var serveCSV string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalogue and rankings over a JSON API",
	Long:  "Loads the catalogue once, joins it with the cached coordinates, and serves listing and ranking endpoints. Rankings are computed per request and never persisted.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveCSV, "csv", "", "catalogue CSV path or URL (overrides configured sheet URL)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds the read-only state behind the HTTP handlers.
type apiServer struct {
	listings []model.GeocodedListing
	rankCfg  config.RankConfig
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := serveCSV
	if source == "" {
		source = cfg.Catalog.SheetURL
	}
	records, err := catalog.Load(ctx, source, cfg.Catalog)
	if err != nil {
		return eris.Wrap(err, "load catalogue")
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "open store")
	}
	defer st.Close() //nolint:errcheck

	geocoded, err := loadGeocoded(ctx, st, records)
	if err != nil {
		return err
	}

	api := &apiServer{listings: geocoded, rankCfg: cfg.Rank}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("api listening", zap.Int("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return eris.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutdown")
	}
	zap.L().Info("api stopped")
	return nil
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", a.handleHealth)
	r.Get("/api/listings", a.handleListings)
	r.Get("/api/rank", a.handleRank)
	return r
}

func (a *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiServer) handleListings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.listings)
}

func (a *apiServer) handleRank(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon query parameters are required"})
		return
	}
	user := model.Coordinate{Lat: lat, Lon: lon}
	if !user.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat/lon out of range"})
		return
	}

	rcfg := a.rankCfg
	if v := r.URL.Query().Get("radius"); v != "" {
		if radius, err := strconv.ParseFloat(v, 64); err == nil && radius > 0 {
			rcfg.RadiusKm = radius
		}
	}
	if v := r.URL.Query().Get("top"); v != "" {
		if top, err := strconv.Atoi(v); err == nil && top > 0 {
			rcfg.TopN = top
		}
	}

	// No on-demand geocoding from request handlers; the provider's rate
	// budget belongs to batch runs.
	ranked := ranker.New(rcfg).Rank(r.Context(), a.listings, user)
	if ranked == nil {
		ranked = []model.ScoredListing{}
	}
	writeJSON(w, http.StatusOK, ranked)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}
