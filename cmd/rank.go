package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kebabalogue/kebabctl/internal/catalog"
	"github.com/kebabalogue/kebabctl/internal/model"
	"github.com/kebabalogue/kebabctl/internal/ranker"
	"github.com/kebabalogue/kebabctl/internal/store"
)

var (
	rankLat    float64
	rankLon    float64
	rankRadius float64
	rankTop    int
	rankCSV    string
	rankOutput string
	rankWiden  bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank cached listings near a location",
	Long:  "Scores every geocoded listing within the radius by rating and distance, prints the ranking, and optionally writes it to a file (.json, .yaml, .xlsx).",
	RunE:  runRank,
}

func init() {
	rankCmd.Flags().Float64Var(&rankLat, "lat", 0, "user latitude")
	rankCmd.Flags().Float64Var(&rankLon, "lon", 0, "user longitude")
	rankCmd.Flags().Float64Var(&rankRadius, "radius", 0, "search radius in km (overrides config)")
	rankCmd.Flags().IntVar(&rankTop, "top", 0, "badge the top N results (overrides config)")
	rankCmd.Flags().StringVar(&rankCSV, "csv", "", "catalogue CSV path or URL (overrides configured sheet URL)")
	rankCmd.Flags().StringVar(&rankOutput, "output", "", "write results to file (.json, .yaml, .xlsx)")
	rankCmd.Flags().BoolVar(&rankWiden, "widen", false, "geocode a few high-rating unresolved listings when results are sparse")
	_ = rankCmd.MarkFlagRequired("lat")
	_ = rankCmd.MarkFlagRequired("lon")
	rootCmd.AddCommand(rankCmd)
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user := model.Coordinate{Lat: rankLat, Lon: rankLon}
	if !user.Valid() {
		return eris.Errorf("invalid location %.4f,%.4f", rankLat, rankLon)
	}

	source := rankCSV
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

	rcfg := cfg.Rank
	if rankRadius > 0 {
		rcfg.RadiusKm = rankRadius
	}
	if rankTop > 0 {
		rcfg.TopN = rankTop
	}

	var opts []ranker.Option
	if rankWiden {
		resolver, rErr := newResolver(cfg.Geocode, st)
		if rErr != nil {
			return rErr
		}
		opts = append(opts, ranker.WithResolver(resolver))
	}

	ranked := ranker.New(rcfg, opts...).Rank(ctx, geocoded, user)

	if rankWiden {
		if err := st.Flush(ctx); err != nil {
			return eris.Wrap(err, "flush store")
		}
	}

	printRanking(ranked)

	if rankOutput != "" {
		if err := ranker.WriteFile(rankOutput, ranked); err != nil {
			return eris.Wrap(err, "write output")
		}
		fmt.Printf("wrote %d results to %s\n", len(ranked), rankOutput)
	}
	return nil
}

func printRanking(ranked []model.ScoredListing) {
	if len(ranked) == 0 {
		fmt.Println("no listings within radius")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BADGE\tNAME\tSUBURB\tRATING\tKM\tSCORE")
	for _, l := range ranked {
		badge := ""
		if l.Badge > 0 {
			badge = fmt.Sprintf("#%d", l.Badge)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%.1f\n",
			badge, l.Name, l.Suburb, l.Rating, l.DistanceKm, l.Score)
	}
	_ = w.Flush()
}
