package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kebabalogue/kebabctl/internal/store"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache size and recent run history",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 10, "show at most this many recent runs")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return eris.Wrap(err, "open store")
	}
	defer st.Close() //nolint:errcheck

	count, err := st.Count(ctx)
	if err != nil {
		return eris.Wrap(err, "count cache entries")
	}
	fmt.Printf("cached coordinates: %d\n", count)

	runs, err := st.ListRuns(ctx, statusRuns)
	if err != nil {
		return eris.Wrap(err, "list runs")
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tATTEMPTED\tCACHE HITS\tRESOLVED\tUNRESOLVED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Attempted, r.CacheHits, r.Resolved, r.Unresolved,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
		)
	}
	return w.Flush()
}
