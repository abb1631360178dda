package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kebabalogue/kebabctl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kebabctl",
	Short: "Kebab shop directory pipeline",
	Long:  "Geocodes the published kebab shop catalogue through a cached, rate-limited fallback chain and ranks shops near a location by a combined distance/rating score.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
