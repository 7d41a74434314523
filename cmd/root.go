package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "adrank-triage",
	Short: "Rule-based triage for ad-ranking metrics",
	Long:  "Reads an aggregated ad-ranking metrics document, flags route, surface and calibration anomalies, and writes a debug report with hypotheses and experiments.",
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
