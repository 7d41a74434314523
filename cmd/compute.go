package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/metrics"
)

var (
	computeDataset string
	computeRows    int
	computeSeed    uint64
	computeOutput  string
	computeSheet   string
	computeNoSim   bool
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Build a metrics document from an impression log",
	Long:  "Aggregates a CSV or XLSX impression log into global CTR, per-route and per-surface stats and calibration drift, and writes the result as a metrics document.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if computeDataset != "" {
			cfg.Dataset.Path = computeDataset
		}
		if cmd.Flags().Changed("rows") {
			cfg.Dataset.MaxRows = computeRows
		}
		if cmd.Flags().Changed("seed") {
			cfg.Dataset.Seed = computeSeed
		}
		if computeNoSim {
			cfg.Dataset.Simulate = false
		}
		if err := cfg.Validate("compute"); err != nil {
			return err
		}
		if cfg.Dataset.Path == "" {
			return eris.New("compute: --dataset is required")
		}

		out := computeOutput
		if out == "" {
			out = cfg.Input.MetricsPath
		}

		data, err := computeDocument(cmd.Context(), cfg.Dataset.Path, metrics.DatasetOptions{
			MaxRows:   cfg.Dataset.MaxRows,
			Seed:      cfg.Dataset.Seed,
			Simulate:  cfg.Dataset.Simulate,
			SheetName: computeSheet,
		})
		if err != nil {
			return err
		}

		if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec
			return eris.Wrapf(err, "compute: write %s", out)
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeDataset, "dataset", "", "impression log (.csv or .xlsx)")
	computeCmd.Flags().IntVar(&computeRows, "rows", 0, "max rows to read (default from config)")
	computeCmd.Flags().Uint64Var(&computeSeed, "seed", 0, "seed for simulated columns (default from config)")
	computeCmd.Flags().StringVar(&computeOutput, "output", "", "output metrics document (default input.metrics_path)")
	computeCmd.Flags().StringVar(&computeSheet, "sheet", "", "XLSX worksheet name (default first sheet)")
	computeCmd.Flags().BoolVar(&computeNoSim, "no-simulate", false, "fail instead of simulating missing route/surface/pred columns")
	rootCmd.AddCommand(computeCmd)
}

// computeDocument reads the impression log at path and returns the encoded
// metrics document.
func computeDocument(ctx context.Context, path string, opts metrics.DatasetOptions) ([]byte, error) {
	rows, err := metrics.ReadImpressions(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	snap, err := metrics.Compute(rows)
	if err != nil {
		return nil, err
	}

	zap.L().Info("computed metrics",
		zap.String("dataset", path),
		zap.Int("rows", len(rows)),
		zap.Int("routes", len(snap.Routes)),
		zap.Int("surfaces", len(snap.Surfaces)),
	)
	return metrics.Encode(snap)
}
