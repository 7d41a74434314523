package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/adrank-triage/internal/config"
	"github.com/sells-group/adrank-triage/internal/pipeline"
)

var (
	runInput  string
	runOutDir string
	runSave   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage one metrics document and write the debug report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runInput != "" {
			cfg.Input.MetricsPath = runInput
		}
		if runOutDir != "" {
			cfg.Output.Dir = runOutDir
		}
		if runSave && (cfg.Store.Driver == "" || cfg.Store.Driver == "none") {
			cfg.Store.Driver = "sqlite"
		}

		env, err := initEnv(ctx, "run", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = runOnce(ctx, env, cfg.Input.MetricsPath, cfg.Output, os.Stdout)
		return err
	},
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "metrics document path or URL (default from config)")
	runCmd.Flags().StringVar(&runOutDir, "out-dir", "", "directory for report artifacts (default from config)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "record the run in history (sqlite when no store is configured)")
	rootCmd.AddCommand(runCmd)
}

// runOnce loads source, runs the pipeline, writes both artifacts and prints
// a one-line confirmation to w.
func runOnce(ctx context.Context, env *appEnv, source string, out config.OutputConfig, w io.Writer) (*pipeline.Result, error) {
	res, err := env.Pipeline.RunSource(ctx, env.Loader, source)
	if err != nil {
		return nil, err
	}

	arts, err := pipeline.WriteArtifacts(out, res.Report)
	if err != nil {
		return nil, err
	}

	_, _ = fmt.Fprintf(w, "Wrote %s and %s\n", arts.JSONPath, arts.MarkdownPath)
	return res, nil
}
