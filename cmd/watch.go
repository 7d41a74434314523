package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/monitoring"
)

var (
	watchInput    string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-triage a metrics document on an interval and alert on findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if watchInput != "" {
			cfg.Input.MetricsPath = watchInput
		}
		if watchInterval > 0 {
			cfg.Alert.CheckIntervalSecs = int(watchInterval.Round(time.Second) / time.Second)
		}

		env, err := initEnv(ctx, "watch", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		if !env.Alerter.Enabled() {
			zap.L().Warn("watch: alert.webhook_url is not set, findings will only be logged")
		}

		newWatchChecker(env, cfg.Input.MetricsPath).Run(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchInput, "input", "", "metrics document path or URL (default from config)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "time between checks (default alert.check_interval_secs)")
	rootCmd.AddCommand(watchCmd)
}

// newWatchChecker builds a checker that reloads source and runs the
// pipeline on every tick. Run history alerts are enabled when a store is
// configured.
func newWatchChecker(env *appEnv, source string) *monitoring.Checker {
	check := func(ctx context.Context) error {
		res, err := env.Pipeline.RunSource(ctx, env.Loader, source)
		if err != nil {
			return err
		}
		zap.L().Info("watch: check complete",
			zap.String("source", source),
			zap.String("run_id", res.RunID),
			zap.Int("findings", res.Triage.NumFindings),
			zap.Int("alerts_sent", res.AlertsSent),
		)
		return nil
	}

	var collector *monitoring.Collector
	if env.Store != nil {
		collector = monitoring.NewCollector(env.Store)
	}
	return monitoring.NewChecker(check, collector, env.Alerter, cfg.Alert)
}
