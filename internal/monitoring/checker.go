package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/config"
)

// CheckFunc runs one triage pass. Watch mode passes a closure that reloads
// the metrics document and runs the pipeline.
type CheckFunc func(ctx context.Context) error

// Checker runs periodic checks until its context is cancelled.
type Checker struct {
	check     CheckFunc
	collector *Collector
	alerter   *Alerter
	cfg       config.AlertConfig
}

// NewChecker creates a periodic checker. collector may be nil when no run
// history is kept.
func NewChecker(check CheckFunc, collector *Collector, alerter *Alerter, cfg config.AlertConfig) *Checker {
	return &Checker{
		check:     check,
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once immediately, then on every interval. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.tick(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("checker stopped")
			return
		case <-ticker.C:
			c.tick(ctx, log)
		}
	}
}

func (c *Checker) tick(ctx context.Context, log *zap.Logger) {
	if err := c.check(ctx); err != nil {
		log.Error("monitoring: check failed", zap.Error(err))
	}

	if c.collector == nil || c.alerter == nil {
		return
	}
	hist, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect run history", zap.Error(err))
		return
	}

	alerts := c.alerter.EvaluateHistory(hist)
	if len(alerts) == 0 {
		log.Debug("monitoring: run history healthy",
			zap.Int("runs", hist.Total),
			zap.Float64("fail_rate", hist.FailRate),
		)
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: history check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
