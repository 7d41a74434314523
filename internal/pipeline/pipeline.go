// Package pipeline runs one triage pass end to end: triage, report
// synthesis, run history and alerting.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adrank-triage/internal/model"
	"github.com/sells-group/adrank-triage/internal/monitoring"
	"github.com/sells-group/adrank-triage/internal/report"
	"github.com/sells-group/adrank-triage/internal/store"
	"github.com/sells-group/adrank-triage/internal/triage"
)

// SnapshotLoader reads a metrics document. *metrics.Loader satisfies it.
type SnapshotLoader interface {
	Load(ctx context.Context, source string) (*model.MetricsSnapshot, error)
}

// Result is the output of one pass.
type Result struct {
	RunID      string             `json:"run_id,omitempty"`
	Source     string             `json:"source"`
	Triage     model.TriageResult `json:"triage"`
	Report     *model.Report      `json:"report"`
	AlertsSent int                `json:"alerts_sent"`
}

// Pipeline wires triage and report synthesis to optional run history,
// alerting and metrics. Every dependency may be nil.
type Pipeline struct {
	store   store.Store
	alerter *monitoring.Alerter
	metrics *Metrics
	rules   []triage.Rule
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore records each pass in run history.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) { p.store = st }
}

// WithAlerter sends findings above the alert threshold to a webhook.
func WithAlerter(a *monitoring.Alerter) Option {
	return func(p *Pipeline) { p.alerter = a }
}

// WithMetrics records pass counts and latency.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRules replaces the default rule set.
func WithRules(rules []triage.Rule) Option {
	return func(p *Pipeline) { p.rules = rules }
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{rules: triage.Rules()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run triages an already loaded snapshot and synthesizes its report.
func (p *Pipeline) Run(ctx context.Context, source string, snap *model.MetricsSnapshot) (*Result, error) {
	run, err := p.createRun(ctx, source)
	if err != nil {
		return nil, err
	}
	return p.execute(ctx, run, source, snap)
}

// RunSource loads the document at source and runs it. A load failure is
// recorded as a failed run when history is kept.
func (p *Pipeline) RunSource(ctx context.Context, loader SnapshotLoader, source string) (*Result, error) {
	run, err := p.createRun(ctx, source)
	if err != nil {
		return nil, err
	}

	snap, err := loader.Load(ctx, source)
	if err != nil {
		p.fail(ctx, run, err)
		p.metrics.observeRun(runStatusFailed, 0)
		return nil, eris.Wrapf(err, "pipeline: load %s", source)
	}
	return p.execute(ctx, run, source, snap)
}

func (p *Pipeline) createRun(ctx context.Context, source string) (*model.Run, error) {
	if p.store == nil {
		return nil, nil
	}
	run, err := p.store.CreateRun(ctx, source)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run, source string, snap *model.MetricsSnapshot) (*Result, error) {
	log := zap.L().With(zap.String("source", source))
	start := time.Now()

	res := &Result{Source: source}
	if run != nil {
		res.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	res.Triage = triage.Run(snap, p.rules)
	res.Report = report.Build(res.Triage)

	log.Info("pipeline: triage complete",
		zap.Int("findings", res.Triage.NumFindings),
		zap.Int("hypotheses", len(res.Report.Hypotheses)),
		zap.Int("experiments", len(res.Report.Experiments)),
	)

	if run != nil {
		if err := p.store.CompleteRun(ctx, run.ID, &res.Triage, res.Report); err != nil {
			p.fail(ctx, run, err)
			p.metrics.observeRun(runStatusFailed, time.Since(start))
			return nil, eris.Wrapf(err, "pipeline: complete run %s", run.ID)
		}
	}

	if p.alerter != nil && p.alerter.Enabled() {
		alerts := p.alerter.Evaluate(res.Triage)
		for i := range alerts {
			alerts[i].RunID = res.RunID
			alerts[i].Source = source
		}
		res.AlertsSent = p.alerter.SendAlerts(ctx, alerts)
		if res.AlertsSent < len(alerts) {
			log.Warn("pipeline: some alerts were not delivered",
				zap.Int("alerts", len(alerts)),
				zap.Int("sent", res.AlertsSent),
			)
		}
	}

	p.metrics.observeRun(runStatusComplete, time.Since(start))
	p.metrics.observeFindings(res.Triage.Findings)
	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, run *model.Run, cause error) {
	if run == nil {
		return
	}
	if err := p.store.FailRun(ctx, run.ID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: failed to record run failure",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}
