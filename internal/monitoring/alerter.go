// Package monitoring turns triage findings and run history into webhook
// alerts and drives periodic re-triage in watch mode.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/adrank-triage/internal/config"
	"github.com/sells-group/adrank-triage/internal/model"
	"github.com/sells-group/adrank-triage/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFinding        AlertType = "triage_finding"
	AlertRunFailureRate AlertType = "run_failure_rate"
)

const (
	minFinishedForRate    = 5
	defaultWebhookTimeout = 10 * time.Second
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Source    string         `json:"source,omitempty"`
	Key       string         `json:"key,omitempty"`
	Category  model.Category `json:"category,omitempty"`
	Severity  model.Severity `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter selects findings at or above the configured severity and posts
// them to a webhook.
type Alerter struct {
	cfg         config.AlertConfig
	minSeverity model.Severity
	client      *http.Client
	limiter     *rate.Limiter
	retry       resilience.Policy
}

// NewAlerter creates a new Alerter. An unknown min_severity falls back to high.
func NewAlerter(cfg config.AlertConfig) *Alerter {
	minSev, ok := model.ParseSeverity(cfg.MinSeverity)
	if !ok {
		minSev = model.SeverityHigh
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	return &Alerter{
		cfg:         cfg,
		minSeverity: minSev,
		client:      &http.Client{Timeout: defaultWebhookTimeout},
		limiter:     rate.NewLimiter(rate.Limit(perSec), 1),
		retry:       resilience.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
	}
}

// Enabled reports whether a webhook is configured.
func (a *Alerter) Enabled() bool {
	return a.cfg.WebhookURL != ""
}

// Evaluate returns one alert per finding at or above the minimum severity,
// in finding order.
func (a *Alerter) Evaluate(res model.TriageResult) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, f := range res.Findings {
		if !f.Severity.AtLeast(a.minSeverity) {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertFinding,
			Key:       f.Key,
			Category:  f.Category,
			Severity:  f.Severity,
			Message:   f.Summary,
			Details:   f.Evidence,
			Timestamp: now,
		})
	}
	return alerts
}

// EvaluateHistory alerts when the failed share of finished runs in the
// window exceeds the configured threshold. Windows with fewer than five
// finished runs never alert.
func (a *Alerter) EvaluateHistory(h *HistorySnapshot) []Alert {
	finished := h.Complete + h.Failed
	if finished < minFinishedForRate || h.FailRate <= a.cfg.FailureRateThreshold {
		return nil
	}
	return []Alert{{
		Type:     AlertRunFailureRate,
		Severity: model.SeverityHigh,
		Message: fmt.Sprintf(
			"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
			h.FailRate*100, a.cfg.FailureRateThreshold*100,
			h.Failed, finished, h.LookbackHours,
		),
		Details: map[string]any{
			"failure_rate": h.FailRate,
			"threshold":    a.cfg.FailureRateThreshold,
			"failed":       h.Failed,
			"finished":     finished,
		},
		Timestamp: time.Now().UTC(),
	}}
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if !a.Enabled() || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.limiter.Wait(ctx); err != nil {
			zap.L().Warn("monitoring: alert delivery interrupted", zap.Error(err))
			break
		}

		policy := a.retry
		policy.OnRetry = resilience.LogRetry("monitoring", "webhook")
		if err := resilience.Do(ctx, policy, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		}); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("key", alert.Key),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("key", alert.Key),
			zap.String("severity", string(alert.Severity)),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	return resilience.CheckStatus(resp.StatusCode, a.cfg.WebhookURL)
}
