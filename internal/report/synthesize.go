// Package report synthesizes triage findings into a debug report and renders
// it as JSON, YAML, or Markdown.
package report

import (
	"fmt"

	"github.com/sells-group/adrank-triage/internal/model"
)

// MaxHypotheses caps how many findings become hypotheses.
const MaxHypotheses = 5

const validationText = "Run targeted A/B as suggested; confirm effect on route share, CTR, and value composition."

var advisoryNotes = []string{
	"System is noisy and landscape changes frequently; prefer short ramp, strong guardrails, and holdout-based validation.",
	"Aggregate metrics can hide segment-level regressions; slice by surface×route×user cohorts where possible.",
	"Beware of novelty effects and auction dynamics when adjusting route share/privilege.",
}

// Build assembles a report from a triage result. It is pure: the same input
// always yields the same report.
func Build(res model.TriageResult) *model.Report {
	return &model.Report{
		Summary:     summary(res.NumFindings),
		Hypotheses:  hypotheses(res.Findings),
		Experiments: experiments(res),
		Notes:       append([]string(nil), advisoryNotes...),
	}
}

func summary(n int) string {
	return fmt.Sprintf("Generated %d triage findings from aggregate metrics. "+
		"This report prioritizes route bias, surface imbalance, and calibration signals.", n)
}

func hypotheses(findings []model.Finding) []model.Hypothesis {
	if len(findings) > MaxHypotheses {
		findings = findings[:MaxHypotheses]
	}
	out := make([]model.Hypothesis, 0, len(findings))
	for _, f := range findings {
		out = append(out, model.Hypothesis{
			Title:      f.Summary,
			Confidence: f.Severity,
			Evidence:   f.Evidence,
			Validation: validationText,
		})
	}
	return out
}

// experiments returns at most one experiment per matched category, falling
// back to the baseline experiment when nothing matched.
func experiments(res model.TriageResult) []model.Experiment {
	var out []model.Experiment
	for _, rule := range experimentRules {
		if res.HasCategory(rule.category) {
			out = append(out, rule.build())
		}
	}
	if len(out) == 0 {
		out = append(out, baselineExperiment())
	}
	return out
}
