package store

import (
	"github.com/sells-group/adrank-triage/internal/model"
)

func sampleOutcome() (*model.TriageResult, *model.Report) {
	triage := &model.TriageResult{
		GlobalCTR:   model.Float(0.02),
		NumFindings: 1,
		Findings: []model.Finding{{
			Key:              "route_share_overflow:MAIN",
			Category:         model.CategoryRouteShareOverflow,
			Entity:           "MAIN",
			Severity:         model.SeverityMedium,
			Summary:          "MAIN takes 75.00% of impressions.",
			Evidence:         map[string]any{"share": 0.75},
			Hypothesis:       "Traffic concentration.",
			SuggestedActions: []string{"Cap share."},
		}},
	}
	report := &model.Report{
		Summary: "Generated 1 triage findings from aggregate metrics.",
		Hypotheses: []model.Hypothesis{{
			Title:      "MAIN takes 75.00% of impressions.",
			Confidence: model.SeverityMedium,
			Evidence:   map[string]any{"share": 0.75},
			Validation: "Run an A/B test.",
		}},
		Experiments: []model.Experiment{},
		Notes:       []string{"note"},
	}
	return triage, report
}
