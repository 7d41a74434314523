// Package triage turns aggregate serving metrics into severity-tagged findings.
package triage

import "github.com/sells-group/adrank-triage/internal/model"

// Triage runs every rule over snap and returns the findings in rule order.
// It performs no I/O and keeps no state between calls.
func Triage(snap *model.MetricsSnapshot) model.TriageResult {
	return Run(snap, Rules())
}

// Run evaluates the given rules in order. Missing sections or fields make the
// affected rule emit nothing; they never fail the run.
func Run(snap *model.MetricsSnapshot, rules []Rule) model.TriageResult {
	findings := []model.Finding{}
	if snap == nil {
		return model.TriageResult{Findings: findings}
	}
	for _, r := range rules {
		findings = append(findings, r.Evaluate(snap)...)
	}
	return model.TriageResult{
		GlobalCTR:   snap.GlobalCTR,
		NumFindings: len(findings),
		Findings:    findings,
	}
}
