package model

// Hypothesis is a report-level restatement of a finding.
type Hypothesis struct {
	Title      string         `json:"title" yaml:"title"`
	Confidence Severity       `json:"confidence" yaml:"confidence"`
	Evidence   map[string]any `json:"evidence" yaml:"evidence"`
	Validation string         `json:"validation" yaml:"validation"`
}

// Experiment is a proposed A/B test. One per matched rule category.
type Experiment struct {
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description" yaml:"description"`
	SuccessMetrics []string `json:"success_metrics" yaml:"success_metrics"`
	Guardrails     []string `json:"guardrails" yaml:"guardrails"`
}

// Report is the synthesized debug report.
type Report struct {
	Summary     string       `json:"summary" yaml:"summary"`
	Hypotheses  []Hypothesis `json:"hypotheses" yaml:"hypotheses"`
	Experiments []Experiment `json:"experiments" yaml:"experiments"`
	Notes       []string     `json:"notes" yaml:"notes"`
}
