package model

// Severity grades a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity validates a severity name.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	return sev, sev.Rank() > 0
}

// Category identifies the triage rule family that produced a finding.
type Category string

const (
	CategoryRouteEffHigh       Category = "route_eff_high"
	CategoryRouteEffLow        Category = "route_eff_low"
	CategoryRouteShareOverflow Category = "route_share_overflow"
	CategorySurfaceCTRGap      Category = "surface_ctr_gap"
	CategoryCalibrationDrift   Category = "calibration_drift"
)

// Finding is a single detected anomaly.
type Finding struct {
	Key              string         `json:"key"`
	Category         Category       `json:"category"`
	Entity           string         `json:"entity,omitempty"`
	Severity         Severity       `json:"severity"`
	Summary          string         `json:"summary"`
	Evidence         map[string]any `json:"evidence"`
	Hypothesis       string         `json:"hypothesis"`
	SuggestedActions []string       `json:"suggested_actions"`
}

// FindingKey builds the stable key: the category alone, or category:entity.
func FindingKey(c Category, entity string) string {
	if entity == "" {
		return string(c)
	}
	return string(c) + ":" + entity
}

// TriageResult is the ordered output of one triage run.
type TriageResult struct {
	GlobalCTR   *float64  `json:"global_ctr"`
	NumFindings int       `json:"num_findings"`
	Findings    []Finding `json:"findings"`
}

// HasCategory reports whether any finding belongs to c.
func (r *TriageResult) HasCategory(c Category) bool {
	for _, f := range r.Findings {
		if f.Category == c {
			return true
		}
	}
	return false
}

// CountBySeverity tallies findings per severity.
func (r *TriageResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
