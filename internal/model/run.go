package model

import "time"

// RunStatus represents the state of a triage run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted record of one triage + report pass.
type Run struct {
	ID          string        `json:"id"`
	Source      string        `json:"source"`
	Status      RunStatus     `json:"status"`
	NumFindings int           `json:"num_findings"`
	Triage      *TriageResult `json:"triage,omitempty"`
	Report      *Report       `json:"report,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
