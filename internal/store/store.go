// Package store persists triage run history.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adrank-triage/internal/model"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = eris.New("store: run not found")

// defaultListLimit caps ListRuns when the filter sets no limit.
const defaultListLimit = 100

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`

	// CreatedAfter keeps runs created at or after this instant when set.
	CreatedAfter time.Time `json:"created_after,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for triage runs.
type Store interface {
	// CreateRun records a new run in the running state.
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	// CompleteRun stores the triage result and report and marks the run complete.
	CompleteRun(ctx context.Context, runID string, triage *model.TriageResult, report *model.Report) error
	// FailRun marks the run failed with the given message.
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
