package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adrank-triage/internal/model"
	"github.com/sells-group/adrank-triage/internal/store"
)

// historyScanLimit bounds the runs read for one snapshot.
const historyScanLimit = 10000

// MaxLookbackHours is the longest window Collect accepts (ten years). Longer
// windows are clamped to it.
const MaxLookbackHours = 24 * 366 * 10

// HistorySnapshot summarizes run history over a lookback window.
type HistorySnapshot struct {
	Total    int     `json:"total"`
	Complete int     `json:"complete"`
	Failed   int     `json:"failed"`
	Running  int     `json:"running"`
	FailRate float64 `json:"fail_rate"`

	// Findings across completed runs.
	Findings           int                    `json:"findings"`
	FindingsByCategory map[model.Category]int `json:"findings_by_category"`
	FindingsBySeverity map[model.Severity]int `json:"findings_by_severity"`
	// RecurringKeys lists finding keys seen in more than one run, most
	// frequent first.
	RecurringKeys []KeyCount `json:"recurring_keys"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// KeyCount is a finding key and the number of runs it appeared in.
type KeyCount struct {
	Key  string `json:"key"`
	Runs int    `json:"runs"`
}

// Collector gathers run history from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new history collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect summarizes runs created within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HistorySnapshot, error) {
	if lookbackHours > MaxLookbackHours {
		lookbackHours = MaxLookbackHours
	}
	now := time.Now().UTC()
	snap := &HistorySnapshot{
		FindingsByCategory: make(map[model.Category]int),
		FindingsBySeverity: make(map[model.Severity]int),
		RecurringKeys:      []KeyCount{},
		LookbackHours:      lookbackHours,
		CollectedAt:        now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        historyScanLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	keyRuns := make(map[string]int)
	snap.Total = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusRunning:
			snap.Running++
		}
		if r.Triage == nil {
			continue
		}
		seen := make(map[string]bool)
		for _, f := range r.Triage.Findings {
			snap.Findings++
			snap.FindingsByCategory[f.Category]++
			snap.FindingsBySeverity[f.Severity]++
			if !seen[f.Key] {
				seen[f.Key] = true
				keyRuns[f.Key]++
			}
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}

	for key, n := range keyRuns {
		if n > 1 {
			snap.RecurringKeys = append(snap.RecurringKeys, KeyCount{Key: key, Runs: n})
		}
	}
	sort.Slice(snap.RecurringKeys, func(i, j int) bool {
		a, b := snap.RecurringKeys[i], snap.RecurringKeys[j]
		if a.Runs != b.Runs {
			return a.Runs > b.Runs
		}
		return a.Key < b.Key
	})

	return snap, nil
}
