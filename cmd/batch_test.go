package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adrank-triage/internal/config"
)

func TestProcessBatch_AllSucceed(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	err := processBatch(context.Background(), []string{"a", "b", "c"}, 2, func(_ context.Context, _ int, input string) error {
		mu.Lock()
		seen = append(seen, input)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestProcessBatch_FailuresDoNotStopOthers(t *testing.T) {
	var calls atomic.Int32
	err := processBatch(context.Background(), []string{"ok1", "bad", "ok2"}, 1, func(_ context.Context, _ int, input string) error {
		calls.Add(1)
		if input == "bad" {
			return errors.New("boom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 inputs failed")
	assert.Equal(t, int32(3), calls.Load())
}

func TestProcessBatch_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	inputs := []string{"1", "2", "3", "4", "5", "6"}

	err := processBatch(context.Background(), inputs, 2, func(context.Context, int, string) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := processBatch(ctx, []string{"a", "b"}, 1, func(context.Context, int, string) error {
		calls.Add(1)
		return nil
	})
	require.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestBatchOutputs(t *testing.T) {
	out := config.OutputConfig{Dir: "reports", JSONName: "r.json"}
	inputs := []string{
		"data/day1.json",
		"day2.yaml",
		"https://metrics.example.com/daily/day3.json?v=2",
	}

	got := batchOutputs(out, inputs)
	require.Len(t, got, 3)
	assert.Equal(t, filepath.Join("reports", "day1"), got[0].Dir)
	assert.Equal(t, filepath.Join("reports", "day2"), got[1].Dir)
	assert.Equal(t, filepath.Join("reports", "day3"), got[2].Dir)
	for _, o := range got {
		assert.Equal(t, "r.json", o.JSONName)
	}

	assert.Equal(t, filepath.Join(".", "x"), batchOutputs(config.OutputConfig{}, []string{"x.json"})[0].Dir)
}

func TestBatchOutputs_SameStemGetsDistinctDirs(t *testing.T) {
	out := config.OutputConfig{Dir: "reports"}
	inputs := []string{"day1/metrics.json", "day2/metrics.json", "metrics-2.yaml", "day3/metrics.yaml"}

	got := batchOutputs(out, inputs)
	dirs := make([]string, len(got))
	for i, o := range got {
		dirs[i] = o.Dir
	}
	assert.Equal(t, []string{
		filepath.Join("reports", "metrics"),
		filepath.Join("reports", "metrics-2"),
		filepath.Join("reports", "metrics-2-2"),
		filepath.Join("reports", "metrics-3"),
	}, dirs)
}

func TestBatch_EndToEnd(t *testing.T) {
	c := setTestConfig(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	dup := filepath.Join(dir, "nested", "a.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(dup), 0o755))
	writeMetrics(t, a, scenarioJSON)
	writeMetrics(t, b, `{"global_ctr": 0.02}`)
	writeMetrics(t, dup, `{"global_ctr": 0.02}`)

	env, err := initEnv(context.Background(), "batch", nil)
	require.NoError(t, err)
	defer env.Close()

	inputs := []string{a, b, dup}
	outputs := batchOutputs(c.Output, inputs)

	var buf bytes.Buffer
	var mu sync.Mutex
	w := lockedWriter{w: &buf, mu: &mu}
	err = processBatch(context.Background(), inputs, 3, func(ctx context.Context, i int, input string) error {
		_, err := runOnce(ctx, env, input, outputs[i], w)
		return err
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(c.Output.Dir, "a", "debug_report.json"))
	assert.FileExists(t, filepath.Join(c.Output.Dir, "b", "debug_report.md"))
	assert.FileExists(t, filepath.Join(c.Output.Dir, "a-2", "debug_report.json"))

	first, err := os.ReadFile(filepath.Join(c.Output.Dir, "a", "debug_report.json"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(c.Output.Dir, "a-2", "debug_report.json"))
	require.NoError(t, err)
	assert.NotEqual(t, string(first), string(second))
	assert.Contains(t, buf.String(), "Wrote ")
}
