package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adrank-triage/internal/model"
)

func TestWatchChecker_RecordsRuns(t *testing.T) {
	c := setTestConfig(t)
	useSQLite(t, c)
	c.Alert.CheckIntervalSecs = 3600
	writeMetrics(t, c.Input.MetricsPath, scenarioJSON)

	env, err := initEnv(context.Background(), "watch", nil)
	require.NoError(t, err)
	defer env.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newWatchChecker(env, c.Input.MetricsPath).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		runs, err := env.Store.ListRuns(context.Background(), storeFilterAll())
		return err == nil && len(runs) == 1 && runs[0].Status == model.RunStatusComplete
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("checker did not stop")
	}

	runs, err := env.Store.ListRuns(context.Background(), storeFilterAll())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].NumFindings)
	assert.Equal(t, c.Input.MetricsPath, runs[0].Source)
}
