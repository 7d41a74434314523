package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adrank-triage/internal/config"
	"github.com/sells-group/adrank-triage/internal/model"
)

func TestWriteArtifacts(t *testing.T) {
	res, err := New().Run(context.Background(), "m.json", testSnapshot())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out", "nested")
	a, err := WriteArtifacts(config.OutputConfig{Dir: dir, JSONName: "r.json", MarkdownName: "r.md"}, res.Report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "r.json"), a.JSONPath)

	data, err := os.ReadFile(a.JSONPath)
	require.NoError(t, err)
	var decoded model.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.Report.Summary, decoded.Summary)
	assert.Len(t, decoded.Hypotheses, 3)

	md, err := os.ReadFile(a.MarkdownPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Debug Report"))
}

func TestWriteArtifacts_DefaultNames(t *testing.T) {
	dir := t.TempDir()
	a, err := WriteArtifacts(config.OutputConfig{Dir: dir}, &model.Report{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "debug_report.json"), a.JSONPath)
	assert.Equal(t, filepath.Join(dir, "debug_report.md"), a.MarkdownPath)
}

func TestWriteArtifacts_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug_report.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	_, err := WriteArtifacts(config.OutputConfig{Dir: dir}, &model.Report{Summary: "fresh"})
	require.NoError(t, err)
	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), "fresh")
}

func TestWriteArtifacts_NilReport(t *testing.T) {
	_, err := WriteArtifacts(config.OutputConfig{Dir: t.TempDir()}, nil)
	assert.Error(t, err)
}
