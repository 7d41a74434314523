package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleJSON = `{
  "global_ctr": 0.1,
  "route_stats": {
    "SUP2": {"ctr": 0.11, "share": 0.2, "efficiency": 1.1},
    "MAIN": {"ctr": 0.1, "share": 0.5, "efficiency": 1.0},
    "SUP1": {"ctr": 0.125, "share": 0.2}
  },
  "surface_stats": {
    "S3": {"ctr": 0.08, "impressions": 200, "share": 0.2},
    "S1": {"ctr": 0.1, "impressions": 400, "share": 0.4}
  },
  "calibration_drift": 0.002
}`

func TestMetricsSnapshot_UnmarshalJSON_PreservesOrder(t *testing.T) {
	var snap MetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &snap))

	require.Len(t, snap.Routes, 3)
	assert.Equal(t, "SUP2", snap.Routes[0].Route)
	assert.Equal(t, "MAIN", snap.Routes[1].Route)
	assert.Equal(t, "SUP1", snap.Routes[2].Route)
	assert.Nil(t, snap.Routes[2].Efficiency)
	assert.InDelta(t, 0.125, *snap.Routes[2].CTR, 1e-9)

	require.Len(t, snap.Surfaces, 2)
	assert.Equal(t, "S3", snap.Surfaces[0].Surface)
	assert.InDelta(t, 200, *snap.Surfaces[0].Impressions, 1e-9)

	require.NotNil(t, snap.GlobalCTR)
	assert.InDelta(t, 0.1, *snap.GlobalCTR, 1e-9)
	require.NotNil(t, snap.CalibrationDrift)
}

func TestMetricsSnapshot_UnmarshalYAML_PreservesOrder(t *testing.T) {
	doc := `
global_ctr: 0.1
route_stats:
  SUP3: {ctr: 0.07, efficiency: 0.7}
  MAIN: {ctr: 0.1, efficiency: 1.0}
surface_stats:
  S2: {ctr: 0.12}
`
	var snap MetricsSnapshot
	require.NoError(t, yaml.Unmarshal([]byte(doc), &snap))

	require.Len(t, snap.Routes, 2)
	assert.Equal(t, "SUP3", snap.Routes[0].Route)
	assert.Equal(t, "MAIN", snap.Routes[1].Route)
	assert.InDelta(t, 0.7, *snap.Routes[0].Efficiency, 1e-9)
	require.Len(t, snap.Surfaces, 1)
	assert.Equal(t, "S2", snap.Surfaces[0].Surface)
	assert.Nil(t, snap.CalibrationDrift)
}

func TestMetricsSnapshot_DuplicateRoute(t *testing.T) {
	doc := `{"global_ctr": 0.1, "route_stats": {"MAIN": {}, "MAIN": {}}}`
	var snap MetricsSnapshot
	err := json.Unmarshal([]byte(doc), &snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate route_stats entry "MAIN"`)
}

func TestMetricsSnapshot_RouteStatsNotObject(t *testing.T) {
	doc := `{"global_ctr": 0.1, "route_stats": [1, 2]}`
	var snap MetricsSnapshot
	err := json.Unmarshal([]byte(doc), &snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route_stats must be an object")
}

func TestMetricsSnapshot_NullStats(t *testing.T) {
	doc := `{"global_ctr": 0.1, "route_stats": null, "surface_stats": {}}`
	var snap MetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(doc), &snap))
	assert.Empty(t, snap.Routes)
	assert.Empty(t, snap.Surfaces)
}

func TestMetricsSnapshot_MarshalRoundTripKeepsOrder(t *testing.T) {
	var snap MetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(sampleJSON), &snap))

	out, err := json.Marshal(snap)
	require.NoError(t, err)

	s := string(out)
	assert.Less(t, indexOf(s, `"SUP2"`), indexOf(s, `"MAIN"`))
	assert.Less(t, indexOf(s, `"MAIN"`), indexOf(s, `"SUP1"`))
	assert.Contains(t, s, `"SUP1":{"ctr":0.125,"share":0.2}`)
}

func TestMetricsSnapshot_Route(t *testing.T) {
	snap := MetricsSnapshot{Routes: RouteStats{{Route: "MAIN", Share: Float(0.5)}}}

	r, ok := snap.Route("MAIN")
	require.True(t, ok)
	assert.InDelta(t, 0.5, *r.Share, 1e-9)

	_, ok = snap.Route("SUP9")
	assert.False(t, ok)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
