package triage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adrank-triage/internal/model"
)

var f = model.Float

func keys(res model.TriageResult) []string {
	out := make([]string, len(res.Findings))
	for i, fd := range res.Findings {
		out[i] = fd.Key
	}
	return out
}

func findByKey(t *testing.T, res model.TriageResult, key string) model.Finding {
	t.Helper()
	for _, fd := range res.Findings {
		if fd.Key == key {
			return fd
		}
	}
	t.Fatalf("finding %q not found in %v", key, keys(res))
	return model.Finding{}
}

func TestTriage_ScenarioA_StrongOverflowingRoute(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.10),
		Routes: model.RouteStats{
			{Route: "SUP1", CTR: f(0.125), Efficiency: f(1.25), Share: f(0.75)},
		},
	}

	res := Triage(snap)

	assert.Equal(t, []string{"route_eff_high:SUP1", "route_share_overflow:SUP1"}, keys(res))
	assert.Equal(t, 2, res.NumFindings)

	high := findByKey(t, res, "route_eff_high:SUP1")
	assert.Equal(t, model.SeverityMedium, high.Severity)
	assert.Equal(t, model.CategoryRouteEffHigh, high.Category)
	assert.Equal(t, "SUP1", high.Entity)
	assert.Equal(t, "SUP1 route efficiency is high (eff=1.250) relative to global CTR.", high.Summary)
	assert.Equal(t, "SUP1", high.Evidence["route"])
	assert.InDelta(t, 1.25, high.Evidence["efficiency"], 1e-9)
	assert.InDelta(t, 0.10, high.Evidence["global_ctr"], 1e-9)
	assert.Len(t, high.SuggestedActions, 3)

	overflow := findByKey(t, res, "route_share_overflow:SUP1")
	assert.Equal(t, model.SeverityHigh, overflow.Severity)
	assert.Equal(t, "SUP1 takes an unusually large share of traffic (share=75.00%).", overflow.Summary)
	assert.Len(t, overflow.SuggestedActions, 2)
}

func TestTriage_ScenarioB_CalibrationDrift(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR:        f(0.10),
		CalibrationDrift: f(0.045),
	}

	res := Triage(snap)

	require.Equal(t, []string{"calibration_drift"}, keys(res))
	fd := res.Findings[0]
	assert.Equal(t, model.SeverityHigh, fd.Severity)
	assert.Equal(t, "", fd.Entity)
	assert.Equal(t, "Predicted CTR shows drift vs observed (mean pred_ctr - ctr = +0.0450).", fd.Summary)
	assert.InDelta(t, 0.045, fd.Evidence["calibration_drift"], 1e-9)
}

func TestTriage_ScenarioC_Healthy(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.10),
		Routes: model.RouteStats{
			{Route: "MAIN", Efficiency: f(1.0), Share: f(0.5)},
			{Route: "SUP1", Efficiency: f(1.05), Share: f(0.2)},
			{Route: "SUP2", Efficiency: f(0.95), Share: f(0.2)},
			{Route: "SUP3", Efficiency: f(0.98), Share: f(0.1)},
		},
		Surfaces: model.SurfaceStats{
			{Surface: "S1", CTR: f(0.105)},
			{Surface: "S2", CTR: f(0.09)},
			{Surface: "S3", CTR: f(0.11)},
		},
		CalibrationDrift: f(0.002),
	}

	res := Triage(snap)

	assert.Equal(t, 0, res.NumFindings)
	assert.NotNil(t, res.Findings)
	assert.Empty(t, res.Findings)
}

func TestRouteEfficiency_Bands(t *testing.T) {
	tests := []struct {
		name string
		eff  float64
		want []string
		sev  model.Severity
	}{
		{"high boundary", 1.15, []string{"route_eff_high:R"}, model.SeverityMedium},
		{"high below severe", 1.2999, []string{"route_eff_high:R"}, model.SeverityMedium},
		{"high severe boundary", 1.30, []string{"route_eff_high:R"}, model.SeverityHigh},
		{"just under high", 1.1499, nil, ""},
		{"neutral", 1.0, nil, ""},
		{"just over low", 0.9001, nil, ""},
		{"low boundary", 0.90, []string{"route_eff_low:R"}, model.SeverityMedium},
		{"low above severe", 0.8001, []string{"route_eff_low:R"}, model.SeverityMedium},
		{"low severe boundary", 0.80, []string{"route_eff_low:R"}, model.SeverityHigh},
		{"very low", 0.2, []string{"route_eff_low:R"}, model.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &model.MetricsSnapshot{
				GlobalCTR: f(0.1),
				Routes:    model.RouteStats{{Route: "R", Efficiency: f(tt.eff)}},
			}
			got := routeEfficiency(snap)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want[0], got[0].Key)
			assert.Equal(t, tt.sev, got[0].Severity)
		})
	}
}

func TestRouteShare_Boundary(t *testing.T) {
	tests := []struct {
		name  string
		share float64
		want  bool
	}{
		{"at threshold", 0.70, true},
		{"just under", 0.6999, false},
		{"well over", 0.95, true},
		{"half", 0.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &model.MetricsSnapshot{Routes: model.RouteStats{{Route: "R", Share: f(tt.share)}}}
			got := routeShare(snap)
			if !tt.want {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "route_share_overflow:R", got[0].Key)
			assert.Equal(t, model.SeverityHigh, got[0].Severity)
		})
	}
}

func TestCalibration_Bands(t *testing.T) {
	tests := []struct {
		name  string
		drift float64
		sev   model.Severity
	}{
		{"zero", 0, ""},
		{"just under threshold", 0.0099, ""},
		{"just under negative threshold", -0.0099, ""},
		{"threshold", 0.01, model.SeverityMedium},
		{"negative threshold", -0.01, model.SeverityMedium},
		{"just under severe", 0.0299, model.SeverityMedium},
		{"just under negative severe", -0.0299, model.SeverityMedium},
		{"severe", 0.03, model.SeverityHigh},
		{"negative severe", -0.03, model.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calibration(&model.MetricsSnapshot{CalibrationDrift: f(tt.drift)})
			if tt.sev == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "calibration_drift", got[0].Key)
			assert.Equal(t, tt.sev, got[0].Severity)
		})
	}
}

// Each case zeroes one side of ctr - global_ctr so the subtraction is exact
// and the delta equals the threshold literal bit for bit.
func TestSurfaceGap_Bands(t *testing.T) {
	tests := []struct {
		name   string
		global float64
		ctr    float64
		sev    model.Severity
	}{
		{"just under threshold", 0, 0.0199, ""},
		{"threshold above global", 0, 0.02, model.SeverityMedium},
		{"threshold below global", 0.02, 0, model.SeverityMedium},
		{"just under severe", 0, 0.0499, model.SeverityMedium},
		{"severe above global", 0, 0.05, model.SeverityHigh},
		{"severe below global", 0.05, 0, model.SeverityHigh},
		{"just under severe below global", 0.0499, 0, model.SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &model.MetricsSnapshot{
				GlobalCTR: f(tt.global),
				Surfaces:  model.SurfaceStats{{Surface: "S1", CTR: f(tt.ctr)}},
			}
			got := surfaceGap(snap)
			if tt.sev == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "surface_ctr_gap:S1", got[0].Key)
			assert.Equal(t, tt.sev, got[0].Severity)
		})
	}
}

func TestRouteEfficiency_NeutralBandNeverFlags(t *testing.T) {
	for eff := 0.9005; eff < 1.15; eff += 0.0025 {
		snap := &model.MetricsSnapshot{Routes: model.RouteStats{{Route: "R", Efficiency: f(eff)}}}
		assert.Empty(t, routeEfficiency(snap), "eff=%f", eff)
	}
}

func TestTriage_EmissionOrder(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.5),
		Routes: model.RouteStats{
			{Route: "MAIN", Efficiency: f(0.7), Share: f(0.8)},
			{Route: "SUP1", Efficiency: f(1.4), Share: f(0.1)},
			{Route: "SUP2", Efficiency: f(0.85), Share: f(0.1)},
		},
		Surfaces: model.SurfaceStats{
			{Surface: "S1", CTR: f(0.25)},
		},
		CalibrationDrift: f(-0.02),
	}

	res := Triage(snap)

	assert.Equal(t, []string{
		"route_eff_low:MAIN",
		"route_eff_high:SUP1",
		"route_eff_low:SUP2",
		"route_share_overflow:MAIN",
		"surface_ctr_gap:S1",
		"calibration_drift",
	}, keys(res))
	assert.Equal(t, 6, res.NumFindings)

	cal := findByKey(t, res, "calibration_drift")
	assert.Equal(t, model.SeverityMedium, cal.Severity)
	assert.Contains(t, cal.Summary, "-0.0200")
}

func TestSurfaceGap_TopTwoOnly(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.5),
		Surfaces: model.SurfaceStats{
			{Surface: "S1", CTR: f(0.375)},  // -0.125
			{Surface: "S2", CTR: f(0.75)},   // +0.25
			{Surface: "S3", CTR: f(0.5625)}, // +0.0625
			{Surface: "S4", CTR: f(0.4375)}, // -0.0625
		},
	}

	got := surfaceGap(snap)

	require.Len(t, got, 2)
	assert.Equal(t, "surface_ctr_gap:S2", got[0].Key)
	assert.Equal(t, "surface_ctr_gap:S1", got[1].Key)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
	assert.Equal(t, "S2 CTR differs from global by +0.250 (possible cross-surface shift).", got[0].Summary)
	assert.Equal(t, "S1 CTR differs from global by -0.125 (possible cross-surface shift).", got[1].Summary)
	assert.InDelta(t, 0.25, got[0].Evidence["delta_ctr_vs_global"], 1e-9)
	assert.InDelta(t, 0.5, got[0].Evidence["global_ctr"], 1e-9)
}

func TestSurfaceGap_TiesKeepDocumentOrder(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.5),
		Surfaces: model.SurfaceStats{
			{Surface: "S3", CTR: f(0.25)},
			{Surface: "S1", CTR: f(0.75)},
			{Surface: "S2", CTR: f(0.25)},
		},
	}

	got := surfaceGap(snap)

	require.Len(t, got, 2)
	assert.Equal(t, "surface_ctr_gap:S3", got[0].Key)
	assert.Equal(t, "surface_ctr_gap:S1", got[1].Key)
}

func TestSurfaceGap_ThresholdAppliesAfterTopK(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.5),
		Surfaces: model.SurfaceStats{
			{Surface: "S1", CTR: f(0.53125)}, // +0.03125 medium
			{Surface: "S2", CTR: f(0.5)},     // 0, in top two but below threshold
			{Surface: "S3", CTR: f(0.5)},
		},
	}

	got := surfaceGap(snap)

	require.Len(t, got, 1)
	assert.Equal(t, "surface_ctr_gap:S1", got[0].Key)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
}

func TestSurfaceGap_NeverMoreThanTwo(t *testing.T) {
	var surfaces model.SurfaceStats
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		surfaces = append(surfaces, model.SurfaceStat{Surface: id, CTR: f(0.9)})
	}
	snap := &model.MetricsSnapshot{GlobalCTR: f(0.1), Surfaces: surfaces}

	assert.Len(t, surfaceGap(snap), 2)
}

func TestSurfaceGap_MissingGlobalCTR(t *testing.T) {
	snap := &model.MetricsSnapshot{
		Surfaces: model.SurfaceStats{{Surface: "S1", CTR: f(0.9)}},
	}
	assert.Empty(t, surfaceGap(snap))
}

func TestTriage_MissingFieldsSkipSubChecks(t *testing.T) {
	snap := &model.MetricsSnapshot{
		Routes: model.RouteStats{
			{Route: "NOEFF", Share: f(0.9)},
			{Route: "NOSHARE", Efficiency: f(2.0)},
		},
		Surfaces: model.SurfaceStats{
			{Surface: "NOCTR"},
		},
	}

	res := Triage(snap)

	assert.Equal(t, []string{"route_eff_high:NOSHARE", "route_share_overflow:NOEFF"}, keys(res))
	assert.Nil(t, res.GlobalCTR)
	hi := findByKey(t, res, "route_eff_high:NOSHARE")
	assert.Nil(t, hi.Evidence["global_ctr"])
}

func TestTriage_EmptySections(t *testing.T) {
	res := Triage(&model.MetricsSnapshot{GlobalCTR: f(0.1)})
	assert.Equal(t, 0, res.NumFindings)

	res = Triage(nil)
	assert.Equal(t, 0, res.NumFindings)
	assert.NotNil(t, res.Findings)
}

func TestTriage_NoRouteFindingsWithoutRoutes(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR:        f(0.5),
		Surfaces:         model.SurfaceStats{{Surface: "S1", CTR: f(0.75)}},
		CalibrationDrift: f(0.02),
	}

	res := Triage(snap)

	for _, fd := range res.Findings {
		assert.NotContains(t, []model.Category{
			model.CategoryRouteEffHigh, model.CategoryRouteEffLow, model.CategoryRouteShareOverflow,
		}, fd.Category)
	}
	assert.Equal(t, 2, res.NumFindings)
}

func TestTriage_Deterministic(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR: f(0.5),
		Routes: model.RouteStats{
			{Route: "MAIN", Efficiency: f(0.7), Share: f(0.8), CTR: f(0.35)},
			{Route: "SUP1", Efficiency: f(1.4), Share: f(0.2), CTR: f(0.7)},
		},
		Surfaces: model.SurfaceStats{
			{Surface: "S1", CTR: f(0.25)},
			{Surface: "S2", CTR: f(0.75)},
		},
		CalibrationDrift: f(0.04),
	}

	a, err := json.Marshal(Triage(snap))
	require.NoError(t, err)
	b, err := json.Marshal(Triage(snap))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_CustomRuleSubset(t *testing.T) {
	snap := &model.MetricsSnapshot{
		GlobalCTR:        f(0.1),
		Routes:           model.RouteStats{{Route: "MAIN", Share: f(0.9), Efficiency: f(0.5)}},
		CalibrationDrift: f(0.05),
	}

	var only []Rule
	for _, r := range Rules() {
		if r.Name == "route_share" {
			only = append(only, r)
		}
	}

	res := Run(snap, only)
	assert.Equal(t, []string{"route_share_overflow:MAIN"}, keys(res))
}

func TestRules_CategoriesCovered(t *testing.T) {
	seen := make(map[model.Category]bool)
	for _, r := range Rules() {
		assert.NotEmpty(t, r.Name)
		require.NotNil(t, r.Evaluate)
		for _, c := range r.Categories {
			seen[c] = true
		}
	}
	for _, c := range []model.Category{
		model.CategoryRouteEffHigh, model.CategoryRouteEffLow, model.CategoryRouteShareOverflow,
		model.CategorySurfaceCTRGap, model.CategoryCalibrationDrift,
	} {
		assert.True(t, seen[c], "category %s has no rule", c)
	}
}
