package triage

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/adrank-triage/internal/model"
)

// Policy thresholds. These are fixed heuristics, not tuning knobs.
const (
	effHighThreshold     = 1.15
	effHighSevere        = 1.30
	effLowThreshold      = 0.90
	effLowSevere         = 0.80
	shareOverflow        = 0.70
	surfaceGapThreshold  = 0.02
	surfaceGapSevere     = 0.05
	surfaceTopK          = 2
	calibrationThreshold = 0.01
	calibrationSevere    = 0.03
)

// Rule evaluates one family of checks over a snapshot. Evaluate must be
// pure and must emit findings in a deterministic order.
type Rule struct {
	Name       string
	Categories []model.Category
	Evaluate   func(snap *model.MetricsSnapshot) []model.Finding
}

// Rules returns the triage rule set in emission order.
func Rules() []Rule {
	return []Rule{
		{
			Name:       "route_efficiency",
			Categories: []model.Category{model.CategoryRouteEffHigh, model.CategoryRouteEffLow},
			Evaluate:   routeEfficiency,
		},
		{
			Name:       "route_share",
			Categories: []model.Category{model.CategoryRouteShareOverflow},
			Evaluate:   routeShare,
		},
		{
			Name:       "surface_ctr_gap",
			Categories: []model.Category{model.CategorySurfaceCTRGap},
			Evaluate:   surfaceGap,
		},
		{
			Name:       "calibration",
			Categories: []model.Category{model.CategoryCalibrationDrift},
			Evaluate:   calibration,
		},
	}
}

// routeEfficiency flags routes whose CTR is far from the global CTR. High and
// low checks are interleaved per route.
func routeEfficiency(snap *model.MetricsSnapshot) []model.Finding {
	var out []model.Finding
	for _, rs := range snap.Routes {
		if rs.Efficiency == nil {
			continue
		}
		route, eff := rs.Route, *rs.Efficiency

		if eff >= effHighThreshold {
			sev := model.SeverityMedium
			if eff >= effHighSevere {
				sev = model.SeverityHigh
			}
			out = append(out, model.Finding{
				Key:      model.FindingKey(model.CategoryRouteEffHigh, route),
				Category: model.CategoryRouteEffHigh,
				Entity:   route,
				Severity: sev,
				Summary:  fmt.Sprintf("%s route efficiency is high (eff=%.3f) relative to global CTR.", route, eff),
				Evidence: map[string]any{
					"route":       route,
					"efficiency":  eff,
					"global_ctr":  optional(snap.GlobalCTR),
					"route_stats": rs,
				},
				Hypothesis: fmt.Sprintf("%s may be over-privileged or over-delivering high-quality ads, potentially cannibalizing other routes.", route),
				SuggestedActions: []string{
					fmt.Sprintf("Check %s blending ratio / privilege scaling at early-stage recall.", route),
					fmt.Sprintf("Inspect %s score distribution vs other routes (avg_pred_ctr / avg_rank_score).", route),
					"Run a small A/B reducing route share or privilege to measure trade-off (CTR vs value vs diversity).",
				},
			})
		}

		if eff <= effLowThreshold {
			sev := model.SeverityMedium
			if eff <= effLowSevere {
				sev = model.SeverityHigh
			}
			out = append(out, model.Finding{
				Key:      model.FindingKey(model.CategoryRouteEffLow, route),
				Category: model.CategoryRouteEffLow,
				Entity:   route,
				Severity: sev,
				Summary:  fmt.Sprintf("%s route efficiency is low (eff=%.3f) relative to global CTR.", route, eff),
				Evidence: map[string]any{
					"route":       route,
					"efficiency":  eff,
					"global_ctr":  optional(snap.GlobalCTR),
					"route_stats": rs,
				},
				Hypothesis: fmt.Sprintf("%s may be underperforming due to weak retrieval quality or miscalibrated ranking score scaling.", route),
				SuggestedActions: []string{
					fmt.Sprintf("Check %s candidate quality and coverage; verify retrieval constraints.", route),
					fmt.Sprintf("Audit %s score scaling and blending inputs; compare pred_ctr distribution vs click.", route),
					"Try a targeted A/B increasing route share only for segments where it historically performs well.",
				},
			})
		}
	}
	return out
}

// routeShare flags a route that takes most of the traffic.
func routeShare(snap *model.MetricsSnapshot) []model.Finding {
	var out []model.Finding
	for _, rs := range snap.Routes {
		if rs.Share == nil || *rs.Share < shareOverflow {
			continue
		}
		route, share := rs.Route, *rs.Share
		out = append(out, model.Finding{
			Key:      model.FindingKey(model.CategoryRouteShareOverflow, route),
			Category: model.CategoryRouteShareOverflow,
			Entity:   route,
			Severity: model.SeverityHigh,
			Summary:  fmt.Sprintf("%s takes an unusually large share of traffic (share=%.2f%%).", route, share*100),
			Evidence: map[string]any{
				"route":       route,
				"share":       share,
				"route_stats": rs,
			},
			Hypothesis: fmt.Sprintf("Potential %s overflow in early-stage recall, starving other routes and harming diversity.", route),
			SuggestedActions: []string{
				"Inspect blending constraints / caps; confirm no recent config drift.",
				"Run an A/B introducing route caps or rebalancing to recover diversity and long-tail quality.",
			},
		})
	}
	return out
}

type surfaceDelta struct {
	stat  model.SurfaceStat
	delta float64
}

// surfaceGap ranks surfaces by |ctr - global_ctr| and only considers the top
// two. A third surface past the threshold is intentionally ignored.
func surfaceGap(snap *model.MetricsSnapshot) []model.Finding {
	if snap.GlobalCTR == nil || len(snap.Surfaces) == 0 {
		return nil
	}
	global := *snap.GlobalCTR

	var deltas []surfaceDelta
	for _, ss := range snap.Surfaces {
		if ss.CTR == nil {
			continue
		}
		deltas = append(deltas, surfaceDelta{stat: ss, delta: *ss.CTR - global})
	}
	sort.SliceStable(deltas, func(i, j int) bool {
		return math.Abs(deltas[i].delta) > math.Abs(deltas[j].delta)
	})
	if len(deltas) > surfaceTopK {
		deltas = deltas[:surfaceTopK]
	}

	var out []model.Finding
	for _, d := range deltas {
		gap := math.Abs(d.delta)
		if gap < surfaceGapThreshold {
			continue
		}
		sev := model.SeverityMedium
		if gap >= surfaceGapSevere {
			sev = model.SeverityHigh
		}
		surface := d.stat.Surface
		out = append(out, model.Finding{
			Key:      model.FindingKey(model.CategorySurfaceCTRGap, surface),
			Category: model.CategorySurfaceCTRGap,
			Entity:   surface,
			Severity: sev,
			Summary:  fmt.Sprintf("%s CTR differs from global by %+.3f (possible cross-surface shift).", surface, d.delta),
			Evidence: map[string]any{
				"surface":             surface,
				"delta_ctr_vs_global": d.delta,
				"surface_stats":       d.stat,
				"global_ctr":          global,
			},
			Hypothesis: "Surface-level traffic/value composition may have shifted; potential cross-surface cannibalization or misaligned objectives.",
			SuggestedActions: []string{
				"Slice by surface and route to see which routes drive the gap.",
				"Consider a cross-surface objective adjustment or surface-specific blending guardrails.",
				"Run an A/B with surface-level caps / invalidation to control cannibalization.",
			},
		})
	}
	return out
}

// calibration flags a systematic gap between predicted and observed CTR.
func calibration(snap *model.MetricsSnapshot) []model.Finding {
	if snap.CalibrationDrift == nil {
		return nil
	}
	drift := *snap.CalibrationDrift
	if math.Abs(drift) < calibrationThreshold {
		return nil
	}
	sev := model.SeverityMedium
	if math.Abs(drift) >= calibrationSevere {
		sev = model.SeverityHigh
	}
	return []model.Finding{{
		Key:      model.FindingKey(model.CategoryCalibrationDrift, ""),
		Category: model.CategoryCalibrationDrift,
		Severity: sev,
		Summary:  fmt.Sprintf("Predicted CTR shows drift vs observed (mean pred_ctr - ctr = %+.4f).", drift),
		Evidence: map[string]any{
			"calibration_drift": drift,
		},
		Hypothesis: "Model calibration or score scaling drift may be contributing to ranking inefficiency and unstable traffic allocation.",
		SuggestedActions: []string{
			"Check pred_ctr distribution shift vs baseline; validate feature/logging changes.",
			"Run a calibration A/B (e.g., temperature scaling / isotonic) and measure CTR stability & value.",
			"Add drift monitoring and guardrails for score scaling changes.",
		},
	}}
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
