package report

import "github.com/sells-group/adrank-triage/internal/model"

// experimentRule attaches an experiment template to a finding category.
type experimentRule struct {
	category model.Category
	build    func() model.Experiment
}

// experimentRules are checked in this order against the full finding list.
// Surface gaps have no dedicated experiment.
var experimentRules = []experimentRule{
	{model.CategoryRouteShareOverflow, routeCapExperiment},
	{model.CategoryRouteEffHigh, privilegeScalingExperiment},
	{model.CategoryRouteEffLow, weakRouteBoostExperiment},
	{model.CategoryCalibrationDrift, calibrationExperiment},
}

func routeCapExperiment() model.Experiment {
	return model.Experiment{
		Name:           "Route cap / rebalancing at early-stage recall",
		Description:    "Introduce route caps or adjust blending ratios to prevent overflow and recover diversity.",
		SuccessMetrics: []string{"global_ctr", "route_efficiency", "route_share", "diversity_proxy"},
		Guardrails:     []string{"overall_revenue_proxy", "latency", "delivery_stability"},
	}
}

func privilegeScalingExperiment() model.Experiment {
	return model.Experiment{
		Name:           "Reduce privilege scaling for strong routes",
		Description:    "Decrease route scaling factor (or blending weight) for routes with abnormally high efficiency; evaluate cannibalization impact.",
		SuccessMetrics: []string{"global_ctr", "surface_ctr", "route_share"},
		Guardrails:     []string{"revenue_proxy", "advertiser_spend_stability"},
	}
}

func weakRouteBoostExperiment() model.Experiment {
	return model.Experiment{
		Name:           "Targeted route boost for weak routes (segment-gated)",
		Description:    "Increase share only for segments where the route has historically positive lift; avoid global boost.",
		SuccessMetrics: []string{"segment_ctr", "cold_start_ctr_proxy", "route_efficiency"},
		Guardrails:     []string{"user_experience_proxy", "delivery_diversity"},
	}
}

func calibrationExperiment() model.Experiment {
	return model.Experiment{
		Name:           "Calibration adjustment A/B (temperature scaling)",
		Description:    "Apply calibration layer to pred_ctr and/or score scaling; measure stability and downstream CTR/value proxies.",
		SuccessMetrics: []string{"calibration_drift", "global_ctr", "ctr_stability_proxy"},
		Guardrails:     []string{"revenue_proxy", "latency", "auction_health_proxy"},
	}
}

func baselineExperiment() model.Experiment {
	return model.Experiment{
		Name:           "Baseline diagnostics A/B",
		Description:    "Run a small, low-risk A/B toggling a single blending knob to validate sensitivity and establish baseline.",
		SuccessMetrics: []string{"global_ctr", "route_share", "route_efficiency"},
		Guardrails:     []string{"revenue_proxy", "delivery_stability"},
	}
}
