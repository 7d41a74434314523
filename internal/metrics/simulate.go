package metrics

import (
	"math"
	"math/rand/v2"
)

var (
	simSurfaces     = []string{"S1", "S2", "S3"}
	simSurfaceProbs = []float64{0.4, 0.4, 0.2}
	simRoutes       = []string{"MAIN", "SUP1", "SUP2", "SUP3"}
	simRouteProbs   = []float64{0.5, 0.2, 0.2, 0.1}

	// routeScale biases rank_score per route. MAIN carries an impression
	// guardrail; SUP1 has elevated privilege.
	routeScale = map[string]float64{
		"MAIN": 1.05,
		"SUP1": 1.2,
		"SUP2": 1.1,
		"SUP3": 1.0,
	}
)

const (
	predNoiseSD = 0.05
	rankNoiseSD = 0.02
)

// Simulate fills surface, route, pred_ctr and rank_score on rows that come
// from a raw click log. The same seed always yields the same fields.
func Simulate(rows []Impression, seed uint64) {
	SimulateColumns(rows, seed, simulatedColumns)
}

// SimulateColumns fills only the named columns (route_id, surface, pred_ctr,
// rank_score) and keeps the values already read for the others. Every pass
// draws from the stream, so a simulated column does not depend on which
// other columns were present.
func SimulateColumns(rows []Impression, seed uint64, columns []string) {
	fill := make(map[string]bool, len(columns))
	for _, c := range columns {
		fill[c] = true
	}
	rng := rand.New(rand.NewPCG(seed, seed))

	for i := range rows {
		v := choose(rng, simSurfaces, simSurfaceProbs)
		if fill["surface"] {
			rows[i].Surface = v
		}
	}
	for i := range rows {
		v := choose(rng, simRoutes, simRouteProbs)
		if fill["route_id"] {
			rows[i].Route = v
		}
	}
	for i := range rows {
		pred := math.Min(math.Max(rows[i].CTR+rng.NormFloat64()*predNoiseSD, 0), 1)
		if fill["pred_ctr"] {
			rows[i].PredCTR = pred
		}
	}
	for i := range rows {
		noise := rng.NormFloat64() * rankNoiseSD
		if fill["rank_score"] {
			rows[i].RankScore = rows[i].PredCTR*scaleFor(rows[i].Route) + noise
		}
	}
}

// scaleFor returns the rank_score scale of a route; routes outside the
// simulated set are unscaled.
func scaleFor(route string) float64 {
	if s, ok := routeScale[route]; ok {
		return s
	}
	return 1.0
}

func choose(rng *rand.Rand, items []string, probs []float64) string {
	u := rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += p
		if u < cum {
			return items[i]
		}
	}
	return items[len(items)-1]
}
