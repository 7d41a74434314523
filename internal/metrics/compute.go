package metrics

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adrank-triage/internal/model"
)

// Impression is one row of an impression log.
type Impression struct {
	Click     float64
	Impr      float64
	CTR       float64
	PredCTR   float64
	RankScore float64
	Route     string
	Surface   string
}

type group struct {
	n       int
	clicks  float64
	impr    float64
	predSum float64
	rankSum float64
}

// Compute aggregates an impression log into a snapshot. Routes and surfaces
// are emitted in sorted id order. Per-entity stats are rounded to 4
// decimals; global_ctr and calibration_drift are not. Rows without a route
// or surface id are left out of that grouping only.
func Compute(rows []Impression) (*model.MetricsSnapshot, error) {
	if len(rows) == 0 {
		return nil, eris.New("metrics: empty impression log")
	}

	var clickSum, driftSum float64
	routes := make(map[string]*group)
	surfaces := make(map[string]*group)
	for _, r := range rows {
		clickSum += r.Click
		driftSum += r.PredCTR - r.CTR
		if r.Route != "" {
			add(routes, r.Route, r)
		}
		if r.Surface != "" {
			add(surfaces, r.Surface, r)
		}
	}

	n := float64(len(rows))
	global := clickSum / n
	snap := &model.MetricsSnapshot{
		GlobalCTR:        model.Float(global),
		CalibrationDrift: model.Float(driftSum / n),
	}

	routeTotal := totalImpr(routes)
	for _, id := range sortedKeys(routes) {
		g := routes[id]
		ctr := g.clicks / float64(g.n)
		stat := model.RouteStat{
			Route:        id,
			CTR:          round4(ctr),
			Impressions:  round4(g.impr),
			AvgPredCTR:   round4(g.predSum / float64(g.n)),
			AvgRankScore: round4(g.rankSum / float64(g.n)),
			Share:        ratio(g.impr, routeTotal),
			Efficiency:   ratio(ctr, global),
		}
		snap.Routes = append(snap.Routes, stat)
	}

	surfaceTotal := totalImpr(surfaces)
	for _, id := range sortedKeys(surfaces) {
		g := surfaces[id]
		snap.Surfaces = append(snap.Surfaces, model.SurfaceStat{
			Surface:     id,
			CTR:         round4(g.clicks / float64(g.n)),
			Impressions: round4(g.impr),
			Share:       ratio(g.impr, surfaceTotal),
		})
	}

	return snap, nil
}

func add(groups map[string]*group, id string, r Impression) {
	g, ok := groups[id]
	if !ok {
		g = &group{}
		groups[id] = g
	}
	g.n++
	g.clicks += r.Click
	g.impr += r.Impr
	g.predSum += r.PredCTR
	g.rankSum += r.RankScore
}

func totalImpr(groups map[string]*group) float64 {
	var total float64
	for _, g := range groups {
		total += g.impr
	}
	return total
}

func sortedKeys(groups map[string]*group) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ratio returns the rounded quotient, or nil when den is zero.
func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return round4(num / den)
}

func round4(v float64) *float64 {
	return model.Float(math.Round(v*1e4) / 1e4)
}
