package model

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// MetricsSnapshot is the aggregate serving-metrics document consumed by
// triage. Route and surface entries keep the order they had in the source
// document; top-k tie breaking depends on it.
type MetricsSnapshot struct {
	GlobalCTR        *float64     `json:"global_ctr" yaml:"global_ctr" validate:"required,gte=0,lte=1"`
	Routes           RouteStats   `json:"route_stats" yaml:"route_stats"`
	Surfaces         SurfaceStats `json:"surface_stats" yaml:"surface_stats"`
	CalibrationDrift *float64     `json:"calibration_drift,omitempty" yaml:"calibration_drift,omitempty" validate:"omitempty,gte=-1,lte=1"`
}

// RouteStat holds aggregates for one retrieval route. Nil fields were absent
// from the document and disable the checks that need them.
type RouteStat struct {
	Route        string   `json:"-" yaml:"-" validate:"required"`
	CTR          *float64 `json:"ctr,omitempty" yaml:"ctr,omitempty" validate:"omitempty,gte=0,lte=1"`
	Impressions  *float64 `json:"impressions,omitempty" yaml:"impressions,omitempty" validate:"omitempty,gte=0"`
	AvgPredCTR   *float64 `json:"avg_pred_ctr,omitempty" yaml:"avg_pred_ctr,omitempty" validate:"omitempty,gte=0,lte=1"`
	AvgRankScore *float64 `json:"avg_rank_score,omitempty" yaml:"avg_rank_score,omitempty"`
	Share        *float64 `json:"share,omitempty" yaml:"share,omitempty" validate:"omitempty,gte=0,lte=1"`
	Efficiency   *float64 `json:"efficiency,omitempty" yaml:"efficiency,omitempty" validate:"omitempty,gte=0"`
}

// SurfaceStat holds aggregates for one UI surface.
type SurfaceStat struct {
	Surface     string   `json:"-" yaml:"-" validate:"required"`
	CTR         *float64 `json:"ctr,omitempty" yaml:"ctr,omitempty" validate:"omitempty,gte=0,lte=1"`
	Impressions *float64 `json:"impressions,omitempty" yaml:"impressions,omitempty" validate:"omitempty,gte=0"`
	Share       *float64 `json:"share,omitempty" yaml:"share,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Float returns a pointer to v. Used to build snapshots in code.
func Float(v float64) *float64 {
	return &v
}

// Route returns the stats for the given route id.
func (s *MetricsSnapshot) Route(id string) (RouteStat, bool) {
	for _, r := range s.Routes {
		if r.Route == id {
			return r, true
		}
	}
	return RouteStat{}, false
}

// RouteStats is an ordered route_id -> RouteStat mapping. It encodes as a
// JSON/YAML object.
type RouteStats []RouteStat

func (rs RouteStats) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(rs))
	for i, r := range rs {
		keys[i] = r.Route
	}
	return encodeOrderedJSON(keys, rs)
}

func (rs *RouteStats) UnmarshalJSON(data []byte) error {
	keys, vals, err := decodeOrderedJSON[RouteStat](data, "route_stats")
	if err != nil {
		return err
	}
	*rs = nil
	for i := range vals {
		vals[i].Route = keys[i]
		*rs = append(*rs, vals[i])
	}
	return nil
}

func (rs *RouteStats) UnmarshalYAML(node *yaml.Node) error {
	keys, vals, err := decodeOrderedYAML[RouteStat](node, "route_stats")
	if err != nil {
		return err
	}
	*rs = nil
	for i := range vals {
		vals[i].Route = keys[i]
		*rs = append(*rs, vals[i])
	}
	return nil
}

// SurfaceStats is an ordered surface_id -> SurfaceStat mapping.
type SurfaceStats []SurfaceStat

func (ss SurfaceStats) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(ss))
	for i, s := range ss {
		keys[i] = s.Surface
	}
	return encodeOrderedJSON(keys, ss)
}

func (ss *SurfaceStats) UnmarshalJSON(data []byte) error {
	keys, vals, err := decodeOrderedJSON[SurfaceStat](data, "surface_stats")
	if err != nil {
		return err
	}
	*ss = nil
	for i := range vals {
		vals[i].Surface = keys[i]
		*ss = append(*ss, vals[i])
	}
	return nil
}

func (ss *SurfaceStats) UnmarshalYAML(node *yaml.Node) error {
	keys, vals, err := decodeOrderedYAML[SurfaceStat](node, "surface_stats")
	if err != nil {
		return err
	}
	*ss = nil
	for i := range vals {
		vals[i].Surface = keys[i]
		*ss = append(*ss, vals[i])
	}
	return nil
}

func encodeOrderedJSON[T any](keys []string, vals []T) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, eris.Wrap(err, "model: marshal key")
		}
		vb, err := json.Marshal(vals[i])
		if err != nil {
			return nil, eris.Wrapf(err, "model: marshal %s", k)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeOrderedJSON walks a JSON object token by token so key order survives.
func decodeOrderedJSON[T any](data []byte, what string) ([]string, []T, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "model: decode %s", what)
	}
	if tok == nil {
		return nil, nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, eris.Errorf("model: %s must be an object", what)
	}

	var keys []string
	var vals []T
	seen := make(map[string]bool)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, eris.Wrapf(err, "model: decode %s key", what)
		}
		key, _ := kt.(string)
		if seen[key] {
			return nil, nil, eris.Errorf("model: duplicate %s entry %q", what, key)
		}
		seen[key] = true

		var v T
		if err := dec.Decode(&v); err != nil {
			return nil, nil, eris.Wrapf(err, "model: decode %s[%s]", what, key)
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, eris.Wrapf(err, "model: decode %s", what)
	}
	return keys, vals, nil
}

func decodeOrderedYAML[T any](node *yaml.Node, what string) ([]string, []T, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, eris.Errorf("model: %s must be a mapping (line %d)", what, node.Line)
	}

	var keys []string
	var vals []T
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return nil, nil, eris.Errorf("model: duplicate %s entry %q", what, key)
		}
		seen[key] = true

		var v T
		if err := node.Content[i+1].Decode(&v); err != nil {
			return nil, nil, eris.Wrapf(err, "model: decode %s[%s]", what, key)
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	return keys, vals, nil
}
