package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Where filters features by exact property values. Values are compared in
// their formatted string form so numeric properties match "1".
type Where map[string]string

// Match reports whether every filter matches the feature's properties.
func (w Where) Match(f *geojson.Feature) bool {
	for key, want := range w {
		got, ok := PropertyString(f.Properties, key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// PropertyString returns a property formatted as a string. Missing and
// null properties report false.
func PropertyString(props geojson.Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		// JSON numbers arrive as float64; keep integers free of ".0".
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return fmt.Sprintf("%d", int64(s)), true
		}
	}
	return fmt.Sprint(v), true
}

// Valid reports whether b is a usable camera target: finite and not
// inverted. A single point is valid.
func Valid(b orb.Bound) bool {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1]
}

// FeatureBound returns the bound of a feature's geometry. Features without
// geometry report false.
func FeatureBound(f *geojson.Feature) (orb.Bound, bool) {
	if f == nil || f.Geometry == nil {
		return orb.Bound{}, false
	}
	b := f.Geometry.Bound()
	return b, Valid(b)
}

// Extent accumulates a union of bounds. The zero value is empty.
type Extent struct {
	bound orb.Bound
	ok    bool
}

// Add extends the extent by b when b is valid.
func (e *Extent) Add(b orb.Bound) {
	if !Valid(b) {
		return
	}
	if !e.ok {
		e.bound, e.ok = b, true
		return
	}
	e.bound = e.bound.Union(b)
}

// Bound returns the accumulated bound and whether anything was added.
func (e Extent) Bound() (orb.Bound, bool) {
	return e.bound, e.ok
}

// Bound returns the union of the bounds of features matching where.
func Bound(fc *geojson.FeatureCollection, where Where) (orb.Bound, bool) {
	var ext Extent
	if fc == nil {
		return ext.Bound()
	}
	for _, f := range fc.Features {
		if !where.Match(f) {
			continue
		}
		if b, ok := FeatureBound(f); ok {
			ext.Add(b)
		}
	}
	return ext.Bound()
}
