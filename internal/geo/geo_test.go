package geo

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linesJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"LINEA": "1", "color": "E84B8A"},
     "geometry": {"type": "LineString", "coordinates": [[-99.20, 19.40], [-99.10, 19.42]]}},
    {"type": "Feature", "properties": {"LINEA": "2", "color": "0069B4"},
     "geometry": {"type": "LineString", "coordinates": [[-99.15, 19.30], [-99.14, 19.50]]}}
  ]
}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lines.geojson", linesJSON)

	ds, err := Load(context.Background(), []Source{{Name: "metro", File: "lines.geojson"}}, dir, nil)
	require.NoError(t, err)
	require.Contains(t, ds, "metro")
	assert.Len(t, ds["metro"].Features, 2)
	assert.Equal(t, []string{"metro"}, ds.Names())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.geojson", "{not json")

	tests := []struct {
		name string
		src  Source
	}{
		{"missing file", Source{Name: "a", File: "nope.geojson"}},
		{"bad json", Source{Name: "b", File: "bad.geojson"}},
		{"no source", Source{Name: "c"}},
		{"both", Source{Name: "d", File: "x.geojson", Query: "SELECT 1"}},
		{"query without db", Source{Name: "e", Query: "SELECT 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), []Source{tt.src}, dir, nil)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.src.Name)
		})
	}
}

func TestBound_Where(t *testing.T) {
	fc, err := geojson.UnmarshalFeatureCollection([]byte(linesJSON))
	require.NoError(t, err)

	b, ok := Bound(fc, nil)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-99.20, 19.30}, Max: orb.Point{-99.10, 19.50}}, b)

	b, ok = Bound(fc, Where{"LINEA": "1"})
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-99.20, 19.40}, Max: orb.Point{-99.10, 19.42}}, b)

	_, ok = Bound(fc, Where{"LINEA": "9"})
	assert.False(t, ok)

	// Features without geometry contribute nothing.
	empty := geojson.NewFeatureCollection()
	empty.Append(geojson.NewFeature(nil))
	_, ok = Bound(empty, nil)
	assert.False(t, ok)

	_, ok = Bound(nil, nil)
	assert.False(t, ok)
}

func TestPropertyString(t *testing.T) {
	props := geojson.Properties{"s": "abc", "n": float64(3), "f": 1.5, "nil": nil, "b": true}

	v, ok := PropertyString(props, "s")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	v, _ = PropertyString(props, "n")
	assert.Equal(t, "3", v)

	v, _ = PropertyString(props, "f")
	assert.Equal(t, "1.5", v)

	v, _ = PropertyString(props, "b")
	assert.Equal(t, "true", v)

	_, ok = PropertyString(props, "nil")
	assert.False(t, ok)
	_, ok = PropertyString(props, "missing")
	assert.False(t, ok)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 1}}))
	assert.False(t, Valid(orb.Bound{Min: orb.Point{2, 0}, Max: orb.Point{1, 1}}))
	assert.False(t, Valid(orb.Bound{Min: orb.Point{math.NaN(), 0}, Max: orb.Point{1, 1}}))
	assert.False(t, Valid(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{math.Inf(1), 1}}))
}

func TestExtent(t *testing.T) {
	var ext Extent
	_, ok := ext.Bound()
	assert.False(t, ok)

	ext.Add(orb.Bound{Min: orb.Point{3, 0}, Max: orb.Point{1, 1}}) // inverted, ignored
	_, ok = ext.Bound()
	assert.False(t, ok)

	ext.Add(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}})
	ext.Add(orb.Bound{Min: orb.Point{-1, 2}, Max: orb.Point{0, 3}})
	b, ok := ext.Bound()
	assert.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-1, 0}, Max: orb.Point{1, 3}}, b)
}

func TestFeatureFromRow(t *testing.T) {
	f, err := featureFromRow(
		[]string{"name", GeometryColumn, "riders"},
		[]any{"Pantitlán", `{"type":"Point","coordinates":[-99.07,19.41]}`, int64(120)},
	)
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-99.07, 19.41}, f.Geometry)
	assert.Equal(t, "Pantitlán", f.Properties["name"])
	assert.Equal(t, int64(120), f.Properties["riders"])
	assert.NotContains(t, f.Properties, GeometryColumn)

	_, err = featureFromRow([]string{"name"}, []any{"x"})
	assert.Error(t, err)

	_, err = featureFromRow([]string{GeometryColumn}, []any{[]byte("nope")})
	assert.Error(t, err)

	_, err = featureFromRow([]string{GeometryColumn}, []any{42})
	assert.Error(t, err)
}
