package compose

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, s := range []string{"line", "route", "station", "generic"} {
		k, err := ParseKind(s)
		require.NoError(t, err)
		assert.Equal(t, Kind(s), k)
	}

	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindGeneric, k)

	_, err = ParseKind("tram")
	assert.Error(t, err)
}

func TestRouteStrategy(t *testing.T) {
	f := feature(orb.LineString{{0, 0}, {1, 1}}, geojson.Properties{"line": "4", "route": "Norte"})

	s := NewStrategy(DatasetInfo{Kind: KindRoute, System: "Metrobús"})
	st, err := s.Style.Style(f)
	require.NoError(t, err)
	assert.Equal(t, RouteStyle, st)

	var l Feature
	require.NoError(t, s.Annotate.Annotate(f, &l))
	assert.Equal(t, "Metrobús Line 4: Norte", l.Tooltip.Text)

	s = NewStrategy(DatasetInfo{Kind: KindRoute, Color: "00FF00"})
	st, _ = s.Style.Style(f)
	assert.Equal(t, "#00FF00", st.Color)
	assert.Equal(t, "5, 5", st.DashArray)
}

func TestGenericTooltipNeedsLineAndRoute(t *testing.T) {
	s := NewStrategy(DatasetInfo{})

	var l Feature
	require.NoError(t, s.Annotate.Annotate(feature(orb.Point{0, 0}, geojson.Properties{"line": "4"}), &l))
	assert.Nil(t, l.Tooltip)

	require.NoError(t, s.Annotate.Annotate(feature(orb.Point{0, 0}, geojson.Properties{"line": 4.0, "route": "<b>"}), &l))
	assert.Equal(t, "Line 4: &lt;b&gt;", l.Tooltip.Text)
}

func TestTableFallback(t *testing.T) {
	table := NewTable()
	assert.False(t, table.Lookup("anything").Circle)

	table.Register("stops", NewStrategy(DatasetInfo{Kind: KindStation}))
	assert.True(t, table.Lookup("stops").Circle)

	st, err := table.Lookup("other").Style.Style(feature(orb.Point{0, 0}, nil))
	require.NoError(t, err)
	assert.Equal(t, GenericStyle, st)
}

func TestStyleMerge(t *testing.T) {
	base := Style{Color: "#fff", Weight: 2, Opacity: Opacity(0.3)}
	got := base.Merge(Style{Weight: 5, Opacity: Opacity(1), FillColor: "#000"})
	assert.Equal(t, Style{Color: "#fff", Weight: 5, Opacity: Opacity(1), FillColor: "#000"}, got)
	assert.Equal(t, base, base.Merge(Style{}))
}

func TestStyleMerge_ExplicitZeroOpacity(t *testing.T) {
	base := Style{Opacity: Opacity(0.8), FillOpacity: Opacity(0.6)}
	got := base.Merge(Style{Opacity: Opacity(0), FillOpacity: Opacity(0)})
	require.NotNil(t, got.Opacity)
	require.NotNil(t, got.FillOpacity)
	assert.Zero(t, *got.Opacity)
	assert.Zero(t, *got.FillOpacity)
	assert.Equal(t, 0.8, *base.Opacity, "merge leaves the base untouched")

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"opacity": 0, "fillOpacity": 0}`, string(b))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#E84B8A", HexColor("E84B8A"))
	assert.Equal(t, "#E84B8A", HexColor("#E84B8A"))
	assert.Equal(t, "", HexColor(""))
}

func TestPropertyErrorMessage(t *testing.T) {
	err := MissingProperty("TIPO")
	assert.Equal(t, `missing feature property "TIPO"`, err.Error())
	assert.ErrorIs(t, err, ErrMissingProperty)

	err = featureError("metro-stations", 3, err)
	assert.Equal(t, `dataset "metro-stations" feature 3: missing feature property "TIPO"`, err.Error())
}
