package story

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-story/internal/compose"
	"github.com/joeblew999/plat-story/internal/geo"
)

const deckYAML = `
title: Moving Mexico City
defaultDatasets: [metro]
datasets:
  metro:
    file: lines.geojson
    kind: line
    system: Metro
    properties: {line: LINEA, route: RUTA}
  metro-stations:
    file: metro-station.geojson
    kind: station
    properties: {name: NOMBRE, line: LINEA, type: TIPO}
slides:
  - id: title-slide
    title: A city on rails
    body: "Some **bold** text."
  - id: metro-origins
    datasets: [metro, metro-stations]
    fit: {dataset: metro, where: {LINEA: "1"}}
    styles:
      metro:
        colorProperty: color
        weight: 2
        opacity: 0.3
        rules:
          - property: LINEA
            equals: ["1"]
            weight: 5
            opacity: 1
      metro-stations:
        radius: 2
        fillColor: "#CCCCCC"
        rules:
          - property: TIPO
            contains: [Transbordo, Terminal]
            radius: 5
            fillColor: "#E74C3C"
    tooltips:
      metro: "Metro Line {{.LINEA}}: {{.RUTA}}"
    labels: {}
  - id: framed
    datasets: [metro, trams]
    bounds: [-99.3, 19.2, -99.0, 19.6]
`

func datasets() geo.Datasets {
	line := func(coords orb.LineString, props geojson.Properties) *geojson.Feature {
		f := geojson.NewFeature(coords)
		f.Properties = props
		return f
	}
	point := func(p orb.Point, props geojson.Properties) *geojson.Feature {
		f := geojson.NewFeature(p)
		f.Properties = props
		return f
	}

	metro := geojson.NewFeatureCollection()
	metro.Append(line(orb.LineString{{-99.20, 19.40}, {-99.10, 19.42}},
		geojson.Properties{"LINEA": "1", "RUTA": "Observatorio - Pantitlán", "color": "F04E98", "label": "1"}))
	metro.Append(line(orb.LineString{{-99.15, 19.30}, {-99.14, 19.50}},
		geojson.Properties{"LINEA": "2", "RUTA": "Cuatro Caminos - Tasqueña", "color": "005EB8", "label": "2"}))

	stations := geojson.NewFeatureCollection()
	stations.Append(point(orb.Point{-99.07, 19.41},
		geojson.Properties{"NOMBRE": "Pantitlán", "LINEA": "01", "TIPO": "Transbordo", "label": "Pantitlán"}))
	stations.Append(point(orb.Point{-99.13, 19.43},
		geojson.Properties{"NOMBRE": "Zócalo", "LINEA": "02", "TIPO": "Intermedia", "label": "Zócalo"}))

	return geo.Datasets{"metro": metro, "metro-stations": stations}
}

func compileDeck(t *testing.T) *Story {
	t.Helper()
	d, err := Parse([]byte(deckYAML))
	require.NoError(t, err)
	s, err := Compile(d, datasets())
	require.NoError(t, err)
	return s
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("title: x\nslidez: []\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.yaml")
	require.NoError(t, os.WriteFile(path, []byte(deckYAML), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Moving Mexico City", d.Title)
	assert.Len(t, d.Slides, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSources(t *testing.T) {
	d, err := Parse([]byte(deckYAML))
	require.NoError(t, err)
	assert.Equal(t, []geo.Source{
		{Name: "metro", File: "lines.geojson"},
		{Name: "metro-stations", File: "metro-station.geojson"},
	}, d.Sources())
}

func TestCompile_Slides(t *testing.T) {
	s := compileDeck(t)
	require.Len(t, s.Slides, 3)

	title := s.Slides[0]
	assert.Equal(t, []string{"metro"}, title.Config.Datasets, "falls back to defaultDatasets")
	assert.Contains(t, string(title.HTML), "<strong>bold</strong>")
	assert.Nil(t, title.Config.Bounds)

	origins := s.Slides[1]
	require.NotNil(t, origins.Config.Bounds)
	assert.Equal(t, orb.Bound{Min: orb.Point{-99.20, 19.40}, Max: orb.Point{-99.10, 19.42}}, *origins.Config.Bounds)
	assert.True(t, origins.Config.ShowLabels)

	framed := s.Slides[2]
	require.NotNil(t, framed.Config.Bounds)
	assert.Equal(t, orb.Point{-99.3, 19.2}, framed.Config.Bounds.Min)

	assert.Equal(t, []string{`slide "framed": dataset "trams" is not loaded`}, s.Warnings)

	slides := s.DeckSlides()
	assert.Equal(t, "metro-origins", slides[1].ID)

	_, i, ok := s.Slide("framed")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "slides: [{title: x}]"},
		{"duplicate id", "slides: [{id: a}, {id: a}]"},
		{"bad kind", "datasets: {x: {file: x.geojson, kind: tram}}"},
		{"short bounds", "slides: [{id: a, bounds: [1, 2, 3]}]"},
		{"inverted bounds", "slides: [{id: a, bounds: [3, 3, 1, 1]}]"},
		{"bounds and fit", "slides: [{id: a, bounds: [1, 1, 2, 2], fit: {dataset: metro}}]"},
		{"rule without property", "slides: [{id: a, styles: {metro: {rules: [{equals: ['1']}]}}}]"},
		{"rule without match", "slides: [{id: a, styles: {metro: {rules: [{property: LINEA}]}}}]"},
		{"bad template", "slides: [{id: a, tooltips: {metro: '{{.LINEA'}}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Compile(d, datasets())
			assert.Error(t, err)
		})
	}
}

func TestCompile_FitWarnings(t *testing.T) {
	d, err := Parse([]byte(`slides:
  - {id: a, fit: {dataset: nope}}
  - {id: b, fit: {dataset: metro, where: {LINEA: "9"}}}
`))
	require.NoError(t, err)
	s, err := Compile(d, datasets())
	require.NoError(t, err)
	assert.Len(t, s.Warnings, 2)
	assert.Nil(t, s.Slides[0].Config.Bounds)
	assert.Nil(t, s.Slides[1].Config.Bounds)
}

func TestStyleSpec_Rules(t *testing.T) {
	s := compileDeck(t)
	cfg := s.Slides[1].Config
	ds := datasets()

	st, err := cfg.Styles["metro"].Style(ds["metro"].Features[0])
	require.NoError(t, err)
	assert.Equal(t, compose.Style{Color: "#F04E98", Weight: 5, Opacity: compose.Opacity(1)}, st)

	st, err = cfg.Styles["metro"].Style(ds["metro"].Features[1])
	require.NoError(t, err)
	assert.Equal(t, compose.Style{Color: "#005EB8", Weight: 2, Opacity: compose.Opacity(0.3)}, st)

	st, err = cfg.Styles["metro-stations"].Style(ds["metro-stations"].Features[0])
	require.NoError(t, err)
	assert.Equal(t, 5.0, st.Radius)
	assert.Equal(t, "#E74C3C", st.FillColor)

	st, err = cfg.Styles["metro-stations"].Style(ds["metro-stations"].Features[1])
	require.NoError(t, err)
	assert.Equal(t, 2.0, st.Radius)
	assert.Equal(t, "#CCCCCC", st.FillColor)
}

func TestStyleSpec_RuleCanHideFeatures(t *testing.T) {
	d, err := Parse([]byte(`slides:
  - id: hidden
    datasets: [metro]
    styles:
      metro:
        opacity: 0.8
        rules:
          - property: LINEA
            equals: ["2"]
            opacity: 0
            fillOpacity: 0
`))
	require.NoError(t, err)
	s, err := Compile(d, datasets())
	require.NoError(t, err)
	styler := s.Slides[0].Config.Styles["metro"]
	ds := datasets()

	st, err := styler.Style(ds["metro"].Features[0])
	require.NoError(t, err)
	require.NotNil(t, st.Opacity)
	assert.Equal(t, 0.8, *st.Opacity)
	assert.Nil(t, st.FillOpacity)

	st, err = styler.Style(ds["metro"].Features[1])
	require.NoError(t, err)
	require.NotNil(t, st.Opacity)
	require.NotNil(t, st.FillOpacity)
	assert.Zero(t, *st.Opacity)
	assert.Zero(t, *st.FillOpacity)
}

func TestStyleSpec_MissingProperty(t *testing.T) {
	f := geojson.NewFeature(orb.Point{0, 0})

	_, err := StyleSpec{ColorProperty: "color"}.Styler().Style(f)
	assert.ErrorIs(t, err, compose.ErrMissingProperty)

	spec := StyleSpec{Rules: []RuleSpec{{Property: "TIPO", Contains: []string{"Terminal"}}}}
	_, err = spec.Styler().Style(f)
	var pe *compose.PropertyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "TIPO", pe.Property)
}

func TestTooltipTemplate(t *testing.T) {
	a, err := TooltipTemplate("metro", "Metro Line {{.LINEA}}: {{.RUTA}}")
	require.NoError(t, err)

	f := geojson.NewFeature(orb.Point{0, 0})
	f.Properties = geojson.Properties{"LINEA": "1", "RUTA": "A & B"}
	var l compose.Feature
	require.NoError(t, a.Annotate(f, &l))
	assert.Equal(t, "Metro Line 1: A &amp; B", l.Tooltip.Text)

	f.Properties = geojson.Properties{"LINEA": "1"}
	err = a.Annotate(f, &l)
	assert.ErrorIs(t, err, compose.ErrMissingProperty)
}

func TestPlan(t *testing.T) {
	s := compileDeck(t)
	logger := log.New(io.Discard)

	cmds, err := s.Plan("metro-origins", 1024, logger)
	require.NoError(t, err)

	var ops []compose.Op
	for _, c := range cmds {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []compose.Op{
		compose.OpClear, compose.OpAdd, compose.OpAdd, compose.OpFly, compose.OpLabels, compose.OpLabels,
	}, ops)
	assert.Equal(t, 496.0, cmds[3].Options.PaddingRight)
	assert.Equal(t, "Metro Line 1: Observatorio - Pantitlán", cmds[1].Layer.Features[0].Tooltip.Text)

	_, err = s.Plan("nope", 1024, logger)
	assert.ErrorIs(t, err, ErrUnknownSlide)

	assert.NoError(t, s.Check(logger))
}

func TestCheck_ReportsFatalSlides(t *testing.T) {
	d, err := Parse([]byte(`
datasets:
  metro: {file: lines.geojson, kind: line}
slides:
  - id: ok
    datasets: [metro]
  - id: broken
    datasets: [metro]
    tooltips: {metro: "{{.NOPE}}"}
`))
	require.NoError(t, err)
	s, err := Compile(d, datasets())
	require.NoError(t, err)

	err = s.Check(log.New(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `slide "broken"`)
	assert.NotContains(t, err.Error(), `slide "ok"`)
}
