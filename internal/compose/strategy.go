package compose

import (
	"fmt"
	"html"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-story/internal/geo"
)

// Styler computes the appearance of one feature.
type Styler interface {
	Style(f *geojson.Feature) (Style, error)
}

// StyleFunc adapts a function to Styler.
type StyleFunc func(f *geojson.Feature) (Style, error)

func (fn StyleFunc) Style(f *geojson.Feature) (Style, error) { return fn(f) }

// Annotator attaches interactive metadata, usually a tooltip, to a
// rendered feature.
type Annotator interface {
	Annotate(f *geojson.Feature, l *Feature) error
}

// AnnotateFunc adapts a function to Annotator.
type AnnotateFunc func(f *geojson.Feature, l *Feature) error

func (fn AnnotateFunc) Annotate(f *geojson.Feature, l *Feature) error { return fn(f, l) }

// HoverTooltip binds the text returned by fn as a hover tooltip. Empty
// text binds nothing.
func HoverTooltip(fn func(f *geojson.Feature) (string, error)) Annotator {
	return AnnotateFunc(func(f *geojson.Feature, l *Feature) error {
		text, err := fn(f)
		if err != nil {
			return err
		}
		if text != "" {
			l.BindTooltip(text, false)
		}
		return nil
	})
}

// Kind is one of the built-in dataset treatments.
type Kind string

const (
	KindLine    Kind = "line"    // lines colored from a feature property
	KindRoute   Kind = "route"   // dashed lines in one palette color
	KindStation Kind = "station" // small circle markers
	KindGeneric Kind = "generic" // neutral fallback
)

// ParseKind validates a kind name. The empty string means generic.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindLine, KindRoute, KindStation, KindGeneric:
		return k, nil
	case "":
		return KindGeneric, nil
	}
	return "", fmt.Errorf("unknown dataset kind %q", s)
}

// Properties names the feature properties the built-in strategies read.
type Properties struct {
	Name  string `yaml:"name,omitempty"`
	Line  string `yaml:"line,omitempty"`
	Route string `yaml:"route,omitempty"`
	Type  string `yaml:"type,omitempty"`
	Color string `yaml:"color,omitempty"`
}

// WithDefaults fills unset property names.
func (p Properties) WithDefaults() Properties {
	if p.Name == "" {
		p.Name = "name"
	}
	if p.Line == "" {
		p.Line = "line"
	}
	if p.Route == "" {
		p.Route = "route"
	}
	if p.Type == "" {
		p.Type = "type"
	}
	if p.Color == "" {
		p.Color = "color"
	}
	return p
}

// DatasetInfo selects and parameterizes a built-in strategy.
type DatasetInfo struct {
	Kind       Kind
	System     string // e.g. "Metro", used in line tooltips
	Color      string // palette color for routes
	Properties Properties
}

// Default styles.
var (
	GenericStyle = Style{Color: "#c4ddffff", Weight: 2, Opacity: Opacity(0.6)}
	LineStyle    = Style{Weight: 4, Opacity: Opacity(0.8)}
	RouteStyle   = Style{Color: "#FF6B35", Weight: 3, Opacity: Opacity(0.7), DashArray: "5, 5"}
	StationStyle = Style{Radius: 2, FillColor: "#b7d4fcff", Color: "#ffffff", Weight: 1, Opacity: Opacity(0.8), FillOpacity: Opacity(0.6)}
)

// Strategy is how one dataset is drawn when a slide does not override it.
type Strategy struct {
	Circle   bool // draw points as circle markers
	Style    Styler
	Annotate Annotator
}

// NewStrategy returns the built-in strategy for info.
func NewStrategy(info DatasetInfo) Strategy {
	props := info.Properties.WithDefaults()
	lineTip := HoverTooltip(func(f *geojson.Feature) (string, error) {
		return lineTooltip(f, info.System, props), nil
	})

	switch info.Kind {
	case KindLine:
		return Strategy{
			Style: StyleFunc(func(f *geojson.Feature) (Style, error) {
				c, ok := geo.PropertyString(f.Properties, props.Color)
				if !ok {
					return GenericStyle, nil
				}
				return LineStyle.Merge(Style{Color: HexColor(c)}), nil
			}),
			Annotate: lineTip,
		}
	case KindRoute:
		st := RouteStyle
		if info.Color != "" {
			st.Color = HexColor(info.Color)
		}
		return Strategy{Style: constStyle(st), Annotate: lineTip}
	case KindStation:
		return Strategy{
			Circle: true,
			Style:  constStyle(StationStyle),
			Annotate: HoverTooltip(func(f *geojson.Feature) (string, error) {
				if name, ok := geo.PropertyString(f.Properties, props.Name); ok {
					line, _ := geo.PropertyString(f.Properties, props.Line)
					typ, ok := geo.PropertyString(f.Properties, props.Type)
					if !ok {
						typ = "Station"
					}
					return html.EscapeString(name) + "<br>Line " + html.EscapeString(line) + "<br>" + html.EscapeString(typ), nil
				}
				return lineTooltip(f, info.System, props), nil
			}),
		}
	}
	return Strategy{Style: constStyle(GenericStyle), Annotate: lineTip}
}

func constStyle(s Style) Styler {
	return StyleFunc(func(*geojson.Feature) (Style, error) { return s, nil })
}

// lineTooltip summarizes a feature's line and route when both exist.
func lineTooltip(f *geojson.Feature, system string, props Properties) string {
	line, ok := geo.PropertyString(f.Properties, props.Line)
	if !ok {
		return ""
	}
	route, ok := geo.PropertyString(f.Properties, props.Route)
	if !ok {
		return ""
	}
	text := fmt.Sprintf("Line %s: %s", html.EscapeString(line), html.EscapeString(route))
	if system != "" {
		text = html.EscapeString(system) + " " + text
	}
	return text
}

// HexColor prefixes bare hex digits with '#'.
func HexColor(c string) string {
	if c == "" || strings.HasPrefix(c, "#") {
		return c
	}
	return "#" + c
}

// Table maps dataset names to strategies. Unknown names get the
// generic strategy.
type Table struct {
	strategies map[string]Strategy
	fallback   Strategy
}

// NewTable creates a table with only the generic fallback.
func NewTable() *Table {
	return &Table{
		strategies: make(map[string]Strategy),
		fallback:   NewStrategy(DatasetInfo{Kind: KindGeneric}),
	}
}

// Register sets the strategy for a dataset name.
func (t *Table) Register(name string, s Strategy) {
	t.strategies[name] = s
}

// Lookup returns the strategy for name.
func (t *Table) Lookup(name string) Strategy {
	if s, ok := t.strategies[name]; ok {
		return s
	}
	return t.fallback
}
