package story

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/yuin/goldmark"

	"github.com/joeblew999/plat-story/internal/compose"
	"github.com/joeblew999/plat-story/internal/deck"
	"github.com/joeblew999/plat-story/internal/geo"
)

// Story is a compiled deck bound to its loaded datasets.
type Story struct {
	Title       string
	Description string
	Slides      []Slide
	Table       *compose.Table
	Datasets    geo.Datasets
	Deck        *Deck

	// Warnings are recoverable problems found while compiling, such as a
	// slide naming a dataset that is not loaded.
	Warnings []string
}

// Slide is one compiled slide.
type Slide struct {
	ID     string
	Title  string
	HTML   template.HTML
	Config compose.SlideConfig
}

var markdown = goldmark.New()

// Compile validates d and builds its slides against the loaded datasets.
func Compile(d *Deck, datasets geo.Datasets) (*Story, error) {
	s := &Story{
		Title:       d.Title,
		Description: d.Description,
		Table:       compose.NewTable(),
		Datasets:    datasets,
		Deck:        d,
	}

	for name, spec := range d.Datasets {
		kind, err := compose.ParseKind(spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", name, err)
		}
		s.Table.Register(name, compose.NewStrategy(compose.DatasetInfo{
			Kind:       kind,
			System:     spec.System,
			Color:      spec.Color,
			Properties: spec.Properties,
		}))
	}

	seen := make(map[string]bool, len(d.Slides))
	for i, spec := range d.Slides {
		if spec.ID == "" {
			return nil, fmt.Errorf("slide %d: missing id", i)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("slide %q: duplicate id", spec.ID)
		}
		seen[spec.ID] = true

		slide, err := s.compileSlide(d, spec)
		if err != nil {
			return nil, fmt.Errorf("slide %q: %w", spec.ID, err)
		}
		s.Slides = append(s.Slides, slide)
	}
	return s, nil
}

func (s *Story) warnf(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func (s *Story) compileSlide(d *Deck, spec SlideSpec) (Slide, error) {
	slide := Slide{ID: spec.ID, Title: spec.Title}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(spec.Body), &buf); err != nil {
		return slide, fmt.Errorf("rendering body: %w", err)
	}
	slide.HTML = template.HTML(buf.String())

	cfg := compose.SlideConfig{Datasets: spec.Datasets}
	if len(cfg.Datasets) == 0 {
		cfg.Datasets = d.DefaultDatasets
	}
	for _, name := range cfg.Datasets {
		if _, ok := s.Datasets[name]; !ok {
			s.warnf("slide %q: dataset %q is not loaded", spec.ID, name)
		}
	}

	bounds, err := s.resolveBounds(spec)
	if err != nil {
		return slide, err
	}
	cfg.Bounds = bounds

	if len(spec.Styles) > 0 {
		cfg.Styles = make(map[string]compose.Styler, len(spec.Styles))
		for name, st := range spec.Styles {
			if err := st.validate(); err != nil {
				return slide, fmt.Errorf("style %q: %w", name, err)
			}
			cfg.Styles[name] = st.Styler()
		}
	}

	if len(spec.Tooltips) > 0 {
		cfg.Annotations = make(map[string]compose.Annotator, len(spec.Tooltips))
		for name, text := range spec.Tooltips {
			a, err := TooltipTemplate(name, text)
			if err != nil {
				return slide, fmt.Errorf("tooltip %q: %w", name, err)
			}
			cfg.Annotations[name] = a
		}
	}

	if spec.Labels != nil {
		cfg.ShowLabels = true
		cfg.LabelProperty = spec.Labels.Property
	}

	slide.Config = cfg
	return slide, nil
}

func (s *Story) resolveBounds(spec SlideSpec) (*orb.Bound, error) {
	switch {
	case spec.Bounds != nil && spec.Fit != nil:
		return nil, fmt.Errorf("bounds and fit are mutually exclusive")
	case spec.Bounds != nil:
		if len(spec.Bounds) != 4 {
			return nil, fmt.Errorf("bounds: want [west, south, east, north], got %d values", len(spec.Bounds))
		}
		b := orb.Bound{
			Min: orb.Point{spec.Bounds[0], spec.Bounds[1]},
			Max: orb.Point{spec.Bounds[2], spec.Bounds[3]},
		}
		if !geo.Valid(b) {
			return nil, fmt.Errorf("bounds: %w", compose.ErrInvalidBounds)
		}
		return &b, nil
	case spec.Fit != nil:
		fc, ok := s.Datasets[spec.Fit.Dataset]
		if !ok {
			s.warnf("slide %q: fit dataset %q is not loaded", spec.ID, spec.Fit.Dataset)
			return nil, nil
		}
		b, ok := geo.Bound(fc, spec.Fit.Where)
		if !ok {
			s.warnf("slide %q: fit matched no features in %q", spec.ID, spec.Fit.Dataset)
			return nil, nil
		}
		return &b, nil
	}
	return nil, nil
}

func (st StyleSpec) validate() error {
	for i, r := range st.Rules {
		if r.Property == "" {
			return fmt.Errorf("rule %d: missing property", i)
		}
		if len(r.Equals) == 0 && len(r.Contains) == 0 {
			return fmt.Errorf("rule %d: needs equals or contains", i)
		}
	}
	return nil
}

// Styler compiles st into a per-feature style function. A missing
// colorProperty or rule property fails the render.
func (st StyleSpec) Styler() compose.Styler {
	return compose.StyleFunc(func(f *geojson.Feature) (compose.Style, error) {
		out := st.Style
		if st.ColorProperty != "" {
			c, ok := geo.PropertyString(f.Properties, st.ColorProperty)
			if !ok {
				return compose.Style{}, compose.MissingProperty(st.ColorProperty)
			}
			out.Color = compose.HexColor(c)
		}
		for _, r := range st.Rules {
			ok, err := r.Match(f)
			if err != nil {
				return compose.Style{}, err
			}
			if ok {
				out = out.Merge(r.Style)
			}
		}
		return out, nil
	})
}

// Match reports whether the rule applies to f.
func (r RuleSpec) Match(f *geojson.Feature) (bool, error) {
	v, ok := geo.PropertyString(f.Properties, r.Property)
	if !ok {
		return false, compose.MissingProperty(r.Property)
	}
	for _, want := range r.Equals {
		if v == want {
			return true, nil
		}
	}
	for _, sub := range r.Contains {
		if strings.Contains(v, sub) {
			return true, nil
		}
	}
	return false, nil
}

// TooltipTemplate compiles an html/template over feature properties into
// a hover-tooltip annotator. Property values are escaped; referencing a
// property the feature lacks fails the render.
func TooltipTemplate(name, text string) (compose.Annotator, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}
	return compose.AnnotateFunc(func(f *geojson.Feature, l *compose.Feature) error {
		var buf strings.Builder
		if err := t.Execute(&buf, map[string]any(f.Properties)); err != nil {
			return &compose.PropertyError{Feature: -1, Err: fmt.Errorf("%w: %v", compose.ErrMissingProperty, err)}
		}
		l.BindTooltip(buf.String(), false)
		return nil
	}), nil
}

// DeckSlides returns the slides in the form the deck controller tracks.
func (s *Story) DeckSlides() []deck.Slide {
	slides := make([]deck.Slide, len(s.Slides))
	for i, sl := range s.Slides {
		slides[i] = deck.Slide{ID: sl.ID}
	}
	return slides
}

// Slide looks up a slide by id.
func (s *Story) Slide(id string) (Slide, int, bool) {
	for i, sl := range s.Slides {
		if sl.ID == id {
			return sl, i, true
		}
	}
	return Slide{}, 0, false
}
