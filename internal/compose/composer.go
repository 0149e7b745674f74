package compose

import (
	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-story/internal/geo"
)

// State is the phase of the current activation cycle.
type State int

const (
	StateIdle State = iota
	StateClearing
	StateBuilding
	StateCameraMoving
	StateLabelsBound
)

func (s State) String() string {
	switch s {
	case StateClearing:
		return "clearing"
	case StateBuilding:
		return "building"
	case StateCameraMoving:
		return "camera-moving"
	case StateLabelsBound:
		return "labels-bound"
	}
	return "idle"
}

// Token identifies one activation. It stops being valid as soon as the
// next activation begins.
type Token struct {
	gen  uint64
	live *uint64
}

// Valid reports whether the activation is still the current one.
func (t Token) Valid() bool {
	return t.live != nil && *t.live == t.gen
}

// Composer owns the datasets and the overlay of one map. Like the deck
// controller it is driven from a single event loop and is not safe for
// concurrent use.
type Composer struct {
	m        Map
	datasets geo.Datasets
	table    *Table
	logger   *log.Logger

	state   State
	gen     uint64
	pending func()
}

// New creates a composer drawing datasets onto m.
func New(m Map, datasets geo.Datasets, table *Table, logger *log.Logger) *Composer {
	if table == nil {
		table = NewTable()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Composer{m: m, datasets: datasets, table: table, logger: logger}
}

// State returns the phase of the latest activation.
func (c *Composer) State() State {
	return c.state
}

func (c *Composer) setState(s State) {
	if c.state != s {
		c.logger.Debug("composer state", "from", c.state, "to", s)
	}
	c.state = s
}

// Begin invalidates the previous activation, drops its pending motion
// handler and returns a token for the new one.
func (c *Composer) Begin() Token {
	c.gen++
	c.cancelPending()
	return Token{gen: c.gen, live: &c.gen}
}

func (c *Composer) cancelPending() {
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
}

// Activate runs a full cycle for cfg: clear, build, then move the camera.
func (c *Composer) Activate(cfg SlideConfig) ([]*Layer, error) {
	tok := c.Begin()
	layers, err := c.Render(cfg)
	if err != nil {
		c.setState(StateIdle)
		return layers, err
	}
	return layers, c.FocusCamera(cfg, layers, tok)
}

// Render clears the overlay and rebuilds it from cfg's datasets, in
// order. Unknown datasets are skipped. The returned layers are the ones
// added to the map.
func (c *Composer) Render(cfg SlideConfig) ([]*Layer, error) {
	c.setState(StateClearing)
	c.m.ClearOverlay()

	c.setState(StateBuilding)
	layers := make([]*Layer, 0, len(cfg.Datasets))
	for _, name := range cfg.Datasets {
		fc, ok := c.datasets[name]
		if !ok {
			c.logger.Warn("skipping dataset", "dataset", name, "err", ErrMissingDataset)
			continue
		}
		layer, err := c.buildLayer(name, fc, cfg)
		if err != nil {
			return layers, err
		}
		c.m.AddLayer(layer)
		layers = append(layers, layer)
	}
	return layers, nil
}

func (c *Composer) buildLayer(name string, fc *geojson.FeatureCollection, cfg SlideConfig) (*Layer, error) {
	strat := c.table.Lookup(name)

	styler, custom := cfg.Styles[name]
	if !custom {
		styler = strat.Style
	}
	annotate, ok := cfg.Annotations[name]
	if !ok {
		annotate = strat.Annotate
	}

	layer := &Layer{Dataset: name, Features: make([]*Feature, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		lf := &Feature{Index: i, Marker: MarkerPath, Source: f}

		if isPoint(f.Geometry) && !custom && !strat.Circle {
			lf.Marker = MarkerPin
		} else {
			if isPoint(f.Geometry) {
				lf.Marker = MarkerCircle
			}
			st, err := applyStyle(styler, f)
			if err != nil {
				return nil, featureError(name, i, err)
			}
			lf.Style = &st
		}

		if annotate != nil {
			if err := annotate.Annotate(f, lf); err != nil {
				return nil, featureError(name, i, err)
			}
		}
		layer.Features = append(layer.Features, lf)
	}
	return layer, nil
}

func applyStyle(s Styler, f *geojson.Feature) (Style, error) {
	if s == nil {
		return Style{}, nil
	}
	return s.Style(f)
}

func isPoint(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return true
	}
	return false
}

// FocusCamera moves the camera to cfg's bounds, or to the union of the
// layers' bounds when the slide names none. Without a usable target the
// camera stays put. When the flight completes and tok is still current,
// permanent labels are bound if the slide asks for them.
func (c *Composer) FocusCamera(cfg SlideConfig, layers []*Layer, tok Token) error {
	c.cancelPending()

	target, ok := c.cameraTarget(cfg, layers)
	if !ok {
		c.setState(StateIdle)
		return nil
	}

	var opts FlyOptions
	if c.m.ViewportWidth() > WideViewport {
		opts.PaddingRight = SidePanelWidth
	}

	c.setState(StateCameraMoving)
	c.pending = c.m.OnceMoveEnd(func() error {
		if !tok.Valid() {
			return nil
		}
		c.pending = nil
		defer c.setState(StateIdle)
		if !cfg.ShowLabels {
			return nil
		}
		if err := c.bindLabels(cfg, layers); err != nil {
			return err
		}
		c.setState(StateLabelsBound)
		return nil
	})
	c.m.FlyToBounds(target, opts)
	return nil
}

func (c *Composer) cameraTarget(cfg SlideConfig, layers []*Layer) (orb.Bound, bool) {
	if cfg.Bounds != nil {
		if !geo.Valid(*cfg.Bounds) {
			c.logger.Warn("keeping camera", "err", ErrInvalidBounds, "bounds", *cfg.Bounds)
			return orb.Bound{}, false
		}
		return *cfg.Bounds, true
	}

	var ext geo.Extent
	for _, l := range layers {
		if b, ok := l.Bound(); ok {
			ext.Add(b)
		}
	}
	b, ok := ext.Bound()
	if !ok {
		c.logger.Debug("keeping camera", "err", ErrInvalidBounds, "layers", len(layers))
	}
	return b, ok
}

func (c *Composer) bindLabels(cfg SlideConfig, layers []*Layer) error {
	prop := cfg.LabelProperty
	if prop == "" {
		prop = DefaultLabelProperty
	}
	for _, l := range layers {
		for _, f := range l.Features {
			text, ok := geo.PropertyString(f.Source.Properties, prop)
			if !ok {
				return featureError(l.Dataset, f.Index, MissingProperty(prop))
			}
			f.BindTooltip(text, true)
			f.OpenTooltip()
		}
		c.m.ShowLabels(l)
	}
	return nil
}
