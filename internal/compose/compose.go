// Package compose turns a slide's declarative configuration into map
// layers and camera motion.
//
// The map itself is a collaborator behind the [Map] interface: the
// composer clears and refills its overlay group, asks it to fly to
// bounds, and binds labels once the flight completes. Layers are rebuilt
// from scratch on every activation; nothing is diffed.
package compose

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-story/internal/geo"
)

const (
	// WideViewport is the width above which camera moves leave room for
	// the slide panel.
	WideViewport = 600
	// SidePanelWidth is the trailing horizontal inset on wide viewports.
	SidePanelWidth = 496
	// DefaultLabelProperty is the feature property used for permanent
	// labels when a slide does not name one.
	DefaultLabelProperty = "label"
)

// Style holds path and circle-marker appearance. Field names follow
// Leaflet path options so the client can apply them directly. Opacities
// are pointers so an explicit 0 (hidden) differs from unset.
type Style struct {
	Color       string   `json:"color,omitempty" yaml:"color,omitempty" doc:"Stroke color (CSS)"`
	Weight      float64  `json:"weight,omitempty" yaml:"weight,omitempty" doc:"Stroke width"`
	Opacity     *float64 `json:"opacity,omitempty" yaml:"opacity,omitempty" doc:"Stroke opacity (0-1)"`
	DashArray   string   `json:"dashArray,omitempty" yaml:"dashArray,omitempty" doc:"Stroke dash pattern"`
	Radius      float64  `json:"radius,omitempty" yaml:"radius,omitempty" doc:"Circle marker radius"`
	FillColor   string   `json:"fillColor,omitempty" yaml:"fillColor,omitempty" doc:"Fill color (CSS)"`
	FillOpacity *float64 `json:"fillOpacity,omitempty" yaml:"fillOpacity,omitempty" doc:"Fill opacity (0-1)"`
}

// Opacity returns a pointer to v for Style.Opacity and Style.FillOpacity.
func Opacity(v float64) *float64 { return &v }

// Merge returns s with every set field of o applied on top. Empty strings
// and zero widths count as unset; opacities are unset only when nil.
func (s Style) Merge(o Style) Style {
	if o.Color != "" {
		s.Color = o.Color
	}
	if o.Weight != 0 {
		s.Weight = o.Weight
	}
	if o.Opacity != nil {
		s.Opacity = o.Opacity
	}
	if o.DashArray != "" {
		s.DashArray = o.DashArray
	}
	if o.Radius != 0 {
		s.Radius = o.Radius
	}
	if o.FillColor != "" {
		s.FillColor = o.FillColor
	}
	if o.FillOpacity != nil {
		s.FillOpacity = o.FillOpacity
	}
	return s
}

// Marker is how a feature is drawn.
type Marker string

const (
	MarkerPath   Marker = "path"   // lines and polygons
	MarkerCircle Marker = "circle" // styled circle marker
	MarkerPin    Marker = "marker" // plain point marker
)

// Tooltip is text bound to a rendered feature.
type Tooltip struct {
	Text      string `json:"text" doc:"Tooltip HTML"`
	Permanent bool   `json:"permanent,omitempty" doc:"Always visible label"`
	Open      bool   `json:"open,omitempty" doc:"Shown immediately"`
}

// Feature is the handle for one rendered feature of a layer.
type Feature struct {
	Index   int              `json:"index" doc:"Feature index in the dataset"`
	Marker  Marker           `json:"marker" enum:"path,circle,marker"`
	Style   *Style           `json:"style,omitempty"`
	Tooltip *Tooltip         `json:"tooltip,omitempty"`
	Source  *geojson.Feature `json:"-"`
}

// BindTooltip attaches tooltip text to the feature.
func (f *Feature) BindTooltip(text string, permanent bool) {
	f.Tooltip = &Tooltip{Text: text, Permanent: permanent}
}

// OpenTooltip shows a bound tooltip right away.
func (f *Feature) OpenTooltip() {
	if f.Tooltip != nil {
		f.Tooltip.Open = true
	}
}

// Layer is the rendered form of one dataset.
type Layer struct {
	Dataset  string     `json:"dataset" doc:"Dataset name"`
	Features []*Feature `json:"features"`
}

// Bound returns the union of the layer's feature bounds.
func (l *Layer) Bound() (orb.Bound, bool) {
	var ext geo.Extent
	for _, f := range l.Features {
		if b, ok := geo.FeatureBound(f.Source); ok {
			ext.Add(b)
		}
	}
	return ext.Bound()
}

// SlideConfig is the rendering intent of one slide.
type SlideConfig struct {
	Datasets      []string
	Bounds        *orb.Bound
	Styles        map[string]Styler
	Annotations   map[string]Annotator
	ShowLabels    bool
	LabelProperty string
}

// FlyOptions tunes a camera transition.
type FlyOptions struct {
	PaddingRight float64 `json:"paddingRight,omitempty" doc:"Trailing inset in pixels"`
}

// Map is the mapping library as seen by the composer.
type Map interface {
	// ClearOverlay removes every layer from the dynamic overlay group.
	ClearOverlay()
	// AddLayer adds a built layer to the overlay group.
	AddLayer(l *Layer)
	// ShowLabels displays the permanent tooltips bound on l's features.
	ShowLabels(l *Layer)
	// FlyToBounds animates the camera. Completion is reported through
	// the handler registered with OnceMoveEnd.
	FlyToBounds(b orb.Bound, opts FlyOptions)
	// OnceMoveEnd registers a handler for the next motion completion.
	// The returned func deregisters it if it has not fired yet.
	OnceMoveEnd(fn func() error) (cancel func())
	// ViewportWidth is the current map viewport width in pixels.
	ViewportWidth() float64
}
