// Package story reads a story deck file and compiles it into slides the
// deck controller and the layer composer can run.
//
// A deck is YAML. Datasets name their source and built-in treatment;
// slides list the datasets they show, where the camera goes, and any
// per-dataset style rules or tooltip templates.
package story

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-story/internal/compose"
	"github.com/joeblew999/plat-story/internal/geo"
)

// Deck is the parsed deck file.
type Deck struct {
	Title           string                 `yaml:"title" json:"title"`
	Description     string                 `yaml:"description,omitempty" json:"description,omitempty"`
	DefaultDatasets []string               `yaml:"defaultDatasets,omitempty" json:"defaultDatasets,omitempty"`
	Datasets        map[string]DatasetSpec `yaml:"datasets" json:"datasets"`
	Slides          []SlideSpec            `yaml:"slides" json:"slides"`
}

// DatasetSpec declares one dataset.
type DatasetSpec struct {
	File       string             `yaml:"file,omitempty" json:"file,omitempty"`
	Query      string             `yaml:"query,omitempty" json:"query,omitempty"`
	Kind       string             `yaml:"kind,omitempty" json:"kind,omitempty"`
	System     string             `yaml:"system,omitempty" json:"system,omitempty"`
	Color      string             `yaml:"color,omitempty" json:"color,omitempty"`
	Properties compose.Properties `yaml:"properties,omitempty" json:"-"`
}

// SlideSpec declares one slide.
type SlideSpec struct {
	ID       string               `yaml:"id"`
	Title    string               `yaml:"title,omitempty"`
	Body     string               `yaml:"body,omitempty"`
	Datasets []string             `yaml:"datasets,omitempty"`
	Bounds   []float64            `yaml:"bounds,omitempty"` // west, south, east, north
	Fit      *FitSpec             `yaml:"fit,omitempty"`
	Styles   map[string]StyleSpec `yaml:"styles,omitempty"`
	Tooltips map[string]string    `yaml:"tooltips,omitempty"`
	Labels   *LabelSpec           `yaml:"labels,omitempty"`
}

// FitSpec frames the camera on the features of a dataset.
type FitSpec struct {
	Dataset string    `yaml:"dataset"`
	Where   geo.Where `yaml:"where,omitempty"`
}

// LabelSpec turns on permanent labels once the camera settles.
type LabelSpec struct {
	Property string `yaml:"property,omitempty"`
}

// StyleSpec is a declarative per-feature style: a base style, an
// optional stroke color read from a property, and conditional rules.
// Rules overlay their non-zero fields, in order.
type StyleSpec struct {
	compose.Style `yaml:",inline"`
	ColorProperty string     `yaml:"colorProperty,omitempty"`
	Rules         []RuleSpec `yaml:"rules,omitempty"`
}

// RuleSpec applies its style when the property equals, or contains, any
// of the listed values.
type RuleSpec struct {
	Property      string   `yaml:"property"`
	Equals        []string `yaml:"equals,omitempty"`
	Contains      []string `yaml:"contains,omitempty"`
	compose.Style `yaml:",inline"`
}

// Parse decodes a deck. Unknown keys are rejected.
func Parse(data []byte) (*Deck, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var d Deck
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("parsing deck: %w", err)
	}
	return &d, nil
}

// Load reads and parses a deck file.
func Load(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading deck: %w", err)
	}
	return Parse(data)
}

// Sources lists the deck's datasets as loader sources, sorted by name.
func (d *Deck) Sources() []geo.Source {
	names := make([]string, 0, len(d.Datasets))
	for name := range d.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]geo.Source, 0, len(names))
	for _, name := range names {
		spec := d.Datasets[name]
		sources = append(sources, geo.Source{Name: name, File: spec.File, Query: spec.Query})
	}
	return sources
}
