// Package service runs the story for readers: it loads and reloads the
// deck, keeps one session per reader and fans map commands out to pages.
package service

import "time"

// StorySummary describes the loaded deck.
type StorySummary struct {
	Title       string         `json:"title" doc:"Story title" example:"Moving Mexico City"`
	Description string         `json:"description,omitempty" doc:"Story description"`
	Slides      []SlideSummary `json:"slides" doc:"Slides in reading order"`
	Warnings    []string       `json:"warnings,omitempty" doc:"Problems found while compiling the deck"`
}

// SlideSummary describes one slide.
type SlideSummary struct {
	Index      int       `json:"index" doc:"Position in the deck" example:"0"`
	ID         string    `json:"id" doc:"Slide identifier" example:"metro-origins"`
	Title      string    `json:"title,omitempty" doc:"Slide heading" example:"A city on rails"`
	Datasets   []string  `json:"datasets" doc:"Datasets shown on this slide"`
	Bounds     []float64 `json:"bounds,omitempty" doc:"Explicit camera target as [west, south, east, north]"`
	ShowLabels bool      `json:"showLabels" doc:"Whether permanent labels are shown after the camera settles"`
}

// DatasetInfo describes a loaded dataset.
type DatasetInfo struct {
	Name     string    `json:"name" doc:"Dataset name" example:"metro"`
	Kind     string    `json:"kind" doc:"Presentation kind" enum:"line,route,station,generic" example:"line"`
	Features int       `json:"features" doc:"Number of features" example:"12"`
	Bounds   []float64 `json:"bounds,omitempty" doc:"Extent as [west, south, east, north]"`
}

// SessionInfo describes a reader session.
type SessionInfo struct {
	ID      string    `json:"id" doc:"Session identifier"`
	Created time.Time `json:"created" doc:"Creation time"`
	Index   int       `json:"index" doc:"Active slide index" example:"0"`
	Slide   string    `json:"slide,omitempty" doc:"Active slide id" example:"title-slide"`
	State   string    `json:"state" doc:"Composer state" example:"idle"`
}

// SourceFile represents a source data file (GeoJSON, etc.).
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"metro.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}
