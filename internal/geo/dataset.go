// Package geo loads the feature collections a story draws from and
// computes bounds over them.
//
// Datasets are loaded once at startup and are never mutated afterwards;
// everything downstream holds references into the same collections.
package geo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/paulmach/orb/geojson"
)

// Datasets maps a dataset name to its feature collection.
type Datasets map[string]*geojson.FeatureCollection

// Names returns the dataset names in sorted order.
func (d Datasets) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source describes where a dataset comes from. Exactly one of File or
// Query is set.
type Source struct {
	Name  string
	File  string // GeoJSON file, relative to the data directory
	Query string // DuckDB SQL, see QuerySource
}

// Load reads every source into memory. db may be nil when no source uses
// a query.
func Load(ctx context.Context, sources []Source, dataDir string, db *sql.DB) (Datasets, error) {
	out := make(Datasets, len(sources))
	for _, src := range sources {
		var (
			fc  *geojson.FeatureCollection
			err error
		)
		switch {
		case src.File != "" && src.Query != "":
			return nil, fmt.Errorf("dataset %q: file and query are mutually exclusive", src.Name)
		case src.File != "":
			path := src.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(dataDir, path)
			}
			fc, err = LoadFile(path)
		case src.Query != "":
			if db == nil {
				return nil, fmt.Errorf("dataset %q: query source needs a database", src.Name)
			}
			fc, err = QuerySource{DB: db}.Load(ctx, src.Query)
		default:
			return nil, fmt.Errorf("dataset %q: no file or query", src.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", src.Name, err)
		}
		out[src.Name] = fc
	}
	return out, nil
}

// LoadFile reads a GeoJSON FeatureCollection from disk.
func LoadFile(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geojson: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}
	return fc, nil
}
