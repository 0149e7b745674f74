package geo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// GeometryColumn is the result column QuerySource reads geometry from. It
// must hold GeoJSON text, e.g. ST_AsGeoJSON(geom) AS geometry.
const GeometryColumn = "geometry"

// QuerySource builds a feature collection from a DuckDB query. Every
// column other than GeometryColumn becomes a feature property.
type QuerySource struct {
	DB *sql.DB
}

// Load runs query and converts each row into a feature.
func (q QuerySource) Load(ctx context.Context, query string) (*geojson.FeatureCollection, error) {
	rows, err := q.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for n := 0; rows.Next(); n++ {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}

		f, err := featureFromRow(columns, values)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fc, nil
}

func featureFromRow(columns []string, values []any) (*geojson.Feature, error) {
	var (
		raw   []byte
		props = geojson.Properties{}
	)
	for i, col := range columns {
		if col != GeometryColumn {
			props[col] = values[i]
			continue
		}
		switch v := values[i].(type) {
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		case nil:
		default:
			return nil, fmt.Errorf("column %q: unsupported type %T", col, v)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("missing %q column value", GeometryColumn)
	}

	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}

	f := geojson.NewFeature(g.Geometry())
	f.Properties = props
	return f, nil
}
