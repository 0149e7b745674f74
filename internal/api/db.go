package api

import (
	"context"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-story/internal/geo"
)

// TablesBody lists the DuckDB tables a query dataset can read.
type TablesBody struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

// PreviewInput is a query dataset to try before adding it to a deck.
type PreviewInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"SQL query with a GeoJSON geometry column" example:"SELECT name, ST_AsGeoJSON(geom) AS geometry FROM stations"`
	}
}

// PreviewBody summarizes the features a query produces.
type PreviewBody struct {
	Features   int       `json:"features" doc:"Number of features returned"`
	Properties []string  `json:"properties" doc:"Property names of the first feature"`
	Bounds     []float64 `json:"bounds,omitempty" doc:"Extent as [west, south, east, north]"`
}

// RegisterDB registers routes for authoring query datasets.
func (h *APIHandler) RegisterDB(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("datasets"))
	huma.Post(api, "/api/v1/datasets/preview", h.PreviewQuery, huma.OperationTags("datasets"))
}

// ListTables returns all DuckDB tables.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*struct{ Body TablesBody }, error) {
	if h.svc == nil || h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.svc.DB.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return &struct{ Body TablesBody }{Body: TablesBody{Tables: tables}}, nil
}

// PreviewQuery runs a query dataset and reports what it would load.
func (h *APIHandler) PreviewQuery(ctx context.Context, input *PreviewInput) (*struct{ Body PreviewBody }, error) {
	if h.svc == nil || h.svc.DB == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	fc, err := geo.QuerySource{DB: h.svc.DB}.Load(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}

	body := PreviewBody{Features: len(fc.Features), Properties: []string{}}
	if len(fc.Features) > 0 {
		for k := range fc.Features[0].Properties {
			body.Properties = append(body.Properties, k)
		}
		slices.Sort(body.Properties)
	}
	if b, ok := geo.Bound(fc, nil); ok {
		body.Bounds = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	}
	return &struct{ Body PreviewBody }{Body: body}, nil
}
