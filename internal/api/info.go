package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Deck     string   `json:"deck" doc:"Deck file path"`
	Slides   int      `json:"slides" doc:"Number of slides in the loaded story"`
	Sessions int      `json:"sessions" doc:"Open reader sessions"`
	DB       bool     `json:"db" doc:"Whether query datasets are available"`
	Features []string `json:"features" doc:"Available features"`
}

// RegisterInfo registers the service info route.
func (h *APIHandler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-story",
		Version:  "0.1.0",
		Features: []string{"geojson", "markdown", "datastar"},
	}
	if h.svc != nil {
		if h.svc.Deck != nil {
			body.Deck = h.svc.Deck.Path()
			body.Slides = len(h.svc.Deck.Story().Slides)
		}
		if h.svc.Sessions != nil {
			body.Sessions = len(h.svc.Sessions.List())
		}
		if h.svc.DB != nil {
			body.DB = true
			body.Features = append(body.Features, "duckdb")
		}
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
