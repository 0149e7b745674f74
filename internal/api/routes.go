// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-story/internal/compose"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/story"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Deck     *service.DeckService
	Sessions *service.SessionService
	Source   *service.SourceService
	DB       *sql.DB
	Logger   *log.Logger
}

// Types

type SlideInput struct {
	ID    string  `path:"id" doc:"Slide ID" example:"metro-origins"`
	Width float64 `query:"width" default:"1024" minimum:"0" doc:"Viewport width used for camera padding"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type PlanBody struct {
	Slide    string            `json:"slide" doc:"Slide ID"`
	Index    int               `json:"index" doc:"Position in the deck"`
	Commands []compose.Command `json:"commands" doc:"Map commands issued by one activation, including labels bound after the camera settles"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST handler on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterStory registers story inspection routes.
func (h *APIHandler) RegisterStory(api huma.API) {
	huma.Get(api, "/api/v1/story", h.GetStory, huma.OperationTags("story"))
	huma.Get(api, "/api/v1/story/slides/{id}/plan", h.GetPlan, huma.OperationTags("story"))
	huma.Get(api, "/api/v1/datasets", h.GetDatasets, huma.OperationTags("story"))
	huma.Post(api, "/api/v1/story/reload", h.Reload, huma.OperationTags("story"))
}

// RegisterSources registers source listing routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	huma.Get(api, "/api/v1/sources", h.GetSources, huma.OperationTags("sources"))
}

// RegisterSessions registers reader session listing.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/reader/sessions", h.GetSessions, huma.OperationTags("reader"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetStory(ctx context.Context, input *struct{}) (*struct{ Body service.StorySummary }, error) {
	if h.svc == nil || h.svc.Deck == nil {
		return nil, huma.Error503ServiceUnavailable("story not loaded")
	}
	return &struct{ Body service.StorySummary }{Body: h.svc.Deck.Summary()}, nil
}

func (h *APIHandler) GetPlan(ctx context.Context, input *SlideInput) (*struct{ Body PlanBody }, error) {
	if h.svc == nil || h.svc.Deck == nil {
		return nil, huma.Error503ServiceUnavailable("story not loaded")
	}
	st := h.svc.Deck.Story()
	cmds, err := st.Plan(input.ID, input.Width, h.svc.Logger)
	switch {
	case errors.Is(err, story.ErrUnknownSlide):
		return nil, huma.Error404NotFound("slide not found")
	case err != nil:
		return nil, huma.Error422UnprocessableEntity("slide cannot be rendered", err)
	}
	_, index, _ := st.Slide(input.ID)
	return &struct{ Body PlanBody }{Body: PlanBody{Slide: input.ID, Index: index, Commands: cmds}}, nil
}

func (h *APIHandler) GetDatasets(ctx context.Context, input *struct{}) (*struct{ Body []service.DatasetInfo }, error) {
	if h.svc == nil || h.svc.Deck == nil {
		return &struct{ Body []service.DatasetInfo }{Body: []service.DatasetInfo{}}, nil
	}
	return &struct{ Body []service.DatasetInfo }{Body: h.svc.Deck.Datasets()}, nil
}

func (h *APIHandler) Reload(ctx context.Context, input *struct{}) (*struct{ Body MessageBody }, error) {
	if h.svc == nil || h.svc.Deck == nil {
		return nil, huma.Error503ServiceUnavailable("story not loaded")
	}
	if err := h.svc.Deck.Reload(ctx); err != nil {
		return nil, huma.Error422UnprocessableEntity("deck reload failed", err)
	}
	service.DefaultBus.Publish(service.Event{Type: service.EventReload, Message: "deck reloaded"})
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Deck reloaded"}}, nil
}

func (h *APIHandler) GetSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc == nil || h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	sources, err := h.svc.Source.List()
	if err != nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	return &struct{ Body []service.SourceFile }{Body: sources}, nil
}

func (h *APIHandler) GetSessions(ctx context.Context, input *struct{}) (*struct{ Body []service.SessionInfo }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return &struct{ Body []service.SessionInfo }{Body: []service.SessionInfo{}}, nil
	}
	return &struct{ Body []service.SessionInfo }{Body: h.svc.Sessions.List()}, nil
}
