// Package reader contains the endpoints a story page drives: one session
// per reader, page events posted as Datastar signals, and a Datastar SSE
// stream carrying map commands back.
package reader

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-story/internal/deck"
	"github.com/joeblew999/plat-story/internal/humastar"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/story"
	"github.com/joeblew999/plat-story/internal/templates"
)

// Browser events dispatched on the page.
const (
	MapEvent   = "story-map"   // detail is a service.MapMessage
	ReadyEvent = "story-ready" // the stream is subscribed; the page may send its layout
)

// Handler serves reader sessions.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	logger   *log.Logger
}

// NewHandler creates a reader handler. renderer may be nil.
func NewHandler(sessions *service.SessionService, renderer *templates.Renderer, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		logger:   logger,
	}
}

// SessionInput selects a session.
type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

// SignalsInput is a session event carrying Datastar signals.
type SignalsInput struct {
	SessionInput
	humastar.SignalsInput
}

// SlideBody is merged into the page's signals after every event.
type SlideBody struct {
	Index int    `json:"index" doc:"Active slide index"`
	Slide string `json:"slide" doc:"Active slide id"`
	State string `json:"state" doc:"Composer state"`
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/reader/sessions", h.Create, huma.OperationTags("reader"))
	huma.Get(api, "/api/v1/reader/sessions/{id}", h.Get, huma.OperationTags("reader"))
	huma.Delete(api, "/api/v1/reader/sessions/{id}", h.Delete, huma.OperationTags("reader"))
	huma.Get(api, "/api/v1/reader/sessions/{id}/stream", h.Stream, huma.OperationTags("reader"))

	huma.Post(api, "/api/v1/reader/sessions/{id}/layout", h.Layout, huma.OperationTags("reader"))
	huma.Post(api, "/api/v1/reader/sessions/{id}/scroll", h.Scroll, huma.OperationTags("reader"))
	huma.Post(api, "/api/v1/reader/sessions/{id}/next", h.Next, huma.OperationTags("reader"))
	huma.Post(api, "/api/v1/reader/sessions/{id}/previous", h.Previous, huma.OperationTags("reader"))
	huma.Post(api, "/api/v1/reader/sessions/{id}/goto", h.Goto, huma.OperationTags("reader"))
	huma.Post(api, "/api/v1/reader/sessions/{id}/moveend", h.MoveEnd, huma.OperationTags("reader"))
}

func (h *Handler) session(id string) (*service.Session, error) {
	sess, ok := h.sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return sess, nil
}

func slideBody(sess *service.Session) *struct{ Body SlideBody } {
	info := sess.Info()
	return &struct{ Body SlideBody }{Body: SlideBody{Index: info.Index, Slide: info.Slide, State: info.State}}
}

// eventError maps a session error to an API error. Render failures have
// already been sent down the stream.
func eventError(err error) error {
	switch {
	case errors.Is(err, story.ErrUnknownSlide), errors.Is(err, deck.ErrSlideOutOfRange):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, deck.ErrOffsetCount):
		return huma.Error400BadRequest(err.Error())
	}
	return huma.Error422UnprocessableEntity("slide cannot be rendered", err)
}

func (h *Handler) Create(ctx context.Context, input *humastar.EmptyInput) (*struct{ Body service.SessionInfo }, error) {
	sess := h.sessions.Create()
	return &struct{ Body service.SessionInfo }{Body: sess.Info()}, nil
}

func (h *Handler) Get(ctx context.Context, input *SessionInput) (*struct{ Body service.SessionInfo }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &struct{ Body service.SessionInfo }{Body: sess.Info()}, nil
}

func (h *Handler) Delete(ctx context.Context, input *SessionInput) (*struct{}, error) {
	if err := h.sessions.Delete(input.ID); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{}{}, nil
}

// Layout reports slide offsets and the viewport. Signals: offsets,
// containertop, width, height.
func (h *Handler) Layout(ctx context.Context, input *SignalsInput) (*struct{ Body SlideBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	err = sess.SetLayout(service.Layout{
		Offsets:        signals.Floats("offsets"),
		ContainerTop:   signals.Float("containertop"),
		ViewportWidth:  signals.Float("width"),
		ViewportHeight: signals.Float("height"),
	})
	if err != nil {
		return nil, eventError(err)
	}
	return slideBody(sess), nil
}

// Scroll reports the window scroll position. Signals: scrolly.
func (h *Handler) Scroll(ctx context.Context, input *SignalsInput) (*struct{ Body SlideBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if _, err := sess.Scroll(signals.Float("scrolly")); err != nil {
		return nil, eventError(err)
	}
	return slideBody(sess), nil
}

func (h *Handler) Next(ctx context.Context, input *SessionInput) (*struct{ Body SlideBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.Next(); err != nil {
		return nil, eventError(err)
	}
	return slideBody(sess), nil
}

func (h *Handler) Previous(ctx context.Context, input *SessionInput) (*struct{ Body SlideBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if err := sess.Previous(); err != nil {
		return nil, eventError(err)
	}
	return slideBody(sess), nil
}

// Goto jumps to a slide. Signals: target.
func (h *Handler) Goto(ctx context.Context, input *SignalsInput) (*struct{ Body SlideBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if err := sess.Goto(signals.String("target")); err != nil {
		return nil, eventError(err)
	}
	return slideBody(sess), nil
}

// MoveEnd reports that the page's camera flight finished. Signals:
// flight, the number of the fly message that ended.
func (h *Handler) MoveEnd(ctx context.Context, input *SignalsInput) (*struct{ Body SlideBody }, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !signals.Has("flight") {
		return nil, huma.Error400BadRequest("missing flight signal")
	}
	if err := sess.MotionComplete(signals.Int("flight")); err != nil {
		return nil, eventError(err)
	}
	return slideBody(sess), nil
}

// Stream sends the session's map commands as "story-map" browser events,
// slide changes as signals and render failures as the error signal.
func (h *Handler) Stream(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}

	return h.Handler.Stream(func(sse humastar.SSE) {
		events := sess.Subscribe()
		defer sess.Unsubscribe(events)
		reloads := service.DefaultBus.Subscribe()
		defer service.DefaultBus.Unsubscribe(reloads)

		if err := sse.DispatchCustomEvent(ReadyEvent, map[string]any{"session": sess.ID}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				h.send(sse, ev)
			case ev := <-reloads:
				h.send(sse, ev)
			}
		}
	}), nil
}

func (h *Handler) send(sse humastar.SSE, ev service.Event) {
	var err error
	switch ev.Type {
	case service.EventMap:
		err = sse.DispatchCustomEvent(MapEvent, ev.Map)
	case service.EventSlide:
		err = sse.MarshalAndPatchSignals(map[string]any{"index": ev.Index, "slide": ev.Slide, "error": ""})
	case service.EventError:
		sse.Error(ev.Message)
	case service.EventReload:
		if html := h.Render("reload-notice", ev); html != "" {
			sse.Patch(html, "#notice")
		} else {
			sse.Signals(map[string]any{"notice": ev.Message})
		}
	}
	if err != nil {
		h.logger.Debug("stream write failed", "err", err)
	}
}
