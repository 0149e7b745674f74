package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-story/internal/compose"
	"github.com/joeblew999/plat-story/internal/deck"
	"github.com/joeblew999/plat-story/internal/story"
)

// sessionBuffer holds a full activation's commands for a slow page.
const sessionBuffer = 256

// Layout is the slide geometry measured by the page.
type Layout struct {
	Offsets        []float64 // slide offsets within the slide container
	ContainerTop   float64   // container offset within the document
	ViewportWidth  float64
	ViewportHeight float64
}

// Session is one reader's view of the story. All reader events go
// through the session lock, so the controller and composer see them one
// at a time and in arrival order.
type Session struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	story    *story.Story
	ctrl     *deck.Controller
	comp     *compose.Composer
	view     *MapView
	bus      *EventBus
	logger   *log.Logger
	layout   Layout
	started  bool
	lastSeen time.Time
}

func newSession(id string, st *story.Story, logger *log.Logger) *Session {
	now := time.Now()
	s := &Session{
		ID:       id,
		Created:  now,
		story:    st,
		bus:      NewEventBus(sessionBuffer),
		logger:   logger.With("session", id),
		lastSeen: now,
	}
	s.view = &MapView{bus: s.bus}
	s.comp = compose.New(s.view, st.Datasets, st.Table, s.logger)
	s.ctrl = deck.NewController(st.DeckSlides(), s.activate)
	return s
}

func (s *Session) activate(i int, slide deck.Slide) error {
	s.logger.Debug("activating slide", "index", i, "slide", slide.ID)
	s.bus.Publish(Event{Type: EventSlide, Slide: slide.ID, Index: i})
	_, err := s.comp.Activate(s.story.Slides[i].Config)
	return err
}

// surface reports a render failure to the page and returns it.
func (s *Session) surface(err error) error {
	if err == nil {
		return nil
	}
	s.logger.Error("render failed", "err", err)
	s.bus.Publish(Event{Type: EventError, Message: err.Error()})
	return err
}

func (s *Session) touch() {
	s.lastSeen = time.Now()
}

// Subscribe returns a channel of events for this session's page.
func (s *Session) Subscribe() chan Event { return s.bus.Subscribe() }

// Unsubscribe releases a channel from Subscribe.
func (s *Session) Unsubscribe(ch chan Event) { s.bus.Unsubscribe(ch) }

// Story returns the story version this session runs.
func (s *Session) Story() *story.Story { return s.story }

// Current returns the active slide index and id.
func (s *Session) Current() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ctrl.Current()
	if i >= len(s.story.Slides) {
		return i, ""
	}
	return i, s.story.Slides[i].ID
}

// State returns the composer's phase.
func (s *Session) State() compose.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comp.State()
}

// SetLayout records measured slide geometry. The first layout starts
// the story on the current slide.
func (s *Session) SetLayout(l Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.ctrl.SetOffsets(l.Offsets); err != nil {
		return err
	}
	s.layout = l
	s.view.width = l.ViewportWidth

	if s.started {
		return nil
	}
	s.started = true
	return s.surface(s.ctrl.Sync())
}

// Scroll handles a scroll position reported by the page.
func (s *Session) Scroll(scrollY float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	changed, err := s.ctrl.OnScroll(scrollY-s.layout.ContainerTop, s.layout.ViewportHeight)
	return changed, s.surface(err)
}

// Next moves to the following slide, wrapping around.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.surface(s.ctrl.Next())
}

// Previous moves to the preceding slide, wrapping around.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.surface(s.ctrl.Previous())
}

// Goto jumps to a slide by id.
func (s *Session) Goto(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	i, ok := s.ctrl.Index(id)
	if !ok {
		return fmt.Errorf("%w: %q", story.ErrUnknownSlide, id)
	}
	return s.surface(s.ctrl.Goto(i))
}

// MotionComplete is called when the page's camera flight ends. flight
// is the number of the fly message the page finished; completions of
// any other flight are ignored.
func (s *Session) MotionComplete(flight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	fn := s.view.take(flight)
	if fn == nil {
		s.logger.Debug("ignoring motion end", "flight", flight, "awaiting", s.view.awaiting)
		return nil
	}
	return s.surface(fn())
}

// Info summarizes the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		ID:      s.ID,
		Created: s.Created,
		Index:   s.ctrl.Current(),
		State:   s.comp.State().String(),
	}
	if info.Index < len(s.story.Slides) {
		info.Slide = s.story.Slides[info.Index].ID
	}
	return info
}

// MapView is the composer's Map for a remote page: every call becomes a
// MapMessage on the session bus, and motion completion arrives back
// through Session.MotionComplete. Fly messages are numbered so a late
// completion of an earlier flight cannot run the current handler.
type MapView struct {
	bus    *EventBus
	width  float64
	layers []*compose.Layer

	flight    int // number of the last fly message
	awaiting  int // flight the pending handler waits for
	pending   func() error
	pendingID int
	seq       int
}

var _ compose.Map = (*MapView)(nil)

func (v *MapView) publish(msg MapMessage) {
	v.bus.Publish(Event{Type: EventMap, Map: &msg})
}

func (v *MapView) ClearOverlay() {
	v.layers = v.layers[:0]
	v.publish(MapMessage{Op: compose.OpClear, Layer: -1})
}

func (v *MapView) AddLayer(l *compose.Layer) {
	v.layers = append(v.layers, l)
	v.publish(addMessage(len(v.layers)-1, l))
}

func (v *MapView) ShowLabels(l *compose.Layer) {
	for i, have := range v.layers {
		if have == l {
			v.publish(labelsMessage(i, l))
			return
		}
	}
}

func (v *MapView) FlyToBounds(b orb.Bound, opts compose.FlyOptions) {
	v.flight++
	v.publish(MapMessage{
		Op:           compose.OpFly,
		Layer:        -1,
		Flight:       v.flight,
		Bounds:       boundSlice(b),
		PaddingRight: opts.PaddingRight,
	})
}

func (v *MapView) OnceMoveEnd(fn func() error) func() {
	v.seq++
	id := v.seq
	v.pending, v.pendingID = fn, id
	v.awaiting = v.flight + 1
	return func() {
		if v.pendingID == id {
			v.pending = nil
		}
	}
}

func (v *MapView) ViewportWidth() float64 {
	return v.width
}

// take returns the pending handler if it waits for flight.
func (v *MapView) take(flight int) func() error {
	if v.pending == nil || flight != v.awaiting {
		return nil
	}
	fn := v.pending
	v.pending = nil
	return fn
}

// SessionService tracks reader sessions.
type SessionService struct {
	decks  *DeckService
	logger *log.Logger
	ttl    time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a session registry. Sessions idle longer
// than ttl are dropped when new ones are created; zero keeps them.
func NewSessionService(decks *DeckService, ttl time.Duration, logger *log.Logger) *SessionService {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionService{
		decks:    decks,
		logger:   logger,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session on the current story.
func (s *SessionService) Create() *Session {
	sess := newSession(uuid.NewString(), s.decks.Story(), s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.sessions[sess.ID] = sess
	s.logger.Debug("session created", "id", sess.ID, "sessions", len(s.sessions))
	return sess
}

// Get returns a session by id.
func (s *SessionService) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete removes a session.
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %q not found", id)
	}
	delete(s.sessions, id)
	return nil
}

// List returns all sessions, oldest first.
func (s *SessionService) List() []SessionInfo {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	infos := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		infos[i] = sess.Info()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.Before(infos[j].Created) })
	return infos
}

func (s *SessionService) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			s.logger.Debug("session expired", "id", id)
		}
	}
}
