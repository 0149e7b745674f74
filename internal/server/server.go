package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/joeblew999/plat-story/internal/api"
	"github.com/joeblew999/plat-story/internal/api/reader"
	"github.com/joeblew999/plat-story/internal/db"
	"github.com/joeblew999/plat-story/internal/service"
	"github.com/joeblew999/plat-story/internal/story"
	"github.com/joeblew999/plat-story/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       string
	Deck       string        // story deck YAML file
	DataDir    string        // base directory for dataset files
	WebDir     string        // Path to web/ directory for static files and templates
	DBName     string        // DuckDB database under DataDir/duckdb; empty disables query datasets
	SessionTTL time.Duration // idle reader sessions are dropped after this long
	Logger     *log.Logger
}

// Server is the story HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	logger   *log.Logger
}

// New loads the deck and creates a story server.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-story API", "1.0.0")
	humaConfig.Info.Description = "Scrollytelling map API: story inspection, reader sessions and their Datastar event stream."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		logger:  cfg.Logger,
	}

	if cfg.DBName != "" {
		conn, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: cfg.DBName, Logger: cfg.Logger})
		if err != nil {
			cfg.Logger.Warn("database not available", "err", err)
		} else {
			s.db = conn
		}
	}

	decks, err := service.NewDeckService(ctx, service.DeckConfig{
		Path:    cfg.Deck,
		DataDir: cfg.DataDir,
		DB:      s.db,
		Logger:  cfg.Logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	s.services = &api.Services{
		Deck:     decks,
		Sessions: service.NewSessionService(decks, cfg.SessionTTL, cfg.Logger),
		Source:   service.NewSourceService(cfg.DataDir),
		DB:       s.db,
		Logger:   cfg.Logger,
	}

	// Page and fragment templates
	if cfg.WebDir != "" {
		templatesDir := filepath.Join(cfg.WebDir, "templates")
		if r, err := templates.New(templatesDir); err == nil {
			s.renderer = r
			cfg.Logger.Debug("loaded templates", "dir", templatesDir)
		} else {
			cfg.Logger.Warn("templates not loaded", "dir", templatesDir, "err", err)
		}
	}

	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Decks returns the deck service, for watching the deck file.
func (s *Server) Decks() *service.DeckService {
	return s.services.Deck
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)

	// Reader sessions and their Datastar SSE stream
	reader.NewHandler(s.services.Sessions, s.renderer, s.logger).RegisterRoutes(s.humaAPI)

	// Static files
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/story", s.handleStory)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-story",
		"status":  "running",
		"story":   "/story",
	})
}

// StoryPage is the data the story page template renders.
type StoryPage struct {
	Title       string
	Description string
	Session     string
	Slides      []story.Slide
}

// handleStory opens a reader session and renders the page that drives it.
func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		http.Error(w, "templates not loaded", http.StatusServiceUnavailable)
		return
	}

	sess := s.services.Sessions.Create()
	st := sess.Story()
	page := StoryPage{
		Title:       st.Title,
		Description: st.Description,
		Session:     sess.ID,
		Slides:      st.Slides,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.RenderTo(w, "story", page); err != nil {
		s.logger.Error("rendering story page", "err", err)
	}
}
