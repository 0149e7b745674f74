package service

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-story/internal/compose"
	"github.com/joeblew999/plat-story/internal/geo"
	"github.com/joeblew999/plat-story/internal/story"
)

// DeckConfig locates the deck and its data.
type DeckConfig struct {
	Path    string  // deck YAML file
	DataDir string  // base directory for dataset files
	DB      *sql.DB // optional, for query datasets
	Logger  *log.Logger
}

// DeckService holds the compiled story. Datasets are loaded once; a
// reload recompiles the deck and only loads datasets it has not seen.
type DeckService struct {
	cfg DeckConfig

	mu       sync.RWMutex
	story    *story.Story
	datasets geo.Datasets
}

// NewDeckService loads the deck and its datasets.
func NewDeckService(ctx context.Context, cfg DeckConfig) (*DeckService, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &DeckService{cfg: cfg, datasets: geo.Datasets{}}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Story returns the current compiled story.
func (s *DeckService) Story() *story.Story {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.story
}

// Path returns the deck file path.
func (s *DeckService) Path() string {
	return s.cfg.Path
}

// Reload re-reads the deck file. Readers already in the story keep the
// version they started with.
func (s *DeckService) Reload(ctx context.Context) error {
	d, err := story.Load(s.cfg.Path)
	if err != nil {
		return err
	}

	s.mu.RLock()
	have := s.datasets
	s.mu.RUnlock()

	var missing []geo.Source
	for _, src := range d.Sources() {
		if _, ok := have[src.Name]; !ok {
			missing = append(missing, src)
		}
	}
	loaded, err := geo.Load(ctx, missing, s.cfg.DataDir, s.cfg.DB)
	if err != nil {
		return err
	}

	merged := maps.Clone(have)
	maps.Copy(merged, loaded)

	st, err := story.Compile(d, merged)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", s.cfg.Path, err)
	}
	for _, w := range st.Warnings {
		s.cfg.Logger.Warn(w)
	}

	s.mu.Lock()
	s.story, s.datasets = st, merged
	s.mu.Unlock()

	s.cfg.Logger.Info("deck loaded", "path", s.cfg.Path, "slides", len(st.Slides), "datasets", len(merged))
	return nil
}

// Summary describes the current story.
func (s *DeckService) Summary() StorySummary {
	st := s.Story()
	sum := StorySummary{
		Title:       st.Title,
		Description: st.Description,
		Slides:      make([]SlideSummary, len(st.Slides)),
		Warnings:    st.Warnings,
	}
	for i, sl := range st.Slides {
		sum.Slides[i] = SlideSummary{
			Index:      i,
			ID:         sl.ID,
			Title:      sl.Title,
			Datasets:   sl.Config.Datasets,
			ShowLabels: sl.Config.ShowLabels,
		}
		if b := sl.Config.Bounds; b != nil {
			sum.Slides[i].Bounds = boundSlice(*b)
		}
	}
	return sum
}

// Datasets describes the datasets loaded for the current story.
func (s *DeckService) Datasets() []DatasetInfo {
	st := s.Story()
	infos := make([]DatasetInfo, 0, len(st.Datasets))
	for _, name := range st.Datasets.Names() {
		fc := st.Datasets[name]
		info := DatasetInfo{
			Name:     name,
			Kind:     string(compose.KindGeneric),
			Features: len(fc.Features),
		}
		if spec, ok := st.Deck.Datasets[name]; ok && spec.Kind != "" {
			info.Kind = spec.Kind
		}
		if b, ok := geo.Bound(fc, nil); ok {
			info.Bounds = boundSlice(b)
		}
		infos = append(infos, info)
	}
	return infos
}

func boundSlice(b orb.Bound) []float64 {
	return []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
}
