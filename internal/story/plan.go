package story

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/joeblew999/plat-story/internal/compose"
)

// ErrUnknownSlide is returned for a slide id the story does not have.
var ErrUnknownSlide = errors.New("unknown slide")

// Plan dry-runs one slide against a recording map of the given viewport
// width. The returned commands include the labels bound once the camera
// settles.
func (s *Story) Plan(id string, width float64, logger *log.Logger) ([]compose.Command, error) {
	slide, _, ok := s.Slide(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlide, id)
	}

	rec := &compose.Recorder{Width: width}
	c := compose.New(rec, s.Datasets, s.Table, logger)
	if _, err := c.Activate(slide.Config); err != nil {
		return rec.Commands, err
	}
	if err := rec.Complete(); err != nil {
		return rec.Commands, err
	}
	return rec.Commands, nil
}

// Check plans every slide and joins the render errors.
func (s *Story) Check(logger *log.Logger) error {
	var errs []error
	for _, sl := range s.Slides {
		if _, err := s.Plan(sl.ID, compose.WideViewport+1, logger); err != nil {
			errs = append(errs, fmt.Errorf("slide %q: %w", sl.ID, err))
		}
	}
	return errors.Join(errs...)
}
