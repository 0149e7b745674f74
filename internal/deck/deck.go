// Package deck tracks which slide of a story is active.
//
// A Controller turns a continuous scroll position into a discrete slide
// index and activates a slide whenever the index changes. It is not safe
// for concurrent use: callers serialize events the way a browser event
// loop would.
package deck

import (
	"errors"
	"fmt"
)

// TriggerFraction places the activation line 70% down the viewport: a
// slide becomes active once its top crosses that line.
const TriggerFraction = 0.7

var (
	// ErrSlideOutOfRange is returned when an index does not name a slide.
	ErrSlideOutOfRange = errors.New("slide index out of range")
	// ErrOffsetCount is returned when measured offsets do not match the slides.
	ErrOffsetCount = errors.New("offset count does not match slides")
)

// Slide is one section of the story text.
type Slide struct {
	ID      string
	Offset  float64 // document offset relative to the slide container
	Visible bool
}

// ActivateFunc is called with the newly active slide.
type ActivateFunc func(index int, slide Slide) error

// ComputeIndexFromScroll returns the index of the first slide whose top
// has crossed the trigger line. When no slide qualifies it returns
// len(slides), which callers must treat as "keep the current slide".
func ComputeIndexFromScroll(scrollOffset, viewportHeight float64, slides []Slide) int {
	for i, s := range slides {
		pos := s.Offset - scrollOffset + viewportHeight*TriggerFraction
		if pos >= 0 {
			return i
		}
	}
	return len(slides)
}

// Controller owns the current slide index for one reader.
type Controller struct {
	slides   []Slide
	current  int
	activate ActivateFunc
}

// NewController creates a controller positioned on the first slide.
// activate may be nil.
func NewController(slides []Slide, activate ActivateFunc) *Controller {
	return &Controller{
		slides:   append([]Slide(nil), slides...),
		activate: activate,
	}
}

// Current returns the active slide index.
func (c *Controller) Current() int {
	return c.current
}

// Len returns the number of slides.
func (c *Controller) Len() int {
	return len(c.slides)
}

// Slides returns a copy of the slides with their visibility.
func (c *Controller) Slides() []Slide {
	return append([]Slide(nil), c.slides...)
}

// Index returns the position of the slide with the given id.
func (c *Controller) Index(id string) (int, bool) {
	for i, s := range c.slides {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// SetOffsets records freshly measured slide offsets, in slide order.
func (c *Controller) SetOffsets(offsets []float64) error {
	if len(offsets) != len(c.slides) {
		return fmt.Errorf("%w: got %d for %d slides", ErrOffsetCount, len(offsets), len(c.slides))
	}
	for i, off := range offsets {
		c.slides[i].Offset = off
	}
	return nil
}

// OnScroll recomputes the index for a scroll position and activates the
// new slide when it changed. It reports whether an activation happened.
// Scrolling past the last trigger point keeps the current slide.
func (c *Controller) OnScroll(scrollOffset, viewportHeight float64) (bool, error) {
	i := ComputeIndexFromScroll(scrollOffset, viewportHeight, c.slides)
	if i >= len(c.slides) || i == c.current {
		return false, nil
	}
	c.current = i
	return true, c.Sync()
}

// Next advances to the following slide, wrapping to the first.
func (c *Controller) Next() error {
	if len(c.slides) == 0 {
		return nil
	}
	c.current++
	if c.current == len(c.slides) {
		c.current = 0
	}
	return c.Sync()
}

// Previous retreats to the preceding slide, wrapping to the last.
func (c *Controller) Previous() error {
	if len(c.slides) == 0 {
		return nil
	}
	c.current--
	if c.current < 0 {
		c.current = len(c.slides) - 1
	}
	return c.Sync()
}

// Goto jumps to a slide by index.
func (c *Controller) Goto(index int) error {
	if index < 0 || index >= len(c.slides) {
		return fmt.Errorf("%w: %d of %d", ErrSlideOutOfRange, index, len(c.slides))
	}
	c.current = index
	return c.Sync()
}

// Sync shows only the current slide and activates it.
func (c *Controller) Sync() error {
	if len(c.slides) == 0 {
		return nil
	}
	for i := range c.slides {
		c.slides[i].Visible = i == c.current
	}
	if c.activate == nil {
		return nil
	}
	return c.activate(c.current, c.slides[c.current])
}
