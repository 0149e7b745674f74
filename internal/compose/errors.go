package compose

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDataset marks a slide dataset that was never loaded. The
	// layer is skipped.
	ErrMissingDataset = errors.New("dataset not loaded")
	// ErrInvalidBounds marks an empty or degenerate camera target. The
	// camera stays where it is.
	ErrInvalidBounds = errors.New("invalid bounds")
	// ErrMissingProperty marks a feature lacking a property its style or
	// tooltip depends on.
	ErrMissingProperty = errors.New("missing feature property")
)

// PropertyError reports a style, tooltip or label that needed a feature
// property the feature does not have. It aborts the render pass.
type PropertyError struct {
	Dataset  string
	Feature  int
	Property string
	Err      error
}

// MissingProperty returns a PropertyError for prop.
func MissingProperty(prop string) error {
	return &PropertyError{Feature: -1, Property: prop, Err: ErrMissingProperty}
}

func (e *PropertyError) Error() string {
	msg := e.Err.Error()
	if e.Property != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Property)
	}
	if e.Dataset != "" {
		msg = fmt.Sprintf("dataset %q feature %d: %s", e.Dataset, e.Feature, msg)
	}
	return msg
}

func (e *PropertyError) Unwrap() error { return e.Err }

// featureError attributes err to a dataset feature.
func featureError(dataset string, index int, err error) error {
	var pe *PropertyError
	if errors.As(err, &pe) {
		cp := *pe
		cp.Dataset, cp.Feature = dataset, index
		return &cp
	}
	return fmt.Errorf("dataset %q feature %d: %w", dataset, index, err)
}
