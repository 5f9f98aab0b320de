package domain

import "errors"

var (
	// ErrNoItems signals that every source came back empty.
	ErrNoItems = errors.New("no items fetched from any source")
	// ErrNothingAnnotated signals that items were fetched but none could be annotated.
	ErrNothingAnnotated = errors.New("no item could be annotated")
	// ErrNotConfigured marks a collaborator disabled by configuration.
	ErrNotConfigured = errors.New("collaborator not configured")
	// ErrInvalidAnnotation marks an analysis response missing required structure.
	ErrInvalidAnnotation = errors.New("invalid annotation")
)
