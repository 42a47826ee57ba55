package catalogue

import "errors"

var (
	// ErrNotFound is returned when no catalogue item has the requested ID
	ErrNotFound = errors.New("catalogue item not found")

	// ErrDuplicateItem is returned when adding an item whose ID is already catalogued
	ErrDuplicateItem = errors.New("item already exists in catalogue")

	// ErrNotConfigured is returned by a store that lacks the identifiers or credentials it needs
	ErrNotConfigured = errors.New("content store is not configured")

	// ErrVersionConflict is returned when the stored document changed since it was loaded
	ErrVersionConflict = errors.New("catalogue document was modified concurrently")

	// ErrInvalidMediaType is returned when a media type other than movie or tv is requested
	ErrInvalidMediaType = errors.New("invalid media type")
)
