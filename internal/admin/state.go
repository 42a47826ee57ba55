// Package admin holds the admin session: the watched list being edited, the
// latest provider search results and the queue of changes not yet saved.
// Reducers never modify the state they are given.
package admin

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
)

var (
	// ErrInvalidRating is returned for ratings outside 0-5 or not on a half point
	ErrInvalidRating = errors.New("rating must be between 0 and 5 in steps of 0.5")

	// ErrUnknownItem is returned when an id is neither watched nor in the search results
	ErrUnknownItem = errors.New("item is not in the catalogue or the search results")
)

// Edit is a rating, review or poster chosen for an item before it is added
type Edit struct {
	Rating     *float64
	Review     *string
	PosterPath *string
}

// State is one admin session
type State struct {
	Type          catalogue.MediaType
	Watched       []catalogue.Item
	SearchResults []catalogue.Item
	Queue         []catalogue.Change
	PendingEdits  map[int64]Edit
}

// NewState starts a session over the watched items of type t
func NewState(t catalogue.MediaType, watched []catalogue.Item) State {
	return State{
		Type:         t,
		Watched:      slices.Clone(watched),
		PendingEdits: map[int64]Edit{},
	}
}

// Dirty reports whether there are unsaved changes
func (s State) Dirty() bool {
	return len(s.Queue) > 0
}

// IsWatched reports whether id is in the watched list
func (s State) IsWatched(id int64) bool {
	return catalogue.IndexOf(s.Watched, id) >= 0
}

func (s State) clone() State {
	s.Watched = slices.Clone(s.Watched)
	s.SearchResults = slices.Clone(s.SearchResults)
	s.Queue = slices.Clone(s.Queue)
	s.PendingEdits = maps.Clone(s.PendingEdits)
	if s.PendingEdits == nil {
		s.PendingEdits = map[int64]Edit{}
	}
	return s
}

// WithSearchResults replaces the search results
func WithSearchResults(s State, results []catalogue.Item) State {
	s = s.clone()
	s.SearchResults = slices.Clone(results)
	return s
}

// ToggleWatched removes a watched item, or adds a search result to the watched
// list carrying any pending edits and stamped with now
func ToggleWatched(s State, id int64, now time.Time) (State, error) {
	s = s.clone()

	if i := catalogue.IndexOf(s.Watched, id); i >= 0 {
		s.Watched = slices.Delete(s.Watched, i, i+1)
		s.Queue = append(s.Queue, catalogue.NewDelete(id))
		return s, nil
	}

	i := catalogue.IndexOf(s.SearchResults, id)
	if i < 0 {
		return s, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}

	item := s.SearchResults[i]
	item.Extra = maps.Clone(item.Extra)
	item.MediaType = s.Type
	item.Rating = 0
	item.Review = ""
	item.DateWatched = now.UTC().Format(time.RFC3339Nano)

	if edit, ok := s.PendingEdits[id]; ok {
		if edit.Rating != nil {
			item.Rating = *edit.Rating
		}
		if edit.Review != nil {
			item.Review = *edit.Review
		}
		if edit.PosterPath != nil && *edit.PosterPath != "" {
			item.PosterPath = *edit.PosterPath
		}
		delete(s.PendingEdits, id)
	}

	s.Watched = append(s.Watched, item)
	s.Queue = append(s.Queue, catalogue.NewAdd(item))
	return s, nil
}

// ValidRating reports whether r is between 0 and 5 on a half point
func ValidRating(r float64) bool {
	return r >= 0 && r <= 5 && math.Mod(r*2, 1) == 0
}

// Rate sets the rating of a watched item, or remembers it for an item not yet added
func Rate(s State, id int64, rating float64) (State, error) {
	if !ValidRating(rating) {
		return s, fmt.Errorf("%w: %v", ErrInvalidRating, rating)
	}
	return edit(s, id, catalogue.FieldRating, rating, func(it *catalogue.Item) { it.Rating = rating },
		func(e *Edit) { e.Rating = &rating })
}

// Review sets the review text
func Review(s State, id int64, text string) (State, error) {
	return edit(s, id, catalogue.FieldReview, text, func(it *catalogue.Item) { it.Review = text },
		func(e *Edit) { e.Review = &text })
}

// SelectPoster chooses the poster shown for an item
func SelectPoster(s State, id int64, path string) (State, error) {
	return edit(s, id, catalogue.FieldPosterPath, path, func(it *catalogue.Item) { it.PosterPath = path },
		func(e *Edit) { e.PosterPath = &path })
}

// ClearQueue forgets the queued changes once they are saved
func ClearQueue(s State) State {
	s = s.clone()
	s.Queue = nil
	return s
}

// edit applies one field to a watched item and queues the update, or records it as pending
func edit(s State, id int64, field string, value any, apply func(*catalogue.Item), remember func(*Edit)) (State, error) {
	s = s.clone()

	if i := catalogue.IndexOf(s.Watched, id); i >= 0 {
		updates := catalogue.Fields{}
		if err := updates.Set(field, value); err != nil {
			return s, err
		}
		apply(&s.Watched[i])
		s.Queue = append(s.Queue, catalogue.NewUpdate(id, updates))
		return s, nil
	}

	pending := s.PendingEdits[id]
	remember(&pending)
	s.PendingEdits[id] = pending
	return s, nil
}
