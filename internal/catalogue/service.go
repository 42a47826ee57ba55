package catalogue

import (
	"context"
	"errors"
	"fmt"

	"github.com/blakestevenson/watchlog/internal/metrics"
	"go.uber.org/zap"
)

// DefaultWriteAttempts bounds how often a write is retried after a version conflict
const DefaultWriteAttempts = 3

// Service defines the interface for catalogue operations
type Service interface {
	ListItems(ctx context.Context, params QueryParams) *QueryResult
	AllItems(ctx context.Context) ([]Item, error)
	Stats(ctx context.Context, t MediaType) (*Stats, error)
	AddItem(ctx context.Context, item Item) error
	UpdateItem(ctx context.Context, id int64, updates Fields) (*Item, error)
	DeleteItem(ctx context.Context, id int64) error
	ApplyChanges(ctx context.Context, changes []Change) (*ApplyStats, error)
	ReplaceAll(ctx context.Context, items []Item) error
}

// service implements the Service interface
type service struct {
	store         Store
	logger        *zap.Logger
	writeAttempts int
}

// NewService creates a new catalogue service
func NewService(store Store, logger *zap.Logger) Service {
	return &service{
		store:         store,
		logger:        logger.With(zap.String("component", "catalogue")),
		writeAttempts: DefaultWriteAttempts,
	}
}

// ListItems returns one page of the catalogue. A failed read is logged and
// answered with an empty page without pagination.
func (s *service) ListItems(ctx context.Context, params QueryParams) *QueryResult {
	doc, err := s.store.Load(ctx)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("load", "error").Inc()
		if errors.Is(err, ErrNotConfigured) {
			s.logger.Warn("catalogue read skipped, store not configured", zap.Error(err))
		} else {
			s.logger.Error("failed to load catalogue", zap.Error(err))
		}
		return &QueryResult{Items: []Item{}}
	}
	metrics.StoreOperations.WithLabelValues("load", "ok").Inc()

	result := Query(doc.Items, params)
	return &result
}

// AllItems returns the full catalogue
func (s *service) AllItems(ctx context.Context) ([]Item, error) {
	doc, err := s.store.LoadForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}
	return doc.Items, nil
}

// Stats aggregates the catalogue for one media type
func (s *service) Stats(ctx context.Context, t MediaType) (*Stats, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		metrics.StoreOperations.WithLabelValues("load", "error").Inc()
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}
	metrics.StoreOperations.WithLabelValues("load", "ok").Inc()

	stats := Aggregate(doc.Items, t)
	return &stats, nil
}

// AddItem puts a new item at the front of the catalogue
func (s *service) AddItem(ctx context.Context, item Item) error {
	return s.mutate(ctx, "add", func(items []Item) ([]Item, error) {
		if IndexOf(items, item.ID) >= 0 {
			return nil, ErrDuplicateItem
		}
		return append([]Item{item}, items...), nil
	})
}

// UpdateItem merges updates into an existing item
func (s *service) UpdateItem(ctx context.Context, id int64, updates Fields) (*Item, error) {
	var updated Item
	err := s.mutate(ctx, "update", func(items []Item) ([]Item, error) {
		i := IndexOf(items, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		merged, err := MergeFields(items[i], updates)
		if err != nil {
			return nil, err
		}
		items[i] = merged
		updated = merged
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItem removes an item from the catalogue
func (s *service) DeleteItem(ctx context.Context, id int64) error {
	return s.mutate(ctx, "delete", func(items []Item) ([]Item, error) {
		result := Apply(items, []Change{NewDelete(id)})
		if result.Stats.Deleted == 0 {
			return nil, ErrNotFound
		}
		return result.Items, nil
	})
}

// ApplyChanges reconciles a batch of queued changes in one write
func (s *service) ApplyChanges(ctx context.Context, changes []Change) (*ApplyStats, error) {
	var stats ApplyStats
	err := s.mutate(ctx, "batch", func(items []Item) ([]Item, error) {
		result := Apply(items, changes)
		stats = result.Stats
		return result.Items, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BatchChanges.WithLabelValues(string(ChangeAdd)).Add(float64(stats.Added))
	metrics.BatchChanges.WithLabelValues(string(ChangeUpdate)).Add(float64(stats.Updated))
	metrics.BatchChanges.WithLabelValues(string(ChangeDelete)).Add(float64(stats.Deleted))

	s.logger.Info("batch applied",
		zap.Int("changes", len(changes)),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
	)
	return &stats, nil
}

// ReplaceAll overwrites the stored catalogue with items
func (s *service) ReplaceAll(ctx context.Context, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	return s.mutate(ctx, "replace", func([]Item) ([]Item, error) {
		return items, nil
	})
}

// mutate runs a read-modify-write cycle, starting over when another writer got there first
func (s *service) mutate(ctx context.Context, op string, fn func(items []Item) ([]Item, error)) error {
	for attempt := 1; ; attempt++ {
		doc, err := s.store.LoadForUpdate(ctx)
		if err != nil {
			metrics.StoreOperations.WithLabelValues(op, "error").Inc()
			return fmt.Errorf("failed to load catalogue: %w", err)
		}

		items, err := fn(doc.Items)
		if err != nil {
			metrics.StoreOperations.WithLabelValues(op, "rejected").Inc()
			return err
		}
		doc.Items = items

		err = s.store.Save(ctx, doc)
		if err == nil {
			metrics.StoreOperations.WithLabelValues(op, "ok").Inc()
			return nil
		}

		if errors.Is(err, ErrVersionConflict) && attempt < s.writeAttempts {
			metrics.StoreOperations.WithLabelValues(op, "conflict").Inc()
			s.logger.Warn("catalogue changed during write, retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
			)
			continue
		}

		metrics.StoreOperations.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("failed to save catalogue: %w", err)
	}
}
