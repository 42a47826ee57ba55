package catalogue

import (
	"context"
	"slices"
	"sync"
)

// Document is the whole catalogue as persisted by a Store
type Document struct {
	Items   []Item
	Version int64
}

// Store persists the catalogue as a single document
type Store interface {
	// Load reads the published catalogue for the read path
	Load(ctx context.Context) (*Document, error)

	// LoadForUpdate reads the latest catalogue together with its version
	LoadForUpdate(ctx context.Context) (*Document, error)

	// Save writes doc if the stored version still equals doc.Version, and
	// advances doc.Version on success. Otherwise it returns ErrVersionConflict.
	Save(ctx context.Context, doc *Document) error
}

// MemoryStore is a Store kept in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	items   []Item
	version int64
}

// NewMemoryStore creates a memory store seeded with items
func NewMemoryStore(items []Item) *MemoryStore {
	return &MemoryStore{items: slices.Clone(items), version: 1}
}

// Load returns a copy of the stored catalogue
func (s *MemoryStore) Load(ctx context.Context) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := slices.Clone(s.items)
	if items == nil {
		items = []Item{}
	}
	return &Document{Items: items, Version: s.version}, nil
}

// LoadForUpdate returns a copy of the stored catalogue
func (s *MemoryStore) LoadForUpdate(ctx context.Context) (*Document, error) {
	return s.Load(ctx)
}

// Save replaces the stored catalogue
func (s *MemoryStore) Save(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Version != s.version {
		return ErrVersionConflict
	}
	s.items = slices.Clone(doc.Items)
	s.version++
	doc.Version = s.version
	return nil
}
