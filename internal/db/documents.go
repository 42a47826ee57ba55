package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultDocumentID names the row holding the catalogue
const DefaultDocumentID = "catalogue"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS catalogue_documents (
	id         TEXT PRIMARY KEY,
	items      JSONB NOT NULL DEFAULT '[]'::jsonb,
	version    BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DocumentStore keeps the catalogue as one versioned JSONB row
type DocumentStore struct {
	pool   *pgxpool.Pool
	id     string
	logger *zap.Logger
}

var _ catalogue.Store = (*DocumentStore)(nil)

// NewDocumentStore creates a store for the document with the given id
func NewDocumentStore(pool *pgxpool.Pool, id string, logger *zap.Logger) *DocumentStore {
	if id == "" {
		id = DefaultDocumentID
	}
	return &DocumentStore{
		pool:   pool,
		id:     id,
		logger: logger.With(zap.String("component", "document_store")),
	}
}

// EnsureSchema creates the documents table and an empty catalogue row
func (s *DocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create catalogue_documents: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO catalogue_documents (id, items, version) VALUES ($1, '[]'::jsonb, 1)
		 ON CONFLICT (id) DO NOTHING`,
		s.id,
	)
	if err != nil {
		return fmt.Errorf("failed to seed catalogue document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Info("created empty catalogue document", zap.String("id", s.id))
	}
	return nil
}

// Load reads the catalogue row. A missing row is an empty catalogue at version 0.
func (s *DocumentStore) Load(ctx context.Context) (*catalogue.Document, error) {
	var (
		raw     []byte
		version int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT items, version FROM catalogue_documents WHERE id = $1`,
		s.id,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return &catalogue.Document{Items: []catalogue.Item{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalogue document: %w", err)
	}

	var items []catalogue.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalogue document: %w", err)
	}
	if items == nil {
		items = []catalogue.Item{}
	}
	return &catalogue.Document{Items: items, Version: version}, nil
}

// LoadForUpdate reads the catalogue row; reads are always current in PostgreSQL
func (s *DocumentStore) LoadForUpdate(ctx context.Context) (*catalogue.Document, error) {
	return s.Load(ctx)
}

// Save writes doc when the row is still at doc.Version
func (s *DocumentStore) Save(ctx context.Context, doc *catalogue.Document) error {
	items := doc.Items
	if items == nil {
		items = []catalogue.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode catalogue document: %w", err)
	}

	if doc.Version == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO catalogue_documents (id, items, version) VALUES ($1, $2, 1)
			 ON CONFLICT (id) DO NOTHING`,
			s.id, data,
		)
		if err != nil {
			return fmt.Errorf("failed to insert catalogue document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return catalogue.ErrVersionConflict
		}
		doc.Version = 1
		return nil
	}

	var version int64
	err = s.pool.QueryRow(ctx,
		`UPDATE catalogue_documents
		 SET items = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3
		 RETURNING version`,
		s.id, data, doc.Version,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalogue.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update catalogue document: %w", err)
	}

	doc.Version = version
	return nil
}
