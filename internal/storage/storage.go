// Package storage opens the catalogue store selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/config"
	"github.com/blakestevenson/watchlog/internal/contentful"
	"github.com/blakestevenson/watchlog/internal/db"
	"go.uber.org/zap"
)

// Backend is an open catalogue store. Close releases its connections.
type Backend struct {
	Store catalogue.Store
	Name  string

	closeFn func()
}

// Close releases the backend's resources
func (b *Backend) Close() {
	if b.closeFn != nil {
		b.closeFn()
	}
}

// Open connects to the configured store backend
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		store := db.NewDocumentStore(pool, db.DefaultDocumentID, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{Store: store, Name: config.StorePostgres, closeFn: pool.Close}, nil

	case config.StoreMemory:
		logger.Warn("Using in-memory catalogue, changes are lost on exit")
		return &Backend{Store: catalogue.NewMemoryStore(nil), Name: config.StoreMemory}, nil

	case config.StoreContentful, "":
		return &Backend{Store: Contentful(cfg, logger), Name: config.StoreContentful}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Contentful builds a Contentful client from the configured credentials
func Contentful(cfg *config.Config, logger *zap.Logger) *contentful.Client {
	return contentful.NewClient(contentful.Config{
		SpaceID:         cfg.ContentfulSpaceID,
		Environment:     cfg.ContentfulEnvironment,
		EntryID:         cfg.ContentfulEntryID,
		FieldID:         cfg.ContentfulFieldID,
		Locale:          cfg.ContentfulLocale,
		AccessToken:     cfg.ContentfulAccessToken,
		ManagementToken: cfg.ContentfulManagementToken,
	}, logger)
}
