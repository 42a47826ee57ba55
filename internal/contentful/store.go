package contentful

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type sys struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// deliveryEntry is an entry as served by the delivery API for a single locale
type deliveryEntry struct {
	Sys    sys                        `json:"sys"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// managementEntry is an entry with every field keyed by locale
type managementEntry struct {
	Sys    sys                                   `json:"sys"`
	Fields map[string]map[string]json.RawMessage `json:"fields"`
}

// Load reads the published catalogue from the delivery API
func (c *Client) Load(ctx context.Context) (*catalogue.Document, error) {
	if err := c.checkDelivery(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("locale", c.cfg.Locale)
	query.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))

	var entry deliveryEntry
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.cfg.DeliveryURL + c.entryPath() + "?" + query.Encode(),
		token:  c.cfg.AccessToken,
	}, &entry)
	if err != nil {
		return nil, err
	}

	items, err := decodeItems(entry.Fields[c.cfg.FieldID])
	if err != nil {
		return nil, err
	}
	return &catalogue.Document{Items: items, Version: entry.Sys.Revision}, nil
}

// LoadForUpdate reads the latest draft of the catalogue from the management API
func (c *Client) LoadForUpdate(ctx context.Context) (*catalogue.Document, error) {
	if err := c.checkManagement(); err != nil {
		return nil, err
	}

	entry, err := c.getEntry(ctx)
	if err != nil {
		return nil, err
	}

	items, err := decodeItems(entry.Fields[c.cfg.FieldID][c.cfg.Locale])
	if err != nil {
		return nil, err
	}
	return &catalogue.Document{Items: items, Version: entry.Sys.Version}, nil
}

// Save writes doc into the entry field and publishes the entry. The update is
// sent with doc.Version so Contentful rejects it if the entry moved in between.
// Other fields and locales of the entry are left as they are.
func (c *Client) Save(ctx context.Context, doc *catalogue.Document) error {
	if err := c.checkManagement(); err != nil {
		return err
	}

	entry, err := c.getEntry(ctx)
	if err != nil {
		return err
	}
	if entry.Sys.Version != doc.Version {
		return fmt.Errorf("%w: entry is at version %d, loaded %d", catalogue.ErrVersionConflict, entry.Sys.Version, doc.Version)
	}

	items := doc.Items
	if items == nil {
		items = []catalogue.Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode catalogue: %w", err)
	}

	if entry.Fields == nil {
		entry.Fields = make(map[string]map[string]json.RawMessage)
	}
	if entry.Fields[c.cfg.FieldID] == nil {
		entry.Fields[c.cfg.FieldID] = make(map[string]json.RawMessage)
	}
	entry.Fields[c.cfg.FieldID][c.cfg.Locale] = raw

	var updated managementEntry
	err = c.do(ctx, request{
		method:  http.MethodPut,
		url:     c.cfg.ManagementURL + c.entryPath(),
		token:   c.cfg.ManagementToken,
		version: doc.Version,
		body:    map[string]any{"fields": entry.Fields},
	}, &updated)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	var published managementEntry
	err = c.do(ctx, request{
		method:  http.MethodPut,
		url:     c.cfg.ManagementURL + c.entryPath() + "/published",
		token:   c.cfg.ManagementToken,
		version: updated.Sys.Version,
	}, &published)
	if err != nil {
		return fmt.Errorf("failed to publish entry: %w", err)
	}

	doc.Version = published.Sys.Version
	c.logger.Info("catalogue published",
		zap.Int("items", len(items)),
		zap.Int64("version", doc.Version),
	)
	return nil
}

func (c *Client) getEntry(ctx context.Context) (*managementEntry, error) {
	var entry managementEntry
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.cfg.ManagementURL + c.entryPath(),
		token:  c.cfg.ManagementToken,
	}, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &entry, nil
}

// decodeItems decodes a field value; a missing or null field is an empty catalogue
func decodeItems(raw json.RawMessage) ([]catalogue.Item, error) {
	var items []catalogue.Item
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to decode catalogue field: %w", err)
		}
	}
	if items == nil {
		items = []catalogue.Item{}
	}
	return items, nil
}
