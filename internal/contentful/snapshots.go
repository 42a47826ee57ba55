package contentful

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
)

// ErrSnapshotEmpty is returned when a snapshot does not hold the catalogue field
var ErrSnapshotEmpty = errors.New("snapshot has no catalogue data")

// Snapshot is a previously published version of the catalogue entry
type Snapshot struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []catalogue.Item
}

type snapshotResource struct {
	Sys      sys                                   `json:"sys"`
	Snapshot *managementEntry                      `json:"snapshot"`
	Fields   map[string]map[string]json.RawMessage `json:"fields"`
}

type snapshotCollection struct {
	Items []snapshotResource `json:"items"`
}

// ListSnapshots returns the most recent snapshots of the catalogue entry
func (c *Client) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if err := c.checkManagement(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var coll snapshotCollection
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.cfg.ManagementURL + c.entryPath() + "/snapshots?" + query.Encode(),
		token:  c.cfg.ManagementToken,
	}, &coll)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(coll.Items))
	for _, res := range coll.Items {
		snap, err := c.toSnapshot(res)
		if err != nil && !errors.Is(err, ErrSnapshotEmpty) {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// GetSnapshot returns one snapshot with its catalogue data
func (c *Client) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	if err := c.checkManagement(); err != nil {
		return nil, err
	}

	var res snapshotResource
	err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.cfg.ManagementURL + c.entryPath() + "/snapshots/" + url.PathEscape(id),
		token:  c.cfg.ManagementToken,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}

	snap, err := c.toSnapshot(res)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// toSnapshot reads the catalogue field from the embedded entry, falling back to
// top-level fields for older payloads
func (c *Client) toSnapshot(res snapshotResource) (Snapshot, error) {
	snap := Snapshot{ID: res.Sys.ID, CreatedAt: res.Sys.CreatedAt, UpdatedAt: res.Sys.UpdatedAt}

	fields := res.Fields
	if res.Snapshot != nil && res.Snapshot.Fields != nil {
		fields = res.Snapshot.Fields
	}

	raw, ok := fields[c.cfg.FieldID][c.cfg.Locale]
	if !ok {
		snap.Items = []catalogue.Item{}
		return snap, fmt.Errorf("%w: %s", ErrSnapshotEmpty, res.Sys.ID)
	}

	items, err := decodeItems(raw)
	if err != nil {
		return snap, err
	}
	snap.Items = items
	return snap, nil
}
