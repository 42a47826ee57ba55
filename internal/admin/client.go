package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blakestevenson/watchlog/internal/auth"
	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the server could not read its catalogue
var ErrUnavailable = errors.New("catalogue is unavailable")

// APIError is a non-2xx answer from the watchlog API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watchlog API returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running watchlog server
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     *zap.Logger
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With(zap.String("component", "admin-client")),
	}
}

// SetToken uses an existing session token
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges the admin password for a session token used by later calls
func (c *Client) Login(ctx context.Context, password string) error {
	var token auth.Token
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, auth.LoginRequest{Password: password}, &token); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.token = token.AccessToken
	return nil
}

// ListPage fetches one catalogue page
func (c *Client) ListPage(ctx context.Context, params catalogue.QueryParams) (*catalogue.QueryResult, error) {
	q := url.Values{}
	if params.Type != "" {
		q.Set("type", string(params.Type))
	}
	if params.Sort != "" {
		q.Set("sort", string(params.Sort))
	}
	if params.Search != "" {
		q.Set("search", params.Search)
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}

	var result catalogue.QueryResult
	if err := c.do(ctx, http.MethodGet, "/api/movies", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAll walks every page of type t
func (c *Client) ListAll(ctx context.Context, t catalogue.MediaType) ([]catalogue.Item, error) {
	var all []catalogue.Item
	for page := 1; ; page++ {
		result, err := c.ListPage(ctx, catalogue.QueryParams{Type: t, Page: page})
		if err != nil {
			return nil, err
		}
		all = append(all, result.Items...)

		// The server answers a failed read with empty pagination
		if result.Pagination == nil || result.Pagination.CurrentPage == 0 {
			return nil, ErrUnavailable
		}
		if !result.Pagination.HasNextPage {
			return all, nil
		}
	}
}

// Stats fetches the stats of type t
func (c *Client) Stats(ctx context.Context, t catalogue.MediaType) (*catalogue.Stats, error) {
	q := url.Values{}
	q.Set("type", string(t))

	var stats catalogue.Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", q, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

type batchResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Stats   catalogue.ApplyStats `json:"stats"`
}

// BatchUpdate sends queued changes in one request
func (c *Client) BatchUpdate(ctx context.Context, changes []catalogue.Change) (*catalogue.ApplyStats, error) {
	var resp batchResponse
	body := map[string][]catalogue.Change{"changes": changes}
	if err := c.do(ctx, http.MethodPost, "/api/batch-update", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Stats, nil
}

// SaveAll replaces the whole stored catalogue with items
func (c *Client) SaveAll(ctx context.Context, items []catalogue.Item) error {
	if items == nil {
		items = []catalogue.Item{}
	}
	return c.do(ctx, http.MethodPost, "/api/save-movies", nil, items, nil)
}

// Flush saves the session's queued changes and returns the state with an empty queue.
// On failure the queue is kept so the changes can be retried.
func (c *Client) Flush(ctx context.Context, s State) (State, *catalogue.ApplyStats, error) {
	if !s.Dirty() {
		return s, &catalogue.ApplyStats{}, nil
	}

	stats, err := c.BatchUpdate(ctx, s.Queue)
	if err != nil {
		return s, nil, err
	}

	c.logger.Info("changes saved",
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("deleted", stats.Deleted),
	)
	return ClearQueue(s), stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the message out of either error envelope the server uses
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}
