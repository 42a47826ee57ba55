// Package contentful keeps the catalogue in a single Contentful entry field.
//
// Reads for the public site go through the Content Delivery API. Reads that
// precede a write, the write itself and snapshot access go through the Content
// Management API, whose entry version backs the conditional save.
package contentful

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	DefaultDeliveryURL   = "https://cdn.contentful.com"
	DefaultManagementURL = "https://api.contentful.com"
	DefaultEnvironment   = "master"
	DefaultLocale        = "en-US"

	managementContentType = "application/vnd.contentful.management.v1+json"
)

// Config identifies the entry field holding the catalogue
type Config struct {
	SpaceID         string
	Environment     string
	EntryID         string
	FieldID         string
	Locale          string
	AccessToken     string
	ManagementToken string

	DeliveryURL   string
	ManagementURL string
	Timeout       time.Duration
}

// StatusError is a non-success response from Contentful
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("contentful returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("contentful returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the Contentful delivery and management APIs
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ catalogue.Store = (*Client)(nil)

// NewClient creates a Contentful client, filling in defaults for unset endpoints
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Environment == "" {
		cfg.Environment = DefaultEnvironment
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.DeliveryURL == "" {
		cfg.DeliveryURL = DefaultDeliveryURL
	}
	if cfg.ManagementURL == "" {
		cfg.ManagementURL = DefaultManagementURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.DeliveryURL = strings.TrimRight(cfg.DeliveryURL, "/")
	cfg.ManagementURL = strings.TrimRight(cfg.ManagementURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(zap.String("component", "contentful")),
	}
}

// checkDelivery reports which delivery settings are missing
func (c *Client) checkDelivery() error {
	return c.missing(map[string]string{
		"space id":     c.cfg.SpaceID,
		"entry id":     c.cfg.EntryID,
		"field id":     c.cfg.FieldID,
		"access token": c.cfg.AccessToken,
	})
}

// checkManagement reports which management settings are missing
func (c *Client) checkManagement() error {
	return c.missing(map[string]string{
		"space id":         c.cfg.SpaceID,
		"entry id":         c.cfg.EntryID,
		"field id":         c.cfg.FieldID,
		"management token": c.cfg.ManagementToken,
	})
}

func (c *Client) missing(settings map[string]string) error {
	var names []string
	for _, name := range []string{"space id", "entry id", "field id", "access token", "management token"} {
		value, wanted := settings[name]
		if wanted && value == "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", catalogue.ErrNotConfigured, strings.Join(names, ", "))
}

func (c *Client) entryPath() string {
	return fmt.Sprintf("/spaces/%s/environments/%s/entries/%s", c.cfg.SpaceID, c.cfg.Environment, c.cfg.EntryID)
}

// request describes one API call
type request struct {
	method  string
	url     string
	token   string
	version int64
	body    any
}

// do sends req and decodes a successful response into out
func (c *Client) do(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.token)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", managementContentType)
	}
	if req.version > 0 {
		httpReq.Header.Set("X-Contentful-Version", strconv.FormatInt(req.version, 10))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("contentful request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %s", catalogue.ErrVersionConflict, readMessage(resp.Body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode contentful response: %w", err)
	}
	return nil
}

// readMessage extracts the message of a Contentful error body
func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(data))
}
