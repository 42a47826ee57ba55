package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/metrics"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the TMDB v3 API root
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Provider is the metadata source used by the admin tools and enrichment
type Provider interface {
	Search(ctx context.Context, t catalogue.MediaType, query string, page int) (*Page, error)
	Popular(ctx context.Context, t catalogue.MediaType, page int) (*Page, error)
	Details(ctx context.Context, t catalogue.MediaType, id int64) (*Details, error)
}

// Config holds the TMDB client settings
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests; zero disables pacing
	RequestsPerSecond float64
	Burst             int

	// FailureThreshold is the number of consecutive upstream failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// Client is a TMDB API client
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

var _ Provider = (*Client)(nil)

// NewClient creates a new TMDB client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	logger = logger.With(zap.String("component", "tmdb"))
	breakerName := "tmdb-api"
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// Answers that say something about the request, not about TMDB's health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrRateLimited) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
		logger:     logger,
	}
}

// IsConfigured returns true if the API key is set
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

// Search finds movies or shows by title
func (c *Client) Search(ctx context.Context, t catalogue.MediaType, query string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var result Page
	if err := c.get(ctx, "search", "/search/"+string(t), params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Popular lists currently popular movies or shows
func (c *Client) Popular(ctx context.Context, t catalogue.MediaType, page int) (*Page, error) {
	params := url.Values{}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}

	var result Page
	if err := c.get(ctx, "popular", "/"+string(t)+"/popular", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Details fetches one movie or show with its credits and images
func (c *Client) Details(ctx context.Context, t catalogue.MediaType, id int64) (*Details, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits,images")

	var result Details
	endpoint := fmt.Sprintf("/%s/%d", t, id)
	if err := c.get(ctx, "details", endpoint, params, &result); err != nil {
		return nil, err
	}

	c.logger.Debug("got details",
		zap.String("type", string(t)),
		zap.Int64("id", id),
	)
	return &result, nil
}

// get paces, guards and sends one API request
func (c *Client) get(ctx context.Context, name, endpoint string, params url.Values, out any) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	params.Set("api_key", c.cfg.APIKey)
	reqURL := c.cfg.BaseURL + endpoint + "?" + params.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, reqURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.TMDBRequests.WithLabelValues(name, "rejected").Inc()
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		metrics.TMDBRequests.WithLabelValues(name, outcome(err)).Inc()
		return err
	}
	metrics.TMDBRequests.WithLabelValues(name, "ok").Inc()

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.StatusMessage != "" {
		c.logger.Warn("TMDB API error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", errResp.StatusMessage),
		)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: invalid API key", ErrAPIError)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}
}

func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
