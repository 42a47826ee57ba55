// Package enrich fills in missing country and credit fields of catalogue items
// from the metadata provider.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/metrics"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode selects how rate-limited provider calls are handled
type Mode string

const (
	// ModeInteractive skips an item as soon as the provider rate limits it
	ModeInteractive Mode = "interactive"
	// ModeBatch waits and retries rate-limited items with backoff
	ModeBatch Mode = "batch"
)

const (
	DefaultDelay            = 300 * time.Millisecond
	DefaultInteractiveDelay = 100 * time.Millisecond
	DefaultSaveEvery        = 50
	DefaultConcurrency      = 4

	// MaxAttempts bounds provider calls per item in batch mode
	MaxAttempts = 5
	// MaxBackoff caps the wait between attempts
	MaxBackoff  = 5 * time.Second
	baseBackoff = 500 * time.Millisecond
)

// Options controls an enrichment run
type Options struct {
	// Type restricts the run to one media type; empty means both
	Type        catalogue.MediaType
	Mode        Mode
	Delay       time.Duration
	SaveEvery   int
	Limit       int
	Concurrency int
}

func (o *Options) normalize() {
	if o.Mode == "" {
		o.Mode = ModeBatch
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
		if o.Mode == ModeInteractive {
			o.Delay = DefaultInteractiveDelay
		}
	}
	if o.SaveEvery <= 0 {
		o.SaveEvery = DefaultSaveEvery
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
}

// Report summarises a run
type Report struct {
	Candidates int `json:"candidates"`
	Enriched   int `json:"enriched"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Saved      int `json:"saved"`
}

// NeedsEnrichment reports whether item lacks its country list or its director (creator for tv)
func NeedsEnrichment(item catalogue.Item) bool {
	if item.ResolvedType() == catalogue.MediaTypeTV {
		return item.Creator == "" || item.OriginCountry == nil
	}
	return item.Director == "" || item.ProductionCountries == nil
}

// FieldsFrom returns the updates that enrich an item of type t from its provider details.
// The country list is always written so an item is not fetched again for it; the
// director or creator only when the provider credits one.
func FieldsFrom(t catalogue.MediaType, details *tmdb.Details) (catalogue.Fields, error) {
	fields := catalogue.Fields{}

	if t == catalogue.MediaTypeTV {
		countries := details.OriginCountry
		if countries == nil {
			countries = []string{}
		}
		if err := fields.Set(catalogue.FieldOriginCountry, countries); err != nil {
			return nil, err
		}
		if creator := tmdb.CreatorOf(details.CreatedBy); creator != "" {
			if err := fields.Set(catalogue.FieldCreator, creator); err != nil {
				return nil, err
			}
		}
		return fields, nil
	}

	countries := details.ProductionCountries
	if countries == nil {
		countries = []catalogue.Country{}
	}
	if err := fields.Set(catalogue.FieldProductionCountries, countries); err != nil {
		return nil, err
	}
	if director := tmdb.DirectorOf(details.Credits); director != "" {
		if err := fields.Set(catalogue.FieldDirector, director); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// Service runs enrichment against the catalogue
type Service struct {
	catalogue catalogue.Service
	provider  tmdb.Provider
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewService creates a new enrichment service
func NewService(cat catalogue.Service, provider tmdb.Provider, logger *zap.Logger) *Service {
	return &Service{
		catalogue: cat,
		provider:  provider,
		logger:    logger.With(zap.String("component", "enrich")),
		sleep:     sleepContext,
	}
}

// Run enriches candidates one at a time, pausing between provider calls and
// saving progress every SaveEvery enriched items
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	opts.normalize()
	metrics.EnrichmentRuns.Inc()

	candidates, err := s.candidates(ctx, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{Candidates: len(candidates)}
	if len(candidates) == 0 {
		s.logger.Info("all items are already enriched")
		return report, nil
	}

	s.logger.Info("enrichment started",
		zap.Int("candidates", len(candidates)),
		zap.String("mode", string(opts.Mode)),
	)

	var pending []catalogue.Change
	var runErr error

	for i, item := range candidates {
		if i > 0 {
			if err := s.sleep(ctx, opts.Delay); err != nil {
				runErr = err
				break
			}
		}

		fields, err := s.fetch(ctx, item, opts.Mode)
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		s.record(report, item, err)
		if err != nil {
			continue
		}

		pending = append(pending, catalogue.NewUpdate(item.ID, fields))
		if len(pending) >= opts.SaveEvery {
			if err := s.flush(ctx, report, pending); err != nil {
				return report, err
			}
			pending = nil
		}

		if (i+1)%10 == 0 {
			s.logger.Info("enrichment progress", zap.Int("processed", i+1), zap.Int("candidates", len(candidates)))
		}
	}

	// Keep what was fetched even when the run was cancelled
	if err := s.flush(context.WithoutCancel(ctx), report, pending); err != nil {
		return report, err
	}

	s.logger.Info("enrichment finished",
		zap.Int("enriched", report.Enriched),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("saved", report.Saved),
	)
	return report, runErr
}

// RunConcurrent issues all provider calls at once, bounded by Concurrency,
// and applies the results in a single batch
func (s *Service) RunConcurrent(ctx context.Context, opts Options) (*Report, error) {
	opts.normalize()
	metrics.EnrichmentRuns.Inc()

	candidates, err := s.candidates(ctx, opts)
	if err != nil {
		return nil, err
	}
	report := &Report{Candidates: len(candidates)}

	fields := make([]catalogue.Fields, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, item := range candidates {
		i, item := i, item
		g.Go(func() error {
			fields[i], errs[i] = s.fetch(ctx, item, opts.Mode)
			return nil
		})
	}
	_ = g.Wait()

	var pending []catalogue.Change
	for i, item := range candidates {
		s.record(report, item, errs[i])
		if errs[i] == nil {
			pending = append(pending, catalogue.NewUpdate(item.ID, fields[i]))
		}
	}

	if err := s.flush(ctx, report, pending); err != nil {
		return report, err
	}
	return report, ctx.Err()
}

func (s *Service) candidates(ctx context.Context, opts Options) ([]catalogue.Item, error) {
	items, err := s.catalogue.AllItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalogue: %w", err)
	}

	var out []catalogue.Item
	for _, item := range items {
		if opts.Type != "" && item.ResolvedType() != opts.Type {
			continue
		}
		if !NeedsEnrichment(item) {
			continue
		}
		out = append(out, item)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// fetch asks the provider for an item's details, retrying rate-limited calls in batch mode
func (s *Service) fetch(ctx context.Context, item catalogue.Item, mode Mode) (catalogue.Fields, error) {
	t := item.ResolvedType()

	for attempt := 1; ; attempt++ {
		details, err := s.provider.Details(ctx, t, item.ID)
		if err == nil {
			return FieldsFrom(t, details)
		}
		if !errors.Is(err, tmdb.ErrRateLimited) || mode == ModeInteractive || attempt >= MaxAttempts {
			return nil, err
		}

		wait := backoff(attempt, err)
		s.logger.Warn("rate limit hit, waiting",
			zap.Int64("id", item.ID),
			zap.String("title", item.DisplayTitle()),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt),
		)
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (s *Service) record(report *Report, item catalogue.Item, err error) {
	switch {
	case err == nil:
		report.Enriched++
		metrics.EnrichmentItems.WithLabelValues("enriched").Inc()
	case errors.Is(err, tmdb.ErrRateLimited), errors.Is(err, tmdb.ErrNotFound):
		report.Skipped++
		metrics.EnrichmentItems.WithLabelValues("skipped").Inc()
		s.logger.Warn("skipping item", zap.Int64("id", item.ID), zap.Error(err))
	default:
		report.Failed++
		metrics.EnrichmentItems.WithLabelValues("failed").Inc()
		s.logger.Warn("failed to enrich item",
			zap.Int64("id", item.ID),
			zap.String("title", item.DisplayTitle()),
			zap.Error(err),
		)
	}
}

func (s *Service) flush(ctx context.Context, report *Report, pending []catalogue.Change) error {
	if len(pending) == 0 {
		return nil
	}
	stats, err := s.catalogue.ApplyChanges(ctx, pending)
	if err != nil {
		return fmt.Errorf("failed to save enrichment: %w", err)
	}
	report.Saved += stats.Updated
	s.logger.Info("enrichment saved", zap.Int("updated", stats.Updated))
	return nil
}

// backoff doubles from baseBackoff per attempt, honouring Retry-After, capped at MaxBackoff
func backoff(attempt int, err error) time.Duration {
	wait := baseBackoff << (attempt - 1)

	var rl *tmdb.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		wait = rl.RetryAfter
	}
	return min(wait, MaxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
