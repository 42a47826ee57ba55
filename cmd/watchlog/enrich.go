package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/enrich"
	"github.com/blakestevenson/watchlog/internal/storage"
	"github.com/spf13/cobra"
)

func newEnrichCommand(a *app) *cobra.Command {
	var (
		mediaType  string
		delay      time.Duration
		saveEvery  int
		concurrent int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill in missing countries, directors and creators from TMDB",
		Long: `Enrich walks the catalogue and fetches details for every item that has no
production countries (movies), or no origin country and creator (TV).

Progress is saved every --save-every items, and once more when the run is
interrupted. Rate-limited lookups are retried with backoff.`,
		Example: `  watchlog enrich --type tv --delay 500ms
  watchlog enrich --concurrent 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := optionalType(mediaType)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := a.enricher(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			opts := enrich.Options{
				Type:      t,
				Mode:      enrich.ModeBatch,
				Delay:     delay,
				SaveEvery: saveEvery,
				Limit:     limit,
			}

			var report *enrich.Report
			if concurrent > 0 {
				opts.Concurrency = concurrent
				report, err = svc.RunConcurrent(ctx, opts)
			} else {
				report, err = svc.Run(ctx, opts)
			}
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "candidates: %d  enriched: %d  skipped: %d  failed: %d  saved: %d\n",
					report.Candidates, report.Enriched, report.Skipped, report.Failed, report.Saved)
			}
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(cmd.ErrOrStderr(), "interrupted, progress saved")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", "", "only enrich movie or tv items")
	cmd.Flags().DurationVar(&delay, "delay", enrich.DefaultDelay, "pause between TMDB requests")
	cmd.Flags().IntVar(&saveEvery, "save-every", enrich.DefaultSaveEvery, "save after this many enriched items")
	cmd.Flags().IntVar(&concurrent, "concurrent", 0, "fetch this many items at once and save in one batch")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many candidates")

	return cmd
}

// enricher wires an enrichment service over the configured store and provider
func (a *app) enricher(ctx context.Context) (*enrich.Service, func(), error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}

	backend, err := storage.Open(ctx, cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}

	provider, closeProvider, err := a.metadata()
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	svc := enrich.NewService(catalogue.NewService(backend.Store, a.logger), provider, a.logger)
	return svc, func() {
		closeProvider()
		backend.Close()
	}, nil
}

// optionalType parses a --type flag where empty means every type
func optionalType(s string) (catalogue.MediaType, error) {
	if s == "" {
		return "", nil
	}
	return catalogue.ParseMediaType(s)
}
