// Command watchlog is the operator CLI: metadata enrichment, backups and
// restores, quick catalogue edits and the posts feed build.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/blakestevenson/watchlog/internal/admin"
	"github.com/blakestevenson/watchlog/internal/config"
	"github.com/blakestevenson/watchlog/internal/logging"
	"github.com/blakestevenson/watchlog/internal/plugins"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultAPIURL = "http://localhost:3000"

// app carries what the subcommands share. Fields that are already set are
// left alone by setup, which lets tests inject them.
type app struct {
	apiURL   string
	password string
	verbose  bool

	cfg      *config.Config
	logger   *zap.Logger
	provider tmdb.Provider
}

func main() {
	_ = godotenv.Load()

	if err := newRootCommand(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchlog",
		Short: "Manage the watchlog catalogue",
		Long: `watchlog manages the catalogue of watched movies and TV shows.

Edits go through the running API server. Enrichment and snapshot commands
talk to the configured store directly and read the same environment as the
server (STORE_BACKEND, CONTENTFUL_*, TMDB_API_KEY, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.apiURL, "api", envOr("WATCHLOG_API_URL", defaultAPIURL), "base URL of the watchlog API")
	flags.StringVar(&a.password, "password", os.Getenv("ADMIN_PASSWORD"), "admin password, when the API requires one")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	cmd.AddCommand(
		newEnrichCommand(a),
		newSnapshotsCommand(a),
		newRestoreCommand(a),
		newCheckCommand(a),
		newStatsCommand(a),
		newSearchCommand(a),
		newAddCommand(a),
		newRemoveCommand(a),
		newRateCommand(a),
		newReviewCommand(a),
		newPosterCommand(a),
		newPostsCommand(a),
		newHashPasswordCommand(),
	)

	return cmd
}

func (a *app) setup() error {
	if a.logger != nil {
		return nil
	}
	logger, err := logging.New(logging.Options{Development: a.verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

// config loads the server configuration on first use
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// metadata returns the configured metadata provider and a func that releases it
func (a *app) metadata() (tmdb.Provider, func(), error) {
	if a.provider != nil {
		return a.provider, func() {}, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}

	if cfg.MetadataPluginPath != "" {
		loaded, err := plugins.Load(cfg.MetadataPluginPath, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return loaded, loaded.Close, nil
	}

	client := tmdb.NewClient(tmdb.Config{
		APIKey:            cfg.TMDBAPIKey,
		RequestsPerSecond: cfg.TMDBRateLimit,
	}, a.logger)
	if !client.IsConfigured() {
		return nil, nil, tmdb.ErrAPIKeyMissing
	}
	return client, func() {}, nil
}

// api returns a client for the API server, logged in when a password is set
func (a *app) api(ctx context.Context) (*admin.Client, error) {
	client := admin.NewClient(a.apiURL, a.logger)
	if a.password != "" {
		if err := client.Login(ctx, a.password); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
