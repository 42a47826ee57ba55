// Command tmdb-plugin serves TMDB metadata to the watchlog server over the
// plugin protocol. The server starts it when METADATA_PLUGIN_PATH points here.
package main

import (
	"fmt"
	"os"

	"github.com/blakestevenson/watchlog/internal/plugins"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/hashicorp/go-plugin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// stdout belongs to the plugin handshake
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "TMDB plugin: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	apiKey := os.Getenv("TMDB_API_KEY")
	if apiKey == "" {
		logger.Warn("TMDB_API_KEY is not set, every lookup will fail")
	}

	client := tmdb.NewClient(tmdb.Config{
		APIKey:            apiKey,
		BaseURL:           os.Getenv("TMDB_BASE_URL"),
		RequestsPerSecond: 4,
	}, logger)

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: plugins.Handshake,
		Plugins: map[string]plugin.Plugin{
			plugins.MetadataPluginName: &plugins.MetadataPlugin{Impl: client},
		},
	})
}
