package plugins

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/hashicorp/go-plugin"
	"go.uber.org/zap"
)

// LoadedProvider is a metadata provider served by a running plugin process
type LoadedProvider struct {
	tmdb.Provider

	path      string
	rawClient *plugin.Client
	logger    *zap.Logger
}

// Load starts the plugin executable at path and dispenses its metadata provider
func Load(path string, logger *zap.Logger) (*LoadedProvider, error) {
	logger = logger.With(zap.String("component", "plugin-manager"))

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("plugin executable not found: %w", err)
	}

	logger.Info("Starting plugin process", zap.String("executable", path))

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap,
		Cmd:             exec.Command(path),
		AllowedProtocols: []plugin.Protocol{
			plugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to get RPC client: %w", err)
	}

	raw, err := rpcClient.Dispense(MetadataPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	provider, ok := raw.(tmdb.Provider)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not provide metadata (got %T)", path, raw)
	}

	logger.Info("Plugin loaded successfully", zap.String("executable", path))

	return &LoadedProvider{
		Provider:  provider,
		path:      path,
		rawClient: client,
		logger:    logger,
	}, nil
}

// Close stops the plugin process
func (p *LoadedProvider) Close() {
	p.logger.Info("Stopping plugin", zap.String("executable", p.path))
	p.rawClient.Kill()
}
