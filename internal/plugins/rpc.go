package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"
	"time"

	"github.com/blakestevenson/watchlog/internal/catalogue"
	"github.com/blakestevenson/watchlog/internal/tmdb"
	"github.com/hashicorp/go-plugin"
)

// Handshake is a common handshake that is shared by plugin and host.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "WATCHLOG_PLUGIN",
	MagicCookieValue: "watchlog-metadata",
}

// MetadataPluginName is the name the metadata provider is dispensed under
const MetadataPluginName = "metadata"

// PluginMap is the map of plugins we can dispense.
var PluginMap = map[string]plugin.Plugin{
	MetadataPluginName: &MetadataPlugin{},
}

// MetadataPlugin is the plugin.Plugin implementation for net/rpc
type MetadataPlugin struct {
	Impl tmdb.Provider
}

// Server returns the RPC server for this plugin
func (p *MetadataPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

// Client returns a provider that forwards calls to the plugin process
func (p *MetadataPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// SearchArgs are the arguments of Plugin.Search
type SearchArgs struct {
	Type  string
	Query string
	Page  int
}

// PopularArgs are the arguments of Plugin.Popular
type PopularArgs struct {
	Type string
	Page int
}

// DetailsArgs are the arguments of Plugin.Details
type DetailsArgs struct {
	Type string
	ID   int64
}

// RemoteError carries a provider error across the process boundary so the
// host can still match it against the tmdb sentinels
type RemoteError struct {
	Kind       string
	Message    string
	RetryAfter time.Duration
}

// PageReply is the reply of Plugin.Search and Plugin.Popular
type PageReply struct {
	Page *tmdb.Page
	Err  *RemoteError
}

// DetailsReply is the reply of Plugin.Details
type DetailsReply struct {
	Details *tmdb.Details
	Err     *RemoteError
}

// RPCServer runs inside the plugin process and calls into the provider
type RPCServer struct {
	Impl tmdb.Provider
}

func (s *RPCServer) Search(args SearchArgs, reply *PageReply) error {
	page, err := s.Impl.Search(context.Background(), catalogue.MediaType(args.Type), args.Query, args.Page)
	reply.Page, reply.Err = page, toRemote(err)
	return nil
}

func (s *RPCServer) Popular(args PopularArgs, reply *PageReply) error {
	page, err := s.Impl.Popular(context.Background(), catalogue.MediaType(args.Type), args.Page)
	reply.Page, reply.Err = page, toRemote(err)
	return nil
}

func (s *RPCServer) Details(args DetailsArgs, reply *DetailsReply) error {
	details, err := s.Impl.Details(context.Background(), catalogue.MediaType(args.Type), args.ID)
	reply.Details, reply.Err = details, toRemote(err)
	return nil
}

// RPCClient runs in the host and satisfies tmdb.Provider
type RPCClient struct {
	client *rpc.Client
}

var _ tmdb.Provider = (*RPCClient)(nil)

func (c *RPCClient) Search(ctx context.Context, t catalogue.MediaType, query string, page int) (*tmdb.Page, error) {
	var reply PageReply
	if err := c.call(ctx, "Plugin.Search", SearchArgs{Type: string(t), Query: query, Page: page}, &reply); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, fromRemote(reply.Err)
	}
	return reply.Page, nil
}

func (c *RPCClient) Popular(ctx context.Context, t catalogue.MediaType, page int) (*tmdb.Page, error) {
	var reply PageReply
	if err := c.call(ctx, "Plugin.Popular", PopularArgs{Type: string(t), Page: page}, &reply); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, fromRemote(reply.Err)
	}
	return reply.Page, nil
}

func (c *RPCClient) Details(ctx context.Context, t catalogue.MediaType, id int64) (*tmdb.Details, error) {
	var reply DetailsReply
	if err := c.call(ctx, "Plugin.Details", DetailsArgs{Type: string(t), ID: id}, &reply); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, fromRemote(reply.Err)
	}
	return reply.Details, nil
}

// call issues an RPC and stops waiting when ctx is done
func (c *RPCClient) call(ctx context.Context, method string, args, reply any) error {
	call := c.client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("metadata plugin %s: %w", method, call.Error)
		}
		return nil
	}
}

const (
	kindNotFound      = "not_found"
	kindRateLimited   = "rate_limited"
	kindAPIKeyMissing = "api_key_missing"
	kindUnavailable   = "unavailable"
	kindOther         = "error"
)

func toRemote(err error) *RemoteError {
	if err == nil {
		return nil
	}
	remote := &RemoteError{Kind: kindOther, Message: err.Error()}

	var rl *tmdb.RateLimitError
	switch {
	case errors.As(err, &rl):
		remote.Kind = kindRateLimited
		remote.RetryAfter = rl.RetryAfter
	case errors.Is(err, tmdb.ErrRateLimited):
		remote.Kind = kindRateLimited
	case errors.Is(err, tmdb.ErrNotFound):
		remote.Kind = kindNotFound
	case errors.Is(err, tmdb.ErrAPIKeyMissing):
		remote.Kind = kindAPIKeyMissing
	case errors.Is(err, tmdb.ErrUnavailable):
		remote.Kind = kindUnavailable
	}
	return remote
}

func fromRemote(remote *RemoteError) error {
	switch remote.Kind {
	case kindRateLimited:
		return &tmdb.RateLimitError{RetryAfter: remote.RetryAfter}
	case kindNotFound:
		return tmdb.ErrNotFound
	case kindAPIKeyMissing:
		return tmdb.ErrAPIKeyMissing
	case kindUnavailable:
		return fmt.Errorf("%w: %s", tmdb.ErrUnavailable, remote.Message)
	default:
		return fmt.Errorf("%w: %s", tmdb.ErrAPIError, remote.Message)
	}
}
