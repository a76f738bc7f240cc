package kinvey

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/cbre360/js-sdk/internal/auth"
	"github.com/cbre360/js-sdk/internal/network"
	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/persister"
	"github.com/cbre360/js-sdk/internal/processor"
	"github.com/cbre360/js-sdk/internal/querycache"
	"github.com/cbre360/js-sdk/internal/syncmanager"
	"github.com/cbre360/js-sdk/internal/syncstate"
)

// ClientOptions configures a Client. AppKey and one of AppSecret/MasterSecret
// are required; everything else has a platform default.
type ClientOptions struct {
	AppKey       string
	AppSecret    string
	MasterSecret string

	APIHostname string
	MICHostname string

	HTTPClient *http.Client
	Persister  persister.KeyValuePersister
	Logger     *slog.Logger

	SyncManagerConfig syncmanager.Config
}

func (o *ClientOptions) setDefaults() {
	if o.APIHostname == "" {
		o.APIHostname = "https://baas.kinvey.com"
	}
	if o.MICHostname == "" {
		o.MICHostname = "https://auth.kinvey.com"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Persister == nil {
		o.Persister = persister.NewMemoryPersister()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if (o.SyncManagerConfig == syncmanager.Config{}) {
		o.SyncManagerConfig = syncmanager.DefaultConfig()
	}
}

// Client is the process-wide set of singletons for one appKey: a single
// OfflineRepository, QueryCache, SyncStateManager, AuthProvider,
// NetworkRepository, and SyncManager, shared by every DataStore collection
// opened against this appKey (spec 3, "Ownership").
type Client struct {
	appKey string
	logger *slog.Logger

	offline *offline.Repository
	cache   *querycache.Cache
	state   *syncstate.Manager
	auth    *auth.Provider
	net     network.Repository
	sync    *syncmanager.Manager
}

var (
	clientsMu sync.Mutex
	clients   sync.Map // appKey string -> *Client
)

// NewClient constructs the singleton set for opts.AppKey, wiring
// OfflineRepository -> QueryCache/SyncStateManager -> AuthProvider ->
// NetworkRepository -> SyncManager, in that dependency order.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.AppKey == "" {
		return nil, NewError(KindKinvey, "AppKey is required")
	}
	opts.setDefaults()

	const tag = "" // default, untagged cache partition

	repo := offline.New(opts.AppKey, opts.Persister)
	cache := querycache.New(repo, tag)
	state := syncstate.New(repo, tag)

	authProvider := auth.New(auth.Config{
		AppKey:       opts.AppKey,
		AppSecret:    opts.AppSecret,
		MasterSecret: opts.MasterSecret,
		MICHostname:  opts.MICHostname,
	}, opts.HTTPClient, opts.Logger)

	netRepo := network.NewHTTPRepository(opts.APIHostname, opts.HTTPClient, authProvider, opts.Logger)

	syncMgr := syncmanager.New(repo, state, cache, netRepo, tag, opts.SyncManagerConfig, opts.Logger)

	return &Client{
		appKey:  opts.AppKey,
		logger:  opts.Logger,
		offline: repo,
		cache:   cache,
		state:   state,
		auth:    authProvider,
		net:     netRepo,
		sync:    syncMgr,
	}, nil
}

// OpenClient returns the process-wide Client singleton for opts.AppKey,
// constructing it on first use. Subsequent calls with the same AppKey return
// the same instance regardless of the rest of opts (the spec 3 "Ownership"
// rule: concurrent DataStore instances over the same collection share the
// same OfflineRepository/SyncManager).
func OpenClient(opts ClientOptions) (*Client, error) {
	if opts.AppKey == "" {
		return nil, NewError(KindKinvey, "AppKey is required")
	}
	if v, ok := clients.Load(opts.AppKey); ok {
		return v.(*Client), nil
	}

	clientsMu.Lock()
	defer clientsMu.Unlock()
	if v, ok := clients.Load(opts.AppKey); ok {
		return v.(*Client), nil
	}
	c, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	clients.Store(opts.AppKey, c)
	return c, nil
}

// ResetClients drops every process-wide Client singleton. Intended for test
// teardown between cases that use distinct in-memory persisters.
func ResetClients() {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	clients.Range(func(k, _ any) bool {
		clients.Delete(k)
		return true
	})
}

// SetActiveUser installs the signed-in user's tokens, enabling the Session
// auth scheme and unlocking push/pull against user-scoped collections.
func (c *Client) SetActiveUser(authToken, refreshToken string) {
	c.auth.SetActiveUser(&auth.ActiveUser{AuthToken: authToken, RefreshToken: refreshToken})
}

// processorFor builds the DataProcessor variant matching mode for a single
// (collection, tag) pair. Constructing these is cheap; only the underlying
// singletons above are shared.
func (c *Client) processorFor(mode Mode, tag string) processor.Processor {
	switch mode {
	case ModeNetwork:
		return processor.NewNetwork(c.net)
	case ModeSync:
		return processor.NewSync(c.offline, c.state)
	case ModeCache:
		return processor.NewCache(c.offline, c.state, c.sync, c.net, c.logger)
	default:
		return processor.NewCache(c.offline, c.state, c.sync, c.net, c.logger)
	}
}

// Stats reports, for one collection, the number of entities in the offline
// repository and the number of pending sync items; query cache entries are
// not counted (supplemented introspection, not part of the platform's
// original wire contract).
type Stats struct {
	Collection       string
	EntityCount      int
	PendingSyncCount int
}

// Stats returns store statistics for collection under tag (spec 2.3
// supplemented feature).
func (c *Client) Stats(ctx context.Context, collection, tag string) (Stats, error) {
	count, err := c.offline.Count(ctx, collection, tag, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("counting %q: %w", collection, err)
	}
	pending, err := c.state.GetSyncItemCount(ctx, collection)
	if err != nil {
		return Stats{}, fmt.Errorf("counting pending sync items for %q: %w", collection, err)
	}
	return Stats{Collection: collection, EntityCount: count, PendingSyncCount: pending}, nil
}
