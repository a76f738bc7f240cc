package kinvey

import (
	"context"

	"github.com/cbre360/js-sdk/internal/processor"
	"github.com/cbre360/js-sdk/internal/syncmanager"
)

// Mode selects a DataStore's DataProcessor variant (spec 4.6).
type Mode int

const (
	// ModeCache serves reads from the local cache with an opportunistic
	// network refresh, and pushes writes eagerly, best-effort.
	ModeCache Mode = iota
	// ModeSync performs every operation against the local cache only,
	// recording sync intents for later explicit push/pull.
	ModeSync
	// ModeNetwork performs every operation directly against the network,
	// with no local side effects.
	ModeNetwork
)

// SyncResult is the return value of DataStore.Sync: push results followed
// by the number of entities fetched by the subsequent pull.
type SyncResult struct {
	Push []syncmanager.PushResult
	Pull int
}

// DataStore is the public per-collection handle (spec 4.9). Multiple
// DataStore instances over the same (appKey, collection, tag) share the
// process-wide OfflineRepository/SyncManager singletons owned by Client.
type DataStore struct {
	client     *Client
	collection string
	tag        string
	mode       Mode
	proc       processor.Processor
}

// Collection opens a DataStore for collection in the given mode, tagged to
// partition its local cache independently of other tags (spec 3).
func (c *Client) Collection(collection string, mode Mode, tag string) *DataStore {
	return &DataStore{
		client:     c,
		collection: collection,
		tag:        tag,
		mode:       mode,
		proc:       c.processorFor(mode, tag),
	}
}

// Find returns entities matching query (nil matches all). Sync mode serves
// the cache only; Network mode the remote only; Cache mode emits the cached
// result followed by a network-replaced result (spec 4.9).
func (s *DataStore) Find(ctx context.Context, q *Query) <-chan processor.FindResult {
	return s.proc.Find(ctx, s.collection, s.tag, q)
}

// FindByID returns the single entity with id, following the same
// per-mode dispatch as Find.
func (s *DataStore) FindByID(ctx context.Context, id string) <-chan processor.FindOneResult {
	return s.proc.FindByID(ctx, s.collection, s.tag, id)
}

// Count returns the number of entities matching query.
func (s *DataStore) Count(ctx context.Context, q *Query) (int, error) {
	return s.proc.Count(ctx, s.collection, s.tag, q)
}

// Group evaluates an aggregation.
func (s *DataStore) Group(ctx context.Context, agg *Aggregation) ([]map[string]any, error) {
	return s.proc.Group(ctx, s.collection, s.tag, agg)
}

// Create persists one or more new entities. Sync and Cache modes mint local
// ids for entities missing one, stamp _kmd.local, and record a Create
// intent; Network mode POSTs directly.
func (s *DataStore) Create(ctx context.Context, entities ...Entity) ([]Entity, error) {
	return s.proc.Create(ctx, s.collection, s.tag, entities)
}

// Update upserts entities by _id; every entity must already have one.
func (s *DataStore) Update(ctx context.Context, entities ...Entity) ([]Entity, error) {
	return s.proc.Update(ctx, s.collection, s.tag, entities)
}

// Save dispatches to Create or Update depending on whether entity carries
// an _id (spec 4.9).
func (s *DataStore) Save(ctx context.Context, entity Entity) (Entity, error) {
	if entity.HasID() {
		out, err := s.Update(ctx, entity)
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}
	out, err := s.Create(ctx, entity)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// RemoveByID deletes one entity by id. An empty id is a no-op returning 0.
func (s *DataStore) RemoveByID(ctx context.Context, id string) (int, error) {
	return s.proc.RemoveByID(ctx, s.collection, s.tag, id)
}

// Remove deletes every entity matching query.
func (s *DataStore) Remove(ctx context.Context, q *Query) (int, error) {
	return s.proc.Remove(ctx, s.collection, s.tag, q)
}

// requireSyncCapable rejects push/pull/sync/pendingSync* operations in
// Network mode, which has no SyncItem queue to operate on.
func (s *DataStore) requireSyncCapable() error {
	if s.mode == ModeNetwork {
		return NewError(KindSync, "push/pull/sync are not supported in network mode")
	}
	return nil
}

// Push runs the outbound sync pipeline for this collection (Sync/Cache
// modes only).
func (s *DataStore) Push(ctx context.Context, q *Query) ([]syncmanager.PushResult, error) {
	if err := s.requireSyncCapable(); err != nil {
		return nil, err
	}
	return s.client.sync.Push(ctx, s.collection, q)
}

// Pull runs the inbound sync pipeline for this collection (Sync/Cache modes
// only), honoring delta-set/auto-pagination per opts.
func (s *DataStore) Pull(ctx context.Context, q *Query, opts syncmanager.Options) (int, error) {
	if err := s.requireSyncCapable(); err != nil {
		return 0, err
	}
	return s.client.sync.Pull(ctx, s.collection, q, opts)
}

// Sync runs Push followed by Pull (Sync/Cache modes only).
func (s *DataStore) Sync(ctx context.Context, q *Query, opts syncmanager.Options) (SyncResult, error) {
	if err := s.requireSyncCapable(); err != nil {
		return SyncResult{}, err
	}
	pushResults, err := s.client.sync.Push(ctx, s.collection, q)
	if err != nil {
		return SyncResult{}, err
	}
	n, err := s.client.sync.Pull(ctx, s.collection, q, opts)
	if err != nil {
		return SyncResult{Push: pushResults}, err
	}
	return SyncResult{Push: pushResults, Pull: n}, nil
}

// PendingSyncCount reports how many SyncItems are queued for this
// collection, optionally filtered to specific entity ids.
func (s *DataStore) PendingSyncCount(ctx context.Context, entityIDs ...string) (int, error) {
	if err := s.requireSyncCapable(); err != nil {
		return 0, err
	}
	return s.client.state.GetSyncItemCount(ctx, s.collection, entityIDs...)
}

// PendingSyncEntities returns the queued SyncItems for this collection,
// optionally filtered to specific entity ids.
func (s *DataStore) PendingSyncEntities(ctx context.Context, entityIDs ...string) ([]SyncItem, error) {
	if err := s.requireSyncCapable(); err != nil {
		return nil, err
	}
	items, err := s.client.state.GetSyncItems(ctx, s.collection, entityIDs...)
	if err != nil {
		return nil, err
	}
	out := make([]SyncItem, len(items))
	for i, it := range items {
		out[i] = SyncItem{EntityID: it.EntityID, Collection: it.Collection, Operation: string(it.Operation)}
	}
	return out, nil
}

// ClearSync removes every queued SyncItem for this collection, discarding
// pending mutations without pushing them.
func (s *DataStore) ClearSync(ctx context.Context) error {
	if err := s.requireSyncCapable(); err != nil {
		return err
	}
	return s.client.state.RemoveAllSyncItems(ctx, s.collection)
}

// Clear deletes this collection's entities from the offline cache. Cache
// mode additionally removes its CachedQuery entries and any SyncItems for
// affected ids (spec 4.9).
func (s *DataStore) Clear(ctx context.Context) error {
	if err := s.client.offline.Clear(ctx, s.collection, s.tag); err != nil {
		return err
	}
	if s.mode == ModeCache {
		if err := s.client.cache.DeleteAllForCollection(ctx, s.collection); err != nil {
			return err
		}
		if err := s.client.state.RemoveAllSyncItems(ctx, s.collection); err != nil {
			return err
		}
	}
	return nil
}

// SyncItem is the public projection of a queued sync intent.
type SyncItem struct {
	EntityID   string
	Collection string
	Operation  string
}
