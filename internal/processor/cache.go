package processor

import (
	"context"
	"log/slog"

	"github.com/cbre360/js-sdk/internal/network"
	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/syncmanager"
	"github.com/cbre360/js-sdk/internal/syncstate"
	"github.com/cbre360/js-sdk/internal/model"
)

// Cache is the CacheDataProcessor: reads serve the local cache immediately
// and opportunistically refresh it from the network; writes go local-first
// and are pushed eagerly, best-effort (spec 4.6).
type Cache struct {
	repo  *offline.Repository
	state *syncstate.Manager
	sync  *syncmanager.Manager
	net   network.Repository
	log   *slog.Logger
}

// NewCache constructs a Cache processor.
func NewCache(repo *offline.Repository, state *syncstate.Manager, sync *syncmanager.Manager, net network.Repository, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{repo: repo, state: state, sync: sync, net: net, log: logger}
}

// Find sends the cached result immediately, then a second, network-derived
// result once the refresh completes. Transient network errors suppress the
// second send; the cached value stands.
func (p *Cache) Find(ctx context.Context, collection, tag string, q *model.Query) <-chan FindResult {
	ch := make(chan FindResult, 2)
	go func() {
		defer close(ch)
		cached, err := p.repo.Read(ctx, collection, tag, q)
		ch <- FindResult{Entities: cached, Error: err}

		resp, netErr := p.net.Read(ctx, collection, q, network.ReadOptions{DataOnly: true})
		if netErr != nil {
			if isTransient(netErr) {
				p.log.Warn("cache find: network refresh suppressed", "collection", collection, "error", netErr)
				return
			}
			ch <- FindResult{Error: netErr}
			return
		}
		if q.IsBounded() {
			// A bounded window's network result replaces whatever is already
			// cached under the same _id rather than appending a duplicate row.
			if _, err := p.repo.Update(ctx, collection, tag, resp.Data); err != nil {
				ch <- FindResult{Error: err}
				return
			}
		} else {
			if _, err := p.repo.Delete(ctx, collection, tag, q); err != nil {
				ch <- FindResult{Error: err}
				return
			}
			if _, err := p.repo.Create(ctx, collection, tag, resp.Data); err != nil {
				ch <- FindResult{Error: err}
				return
			}
		}
		ch <- FindResult{Entities: resp.Data}
	}()
	return ch
}

func (p *Cache) FindByID(ctx context.Context, collection, tag, id string) <-chan FindOneResult {
	ch := make(chan FindOneResult, 2)
	go func() {
		defer close(ch)
		cached, err := p.repo.ReadByID(ctx, collection, tag, id)
		ch <- FindOneResult{Entity: cached, Error: err}

		e, netErr := p.net.ReadByID(ctx, collection, id)
		if netErr != nil {
			if isTransient(netErr) {
				p.log.Warn("cache findById: network refresh suppressed", "collection", collection, "id", id, "error", netErr)
				return
			}
			ch <- FindOneResult{Error: netErr}
			return
		}
		if _, err := p.repo.Update(ctx, collection, tag, []model.Entity{e}); err != nil {
			ch <- FindOneResult{Error: err}
			return
		}
		ch <- FindOneResult{Entity: e}
	}()
	return ch
}

// Count and Group answer from the local cache; the specification does not
// require a network phase for aggregate reads.
func (p *Cache) Count(ctx context.Context, collection, tag string, q *model.Query) (int, error) {
	return p.repo.Count(ctx, collection, tag, q)
}

func (p *Cache) Group(ctx context.Context, collection, tag string, agg *model.Aggregation) ([]map[string]any, error) {
	return p.repo.Group(ctx, collection, tag, agg)
}

// Create writes locally, records a Create intent, then attempts an
// immediate push. A push failure leaves the intent pending for a later
// sync; the caller still gets the locally minted entity back.
func (p *Cache) Create(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error) {
	prepared := make([]model.Entity, len(entities))
	for i, e := range entities {
		e = e.Clone()
		if !e.HasID() {
			e.SetID(model.NewLocalID())
		}
		e.MarkLocal()
		prepared[i] = e
	}
	if _, err := p.repo.Create(ctx, collection, tag, prepared); err != nil {
		return nil, err
	}
	if err := p.state.AddCreate(ctx, collection, prepared); err != nil {
		return nil, err
	}
	p.pushBestEffort(ctx, collection)
	return prepared, nil
}

// Update writes locally, records an Update intent, then attempts an
// immediate push.
func (p *Cache) Update(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error) {
	for _, e := range entities {
		if !e.HasID() {
			return nil, model.NewError(model.KindKinvey, "update requires an _id")
		}
	}
	if _, err := p.repo.Update(ctx, collection, tag, entities); err != nil {
		return nil, err
	}
	if err := p.state.AddUpdate(ctx, collection, entities); err != nil {
		return nil, err
	}
	p.pushBestEffort(ctx, collection)
	return entities, nil
}

func (p *Cache) RemoveByID(ctx context.Context, collection, tag, id string) (int, error) {
	if id == "" {
		return 0, nil
	}
	entity, err := p.repo.ReadByID(ctx, collection, tag, id)
	if model.IsKind(err, model.KindNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := p.state.AddDelete(ctx, collection, []model.Entity{entity}); err != nil {
		return 0, err
	}
	count, err := p.repo.DeleteByID(ctx, collection, tag, id)
	if err != nil {
		return 0, err
	}
	p.pushBestEffort(ctx, collection)
	if count == 0 {
		return 1, nil
	}
	return count, nil
}

func (p *Cache) Remove(ctx context.Context, collection, tag string, q *model.Query) (int, error) {
	matched, err := p.repo.Read(ctx, collection, tag, q)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range matched {
		n, err := p.RemoveByID(ctx, collection, tag, e.ID())
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// pushBestEffort fires a push for collection without surfacing its error to
// the caller of the originating write; sync state is the durable record of
// what still needs pushing.
func (p *Cache) pushBestEffort(ctx context.Context, collection string) {
	if _, err := p.sync.Push(ctx, collection, nil); err != nil {
		p.log.Warn("cache write: opportunistic push failed", "collection", collection, "error", err)
	}
}
