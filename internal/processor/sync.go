package processor

import (
	"context"

	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/syncstate"
	"github.com/cbre360/js-sdk/internal/model"
)

// Sync is the SyncDataProcessor: every operation is local. Mutations mint
// ids, stamp _kmd.local, and record SyncItem intents; reads never touch the
// network (spec 4.6).
type Sync struct {
	repo  *offline.Repository
	state *syncstate.Manager
}

// NewSync constructs a Sync processor.
func NewSync(repo *offline.Repository, state *syncstate.Manager) *Sync {
	return &Sync{repo: repo, state: state}
}

func (p *Sync) Find(ctx context.Context, collection, tag string, q *model.Query) <-chan FindResult {
	ch := make(chan FindResult, 1)
	go func() {
		defer close(ch)
		entities, err := p.repo.Read(ctx, collection, tag, q)
		ch <- FindResult{Entities: entities, Error: err}
	}()
	return ch
}

func (p *Sync) FindByID(ctx context.Context, collection, tag, id string) <-chan FindOneResult {
	ch := make(chan FindOneResult, 1)
	go func() {
		defer close(ch)
		e, err := p.repo.ReadByID(ctx, collection, tag, id)
		ch <- FindOneResult{Entity: e, Error: err}
	}()
	return ch
}

func (p *Sync) Count(ctx context.Context, collection, tag string, q *model.Query) (int, error) {
	return p.repo.Count(ctx, collection, tag, q)
}

func (p *Sync) Group(ctx context.Context, collection, tag string, agg *model.Aggregation) ([]map[string]any, error) {
	return p.repo.Group(ctx, collection, tag, agg)
}

// Create mints a local id for entities missing one, stamps _kmd.local,
// writes to the offline repo, and records a Create intent.
func (p *Sync) Create(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error) {
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
	return prepared, nil
}

// Update writes to the offline repo and records an Update intent, which
// merges with any existing Create per the 4.4 rules.
func (p *Sync) Update(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error) {
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
	return entities, nil
}

// RemoveByID deletes locally and records a Delete intent.
func (p *Sync) RemoveByID(ctx context.Context, collection, tag, id string) (int, error) {
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
	// AddDelete against a pending Create already removed the offline
	// entity as part of the 4.4 merge; deleting again is a harmless no-op.
	count, err := p.repo.DeleteByID(ctx, collection, tag, id)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		// Already removed by the Create+Delete merge rule; still a logical
		// removal from the caller's perspective.
		return 1, nil
	}
	return count, nil
}

func (p *Sync) Remove(ctx context.Context, collection, tag string, q *model.Query) (int, error) {
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
