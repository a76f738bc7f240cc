// Package offline implements the local cache layer: per-collection CRUD and
// in-memory query/aggregation evaluation over an arbitrary KeyValuePersister,
// with mutations serialized per collection via a PromiseQueue.
package offline

import (
	"context"
	"fmt"

	"github.com/cbre360/js-sdk/internal/persister"
	"github.com/cbre360/js-sdk/internal/queue"
	"github.com/cbre360/js-sdk/internal/model"
)

// ActiveUserKey is the well-known reserved key preserved across Clear(nil).
const ActiveUserKey = "active_user"

// Repository is the OfflineRepository of the specification: per-collection
// CRUD plus in-memory query/aggregation, process-wide per appKey.
type Repository struct {
	appKey    string
	persister persister.KeyValuePersister
	queue     *queue.PromiseQueue
}

// New constructs a Repository for a single appKey over p.
func New(appKey string, p persister.KeyValuePersister) *Repository {
	return &Repository{appKey: appKey, persister: p, queue: queue.New()}
}

// key builds the fully qualified persister key for a (collection, tag) pair.
func (r *Repository) key(collection, tag string) string {
	if tag == "" {
		return fmt.Sprintf("%s.%s", r.appKey, collection)
	}
	return fmt.Sprintf("%s.%s.%s", r.appKey, collection, tag)
}

func (r *Repository) load(ctx context.Context, collection, tag string) ([]model.Entity, error) {
	var out []model.Entity
	_, err := persister.GetJSON(ctx, r.persister, r.key(collection, tag), &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) store(ctx context.Context, collection, tag string, entities []model.Entity) error {
	if entities == nil {
		entities = []model.Entity{}
	}
	return persister.SetJSON(ctx, r.persister, r.key(collection, tag), entities)
}

// Create appends entities unchanged to the collection, serialized via the
// per-collection queue, and returns them unchanged.
func (r *Repository) Create(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error) {
	_, err := queue.RunT(r.queue, r.key(collection, tag), func() (struct{}, error) {
		existing, err := r.load(ctx, collection, tag)
		if err != nil {
			return struct{}{}, err
		}
		existing = append(existing, entities...)
		return struct{}{}, r.store(ctx, collection, tag, existing)
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// Read returns entities matching query (nil matches all), sorted/sliced/projected
// per the query. Reads bypass the mutation queue.
func (r *Repository) Read(ctx context.Context, collection, tag string, q *model.Query) ([]model.Entity, error) {
	all, err := r.load(ctx, collection, tag)
	if err != nil {
		return nil, err
	}
	return Evaluate(all, q), nil
}

// ReadByID returns the single entity with the given id, or KindNotFound.
func (r *Repository) ReadByID(ctx context.Context, collection, tag, id string) (model.Entity, error) {
	all, err := r.load(ctx, collection, tag)
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, model.NewError(model.KindNotFound, fmt.Sprintf("entity %q not found in %q", id, collection))
}

// Count returns the number of entities matching query.
func (r *Repository) Count(ctx context.Context, collection, tag string, q *model.Query) (int, error) {
	matches, err := r.Read(ctx, collection, tag, withoutWindow(q))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// withoutWindow strips skip/limit so Count reflects the full match set, not
// one page of it.
func withoutWindow(q *model.Query) *model.Query {
	if q == nil {
		return nil
	}
	cp := *q
	cp.Skip = 0
	cp.Limit = 0
	return &cp
}

// Update upserts entities by _id, serialized via the per-collection queue.
func (r *Repository) Update(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error) {
	_, err := queue.RunT(r.queue, r.key(collection, tag), func() (struct{}, error) {
		existing, err := r.load(ctx, collection, tag)
		if err != nil {
			return struct{}{}, err
		}
		existing = upsertAll(existing, entities)
		return struct{}{}, r.store(ctx, collection, tag, existing)
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func upsertAll(existing []model.Entity, updates []model.Entity) []model.Entity {
	for _, u := range updates {
		existing = upsertOne(existing, u)
	}
	return existing
}

func upsertOne(existing []model.Entity, e model.Entity) []model.Entity {
	id := e.ID()
	for i, cur := range existing {
		if cur.ID() == id {
			existing[i] = e
			return existing
		}
	}
	return append(existing, e)
}

// Delete removes all entities matching query (nil deletes everything in the
// collection) and returns the count deleted.
func (r *Repository) Delete(ctx context.Context, collection, tag string, q *model.Query) (int, error) {
	return queue.RunT(r.queue, r.key(collection, tag), func() (int, error) {
		existing, err := r.load(ctx, collection, tag)
		if err != nil {
			return 0, err
		}
		var filter *model.Filter
		if q != nil {
			filter = q.Filter
		}
		kept := existing[:0:0]
		for _, e := range existing {
			if !matchFilter(e, filter) {
				kept = append(kept, e)
			}
		}
		if err := r.store(ctx, collection, tag, kept); err != nil {
			return 0, err
		}
		return len(existing) - len(kept), nil
	})
}

// DeleteByID removes one entity by id, returning 0 or 1.
func (r *Repository) DeleteByID(ctx context.Context, collection, tag, id string) (int, error) {
	if id == "" {
		return 0, nil
	}
	return r.Delete(ctx, collection, tag, model.NewQuery().WithFilter(model.Eq(model.IDField, id)))
}

// Clear deletes the given collection's contents, or, when collection=="",
// every collection belonging to this appKey except ActiveUserKey.
func (r *Repository) Clear(ctx context.Context, collection, tag string) error {
	if collection != "" {
		return r.persister.Delete(ctx, r.key(collection, tag))
	}
	prefix := r.appKey + "."
	keys, err := r.persister.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == prefix+ActiveUserKey {
			continue
		}
		if err := r.persister.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Group evaluates an aggregation against the collection locally.
func (r *Repository) Group(ctx context.Context, collection, tag string, agg *model.Aggregation) ([]map[string]any, error) {
	all, err := r.load(ctx, collection, tag)
	if err != nil {
		return nil, err
	}
	return EvaluateAggregation(all, agg), nil
}
