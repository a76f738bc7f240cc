// Package processor implements the three DataProcessor variants of the
// specification (4.6): NetworkDataProcessor, SyncDataProcessor, and
// CacheDataProcessor. Each implements the same operation set but enforces
// its mode's invariants around what touches the network versus the local
// offline cache.
package processor

import (
	"context"

	"github.com/cbre360/js-sdk/internal/model"
)

// FindResult is one value of a Find observable sequence.
type FindResult struct {
	Entities []model.Entity
	Error    error
}

// FindOneResult is one value of a FindByID observable sequence.
type FindOneResult struct {
	Entity model.Entity
	Error  error
}

// Processor is the operation set every DataProcessor variant implements.
// Find/FindByID return a channel realizing the "lazy finite sequence with 1
// or 2 values" design note: Network and Sync processors always send exactly
// one value and close; Cache processors may send a second, network-derived
// value.
type Processor interface {
	Find(ctx context.Context, collection, tag string, q *model.Query) <-chan FindResult
	FindByID(ctx context.Context, collection, tag, id string) <-chan FindOneResult
	Count(ctx context.Context, collection, tag string, q *model.Query) (int, error)
	Group(ctx context.Context, collection, tag string, agg *model.Aggregation) ([]map[string]any, error)
	Create(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error)
	Update(ctx context.Context, collection, tag string, entities []model.Entity) ([]model.Entity, error)
	RemoveByID(ctx context.Context, collection, tag, id string) (int, error)
	Remove(ctx context.Context, collection, tag string, q *model.Query) (int, error)
}

// isTransient classifies the errors that a Cache-mode network phase may
// suppress (spec 7 propagation policy) versus errors that must surface
// even from the network phase of a cache read.
func isTransient(err error) bool {
	kind, ok := model.KindOf(err)
	if !ok {
		return true
	}
	switch kind {
	case model.KindTimeout, model.KindNoResponse, model.KindServerError:
		return true
	default:
		return false
	}
}
