// Package network implements the NetworkRepository of the specification: a
// thin typed facade over authenticated HTTP to the backend, plus the
// delta-set request and the wire-level query/error codecs.
package network

import (
	"context"

	"github.com/cbre360/js-sdk/internal/model"
)

// RequestStartHeader is the authoritative server timestamp header consumed
// for delta-set high-water marks (spec 6, "Response headers consumed").
const RequestStartHeader = "X-Kinvey-Request-Start"

// ReadOptions controls NetworkRepository.Read/Count response shape.
type ReadOptions struct {
	// DataOnly tells the callee whether the caller needs the response
	// headers (false) or only the entities (true). HTTPRepository ignores it
	// and always returns the headers.
	DataOnly bool
}

// Response wraps a network read's entities together with the response
// headers, such as X-Kinvey-Request-Start.
type Response struct {
	Data    []model.Entity
	Headers map[string]string
}

// DeltaSetResult is the decoded body of a _deltaset request.
type DeltaSetResult struct {
	Changed []model.Entity
	Deleted []string
	Headers map[string]string
}

// Repository is the NetworkRepository contract: a typed facade over
// authenticated HTTP. Implementations must map transport/HTTP failures to
// the closed model.ErrorKind set (spec 7) before returning.
type Repository interface {
	Create(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error)
	Update(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error)
	Read(ctx context.Context, collection string, q *model.Query, opts ReadOptions) (*Response, error)
	ReadByID(ctx context.Context, collection, id string) (model.Entity, error)
	// Count returns the match count together with response headers, since
	// auto-pagination records the count request's X-Kinvey-Request-Start
	// as the CachedQuery high-water mark (spec 4.8).
	Count(ctx context.Context, collection string, q *model.Query, opts ReadOptions) (int, map[string]string, error)
	DeleteByID(ctx context.Context, collection, id string) error
	Group(ctx context.Context, collection string, agg *model.Aggregation) ([]map[string]any, error)
	DeltaSet(ctx context.Context, collection string, since string, q *model.Query) (*DeltaSetResult, error)
}
