package kinvey

import "github.com/cbre360/js-sdk/internal/model"

// FilterOp is the closed set of comparison/logical operators a filter node
// may carry. Alias of internal/model.FilterOp.
type FilterOp = model.FilterOp

const (
	OpEquals = model.OpEquals
	OpIn     = model.OpIn
	OpNotIn  = model.OpNotIn
	OpGT     = model.OpGT
	OpGTE    = model.OpGTE
	OpLT     = model.OpLT
	OpLTE    = model.OpLTE
	OpNE     = model.OpNE
	OpExists = model.OpExists
	OpRegex  = model.OpRegex
	OpAnd    = model.OpAnd
	OpOr     = model.OpOr
	OpNot    = model.OpNot
)

// Filter is one node of the filter tree. Alias of internal/model.Filter.
type Filter = model.Filter

// Eq builds an equality filter.
func Eq(field string, value any) *Filter { return model.Eq(field, value) }

// In builds a "field in values" filter.
func In(field string, values ...any) *Filter { return model.In(field, values...) }

// NotIn builds a "field not in values" filter.
func NotIn(field string, values ...any) *Filter { return model.NotIn(field, values...) }

func GT(field string, v any) *Filter      { return model.GT(field, v) }
func GTE(field string, v any) *Filter     { return model.GTE(field, v) }
func LT(field string, v any) *Filter      { return model.LT(field, v) }
func LTE(field string, v any) *Filter     { return model.LTE(field, v) }
func NE(field string, v any) *Filter      { return model.NE(field, v) }
func Exists(field string, v bool) *Filter { return model.Exists(field, v) }
func Regex(field, pattern string) *Filter { return model.Regex(field, pattern) }

// And combines filters with logical AND.
func And(filters ...*Filter) *Filter { return model.And(filters...) }

// Or combines filters with logical OR.
func Or(filters ...*Filter) *Filter { return model.Or(filters...) }

// Not negates a filter.
func Not(f *Filter) *Filter { return model.Not(f) }

// SortDirection is +1 (ascending) or -1 (descending). Alias of
// internal/model.SortDirection.
type SortDirection = model.SortDirection

const (
	Ascending  = model.Ascending
	Descending = model.Descending
)

// SortField is one entry of an ordered sort specification. Alias of
// internal/model.SortField.
type SortField = model.SortField

// Query composes a filter, sort, field projection, and skip/limit window,
// exactly as spec 3 "Query" describes. Alias of internal/model.Query.
type Query = model.Query

// NewQuery returns an empty query (matches everything, no sort/projection/window).
func NewQuery() *Query { return model.NewQuery() }

// AggregateOp is the closed set of aggregation reductions. Alias of
// internal/model.AggregateOp.
type AggregateOp = model.AggregateOp

const (
	AggCount = model.AggCount
	AggSum   = model.AggSum
	AggMin   = model.AggMin
	AggMax   = model.AggMax
	AggAvg   = model.AggAvg
)

// Aggregation groups entities (matching an optional filter) by one or more
// keys and reduces each group with Op over Field. Alias of
// internal/model.Aggregation.
type Aggregation = model.Aggregation
