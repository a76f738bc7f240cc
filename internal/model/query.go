package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// FilterOp is the closed set of comparison/logical operators a filter node
// may carry. Query/aggregation structures are closed algebraic variants,
// represented here as a tagged sum (Op discriminates which fields are
// meaningful) rather than a hierarchy of filter types.
type FilterOp string

const (
	OpEquals FilterOp = "$eq"
	OpIn     FilterOp = "$in"
	OpNotIn  FilterOp = "$nin"
	OpGT     FilterOp = "$gt"
	OpGTE    FilterOp = "$gte"
	OpLT     FilterOp = "$lt"
	OpLTE    FilterOp = "$lte"
	OpNE     FilterOp = "$ne"
	OpExists FilterOp = "$exists"
	OpRegex  FilterOp = "$regex"
	OpAnd    FilterOp = "$and"
	OpOr     FilterOp = "$or"
	OpNot    FilterOp = "$not"
)

// Filter is one node of the filter tree. For comparison ops (Eq, In, Nin,
// GT, GTE, LT, LTE, NE, Exists, Regex), Field and Value are meaningful.
// For logical ops (And, Or), Children holds the sub-filters. For Not,
// Children holds exactly one sub-filter.
type Filter struct {
	Op       FilterOp  `json:"op"`
	Field    string    `json:"field,omitempty"`
	Value    any       `json:"value,omitempty"`
	Children []*Filter `json:"children,omitempty"`
}

// Eq builds an equality filter.
func Eq(field string, value any) *Filter { return &Filter{Op: OpEquals, Field: field, Value: value} }

// In builds a "field in values" filter.
func In(field string, values ...any) *Filter { return &Filter{Op: OpIn, Field: field, Value: values} }

// NotIn builds a "field not in values" filter.
func NotIn(field string, values ...any) *Filter {
	return &Filter{Op: OpNotIn, Field: field, Value: values}
}

func cmpFilter(op FilterOp, field string, value any) *Filter {
	return &Filter{Op: op, Field: field, Value: value}
}

func GT(field string, v any) *Filter      { return cmpFilter(OpGT, field, v) }
func GTE(field string, v any) *Filter     { return cmpFilter(OpGTE, field, v) }
func LT(field string, v any) *Filter      { return cmpFilter(OpLT, field, v) }
func LTE(field string, v any) *Filter     { return cmpFilter(OpLTE, field, v) }
func NE(field string, v any) *Filter      { return cmpFilter(OpNE, field, v) }
func Exists(field string, v bool) *Filter { return cmpFilter(OpExists, field, v) }
func Regex(field, pattern string) *Filter { return cmpFilter(OpRegex, field, pattern) }

// And combines filters with logical AND.
func And(filters ...*Filter) *Filter { return &Filter{Op: OpAnd, Children: filters} }

// Or combines filters with logical OR.
func Or(filters ...*Filter) *Filter { return &Filter{Op: OpOr, Children: filters} }

// Not negates a filter.
func Not(f *Filter) *Filter { return &Filter{Op: OpNot, Children: []*Filter{f}} }

// SortDirection is +1 (ascending) or -1 (descending).
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// SortField is one entry of an ordered sort specification.
type SortField struct {
	Field     string
	Direction SortDirection
}

// Query composes a filter, sort, field projection, and skip/limit window,
// exactly as spec 3 "Query" describes.
type Query struct {
	Filter *Filter
	Sort   []SortField
	Fields []string
	Skip   int
	Limit  int
}

// NewQuery returns an empty query (matches everything, no sort/projection/window).
func NewQuery() *Query { return &Query{} }

// WithFilter sets the filter tree.
func (q *Query) WithFilter(f *Filter) *Query { q.Filter = f; return q }

// OrderBy appends a sort field.
func (q *Query) OrderBy(field string, dir SortDirection) *Query {
	q.Sort = append(q.Sort, SortField{Field: field, Direction: dir})
	return q
}

// Select sets the projection field list.
func (q *Query) Select(fields ...string) *Query { q.Fields = fields; return q }

// WithSkip sets skip.
func (q *Query) WithSkip(n int) *Query { q.Skip = n; return q }

// WithLimit sets limit.
func (q *Query) WithLimit(n int) *Query { q.Limit = n; return q }

// IsBounded reports whether the query has a skip or limit, which per spec
// 4.8 disqualifies it from delta-set and from the "replace offline
// snapshot" pull policy.
func (q *Query) IsBounded() bool {
	if q == nil {
		return false
	}
	return q.Skip != 0 || q.Limit != 0
}

// canonicalFilter renders a filter node as a stable, sorted-key JSON value
// usable as a map key component. nil renders as "null".
func canonicalFilter(f *Filter) string {
	if f == nil {
		return "null"
	}
	var b strings.Builder
	writeCanonicalFilter(&b, f)
	return b.String()
}

func writeCanonicalFilter(b *strings.Builder, f *Filter) {
	b.WriteByte('{')
	b.WriteString(`"op":"`)
	b.WriteString(string(f.Op))
	b.WriteByte('"')
	if f.Field != "" {
		b.WriteString(`,"field":"`)
		b.WriteString(f.Field)
		b.WriteByte('"')
	}
	if f.Value != nil {
		b.WriteString(`,"value":`)
		vb, _ := json.Marshal(f.Value)
		b.Write(vb)
	}
	if len(f.Children) > 0 {
		b.WriteString(`,"children":[`)
		for i, c := range f.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonicalFilter(b, c)
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
}

// Canonical returns a stable string representation of the query, sorted and
// deterministic across processes, suitable as a CachedQuery lookup key
// (spec 3, "CachedQuery ... Canonical serialization is stable across
// processes").
func (q *Query) Canonical() string {
	if q == nil {
		q = NewQuery()
	}
	var b strings.Builder
	b.WriteString(`{"filter":`)
	b.WriteString(canonicalFilter(q.Filter))

	b.WriteString(`,"sort":[`)
	for i, s := range q.Sort {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"field":"`)
		b.WriteString(s.Field)
		b.WriteString(`","dir":`)
		if s.Direction < 0 {
			b.WriteString("-1")
		} else {
			b.WriteString("1")
		}
		b.WriteByte('}')
	}
	b.WriteString(`]`)

	fields := append([]string(nil), q.Fields...)
	sort.Strings(fields)
	b.WriteString(`,"fields":[`)
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(f)
		b.WriteByte('"')
	}
	b.WriteString(`]`)

	b.WriteString(`,"skip":`)
	writeInt(&b, q.Skip)
	b.WriteString(`,"limit":`)
	writeInt(&b, q.Limit)
	b.WriteByte('}')
	return b.String()
}

func writeInt(b *strings.Builder, n int) {
	data, _ := json.Marshal(n)
	b.Write(data)
}

// AggregateOp is the closed set of aggregation reductions.
type AggregateOp string

const (
	AggCount AggregateOp = "count"
	AggSum   AggregateOp = "sum"
	AggMin   AggregateOp = "min"
	AggMax   AggregateOp = "max"
	AggAvg   AggregateOp = "avg"
)

// Aggregation groups entities (matching an optional filter) by one or more
// keys and reduces each group with Op over Field.
type Aggregation struct {
	Filter  *Filter
	GroupBy []string
	Op      AggregateOp
	Field   string // unused when Op == AggCount
	Initial map[string]any
}
