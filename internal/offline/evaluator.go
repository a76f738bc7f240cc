package offline

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/cbre360/js-sdk/internal/model"
)

// Evaluate applies q (filter, sort, projection, skip/limit) to entities and
// returns the resulting slice. A nil query returns entities unchanged
// (aside from a defensive copy).
func Evaluate(entities []model.Entity, q *model.Query) []model.Entity {
	matched := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if q == nil || matchFilter(e, q.Filter) {
			matched = append(matched, e)
		}
	}

	if q != nil && len(q.Sort) > 0 {
		sortEntities(matched, q.Sort)
	}

	if q != nil {
		if q.Skip > 0 {
			if q.Skip >= len(matched) {
				matched = matched[:0]
			} else {
				matched = matched[q.Skip:]
			}
		}
		if q.Limit > 0 && q.Limit < len(matched) {
			matched = matched[:q.Limit]
		}
		if len(q.Fields) > 0 {
			matched = project(matched, q.Fields)
		}
	}

	return matched
}

func project(entities []model.Entity, fields []string) []model.Entity {
	out := make([]model.Entity, len(entities))
	for i, e := range entities {
		proj := model.Entity{}
		for _, f := range fields {
			if v, ok := e[f]; ok {
				proj[f] = v
			}
		}
		proj.SetID(e.ID())
		out[i] = proj
	}
	return out
}

func sortEntities(entities []model.Entity, fields []model.SortField) {
	sort.SliceStable(entities, func(i, j int) bool {
		for _, f := range fields {
			c := compareValues(entities[i][f.Field], entities[j][f.Field])
			if c == 0 {
				continue
			}
			if f.Direction < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// matchFilter evaluates a (possibly nil) filter tree against one entity.
// nil matches everything.
func matchFilter(e model.Entity, f *model.Filter) bool {
	if f == nil {
		return true
	}
	switch f.Op {
	case model.OpAnd:
		for _, c := range f.Children {
			if !matchFilter(e, c) {
				return false
			}
		}
		return true
	case model.OpOr:
		if len(f.Children) == 0 {
			return true
		}
		for _, c := range f.Children {
			if matchFilter(e, c) {
				return true
			}
		}
		return false
	case model.OpNot:
		if len(f.Children) == 0 {
			return true
		}
		return !matchFilter(e, f.Children[0])
	case model.OpEquals:
		return compareValues(e[f.Field], f.Value) == 0
	case model.OpNE:
		return compareValues(e[f.Field], f.Value) != 0
	case model.OpGT:
		return compareValues(e[f.Field], f.Value) > 0
	case model.OpGTE:
		return compareValues(e[f.Field], f.Value) >= 0
	case model.OpLT:
		return compareValues(e[f.Field], f.Value) < 0
	case model.OpLTE:
		return compareValues(e[f.Field], f.Value) <= 0
	case model.OpIn:
		return containsValue(f.Value, e[f.Field])
	case model.OpNotIn:
		return !containsValue(f.Value, e[f.Field])
	case model.OpExists:
		_, present := e[f.Field]
		want, _ := f.Value.(bool)
		return present == want
	case model.OpRegex:
		pattern, _ := f.Value.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		s, _ := e[f.Field].(string)
		return re.MatchString(s)
	default:
		return false
	}
}

func containsValue(set any, v any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if compareValues(item, v) == 0 {
			return true
		}
	}
	return false
}

// compareValues orders two dynamic JSON values. Numbers compare
// numerically, strings lexicographically, everything else falls back to
// equality-only via fmt-free type+value comparison (returns 0 on equal,
// non-zero arbitrary otherwise, which is sufficient for sort stability and
// equality filters but not for ordering incomparable types).
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as, asok := a.(string)
	bs, bsok := b.(string)
	if asok && bsok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}

	if a == b {
		return 0
	}
	return 1
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// EvaluateAggregation groups entities (after applying agg.Filter) by
// agg.GroupBy and reduces each group with agg.Op over agg.Field.
func EvaluateAggregation(entities []model.Entity, agg *model.Aggregation) []map[string]any {
	if agg == nil {
		return nil
	}
	matched := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		if matchFilter(e, agg.Filter) {
			matched = append(matched, e)
		}
	}

	type group struct {
		key    map[string]any
		values []float64
		count  int
	}
	order := []string{}
	groups := map[string]*group{}

	for _, e := range matched {
		keyVals := make(map[string]any, len(agg.GroupBy))
		var keyStr string
		for _, k := range agg.GroupBy {
			keyVals[k] = e[k]
			keyStr += keyFragment(e[k])
		}
		g, ok := groups[keyStr]
		if !ok {
			g = &group{key: keyVals}
			groups[keyStr] = g
			order = append(order, keyStr)
		}
		g.count++
		if agg.Op != model.AggCount {
			if f, ok := toFloat(e[agg.Field]); ok {
				g.values = append(g.values, f)
			}
		}
	}

	out := make([]map[string]any, 0, len(order))
	for _, k := range order {
		g := groups[k]
		row := map[string]any{}
		for gk, gv := range g.key {
			row[gk] = gv
		}
		row["result"] = reduce(agg.Op, g.values, g.count)
		out = append(out, row)
	}
	return out
}

func keyFragment(v any) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	default:
		return fmt.Sprintf("v:%v", t)
	}
}

func reduce(op model.AggregateOp, values []float64, count int) float64 {
	switch op {
	case model.AggCount:
		return float64(count)
	case model.AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum
	case model.AggAvg:
		if len(values) == 0 {
			return 0
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	case model.AggMin:
		if len(values) == 0 {
			return 0
		}
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case model.AggMax:
		if len(values) == 0 {
			return 0
		}
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	default:
		return 0
	}
}
