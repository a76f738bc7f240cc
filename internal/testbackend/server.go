// Package testbackend is a chi-routed stub implementation of the
// /appdata/<appKey>/<collection> wire protocol (spec 6), for integration
// tests that want a real HTTP round trip without a live backend. It reuses
// the same query/aggregation evaluator as the offline cache
// (internal/offline) so server-side filtering behaves identically to the
// client's local evaluation.
//
// Grounded on internal/api/{routes.go,handlers.go,problem.go,sync_handlers.go}:
// the RFC 7807-adjacent native {error,description} problem shape, and the
// change-log/delta pattern of sync_handlers.go adapted to the client-driven
// since-timestamp delta-set protocol this module's NetworkRepository speaks.
package testbackend

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/model"
)

// tombstone records a deletion for delta-set purposes.
type tombstone struct {
	id string
	at time.Time
}

// Server is an in-memory stub of the backend's /appdata endpoints. The
// zero value is not usable; construct with New.
type Server struct {
	mu          sync.Mutex
	collections map[string]map[string]model.Entity
	tombstones  map[string][]tombstone
	router      *chi.Mux
	now         func() time.Time
}

// New constructs an empty Server.
func New() *Server {
	s := &Server{
		collections: make(map[string]map[string]model.Entity),
		tombstones:  make(map[string][]tombstone),
		now:         time.Now,
	}
	s.router = s.newRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Route("/appdata/{appKey}/{collection}", func(r chi.Router) {
		r.Get("/", s.handleRead)
		r.Post("/", s.handleCreate)
		r.Get("/_count", s.handleCount)
		r.Post("/_group", s.handleGroup)
		r.Get("/_deltaset", s.handleDeltaSet)
		r.Get("/{id}", s.handleReadByID)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDeleteByID)
	})
	return r
}

// Seed directly inserts entities into a collection, bypassing the HTTP
// surface, for test setup.
func (s *Server) Seed(collection string, entities ...model.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store := s.store(collection)
	for _, e := range entities {
		if !e.HasID() {
			e.SetID(newServerID())
		}
		stampModified(e, s.now())
		store[e.ID()] = e
	}
}

func (s *Server) store(collection string) map[string]model.Entity {
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]model.Entity)
		s.collections[collection] = c
	}
	return c
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var e model.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", "invalid JSON body")
		return
	}
	if e == nil {
		e = model.Entity{}
	}
	if !e.HasID() {
		e.SetID(newServerID())
	}

	s.mu.Lock()
	now := s.now()
	stampModified(e, now)
	s.store(collection)[e.ID()] = e
	s.mu.Unlock()

	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	var e model.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", "invalid JSON body")
		return
	}
	if e == nil {
		e = model.Entity{}
	}
	e.SetID(id)

	s.mu.Lock()
	now := s.now()
	stampModified(e, now)
	s.store(collection)[id] = e
	s.mu.Unlock()

	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	q, err := decodeWireQuery(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	s.mu.Lock()
	now := s.now()
	all := entityList(s.store(collection))
	s.mu.Unlock()

	matched := offline.Evaluate(all, q)
	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) handleReadByID(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	e, ok := s.store(collection)[id]
	now := s.now()
	s.mu.Unlock()

	if !ok {
		writeProblem(w, http.StatusNotFound, "NotFound", "entity not found")
		return
	}
	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	store := s.store(collection)
	_, ok := store[id]
	now := s.now()
	if ok {
		delete(store, id)
		s.tombstones[collection] = append(s.tombstones[collection], tombstone{id: id, at: now})
	}
	s.mu.Unlock()

	if !ok {
		writeProblem(w, http.StatusNotFound, "NotFound", "entity not found")
		return
	}
	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusOK, map[string]int{"count": 1})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	q, err := decodeWireQuery(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	q.Skip, q.Limit = 0, 0

	s.mu.Lock()
	now := s.now()
	all := entityList(s.store(collection))
	s.mu.Unlock()

	matched := offline.Evaluate(all, q)
	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusOK, map[string]int{"count": len(matched)})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var agg model.Aggregation
	if err := json.NewDecoder(r.Body).Decode(&agg); err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", "invalid JSON body")
		return
	}

	s.mu.Lock()
	all := entityList(s.store(collection))
	s.mu.Unlock()

	rows := offline.EvaluateAggregation(all, &agg)
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDeltaSet(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	since, err := parseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", "invalid since parameter")
		return
	}
	q, err := decodeWireQuery(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	s.mu.Lock()
	now := s.now()
	all := entityList(s.store(collection))
	tombstones := append([]tombstone(nil), s.tombstones[collection]...)
	s.mu.Unlock()

	var changed []model.Entity
	for _, e := range all {
		if modifiedAfter(e, since) {
			changed = append(changed, e)
		}
	}
	matched := offline.Evaluate(changed, q)
	if matched == nil {
		matched = []model.Entity{}
	}

	deleted := make([]map[string]string, 0)
	for _, t := range tombstones {
		if t.at.After(since) {
			deleted = append(deleted, map[string]string{"_id": t.id})
		}
	}

	setRequestStartHeader(w, now)
	writeJSON(w, http.StatusOK, map[string]any{
		"changed": matched,
		"deleted": deleted,
	})
}

func entityList(m map[string]model.Entity) []model.Entity {
	out := make([]model.Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func stampModified(e model.Entity, at time.Time) {
	kmd, ok := e["_kmd"].(map[string]any)
	if !ok {
		kmd = map[string]any{}
		e["_kmd"] = kmd
	}
	kmd["lmt"] = at.UTC().Format(time.RFC3339Nano)
}

func modifiedAfter(e model.Entity, since time.Time) bool {
	kmd, ok := e["_kmd"].(map[string]any)
	if !ok {
		return false
	}
	lmt, ok := kmd["lmt"].(string)
	if !ok {
		return false
	}
	t, err := time.Parse(time.RFC3339Nano, lmt)
	if err != nil {
		return false
	}
	return t.After(since)
}

func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

const requestStartHeader = "X-Kinvey-Request-Start"

func setRequestStartHeader(w http.ResponseWriter, at time.Time) {
	w.Header().Set(requestStartHeader, at.UTC().Format(time.RFC3339Nano))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeProblem writes the backend's native {error, description} error shape
// (the one network.MapHTTPError decodes first), not the RFC 7807 form --
// this stub emulates the real Kinvey backend, not engram's own API surface.
func writeProblem(w http.ResponseWriter, status int, errName, description string) {
	writeJSON(w, status, map[string]string{
		"error":       errName,
		"description": description,
	})
}

// newServerID mints a server-assigned id in the backend's 24-character hex
// shape.
func newServerID() string {
	return model.NewLocalID()
}

// decodeWireQuery parses the query/sort/fields/skip/limit parameters encoded
// by network.EncodeQuery back into a model.Query.
func decodeWireQuery(r *http.Request) (*model.Query, error) {
	q := model.NewQuery()
	values := r.URL.Query()

	if raw := values.Get("query"); raw != "" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, err
		}
		q.Filter = decodeMongoFilter(obj)
	}

	if raw := values.Get("sort"); raw != "" {
		var sortMap map[string]int
		if err := json.Unmarshal([]byte(raw), &sortMap); err != nil {
			return nil, err
		}
		fields := make([]string, 0, len(sortMap))
		for f := range sortMap {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			dir := model.Ascending
			if sortMap[f] < 0 {
				dir = model.Descending
			}
			q.OrderBy(f, dir)
		}
	}

	if raw := values.Get("fields"); raw != "" {
		q.Select(strings.Split(raw, ",")...)
	}

	if raw := values.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		q.WithSkip(n)
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		q.WithLimit(n)
	}

	return q, nil
}

// decodeMongoFilter is the inverse of the client's filterToMongoLike: it
// turns the Mongo-style query object back into a model.Filter tree.
func decodeMongoFilter(obj map[string]any) *model.Filter {
	var clauses []*model.Filter
	for field, raw := range obj {
		switch field {
		case "$and", "$or":
			items, _ := raw.([]any)
			children := make([]*model.Filter, 0, len(items))
			for _, item := range items {
				if m, ok := item.(map[string]any); ok {
					children = append(children, decodeMongoFilter(m))
				}
			}
			op := model.OpAnd
			if field == "$or" {
				op = model.OpOr
			}
			clauses = append(clauses, &model.Filter{Op: op, Children: children})
		case "$not":
			if m, ok := raw.(map[string]any); ok {
				clauses = append(clauses, model.Not(decodeMongoFilter(m)))
			}
		default:
			clauses = append(clauses, decodeFieldFilter(field, raw))
		}
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return &model.Filter{Op: model.OpAnd, Children: clauses}
}

var mongoOpToFilterOp = map[string]model.FilterOp{
	"$eq": model.OpEquals, "$in": model.OpIn, "$nin": model.OpNotIn,
	"$gt": model.OpGT, "$gte": model.OpGTE, "$lt": model.OpLT, "$lte": model.OpLTE,
	"$ne": model.OpNE, "$exists": model.OpExists, "$regex": model.OpRegex,
}

func decodeFieldFilter(field string, raw any) *model.Filter {
	m, ok := raw.(map[string]any)
	if !ok {
		return model.Eq(field, raw)
	}
	for opName, op := range mongoOpToFilterOp {
		if v, present := m[opName]; present {
			return &model.Filter{Op: op, Field: field, Value: v}
		}
	}
	return model.Eq(field, raw)
}
