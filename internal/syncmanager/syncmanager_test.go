package syncmanager

import (
	"context"
	"sync"
	"testing"

	"github.com/cbre360/js-sdk/internal/network"
	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/persister"
	"github.com/cbre360/js-sdk/internal/querycache"
	"github.com/cbre360/js-sdk/internal/syncstate"
	"github.com/cbre360/js-sdk/internal/model"
)

// fakeNet is a network.Repository test double for syncmanager's push/pull
// pipelines.
type fakeNet struct {
	mu sync.Mutex

	createFn func(collection string, entities []model.Entity) ([]model.Entity, error)
	updateFn func(collection string, entities []model.Entity) ([]model.Entity, error)
	deleteFn func(collection, id string) error

	readResp  *network.Response
	readErr   error
	readCalls []*model.Query

	countResp    int
	countHeaders map[string]string
	countErr     error

	deltaResult *network.DeltaSetResult
	deltaErr    error
}

func (f *fakeNet) Create(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error) {
	if f.createFn != nil {
		return f.createFn(collection, entities)
	}
	return entities, nil
}

func (f *fakeNet) Update(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error) {
	if f.updateFn != nil {
		return f.updateFn(collection, entities)
	}
	return entities, nil
}

func (f *fakeNet) Read(ctx context.Context, collection string, q *model.Query, opts network.ReadOptions) (*network.Response, error) {
	f.mu.Lock()
	f.readCalls = append(f.readCalls, q)
	f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.readResp != nil {
		return f.readResp, nil
	}
	return &network.Response{}, nil
}

func (f *fakeNet) ReadByID(ctx context.Context, collection, id string) (model.Entity, error) {
	return nil, model.NewError(model.KindNotFound, "not found")
}

func (f *fakeNet) Count(ctx context.Context, collection string, q *model.Query, opts network.ReadOptions) (int, map[string]string, error) {
	return f.countResp, f.countHeaders, f.countErr
}

func (f *fakeNet) DeleteByID(ctx context.Context, collection, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(collection, id)
	}
	return nil
}

func (f *fakeNet) Group(ctx context.Context, collection string, agg *model.Aggregation) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeNet) DeltaSet(ctx context.Context, collection string, since string, q *model.Query) (*network.DeltaSetResult, error) {
	return f.deltaResult, f.deltaErr
}

type harness struct {
	repo  *offline.Repository
	state *syncstate.Manager
	cache *querycache.Cache
	net   *fakeNet
	mgr   *Manager
}

func newHarness(cfg Config) *harness {
	repo := offline.New("app1", persister.NewMemoryPersister())
	state := syncstate.New(repo, "")
	cache := querycache.New(repo, "")
	net := &fakeNet{}
	mgr := New(repo, state, cache, net, "", cfg, nil)
	return &harness{repo: repo, state: state, cache: cache, net: net, mgr: mgr}
}

func entityWithID(id, title string) model.Entity {
	e := model.Entity{"title": title}
	e.SetID(id)
	return e
}

func TestPush_EmptyQueueReturnsNoResults(t *testing.T) {
	h := newHarness(DefaultConfig())
	results, err := h.mgr.Push(context.Background(), "todos", nil)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Push() = %+v, want no results for an empty queue", results)
	}
}

func TestPush_CreateSucceedsAndClearsIntent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())

	local := entityWithID("local1", "a")
	local.MarkLocal()
	if _, err := h.repo.Create(ctx, "todos", "", []model.Entity{local}); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}
	if err := h.state.AddCreate(ctx, "todos", []model.Entity{local}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}

	h.net.createFn = func(collection string, entities []model.Entity) ([]model.Entity, error) {
		server := entities[0].Clone()
		server.SetID("server1")
		return []model.Entity{server}, nil
	}

	results, err := h.mgr.Push(ctx, "todos", nil)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(results) != 1 || results[0].Error != nil {
		t.Fatalf("Push() = %+v, want one successful Create result", results)
	}
	if results[0].Entity.ID() != "server1" {
		t.Errorf("pushed entity id = %q, want server1", results[0].Entity.ID())
	}

	if _, err := h.repo.ReadByID(ctx, "todos", "", "local1"); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("local-id entity still present after push, want replaced by server id")
	}
	if _, err := h.repo.ReadByID(ctx, "todos", "", "server1"); err != nil {
		t.Errorf("ReadByID(server1) error = %v, want the server entity stored locally", err)
	}

	items, err := h.state.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("GetSyncItems() = %+v, want empty after a successful push", items)
	}
}

func TestPush_PerItemErrorDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())

	bad := entityWithID("bad", "x")
	good := entityWithID("good", "y")
	if _, err := h.repo.Create(ctx, "todos", "", []model.Entity{bad, good}); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}
	if err := h.state.AddCreate(ctx, "todos", []model.Entity{bad}); err != nil {
		t.Fatalf("AddCreate(bad) error = %v", err)
	}
	if err := h.state.AddCreate(ctx, "todos", []model.Entity{good}); err != nil {
		t.Fatalf("AddCreate(good) error = %v", err)
	}

	h.net.createFn = func(collection string, entities []model.Entity) ([]model.Entity, error) {
		if entities[0].ID() == "bad" {
			return nil, model.NewError(model.KindNoResponse, "network down")
		}
		server := entities[0].Clone()
		server.SetID("good-server")
		return []model.Entity{server}, nil
	}

	results, err := h.mgr.Push(ctx, "todos", nil)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Push() returned %d results, want 2", len(results))
	}

	var sawError, sawSuccess bool
	for _, r := range results {
		if r.Error != nil {
			sawError = true
		} else {
			sawSuccess = true
		}
	}
	if !sawError || !sawSuccess {
		t.Errorf("Push() results = %+v, want one error and one success", results)
	}

	items, err := h.state.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].EntityID != "bad" {
		t.Errorf("GetSyncItems() = %+v, want only the failed item still pending", items)
	}
}

func TestPush_ConcurrentPushRejected(t *testing.T) {
	h := newHarness(DefaultConfig())
	if !h.mgr.tryLockPush("todos") {
		t.Fatal("tryLockPush() = false on first call, want true")
	}
	defer h.mgr.unlockPush("todos")

	_, err := h.mgr.Push(context.Background(), "todos", nil)
	if !model.IsKind(err, model.KindSync) {
		t.Fatalf("Push() while locked error = %v, want KindSync", err)
	}
}

func TestPull_FailOnPendingPolicyRejects(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.PendingSyncPullPolicy = FailOnPending
	h := newHarness(cfg)

	local := entityWithID("local1", "a")
	if _, err := h.repo.Create(ctx, "todos", "", []model.Entity{local}); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}
	if err := h.state.AddCreate(ctx, "todos", []model.Entity{local}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}

	_, err := h.mgr.Pull(ctx, "todos", nil, Options{})
	if !model.IsKind(err, model.KindSync) {
		t.Fatalf("Pull() with pending items under FailOnPending = %v, want KindSync", err)
	}
}

func TestPull_RegularReplacesUnboundedSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())

	if _, err := h.repo.Create(ctx, "todos", "", []model.Entity{entityWithID("stale", "x")}); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}

	h.net.readResp = &network.Response{
		Data:    []model.Entity{entityWithID("fresh", "y")},
		Headers: map[string]string{network.RequestStartHeader: "2026-07-01T00:00:00.000Z"},
	}

	n, err := h.mgr.Pull(ctx, "todos", nil, Options{})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Pull() = %d, want 1", n)
	}

	if _, err := h.repo.ReadByID(ctx, "todos", "", "stale"); !model.IsKind(err, model.KindNotFound) {
		t.Error("stale entity survived an unbounded pull, want replaced")
	}
	if _, err := h.repo.ReadByID(ctx, "todos", "", "fresh"); err != nil {
		t.Errorf("ReadByID(fresh) error = %v", err)
	}

	entry, found, err := h.cache.Get(ctx, "todos", nil)
	if err != nil {
		t.Fatalf("cache.Get() error = %v", err)
	}
	if !found || entry.LastRequest != "2026-07-01T00:00:00.000Z" {
		t.Errorf("cache entry = %+v, found=%v, want the response's request-start timestamp recorded", entry, found)
	}
}

func TestPull_DeltaSetUsesCachedHighWaterMark(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())

	if err := h.cache.Upsert(ctx, "todos", nil, "2026-07-01T00:00:00.000Z"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := h.repo.Create(ctx, "todos", "", []model.Entity{entityWithID("old", "x"), entityWithID("deleted1", "z")}); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}

	h.net.deltaResult = &network.DeltaSetResult{
		Changed: []model.Entity{entityWithID("old", "updated")},
		Deleted: []string{"deleted1"},
		Headers: map[string]string{network.RequestStartHeader: "2026-07-02T00:00:00.000Z"},
	}

	n, err := h.mgr.Pull(ctx, "todos", nil, Options{UseDeltaSet: true})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Pull() = %d, want 1 changed entity", n)
	}

	if _, err := h.repo.ReadByID(ctx, "todos", "", "deleted1"); !model.IsKind(err, model.KindNotFound) {
		t.Error("tombstoned entity survived delta-set pull")
	}
	got, err := h.repo.ReadByID(ctx, "todos", "", "old")
	if err != nil {
		t.Fatalf("ReadByID(old) error = %v", err)
	}
	if got["title"] != "updated" {
		t.Errorf("ReadByID(old).title = %v, want updated", got["title"])
	}
}

func TestPull_DeltaSetWithNoCachedQueryForcesFullPull(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())

	h.net.readResp = &network.Response{Data: []model.Entity{entityWithID("a", "x")}}

	n, err := h.mgr.Pull(ctx, "todos", nil, Options{UseDeltaSet: true})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Pull() = %d, want 1 (fell back to a regular pull)", n)
	}
}

func TestPull_DeltaSetBoundedQueryBypassesDeltaSet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())
	if err := h.cache.Upsert(ctx, "todos", model.NewQuery().WithLimit(10), "2026-07-01T00:00:00.000Z"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	h.net.readResp = &network.Response{Data: []model.Entity{entityWithID("a", "x")}}

	_, err := h.mgr.Pull(ctx, "todos", model.NewQuery().WithLimit(10), Options{UseDeltaSet: true})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if h.net.deltaResult != nil {
		t.Error("DeltaSet was consulted despite a bounded query")
	}
}

func TestPull_AutoPaginationFetchesAllPages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(DefaultConfig())

	h.net.countResp = 5
	h.net.countHeaders = map[string]string{network.RequestStartHeader: "2026-07-01T00:00:00.000Z"}

	var pagesSeen []int
	var mu sync.Mutex
	net := &readCountingNet{fakeNet: h.net, pageFn: func(q *model.Query) *network.Response {
		mu.Lock()
		pagesSeen = append(pagesSeen, q.Skip)
		mu.Unlock()
		if len(q.Sort) != 1 || q.Sort[0].Field != model.IDField {
			t.Errorf("page query sort = %+v, want default _id ascending", q.Sort)
		}
		id := entityWithID("id-"+string(rune('a'+q.Skip)), "x")
		return &network.Response{Data: []model.Entity{id}}
	}}
	h.mgr = New(h.repo, h.state, h.cache, net, "", DefaultConfig(), nil)

	n, err := h.mgr.Pull(ctx, "todos", nil, Options{AutoPagination: true, PageSize: 2})
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Pull() auto-paginate fetched = %d, want 3 (one per page: sizes 2,2,1)", n)
	}
	if len(pagesSeen) != 3 {
		t.Errorf("pages fetched = %v, want 3 page requests for 5 items at page size 2", pagesSeen)
	}
}

// readCountingNet wraps fakeNet, overriding Read to synthesize a page response.
type readCountingNet struct {
	*fakeNet
	pageFn func(q *model.Query) *network.Response
}

func (r *readCountingNet) Read(ctx context.Context, collection string, q *model.Query, opts network.ReadOptions) (*network.Response, error) {
	return r.pageFn(q), nil
}
