package processor

import (
	"context"
	"testing"

	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/persister"
	"github.com/cbre360/js-sdk/internal/syncstate"
	"github.com/cbre360/js-sdk/internal/model"
)

func newSyncProcessor() *Sync {
	repo := offline.New("app1", persister.NewMemoryPersister())
	state := syncstate.New(repo, "")
	return NewSync(repo, state)
}

func TestSyncProcessor_CreateMintsIDAndRecordsIntent(t *testing.T) {
	ctx := context.Background()
	p := newSyncProcessor()

	created, err := p.Create(ctx, "todos", "", []model.Entity{{"title": "a"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created[0].HasID() {
		t.Fatal("Create() entity has no _id, want a locally minted one")
	}
	if !created[0].IsLocal() {
		t.Error("Create() entity not marked local")
	}

	items, err := p.state.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Operation != syncstate.Create {
		t.Errorf("GetSyncItems() = %+v, want one Create intent", items)
	}
}

func TestSyncProcessor_UpdateRequiresID(t *testing.T) {
	p := newSyncProcessor()
	_, err := p.Update(context.Background(), "todos", "", []model.Entity{{"title": "no id"}})
	if err == nil {
		t.Fatal("Update() error = nil, want error for entity missing _id")
	}
}

func TestSyncProcessor_FindReadsLocalOnly(t *testing.T) {
	ctx := context.Background()
	p := newSyncProcessor()

	if _, err := p.Create(ctx, "todos", "", []model.Entity{{"title": "a"}, {"title": "b"}}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res := <-p.Find(ctx, "todos", "", nil)
	if res.Error != nil {
		t.Fatalf("Find() error = %v", res.Error)
	}
	if len(res.Entities) != 2 {
		t.Fatalf("Find() returned %d entities, want 2", len(res.Entities))
	}
}

func TestSyncProcessor_RemoveByIDRecordsDeleteIntent(t *testing.T) {
	ctx := context.Background()
	p := newSyncProcessor()

	created, err := p.Create(ctx, "todos", "", []model.Entity{{"title": "a"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id := created[0].ID()

	// A pending Create merged with a Delete drops both the intent and the
	// local entity outright (spec 4.4), so RemoveByID reports the logical
	// removal even though no SyncItem remains queued.
	n, err := p.RemoveByID(ctx, "todos", "", id)
	if err != nil {
		t.Fatalf("RemoveByID() error = %v", err)
	}
	if n != 1 {
		t.Errorf("RemoveByID() = %d, want 1", n)
	}

	items, err := p.state.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("GetSyncItems() = %+v, want none (Create+Delete merge drops the intent)", items)
	}
}

func TestSyncProcessor_RemoveByIDMissingIsNoop(t *testing.T) {
	p := newSyncProcessor()
	n, err := p.RemoveByID(context.Background(), "todos", "", "nope")
	if err != nil {
		t.Fatalf("RemoveByID() error = %v", err)
	}
	if n != 0 {
		t.Errorf("RemoveByID() = %d, want 0", n)
	}
}
