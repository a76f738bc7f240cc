package syncstate

import (
	"context"
	"testing"

	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/persister"
	"github.com/cbre360/js-sdk/internal/model"
)

func newManager() *Manager {
	repo := offline.New("app1", persister.NewMemoryPersister())
	return New(repo, "")
}

func entityWithID(id string) model.Entity {
	e := model.Entity{"title": "x"}
	e.SetID(id)
	return e
}

func TestManager_AddCreate(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}

	items, err := m.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Operation != Create || items[0].EntityID != "1" {
		t.Fatalf("GetSyncItems() = %+v, want one Create item for id 1", items)
	}
	if items[0].Sequence == "" {
		t.Error("Sequence = \"\", want a generated ulid")
	}
}

func TestManager_CreateThenUpdateStaysCreate(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}
	if err := m.AddUpdate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddUpdate() error = %v", err)
	}

	items, err := m.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Operation != Create {
		t.Fatalf("GetSyncItems() = %+v, want single Create item", items)
	}
}

func TestManager_CreateThenDeleteDropsIntentAndEntity(t *testing.T) {
	ctx := context.Background()
	repo := offline.New("app1", persister.NewMemoryPersister())
	m := New(repo, "")

	ent := entityWithID("1")
	if _, err := repo.Create(ctx, "todos", "", []model.Entity{ent}); err != nil {
		t.Fatalf("repo.Create() error = %v", err)
	}
	if err := m.AddCreate(ctx, "todos", []model.Entity{ent}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}
	if err := m.AddDelete(ctx, "todos", []model.Entity{ent}); err != nil {
		t.Fatalf("AddDelete() error = %v", err)
	}

	items, err := m.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("GetSyncItems() = %+v, want no items after create+delete", items)
	}

	if _, err := repo.ReadByID(ctx, "todos", "", "1"); !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("ReadByID() error = %v, want KindNotFound", err)
	}
}

func TestManager_UpdateThenUpdateStaysUpdate(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	if err := m.AddUpdate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddUpdate() error = %v", err)
	}
	if err := m.AddUpdate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddUpdate() error = %v", err)
	}

	items, err := m.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Operation != Update {
		t.Fatalf("GetSyncItems() = %+v, want single Update item", items)
	}
}

func TestManager_UpdateThenDeleteWinsDelete(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	if err := m.AddUpdate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddUpdate() error = %v", err)
	}
	if err := m.AddDelete(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddDelete() error = %v", err)
	}

	items, err := m.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Operation != Delete {
		t.Fatalf("GetSyncItems() = %+v, want single Delete item", items)
	}
}

func TestManager_DeleteThenAnythingIsSyncError(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	if err := m.AddDelete(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddDelete() error = %v", err)
	}

	if err := m.AddUpdate(ctx, "todos", []model.Entity{entityWithID("1")}); !model.IsKind(err, model.KindSync) {
		t.Fatalf("AddUpdate() after Delete error = %v, want KindSync", err)
	}
	if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID("1")}); !model.IsKind(err, model.KindSync) {
		t.Fatalf("AddCreate() after Delete error = %v, want KindSync", err)
	}
}

func TestManager_GetSyncItemsPreservesIntentOrder(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	for _, id := range []string{"c", "a", "b"} {
		if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID(id)}); err != nil {
			t.Fatalf("AddCreate(%q) error = %v", id, err)
		}
	}

	items, err := m.GetSyncItems(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("GetSyncItems() returned %d items, want 3", len(items))
	}
	got := []string{items[0].EntityID, items[1].EntityID, items[2].EntityID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetSyncItems() order = %v, want intent order %v", got, want)
			break
		}
	}
}

func TestManager_GetSyncItemsFiltersByEntityID(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	for _, id := range []string{"1", "2", "3"} {
		if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID(id)}); err != nil {
			t.Fatalf("AddCreate(%q) error = %v", id, err)
		}
	}

	items, err := m.GetSyncItems(ctx, "todos", "2")
	if err != nil {
		t.Fatalf("GetSyncItems() error = %v", err)
	}
	if len(items) != 1 || items[0].EntityID != "2" {
		t.Fatalf("GetSyncItems(filter) = %+v, want just id 2", items)
	}
}

func TestManager_RemoveSyncItemForEntityID(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}
	if err := m.RemoveSyncItemForEntityID(ctx, "todos", "1"); err != nil {
		t.Fatalf("RemoveSyncItemForEntityID() error = %v", err)
	}

	count, err := m.GetSyncItemCount(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItemCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("GetSyncItemCount() = %d, want 0", count)
	}
}

func TestManager_RemoveAllSyncItems(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	for _, id := range []string{"1", "2"} {
		if err := m.AddCreate(ctx, "todos", []model.Entity{entityWithID(id)}); err != nil {
			t.Fatalf("AddCreate(%q) error = %v", id, err)
		}
	}
	if err := m.AddCreate(ctx, "notes", []model.Entity{entityWithID("1")}); err != nil {
		t.Fatalf("AddCreate() error = %v", err)
	}

	if err := m.RemoveAllSyncItems(ctx, "todos"); err != nil {
		t.Fatalf("RemoveAllSyncItems() error = %v", err)
	}

	todoCount, err := m.GetSyncItemCount(ctx, "todos")
	if err != nil {
		t.Fatalf("GetSyncItemCount(todos) error = %v", err)
	}
	if todoCount != 0 {
		t.Errorf("GetSyncItemCount(todos) = %d, want 0", todoCount)
	}

	noteCount, err := m.GetSyncItemCount(ctx, "notes")
	if err != nil {
		t.Fatalf("GetSyncItemCount(notes) error = %v", err)
	}
	if noteCount != 1 {
		t.Errorf("GetSyncItemCount(notes) = %d, want 1 (untouched)", noteCount)
	}
}

func TestManager_AddCreateRejectsEntityWithoutID(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	err := m.AddCreate(ctx, "todos", []model.Entity{{"title": "no id"}})
	if !model.IsKind(err, model.KindSync) {
		t.Fatalf("AddCreate() error = %v, want KindSync", err)
	}
}
