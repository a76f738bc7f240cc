package processor

import (
	"context"
	"testing"

	"github.com/cbre360/js-sdk/internal/network"
	"github.com/cbre360/js-sdk/internal/model"
)

// fakeRepository is a network.Repository test double recording calls and
// returning canned responses.
type fakeRepository struct {
	readResp  *network.Response
	readErr   error
	readByID  map[string]model.Entity
	count     int
	countErr  error
	created   []model.Entity
	createErr error
	updated   []model.Entity
	updateErr error
	deleted   []string
	deleteErr error
	groupRows []map[string]any
	groupErr  error
}

func (f *fakeRepository) Create(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = entities
	return entities, nil
}

func (f *fakeRepository) Update(ctx context.Context, collection string, entities []model.Entity) ([]model.Entity, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updated = entities
	return entities, nil
}

func (f *fakeRepository) Read(ctx context.Context, collection string, q *model.Query, opts network.ReadOptions) (*network.Response, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.readResp, nil
}

func (f *fakeRepository) ReadByID(ctx context.Context, collection, id string) (model.Entity, error) {
	e, ok := f.readByID[id]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "not found")
	}
	return e, nil
}

func (f *fakeRepository) Count(ctx context.Context, collection string, q *model.Query, opts network.ReadOptions) (int, map[string]string, error) {
	return f.count, nil, f.countErr
}

func (f *fakeRepository) DeleteByID(ctx context.Context, collection, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepository) Group(ctx context.Context, collection string, agg *model.Aggregation) ([]map[string]any, error) {
	return f.groupRows, f.groupErr
}

func (f *fakeRepository) DeltaSet(ctx context.Context, collection string, since string, q *model.Query) (*network.DeltaSetResult, error) {
	return nil, nil
}

func TestNetworkProcessor_Find(t *testing.T) {
	fake := &fakeRepository{readResp: &network.Response{Data: []model.Entity{{"_id": "1"}}}}
	p := NewNetwork(fake)

	res := <-p.Find(context.Background(), "todos", "", nil)
	if res.Error != nil {
		t.Fatalf("Find() error = %v", res.Error)
	}
	if len(res.Entities) != 1 {
		t.Fatalf("Find() returned %d entities, want 1", len(res.Entities))
	}
}

func TestNetworkProcessor_FindByID(t *testing.T) {
	fake := &fakeRepository{readByID: map[string]model.Entity{"1": {"_id": "1", "title": "a"}}}
	p := NewNetwork(fake)

	res := <-p.FindByID(context.Background(), "todos", "", "1")
	if res.Error != nil {
		t.Fatalf("FindByID() error = %v", res.Error)
	}
	if res.Entity["title"] != "a" {
		t.Errorf("FindByID().Entity = %+v, want title=a", res.Entity)
	}
}

func TestNetworkProcessor_UpdateRequiresID(t *testing.T) {
	p := NewNetwork(&fakeRepository{})
	_, err := p.Update(context.Background(), "todos", "", []model.Entity{{"title": "no id"}})
	if err == nil {
		t.Fatal("Update() error = nil, want error for entity missing _id")
	}
}

func TestNetworkProcessor_RemoveByIDEmptyIsNoop(t *testing.T) {
	fake := &fakeRepository{}
	p := NewNetwork(fake)
	n, err := p.RemoveByID(context.Background(), "todos", "", "")
	if err != nil || n != 0 {
		t.Fatalf("RemoveByID(\"\") = %d, %v, want 0, nil", n, err)
	}
	if len(fake.deleted) != 0 {
		t.Error("RemoveByID(\"\") issued a delete call, want none")
	}
}

func TestNetworkProcessor_RemoveDeletesEveryMatch(t *testing.T) {
	fake := &fakeRepository{readResp: &network.Response{Data: []model.Entity{{"_id": "1"}, {"_id": "2"}}}}
	p := NewNetwork(fake)

	n, err := p.Remove(context.Background(), "todos", "", nil)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Remove() = %d, want 2", n)
	}
	if len(fake.deleted) != 2 {
		t.Errorf("deleted = %v, want 2 ids", fake.deleted)
	}
}

func TestNetworkProcessor_Create(t *testing.T) {
	fake := &fakeRepository{}
	p := NewNetwork(fake)
	_, err := p.Create(context.Background(), "todos", "", []model.Entity{{"title": "a"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(fake.created) != 1 {
		t.Error("Create() did not forward entities to the network repository")
	}
}
