// Package syncstate implements the SyncStateManager of the specification:
// a per-entity pending-op log tracking create/update/delete intents awaiting
// push, stored in the offline repository's reserved "kinvey_sync" collection.
package syncstate

import (
	"context"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/model"
)

// reservedCollection is the offline-repo collection SyncItems live in.
const reservedCollection = "kinvey_sync"

// Operation is the pending intent kind for a SyncItem.
type Operation string

const (
	Create Operation = "Create"
	Update Operation = "Update"
	Delete Operation = "Delete"
)

// Item is one SyncItem: at most one exists per (collection, entityId).
// Sequence is a ulid assigned the first time an entity gets a pending
// intent; it survives operation merges so push() processes the queue in
// the order intents were originally recorded, independent of how the
// offline repository happens to store or return rows.
type Item struct {
	EntityID   string    `json:"entityId"`
	Collection string    `json:"collection"`
	Operation  Operation `json:"operation"`
	Sequence   string    `json:"sequence"`
}

// Manager is the SyncStateManager, backed by the offline repository's
// reserved "kinvey_sync" collection.
type Manager struct {
	repo *offline.Repository
	tag  string
}

// New constructs a Manager over repo.
func New(repo *offline.Repository, tag string) *Manager {
	return &Manager{repo: repo, tag: tag}
}

func recordID(collection, entityID string) string {
	return collection + "\x00" + entityID
}

// addIntent is the shared implementation of AddCreate/AddUpdate/AddDelete:
// it applies the 4.4 operation-merge rules against any existing SyncItem
// for this (collection, entityId).
func (m *Manager) addIntent(ctx context.Context, collection string, entities []model.Entity, op Operation) error {
	for _, e := range entities {
		id := e.ID()
		if id == "" {
			return model.NewError(model.KindSync, "cannot record sync intent: entity has no _id")
		}

		existing, found, err := m.get(ctx, collection, id)
		if err != nil {
			return err
		}

		sequence := ulid.Make().String()
		if found {
			sequence = existing.Sequence
		}

		if found {
			switch {
			case existing.Operation == Delete:
				return model.NewError(model.KindSync, "cannot mutate an entity with a pending delete intent")
			case existing.Operation == Create && op == Delete:
				// Never-pushed create, now deleted: drop the intent and the
				// offline entity entirely; nothing is ever pushed for it.
				if _, err := m.repo.DeleteByID(ctx, reservedCollection, m.tag, recordID(collection, id)); err != nil {
					return err
				}
				if _, err := m.repo.DeleteByID(ctx, collection, "", id); err != nil {
					return err
				}
				continue
			case existing.Operation == Create && op == Update:
				op = Create // keep Create; payload is the latest entity (handled by caller's repo write)
			case existing.Operation == Update && op == Update:
				op = Update
			case existing.Operation == Update && op == Delete:
				op = Delete // Delete wins
			}
		}

		item := Item{EntityID: id, Collection: collection, Operation: op, Sequence: sequence}
		if _, err := m.repo.Update(ctx, reservedCollection, m.tag, []model.Entity{itemToEntity(item)}); err != nil {
			return err
		}
	}
	return nil
}

// AddCreate records Create intents for entities.
func (m *Manager) AddCreate(ctx context.Context, collection string, entities []model.Entity) error {
	return m.addIntent(ctx, collection, entities, Create)
}

// AddUpdate records Update intents for entities.
func (m *Manager) AddUpdate(ctx context.Context, collection string, entities []model.Entity) error {
	return m.addIntent(ctx, collection, entities, Update)
}

// AddDelete records Delete intents for entities.
func (m *Manager) AddDelete(ctx context.Context, collection string, entities []model.Entity) error {
	return m.addIntent(ctx, collection, entities, Delete)
}

func (m *Manager) get(ctx context.Context, collection, entityID string) (*Item, bool, error) {
	e, err := m.repo.ReadByID(ctx, reservedCollection, m.tag, recordID(collection, entityID))
	if model.IsKind(err, model.KindNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	item := entityToItem(e)
	return &item, true, nil
}

// GetSyncItems returns every SyncItem in collection, or (if entityIDs is
// non-empty) only those matching the given ids.
func (m *Manager) GetSyncItems(ctx context.Context, collection string, entityIDs ...string) ([]Item, error) {
	q := model.NewQuery().WithFilter(model.Eq("collection", collection))
	entities, err := m.repo.Read(ctx, reservedCollection, m.tag, q)
	if err != nil {
		return nil, err
	}
	var wanted map[string]bool
	if len(entityIDs) > 0 {
		wanted = make(map[string]bool, len(entityIDs))
		for _, id := range entityIDs {
			wanted[id] = true
		}
	}
	out := make([]Item, 0, len(entities))
	for _, e := range entities {
		item := entityToItem(e)
		if wanted != nil && !wanted[item.EntityID] {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// GetSyncItemCount returns len(GetSyncItems(...)).
func (m *Manager) GetSyncItemCount(ctx context.Context, collection string, entityIDs ...string) (int, error) {
	items, err := m.GetSyncItems(ctx, collection, entityIDs...)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// RemoveSyncItemForEntityID clears the SyncItem for one entity.
func (m *Manager) RemoveSyncItemForEntityID(ctx context.Context, collection, entityID string) error {
	_, err := m.repo.DeleteByID(ctx, reservedCollection, m.tag, recordID(collection, entityID))
	return err
}

// RemoveSyncItemsForIDs clears SyncItems for multiple entities.
func (m *Manager) RemoveSyncItemsForIDs(ctx context.Context, collection string, entityIDs []string) error {
	for _, id := range entityIDs {
		if err := m.RemoveSyncItemForEntityID(ctx, collection, id); err != nil {
			return err
		}
	}
	return nil
}

// RemoveAllSyncItems clears every SyncItem for collection.
func (m *Manager) RemoveAllSyncItems(ctx context.Context, collection string) error {
	_, err := m.repo.Delete(ctx, reservedCollection, m.tag, model.NewQuery().WithFilter(model.Eq("collection", collection)))
	return err
}

func itemToEntity(i Item) model.Entity {
	return model.Entity{
		model.IDField: recordID(i.Collection, i.EntityID),
		"entityId":     i.EntityID,
		"collection":   i.Collection,
		"operation":    string(i.Operation),
		"sequence":     i.Sequence,
	}
}

func entityToItem(e model.Entity) Item {
	entityID, _ := e["entityId"].(string)
	collection, _ := e["collection"].(string)
	op, _ := e["operation"].(string)
	sequence, _ := e["sequence"].(string)
	return Item{EntityID: entityID, Collection: collection, Operation: Operation(op), Sequence: sequence}
}
