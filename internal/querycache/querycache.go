// Package querycache implements the QueryCache of the specification: a
// per-(collection, canonical query) record of the server's high-water-mark
// timestamp, used to decide delta-set eligibility on the next pull.
package querycache

import (
	"context"

	"github.com/cbre360/js-sdk/internal/offline"
	"github.com/cbre360/js-sdk/internal/model"
)

// reservedCollection is the offline-repo collection CachedQuery records
// live in, per spec 4.3.
const reservedCollection = "_QueryCache"

// Entry is one CachedQuery record.
type Entry struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`      // canonical query string
	LastRequest string `json:"lastRequest"` // ISO8601, verbatim from X-Kinvey-Request-Start
}

// Cache is the QueryCache, backed by the offline repository's reserved
// "_QueryCache" collection.
type Cache struct {
	repo *offline.Repository
	tag  string
}

// New constructs a Cache over repo. tag partitions state the same way a
// DataStore tag partitions collections.
func New(repo *offline.Repository, tag string) *Cache {
	return &Cache{repo: repo, tag: tag}
}

func recordID(collection, canonicalQuery string) string {
	return collection + "\x00" + canonicalQuery
}

// Get returns the CachedQuery for (collection, query), if any.
func (c *Cache) Get(ctx context.Context, collection string, query *model.Query) (*Entry, bool, error) {
	id := recordID(collection, query.Canonical())
	e, err := c.repo.ReadByID(ctx, reservedCollection, c.tag, id)
	if model.IsKind(err, model.KindNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entryFromEntity(e), true, nil
}

// Upsert records or updates lastRequest for (collection, query). lastRequest
// must be the verbatim X-Kinvey-Request-Start header value — the server
// decides the timestamp, the client never derives it.
func (c *Cache) Upsert(ctx context.Context, collection string, query *model.Query, lastRequest string) error {
	id := recordID(collection, query.Canonical())
	ent := entityFromEntry(id, Entry{Collection: collection, Query: query.Canonical(), LastRequest: lastRequest})
	_, err := c.repo.Update(ctx, reservedCollection, c.tag, []model.Entity{ent})
	return err
}

// Delete removes the CachedQuery for (collection, query), e.g. after the
// server rejects a delta-set since token as InvalidCachedQuery.
func (c *Cache) Delete(ctx context.Context, collection string, query *model.Query) error {
	_, err := c.repo.DeleteByID(ctx, reservedCollection, c.tag, recordID(collection, query.Canonical()))
	return err
}

// DeleteAllForCollection removes every CachedQuery entry for collection,
// across all queries.
func (c *Cache) DeleteAllForCollection(ctx context.Context, collection string) error {
	_, err := c.repo.Delete(ctx, reservedCollection, c.tag, model.NewQuery().WithFilter(model.Eq("collection", collection)))
	return err
}

func entityFromEntry(id string, e Entry) model.Entity {
	return model.Entity{
		model.IDField: id,
		"collection":   e.Collection,
		"query":        e.Query,
		"lastRequest":  e.LastRequest,
	}
}

func entryFromEntity(e model.Entity) *Entry {
	collection, _ := e["collection"].(string)
	query, _ := e["query"].(string)
	lastRequest, _ := e["lastRequest"].(string)
	return &Entry{Collection: collection, Query: query, LastRequest: lastRequest}
}
