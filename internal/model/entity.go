// Package model holds the domain types shared between the public kinvey
// package and its internal implementation packages: Entity, Query/Filter/
// Aggregation, and StoreError/ErrorKind. It sits at the bottom of the import
// graph (no dependency on pkg/kinvey or any other internal package) so that
// internal/offline, internal/network, internal/processor, internal/
// syncmanager, and friends can depend on these types without importing the
// wiring package that in turn depends on them.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Entity is an open JSON object. The core only ever inspects "_id" and
// "_kmd.local"; every other field is opaque and round-trips unchanged.
type Entity map[string]any

// IDField is the entity field name holding the canonical id, exported so
// callers can build filters against it (e.g. model.Eq(model.IDField, id)).
const IDField = "_id"

const (
	fieldID  = IDField
	fieldKMD = "_kmd"
	fieldACL = "_acl"
	kmdLocal = "local"
	kmdLMT   = "lmt"
	kmdECT   = "ect"
	kmdAuth  = "authtoken"
)

// ID returns the entity's "_id", or "" if absent or not a string.
func (e Entity) ID() string {
	v, _ := e[fieldID].(string)
	return v
}

// SetID sets "_id".
func (e Entity) SetID(id string) {
	e[fieldID] = id
}

// HasID reports whether "_id" is present and non-empty.
func (e Entity) HasID() bool {
	return e.ID() != ""
}

// IsLocal reports whether "_kmd.local" is true, i.e. this entity was minted
// offline and has not yet been pushed.
func (e Entity) IsLocal() bool {
	kmd, ok := e[fieldKMD].(map[string]any)
	if !ok {
		return false
	}
	local, _ := kmd[kmdLocal].(bool)
	return local
}

// MarkLocal stamps "_kmd.local = true", creating "_kmd" if absent.
func (e Entity) MarkLocal() {
	kmd, ok := e[fieldKMD].(map[string]any)
	if !ok {
		kmd = map[string]any{}
		e[fieldKMD] = kmd
	}
	kmd[kmdLocal] = true
}

// ClearLocalMarkers removes the locally-minted "_id" and "_kmd.local",
// as required before a Create push (spec 4.7: "strip local markers").
func (e Entity) ClearLocalMarkers() {
	delete(e, fieldID)
	if kmd, ok := e[fieldKMD].(map[string]any); ok {
		delete(kmd, kmdLocal)
		if len(kmd) == 0 {
			delete(e, fieldKMD)
		}
	}
}

// Clone returns a copy of the entity. Top-level fields are copied shallowly,
// except that the "_kmd" map is copied too, so MarkLocal and
// ClearLocalMarkers on the clone leave the original untouched; other nested
// values (such as "_acl") are shared with the original.
func (e Entity) Clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	if kmd, ok := e[fieldKMD].(map[string]any); ok {
		kmdCopy := make(map[string]any, len(kmd))
		for k, v := range kmd {
			kmdCopy[k] = v
		}
		out[fieldKMD] = kmdCopy
	}
	return out
}

// NewLocalID mints a 24-character lowercase hex id, matching the backend's
// own id format, so locally-created entities are indistinguishable on the
// wire from server-assigned ones until push rewrites them.
func NewLocalID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand.Read on the standard reader does not fail in practice;
		// fall back to a timestamp-seeded id rather than panicking.
		ts := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(ts >> (8 * uint(i%8)))
		}
	}
	return hex.EncodeToString(buf)
}

// ValidEntityID reports whether id has the backend's 24-character hex shape.
func ValidEntityID(id string) bool {
	if len(id) != 24 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
