package kinvey

import "github.com/cbre360/js-sdk/internal/model"

// Entity is an open JSON object. The core only ever inspects "_id" and
// "_kmd.local"; every other field is opaque and round-trips unchanged.
// It is an alias of internal/model.Entity so that internal packages and
// this public package share one identical type with no import cycle.
type Entity = model.Entity

// IDField is the entity field name holding the canonical id, exported so
// callers can build filters against it (e.g. kinvey.Eq(kinvey.IDField, id)).
const IDField = model.IDField

// NewLocalID mints a 24-character lowercase hex id, matching the backend's
// own id format, so locally-created entities are indistinguishable on the
// wire from server-assigned ones until push rewrites them.
func NewLocalID() string { return model.NewLocalID() }

// ValidEntityID reports whether id has the backend's 24-character hex shape.
func ValidEntityID(id string) bool { return model.ValidEntityID(id) }
