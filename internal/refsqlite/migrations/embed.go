// Package migrations embeds the goose migration files for the reference
// SQLite-backed KeyValuePersister.
package migrations

import "embed"

// FS is the embedded filesystem goose applies migrations from.
//
//go:embed *.sql
var FS embed.FS
