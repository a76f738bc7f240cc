package refsqlite

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/cbre360/js-sdk/internal/refsqlite/migrations"
)

// runMigrations applies all pending migrations using goose against the
// embedded schema in internal/refsqlite/migrations.
func runMigrations(db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
