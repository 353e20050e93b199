package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Migrate applies the idempotent schema on startup. All statements use
// IF NOT EXISTS so re-running against an existing database is a no-op.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
