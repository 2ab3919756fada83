// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ensureIndexes runs once per pooled connection via
// sqlitepool.Config.OnConnect and creates the indexes path lookups and
// directory listings depend on for reasonable performance, without
// which every lookup would be a full table scan of notes/folders.
//
// A migration framework is deliberately not used here: most such
// drivers expect a database/sql *sql.DB, and zombiezen.com/go/sqlite
// does not implement that interface. The DDL below is already
// idempotent (IF NOT EXISTS), so a migration framework would add a
// dependency without adding safety.
func ensureIndexes(conn *sqlite.Conn) error {
	err := sqlitex.ExecuteScript(conn, `
		CREATE INDEX IF NOT EXISTS notefs_folders_parent_title
			ON folders (parent_id, title);
		CREATE INDEX IF NOT EXISTS notefs_notes_parent_title
			ON notes (parent_id, title);
		CREATE INDEX IF NOT EXISTS notefs_folders_deleted
			ON folders (deleted_time);
		CREATE INDEX IF NOT EXISTS notefs_notes_deleted
			ON notes (deleted_time);
	`, nil)
	if err != nil {
		return fmt.Errorf("notefs: ensure indexes: %w", err)
	}
	return nil
}
