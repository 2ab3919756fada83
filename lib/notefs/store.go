// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/sqlitepool"
)

// StoreConfig holds the parameters for opening the note store.
type StoreConfig struct {
	// Path is the filesystem path to the Joplin SQLite database.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4.
	PoolSize int

	// Clock is kept on the Store and defaults to clock.Real() if nil.
	// The created/updated timestamps written by CreateNote, Mkdir,
	// Rename and WriteHandle.Flush come from the clock passed to those
	// calls, not from this field.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to a discarding
	// logger if nil.
	Logger *slog.Logger
}

// Store owns the pooled SQLite connection to a Joplin database and
// provides row-level access to the notes and folders tables. It does not
// itself serialize access beyond what SQLite's own locking provides —
// the single coarse mutex lives one layer up, in Filesystem (node.go),
// since it must also cover the inode registry and write buffers.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// OpenStore opens (creating if necessary) the SQLite database at
// cfg.Path, applies the standard sqlitepool pragmas, and runs the
// Index Bootstrapper (schema.go) once per connection.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("notefs: Path is required")
	}

	cl := cfg.Clock
	if cl == nil {
		cl = clock.Real()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      cfg.Path,
		PoolSize:  poolSize,
		Logger:    logger,
		OnConnect: ensureIndexes,
	})
	if err != nil {
		return nil, fmt.Errorf("notefs: opening store: %w", err)
	}

	return &Store{pool: pool, clock: cl, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// withConn borrows a connection, runs fn, and returns it to the pool.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("notefs: take connection: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// withTx runs fn inside an IMMEDIATE transaction: a single logical
// transaction brackets every mutating operation so that a mid-operation
// failure leaves the store unchanged.
func (s *Store) withTx(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		endTransaction, txErr := sqlitex.ImmediateTransaction(conn)
		if txErr != nil {
			return fmt.Errorf("notefs: begin transaction: %w", txErr)
		}
		defer endTransaction(&err)

		err = fn(conn)
		return err
	})
}

const (
	folderColumns = "id, parent_id, title, created_time, updated_time, user_created_time, user_updated_time, deleted_time"
	noteColumns   = "id, parent_id, title, body, created_time, updated_time, user_created_time, user_updated_time, deleted_time"
)

func scanFolder(stmt *sqlite.Stmt) Row {
	return Row{
		Kind:            KindFolder,
		ID:              stmt.ColumnText(0),
		ParentID:        stmt.ColumnText(1),
		Title:           stmt.ColumnText(2),
		CreatedTime:     stmt.ColumnInt64(3),
		UpdatedTime:     stmt.ColumnInt64(4),
		UserCreatedTime: stmt.ColumnInt64(5),
		UserUpdatedTime: stmt.ColumnInt64(6),
		DeletedTime:     stmt.ColumnInt64(7),
	}
}

func scanNote(stmt *sqlite.Stmt) Row {
	return Row{
		Kind:            KindNote,
		ID:              stmt.ColumnText(0),
		ParentID:        stmt.ColumnText(1),
		Title:           stmt.ColumnText(2),
		Body:            stmt.ColumnText(3),
		CreatedTime:     stmt.ColumnInt64(4),
		UpdatedTime:     stmt.ColumnInt64(5),
		UserCreatedTime: stmt.ColumnInt64(6),
		UserUpdatedTime: stmt.ColumnInt64(7),
		DeletedTime:     stmt.ColumnInt64(8),
	}
}

// findFolder resolves the live folder with the given parent and title,
// breaking ties on the greatest user_updated_time.
func findFolder(conn *sqlite.Conn, parentID, title string) (Row, bool, error) {
	var row Row
	found := false
	query := fmt.Sprintf(`SELECT %s FROM folders WHERE parent_id = ? AND title = ? AND deleted_time = 0
		ORDER BY user_updated_time DESC LIMIT 1`, folderColumns)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{parentID, title},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row = scanFolder(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Row{}, false, fmt.Errorf("notefs: find folder: %w", err)
	}
	return row, found, nil
}

// findNote resolves the live note with the given parent and title.
func findNote(conn *sqlite.Conn, parentID, title string) (Row, bool, error) {
	var row Row
	found := false
	query := fmt.Sprintf(`SELECT %s FROM notes WHERE parent_id = ? AND title = ? AND deleted_time = 0
		ORDER BY user_updated_time DESC LIMIT 1`, noteColumns)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{parentID, title},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row = scanNote(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Row{}, false, fmt.Errorf("notefs: find note: %w", err)
	}
	return row, found, nil
}

// folderByID fetches a live folder by primary key.
func folderByID(conn *sqlite.Conn, id string) (Row, bool, error) {
	var row Row
	found := false
	query := fmt.Sprintf(`SELECT %s FROM folders WHERE id = ? AND deleted_time = 0`, folderColumns)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row = scanFolder(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Row{}, false, fmt.Errorf("notefs: folder by id: %w", err)
	}
	return row, found, nil
}

// noteByID fetches a live note by primary key.
func noteByID(conn *sqlite.Conn, id string) (Row, bool, error) {
	var row Row
	found := false
	query := fmt.Sprintf(`SELECT %s FROM notes WHERE id = ? AND deleted_time = 0`, noteColumns)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row = scanNote(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return Row{}, false, fmt.Errorf("notefs: note by id: %w", err)
	}
	return row, found, nil
}

// listFolders returns all live folders directly under parentID.
func listFolders(conn *sqlite.Conn, parentID string) ([]Row, error) {
	var rows []Row
	query := fmt.Sprintf(`SELECT %s FROM folders WHERE parent_id = ? AND deleted_time = 0 ORDER BY title, user_updated_time DESC`, folderColumns)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{parentID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, scanFolder(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notefs: list folders: %w", err)
	}
	return rows, nil
}

// listNotes returns all live notes directly under parentID.
func listNotes(conn *sqlite.Conn, parentID string) ([]Row, error) {
	var rows []Row
	query := fmt.Sprintf(`SELECT %s FROM notes WHERE parent_id = ? AND deleted_time = 0 ORDER BY title, user_updated_time DESC`, noteColumns)
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{parentID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, scanNote(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notefs: list notes: %w", err)
	}
	return rows, nil
}

// countChildren reports how many live folders and notes sit directly
// under parentID (a folder id), used by rmdir's ENOTEMPTY check.
func countChildren(conn *sqlite.Conn, parentID string) (folders, notes int, err error) {
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM folders WHERE parent_id = ? AND deleted_time = 0`, &sqlitex.ExecOptions{
		Args: []any{parentID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			folders = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("notefs: count child folders: %w", err)
	}

	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM notes WHERE parent_id = ? AND deleted_time = 0`, &sqlitex.ExecOptions{
		Args: []any{parentID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			notes = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("notefs: count child notes: %w", err)
	}
	return folders, notes, nil
}

// insertNote inserts a new note row, relying on table defaults for every
// column this package does not own.
func insertNote(conn *sqlite.Conn, row Row) error {
	err := sqlitex.Execute(conn, `INSERT INTO notes
		(id, parent_id, title, body, created_time, updated_time, user_created_time, user_updated_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{row.ID, row.ParentID, row.Title, row.Body, row.CreatedTime, row.UpdatedTime, row.UserCreatedTime, row.UserUpdatedTime},
	})
	if err != nil {
		return fmt.Errorf("notefs: insert note: %w", err)
	}
	return nil
}

// insertFolder inserts a new folder row.
func insertFolder(conn *sqlite.Conn, row Row) error {
	err := sqlitex.Execute(conn, `INSERT INTO folders
		(id, parent_id, title, created_time, updated_time, user_created_time, user_updated_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{row.ID, row.ParentID, row.Title, row.CreatedTime, row.UpdatedTime, row.UserCreatedTime, row.UserUpdatedTime},
	})
	if err != nil {
		return fmt.Errorf("notefs: insert folder: %w", err)
	}
	return nil
}

// updateNoteBody persists a note's body and bumps its timestamps. Used by
// the Read/Write Engine on flush/release and by setattr truncation.
func updateNoteBody(conn *sqlite.Conn, id, body string, now int64) error {
	err := sqlitex.Execute(conn, `UPDATE notes SET body = ?, updated_time = ?, user_updated_time = ? WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{body, now, now, id},
	})
	if err != nil {
		return fmt.Errorf("notefs: update note body: %w", err)
	}
	return nil
}

// renameNote moves and/or retitles a note row in place, preserving its id
// (and therefore its inode).
func renameNote(conn *sqlite.Conn, id, newParentID, newTitle string, now int64) error {
	err := sqlitex.Execute(conn, `UPDATE notes SET parent_id = ?, title = ?, updated_time = ?, user_updated_time = ? WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{newParentID, newTitle, now, now, id},
	})
	if err != nil {
		return fmt.Errorf("notefs: rename note: %w", err)
	}
	return nil
}

// renameFolder moves and/or retitles a folder row in place.
func renameFolder(conn *sqlite.Conn, id, newParentID, newTitle string, now int64) error {
	err := sqlitex.Execute(conn, `UPDATE folders SET parent_id = ?, title = ?, updated_time = ?, user_updated_time = ? WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{newParentID, newTitle, now, now, id},
	})
	if err != nil {
		return fmt.Errorf("notefs: rename folder: %w", err)
	}
	return nil
}

// deleteNote hard-deletes a note row.
func deleteNote(conn *sqlite.Conn, id string) error {
	if err := sqlitex.Execute(conn, `DELETE FROM notes WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
		return fmt.Errorf("notefs: delete note: %w", err)
	}
	return nil
}

// deleteFolder hard-deletes a folder row.
func deleteFolder(conn *sqlite.Conn, id string) error {
	if err := sqlitex.Execute(conn, `DELETE FROM folders WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
		return fmt.Errorf("notefs: delete folder: %w", err)
	}
	return nil
}

// folderAncestors walks the parent_id chain starting at folderID upward
// to the root, returning the chain of folder ids visited (folderID
// itself excluded). Used by Rename's cycle check.
func folderAncestors(conn *sqlite.Conn, folderID string) ([]string, error) {
	var chain []string
	current := folderID
	for current != "" {
		row, ok, err := folderByID(conn, current)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		current = row.ParentID
		if current != "" {
			chain = append(chain, current)
		}
	}
	return chain, nil
}
