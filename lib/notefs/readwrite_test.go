// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
)

const writeTestSchema = `
CREATE TABLE folders (
	id TEXT PRIMARY KEY, title TEXT NOT NULL DEFAULT '', parent_id TEXT NOT NULL DEFAULT '',
	created_time INT NOT NULL DEFAULT 0, updated_time INT NOT NULL DEFAULT 0,
	user_created_time INT NOT NULL DEFAULT 0, user_updated_time INT NOT NULL DEFAULT 0,
	deleted_time INT NOT NULL DEFAULT 0
);
CREATE TABLE notes (
	id TEXT PRIMARY KEY, title TEXT NOT NULL DEFAULT '', body TEXT NOT NULL DEFAULT '', parent_id TEXT NOT NULL DEFAULT '',
	created_time INT NOT NULL DEFAULT 0, updated_time INT NOT NULL DEFAULT 0,
	user_created_time INT NOT NULL DEFAULT 0, user_updated_time INT NOT NULL DEFAULT 0,
	deleted_time INT NOT NULL DEFAULT 0
);
`

func newWriteTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "joplin.sqlite")

	bootstrap, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		t.Fatalf("OpenConn: %v", err)
	}
	if err := sqlitex.ExecuteScript(bootstrap, writeTestSchema, nil); err != nil {
		t.Fatalf("ExecuteScript: %v", err)
	}
	if err := bootstrap.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err := OpenStore(StoreConfig{Path: dbPath, PoolSize: 1})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWriteHandleBuffersUntilFlush(t *testing.T) {
	store := newWriteTestStore(t)
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	row := Row{Kind: KindNote, ID: "note-1", Title: "scratch"}
	err := store.withTx(ctx, func(conn *sqlite.Conn) error {
		return insertNote(conn, row)
	})
	if err != nil {
		t.Fatalf("insertNote: %v", err)
	}

	handle := newWriteHandle(store, fakeClock, row)
	if n, errno := handle.Write([]byte("hello"), 0); errno != 0 || n != 5 {
		t.Fatalf("Write = (%d, %v), want (5, 0)", n, errno)
	}

	if got := handle.Size(); got != 5 {
		t.Fatalf("Size() = %d, want 5 before flush", got)
	}

	// Stored row must be untouched before flush.
	storedBefore, ok, err := func() (Row, bool, error) {
		var r Row
		var found bool
		txErr := store.withConn(ctx, func(conn *sqlite.Conn) error {
			var rErr error
			r, found, rErr = noteByID(conn, row.ID)
			return rErr
		})
		return r, found, txErr
	}()
	if err != nil || !ok {
		t.Fatalf("noteByID before flush: %v, %v", ok, err)
	}
	if storedBefore.Body != "" {
		t.Fatalf("body persisted before Flush: %q", storedBefore.Body)
	}

	if errno := handle.Flush(ctx); errno != 0 {
		t.Fatalf("Flush: errno %v", errno)
	}

	var afterFlush Row
	err = store.withConn(ctx, func(conn *sqlite.Conn) error {
		var found bool
		var rErr error
		afterFlush, found, rErr = noteByID(conn, row.ID)
		if rErr == nil && !found {
			t.Fatalf("note vanished after flush")
		}
		return rErr
	})
	if err != nil {
		t.Fatalf("noteByID after flush: %v", err)
	}
	if afterFlush.Body != "hello" {
		t.Fatalf("body after flush = %q, want %q", afterFlush.Body, "hello")
	}
}

func TestWriteHandleTruncate(t *testing.T) {
	store := newWriteTestStore(t)
	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	row := Row{Kind: KindNote, ID: "note-2", Title: "scratch", Body: "0123456789"}
	handle := newWriteHandle(store, fakeClock, row)

	handle.Truncate(4)
	if got := handle.Size(); got != 4 {
		t.Fatalf("Size() after Truncate(4) = %d, want 4", got)
	}
	if got := handle.Read(0, 10); string(got) != "0123" {
		t.Fatalf("Read after truncate = %q, want %q", got, "0123")
	}

	handle.Truncate(6)
	if got := handle.Read(4, 2); string(got) != "\x00\x00" {
		t.Fatalf("grown region not zero-filled: %q", got)
	}
}
