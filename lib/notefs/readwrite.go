// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"sync"
	"syscall"

	"zombiezen.com/go/sqlite"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
)

// ReadNote serves reads directly from the stored body without needing
// an open write handle. node.Read calls it only when no write handle is
// open for the inode; while one is open, reads are served from that
// handle's buffer instead, so unflushed writes are visible.
func (s *Store) ReadNote(ctx context.Context, ino uint64, id string, offset int64, size int) ([]byte, syscall.Errno) {
	var row Row
	var found bool
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var rowErr error
		row, found, rowErr = noteByID(conn, id)
		return rowErr
	})
	if err != nil {
		return nil, toErrno(err)
	}
	if !found {
		return nil, syscall.ENOENT
	}

	body := row.Body
	if offset < 0 || offset >= int64(len(body)) {
		return nil, 0
	}
	end := offset + int64(size)
	if end > int64(len(body)) {
		end = int64(len(body))
	}
	return []byte(body[offset:end]), 0
}

// WriteHandle buffers writes to a single note between open and
// release: writes accumulate in memory and are persisted only on
// Flush/Release, so a run of small pwrite(2) calls from an editor
// becomes one UPDATE instead of many.
type WriteHandle struct {
	mu    sync.Mutex
	store *Store
	clock clock.Clock
	id    string
	buf   []byte
	dirty bool
}

// newWriteHandle materializes the buffer from the note's stored body.
// The buffer always exists once a handle is opened; there is no lazy
// "no buffer yet" state to track separately, which keeps Read-after-
// partial-Write within the same handle trivially consistent.
func newWriteHandle(store *Store, cl clock.Clock, row Row) *WriteHandle {
	buf := make([]byte, len(row.Body))
	copy(buf, row.Body)
	return &WriteHandle{store: store, clock: cl, id: row.ID, buf: buf}
}

// Write copies data into the buffer at offset, growing it if necessary,
// and marks the handle dirty.
func (h *WriteHandle) Write(data []byte, offset int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	end := offset + int64(len(data))
	if end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[offset:end], data)
	h.dirty = true
	return uint32(len(data)), 0
}

// Read serves a read against the in-progress buffer rather than the
// stored row, so a reader sharing the same handle sees its own
// unflushed writes.
func (h *WriteHandle) Read(offset int64, size int) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	if offset < 0 || offset >= int64(len(h.buf)) {
		return nil
	}
	end := offset + int64(size)
	if end > int64(len(h.buf)) {
		end = int64(len(h.buf))
	}
	out := make([]byte, end-offset)
	copy(out, h.buf[offset:end])
	return out
}

// Truncate resizes the buffer, zero-filling on grow, and marks it dirty.
// Used by Setattr when an editor truncates a file before rewriting it.
func (h *WriteHandle) Truncate(size uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size == uint64(len(h.buf)) {
		return
	}
	grown := make([]byte, size)
	copy(grown, h.buf)
	h.buf = grown
	h.dirty = true
}

// Size reports the buffer's current length, used to report an
// in-progress write's length before it is flushed to the row.
func (h *WriteHandle) Size() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(h.buf))
}

// Flush persists the buffer to the note row if dirty. Safe to call more
// than once (e.g. once from Flush(2) and again from Release): the
// second call is a no-op because dirty is cleared on success.
func (h *WriteHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return 0
	}

	now := h.clock.Now().UnixMilli()
	body := string(h.buf)
	err := h.store.withTx(ctx, func(conn *sqlite.Conn) error {
		return updateNoteBody(conn, h.id, body, now)
	})
	if err != nil {
		return toErrno(err)
	}
	h.dirty = false
	return 0
}
