// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
)

const noteSuffix = ".md"

// ErrNotDir is returned by parentRowID when the parent inode names a
// note, which can never have children, and by Rmdir when its target is a
// note, surfaced as ENOTDIR.
var ErrNotDir = fmt.Errorf("notefs: not a directory")

// ErrNoEntry is returned when no row matches the requested name,
// surfaced as ENOENT.
var ErrNoEntry = fmt.Errorf("notefs: no such entry")

// parentRowID maps a parent inode to the folder id that owns its
// children, or "" for the synthetic root. Returns ErrNotDir if ino names
// a note.
func (s *Store) parentRowID(reg *Registry, ino uint64) (string, error) {
	if ino == RootIno {
		return "", nil
	}
	kind, id, ok := reg.Resolve(ino)
	if !ok {
		return "", ErrNoEntry
	}
	if kind != KindFolder {
		return "", ErrNotDir
	}
	return id, nil
}

// resolveChild resolves a parent folder id ("" for the root) and a
// single path component to
// the Row it names. Folders are tried before notes so that a folder
// literally named "x.md" wins over a note titled "x" on the rare name
// collision.
func resolveChild(conn *sqlite.Conn, parentID, name string) (Row, error) {
	if folder, ok, err := findFolder(conn, parentID, name); err != nil {
		return Row{}, err
	} else if ok {
		return folder, nil
	}

	if strings.HasSuffix(name, noteSuffix) {
		title := strings.TrimSuffix(name, noteSuffix)
		if note, ok, err := findNote(conn, parentID, title); err != nil {
			return Row{}, err
		} else if ok {
			return note, nil
		}
	}

	return Row{}, ErrNoEntry
}

// Lookup resolves (parentIno, name) to a Row and interns its inode,
// returning both. ctx is accepted for symmetry with the rest of the
// package's connection-borrowing calls even though resolution itself
// never blocks on anything but the pool.
func (s *Store) Lookup(ctx context.Context, reg *Registry, parentIno uint64, name string) (Row, uint64, error) {
	parentID, err := s.parentRowID(reg, parentIno)
	if err != nil {
		return Row{}, 0, err
	}

	var row Row
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		var resolveErr error
		row, resolveErr = resolveChild(conn, parentID, name)
		return resolveErr
	})
	if err != nil {
		return Row{}, 0, err
	}

	ino := reg.Intern(row.Kind, row.ID)
	return row, ino, nil
}

// RowByIno fetches the current row data for an already-interned inode.
// Used by Getattr, Write, and Setattr, all of which receive an
// inode from go-fuse rather than a (parent, name) pair.
func (s *Store) RowByIno(ctx context.Context, reg *Registry, ino uint64) (Row, error) {
	kind, id, ok := reg.Resolve(ino)
	if !ok {
		return Row{}, ErrNoEntry
	}

	var row Row
	var found bool
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var rowErr error
		if kind == KindFolder {
			row, found, rowErr = folderByID(conn, id)
		} else {
			row, found, rowErr = noteByID(conn, id)
		}
		return rowErr
	})
	if err != nil {
		return Row{}, err
	}
	if !found {
		return Row{}, ErrNoEntry
	}
	return row, nil
}
