// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
)

// CreateNote inserts a new note row under parentIno titled by stripping
// the required ".md" suffix from name, and interns its inode. If a live
// note with that title already exists there, it is returned as is and
// nothing is inserted; if a live folder already exposes name, the result
// is EEXIST.
func (s *Store) CreateNote(ctx context.Context, reg *Registry, cl clock.Clock, parentIno uint64, name string) (Row, uint64, syscall.Errno) {
	parentID, err := s.parentRowID(reg, parentIno)
	if err != nil {
		return Row{}, 0, toErrno(err)
	}
	if !strings.HasSuffix(name, noteSuffix) {
		return Row{}, 0, syscall.EINVAL
	}
	title := strings.TrimSuffix(name, noteSuffix)

	now := cl.Now().UnixMilli()
	row := Row{
		Kind:            KindNote,
		ID:              uuid.NewString(),
		ParentID:        parentID,
		Title:           title,
		CreatedTime:     now,
		UpdatedTime:     now,
		UserCreatedTime: now,
		UserUpdatedTime: now,
	}

	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		if existing, ok, findErr := findNote(conn, parentID, title); findErr != nil {
			return findErr
		} else if ok {
			row = existing
			return nil
		}
		if _, ok, findErr := findFolder(conn, parentID, name); findErr != nil {
			return findErr
		} else if ok {
			return ErrExists
		}
		return insertNote(conn, row)
	})
	if err != nil {
		return Row{}, 0, toErrno(err)
	}

	ino := reg.Intern(KindNote, row.ID)
	return row, ino, 0
}

// Mkdir is the Mutation Engine's mkdir operation.
func (s *Store) Mkdir(ctx context.Context, reg *Registry, cl clock.Clock, parentIno uint64, name string) (Row, uint64, syscall.Errno) {
	parentID, err := s.parentRowID(reg, parentIno)
	if err != nil {
		return Row{}, 0, toErrno(err)
	}

	now := cl.Now().UnixMilli()
	row := Row{
		Kind:            KindFolder,
		ID:              uuid.NewString(),
		ParentID:        parentID,
		Title:           name,
		CreatedTime:     now,
		UpdatedTime:     now,
		UserCreatedTime: now,
		UserUpdatedTime: now,
	}

	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		if _, ok, findErr := findFolder(conn, parentID, name); findErr != nil {
			return findErr
		} else if ok {
			return ErrExists
		}
		if strings.HasSuffix(name, noteSuffix) {
			if _, ok, findErr := findNote(conn, parentID, strings.TrimSuffix(name, noteSuffix)); findErr != nil {
				return findErr
			} else if ok {
				return ErrExists
			}
		}
		return insertFolder(conn, row)
	})
	if err != nil {
		return Row{}, 0, toErrno(err)
	}

	ino := reg.Intern(KindFolder, row.ID)
	return row, ino, 0
}

// Unlink hard-deletes the note named by (parentIno, name). Resolving to
// a folder is EISDIR, matching unlink(2).
func (s *Store) Unlink(ctx context.Context, reg *Registry, parentIno uint64, name string) syscall.Errno {
	parentID, err := s.parentRowID(reg, parentIno)
	if err != nil {
		return toErrno(err)
	}

	var target Row
	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		row, rowErr := resolveChild(conn, parentID, name)
		if rowErr != nil {
			return rowErr
		}
		if row.Kind == KindFolder {
			return ErrIsDir
		}
		target = row
		return deleteNote(conn, row.ID)
	})
	if err != nil {
		return toErrno(err)
	}

	reg.Forget(KindNote, target.ID)
	return 0
}

// Rmdir is the Mutation Engine's rmdir operation:
// hard-deletes the folder named by (parentIno, name), refusing if it
// still has live children.
func (s *Store) Rmdir(ctx context.Context, reg *Registry, parentIno uint64, name string) syscall.Errno {
	parentID, err := s.parentRowID(reg, parentIno)
	if err != nil {
		return toErrno(err)
	}

	var target Row
	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		row, rowErr := resolveChild(conn, parentID, name)
		if rowErr != nil {
			return rowErr
		}
		if row.Kind != KindFolder {
			return ErrNotDir
		}
		folders, notes, countErr := countChildren(conn, row.ID)
		if countErr != nil {
			return countErr
		}
		if folders+notes > 0 {
			return ErrNotEmpty
		}
		target = row
		return deleteFolder(conn, row.ID)
	})
	if err != nil {
		return toErrno(err)
	}

	reg.Forget(KindFolder, target.ID)
	return 0
}

// Rename moves and/or retitles the row named by (oldParentIno, oldName)
// to (newParentIno, newName), refusing moves that would make a folder
// its own descendant. The source row's id is preserved — and therefore
// its inode — so a rename never changes what `stat` reports for an
// already-open file descriptor. If the destination name already
// resolves to a live row, that row is deleted first (rename-over-
// existing overwrite semantics), which is also how an editor's
// backup-and-rename save pattern churns a note's underlying row id: the
// old target row is gone and the source row now lives under the target
// name.
func (s *Store) Rename(ctx context.Context, reg *Registry, cl clock.Clock, oldParentIno uint64, oldName string, newParentIno uint64, newName string) syscall.Errno {
	oldParentID, err := s.parentRowID(reg, oldParentIno)
	if err != nil {
		return toErrno(err)
	}
	newParentID, err := s.parentRowID(reg, newParentIno)
	if err != nil {
		return toErrno(err)
	}

	err = s.withTx(ctx, func(conn *sqlite.Conn) error {
		source, rowErr := resolveChild(conn, oldParentID, oldName)
		if rowErr != nil {
			return rowErr
		}

		if source.Kind == KindFolder {
			if source.ID == newParentID {
				return ErrInvalid
			}
			ancestors, ancErr := folderAncestors(conn, newParentID)
			if ancErr != nil {
				return ancErr
			}
			for _, a := range ancestors {
				if a == source.ID {
					return ErrInvalid
				}
			}
		}

		if target, ok, targetErr := resolveChildOptional(conn, newParentID, newName); targetErr != nil {
			return targetErr
		} else if ok && !(target.Kind == source.Kind && target.ID == source.ID) {
			if target.Kind == KindFolder {
				folders, notes, countErr := countChildren(conn, target.ID)
				if countErr != nil {
					return countErr
				}
				if folders+notes > 0 {
					return ErrNotEmpty
				}
				if delErr := deleteFolder(conn, target.ID); delErr != nil {
					return delErr
				}
				reg.Forget(KindFolder, target.ID)
			} else {
				if delErr := deleteNote(conn, target.ID); delErr != nil {
					return delErr
				}
				reg.Forget(KindNote, target.ID)
			}
		}

		now := cl.Now().UnixMilli()
		var newTitle string
		if source.Kind == KindFolder {
			newTitle = newName
		} else {
			if !strings.HasSuffix(newName, noteSuffix) {
				return ErrInvalid
			}
			newTitle = strings.TrimSuffix(newName, noteSuffix)
		}

		if source.Kind == KindFolder {
			return renameFolder(conn, source.ID, newParentID, newTitle, now)
		}
		return renameNote(conn, source.ID, newParentID, newTitle, now)
	})

	return toErrno(err)
}

// resolveChildOptional is resolveChild but reports absence as (Row{},
// false, nil) instead of ErrNoEntry, for call sites where "not found" is
// a valid branch rather than a failure (rename's overwrite check).
func resolveChildOptional(conn *sqlite.Conn, parentID, name string) (Row, bool, error) {
	row, err := resolveChild(conn, parentID, name)
	if err == ErrNoEntry {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, err
	}
	return row, true, nil
}
