// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"sort"
	"syscall"

	"zombiezen.com/go/sqlite"
)

// DirEntry is one entry the Directory Lister hands to the Glue layer.
type DirEntry struct {
	Name string
	Ino  uint64
	Mode uint32
}

// ListChildren is the Directory Lister. It returns every
// live child of the folder named by parentIno, plus "." and "..", with
// the same folder-wins collision rule the Path Resolver applies so that
// `ls` and `open` never disagree about what a name refers to. Entries
// other than "." and ".." are sorted by name for a stable, diff-friendly
// listing across repeated readdir calls.
func (s *Store) ListChildren(ctx context.Context, reg *Registry, parentIno uint64) ([]DirEntry, syscall.Errno) {
	parentID, err := s.parentRowID(reg, parentIno)
	if err != nil {
		return nil, toErrno(err)
	}

	var folders, notes []Row
	dotdotIno := RootIno
	err = s.withConn(ctx, func(conn *sqlite.Conn) error {
		var listErr error
		folders, listErr = listFolders(conn, parentID)
		if listErr != nil {
			return listErr
		}
		notes, listErr = listNotes(conn, parentID)
		if listErr != nil {
			return listErr
		}

		if parentIno != RootIno {
			self, ok, selfErr := folderByID(conn, parentID)
			if selfErr != nil {
				return selfErr
			}
			if ok && self.ParentID != "" {
				grandparent, gpOK, gpErr := folderByID(conn, self.ParentID)
				if gpErr != nil {
					return gpErr
				}
				if gpOK {
					dotdotIno = reg.Intern(KindFolder, grandparent.ID)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, toErrno(err)
	}

	// Two folders, two notes, or a folder and a note can all expose the
	// same name. Folders always win over notes; within the same kind the
	// row with the greater user_updated_time wins, matching the
	// tie-break findFolder/findNote apply via ORDER BY ... DESC LIMIT 1.
	byName := make(map[string]Row, len(folders)+len(notes))
	for _, f := range folders {
		exposed := f.ExposedName()
		if existing, taken := byName[exposed]; taken && existing.UserUpdatedTime >= f.UserUpdatedTime {
			continue
		}
		byName[exposed] = f
	}
	for _, n := range notes {
		exposed := n.ExposedName()
		existing, taken := byName[exposed]
		if taken && existing.Kind == KindFolder {
			// Folder already claimed this name: folder wins.
			continue
		}
		if taken && existing.UserUpdatedTime >= n.UserUpdatedTime {
			continue
		}
		byName[exposed] = n
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]DirEntry, 0, len(names)+2)
	entries = append(entries, DirEntry{Name: ".", Ino: parentIno, Mode: folderMode})
	entries = append(entries, DirEntry{Name: "..", Ino: dotdotIno, Mode: folderMode})

	for _, name := range names {
		row := byName[name]
		ino := reg.Intern(row.Kind, row.ID)
		mode := noteMode
		if row.Kind == KindFolder {
			mode = folderMode
		}
		entries = append(entries, DirEntry{Name: name, Ino: ino, Mode: mode})
	}

	return entries, 0
}
