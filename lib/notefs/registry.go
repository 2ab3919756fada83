// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import "sync"

// RootIno is the inode number of the filesystem root, reserved by FUSE
// convention (go-fuse's bridge always maps inode 1 to the node returned
// from fs.Root()).
const RootIno uint64 = 1

// rowKey identifies a row independent of its current inode number.
// Keying on (Kind, ID) rather than ID alone keeps a note and a folder
// that happen to share a UUID — possible only in a corrupt database —
// from colliding in the registry.
type rowKey struct {
	Kind Kind
	ID   string
}

// Registry is a bijection between inode numbers and (Kind, row id)
// pairs. It is the single source of truth for "does this row already
// have an inode", which is what lets the same note keep the same inode
// across a rename.
//
// Registry has its own mutex so it can be exercised directly in tests
// without a Filesystem; in production every call additionally happens
// under Filesystem's coarser lock, so contention here is
// never real.
type Registry struct {
	mu    sync.Mutex
	next  uint64
	byKey map[rowKey]uint64
	byIno map[uint64]rowKey
}

// NewRegistry returns a Registry with its counter seeded at 2, since
// inode 1 is reserved for the root and is never stored in the maps.
func NewRegistry() *Registry {
	return &Registry{
		next:  2,
		byKey: make(map[rowKey]uint64),
		byIno: make(map[uint64]rowKey),
	}
}

// Intern returns the inode number for (kind, id), allocating a new one
// on first sight. Calling Intern twice for the same row always returns
// the same inode, which is the property go-fuse's own node cache relies
// on (a StableAttr with a repeated Ino returns the same *Inode).
func (r *Registry) Intern(kind Kind, id string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rowKey{Kind: kind, ID: id}
	if ino, ok := r.byKey[key]; ok {
		return ino
	}

	ino := r.next
	r.next++
	r.byKey[key] = ino
	r.byIno[ino] = key
	return ino
}

// Resolve returns the (kind, id) pair registered under ino, if any.
func (r *Registry) Resolve(ino uint64) (kind Kind, id string, ok bool) {
	if ino == RootIno {
		return 0, "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byIno[ino]
	if !ok {
		return 0, "", false
	}
	return key.Kind, key.ID, true
}

// Forget removes the (kind, id) <-> inode association entirely. Called
// by the Mutation Engine after a hard delete (unlink/rmdir), so that a
// future row reusing the same UUID — which cannot happen with
// uuid.NewString, but is cheap to guard against regardless — is never
// handed a stale inode number. Renames must NOT call Forget: the whole
// point of the registry is that rename preserves the inode.
func (r *Registry) Forget(kind Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rowKey{Kind: kind, ID: id}
	if ino, ok := r.byKey[key]; ok {
		delete(r.byKey, key)
		delete(r.byIno, ino)
	}
}

// Len reports the number of rows currently interned. Exposed for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKey)
}
