// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
)

// Filesystem is the Glue layer: it owns the store, the
// inode registry, and every in-flight write handle behind a single
// coarse mutex — every kernel callback takes this lock
// for its entire duration, trading away read/write concurrency for a
// drastically simpler consistency story (no lock-ordering to get wrong
// between the registry, the write buffers, and the database).
type Filesystem struct {
	mu      sync.Mutex
	store   *Store
	reg     *Registry
	clock   clock.Clock
	logger  *slog.Logger
	handles map[uint64]*WriteHandle
}

// NewFilesystem constructs a Filesystem ready to be passed to Mount.
func NewFilesystem(store *Store, cl clock.Clock, logger *slog.Logger) *Filesystem {
	if cl == nil {
		cl = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Filesystem{
		store:   store,
		reg:     NewRegistry(),
		clock:   cl,
		logger:  logger,
		handles: make(map[uint64]*WriteHandle),
	}
}

// node is the single InodeEmbedder type used for every file and
// directory notefs exposes — root, folders, and notes alike. Which one
// a given node is gets resolved lazily through the registry rather than
// being cached redundantly on the struct, the same "ask the registry,
// don't duplicate its answer" discipline the Inode Registry exists to
// enforce.
type node struct {
	fs.Inode
	fsys *Filesystem
	ino  uint64
}

var (
	_ fs.InodeEmbedder = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeReader    = (*node)(nil)
	_ fs.NodeWriter    = (*node)(nil)
	_ fs.NodeFlusher   = (*node)(nil)
	_ fs.NodeReleaser  = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
	_ fs.NodeRenamer   = (*node)(nil)
)

func (n *node) child(ctx context.Context, ino uint64, mode uint32) *fs.Inode {
	return n.NewInode(ctx, &node{fsys: n.fsys, ino: ino}, fs.StableAttr{
		Mode: mode,
		Ino:  ino,
	})
}

// Lookup implements fs.NodeLookuper: the Path Resolver entry point from
// the kernel's perspective.
func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	row, ino, err := n.fsys.store.Lookup(ctx, n.fsys.reg, n.ino, name)
	if err != nil {
		return nil, toErrno(err)
	}

	mode := noteMode
	if row.Kind == KindFolder {
		mode = folderMode
	}
	projectAttr(&out.Attr, row, ino, nil)
	return n.child(ctx, ino, mode), 0
}

// Getattr implements fs.NodeGetattrer, reporting a buffered write's
// in-progress size when one is open.
func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	if n.ino == RootIno {
		projectRootAttr(&out.Attr)
		return 0
	}

	row, err := n.fsys.store.RowByIno(ctx, n.fsys.reg, n.ino)
	if err != nil {
		return toErrno(err)
	}

	var overrideSize *uint64
	if handle, ok := n.fsys.handles[n.ino]; ok {
		size := handle.Size()
		overrideSize = &size
	}
	projectAttr(&out.Attr, row, n.ino, overrideSize)
	return 0
}

// Setattr implements fs.NodeSetattrer. The only attribute change this
// filesystem honors is size (truncate); mode/uid/gid/time changes are
// accepted but ignored, since permissions are synthesized, not stored.
func (n *node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	if n.ino == RootIno {
		projectRootAttr(&out.Attr)
		return 0
	}

	row, err := n.fsys.store.RowByIno(ctx, n.fsys.reg, n.ino)
	if err != nil {
		return toErrno(err)
	}

	if size, ok := in.GetSize(); ok && row.Kind == KindNote {
		handle := n.fsys.writeHandleLocked(row)
		handle.Truncate(size)
		overrideSize := handle.Size()
		projectAttr(&out.Attr, row, n.ino, &overrideSize)
		return 0
	}

	projectAttr(&out.Attr, row, n.ino, nil)
	return 0
}

// Readdir implements fs.NodeReaddirer.
func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	entries, errno := n.fsys.store.ListChildren(ctx, n.fsys.reg, n.ino)
	if errno != 0 {
		return nil, errno
	}
	return newSliceDirStream(entries), 0
}

// writeHandleLocked returns the open write handle for row, creating one
// from the stored body on first use. Caller must hold fsys.mu.
func (f *Filesystem) writeHandleLocked(row Row) *WriteHandle {
	ino := f.reg.Intern(row.Kind, row.ID)
	if handle, ok := f.handles[ino]; ok {
		return handle
	}
	handle := newWriteHandle(f.store, f.clock, row)
	f.handles[ino] = handle
	return handle
}

// Open implements fs.NodeOpener. Notes are never cached by the kernel
// page cache (no FOPEN_KEEP_CACHE) since the underlying row can change
// out from under an open file descriptor — a different process, or
// Joplin itself, may update the same row concurrently.
func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	if n.ino == RootIno {
		return nil, 0, syscall.EISDIR
	}
	kind, _, ok := n.fsys.reg.Resolve(n.ino)
	if !ok {
		return nil, 0, syscall.ENOENT
	}
	if kind == KindFolder {
		return nil, 0, syscall.EISDIR
	}
	return nil, 0, 0
}

// Read implements fs.NodeReader, serving from an open write handle's
// buffer if one exists so a reader sees its own unflushed writes, or
// from the stored row body otherwise.
func (n *node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	if handle, ok := n.fsys.handles[n.ino]; ok {
		data := handle.Read(off, len(dest))
		return fuse.ReadResultData(data), 0
	}

	kind, id, ok := n.fsys.reg.Resolve(n.ino)
	if !ok || kind != KindNote {
		return nil, syscall.ENOENT
	}
	data, errno := n.fsys.store.ReadNote(ctx, n.ino, id, off, len(dest))
	if errno != 0 {
		return nil, errno
	}
	return fuse.ReadResultData(data), 0
}

// Write implements fs.NodeWriter, buffering the write in memory until
// Flush or Release.
func (n *node) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	row, err := n.fsys.store.RowByIno(ctx, n.fsys.reg, n.ino)
	if err != nil {
		return 0, toErrno(err)
	}
	if row.Kind != KindNote {
		return 0, syscall.EISDIR
	}

	handle := n.fsys.writeHandleLocked(row)
	return handle.Write(data, off)
}

// Flush implements fs.NodeFlusher, persisting a dirty write handle's
// buffer without closing it (so a subsequent write on the same fd still
// sees its own buffer).
func (n *node) Flush(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	if handle, ok := n.fsys.handles[n.ino]; ok {
		return handle.Flush(ctx)
	}
	return 0
}

// Release implements fs.NodeReleaser: flush whatever remains buffered
// and drop the handle.
func (n *node) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	handle, ok := n.fsys.handles[n.ino]
	if !ok {
		return 0
	}
	errno := handle.Flush(ctx)
	delete(n.fsys.handles, n.ino)
	return errno
}

// Create implements fs.NodeCreater.
func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	row, ino, errno := n.fsys.store.CreateNote(ctx, n.fsys.reg, n.fsys.clock, n.ino, name)
	if errno != 0 {
		return nil, nil, 0, errno
	}

	projectAttr(&out.Attr, row, ino, nil)
	return n.child(ctx, ino, noteMode), nil, 0, 0
}

// Mkdir implements fs.NodeMkdirer (Mutation Engine mkdir).
func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	row, ino, errno := n.fsys.store.Mkdir(ctx, n.fsys.reg, n.fsys.clock, n.ino, name)
	if errno != 0 {
		return nil, errno
	}

	projectAttr(&out.Attr, row, ino, nil)
	return n.child(ctx, ino, folderMode), 0
}

// Unlink implements fs.NodeUnlinker (Mutation Engine unlink).
func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()
	return n.fsys.store.Unlink(ctx, n.fsys.reg, n.ino, name)
}

// Rmdir implements fs.NodeRmdirer (Mutation Engine rmdir).
func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()
	return n.fsys.store.Rmdir(ctx, n.fsys.reg, n.ino, name)
}

// Rename implements fs.NodeRenamer (Mutation Engine rename).
func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	n.fsys.mu.Lock()
	defer n.fsys.mu.Unlock()

	target, ok := newParent.(*node)
	if !ok {
		return syscall.EINVAL
	}
	return n.fsys.store.Rename(ctx, n.fsys.reg, n.fsys.clock, n.ino, name, target.ino, newName)
}

// sliceDirStream adapts a []DirEntry to fs.DirStream.
type sliceDirStream struct {
	entries []DirEntry
	pos     int
}

func newSliceDirStream(entries []DirEntry) *sliceDirStream {
	return &sliceDirStream{entries: entries}
}

func (s *sliceDirStream) HasNext() bool {
	return s.pos < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	e := s.entries[s.pos]
	s.pos++
	return fuse.DirEntry{Name: e.Name, Ino: e.Ino, Mode: e.Mode}, 0
}

func (s *sliceDirStream) Close() {}
