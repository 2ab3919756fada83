// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

// Package notefs projects a Joplin-style SQLite note store (two tables,
// "notes" and "folders") as a mountable FUSE filesystem.
//
// A Filesystem owns the SQLite pool, the inode registry, and the set of
// in-flight write buffers. Every kernel callback — lookup, getattr, read,
// write, readdir, create, mkdir, rename, unlink, rmdir, setattr, flush,
// release — passes through a single mutex (see node.go) so that the
// database and in-memory state stay consistent under concurrent editor
// workflows.
package notefs
