// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	folderMode uint32 = syscall.S_IFDIR | 0o755
	noteMode   uint32 = syscall.S_IFREG | 0o644
	rootMode   uint32 = syscall.S_IFDIR | 0o755
)

// joplinTimeToUnix converts a Joplin millisecond-since-epoch timestamp
// into seconds and nanoseconds, the units fuse.Attr's time fields want.
func joplinTimeToUnix(millis int64) (sec uint64, nsec uint32) {
	if millis < 0 {
		millis = 0
	}
	sec = uint64(millis / 1000)
	nsec = uint32((millis % 1000) * 1_000_000)
	return sec, nsec
}

// projectAttr fills out with the POSIX attributes a row should report.
// overrideSize, when non-nil, reports a buffered write's in-progress
// length instead of the row's stored body length — callers pass this
// while a write handle is open so `ls -l` reflects unflushed writes
// immediately.
func projectAttr(out *fuse.Attr, row Row, ino uint64, overrideSize *uint64) {
	out.Ino = ino

	switch row.Kind {
	case KindFolder:
		out.Mode = folderMode
		out.Nlink = 2
		out.Size = 0
	case KindNote:
		out.Mode = noteMode
		out.Nlink = 1
		out.Size = uint64(len(row.Body))
	}

	if overrideSize != nil {
		out.Size = *overrideSize
	}

	atimeSec, atimeNsec := joplinTimeToUnix(row.UpdatedTime)
	mtimeSec, mtimeNsec := joplinTimeToUnix(row.UpdatedTime)
	ctimeSec, ctimeNsec := joplinTimeToUnix(row.UpdatedTime)

	out.Atime, out.Atimensec = atimeSec, atimeNsec
	out.Mtime, out.Mtimensec = mtimeSec, mtimeNsec
	out.Ctime, out.Ctimensec = ctimeSec, ctimeNsec

	out.Blksize = 4096
	out.Blocks = (out.Size + 511) / 512
}

// projectRootAttr fills out with the root directory's attributes. The
// root has no backing row, so its nlink is fixed at 2 rather than read
// from the store; its time fields are not set and stay at zero (the Unix
// epoch).
func projectRootAttr(out *fuse.Attr) {
	out.Ino = RootIno
	out.Mode = rootMode
	out.Nlink = 2
	out.Size = 0
	out.Blksize = 4096
}
