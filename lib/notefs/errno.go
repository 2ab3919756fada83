// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"errors"
	"syscall"
)

// ErrNotEmpty is returned by rmdir when the target folder still has live
// children, surfaced to the kernel as ENOTEMPTY.
var ErrNotEmpty = errors.New("notefs: directory not empty")

// ErrExists is returned by mkdir when the requested name already
// resolves to a live row, and by create when it names a live folder,
// surfaced as EEXIST.
var ErrExists = errors.New("notefs: entry already exists")

// ErrInvalid marks a request that is malformed independent of any
// database state, surfaced as EINVAL — for example renaming a folder
// into one of its own descendants.
var ErrInvalid = errors.New("notefs: invalid request")

// ErrIsDir is returned when an operation that requires a note target
// (unlink) instead resolves to a folder, surfaced as EISDIR.
var ErrIsDir = errors.New("notefs: is a directory")

// toErrno is the one place internal errors cross into syscall.Errno:
// every Node*er method returns an errno rather than propagating a bare
// error or panicking. Unrecognized errors become EIO, never a panic.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrNoEntry):
		return syscall.ENOENT
	case errors.Is(err, ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, ErrExists):
		return syscall.EEXIST
	case errors.Is(err, ErrInvalid):
		return syscall.EINVAL
	case errors.Is(err, ErrIsDir):
		return syscall.EISDIR
	default:
		return syscall.EIO
	}
}
