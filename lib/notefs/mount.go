// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MountOptions configures Mount, mirroring the mount-related part of the
// CLI surface: the positional MOUNT_POINT plus --auto_unmount,
// --allow-root and --debug. The DATABASE path goes to OpenStore instead.
type MountOptions struct {
	// MountPoint is the directory the filesystem is mounted onto,
	// created (along with any missing parents) if it doesn't exist.
	MountPoint string

	// AutoUnmount asks the kernel to unmount the filesystem when this
	// process exits, even uncleanly.
	AutoUnmount bool

	// AllowRoot permits the root user to access the mount even though
	// this process did not run as root. Only one of AllowRoot or
	// allow_other may be requested of the kernel at once; notefs only
	// ever asks for AllowRoot, following the narrowest-permission-first
	// convention.
	AllowRoot bool

	// Debug enables go-fuse's own verbose protocol logging, useful when
	// diagnosing a misbehaving client against a mounted notefs.
	Debug bool

	Logger *slog.Logger
}

// Mount mounts fsys onto opts.MountPoint and returns the *fuse.Server
// driving it. The caller is responsible for calling Wait (to block until
// unmount) and Unmount (for a clean shutdown).
func Mount(fsys *Filesystem, opts MountOptions) (*fuse.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = fsys.logger
	}

	if err := os.MkdirAll(opts.MountPoint, 0o755); err != nil {
		return nil, fmt.Errorf("notefs: create mount point %s: %w", opts.MountPoint, err)
	}

	root := &node{fsys: fsys, ino: RootIno}

	// Unlike a content-addressed artifact store, the Joplin database
	// backing notefs can be rewritten out from under the mount by
	// Joplin's own desktop client. The kernel attribute and entry caches
	// assume a cooperative writer, so they are disabled here rather than
	// given a longer fixed lifetime: every lookup and getattr
	// revalidates against the database instead of risking a stale view.
	entryTimeout := 0 * time.Second
	attrTimeout := 0 * time.Second
	negativeTimeout := 0 * time.Second

	mountOpts := &fs.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			Debug:          opts.Debug,
			FsName:         "notefs",
			Name:           "notefs",
			SingleThreaded: true,
		},
	}
	if opts.AutoUnmount {
		mountOpts.MountOptions.Options = append(mountOpts.MountOptions.Options, "auto_unmount")
	}
	if opts.AllowRoot {
		// allow_root and allow_other are mutually exclusive at the
		// kernel level; go-fuse's AllowOther field would request
		// allow_other, so allow_root is passed through raw Options
		// instead.
		mountOpts.MountOptions.Options = append(mountOpts.MountOptions.Options, "allow_root")
	}

	server, err := fs.Mount(opts.MountPoint, root, mountOpts)
	if err != nil {
		return nil, fmt.Errorf("notefs: mount %s: %w", opts.MountPoint, err)
	}

	logger.Info("mounted",
		"mount_point", opts.MountPoint,
		"auto_unmount", opts.AutoUnmount,
		"allow_root", opts.AllowRoot,
	)
	return server, nil
}
