// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

package notefs_test

import (
	"os"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/notefs"
)

// fuseAvailable checks whether /dev/fuse is accessible. Tests that need
// a real FUSE mount call this and skip if the device is absent.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

// testMount opens a fresh Joplin-shaped database, mounts it, and
// returns the mount point. Cleanup (unmount, store close) is
// registered via t.Cleanup.
func testMount(t *testing.T) string {
	t.Helper()
	fuseAvailable(t)

	root := t.TempDir()
	dbPath := filepath.Join(root, "joplin.sqlite")

	bootstrap, err := sqlite.OpenConn(dbPath, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		t.Fatalf("OpenConn: %v", err)
	}
	if err := sqlitex.ExecuteScript(bootstrap, joplinSchema, nil); err != nil {
		t.Fatalf("ExecuteScript: %v", err)
	}
	if err := bootstrap.Close(); err != nil {
		t.Fatalf("bootstrap Close: %v", err)
	}

	store, err := notefs.OpenStore(notefs.StoreConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	fsys := notefs.NewFilesystem(store, clock.Real(), nil)

	mountPoint := filepath.Join(root, "mount")
	if err := os.Mkdir(mountPoint, 0o755); err != nil {
		t.Fatalf("Mkdir mountpoint: %v", err)
	}

	server, err := notefs.Mount(fsys, notefs.MountOptions{MountPoint: mountPoint})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
		store.Close()
	})

	return mountPoint
}

func TestMountEmptyRootIsEmptyDir(t *testing.T) {
	mountPoint := testMount(t)

	entries, err := os.ReadDir(mountPoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("ReadDir(root) = %v, want empty", entries)
	}
}

func TestMountCreateWriteReadNote(t *testing.T) {
	mountPoint := testMount(t)
	notePath := filepath.Join(mountPoint, "hello.md")

	if err := os.WriteFile(notePath, []byte("hello, world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(notePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("ReadFile = %q, want %q", data, "hello, world")
	}

	info, err := os.Stat(notePath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != int64(len("hello, world")) {
		t.Errorf("Size() = %d, want %d", info.Size(), len("hello, world"))
	}
	if info.IsDir() {
		t.Errorf("IsDir() = true for a note")
	}
}

func TestMountMkdirAndListing(t *testing.T) {
	mountPoint := testMount(t)

	if err := os.Mkdir(filepath.Join(mountPoint, "Projects"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(mountPoint, "Projects", "todo.md"), []byte("- buy milk"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(mountPoint, "Projects"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "todo.md" {
		t.Fatalf("ReadDir(Projects) = %v, want [todo.md]", entries)
	}
}

func TestMountRenamePreservesContent(t *testing.T) {
	mountPoint := testMount(t)
	oldPath := filepath.Join(mountPoint, "draft.md")
	newPath := filepath.Join(mountPoint, "final.md")

	if err := os.WriteFile(oldPath, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("old path still exists after rename: err = %v", err)
	}

	data, err := os.ReadFile(newPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "v1" {
		t.Errorf("ReadFile = %q, want %q", data, "v1")
	}
}

func TestMountRemoveNoteAndFolder(t *testing.T) {
	mountPoint := testMount(t)

	if err := os.WriteFile(filepath.Join(mountPoint, "temp.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Remove(filepath.Join(mountPoint, "temp.md")); err != nil {
		t.Fatalf("Remove note: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mountPoint, "temp.md")); !os.IsNotExist(err) {
		t.Errorf("note still exists after Remove: err = %v", err)
	}

	if err := os.Mkdir(filepath.Join(mountPoint, "empty-dir"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.Remove(filepath.Join(mountPoint, "empty-dir")); err != nil {
		t.Fatalf("Remove empty dir: %v", err)
	}
}
