// Copyright 2026 The Joplinfs Authors
// SPDX-License-Identifier: Apache-2.0

// joplinfs mounts a Joplin SQLite database as a FUSE filesystem: every
// folder row becomes a directory, every note row becomes a file named
// "<title>.md", readable and writable like any other file on disk.
//
// Usage:
//
//	joplinfs [OPTIONS] <DATABASE> <MOUNT_POINT>
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/clock"
	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/notefs"
	"github.com/RyanGreenup/joplin-sqlite-fuse/lib/process"
)

const versionString = "joplinfs 0.1.0"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var autoUnmount bool
	var allowRoot bool
	var logLevel string
	var debug bool

	flagSet := pflag.NewFlagSet("joplinfs", pflag.ContinueOnError)
	flagSet.BoolVar(&autoUnmount, "auto_unmount", false, "ask the kernel to unmount on process exit")
	flagSet.BoolVar(&allowRoot, "allow-root", false, "allow root to access the mount")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from JOPLINFS_LOG, else info)")
	flagSet.BoolVar(&debug, "debug", false, "enable verbose FUSE protocol logging")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing so it works even if other
	// flags would fail to parse.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(versionString)
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 2 {
		printHelp(flagSet)
		return fmt.Errorf("joplinfs: expected <DATABASE> <MOUNT_POINT>, got %d argument(s)", len(args))
	}
	databasePath := args[0]
	mountPoint := args[1]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: resolveLogLevel(logLevel),
	}))

	store, err := notefs.OpenStore(notefs.StoreConfig{
		Path:   databasePath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("joplinfs: %w", err)
	}
	defer store.Close()

	fsys := notefs.NewFilesystem(store, clock.Real(), logger)

	server, err := notefs.Mount(fsys, notefs.MountOptions{
		MountPoint:  mountPoint,
		AutoUnmount: autoUnmount,
		AllowRoot:   allowRoot,
		Debug:       debug,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("joplinfs: %w", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("received shutdown signal, unmounting")
		if err := server.Unmount(); err != nil {
			logger.Error("unmount failed", "error", err)
		}
	}()

	server.Wait()
	return nil
}

// resolveLogLevel honors --log-level, falling back to the JOPLINFS_LOG
// environment variable as a RUST_LOG-style selector, and finally to
// Info.
func resolveLogLevel(flagValue string) slog.Level {
	value := flagValue
	if value == "" {
		value = os.Getenv("JOPLINFS_LOG")
	}
	switch strings.ToLower(value) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `joplinfs — mount a Joplin SQLite database as a FUSE filesystem.

Folders become directories; notes become "<title>.md" files. Reads and
writes operate on the underlying database: writes to a note are
buffered and saved when the file is flushed or closed, and changes
Joplin makes to the database show up on the next lookup or read.

Usage: joplinfs [OPTIONS] <DATABASE> <MOUNT_POINT>

Options:
`)
	flagSet.PrintDefaults()
}
