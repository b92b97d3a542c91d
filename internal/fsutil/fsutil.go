// SPDX-License-Identifier: MPL-2.0

// Package fsutil holds the filesystem primitives shared by the normalizer,
// reconciler and garbage collector: directory snapshots, collision-free
// naming and moves that survive crossing a filesystem boundary.
package fsutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/u-root/u-root/pkg/core/cp"

	"github.com/bedrock-tools/addonsync/internal/platform"
)

// Snapshot lists dir once, sorted by name. A missing dir yields no entries.
// Callers mutate the directory against the snapshot and list again on the
// next pass instead of re-reading while they iterate.
func Snapshot(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return entries, nil
}

// Dirs returns the directories of a snapshot as full paths under dir.
func Dirs(dir string, entries []fs.DirEntry) []string {
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// UniqueName returns name if dir/name is free, otherwise the first free
// name_2, name_3, ... variant. Names reserved on Windows count as taken.
func UniqueName(dir, name string) string {
	if !taken(dir, name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := name + "_" + strconv.Itoa(i)
		if !taken(dir, candidate) {
			return candidate
		}
	}
}

// IsHollow reports whether dir contains no regular files at any depth.
func IsHollow(dir string) (bool, error) {
	hollow := true
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			hollow = false
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", dir, err)
	}
	return hollow, nil
}

// Move renames src to dst. dst must not exist. When src and dst are on
// different filesystems the tree is copied and the source removed.
func Move(ctx context.Context, src, dst string) error {
	if exists(dst) {
		return fmt.Errorf("failed to move %s: %s already exists", src, dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	if err := copyTree(ctx, src, dst); err != nil {
		_ = os.RemoveAll(dst) // Best-effort cleanup of a partial copy
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

// copyTree runs u-root's cp in recursive mode.
func copyTree(ctx context.Context, src, dst string) error {
	cmd := cp.New()
	cmd.SetIO(nil, io.Discard, io.Discard)
	cmd.SetLookupEnv(os.LookupEnv)
	return cmd.RunContext(ctx, "-r", src, dst)
}

func taken(dir, name string) bool {
	return platform.IsReservedName(name) || exists(filepath.Join(dir, name))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
