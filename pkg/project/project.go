// Package project resolves a project's root directory and maps source
// file paths to their sidecar paths, rejecting any path that would escape
// the project root.
package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/wrenfield/anchorline/pkg/crerr"
)

// SidecarDir is the directory, relative to the project root, that holds
// all sidecar files.
const SidecarDir = ".comments"

// FindRoot walks up from startPath looking for the nearest ancestor
// directory containing a .git entry (directory or file, the latter
// supporting git worktrees). Fails with crerr.NotARepository if none is
// found.
func FindRoot(startPath string) (string, error) {
	current, err := filepath.Abs(startPath)
	if err != nil {
		return "", crerr.IOFailuref(err, "resolving absolute path for %s", startPath)
	}

	for {
		gitPath := filepath.Join(current, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", crerr.NotARepositoryf("no .git found in %s or any parent directory", startPath)
}

// NormalizePath resolves path (absolute, or relative to root) to an
// absolute path, resolving "." and ".." components and symlinks, and
// rejects any result that escapes root.
func NormalizePath(path, root string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", crerr.IOFailuref(err, "resolving project root %s", root)
	}
	rootAbs, err = resolveSymlinksBestEffort(rootAbs)
	if err != nil {
		return "", err
	}

	var target string
	if filepath.IsAbs(path) {
		target = path
	} else {
		target = filepath.Join(rootAbs, path)
	}
	target = filepath.Clean(target)
	target, err = resolveSymlinksBestEffort(target)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(rootAbs, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", crerr.InvalidInputf("path %s escapes project root %s", path, root)
	}

	return target, nil
}

// resolveSymlinksBestEffort resolves symlinks in path via
// filepath.EvalSymlinks, but tolerates a not-yet-existing path (common for
// a sidecar file about to be created) by resolving its nearest existing
// ancestor and rejoining the remainder.
func resolveSymlinksBestEffort(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", crerr.IOFailuref(err, "resolving symlinks for %s", path)
	}

	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	resolvedParent, err := resolveSymlinksBestEffort(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

// SidecarPath maps a project-relative source path p to its sidecar path:
// <root>/.comments/<p>.json. p must not escape root.
func SidecarPath(sourcePath, root string) (string, error) {
	normalizedSource, err := NormalizePath(sourcePath, root)
	if err != nil {
		return "", err
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", crerr.IOFailuref(err, "resolving project root %s", root)
	}

	rel, err := filepath.Rel(rootAbs, normalizedSource)
	if err != nil {
		return "", crerr.InvalidInputf("cannot relativize %s against %s", normalizedSource, root)
	}

	sidecarRel := filepath.ToSlash(rel) + ".json"
	return filepath.Join(rootAbs, SidecarDir, filepath.FromSlash(sidecarRel)), nil
}

// ToPOSIXRelative converts an absolute path under root to a project-
// relative path using POSIX separators, for storage in a SidecarFile's
// source_file field.
func ToPOSIXRelative(path, root string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", crerr.IOFailuref(err, "resolving project root %s", root)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", crerr.IOFailuref(err, "resolving path %s", path)
	}

	rel, err := filepath.Rel(rootAbs, pathAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", crerr.InvalidInputf("path %s escapes project root %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
