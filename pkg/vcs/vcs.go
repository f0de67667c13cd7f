// Package vcs provides rename and deletion detection against an external
// git process: sidecars for renamed files are relocated, and deleted (as
// opposed to never-tracked, or renamed) source files are distinguished so
// reconciliation can orphan their anchors correctly.
package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wrenfield/anchorline/pkg/crerr"
	"github.com/wrenfield/anchorline/pkg/project"
	"github.com/wrenfield/anchorline/pkg/sidecar"
)

// DefaultTimeout bounds every git subprocess invocation this package makes.
const DefaultTimeout = 10 * time.Second

// DefaultMaxRenames caps how many hops a rename chain is followed before
// giving up, guarding against a pathological or cyclic rename map.
const DefaultMaxRenames = 10

// Available reports whether the git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepository reports whether root is inside a git working tree.
func IsRepository(ctx context.Context, root string) bool {
	out, err := run(ctx, root, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}

func checkAvailable() error {
	if !Available() {
		return crerr.VCSUnavailablef("git is not available in the environment")
	}
	return nil
}

// renameMap builds the old->new rename mapping from the repository's
// entire history, via `git log --all --diff-filter=R --find-renames`.
func renameMap(ctx context.Context, root string) (map[string]string, error) {
	out, err := run(ctx, root, "log", "--all", "--diff-filter=R", "--name-status", "--pretty=format:", "--find-renames")
	if err != nil {
		return nil, crerr.VCSUnavailablef("git log --diff-filter=R failed: %v", err)
	}

	m := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 3 || !strings.HasPrefix(parts[0], "R") {
			continue
		}
		m[parts[1]] = parts[2]
	}
	return m, nil
}

// DetectRename follows the rename chain for oldPath (project-relative or
// absolute, under root) through root's full rename history, up to
// DefaultMaxRenames hops, and returns the final path only if it exists on
// disk. Returns "", nil if no rename is found; a non-nil error only on
// VCS unavailability or a non-repository root.
func DetectRename(ctx context.Context, oldPath, root string) (string, error) {
	if err := checkAvailable(); err != nil {
		return "", err
	}
	if !IsRepository(ctx, root) {
		return "", crerr.NotARepositoryf("%s is not a git repository", root)
	}

	rel, err := project.ToPOSIXRelative(oldPath, root)
	if err != nil {
		return "", nil
	}

	renames, err := renameMap(ctx, root)
	if err != nil {
		return "", err
	}

	current := rel
	followed := 0
	for {
		next, ok := renames[current]
		if !ok || followed >= DefaultMaxRenames {
			break
		}
		current = next
		followed++
	}

	if current == rel {
		return "", nil
	}

	newAbsolute := filepath.Join(root, filepath.FromSlash(current))
	if _, err := os.Stat(newAbsolute); err != nil {
		return "", nil
	}
	return newAbsolute, nil
}

// IsDeleted distinguishes a file deleted from git history from one that
// was merely renamed or never tracked: it returns true only when the path
// does not exist, was not renamed, and appears in git log history.
func IsDeleted(ctx context.Context, filePath, root string) (bool, error) {
	if err := checkAvailable(); err != nil {
		return false, err
	}
	if !IsRepository(ctx, root) {
		return false, crerr.NotARepositoryf("%s is not a git repository", root)
	}

	if _, err := os.Stat(filePath); err == nil {
		return false, nil
	}

	renamed, err := DetectRename(ctx, filePath, root)
	if err == nil && renamed != "" {
		return false, nil
	}

	rel, err := project.ToPOSIXRelative(filePath, root)
	if err != nil {
		return false, nil
	}

	out, err := run(ctx, root, "log", "--all", "--oneline", "--", rel)
	if err != nil {
		return false, crerr.VCSUnavailablef("git log -- %s failed: %v", rel, err)
	}
	return strings.TrimSpace(out) != "", nil
}

// MoveSidecar relocates the sidecar for oldSourcePath to the sidecar path
// for newSourcePath, updating its source_file field, using the same
// atomic temp+rename discipline as pkg/sidecar.Write (but without a hash
// check: the source's content has not changed, only its location). Returns
// false if no sidecar exists for oldSourcePath.
func MoveSidecar(oldSourcePath, newSourcePath, root string) (bool, error) {
	oldSidecarPath, err := project.SidecarPath(oldSourcePath, root)
	if err != nil {
		return false, err
	}
	newSidecarPath, err := project.SidecarPath(newSourcePath, root)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(oldSidecarPath); os.IsNotExist(err) {
		return false, nil
	}

	sc, err := sidecar.Read(oldSidecarPath)
	if err != nil {
		return false, err
	}

	newRel, err := project.ToPOSIXRelative(newSourcePath, root)
	if err != nil {
		sc.SourceFile = filepath.ToSlash(newSourcePath)
	} else {
		sc.SourceFile = newRel
	}

	opts := sidecar.DefaultWriteOptions()
	opts.CheckHash = false
	if err := sidecar.Write(newSidecarPath, sc, opts); err != nil {
		return false, err
	}

	os.Remove(oldSidecarPath)
	removeEmptyAncestors(filepath.Dir(oldSidecarPath), filepath.Join(root, project.SidecarDir))

	return true, nil
}

// removeEmptyAncestors best-effort removes dir and each now-empty parent up
// to (but not including) stopAt, so a nested rename doesn't leave a trail
// of empty directories under .comments/.
func removeEmptyAncestors(dir, stopAt string) {
	for dir != stopAt && dir != "." && dir != string(filepath.Separator) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// DetectAndMoveAll scans every sidecar under root's .comments tree, and for
// each whose source file no longer exists, attempts rename detection and
// relocates the sidecar on a hit. Returns the set of (old, new) absolute
// source paths that were moved.
func DetectAndMoveAll(ctx context.Context, root string, logger *zap.Logger) ([][2]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	commentsDir := filepath.Join(root, project.SidecarDir)
	if _, err := os.Stat(commentsDir); os.IsNotExist(err) {
		return nil, nil
	}

	var moved [][2]string

	err := filepath.Walk(commentsDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		sc, err := sidecar.Read(path)
		if err != nil {
			logger.Warn("skipping unreadable sidecar during rename scan", zap.String("path", path), zap.Error(err))
			return nil
		}

		sourcePath := filepath.Join(root, filepath.FromSlash(sc.SourceFile))
		if _, err := os.Stat(sourcePath); err == nil {
			return nil
		}

		newPath, err := DetectRename(ctx, sourcePath, root)
		if err != nil || newPath == "" {
			return nil
		}

		ok, err := MoveSidecar(sourcePath, newPath, root)
		if err != nil {
			logger.Warn("failed to move sidecar for detected rename",
				zap.String("old", sourcePath), zap.String("new", newPath), zap.Error(err))
			return nil
		}
		if ok {
			moved = append(moved, [2]string{sourcePath, newPath})
		}
		return nil
	})

	return moved, err
}
