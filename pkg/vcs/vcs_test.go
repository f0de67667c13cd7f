package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skip("git not found on PATH")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	return dir
}

func TestIsRepositoryDetectsGitRoot(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)
	if !IsRepository(context.Background(), dir) {
		t.Errorf("expected %s to be recognized as a git repository", dir)
	}
}

func TestIsRepositoryFalseOutsideRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	if IsRepository(context.Background(), dir) {
		t.Errorf("expected non-repo directory to report false")
	}
}

func TestDetectRenameFollowsSingleRename(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	oldPath := filepath.Join(dir, "old.go")
	if err := os.WriteFile(oldPath, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	newPath := filepath.Join(dir, "new.go")
	runGit(t, dir, "mv", "old.go", "new.go")
	runGit(t, dir, "commit", "-q", "-m", "rename")

	got, err := DetectRename(context.Background(), oldPath, dir)
	if err != nil {
		t.Fatalf("DetectRename: %v", err)
	}
	if got != newPath {
		t.Errorf("got %q, want %q", got, newPath)
	}
}

func TestDetectRenameFollowsChain(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	a := filepath.Join(dir, "a.go")
	if err := os.WriteFile(a, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	runGit(t, dir, "mv", "a.go", "b.go")
	runGit(t, dir, "commit", "-q", "-m", "rename a->b")
	runGit(t, dir, "mv", "b.go", "c.go")
	runGit(t, dir, "commit", "-q", "-m", "rename b->c")

	got, err := DetectRename(context.Background(), a, dir)
	if err != nil {
		t.Fatalf("DetectRename: %v", err)
	}
	want := filepath.Join(dir, "c.go")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDetectRenameReturnsEmptyWhenNoRename(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	a := filepath.Join(dir, "a.go")
	if err := os.WriteFile(a, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	got, err := DetectRename(context.Background(), a, dir)
	if err != nil {
		t.Fatalf("DetectRename: %v", err)
	}
	if got != "" {
		t.Errorf("expected no rename, got %q", got)
	}
}

func TestIsDeletedDistinguishesDeletedFromNeverTracked(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	tracked := filepath.Join(dir, "tracked.go")
	if err := os.WriteFile(tracked, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	runGit(t, dir, "rm", "-q", "tracked.go")
	runGit(t, dir, "commit", "-q", "-m", "delete")

	deleted, err := IsDeleted(context.Background(), tracked, dir)
	if err != nil {
		t.Fatalf("IsDeleted: %v", err)
	}
	if !deleted {
		t.Errorf("expected tracked-then-removed file to be reported deleted")
	}

	neverTracked := filepath.Join(dir, "never.go")
	deleted, err = IsDeleted(context.Background(), neverTracked, dir)
	if err != nil {
		t.Fatalf("IsDeleted: %v", err)
	}
	if deleted {
		t.Errorf("expected never-tracked file to not be reported deleted")
	}
}

func TestIsDeletedFalseForExistingFile(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	existing := filepath.Join(dir, "existing.go")
	if err := os.WriteFile(existing, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "initial")

	deleted, err := IsDeleted(context.Background(), existing, dir)
	if err != nil {
		t.Fatalf("IsDeleted: %v", err)
	}
	if deleted {
		t.Errorf("expected existing file to not be reported deleted")
	}
}
