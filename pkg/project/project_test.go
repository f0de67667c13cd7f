package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wrenfield/anchorline/pkg/crerr"
)

func TestFindRootLocatesGitDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("Mkdir .git: %v", err)
	}
	nested := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	got, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	gotResolved, _ := filepath.EvalSymlinks(got)
	wantResolved, _ := filepath.EvalSymlinks(root)
	if gotResolved != wantResolved {
		t.Errorf("got %q, want %q", got, root)
	}
}

func TestFindRootAcceptsGitWorktreeFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".git"), []byte("gitdir: ../main/.git/worktrees/x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := FindRoot(root)
	if err != nil {
		t.Fatalf("FindRoot: %v", err)
	}
	if got == "" {
		t.Errorf("expected a root")
	}
}

func TestFindRootFailsWithoutGit(t *testing.T) {
	root := t.TempDir()
	_, err := FindRoot(root)
	if !crerr.Is(err, crerr.NotARepository) {
		t.Fatalf("expected NotARepository, got %v", err)
	}
}

func TestNormalizePathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("Mkdir .git: %v", err)
	}

	_, err := NormalizePath("../../etc/passwd", root)
	if !crerr.Is(err, crerr.InvalidInput) {
		t.Fatalf("expected InvalidInput for traversal, got %v", err)
	}
}

func TestNormalizePathAcceptsRelativeWithinRoot(t *testing.T) {
	root := t.TempDir()
	got, err := NormalizePath("src/main.go", root)
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	rootAbs, _ := filepath.Abs(root)
	if want := filepath.Join(rootAbs, "src", "main.go"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSidecarPathMapsUnderComments(t *testing.T) {
	root := t.TempDir()
	got, err := SidecarPath("src/foo/bar.go", root)
	if err != nil {
		t.Fatalf("SidecarPath: %v", err)
	}
	rootAbs, _ := filepath.Abs(root)
	want := filepath.Join(rootAbs, ".comments", "src", "foo", "bar.go.json")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSidecarPathRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := SidecarPath("../outside.go", root)
	if !crerr.Is(err, crerr.InvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestToPOSIXRelative(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "src", "main.go")
	got, err := ToPOSIXRelative(path, root)
	if err != nil {
		t.Fatalf("ToPOSIXRelative: %v", err)
	}
	if got != "src/main.go" {
		t.Errorf("got %q, want src/main.go", got)
	}
}
