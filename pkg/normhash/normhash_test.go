package normhash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wrenfield/anchorline/pkg/crerr"
)

func TestNormalizeNFCEquatesDecompositions(t *testing.T) {
	// "é" as a single codepoint vs "e" + combining acute accent.
	composed := "café"
	decomposed := "café"

	if NormalizeNFC(composed) != NormalizeNFC(decomposed) {
		t.Fatalf("NFC forms differ: %q != %q", NormalizeNFC(composed), NormalizeNFC(decomposed))
	}
}

func TestContentHashIsDeterministicAndPrefixed(t *testing.T) {
	h1 := ContentHash("hello world")
	h2 := ContentHash("hello world")

	if h1 != h2 {
		t.Errorf("ContentHash not deterministic: %q != %q", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("ContentHash missing sha256: prefix: %q", h1)
	}
}

func TestContentHashNormalizesBeforeHashing(t *testing.T) {
	composed := "café"
	decomposed := "café"

	if ContentHash(composed) != ContentHash(decomposed) {
		t.Errorf("ContentHash should agree across NFC-equivalent input")
	}
}

func TestContextHashJoinsWithNewline(t *testing.T) {
	a := ContextHash([]string{"line one", "line two", "line three"})
	b := ContentHash("line one\nline two\nline three")

	if a != b {
		t.Errorf("ContextHash(lines) != ContentHash(joined): %q vs %q", a, b)
	}
}

func TestSourceHashMatchesContentForTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	data := []byte("package main\n\nfunc main() {}\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := SourceHash(path)
	if err != nil {
		t.Fatalf("SourceHash: %v", err)
	}
	if !strings.HasPrefix(got, "sha256:") {
		t.Errorf("SourceHash missing prefix: %q", got)
	}

	// Re-hash to confirm determinism across calls.
	got2, err := SourceHash(path)
	if err != nil {
		t.Fatalf("SourceHash (second call): %v", err)
	}
	if got != got2 {
		t.Errorf("SourceHash not deterministic: %q != %q", got, got2)
	}
}

func TestSourceHashRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.dat")
	data := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0x00, 0x01}, 10)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := SourceHash(path)
	if err == nil {
		t.Fatalf("expected error for binary file")
	}
	if !crerr.Is(err, crerr.UnsupportedContent) {
		t.Errorf("expected UnsupportedContent, got %v", err)
	}
}

func TestSourceHashLargeFileChunking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "large.txt")

	var buf bytes.Buffer
	line := strings.Repeat("x", 100) + "\n"
	for i := 0; i < 1000; i++ {
		buf.WriteString(line)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := SourceHash(path)
	if err != nil {
		t.Fatalf("SourceHash: %v", err)
	}
	if !strings.HasPrefix(got, "sha256:") || len(got) != len("sha256:")+64 {
		t.Errorf("unexpected hash shape: %q", got)
	}
}

func TestIsBinaryDetectsNullByte(t *testing.T) {
	dir := t.TempDir()

	textPath := filepath.Join(dir, "text.txt")
	if err := os.WriteFile(textPath, []byte("hello, world\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	binPath := filepath.Join(dir, "bin.dat")
	if err := os.WriteFile(binPath, []byte{'a', 'b', 0x00, 'c'}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	isBin, err := IsBinary(textPath)
	if err != nil {
		t.Fatalf("IsBinary(text): %v", err)
	}
	if isBin {
		t.Errorf("text file misclassified as binary")
	}

	isBin, err = IsBinary(binPath)
	if err != nil {
		t.Fatalf("IsBinary(bin): %v", err)
	}
	if !isBin {
		t.Errorf("binary file misclassified as text")
	}
}

func TestSnippetTruncatesWithEllipsis(t *testing.T) {
	short := "short text"
	if got := Snippet(short, 500); got != short {
		t.Errorf("Snippet should not alter short text: got %q", got)
	}

	long := strings.Repeat("a", 600)
	got := Snippet(long, 500)
	if len(got) <= 500 {
		t.Errorf("expected truncation marker to extend length, got len %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
}
