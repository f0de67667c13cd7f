// Package normhash provides the unicode normalization and content hashing
// primitives every other anchorline package builds on: all text comparison
// and all hashing in this module first passes through NormalizeNFC, and all
// hashes carry the "sha256:" prefix used throughout the sidecar schema.
package normhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/unicode/norm"

	"github.com/wrenfield/anchorline/pkg/crerr"
)

// chunkSize matches the read granularity used when hashing file content.
const chunkSize = 8192

// NormalizeNFC normalizes text to NFC so identical-looking text compares
// equal regardless of its original unicode decomposition.
func NormalizeNFC(text string) string {
	return norm.NFC.String(text)
}

// ContentHash returns the "sha256:"-prefixed hash of text, after NFC
// normalization. Used for anchor content hashes and context hashes alike.
func ContentHash(text string) string {
	normalized := NormalizeNFC(text)
	sum := sha256.Sum256([]byte(normalized))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// ContextHash hashes a block of context lines joined with "\n", matching
// ContentHash's normalization so context-before/context-after hashes can be
// recomputed identically on either side of a reconciliation.
func ContextHash(lines []string) string {
	joined := ""
	for i, line := range lines {
		if i > 0 {
			joined += "\n"
		}
		joined += line
	}
	return ContentHash(joined)
}

// SourceHash computes the "sha256:"-prefixed hash of a file's raw bytes,
// read in chunkSize chunks. It does not normalize: source hashes detect any
// byte-level change to the file, including ones normalization would hide.
// Returns a crerr.UnsupportedContent error if the file appears to be binary,
// and crerr.IOFailure if it cannot be read.
func SourceHash(path string) (string, error) {
	binary, err := IsBinary(path)
	if err != nil {
		return "", err
	}
	if binary {
		return "", crerr.UnsupportedContentf("%s appears to be a binary file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", crerr.IOFailuref(err, "opening %s for hashing", path)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", crerr.IOFailuref(readErr, "reading %s for hashing", path)
		}
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// IsBinary detects binary content using the same heuristic as the rest of
// the corpus: read the first chunkSize bytes and look for a null byte. A
// file that cannot be read at all is treated as binary, erring toward
// rejection rather than hashing content nothing can confirm is text.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return true, crerr.IOFailuref(err, "opening %s to check for binary content", path)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true, crerr.IOFailuref(err, "reading %s to check for binary content", path)
	}

	for _, b := range buf[:n] {
		if b == 0 {
			return true, nil
		}
	}
	return false, nil
}

// Snippet truncates text to maxLen runes, appending an ellipsis marker when
// truncated, for use in anchor/comment display snippets.
func Snippet(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return fmt.Sprintf("%s...", string(runes[:maxLen]))
}
