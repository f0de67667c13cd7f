package fuzzy

import (
	"github.com/wrenfield/anchorline/pkg/normhash"
)

// DefaultContextWindow is the narrow sliding-window radius (Wc) used once a
// context region has been located.
const DefaultContextWindow = 10

// DefaultContextLines is the number of consecutive lines (N) hashed to
// produce a context-before/context-after marker.
const DefaultContextLines = 3

// ContextRegion is a region of the haystack bounded by a context-before and
// context-after marker, with 1-indexed inclusive line bounds.
type ContextRegion struct {
	LineStart int
	LineEnd   int
}

// FindContextRegion scans haystack for a block of contextLines consecutive
// lines whose normalized-join hash equals contextBeforeHash, then scans
// from just after it for the first later block matching contextAfterHash.
// Returns nil if either marker is not found.
func FindContextRegion(haystack []string, contextBeforeHash, contextAfterHash string, contextLines int) *ContextRegion {
	if len(haystack) == 0 {
		return nil
	}
	haystackLen := len(haystack)

	beforeLine := -1
	for i := 0; i <= haystackLen-contextLines; i++ {
		if normhash.ContextHash(haystack[i:i+contextLines]) == contextBeforeHash {
			beforeLine = i + contextLines
			break
		}
	}
	if beforeLine == -1 {
		return nil
	}

	afterLine := -1
	for i := beforeLine; i <= haystackLen-contextLines; i++ {
		if normhash.ContextHash(haystack[i:i+contextLines]) == contextAfterHash {
			afterLine = i
			break
		}
	}
	if afterLine == -1 {
		return nil
	}

	return &ContextRegion{LineStart: beforeLine + 1, LineEnd: afterLine}
}

// FindBestMatchWithContext implements context-based relocation: locate the
// context region, then run a narrow sliding-window search centered on its
// midpoint; if that fails (no context region, or no match within it), fall
// back to a broad sliding-window search at the original origin.
func FindBestMatchWithContext(
	needle string,
	haystack []string,
	origin int,
	contextBeforeHash, contextAfterHash string,
	threshold float64,
	contextWindow, fallbackWindow int,
) *MatchCandidate {
	region := FindContextRegion(haystack, contextBeforeHash, contextAfterHash, DefaultContextLines)
	if region != nil {
		midpoint := (region.LineStart + region.LineEnd) / 2
		if midpoint < 1 {
			midpoint = 1
		}
		if match := FindBestMatch(needle, haystack, midpoint, threshold, contextWindow); match != nil {
			return match
		}
	}

	return FindBestMatch(needle, haystack, origin, threshold, fallbackWindow)
}
