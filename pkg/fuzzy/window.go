package fuzzy

import (
	"strings"

	"github.com/wrenfield/anchorline/pkg/normhash"
)

// DefaultWindow is the broad fallback sliding-window search radius (Wf),
// in lines above/below the origin.
const DefaultWindow = 500

// MatchCandidate is a candidate match surfaced by a sliding-window or
// context-based search, with 1-indexed inclusive line bounds.
type MatchCandidate struct {
	LineStart int
	LineEnd   int
	Snippet   string
	Score     Score
}

// FindBestMatch searches haystack for the best fuzzy match of needle,
// within ±window lines of origin (1-indexed), trying window lengths from
// floor(0.8*h) to ceil(1.2*h) where h is needle's line count. Returns the
// best candidate clearing threshold, or nil if none does.
func FindBestMatch(needle string, haystack []string, origin int, threshold float64, window int) *MatchCandidate {
	if needle == "" || len(haystack) == 0 {
		return nil
	}

	needle = normhash.NormalizeNFC(needle)
	needleLines := strings.Count(needle, "\n") + 1

	haystackLen := len(haystack)
	searchStart := origin - 1 - window
	if searchStart < 0 {
		searchStart = 0
	}
	searchEnd := origin - 1 + window
	if searchEnd > haystackLen {
		searchEnd = haystackLen
	}

	minWindowLen := int(0.8 * float64(needleLines))
	if minWindowLen < 1 {
		minWindowLen = 1
	}
	maxWindowLen := int(1.2*float64(needleLines)) + 1

	var candidates []MatchCandidate

	for windowStart := searchStart; windowStart < searchEnd; windowStart++ {
		for windowLen := minWindowLen; windowLen <= maxWindowLen; windowLen++ {
			windowEnd := windowStart + windowLen
			if windowEnd > haystackLen {
				break
			}

			windowText := normhash.NormalizeNFC(strings.Join(haystack[windowStart:windowEnd], "\n"))
			score := Compute(needle, windowText)

			if score.Combined >= threshold {
				candidates = append(candidates, MatchCandidate{
					LineStart: windowStart + 1,
					LineEnd:   windowEnd,
					Snippet:   windowText,
					Score:     score,
				})
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	return disambiguate(candidates, origin)
}

// disambiguate applies the tie-break rules: highest combined score; among
// scores within 0.05 of the best, closest to origin; remaining ties resolved
// by earliest start line.
func disambiguate(candidates []MatchCandidate, origin int) *MatchCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score.Combined > best.Score.Combined {
			best = c
		}
	}

	var ties []MatchCandidate
	for _, c := range candidates {
		if best.Score.Combined-c.Score.Combined < 0.05 && c.Score.Combined-best.Score.Combined < 0.05 {
			ties = append(ties, c)
		}
	}

	if len(ties) == 1 {
		result := ties[0]
		return &result
	}

	closest := ties[0]
	closestDist := abs(closest.LineStart - origin)
	for _, c := range ties[1:] {
		d := abs(c.LineStart - origin)
		if d < closestDist || (d == closestDist && c.LineStart < closest.LineStart) {
			closest = c
			closestDist = d
		}
	}
	return &closest
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
