// Package anchor implements the multi-strategy anchor reconciliation
// engine: relocating a comment's anchor after the source file it refers to
// has been edited, and summarizing the outcome across a whole sidecar.
package anchor

import (
	"bufio"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wrenfield/anchorline/pkg/config"
	"github.com/wrenfield/anchorline/pkg/crerr"
	"github.com/wrenfield/anchorline/pkg/fuzzy"
	"github.com/wrenfield/anchorline/pkg/model"
	"github.com/wrenfield/anchorline/pkg/normhash"
	"github.com/wrenfield/anchorline/pkg/sidecar"
)

// Reconcile relocates a single anchor against sourceLines, trying each
// strategy in order and stopping at the first success:
//  1. exact match at the anchor's original position
//  2. exact match elsewhere in the file
//  3. context-based fuzzy match
//  4. broad sliding-window fuzzy match
//  5. orphan (all strategies failed)
//
// In every path, ContentHash, ContextHashBefore, ContextHashAfter, and
// ContentSnippet are copied verbatim from the input anchor.
func Reconcile(a model.Anchor, sourceLines []string, cfg config.Config) model.Anchor {
	if match, ok := exactAtOriginalPosition(a, sourceLines); ok {
		return withPlacement(a, match.lineStart, match.lineEnd, model.HealthAnchored, 0)
	}

	if match, ok := exactElsewhere(a, sourceLines); ok {
		drift := abs(match.lineStart - a.LineStart)
		return withPlacement(a, match.lineStart, match.lineEnd, model.HealthAnchored, drift)
	}

	if candidate := fuzzy.FindBestMatchWithContext(
		a.ContentSnippet, sourceLines, a.LineStart,
		a.ContextHashBefore, a.ContextHashAfter,
		cfg.Threshold, cfg.ContextWindow, cfg.FallbackWindow,
	); candidate != nil {
		drift := abs(candidate.LineStart - a.LineStart)
		return withPlacement(a, candidate.LineStart, candidate.LineEnd, model.HealthDrifted, drift)
	}

	if candidate := fuzzy.FindBestMatch(a.ContentSnippet, sourceLines, a.LineStart, cfg.Threshold, cfg.FallbackWindow); candidate != nil {
		drift := abs(candidate.LineStart - a.LineStart)
		return withPlacement(a, candidate.LineStart, candidate.LineEnd, model.HealthDrifted, drift)
	}

	return withPlacement(a, a.LineStart, a.LineEnd, model.HealthOrphaned, 0)
}

type linePos struct {
	lineStart, lineEnd int
}

func exactAtOriginalPosition(a model.Anchor, sourceLines []string) (linePos, bool) {
	startIdx := a.LineStart - 1
	endIdx := a.LineEnd
	if startIdx < 0 || startIdx >= len(sourceLines) || endIdx > len(sourceLines) {
		return linePos{}, false
	}

	content := strings.Join(sourceLines[startIdx:endIdx], "\n")
	if normhash.ContentHash(content) == a.ContentHash {
		return linePos{a.LineStart, a.LineEnd}, true
	}
	return linePos{}, false
}

func exactElsewhere(a model.Anchor, sourceLines []string) (linePos, bool) {
	length := a.LineEnd - a.LineStart + 1
	if length <= 0 || length > len(sourceLines) {
		return linePos{}, false
	}

	for i := 0; i <= len(sourceLines)-length; i++ {
		content := strings.Join(sourceLines[i:i+length], "\n")
		if normhash.ContentHash(content) == a.ContentHash {
			return linePos{i + 1, i + length}, true
		}
	}
	return linePos{}, false
}

func withPlacement(a model.Anchor, lineStart, lineEnd int, health model.AnchorHealth, drift int) model.Anchor {
	return model.Anchor{
		ContentHash:       a.ContentHash,
		ContextHashBefore: a.ContextHashBefore,
		ContextHashAfter:  a.ContextHashAfter,
		LineStart:         lineStart,
		LineEnd:           lineEnd,
		ContentSnippet:    a.ContentSnippet,
		Health:            health,
		DriftDistance:     drift,
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ReadLines reads a text file into a slice of lines, with trailing \r\n or
// \n stripped from each, matching the line-splitting behavior reconciliation
// operates on.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, crerr.IOFailuref(err, "opening %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, crerr.IOFailuref(err, "reading %s", path)
	}
	return lines, nil
}

// ReconcileSidecar performs bulk reconciliation: read the sidecar at
// sidecarPath, compare its recorded source_hash against the current
// source file's hash, and if they differ, reconcile every thread's anchor,
// update source_hash, and write the sidecar atomically. If the hashes
// match, no rewrite occurs and the report reflects existing health values.
// The operation is atomic: on any failure partway through, the sidecar on
// disk is left unchanged.
func ReconcileSidecar(sidecarPath, sourcePath string, cfg config.Config, logger *zap.Logger) (model.ReconciliationReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sc, err := sidecar.Read(sidecarPath)
	if err != nil {
		return model.ReconciliationReport{}, err
	}
	hashBefore := sc.SourceHash

	if _, err := os.Stat(sourcePath); err != nil {
		return model.ReconciliationReport{}, crerr.NotFoundf("source file not found: %s", sourcePath)
	}

	hashAfter, err := normhash.SourceHash(sourcePath)
	if err != nil {
		return model.ReconciliationReport{}, err
	}

	if hashBefore == hashAfter {
		return model.ReportFromThreads(sc.Threads, hashBefore, hashAfter), nil
	}

	sourceLines, err := ReadLines(sourcePath)
	if err != nil {
		return model.ReconciliationReport{}, err
	}

	reconciled := make([]model.Thread, len(sc.Threads))
	for i, t := range sc.Threads {
		t.Anchor = Reconcile(t.Anchor, sourceLines, cfg)
		reconciled[i] = t
		logger.Debug("reconciled anchor",
			zap.String("thread_id", t.ID), zap.String("health", string(t.Anchor.Health)),
			zap.Int("drift", t.Anchor.DriftDistance))
	}
	sc.Threads = reconciled
	sc.SourceHash = hashAfter

	opts := sidecar.DefaultWriteOptions()
	opts.Logger = logger
	if err := sidecar.Write(sidecarPath, sc, opts); err != nil {
		return model.ReconciliationReport{}, err
	}

	return model.ReportFromThreads(sc.Threads, hashBefore, hashAfter), nil
}
