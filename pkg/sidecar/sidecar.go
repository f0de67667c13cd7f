// Package sidecar reads and writes SidecarFile documents atomically, with
// deterministic JSON formatting and an optimistic concurrency check against
// the source file's current hash.
package sidecar

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/wrenfield/anchorline/pkg/crerr"
	"github.com/wrenfield/anchorline/pkg/lock"
	"github.com/wrenfield/anchorline/pkg/model"
	"github.com/wrenfield/anchorline/pkg/normhash"
)

// DefaultMaxRetries is the default number of attempts WriteWithRetry makes
// before surfacing a ConcurrencyConflict to the caller.
const DefaultMaxRetries = 3

// Read loads and parses the sidecar at path. A missing file yields a
// crerr.NotFound error, distinct from a malformed one (crerr.InvalidInput).
func Read(path string) (model.SidecarFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.SidecarFile{}, crerr.NotFoundf("sidecar file not found: %s", path)
		}
		return model.SidecarFile{}, crerr.IOFailuref(err, "reading sidecar %s", path)
	}

	var sc model.SidecarFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return model.SidecarFile{}, crerr.InvalidInputf("sidecar %s failed schema validation: %v", path, err)
	}
	if err := sc.Validate(); err != nil {
		return model.SidecarFile{}, crerr.InvalidInputf("sidecar %s failed schema validation: %v", path, err)
	}

	return sc, nil
}

// WriteOptions controls the optional steps of a Write call.
type WriteOptions struct {
	// CheckHash enables the optimistic concurrency check (default true via
	// DefaultWriteOptions).
	CheckHash bool
	// AcquireLock wraps the write in an exclusive file lock (default true).
	AcquireLock bool
	// LockTimeout bounds lock acquisition (default lock.DefaultTimeout).
	LockTimeout time.Duration
	Logger      *zap.Logger
}

// DefaultWriteOptions returns the conventional Write behavior: hash-checked,
// locked, with the package's default lock timeout.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		CheckHash:   true,
		AcquireLock: true,
		LockTimeout: lock.DefaultTimeout,
	}
}

// Write serializes sc to path atomically: optional optimistic concurrency
// check, then temp-file-in-same-dir + rename, all under an exclusive lock
// by default. The hash check is skipped (not failed) when sc.SourceFile no
// longer exists on disk, since that represents a legitimate
// orphaned-anchors scenario rather than a conflict.
func Write(path string, sc model.SidecarFile, opts WriteOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var l *lock.Lock
	if opts.AcquireLock {
		timeout := opts.LockTimeout
		if timeout == 0 {
			timeout = lock.DefaultTimeout
		}
		acquired, err := lock.Acquire(path, lock.Exclusive, timeout, logger)
		if err != nil {
			return err
		}
		l = acquired
		defer l.Release()
	}

	if opts.CheckHash {
		if _, err := os.Stat(sc.SourceFile); err == nil {
			currentHash, err := normhash.SourceHash(sc.SourceFile)
			if err != nil {
				return err
			}
			if currentHash != sc.SourceHash {
				logger.Warn("concurrency conflict detected",
					zap.String("path", path), zap.String("expected", sc.SourceHash), zap.String("actual", currentHash))
				return crerr.NewConcurrencyConflict(sc.SourceHash, currentHash,
					"source file %s has changed since this sidecar was read", sc.SourceFile)
			}
		}
		// Source file missing: orphaned-anchors scenario, skip the check.
	}

	if err := sc.Validate(); err != nil {
		return crerr.InvalidInputf("sidecar failed validation before write: %v", err)
	}

	data, err := canonicalJSON(sc)
	if err != nil {
		return crerr.InvalidInputf("sidecar failed validation before write: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return crerr.IOFailuref(err, "creating parent directory for %s", path)
	}

	return atomicWrite(path, data)
}

// canonicalJSON serializes sc with lexicographically sorted keys at every
// level, 2-space indentation, and a trailing newline. Go's encoding/json
// already sorts map keys; round-tripping through map[string]any gives the
// same guarantee for struct fields without hand-writing a key-sorting
// encoder.
func canonicalJSON(sc model.SidecarFile) ([]byte, error) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	indented, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(indented, '\n'), nil
}

// atomicWrite writes data to a temp file in target's directory, then
// renames it over target. The temp file is removed on any failure so no
// .tmp_* residue is left behind.
func atomicWrite(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tmp_*.json")
	if err != nil {
		return crerr.IOFailuref(err, "creating temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return crerr.IOFailuref(err, "writing temp file %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return crerr.IOFailuref(err, "closing temp file %s", tmpPath)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return crerr.IOFailuref(err, "renaming %s to %s", tmpPath, target)
	}
	return nil
}

// WriteWithRetry performs read -> apply update -> write-with-hash-check up
// to maxRetries times, re-reading and retrying on ConcurrencyConflict.
// update receives the current sidecar (nil if none exists yet) and must
// tolerate being invoked more than once.
func WriteWithRetry(path string, maxRetries int, update func(current *model.SidecarFile) (model.SidecarFile, error), opts WriteOptions) (model.SidecarFile, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var current *model.SidecarFile
		sc, err := Read(path)
		if err == nil {
			current = &sc
		} else if !crerr.Is(err, crerr.NotFound) {
			return model.SidecarFile{}, err
		}

		updated, err := update(current)
		if err != nil {
			return model.SidecarFile{}, err
		}

		if err := Write(path, updated, opts); err != nil {
			if crerr.Is(err, crerr.ConcurrencyConflict) {
				lastErr = err
				continue
			}
			return model.SidecarFile{}, err
		}

		return updated, nil
	}

	return model.SidecarFile{}, crerr.NewConcurrencyConflict("", "",
		"failed to write %s after %d attempts due to concurrent modifications: %v", path, maxRetries, lastErr)
}
