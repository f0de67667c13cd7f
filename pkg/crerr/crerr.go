// Package crerr defines the closed error taxonomy that every anchorline
// component surfaces to its callers. Low-level failures (os errors, JSON
// decode errors, subprocess failures) are mapped into one of these kinds at
// the storage/locking/vcs boundary; they are never leaked to callers as raw
// OS errors.
package crerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories a caller can branch on.
type Kind int

const (
	// NotFound covers a missing sidecar, source file, project root, or thread.
	NotFound Kind = iota
	// InvalidInput covers malformed JSON, schema violations, out-of-range
	// line numbers, bad hash formats, path traversal, and similar.
	InvalidInput
	// UnsupportedContent covers binary source files.
	UnsupportedContent
	// ConcurrencyConflict covers a source hash mismatch detected during a
	// sidecar write. Callers should re-read and retry.
	ConcurrencyConflict
	// LockTimeout covers a failure to acquire a file lock within its
	// deadline. Callers should re-read and retry.
	LockTimeout
	// IOFailure covers a read/write/rename failure reported by the OS.
	IOFailure
	// VCSUnavailable covers the version-control tool not being present.
	// Callers should degrade gracefully.
	VCSUnavailable
	// NotARepository covers a project root that exists but has no VCS
	// metadata.
	NotARepository
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case UnsupportedContent:
		return "unsupported_content"
	case ConcurrencyConflict:
		return "concurrency_conflict"
	case LockTimeout:
		return "lock_timeout"
	case IOFailure:
		return "io_failure"
	case VCSUnavailable:
		return "vcs_unavailable"
	case NotARepository:
		return "not_a_repository"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across package boundaries.
type Error struct {
	kind Kind
	msg  string
	err  error // wrapped cause, may be nil

	// Expected/Actual carry the source hashes for ConcurrencyConflict
	// diagnostics (spec §7: "the caller receives ... the 'expected' and
	// 'actual' hashes for diagnostics").
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's category.
func (e *Error) Kind() Kind { return e.kind }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) error { return newErr(NotFound, format, args...) }

// InvalidInputf builds an InvalidInput error.
func InvalidInputf(format string, args ...any) error { return newErr(InvalidInput, format, args...) }

// UnsupportedContentf builds an UnsupportedContent error.
func UnsupportedContentf(format string, args ...any) error {
	return newErr(UnsupportedContent, format, args...)
}

// NewConcurrencyConflict builds a ConcurrencyConflict error carrying the
// expected (sidecar-recorded) and actual (current) source hashes.
func NewConcurrencyConflict(expected, actual, format string, args ...any) error {
	e := newErr(ConcurrencyConflict, format, args...)
	e.Expected = expected
	e.Actual = actual
	return e
}

// LockTimeoutf builds a LockTimeout error.
func LockTimeoutf(format string, args ...any) error { return newErr(LockTimeout, format, args...) }

// IOFailuref wraps an OS-level cause as an IOFailure error.
func IOFailuref(cause error, format string, args ...any) error {
	return wrap(IOFailure, cause, format, args...)
}

// VCSUnavailablef builds a VCSUnavailable error.
func VCSUnavailablef(format string, args ...any) error { return newErr(VCSUnavailable, format, args...) }

// NotARepositoryf builds a NotARepository error.
func NotARepositoryf(format string, args ...any) error { return newErr(NotARepository, format, args...) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == kind
	}
	return false
}
