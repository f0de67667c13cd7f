package crerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFoundf("sidecar %s missing", "foo.json")
	if !Is(err, NotFound) {
		t.Errorf("Is(err, NotFound) = false, want true")
	}
	if Is(err, IOFailure) {
		t.Errorf("Is(err, IOFailure) = true, want false")
	}
}

func TestWrappedErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := IOFailuref(cause, "writing %s", "foo.json")

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if !Is(err, IOFailure) {
		t.Errorf("Is(err, IOFailure) = false, want true")
	}
}

func TestConcurrencyConflictCarriesHashes(t *testing.T) {
	err := NewConcurrencyConflict("sha256:aaa", "sha256:bbb", "source changed")

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("errors.As failed")
	}
	if e.Expected != "sha256:aaa" || e.Actual != "sha256:bbb" {
		t.Errorf("got expected=%q actual=%q", e.Expected, e.Actual)
	}
	if e.Kind() != ConcurrencyConflict {
		t.Errorf("Kind() = %v, want ConcurrencyConflict", e.Kind())
	}
}

func TestKindStringCoversAllKinds(t *testing.T) {
	kinds := []Kind{
		NotFound, InvalidInput, UnsupportedContent, ConcurrencyConflict,
		LockTimeout, IOFailure, VCSUnavailable, NotARepository,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		s := k.String()
		if s == "unknown" || s == "" {
			t.Errorf("Kind(%d).String() = %q, want a distinct name", k, s)
		}
		if seen[s] {
			t.Errorf("duplicate Kind string %q", s)
		}
		seen[s] = true
	}
}
