// Package config layers environment-variable overrides on top of
// anchorline's literal spec defaults, the way crit layers CRIT_* env vars
// on top of its flag defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/wrenfield/anchorline/pkg/fuzzy"
	"github.com/wrenfield/anchorline/pkg/lock"
	"github.com/wrenfield/anchorline/pkg/sidecar"
)

// Config holds every tunable the reconciliation, locking, and retry paths
// consult.
type Config struct {
	// Threshold (τ) is the minimum combined similarity score for a fuzzy
	// match to count.
	Threshold float64
	// ContextWindow (Wc) is the narrow search radius once a context region
	// has been located.
	ContextWindow int
	// FallbackWindow (Wf) is the broad sliding-window search radius.
	FallbackWindow int
	// LockTimeout bounds how long Acquire waits before failing.
	LockTimeout time.Duration
	// MaxRetries bounds WriteWithRetry's attempts on ConcurrencyConflict.
	MaxRetries int
}

// Defaults returns the spec's literal default tunables.
func Defaults() Config {
	return Config{
		Threshold:      fuzzy.DefaultThreshold,
		ContextWindow:  fuzzy.DefaultContextWindow,
		FallbackWindow: fuzzy.DefaultWindow,
		LockTimeout:    lock.DefaultTimeout,
		MaxRetries:     sidecar.DefaultMaxRetries,
	}
}

// FromEnv layers ANCHORLINE_* environment variable overrides on top of
// Defaults(). A malformed value falls back silently to the default,
// logged at Warn.
//
//   - ANCHORLINE_THRESHOLD (float, 0-1)
//   - ANCHORLINE_LOCK_TIMEOUT (duration, e.g. "5s")
//   - ANCHORLINE_MAX_RETRIES (int)
//   - ANCHORLINE_FALLBACK_WINDOW (int)
func FromEnv(logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := Defaults()

	if v := os.Getenv("ANCHORLINE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Threshold = f
		} else {
			logger.Warn("ignoring malformed ANCHORLINE_THRESHOLD", zap.String("value", v))
		}
	}

	if v := os.Getenv("ANCHORLINE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockTimeout = d
		} else {
			logger.Warn("ignoring malformed ANCHORLINE_LOCK_TIMEOUT", zap.String("value", v))
		}
	}

	if v := os.Getenv("ANCHORLINE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		} else {
			logger.Warn("ignoring malformed ANCHORLINE_MAX_RETRIES", zap.String("value", v))
		}
	}

	if v := os.Getenv("ANCHORLINE_FALLBACK_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FallbackWindow = n
		} else {
			logger.Warn("ignoring malformed ANCHORLINE_FALLBACK_WINDOW", zap.String("value", v))
		}
	}

	return cfg
}
