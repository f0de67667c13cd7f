// Package model defines the anchorline data model: Anchor, Comment,
// Decision, Thread, SidecarFile, and ReconciliationReport. Constructors
// validate invariants and return a *crerr.Error instead of panicking, so
// malformed data is rejected at the boundary rather than propagated.
package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wrenfield/anchorline/pkg/crerr"
	"github.com/wrenfield/anchorline/pkg/normhash"
)

// ThreadStatus is a thread's lifecycle state.
type ThreadStatus string

const (
	StatusOpen     ThreadStatus = "open"
	StatusResolved ThreadStatus = "resolved"
	StatusWontfix  ThreadStatus = "wontfix"
)

// AuthorType distinguishes human from automated comment authors.
type AuthorType string

const (
	AuthorHuman AuthorType = "human"
	AuthorAgent AuthorType = "agent"
)

// AnchorHealth is an anchor's current placement confidence.
type AnchorHealth string

const (
	HealthAnchored AnchorHealth = "anchored"
	HealthDrifted  AnchorHealth = "drifted"
	HealthOrphaned AnchorHealth = "orphaned"
)

var hashPattern = regexp.MustCompile(`^sha256:[a-fA-F0-9]{64}$`)

// NewULID returns a fresh 26-character ULID identity for a Comment or
// Thread, using the current time as the ULID's timestamp component.
func NewULID() string {
	return ulid.Make().String()
}

// NowUTC returns the current time as an ISO-8601 UTC timestamp ending in
// "Z", matching the timestamp format used throughout the sidecar schema.
func NowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

func validateUTCTimestamp(field, v string) error {
	if !strings.HasSuffix(v, "Z") {
		return crerr.InvalidInputf("%s %q must be a UTC timestamp ending in Z", field, v)
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", v); err != nil {
		if _, err2 := time.Parse(time.RFC3339, v); err2 != nil {
			return crerr.InvalidInputf("%s %q is not a valid ISO-8601 UTC timestamp", field, v)
		}
	}
	return nil
}

func validateULID(field, v string) error {
	if len(v) != 26 {
		return crerr.InvalidInputf("%s must be exactly 26 characters, got %d", field, len(v))
	}
	return nil
}

func validateHash(field, v string) error {
	if !hashPattern.MatchString(v) {
		return crerr.InvalidInputf("%s %q must match sha256:<64 hex chars>", field, v)
	}
	return nil
}

// Decision is an immutable record attached to a thread when it is closed.
// Once constructed, a Decision's fields are never mutated; reopening a
// thread preserves its existing Decision.
type Decision struct {
	Summary   string `json:"summary"`
	Decider   string `json:"decider"`
	Timestamp string `json:"timestamp"`
}

// NewDecision validates and constructs a Decision.
func NewDecision(summary, decider, timestamp string) (Decision, error) {
	if len(summary) < 1 || len(summary) > 10000 {
		return Decision{}, crerr.InvalidInputf("decision summary must be 1-10000 chars, got %d", len(summary))
	}
	if len(decider) < 1 || len(decider) > 200 {
		return Decision{}, crerr.InvalidInputf("decision decider must be 1-200 chars, got %d", len(decider))
	}
	if err := validateUTCTimestamp("decision timestamp", timestamp); err != nil {
		return Decision{}, err
	}
	return Decision{Summary: summary, Decider: decider, Timestamp: timestamp}, nil
}

// Comment is a single, append-only post inside a thread.
type Comment struct {
	ID         string     `json:"id"`
	Author     string     `json:"author"`
	AuthorType AuthorType `json:"author_type"`
	Body       string     `json:"body"`
	Timestamp  string     `json:"timestamp"`
}

// NewComment validates and constructs a Comment, assigning a fresh ULID
// and the current UTC time if timestamp is empty.
func NewComment(author string, authorType AuthorType, body, timestamp string) (Comment, error) {
	if len(author) < 1 || len(author) > 200 {
		return Comment{}, crerr.InvalidInputf("comment author must be 1-200 chars, got %d", len(author))
	}
	if authorType != AuthorHuman && authorType != AuthorAgent {
		return Comment{}, crerr.InvalidInputf("comment author_type %q is not human or agent", authorType)
	}
	if len(body) < 1 || len(body) > 10000 {
		return Comment{}, crerr.InvalidInputf("comment body must be 1-10000 chars, got %d", len(body))
	}
	if timestamp == "" {
		timestamp = NowUTC()
	}
	if err := validateUTCTimestamp("comment timestamp", timestamp); err != nil {
		return Comment{}, err
	}
	return Comment{
		ID:         NewULID(),
		Author:     author,
		AuthorType: authorType,
		Body:       body,
		Timestamp:  timestamp,
	}, nil
}

// Anchor is the location fingerprint of a comment thread. ContentHash,
// ContextHashBefore, ContextHashAfter, and ContentSnippet are write-once:
// after construction, reconciliation only ever updates LineStart, LineEnd,
// Health, and DriftDistance.
type Anchor struct {
	ContentHash       string       `json:"content_hash"`
	ContextHashBefore string       `json:"context_hash_before"`
	ContextHashAfter  string       `json:"context_hash_after"`
	LineStart         int          `json:"line_start"`
	LineEnd           int          `json:"line_end"`
	ContentSnippet    string       `json:"content_snippet"`
	Health            AnchorHealth `json:"health"`
	DriftDistance     int          `json:"drift_distance"`
}

// NewAnchor validates and constructs an Anchor at health=anchored,
// drift_distance=0. contentSnippet is truncated to 500 chars with an
// ellipsis marker if longer, per the write-once snippet invariant.
func NewAnchor(contentHash, contextHashBefore, contextHashAfter string, lineStart, lineEnd int, contentSnippet string) (Anchor, error) {
	if err := validateHash("content_hash", contentHash); err != nil {
		return Anchor{}, err
	}
	if contextHashBefore != "" {
		if err := validateHash("context_hash_before", contextHashBefore); err != nil {
			return Anchor{}, err
		}
	}
	if contextHashAfter != "" {
		if err := validateHash("context_hash_after", contextHashAfter); err != nil {
			return Anchor{}, err
		}
	}
	if lineStart < 1 {
		return Anchor{}, crerr.InvalidInputf("anchor line_start must be >= 1, got %d", lineStart)
	}
	if lineEnd < lineStart {
		return Anchor{}, crerr.InvalidInputf("anchor line_end (%d) must be >= line_start (%d)", lineEnd, lineStart)
	}
	if len(contentSnippet) < 1 {
		return Anchor{}, crerr.InvalidInputf("anchor content_snippet must not be empty")
	}

	return Anchor{
		ContentHash:       contentHash,
		ContextHashBefore: contextHashBefore,
		ContextHashAfter:  contextHashAfter,
		LineStart:         lineStart,
		LineEnd:           lineEnd,
		ContentSnippet:    normhash.Snippet(contentSnippet, 500),
		Health:            HealthAnchored,
		DriftDistance:     0,
	}, nil
}

// Thread is an ordered discussion anchored to a single location in a
// source file. ResolvedAt and Decision are present-and-null in an open
// thread's JSON, matching the sidecar schema's stable key set rather than
// being omitted.
type Thread struct {
	ID         string       `json:"id"`
	Status     ThreadStatus `json:"status"`
	CreatedAt  string       `json:"created_at"`
	ResolvedAt *string      `json:"resolved_at"`
	Comments   []Comment    `json:"comments"`
	Anchor     Anchor       `json:"anchor"`
	Decision   *Decision    `json:"decision"`
}

// NewThread constructs an open Thread around anchor, with an empty comment
// list and no decision.
func NewThread(anchor Anchor) (Thread, error) {
	return Thread{
		ID:        NewULID(),
		Status:    StatusOpen,
		CreatedAt: NowUTC(),
		Comments:  []Comment{},
		Anchor:    anchor,
	}, nil
}

// AddComment appends a new Comment to the thread and returns it. Threads
// accept comments regardless of status, matching append-only semantics.
func (t *Thread) AddComment(author string, authorType AuthorType, body string) (Comment, error) {
	c, err := NewComment(author, authorType, body, "")
	if err != nil {
		return Comment{}, err
	}
	t.Comments = append(t.Comments, c)
	return c, nil
}

// Resolve closes the thread with status=resolved, recording a new
// Decision. Fails if the thread is already resolved.
func (t *Thread) Resolve(decider, summary string) error {
	return t.close(StatusResolved, decider, summary)
}

// Wontfix closes the thread with status=wontfix, recording a new Decision.
// Fails if the thread is already resolved.
func (t *Thread) Wontfix(decider, summary string) error {
	return t.close(StatusWontfix, decider, summary)
}

func (t *Thread) close(status ThreadStatus, decider, summary string) error {
	if t.Status == StatusResolved {
		return crerr.InvalidInputf("thread %s is already resolved", t.ID)
	}
	now := NowUTC()
	decision, err := NewDecision(summary, decider, now)
	if err != nil {
		return err
	}
	t.Status = status
	t.ResolvedAt = &now
	t.Decision = &decision
	return nil
}

// Reopen returns a closed thread to status=open. Decision and ResolvedAt
// are preserved for historical record. Fails if the thread is already open.
func (t *Thread) Reopen() error {
	if t.Status == StatusOpen {
		return crerr.InvalidInputf("thread %s is already open", t.ID)
	}
	t.Status = StatusOpen
	return nil
}

// SidecarFile is the persisted unit for one source file's threads.
type SidecarFile struct {
	SourceFile    string   `json:"source_file"`
	SourceHash    string   `json:"source_hash"`
	SchemaVersion string   `json:"schema_version"`
	Threads       []Thread `json:"threads"`
}

// NewSidecarFile constructs an empty SidecarFile for sourceFile at
// sourceHash, with schema_version "1.0".
func NewSidecarFile(sourceFile, sourceHash string) (SidecarFile, error) {
	if sourceFile == "" {
		return SidecarFile{}, crerr.InvalidInputf("sidecar source_file must not be empty")
	}
	if err := validateHash("source_hash", sourceHash); err != nil {
		return SidecarFile{}, err
	}
	return SidecarFile{
		SourceFile:    sourceFile,
		SourceHash:    sourceHash,
		SchemaVersion: "1.0",
		Threads:       []Thread{},
	}, nil
}

// Validate checks a SidecarFile (typically one just deserialized from
// disk) against the schema's required-field and format invariants, so a
// structurally-present-but-invalid document is rejected the same way a
// missing field would be.
func (sc SidecarFile) Validate() error {
	if sc.SourceFile == "" {
		return crerr.InvalidInputf("sidecar source_file is required")
	}
	if err := validateHash("source_hash", sc.SourceHash); err != nil {
		return err
	}
	if sc.SchemaVersion == "" {
		return crerr.InvalidInputf("sidecar schema_version is required")
	}
	for i, t := range sc.Threads {
		if err := t.Validate(); err != nil {
			return crerr.InvalidInputf("thread %d: %v", i, err)
		}
	}
	return nil
}

// Validate checks a Thread's required fields and the invariants its
// constructor would otherwise have enforced.
func (t Thread) Validate() error {
	if err := validateULID("thread id", t.ID); err != nil {
		return err
	}
	if t.Status != StatusOpen && t.Status != StatusResolved && t.Status != StatusWontfix {
		return crerr.InvalidInputf("thread status %q is not open, resolved, or wontfix", t.Status)
	}
	if err := validateUTCTimestamp("thread created_at", t.CreatedAt); err != nil {
		return err
	}
	if t.ResolvedAt != nil {
		if err := validateUTCTimestamp("thread resolved_at", *t.ResolvedAt); err != nil {
			return err
		}
	}
	for i, c := range t.Comments {
		if err := c.Validate(); err != nil {
			return crerr.InvalidInputf("comment %d: %v", i, err)
		}
	}
	return t.Anchor.Validate()
}

// Validate checks a Comment's required fields.
func (c Comment) Validate() error {
	if err := validateULID("comment id", c.ID); err != nil {
		return err
	}
	if len(c.Author) < 1 || len(c.Author) > 200 {
		return crerr.InvalidInputf("comment author must be 1-200 chars, got %d", len(c.Author))
	}
	if c.AuthorType != AuthorHuman && c.AuthorType != AuthorAgent {
		return crerr.InvalidInputf("comment author_type %q is not human or agent", c.AuthorType)
	}
	if len(c.Body) < 1 || len(c.Body) > 10000 {
		return crerr.InvalidInputf("comment body must be 1-10000 chars, got %d", len(c.Body))
	}
	return validateUTCTimestamp("comment timestamp", c.Timestamp)
}

// Validate checks an Anchor's required fields and line-range invariant.
func (a Anchor) Validate() error {
	if err := validateHash("content_hash", a.ContentHash); err != nil {
		return err
	}
	if a.LineStart < 1 {
		return crerr.InvalidInputf("anchor line_start must be >= 1, got %d", a.LineStart)
	}
	if a.LineEnd < a.LineStart {
		return crerr.InvalidInputf("anchor line_end (%d) must be >= line_start (%d)", a.LineEnd, a.LineStart)
	}
	if len(a.ContentSnippet) < 1 {
		return crerr.InvalidInputf("anchor content_snippet must not be empty")
	}
	return nil
}

// ReconciliationReport summarizes the outcome of a bulk reconciliation.
type ReconciliationReport struct {
	TotalThreads     int    `json:"total_threads"`
	AnchoredCount    int    `json:"anchored_count"`
	DriftedCount     int    `json:"drifted_count"`
	OrphanedCount    int    `json:"orphaned_count"`
	MaxDriftDistance int    `json:"max_drift_distance"`
	SourceHashBefore string `json:"source_hash_before"`
	SourceHashAfter  string `json:"source_hash_after"`
}

// ReportFromThreads derives a ReconciliationReport's health counts and max
// drift distance from a slice of threads already reconciled.
func ReportFromThreads(threads []Thread, hashBefore, hashAfter string) ReconciliationReport {
	r := ReconciliationReport{
		TotalThreads:     len(threads),
		SourceHashBefore: hashBefore,
		SourceHashAfter:  hashAfter,
	}
	for _, t := range threads {
		switch t.Anchor.Health {
		case HealthAnchored:
			r.AnchoredCount++
		case HealthDrifted:
			r.DriftedCount++
		case HealthOrphaned:
			r.OrphanedCount++
		}
		if t.Anchor.DriftDistance > r.MaxDriftDistance {
			r.MaxDriftDistance = t.Anchor.DriftDistance
		}
	}
	return r
}
