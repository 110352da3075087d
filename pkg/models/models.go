package models

import (
	"fmt"
	"strings"
	"time"

	igerrors "igarchive/pkg/errors"
)

// Category is the kind of content page a snapshot was taken from
type Category string

const (
	CategoryPost Category = "post"
	CategoryReel Category = "reel"
)

// Categories lists every category in processing order
var Categories = []Category{CategoryPost, CategoryReel}

// ParseCategory validates a category name
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryPost, CategoryReel:
		return c, nil
	}
	return "", fmt.Errorf("%q: %w", s, igerrors.ErrUnknownCategory)
}

// Candidate is an extracted, not yet persisted content item
type Candidate struct {
	Category    Category `json:"category"`
	MediaURL    string   `json:"media_url"`
	Description string   `json:"description"`
	IsVideo     bool     `json:"is_video"`
}

// ContentRecord is a stored content item
type ContentRecord struct {
	ID             int64     `json:"id"`
	Category       Category  `json:"category"`
	MediaURL       string    `json:"media_url"`
	Description    string    `json:"description"`
	IsVideo        bool      `json:"is_video"`
	CapturedAt     time.Time `json:"captured_at"`
	LocalMediaPath *string   `json:"local_media_path"`
	Account        string    `json:"account"`
}

// HasLocalMedia reports whether a local media path has been recorded
func (r ContentRecord) HasLocalMedia() bool {
	return r.LocalMediaPath != nil && *r.LocalMediaPath != ""
}

// UpsertOutcome classifies a single upsert call
type UpsertOutcome string

const (
	OutcomeAdded            UpsertOutcome = "added"
	OutcomeSkippedDuplicate UpsertOutcome = "skipped_duplicate"
)

// UpsertResult is returned by the record store for every candidate
type UpsertResult struct {
	Outcome    UpsertOutcome
	RecordID   int64
	Backfilled bool
}

// RunState is the orchestrator's position in a run
type RunState string

const (
	StateIdle        RunState = "idle"
	StateFetchingRaw RunState = "fetching_raw_input"
	StateExtracting  RunState = "extracting"
	StatePersisting  RunState = "persisting"
	StateReporting   RunState = "reporting"
)

// RunProgress is emitted as a run moves through its states
type RunProgress struct {
	Account string   `json:"account"`
	State   RunState `json:"state"`
	Percent int      `json:"progress"`
	Message string   `json:"message"`
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
}

// CategoryOutcome is the per-category part of a run outcome
type CategoryOutcome struct {
	Category   Category `json:"category"`
	Present    bool     `json:"present"`
	Candidates int      `json:"candidates"`
	Added      int      `json:"added"`
	Skipped    int      `json:"skipped"`
	Backfilled int      `json:"backfilled"`
	Errors     int      `json:"errors"`
	Failed     bool     `json:"failed"`
	Error      string   `json:"error,omitempty"`
}

// RunOutcome is produced by one orchestrator invocation
type RunOutcome struct {
	RunID      string            `json:"run_id"`
	Account    string            `json:"account"`
	Partition  string            `json:"partition"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Added      int               `json:"added"`
	Skipped    int               `json:"skipped"`
	Categories []CategoryOutcome `json:"categories"`
	Failures   []string          `json:"failures,omitempty"`
}

// Succeeded reports whether no category failed outright
func (o RunOutcome) Succeeded() bool {
	return len(o.Failures) == 0
}

// Message renders a one-line summary for status displays
func (o RunOutcome) Message() string {
	msg := fmt.Sprintf("Added %d new items, skipped %d duplicates", o.Added, o.Skipped)
	if len(o.Failures) > 0 {
		msg += "; failures: " + strings.Join(o.Failures, "; ")
	}
	return msg
}

// Duration is the wall time of the run
func (o RunOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// RunStatus is a point-in-time snapshot of the run executor
type RunStatus struct {
	Running    bool        `json:"running"`
	RunID      string      `json:"run_id,omitempty"`
	Account    string      `json:"account,omitempty"`
	State      RunState    `json:"state"`
	Progress   int         `json:"progress"`
	Message    string      `json:"message"`
	Added      int         `json:"added"`
	Skipped    int         `json:"skipped"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Last       *RunOutcome `json:"last,omitempty"`
}

// Stats summarises one partition
type Stats struct {
	Account    string     `json:"account"`
	Total      int        `json:"total"`
	Posts      int        `json:"posts"`
	Reels      int        `json:"reels"`
	LocalMedia int        `json:"local_media"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}
