package models

import "time"

// SyncRecord is the typed normalized record produced by a transformer.
// Raw untyped maps never cross past the transformer boundary; everything
// downstream works with one of the concrete *Record types behind this
// interface.
type SyncRecord interface {
	Kind() EntityKind
	SourceUpdatedAt() *time.Time
}

// SyncOutcome describes what the data manager did with one record.
type SyncOutcome string

// Possible per-record outcomes.
const (
	SyncOutcomeCreated SyncOutcome = "created"
	SyncOutcomeUpdated SyncOutcome = "updated"
	SyncOutcomeSkipped SyncOutcome = "skipped"
)

// ConflictStrategy selects how incremental sync resolves local/remote
// divergence.
type ConflictStrategy string

// Supported strategies. StrategyMerge is a declared but unimplemented
// path: conflicts under it are always recorded as unresolved.
const (
	StrategyCanvasWins ConflictStrategy = "canvas_wins"
	StrategyLocalWins  ConflictStrategy = "local_wins"
	StrategyMerge      ConflictStrategy = "merge"
)

// EntityCounts aggregates per-kind record accounting for one sync run.
type EntityCounts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// Add folds another counter set into this one.
func (c *EntityCounts) Add(other EntityCounts) {
	c.Processed += other.Processed
	c.Created += other.Created
	c.Updated += other.Updated
	c.Skipped += other.Skipped
}

// SyncConflict describes one detected local/remote divergence during an
// incremental sync. Conflicts are reported in the result, never raised.
type SyncConflict struct {
	Kind        EntityKind       `json:"kind"`
	EntityKey   string           `json:"entity_key"`
	Fields      []string         `json:"fields"`
	Strategy    ConflictStrategy `json:"strategy"`
	Resolved    bool             `json:"resolved"`
	Resolution  string           `json:"resolution"`
	CanvasValue string           `json:"canvas_value,omitempty"`
	LocalValue  string           `json:"local_value,omitempty"`
}

// SyncResult is the summary returned to callers after a sync attempt.
type SyncResult struct {
	Counts            map[EntityKind]EntityCounts `json:"counts"`
	Errors            []string                    `json:"errors,omitempty"`
	Conflicts         []SyncConflict              `json:"conflicts,omitempty"`
	StartedAt         time.Time                   `json:"started_at"`
	CompletedAt       time.Time                   `json:"completed_at"`
	Success           bool                        `json:"success"`
	RollbackPerformed bool                        `json:"rollback_performed"`
}

// NewSyncResult prepares an empty result with counters for every kind.
func NewSyncResult() *SyncResult {
	counts := make(map[EntityKind]EntityCounts, len(SyncOrder))
	for _, kind := range SyncOrder {
		counts[kind] = EntityCounts{}
	}
	return &SyncResult{Counts: counts, StartedAt: time.Now().UTC()}
}

// SyncRunStatus is the lifecycle of an asynchronous sync run.
type SyncRunStatus string

// Possible run states.
const (
	SyncRunPending   SyncRunStatus = "pending"
	SyncRunRunning   SyncRunStatus = "running"
	SyncRunSucceeded SyncRunStatus = "succeeded"
	SyncRunFailed    SyncRunStatus = "failed"
)

// SyncRun is the persisted record of one sync invocation, queryable by id.
type SyncRun struct {
	ID          string        `db:"id" json:"id"`
	Mode        string        `db:"mode" json:"mode"`
	Status      SyncRunStatus `db:"status" json:"status"`
	ResultJSON  []byte        `db:"result" json:"-"`
	Error       string        `db:"error" json:"error,omitempty"`
	StartedAt   time.Time     `db:"started_at" json:"started_at"`
	CompletedAt *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
}
