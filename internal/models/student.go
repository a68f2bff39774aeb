package models

import "time"

// Student is the persisted shape of a Canvas student. The primary key is the
// Canvas student id; UserID is Canvas' internal user id and usually matches.
type Student struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Name         string     `db:"name" json:"name"`
	LoginID      string     `db:"login_id" json:"login_id"`
	Email        string     `db:"email" json:"email"`
	CurrentScore float64    `db:"current_score" json:"current_score"`
	FinalScore   float64    `db:"final_score" json:"final_score"`
	CurrentGrade *string    `db:"current_grade" json:"current_grade,omitempty"`
	LastActivity *time.Time `db:"last_activity" json:"last_activity,omitempty"`
	LastSynced   time.Time  `db:"last_synced" json:"last_synced"`
}

// StudentRecord is the normalized output of the student transformer. Name,
// LoginID and Email are always resolved to non-null defaults; scores are
// floats rounded to two decimals.
type StudentRecord struct {
	ID           int64
	UserID       int64
	Name         string
	LoginID      string
	Email        string
	CurrentScore *float64
	FinalScore   *float64
	CurrentGrade *string
	LastActivity *time.Time
	UpdatedAt    *time.Time
	LastSynced   time.Time
}

// SourceUpdatedAt exposes the upstream modification timestamp used by
// incremental sync filtering.
func (r StudentRecord) SourceUpdatedAt() *time.Time { return r.UpdatedAt }

// LegacyStudentRecord mirrors the record shape the pre-registry consumers
// expect: integer 0-100 scores instead of two-decimal floats. Kept as a
// documented divergence until those consumers migrate.
type LegacyStudentRecord struct {
	ID           int64
	UserID       int64
	Name         string
	LoginID      string
	Email        string
	CurrentScore int
	FinalScore   int
	LastSynced   time.Time
}

// Kind implements SyncRecord.
func (r StudentRecord) Kind() EntityKind { return KindStudent }
