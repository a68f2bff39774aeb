package models

import "time"

// Course is the persisted shape of a Canvas course. The primary key is the
// Canvas-assigned course id, not an internal surrogate.
type Course struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	CourseCode  string     `db:"course_code" json:"course_code"`
	CalendarICS string     `db:"calendar_ics" json:"calendar_ics"`
	StartAt     *time.Time `db:"start_at" json:"start_at,omitempty"`
	EndAt       *time.Time `db:"end_at" json:"end_at,omitempty"`
	CreatedAt   *time.Time `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
	LastSynced  time.Time  `db:"last_synced" json:"last_synced"`
}

// CourseRecord is the normalized output of the course transformer. Optional
// business fields are pointers; nil means the field was absent from the raw
// payload or filtered out by configuration, and must not overwrite persisted
// state on update.
type CourseRecord struct {
	ID          int64
	Name        string
	CourseCode  *string
	CalendarICS string
	StartAt     *time.Time
	EndAt       *time.Time
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
	LastSynced  time.Time
}

// SourceUpdatedAt exposes the upstream modification timestamp used by
// incremental sync filtering.
func (r CourseRecord) SourceUpdatedAt() *time.Time { return r.UpdatedAt }

// Kind implements SyncRecord.
func (r CourseRecord) Kind() EntityKind { return KindCourse }
