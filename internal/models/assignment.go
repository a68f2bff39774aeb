package models

import "time"

// AssignmentType is the fixed vocabulary for Canvas module item types.
type AssignmentType string

// Recognized assignment types. Unrecognized raw values are title-cased
// as-is rather than rejected.
const (
	AssignmentTypeAssignment   AssignmentType = "Assignment"
	AssignmentTypeQuiz         AssignmentType = "Quiz"
	AssignmentTypeDiscussion   AssignmentType = "Discussion"
	AssignmentTypeExternalTool AssignmentType = "ExternalTool"
	AssignmentTypePage         AssignmentType = "Page"
)

// Assignment is the persisted shape of a Canvas module item. CourseID and
// ModuleID come from the module/course context the item was observed under.
type Assignment struct {
	ID             int64      `db:"id" json:"id"`
	CourseID       int64      `db:"course_id" json:"course_id"`
	ModuleID       int64      `db:"module_id" json:"module_id"`
	Name           string     `db:"name" json:"name"`
	AssignmentType string     `db:"assignment_type" json:"assignment_type"`
	PointsPossible float64    `db:"points_possible" json:"points_possible"`
	Published      bool       `db:"published" json:"published"`
	URL            string     `db:"url" json:"url"`
	Position       int        `db:"position" json:"position"`
	DueAt          *time.Time `db:"due_at" json:"due_at,omitempty"`
	LastSynced     time.Time  `db:"last_synced" json:"last_synced"`
}

// AssignmentRecord is the normalized output of the assignment transformer.
type AssignmentRecord struct {
	ID             int64
	CourseID       int64
	ModuleID       int64
	Name           string
	AssignmentType string
	PointsPossible *float64
	Published      *bool
	URL            *string
	Position       *int
	DueAt          *time.Time
	UpdatedAt      *time.Time
	LastSynced     time.Time
}

// SourceUpdatedAt exposes the upstream modification timestamp used by
// incremental sync filtering.
func (r AssignmentRecord) SourceUpdatedAt() *time.Time { return r.UpdatedAt }

// Kind implements SyncRecord.
func (r AssignmentRecord) Kind() EntityKind { return KindAssignment }
