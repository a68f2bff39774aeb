package models

import "time"

// EnrollmentStatus is the fixed vocabulary for enrollment lifecycle states.
type EnrollmentStatus string

// Recognized enrollment statuses. Unrecognized or absent raw states
// normalize to active.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusInvited   EnrollmentStatus = "invited"
	EnrollmentStatusInactive  EnrollmentStatus = "inactive"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDeleted   EnrollmentStatus = "deleted"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
)

// Enrollment links a student to a course. The natural key is the
// (student_id, course_id) pair; there is no surrogate id.
type Enrollment struct {
	StudentID  int64            `db:"student_id" json:"student_id"`
	CourseID   int64            `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt *time.Time       `db:"enrolled_at" json:"enrolled_at,omitempty"`
	LastSynced time.Time        `db:"last_synced" json:"last_synced"`
}

// EnrollmentRecord is the normalized output of the enrollment transformer.
type EnrollmentRecord struct {
	StudentID  int64
	CourseID   int64
	Status     EnrollmentStatus
	EnrolledAt *time.Time
	UpdatedAt  *time.Time
	LastSynced time.Time
}

// SourceUpdatedAt exposes the upstream modification timestamp used by
// incremental sync filtering.
func (r EnrollmentRecord) SourceUpdatedAt() *time.Time { return r.UpdatedAt }

// EnrollmentDetail enriches Enrollment with joined student and course info
// for read-side relationship queries.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// Kind implements SyncRecord.
func (r EnrollmentRecord) Kind() EntityKind { return KindEnrollment }
