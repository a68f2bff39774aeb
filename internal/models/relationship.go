package models

// IntegrityViolationKind classifies a referential integrity problem.
type IntegrityViolationKind string

// Violation kinds surfaced by integrity validation.
const (
	ViolationOrphanedAssignment IntegrityViolationKind = "orphaned_assignment"
	ViolationOrphanedEnrollment IntegrityViolationKind = "orphaned_enrollment"
	ViolationOrphanedGrade      IntegrityViolationKind = "orphaned_grade"
	ViolationDuplicateKey       IntegrityViolationKind = "duplicate_key"
)

// IntegrityViolation describes one referential integrity failure in
// human-readable form. Detection never mutates state.
type IntegrityViolation struct {
	Kind        IntegrityViolationKind `json:"kind"`
	Entity      EntityKind             `json:"entity"`
	EntityKey   string                 `json:"entity_key"`
	Description string                 `json:"description"`
}

// StudentPerformance is a read-side rollup joined across enrollments,
// grades and assignments. Not used on the sync write path.
type StudentPerformance struct {
	StudentID       int64   `db:"student_id" json:"student_id"`
	StudentName     string  `db:"student_name" json:"student_name"`
	CourseID        int64   `db:"course_id" json:"course_id"`
	CourseName      string  `db:"course_name" json:"course_name"`
	CurrentScore    float64 `db:"current_score" json:"current_score"`
	FinalScore      float64 `db:"final_score" json:"final_score"`
	AssignmentCount int     `db:"assignment_count" json:"assignment_count"`
}

// Pagination carries standard paging metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
