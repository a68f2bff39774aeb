package models

import "time"

// History rows are append-only: written once per sync run, never mutated.

// GradeHistory captures a student's scores as observed during one sync.
type GradeHistory struct {
	ID           string    `db:"id" json:"id"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	CourseID     int64     `db:"course_id" json:"course_id"`
	CurrentScore float64   `db:"current_score" json:"current_score"`
	FinalScore   float64   `db:"final_score" json:"final_score"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
}

// AssignmentScoreHistory captures assignment point values over time.
type AssignmentScoreHistory struct {
	ID             string    `db:"id" json:"id"`
	AssignmentID   int64     `db:"assignment_id" json:"assignment_id"`
	CourseID       int64     `db:"course_id" json:"course_id"`
	PointsPossible float64   `db:"points_possible" json:"points_possible"`
	Published      bool      `db:"published" json:"published"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}

// CourseSnapshot captures coarse course state once per sync run.
type CourseSnapshot struct {
	ID              string    `db:"id" json:"id"`
	CourseID        int64     `db:"course_id" json:"course_id"`
	Name            string    `db:"name" json:"name"`
	CourseCode      string    `db:"course_code" json:"course_code"`
	StudentCount    int       `db:"student_count" json:"student_count"`
	AssignmentCount int       `db:"assignment_count" json:"assignment_count"`
	RecordedAt      time.Time `db:"recorded_at" json:"recorded_at"`
}
