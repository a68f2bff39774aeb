package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// HistoryRepository writes the append-only audit tables. Rows are written
// once per sync run and never mutated afterwards.
type HistoryRepository struct {
	db Queryer
}

// NewHistoryRepository constructs the repository.
func NewHistoryRepository(db Queryer) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx rebinds the repository onto a transaction.
func (r *HistoryRepository) WithTx(tx *sqlx.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

// RecordGrade appends one grade observation.
func (r *HistoryRepository) RecordGrade(ctx context.Context, h models.GradeHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	const query = `INSERT INTO grade_history (id, student_id, course_id, current_score, final_score, recorded_at)
        VALUES (:id, :student_id, :course_id, :current_score, :final_score, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, h); err != nil {
		return fmt.Errorf("record grade history: %w", err)
	}
	return nil
}

// RecordAssignmentScore appends one assignment score observation.
func (r *HistoryRepository) RecordAssignmentScore(ctx context.Context, h models.AssignmentScoreHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	const query = `INSERT INTO assignment_score_history (id, assignment_id, course_id, points_possible, published, recorded_at)
        VALUES (:id, :assignment_id, :course_id, :points_possible, :published, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, h); err != nil {
		return fmt.Errorf("record assignment score history: %w", err)
	}
	return nil
}

// RecordCourseSnapshot appends one coarse course snapshot.
func (r *HistoryRepository) RecordCourseSnapshot(ctx context.Context, s models.CourseSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const query = `INSERT INTO course_snapshots (id, course_id, name, course_code, student_count, assignment_count, recorded_at)
        VALUES (:id, :course_id, :name, :course_code, :student_count, :assignment_count, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("record course snapshot: %w", err)
	}
	return nil
}
