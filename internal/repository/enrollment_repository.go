package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// EnrollmentRepository is the data manager for enrollments. The natural
// key is the composite (student_id, course_id) pair.
type EnrollmentRepository struct {
	db Queryer
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db Queryer) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// WithTx rebinds the repository onto a transaction.
func (r *EnrollmentRepository) WithTx(tx *sqlx.Tx) *EnrollmentRepository {
	return &EnrollmentRepository{db: tx}
}

// FindByStudentAndCourse returns an enrollment by its composite key.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	const query = `SELECT student_id, course_id, status, enrolled_at, last_synced FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByStudent returns a student's enrollments with course context.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.student_id, e.course_id, e.status, e.enrolled_at, e.last_synced,
        s.name AS student_name, c.name AS course_name
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return details, nil
}

// ListByCourse returns a course's enrollments with student context.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.student_id, e.course_id, e.status, e.enrolled_at, e.last_synced,
        s.name AS student_name, c.name AS course_name
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE e.course_id = $1`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return details, nil
}

// SyncEnrollment applies one normalized enrollment record. Status is the
// only business field compared for change detection.
func (r *EnrollmentRepository) SyncEnrollment(ctx context.Context, rec models.EnrollmentRecord, updateExisting bool) (*models.Enrollment, models.SyncOutcome, error) {
	existing, err := r.FindByStudentAndCourse(ctx, rec.StudentID, rec.CourseID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("lookup enrollment %d/%d: %w", rec.StudentID, rec.CourseID, err)
		}
		enrollment := newEnrollment(rec)
		if err := r.insert(ctx, enrollment); err != nil {
			return nil, "", err
		}
		return enrollment, models.SyncOutcomeCreated, nil
	}
	return r.applyExisting(ctx, existing, rec, updateExisting)
}

// BatchSyncEnrollments applies a batch against one bulk composite-key
// lookup scoped to the course being synced.
func (r *EnrollmentRepository) BatchSyncEnrollments(ctx context.Context, recs []models.EnrollmentRecord, updateExisting bool) (models.EntityCounts, error) {
	counts := models.EntityCounts{Processed: len(recs)}
	if len(recs) == 0 {
		return counts, nil
	}

	existing, err := r.findByKeys(ctx, recs)
	if err != nil {
		return counts, err
	}

	for _, rec := range recs {
		row, found := existing[enrollmentKey(rec.StudentID, rec.CourseID)]
		if !found {
			enrollment := newEnrollment(rec)
			if err := r.insert(ctx, enrollment); err != nil {
				return counts, err
			}
			counts.Created++
			continue
		}
		_, outcome, err := r.applyExisting(ctx, &row, rec, updateExisting)
		if err != nil {
			return counts, err
		}
		if outcome == models.SyncOutcomeUpdated {
			counts.Updated++
		} else {
			counts.Skipped++
		}
	}
	return counts, nil
}

func (r *EnrollmentRepository) applyExisting(ctx context.Context, existing *models.Enrollment, rec models.EnrollmentRecord, updateExisting bool) (*models.Enrollment, models.SyncOutcome, error) {
	changed := existing.Status != rec.Status
	if changed {
		existing.Status = rec.Status
		if rec.EnrolledAt != nil {
			existing.EnrolledAt = rec.EnrolledAt
		}
	}
	existing.LastSynced = rec.LastSynced

	if changed && updateExisting {
		const query = `UPDATE enrollments SET status = $3, enrolled_at = $4, last_synced = $5 WHERE student_id = $1 AND course_id = $2`
		if _, err := r.db.ExecContext(ctx, query, existing.StudentID, existing.CourseID, existing.Status, existing.EnrolledAt, existing.LastSynced); err != nil {
			return nil, "", fmt.Errorf("update enrollment %d/%d: %w", existing.StudentID, existing.CourseID, err)
		}
		return existing, models.SyncOutcomeUpdated, nil
	}

	const stamp = `UPDATE enrollments SET last_synced = $3 WHERE student_id = $1 AND course_id = $2`
	if _, err := r.db.ExecContext(ctx, stamp, existing.StudentID, existing.CourseID, existing.LastSynced); err != nil {
		return nil, "", fmt.Errorf("stamp enrollment %d/%d: %w", existing.StudentID, existing.CourseID, err)
	}
	return existing, models.SyncOutcomeSkipped, nil
}

func (r *EnrollmentRepository) insert(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (student_id, course_id, status, enrolled_at, last_synced)
        VALUES (:student_id, :course_id, :status, :enrolled_at, :last_synced)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment %d/%d: %w", enrollment.StudentID, enrollment.CourseID, err)
	}
	return nil
}

// findByKeys bulk-loads existing enrollments for the batch. Batches arrive
// scoped to one course, so the lookup narrows on course_id and the student
// id set.
func (r *EnrollmentRepository) findByKeys(ctx context.Context, recs []models.EnrollmentRecord) (map[string]models.Enrollment, error) {
	courseIDs := make(map[int64]struct{})
	studentIDs := make([]int64, 0, len(recs))
	for _, rec := range recs {
		courseIDs[rec.CourseID] = struct{}{}
		studentIDs = append(studentIDs, rec.StudentID)
	}

	out := make(map[string]models.Enrollment, len(recs))
	for courseID := range courseIDs {
		const chunkSize = 200
		for start := 0; start < len(studentIDs); start += chunkSize {
			end := start + chunkSize
			if end > len(studentIDs) {
				end = len(studentIDs)
			}
			chunk := studentIDs[start:end]
			placeholders := make([]string, len(chunk))
			args := make([]interface{}, 0, len(chunk)+1)
			args = append(args, courseID)
			for i, id := range chunk {
				placeholders[i] = fmt.Sprintf("$%d", i+2)
				args = append(args, id)
			}
			query := fmt.Sprintf(`SELECT student_id, course_id, status, enrolled_at, last_synced FROM enrollments WHERE course_id = $1 AND student_id IN (%s)`, strings.Join(placeholders, ","))
			var rows []models.Enrollment
			if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
				return nil, fmt.Errorf("bulk lookup enrollments: %w", err)
			}
			for _, row := range rows {
				out[enrollmentKey(row.StudentID, row.CourseID)] = row
			}
		}
	}
	return out, nil
}

func enrollmentKey(studentID, courseID int64) string {
	return fmt.Sprintf("%d:%d", studentID, courseID)
}

func newEnrollment(rec models.EnrollmentRecord) *models.Enrollment {
	return &models.Enrollment{
		StudentID:  rec.StudentID,
		CourseID:   rec.CourseID,
		Status:     rec.Status,
		EnrolledAt: rec.EnrolledAt,
		LastSynced: rec.LastSynced,
	}
}

// EnrollmentChanged reports whether the record's status differs from the
// persisted row.
func EnrollmentChanged(enrollment models.Enrollment, rec models.EnrollmentRecord) bool {
	return enrollment.Status != rec.Status
}
