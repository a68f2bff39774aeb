package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// RelationshipRepository runs cross-entity integrity queries and read-side
// relationship joins. Detection queries never mutate; deletion happens only
// through the explicitly gated Delete* methods.
type RelationshipRepository struct {
	db Queryer
}

// NewRelationshipRepository constructs the repository.
func NewRelationshipRepository(db Queryer) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// WithTx rebinds the repository onto a transaction, letting post-sync
// integrity validation run inside the sync's own transaction.
func (r *RelationshipRepository) WithTx(tx *sqlx.Tx) *RelationshipRepository {
	return &RelationshipRepository{db: tx}
}

// OrphanedAssignments finds assignments whose course no longer exists.
func (r *RelationshipRepository) OrphanedAssignments(ctx context.Context) ([]models.IntegrityViolation, error) {
	const query = `SELECT a.id, a.course_id FROM assignments a LEFT JOIN courses c ON c.id = a.course_id WHERE c.id IS NULL`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find orphaned assignments: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var violations []models.IntegrityViolation
	for rows.Next() {
		var id, courseID int64
		if err := rows.Scan(&id, &courseID); err != nil {
			return nil, fmt.Errorf("scan orphaned assignment: %w", err)
		}
		violations = append(violations, models.IntegrityViolation{
			Kind:        models.ViolationOrphanedAssignment,
			Entity:      models.KindAssignment,
			EntityKey:   fmt.Sprintf("%d", id),
			Description: fmt.Sprintf("assignment %d references missing course %d", id, courseID),
		})
	}
	return violations, rows.Err()
}

// OrphanedEnrollments finds enrollments with either foreign key dangling.
func (r *RelationshipRepository) OrphanedEnrollments(ctx context.Context) ([]models.IntegrityViolation, error) {
	const query = `SELECT e.student_id, e.course_id,
        (s.id IS NULL) AS missing_student, (c.id IS NULL) AS missing_course
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN courses c ON c.id = e.course_id
        WHERE s.id IS NULL OR c.id IS NULL`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find orphaned enrollments: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var violations []models.IntegrityViolation
	for rows.Next() {
		var studentID, courseID int64
		var missingStudent, missingCourse bool
		if err := rows.Scan(&studentID, &courseID, &missingStudent, &missingCourse); err != nil {
			return nil, fmt.Errorf("scan orphaned enrollment: %w", err)
		}
		desc := fmt.Sprintf("enrollment (%d, %d)", studentID, courseID)
		if missingStudent {
			desc += fmt.Sprintf(" references missing student %d", studentID)
		}
		if missingCourse {
			desc += fmt.Sprintf(" references missing course %d", courseID)
		}
		violations = append(violations, models.IntegrityViolation{
			Kind:        models.ViolationOrphanedEnrollment,
			Entity:      models.KindEnrollment,
			EntityKey:   fmt.Sprintf("%d:%d", studentID, courseID),
			Description: desc,
		})
	}
	return violations, rows.Err()
}

// OrphanedGradeHistory finds grade history rows whose student or course is
// gone. History is append-only, so these surface as advisory violations.
func (r *RelationshipRepository) OrphanedGradeHistory(ctx context.Context) ([]models.IntegrityViolation, error) {
	const query = `SELECT g.id, g.student_id, g.course_id FROM grade_history g
        LEFT JOIN students s ON s.id = g.student_id
        LEFT JOIN courses c ON c.id = g.course_id
        WHERE s.id IS NULL OR c.id IS NULL`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find orphaned grade history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var violations []models.IntegrityViolation
	for rows.Next() {
		var id string
		var studentID, courseID int64
		if err := rows.Scan(&id, &studentID, &courseID); err != nil {
			return nil, fmt.Errorf("scan orphaned grade history: %w", err)
		}
		violations = append(violations, models.IntegrityViolation{
			Kind:        models.ViolationOrphanedGrade,
			Entity:      models.KindStudent,
			EntityKey:   id,
			Description: fmt.Sprintf("grade history %s references missing student %d or course %d", id, studentID, courseID),
		})
	}
	return violations, rows.Err()
}

// DuplicateKeys finds natural keys appearing more than once. Under the
// schema's primary keys this should be impossible; the check guards
// against tables recreated without constraints.
func (r *RelationshipRepository) DuplicateKeys(ctx context.Context) ([]models.IntegrityViolation, error) {
	checks := []struct {
		entity models.EntityKind
		query  string
	}{
		{models.KindCourse, `SELECT CAST(id AS TEXT), COUNT(*) FROM courses GROUP BY id HAVING COUNT(*) > 1`},
		{models.KindStudent, `SELECT CAST(id AS TEXT), COUNT(*) FROM students GROUP BY id HAVING COUNT(*) > 1`},
		{models.KindAssignment, `SELECT CAST(id AS TEXT), COUNT(*) FROM assignments GROUP BY id HAVING COUNT(*) > 1`},
		{models.KindEnrollment, `SELECT CAST(student_id AS TEXT) || ':' || CAST(course_id AS TEXT), COUNT(*) FROM enrollments GROUP BY student_id, course_id HAVING COUNT(*) > 1`},
	}

	var violations []models.IntegrityViolation
	for _, check := range checks {
		rows, err := r.db.QueryxContext(ctx, check.query)
		if err != nil {
			return nil, fmt.Errorf("find duplicate %s keys: %w", check.entity, err)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan duplicate key: %w", err)
			}
			violations = append(violations, models.IntegrityViolation{
				Kind:        models.ViolationDuplicateKey,
				Entity:      check.entity,
				EntityKey:   key,
				Description: fmt.Sprintf("%s natural key %s appears %d times", check.entity, key, count),
			})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return violations, nil
}

// DeleteOrphanedAssignments removes assignments with missing courses.
// Callers gate this behind an explicit repair request.
func (r *RelationshipRepository) DeleteOrphanedAssignments(ctx context.Context) (int64, error) {
	const query = `DELETE FROM assignments a WHERE NOT EXISTS (SELECT 1 FROM courses c WHERE c.id = a.course_id)`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned assignments: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOrphanedEnrollments removes enrollments with a dangling FK.
func (r *RelationshipRepository) DeleteOrphanedEnrollments(ctx context.Context) (int64, error) {
	const query = `DELETE FROM enrollments e WHERE NOT EXISTS (SELECT 1 FROM students s WHERE s.id = e.student_id)
        OR NOT EXISTS (SELECT 1 FROM courses c WHERE c.id = e.course_id)`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned enrollments: %w", err)
	}
	return res.RowsAffected()
}

// StudentPerformance returns a per-course rollup for one student, joined
// across enrollments, courses and assignments.
func (r *RelationshipRepository) StudentPerformance(ctx context.Context, studentID int64) ([]models.StudentPerformance, error) {
	const query = `SELECT s.id AS student_id, s.name AS student_name,
        c.id AS course_id, c.name AS course_name,
        s.current_score, s.final_score,
        COUNT(a.id) AS assignment_count
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        LEFT JOIN assignments a ON a.course_id = c.id
        WHERE s.id = $1
        GROUP BY s.id, s.name, c.id, c.name, s.current_score, s.final_score`
	var rollups []models.StudentPerformance
	if err := r.db.SelectContext(ctx, &rollups, query, studentID); err != nil {
		return nil, fmt.Errorf("student performance rollup: %w", err)
	}
	return rollups, nil
}
