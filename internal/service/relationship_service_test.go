package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/models"
	"github.com/noah-isme/canvas-sync-api/internal/repository"
)

func newRelationshipMock(t *testing.T) (*RelationshipService, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	db := sqlx.NewDb(rawDB, "sqlmock")
	svc := NewRelationshipService(
		repository.NewRelationshipRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewAssignmentRepository(db),
		nil,
		NewMetricsService(),
		time.Minute,
		zap.NewNop(),
	)
	return svc, mock
}

func expectIntegrityChecks(mock sqlmock.Sqlmock, orphanedAssignments *sqlmock.Rows) {
	mock.ExpectQuery(`FROM assignments a LEFT JOIN courses`).WillReturnRows(orphanedAssignments)
	mock.ExpectQuery(`FROM enrollments e`).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "course_id", "missing_student", "missing_course"}))
	mock.ExpectQuery(`FROM grade_history g`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id"}))
	dupColumns := []string{"key", "count"}
	mock.ExpectQuery(`FROM courses GROUP BY id HAVING`).WillReturnRows(sqlmock.NewRows(dupColumns))
	mock.ExpectQuery(`FROM students GROUP BY id HAVING`).WillReturnRows(sqlmock.NewRows(dupColumns))
	mock.ExpectQuery(`FROM assignments GROUP BY id HAVING`).WillReturnRows(sqlmock.NewRows(dupColumns))
	mock.ExpectQuery(`FROM enrollments GROUP BY student_id, course_id HAVING`).WillReturnRows(sqlmock.NewRows(dupColumns))
}

func TestValidateIntegrityClean(t *testing.T) {
	svc, mock := newRelationshipMock(t)
	expectIntegrityChecks(mock, sqlmock.NewRows([]string{"id", "course_id"}))

	violations, err := svc.ValidateIntegrity(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepairIntegrityDetectOnly(t *testing.T) {
	svc, mock := newRelationshipMock(t)
	expectIntegrityChecks(mock, sqlmock.NewRows([]string{"id", "course_id"}).AddRow(9001, 999))

	report, err := svc.RepairIntegrity(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, report.Violations, 1)
	assert.Equal(t, models.ViolationOrphanedAssignment, report.Violations[0].Kind)
	assert.Contains(t, report.Violations[0].Description, "missing course 999")
	assert.False(t, report.Repaired)
	assert.Zero(t, report.DeletedAssignments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepairIntegrityDeletesOrphans(t *testing.T) {
	svc, mock := newRelationshipMock(t)
	expectIntegrityChecks(mock, sqlmock.NewRows([]string{"id", "course_id"}).AddRow(9001, 999))
	mock.ExpectExec(`DELETE FROM assignments a WHERE NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM enrollments e WHERE NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 2))

	report, err := svc.RepairIntegrity(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, report.Repaired)
	assert.Equal(t, int64(1), report.DeletedAssignments)
	assert.Equal(t, int64(2), report.DeletedEnrollments)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepairIntegrityNoViolationsSkipsDelete(t *testing.T) {
	svc, mock := newRelationshipMock(t)
	expectIntegrityChecks(mock, sqlmock.NewRows([]string{"id", "course_id"}))

	report, err := svc.RepairIntegrity(context.Background(), true)
	require.NoError(t, err)

	assert.Empty(t, report.Violations)
	assert.False(t, report.Repaired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentPerformanceRollup(t *testing.T) {
	svc, mock := newRelationshipMock(t)
	mock.ExpectQuery(`FROM enrollments e\s+JOIN students s`).
		WithArgs(int64(501)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "course_id", "course_name", "current_score", "final_score", "assignment_count"}).
			AddRow(501, "Ada", 101, "Intro to Go", 85.56, 91.0, 3))

	rows, err := svc.StudentPerformance(context.Background(), 501)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Intro to Go", rows[0].CourseName)
	assert.Equal(t, 3, rows[0].AssignmentCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
