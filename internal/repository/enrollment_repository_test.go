package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func enrollmentColumns() []string {
	return []string{"student_id", "course_id", "status", "enrolled_at", "last_synced"}
}

func TestEnrollmentRepositorySyncCreates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT student_id, course_id, status, .+ FROM enrollments WHERE student_id = \\$1 AND course_id = \\$2").
		WithArgs(int64(101), int64(12345)).
		WillReturnRows(sqlmock.NewRows(enrollmentColumns()))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := models.EnrollmentRecord{StudentID: 101, CourseID: 12345, Status: models.EnrollmentStatusActive, LastSynced: time.Now().UTC()}
	enrollment, outcome, err := repo.SyncEnrollment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeCreated, outcome)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySyncUpdatesOnStatusChange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	synced := time.Now().UTC()
	mock.ExpectQuery("SELECT student_id, course_id, status, .+ FROM enrollments WHERE student_id = \\$1 AND course_id = \\$2").
		WithArgs(int64(101), int64(12345)).
		WillReturnRows(sqlmock.NewRows(enrollmentColumns()).
			AddRow(int64(101), int64(12345), string(models.EnrollmentStatusActive), nil, synced.Add(-time.Hour)))
	mock.ExpectExec("UPDATE enrollments SET status = \\$3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := models.EnrollmentRecord{StudentID: 101, CourseID: 12345, Status: models.EnrollmentStatusCompleted, LastSynced: synced}
	enrollment, outcome, err := repo.SyncEnrollment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeUpdated, outcome)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySyncStampsWhenUnchanged(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	synced := time.Now().UTC()
	mock.ExpectQuery("SELECT student_id, course_id, status, .+ FROM enrollments WHERE student_id = \\$1 AND course_id = \\$2").
		WithArgs(int64(101), int64(12345)).
		WillReturnRows(sqlmock.NewRows(enrollmentColumns()).
			AddRow(int64(101), int64(12345), string(models.EnrollmentStatusActive), nil, synced.Add(-time.Hour)))
	mock.ExpectExec("UPDATE enrollments SET last_synced = \\$3 WHERE student_id = \\$1 AND course_id = \\$2").
		WithArgs(int64(101), int64(12345), synced).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := models.EnrollmentRecord{StudentID: 101, CourseID: 12345, Status: models.EnrollmentStatusActive, LastSynced: synced}
	_, outcome, err := repo.SyncEnrollment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeSkipped, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryBatchSync(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	synced := time.Now().UTC()
	mock.ExpectQuery("SELECT student_id, course_id, status, .+ FROM enrollments WHERE course_id = \\$1 AND student_id IN").
		WillReturnRows(sqlmock.NewRows(enrollmentColumns()).
			AddRow(int64(102), int64(12345), string(models.EnrollmentStatusActive), nil, synced.Add(-time.Hour)))
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE enrollments SET last_synced = \\$3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	recs := []models.EnrollmentRecord{
		{StudentID: 101, CourseID: 12345, Status: models.EnrollmentStatusActive, LastSynced: synced},
		{StudentID: 102, CourseID: 12345, Status: models.EnrollmentStatusActive, LastSynced: synced},
	}
	counts, err := repo.BatchSyncEnrollments(context.Background(), recs, true)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Processed)
	assert.Equal(t, 1, counts.Created)
	assert.Equal(t, 1, counts.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentChanged(t *testing.T) {
	enrollment := models.Enrollment{StudentID: 1, CourseID: 2, Status: models.EnrollmentStatusActive}

	assert.False(t, EnrollmentChanged(enrollment, models.EnrollmentRecord{Status: models.EnrollmentStatusActive}))
	assert.True(t, EnrollmentChanged(enrollment, models.EnrollmentRecord{Status: models.EnrollmentStatusInactive}))
}
