package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func assignmentColumns() []string {
	return []string{"id", "course_id", "module_id", "name", "assignment_type", "points_possible", "published", "url", "position", "due_at", "last_synced"}
}

func ptrFloat(v float64) *float64 { return &v }
func ptrBool(v bool) *bool        { return &v }
func ptrString(v string) *string  { return &v }
func ptrInt(v int) *int           { return &v }

func TestSyncAssignmentCreates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rec := models.AssignmentRecord{
		ID:             9001,
		CourseID:       101,
		ModuleID:       7,
		Name:           "HW1: Variables",
		AssignmentType: string(models.AssignmentTypeAssignment),
		PointsPossible: ptrFloat(100),
		Published:      ptrBool(true),
		URL:            ptrString("https://canvas.example.com/assignments/9001"),
		Position:       ptrInt(1),
		LastSynced:     time.Now().UTC(),
	}

	mock.ExpectQuery(`FROM assignments WHERE id = \$1`).
		WithArgs(rec.ID).
		WillReturnRows(sqlmock.NewRows(assignmentColumns()))
	mock.ExpectExec(`INSERT INTO assignments`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment, outcome, err := repo.SyncAssignment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeCreated, outcome)
	assert.Equal(t, "HW1: Variables", assignment.Name)
	assert.Equal(t, 100.0, assignment.PointsPossible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncAssignmentUpdatesOnChange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	synced := time.Now().UTC()
	rec := models.AssignmentRecord{
		ID:             9001,
		CourseID:       101,
		ModuleID:       7,
		Name:           "HW1: Variables (revised)",
		AssignmentType: string(models.AssignmentTypeAssignment),
		PointsPossible: ptrFloat(120),
		LastSynced:     synced,
	}

	mock.ExpectQuery(`FROM assignments WHERE id = \$1`).
		WithArgs(rec.ID).
		WillReturnRows(sqlmock.NewRows(assignmentColumns()).
			AddRow(int64(9001), int64(101), int64(7), "HW1: Variables", "Assignment", 100.0, true, "", 1, nil, synced.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE assignments SET course_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assignment, outcome, err := repo.SyncAssignment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeUpdated, outcome)
	assert.Equal(t, 120.0, assignment.PointsPossible)
	assert.Equal(t, "HW1: Variables (revised)", assignment.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncAssignmentStampsWhenUnchanged(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	synced := time.Now().UTC()
	rec := models.AssignmentRecord{
		ID:             9001,
		CourseID:       101,
		ModuleID:       7,
		Name:           "HW1: Variables",
		AssignmentType: string(models.AssignmentTypeAssignment),
		LastSynced:     synced,
	}

	mock.ExpectQuery(`FROM assignments WHERE id = \$1`).
		WithArgs(rec.ID).
		WillReturnRows(sqlmock.NewRows(assignmentColumns()).
			AddRow(int64(9001), int64(101), int64(7), "HW1: Variables", "Assignment", 100.0, true, "", 1, nil, synced.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE assignments SET last_synced = \$2 WHERE id = \$1`).
		WithArgs(rec.ID, synced).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, outcome, err := repo.SyncAssignment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeSkipped, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncAssignmentNilPointsNeverOverwrites(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	synced := time.Now().UTC()
	rec := models.AssignmentRecord{
		ID:             9001,
		CourseID:       101,
		ModuleID:       7,
		Name:           "HW1: Variables",
		AssignmentType: string(models.AssignmentTypeAssignment),
		// PointsPossible filtered out upstream; the stored value must survive.
		LastSynced: synced,
	}

	mock.ExpectQuery(`FROM assignments WHERE id = \$1`).
		WithArgs(rec.ID).
		WillReturnRows(sqlmock.NewRows(assignmentColumns()).
			AddRow(int64(9001), int64(101), int64(7), "HW1: Variables", "Assignment", 100.0, true, "", 1, nil, synced.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE assignments SET last_synced`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assignment, outcome, err := repo.SyncAssignment(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeSkipped, outcome)
	assert.Equal(t, 100.0, assignment.PointsPossible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchSyncAssignments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	synced := time.Now().UTC()
	recs := []models.AssignmentRecord{
		{ID: 1, CourseID: 101, ModuleID: 7, Name: "HW1", AssignmentType: "Assignment", LastSynced: synced},
		{ID: 2, CourseID: 101, ModuleID: 7, Name: "Quiz 1", AssignmentType: "Quiz", PointsPossible: ptrFloat(50), LastSynced: synced},
	}

	mock.ExpectQuery(`FROM assignments WHERE id IN`).
		WillReturnRows(sqlmock.NewRows(assignmentColumns()).
			AddRow(int64(2), int64(101), int64(7), "Quiz 1", "Quiz", 40.0, true, "", 2, nil, synced.Add(-time.Hour)))
	mock.ExpectExec(`INSERT INTO assignments`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE assignments SET course_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	counts, err := repo.BatchSyncAssignments(context.Background(), recs, true)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Created)
	assert.Equal(t, 1, counts.Updated)
	assert.Equal(t, 0, counts.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentChanged(t *testing.T) {
	assignment := models.Assignment{ID: 1, Name: "HW1", AssignmentType: "Assignment", PointsPossible: 100}

	assert.False(t, AssignmentChanged(assignment, models.AssignmentRecord{ID: 1, Name: "HW1", AssignmentType: "Assignment"}))
	assert.True(t, AssignmentChanged(assignment, models.AssignmentRecord{ID: 1, Name: "HW1", AssignmentType: "Assignment", PointsPossible: ptrFloat(120)}))
	assert.Equal(t, "HW1", assignment.Name)
	assert.Equal(t, 100.0, assignment.PointsPossible)
}
