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

func studentColumns() []string {
	return []string{"id", "user_id", "name", "login_id", "email", "current_score", "final_score", "current_grade", "last_activity", "last_synced"}
}

func TestStudentRepositorySyncUpdatesOnScoreChange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	synced := time.Now().UTC()
	mock.ExpectQuery("SELECT id, user_id, name, login_id, email, .+ FROM students WHERE id = \\$1").
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows(studentColumns()).
			AddRow(int64(101), int64(1001), "Alice", "alice", "alice@example.edu", 80.0, 78.5, nil, nil, synced.Add(-time.Hour)))
	mock.ExpectExec("UPDATE students SET user_id = \\$2, name = \\$3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	score := 85.6
	rec := models.StudentRecord{ID: 101, UserID: 1001, Name: "Alice", LoginID: "alice", Email: "alice@example.edu", CurrentScore: &score, LastSynced: synced}
	student, outcome, err := repo.SyncStudent(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeUpdated, outcome)
	assert.Equal(t, 85.6, student.CurrentScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryNilScoreNeverOverwrites(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	synced := time.Now().UTC()
	mock.ExpectQuery("SELECT id, user_id, name, login_id, email, .+ FROM students WHERE id = \\$1").
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows(studentColumns()).
			AddRow(int64(101), int64(1001), "Alice", "alice", "alice@example.edu", 80.0, 78.5, nil, nil, synced.Add(-time.Hour)))
	mock.ExpectExec("UPDATE students SET last_synced = \\$2 WHERE id = \\$1").
		WithArgs(int64(101), synced).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Scores filtered out of the record: the row keeps its values, only
	// last_synced moves.
	rec := models.StudentRecord{ID: 101, UserID: 1001, Name: "Alice", LoginID: "alice", Email: "alice@example.edu", LastSynced: synced}
	student, outcome, err := repo.SyncStudent(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeSkipped, outcome)
	assert.Equal(t, 80.0, student.CurrentScore)
	assert.Equal(t, 78.5, student.FinalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySyncCreates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT id, user_id, name, login_id, email, .+ FROM students WHERE id = \\$1").
		WithArgs(int64(202)).
		WillReturnRows(sqlmock.NewRows(studentColumns()))
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := models.StudentRecord{ID: 202, UserID: 2002, Name: "Bob", LoginID: "bob", LastSynced: time.Now().UTC()}
	_, outcome, err := repo.SyncStudent(context.Background(), rec, true)
	require.NoError(t, err)
	assert.Equal(t, models.SyncOutcomeCreated, outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentChanged(t *testing.T) {
	score := 92.5
	student := models.Student{ID: 1, Name: "Alice", CurrentScore: 92.5}

	assert.False(t, StudentChanged(student, models.StudentRecord{ID: 1, Name: "Alice", CurrentScore: &score}))
	assert.True(t, StudentChanged(student, models.StudentRecord{ID: 1, Name: "Alicia", CurrentScore: &score}))

	other := 50.0
	assert.True(t, StudentChanged(student, models.StudentRecord{ID: 1, Name: "Alice", CurrentScore: &other}))
}
