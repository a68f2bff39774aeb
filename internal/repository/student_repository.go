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

// StudentRepository is the data manager for students.
type StudentRepository struct {
	db Queryer
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db Queryer) *StudentRepository {
	return &StudentRepository{db: db}
}

// WithTx rebinds the repository onto a transaction.
func (r *StudentRepository) WithTx(tx *sqlx.Tx) *StudentRepository {
	return &StudentRepository{db: tx}
}

// FindByID returns a student by Canvas student id.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT id, user_id, name, login_id, email, current_score, final_score, current_grade, last_activity, last_synced FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// SyncStudent applies one normalized student record, stamping last_synced
// on every observation and rewriting business fields only on detected
// change.
func (r *StudentRepository) SyncStudent(ctx context.Context, rec models.StudentRecord, updateExisting bool) (*models.Student, models.SyncOutcome, error) {
	existing, err := r.FindByID(ctx, rec.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("lookup student %d: %w", rec.ID, err)
		}
		student := newStudent(rec)
		if err := r.insert(ctx, student); err != nil {
			return nil, "", err
		}
		return student, models.SyncOutcomeCreated, nil
	}
	return r.applyExisting(ctx, existing, rec, updateExisting)
}

// BatchSyncStudents applies a batch against one bulk natural-key lookup.
func (r *StudentRepository) BatchSyncStudents(ctx context.Context, recs []models.StudentRecord, updateExisting bool) (models.EntityCounts, error) {
	counts := models.EntityCounts{Processed: len(recs)}
	if len(recs) == 0 {
		return counts, nil
	}

	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	existing, err := r.findByIDs(ctx, ids)
	if err != nil {
		return counts, err
	}

	for _, rec := range recs {
		row, found := existing[rec.ID]
		if !found {
			student := newStudent(rec)
			if err := r.insert(ctx, student); err != nil {
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

func (r *StudentRepository) applyExisting(ctx context.Context, existing *models.Student, rec models.StudentRecord, updateExisting bool) (*models.Student, models.SyncOutcome, error) {
	changed := applyStudentRecord(existing, rec)
	existing.LastSynced = rec.LastSynced

	if changed && updateExisting {
		const query = `UPDATE students SET user_id = $2, name = $3, login_id = $4, email = $5, current_score = $6, final_score = $7, current_grade = $8, last_activity = $9, last_synced = $10 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, existing.ID, existing.UserID, existing.Name, existing.LoginID, existing.Email, existing.CurrentScore, existing.FinalScore, existing.CurrentGrade, existing.LastActivity, existing.LastSynced); err != nil {
			return nil, "", fmt.Errorf("update student %d: %w", existing.ID, err)
		}
		return existing, models.SyncOutcomeUpdated, nil
	}

	const stamp = `UPDATE students SET last_synced = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, stamp, existing.ID, existing.LastSynced); err != nil {
		return nil, "", fmt.Errorf("stamp student %d: %w", existing.ID, err)
	}
	return existing, models.SyncOutcomeSkipped, nil
}

func (r *StudentRepository) insert(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (id, user_id, name, login_id, email, current_score, final_score, current_grade, last_activity, last_synced)
        VALUES (:id, :user_id, :name, :login_id, :email, :current_score, :final_score, :current_grade, :last_activity, :last_synced)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student %d: %w", student.ID, err)
	}
	return nil
}

func (r *StudentRepository) findByIDs(ctx context.Context, ids []int64) (map[int64]models.Student, error) {
	out := make(map[int64]models.Student, len(ids))
	const chunkSize = 200
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = id
		}
		query := fmt.Sprintf(`SELECT id, user_id, name, login_id, email, current_score, final_score, current_grade, last_activity, last_synced FROM students WHERE id IN (%s)`, strings.Join(placeholders, ","))
		var rows []models.Student
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("bulk lookup students: %w", err)
		}
		for _, row := range rows {
			out[row.ID] = row
		}
	}
	return out, nil
}

func newStudent(rec models.StudentRecord) *models.Student {
	student := &models.Student{
		ID:           rec.ID,
		UserID:       rec.UserID,
		Name:         rec.Name,
		LoginID:      rec.LoginID,
		Email:        rec.Email,
		CurrentGrade: rec.CurrentGrade,
		LastActivity: rec.LastActivity,
		LastSynced:   rec.LastSynced,
	}
	if rec.CurrentScore != nil {
		student.CurrentScore = *rec.CurrentScore
	}
	if rec.FinalScore != nil {
		student.FinalScore = *rec.FinalScore
	}
	return student
}

// applyStudentRecord merges a record into an existing row and reports
// whether any business field (name, email, login, scores, last_activity)
// changed. Nil record fields were filtered or absent and never overwrite
// persisted state.
func applyStudentRecord(student *models.Student, rec models.StudentRecord) bool {
	changed := false
	if student.Name != rec.Name {
		student.Name = rec.Name
		changed = true
	}
	if student.LoginID != rec.LoginID {
		student.LoginID = rec.LoginID
		changed = true
	}
	if student.Email != rec.Email {
		student.Email = rec.Email
		changed = true
	}
	if rec.CurrentScore != nil && student.CurrentScore != *rec.CurrentScore {
		student.CurrentScore = *rec.CurrentScore
		changed = true
	}
	if rec.FinalScore != nil && student.FinalScore != *rec.FinalScore {
		student.FinalScore = *rec.FinalScore
		changed = true
	}
	if rec.LastActivity != nil && !equalTimePtr(student.LastActivity, rec.LastActivity) {
		student.LastActivity = rec.LastActivity
		changed = true
	}
	if changed {
		if student.UserID != rec.UserID {
			student.UserID = rec.UserID
		}
		if rec.CurrentGrade != nil {
			student.CurrentGrade = rec.CurrentGrade
		}
	}
	return changed
}

// StudentChanged reports whether a record's business fields differ from
// the persisted row, without mutating it.
func StudentChanged(student models.Student, rec models.StudentRecord) bool {
	return applyStudentRecord(&student, rec)
}
