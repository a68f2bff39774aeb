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

// AssignmentRepository is the data manager for assignments.
type AssignmentRepository struct {
	db Queryer
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db Queryer) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// WithTx rebinds the repository onto a transaction.
func (r *AssignmentRepository) WithTx(tx *sqlx.Tx) *AssignmentRepository {
	return &AssignmentRepository{db: tx}
}

// FindByID returns an assignment by Canvas id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id int64) (*models.Assignment, error) {
	const query = `SELECT id, course_id, module_id, name, assignment_type, points_possible, published, url, position, due_at, last_synced FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByCourse returns all assignments of a course ordered by position.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, module_id, name, assignment_type, points_possible, published, url, position, due_at, last_synced FROM assignments WHERE course_id = $1 ORDER BY position, id`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list course assignments: %w", err)
	}
	return assignments, nil
}

// SyncAssignment applies one normalized assignment record.
func (r *AssignmentRepository) SyncAssignment(ctx context.Context, rec models.AssignmentRecord, updateExisting bool) (*models.Assignment, models.SyncOutcome, error) {
	existing, err := r.FindByID(ctx, rec.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("lookup assignment %d: %w", rec.ID, err)
		}
		assignment := newAssignment(rec)
		if err := r.insert(ctx, assignment); err != nil {
			return nil, "", err
		}
		return assignment, models.SyncOutcomeCreated, nil
	}
	return r.applyExisting(ctx, existing, rec, updateExisting)
}

// BatchSyncAssignments applies a batch against one bulk natural-key lookup.
func (r *AssignmentRepository) BatchSyncAssignments(ctx context.Context, recs []models.AssignmentRecord, updateExisting bool) (models.EntityCounts, error) {
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
			assignment := newAssignment(rec)
			if err := r.insert(ctx, assignment); err != nil {
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

func (r *AssignmentRepository) applyExisting(ctx context.Context, existing *models.Assignment, rec models.AssignmentRecord, updateExisting bool) (*models.Assignment, models.SyncOutcome, error) {
	changed := applyAssignmentRecord(existing, rec)
	existing.LastSynced = rec.LastSynced

	if changed && updateExisting {
		const query = `UPDATE assignments SET course_id = $2, module_id = $3, name = $4, assignment_type = $5, points_possible = $6, published = $7, url = $8, position = $9, due_at = $10, last_synced = $11 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, existing.ID, existing.CourseID, existing.ModuleID, existing.Name, existing.AssignmentType, existing.PointsPossible, existing.Published, existing.URL, existing.Position, existing.DueAt, existing.LastSynced); err != nil {
			return nil, "", fmt.Errorf("update assignment %d: %w", existing.ID, err)
		}
		return existing, models.SyncOutcomeUpdated, nil
	}

	const stamp = `UPDATE assignments SET last_synced = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, stamp, existing.ID, existing.LastSynced); err != nil {
		return nil, "", fmt.Errorf("stamp assignment %d: %w", existing.ID, err)
	}
	return existing, models.SyncOutcomeSkipped, nil
}

func (r *AssignmentRepository) insert(ctx context.Context, assignment *models.Assignment) error {
	const query = `INSERT INTO assignments (id, course_id, module_id, name, assignment_type, points_possible, published, url, position, due_at, last_synced)
        VALUES (:id, :course_id, :module_id, :name, :assignment_type, :points_possible, :published, :url, :position, :due_at, :last_synced)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment %d: %w", assignment.ID, err)
	}
	return nil
}

func (r *AssignmentRepository) findByIDs(ctx context.Context, ids []int64) (map[int64]models.Assignment, error) {
	out := make(map[int64]models.Assignment, len(ids))
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
		query := fmt.Sprintf(`SELECT id, course_id, module_id, name, assignment_type, points_possible, published, url, position, due_at, last_synced FROM assignments WHERE id IN (%s)`, strings.Join(placeholders, ","))
		var rows []models.Assignment
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("bulk lookup assignments: %w", err)
		}
		for _, row := range rows {
			out[row.ID] = row
		}
	}
	return out, nil
}

func newAssignment(rec models.AssignmentRecord) *models.Assignment {
	assignment := &models.Assignment{
		ID:             rec.ID,
		CourseID:       rec.CourseID,
		ModuleID:       rec.ModuleID,
		Name:           rec.Name,
		AssignmentType: rec.AssignmentType,
		DueAt:          rec.DueAt,
		LastSynced:     rec.LastSynced,
	}
	if rec.PointsPossible != nil {
		assignment.PointsPossible = *rec.PointsPossible
	}
	if rec.Published != nil {
		assignment.Published = *rec.Published
	}
	if rec.URL != nil {
		assignment.URL = *rec.URL
	}
	if rec.Position != nil {
		assignment.Position = *rec.Position
	}
	return assignment
}

// applyAssignmentRecord merges a record into an existing row and reports
// whether any business field (name, points, type, published, url,
// position) changed.
func applyAssignmentRecord(assignment *models.Assignment, rec models.AssignmentRecord) bool {
	changed := false
	if assignment.Name != rec.Name {
		assignment.Name = rec.Name
		changed = true
	}
	if assignment.AssignmentType != rec.AssignmentType {
		assignment.AssignmentType = rec.AssignmentType
		changed = true
	}
	if rec.PointsPossible != nil && assignment.PointsPossible != *rec.PointsPossible {
		assignment.PointsPossible = *rec.PointsPossible
		changed = true
	}
	if rec.Published != nil && assignment.Published != *rec.Published {
		assignment.Published = *rec.Published
		changed = true
	}
	if rec.URL != nil && assignment.URL != *rec.URL {
		assignment.URL = *rec.URL
		changed = true
	}
	if rec.Position != nil && assignment.Position != *rec.Position {
		assignment.Position = *rec.Position
		changed = true
	}
	if changed {
		if assignment.CourseID != rec.CourseID && rec.CourseID != 0 {
			assignment.CourseID = rec.CourseID
		}
		if assignment.ModuleID != rec.ModuleID && rec.ModuleID != 0 {
			assignment.ModuleID = rec.ModuleID
		}
		if rec.DueAt != nil {
			assignment.DueAt = rec.DueAt
		}
	}
	return changed
}

// AssignmentChanged reports whether a record's business fields differ from
// the persisted row, without mutating it.
func AssignmentChanged(assignment models.Assignment, rec models.AssignmentRecord) bool {
	return applyAssignmentRecord(&assignment, rec)
}
