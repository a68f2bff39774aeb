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

// CourseRepository is the data manager for courses: natural-key lookup,
// change detection and create-or-update with staleness stamping.
type CourseRepository struct {
	db Queryer
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db Queryer) *CourseRepository {
	return &CourseRepository{db: db}
}

// WithTx rebinds the repository onto a transaction.
func (r *CourseRepository) WithTx(tx *sqlx.Tx) *CourseRepository {
	return &CourseRepository{db: tx}
}

// FindByID returns a course by its Canvas id.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT id, name, course_code, calendar_ics, start_at, end_at, created_at, updated_at, last_synced FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// SyncCourse applies one normalized course record. An existing row always
// gets its last_synced stamp refreshed; business fields (name, course_code,
// calendar_ics) are rewritten only when a change is detected, so a no-op
// sync still advances staleness tracking without touching anything else.
func (r *CourseRepository) SyncCourse(ctx context.Context, rec models.CourseRecord, updateExisting bool) (*models.Course, models.SyncOutcome, error) {
	existing, err := r.FindByID(ctx, rec.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("lookup course %d: %w", rec.ID, err)
		}
		course := newCourse(rec)
		if err := r.insert(ctx, course); err != nil {
			return nil, "", err
		}
		return course, models.SyncOutcomeCreated, nil
	}

	return r.applyExisting(ctx, existing, rec, updateExisting)
}

// BatchSyncCourses applies a batch with a single bulk lookup of all natural
// keys, avoiding one query per record. The create-or-update decision per
// record matches SyncCourse exactly.
func (r *CourseRepository) BatchSyncCourses(ctx context.Context, recs []models.CourseRecord, updateExisting bool) (models.EntityCounts, error) {
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
			course := newCourse(rec)
			if err := r.insert(ctx, course); err != nil {
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

func (r *CourseRepository) applyExisting(ctx context.Context, existing *models.Course, rec models.CourseRecord, updateExisting bool) (*models.Course, models.SyncOutcome, error) {
	changed := applyCourseRecord(existing, rec)
	existing.LastSynced = rec.LastSynced

	if changed && updateExisting {
		const query = `UPDATE courses SET name = $2, course_code = $3, calendar_ics = $4, start_at = $5, end_at = $6, created_at = $7, updated_at = $8, last_synced = $9 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, existing.ID, existing.Name, existing.CourseCode, existing.CalendarICS, existing.StartAt, existing.EndAt, existing.CreatedAt, existing.UpdatedAt, existing.LastSynced); err != nil {
			return nil, "", fmt.Errorf("update course %d: %w", existing.ID, err)
		}
		return existing, models.SyncOutcomeUpdated, nil
	}

	const stamp = `UPDATE courses SET last_synced = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, stamp, existing.ID, existing.LastSynced); err != nil {
		return nil, "", fmt.Errorf("stamp course %d: %w", existing.ID, err)
	}
	return existing, models.SyncOutcomeSkipped, nil
}

func (r *CourseRepository) insert(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (id, name, course_code, calendar_ics, start_at, end_at, created_at, updated_at, last_synced)
        VALUES (:id, :name, :course_code, :calendar_ics, :start_at, :end_at, :created_at, :updated_at, :last_synced)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course %d: %w", course.ID, err)
	}
	return nil
}

func (r *CourseRepository) findByIDs(ctx context.Context, ids []int64) (map[int64]models.Course, error) {
	out := make(map[int64]models.Course, len(ids))
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
		query := fmt.Sprintf(`SELECT id, name, course_code, calendar_ics, start_at, end_at, created_at, updated_at, last_synced FROM courses WHERE id IN (%s)`, strings.Join(placeholders, ","))
		var rows []models.Course
		if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("bulk lookup courses: %w", err)
		}
		for _, row := range rows {
			out[row.ID] = row
		}
	}
	return out, nil
}

// newCourse builds a fresh row from a normalized record, resolving nil
// optional fields to column defaults.
func newCourse(rec models.CourseRecord) *models.Course {
	course := &models.Course{
		ID:          rec.ID,
		Name:        rec.Name,
		CalendarICS: rec.CalendarICS,
		StartAt:     rec.StartAt,
		EndAt:       rec.EndAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		LastSynced:  rec.LastSynced,
	}
	if rec.CourseCode != nil {
		course.CourseCode = *rec.CourseCode
	}
	return course
}

// applyCourseRecord merges a record into an existing row and reports
// whether any business-meaningful field (name, course_code, calendar_ics)
// actually changed. Timestamps ride along with a detected change but never
// trigger one, and last_synced is deliberately excluded from comparison.
func applyCourseRecord(course *models.Course, rec models.CourseRecord) bool {
	changed := false
	if course.Name != rec.Name {
		course.Name = rec.Name
		changed = true
	}
	if rec.CourseCode != nil && course.CourseCode != *rec.CourseCode {
		course.CourseCode = *rec.CourseCode
		changed = true
	}
	if course.CalendarICS != rec.CalendarICS {
		course.CalendarICS = rec.CalendarICS
		changed = true
	}
	if changed {
		if rec.StartAt != nil {
			course.StartAt = rec.StartAt
		}
		if rec.EndAt != nil {
			course.EndAt = rec.EndAt
		}
		if rec.CreatedAt != nil {
			course.CreatedAt = rec.CreatedAt
		}
		if rec.UpdatedAt != nil {
			course.UpdatedAt = rec.UpdatedAt
		}
	}
	return changed
}

// CourseChanged reports whether a record's business fields differ from the
// persisted row, without mutating it.
func CourseChanged(course models.Course, rec models.CourseRecord) bool {
	return applyCourseRecord(&course, rec)
}
