package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// SyncRunRepository persists sync run records so async runs can be polled
// by id. Runs live outside the sync's own transaction: a rolled-back sync
// still leaves a failed run row behind.
type SyncRunRepository struct {
	db Queryer
}

// NewSyncRunRepository constructs the repository.
func NewSyncRunRepository(db Queryer) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a new run row.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	const query = `INSERT INTO sync_runs (id, mode, status, result, error, started_at, completed_at)
        VALUES (:id, :mode, :status, :result, :error, :started_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// Complete marks a run finished with its serialized result.
func (r *SyncRunRepository) Complete(ctx context.Context, id string, status models.SyncRunStatus, result []byte, errMsg string) error {
	const query = `UPDATE sync_runs SET status = $2, result = $3, error = $4, completed_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, result, errMsg, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete sync run %s: %w", id, err)
	}
	return nil
}

// MarkRunning flips a pending run to running.
func (r *SyncRunRepository) MarkRunning(ctx context.Context, id string) error {
	const query = `UPDATE sync_runs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.SyncRunRunning); err != nil {
		return fmt.Errorf("mark sync run %s running: %w", id, err)
	}
	return nil
}

// FindByID returns a run by id.
func (r *SyncRunRepository) FindByID(ctx context.Context, id string) (*models.SyncRun, error) {
	const query = `SELECT id, mode, status, result, error, started_at, completed_at FROM sync_runs WHERE id = $1`
	var run models.SyncRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteOlderThan prunes completed runs past the retention window.
func (r *SyncRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM sync_runs WHERE completed_at IS NOT NULL AND completed_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sync runs: %w", err)
	}
	return res.RowsAffected()
}
