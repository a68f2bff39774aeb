package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
	"github.com/noah-isme/canvas-sync-api/internal/repository"
	"github.com/noah-isme/canvas-sync-api/internal/transform"
	"github.com/noah-isme/canvas-sync-api/pkg/config"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
	"github.com/noah-isme/canvas-sync-api/pkg/jobs"
	"github.com/noah-isme/canvas-sync-api/pkg/storage"
)

// SyncModeFull and SyncModeIncremental are the two pipeline modes.
const (
	SyncModeFull        = "full"
	SyncModeIncremental = "incremental"
)

// SyncRequest is the payload that starts a sync run.
type SyncRequest struct {
	CourseID          string            `json:"course_id" validate:"required"`
	Mode              string            `json:"mode" validate:"omitempty,oneof=full incremental"`
	Since             *time.Time        `json:"since"`
	Strategy          string            `json:"strategy" validate:"omitempty,oneof=canvas_wins local_wins merge"`
	ValidateIntegrity *bool             `json:"validate_integrity"`
	Config            *transform.Config `json:"config"`
}

// PipelineService chains the full sync pipeline: fetch the course document,
// validate it, transform it, and hand the typed records to the coordinator.
// It also owns the async run queue and the persisted run ledger.
type PipelineService struct {
	fetcher     *canvas.Fetcher
	registry    *transform.Registry
	cfgVal      *transform.ConfigValidator
	coordinator *SyncCoordinator
	runs        *repository.SyncRunRepository
	cache       *repository.CacheRepository
	archive     *storage.LocalStorage
	validator   *validator.Validate
	syncCfg     config.SyncConfig
	queue       *jobs.Queue
	logger      *zap.Logger
}

// NewPipelineService wires the pipeline. The archive and cache are
// optional; a nil archive skips raw document retention and a nil cache
// skips invalidation.
func NewPipelineService(
	fetcher *canvas.Fetcher,
	registry *transform.Registry,
	cfgVal *transform.ConfigValidator,
	coordinator *SyncCoordinator,
	runs *repository.SyncRunRepository,
	cache *repository.CacheRepository,
	archive *storage.LocalStorage,
	validate *validator.Validate,
	syncCfg config.SyncConfig,
	logger *zap.Logger,
) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &PipelineService{
		fetcher:     fetcher,
		registry:    registry,
		cfgVal:      cfgVal,
		coordinator: coordinator,
		runs:        runs,
		cache:       cache,
		archive:     archive,
		validator:   validate,
		syncCfg:     syncCfg,
		logger:      logger,
	}
	s.queue = jobs.NewQueue("sync", s.handleJob, jobs.QueueConfig{
		Workers:    1,
		BufferSize: syncCfg.QueueBufferSize,
		MaxRetries: 1,
		RetryDelay: syncCfg.QueueRetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins async queue consumption and periodic run-ledger cleanup.
func (s *PipelineService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.syncCfg.RunRetention > 0 {
		go s.cleanupLoop(ctx)
	}
}

// Stop drains the queue workers.
func (s *PipelineService) Stop() {
	s.queue.Stop()
}

// ValidateConfig reports whether a transformation config is usable without
// running anything.
func (s *PipelineService) ValidateConfig(cfg *transform.Config) *transform.ValidationReport {
	if cfg == nil {
		cfg = transform.DefaultConfig()
	}
	return s.cfgVal.Validate(cfg)
}

// Run executes one sync synchronously and persists it in the run ledger.
func (s *PipelineService) Run(ctx context.Context, req SyncRequest) (*models.SyncRun, *models.SyncResult, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, nil, err
	}

	run := s.newRun(req)
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sync run")
	}
	if err := s.runs.MarkRunning(ctx, run.ID); err != nil {
		s.logger.Warn("failed to mark run running", zap.String("run_id", run.ID), zap.Error(err))
	}

	result, err := s.execute(ctx, req)
	s.complete(ctx, run, result, err)
	return run, result, err
}

// RunAsync enqueues a sync and returns the pending run immediately. Run
// state is queryable by id while the job works through the queue.
func (s *PipelineService) RunAsync(ctx context.Context, req SyncRequest) (*models.SyncRun, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}

	run := s.newRun(req)
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sync run")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: "sync", Payload: req}); err != nil {
		s.failRun(ctx, run.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue sync run")
	}
	return run, nil
}

// GetRun returns one persisted run by id.
func (s *PipelineService) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "sync run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync run")
	}
	return run, nil
}

func (s *PipelineService) handleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(SyncRequest)
	if !ok {
		s.logger.Error("unexpected job payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}

	if err := s.runs.MarkRunning(ctx, job.ID); err != nil {
		s.logger.Warn("failed to mark run running", zap.String("run_id", job.ID), zap.Error(err))
	}

	run := &models.SyncRun{ID: job.ID}
	result, err := s.execute(ctx, req)
	s.complete(ctx, run, result, err)
	// The outcome is recorded on the run; retrying here would hide it.
	return nil
}

// execute is the pipeline core shared by the sync and async paths.
func (s *PipelineService) execute(ctx context.Context, req SyncRequest) (*models.SyncResult, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = transform.DefaultConfig()
	}

	report := s.cfgVal.Validate(cfg)
	if !report.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid transformation config: %s", joinFirst(report.Errors)))
	}
	for _, warning := range report.Warnings {
		s.logger.Warn("transformation config warning", zap.String("warning", warning))
	}

	doc, err := s.fetcher.Fetch(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	s.archiveDocument(req.CourseID, doc)

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	courseID, ok := doc.CourseID()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "canvas document has no course id")
	}

	results := s.registry.TransformEntities(doc.RecordsByKind(), cfg, courseID)
	set := RecordSetFromResults(courseID, results, s.logger)

	transformErrs, failed := collectTransformErrors(results)
	if failed {
		return nil, appErrors.Clone(appErrors.ErrSyncOperation, fmt.Sprintf("transformation failed: %s", joinFirst(transformErrs)))
	}

	result, err := s.dispatch(ctx, req, set)
	if result != nil {
		result.Errors = append(transformErrs, result.Errors...)
	}
	if err != nil {
		return result, err
	}

	if result.Success {
		s.invalidateCaches(ctx)
	}
	return result, nil
}

func (s *PipelineService) dispatch(ctx context.Context, req SyncRequest, set RecordSet) (*models.SyncResult, error) {
	if req.Mode == SyncModeIncremental {
		strategy := models.ConflictStrategy(req.Strategy)
		if strategy == "" {
			strategy = models.ConflictStrategy(s.syncCfg.ConflictStrategy)
		}
		if strategy == "" {
			strategy = models.StrategyCanvasWins
		}
		return s.coordinator.ExecuteIncrementalSync(ctx, set, *req.Since, strategy)
	}

	validate := s.syncCfg.ValidateIntegrity
	if req.ValidateIntegrity != nil {
		validate = *req.ValidateIntegrity
	}
	return s.coordinator.ExecuteFullSync(ctx, set, validate)
}

func (s *PipelineService) checkRequest(req SyncRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync request")
	}
	if req.Mode == SyncModeIncremental && req.Since == nil {
		return appErrors.Clone(appErrors.ErrValidation, "incremental sync requires a since timestamp")
	}
	return nil
}

func (s *PipelineService) newRun(req SyncRequest) *models.SyncRun {
	mode := req.Mode
	if mode == "" {
		mode = SyncModeFull
	}
	return &models.SyncRun{
		ID:        uuid.NewString(),
		Mode:      mode,
		Status:    models.SyncRunPending,
		StartedAt: time.Now().UTC(),
	}
}

func (s *PipelineService) complete(ctx context.Context, run *models.SyncRun, result *models.SyncResult, runErr error) {
	status := models.SyncRunSucceeded
	errMsg := ""
	if runErr != nil || result == nil || !result.Success {
		status = models.SyncRunFailed
	}
	if runErr != nil {
		errMsg = runErr.Error()
	}

	var payload []byte
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			s.logger.Warn("failed to marshal sync result", zap.String("run_id", run.ID), zap.Error(err))
		} else {
			payload = data
		}
	}

	if err := s.runs.Complete(ctx, run.ID, status, payload, errMsg); err != nil {
		s.logger.Error("failed to complete sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
	run.Status = status
	run.Error = errMsg
	run.ResultJSON = payload
}

func (s *PipelineService) failRun(ctx context.Context, id string, cause error) {
	if err := s.runs.Complete(ctx, id, models.SyncRunFailed, nil, cause.Error()); err != nil {
		s.logger.Error("failed to mark run failed", zap.String("run_id", id), zap.Error(err))
	}
}

// archiveDocument retains the raw fetched payload for later inspection.
// Best effort: archival failure never fails a sync.
func (s *PipelineService) archiveDocument(courseID string, doc *canvas.Document) {
	if s.archive == nil {
		return
	}
	raw := s.fetcher.RawJSON(doc)
	if raw == nil {
		return
	}
	name := fmt.Sprintf("canvas_%s_%d.json", courseID, time.Now().UTC().Unix())
	if _, err := s.archive.Save(name, raw); err != nil {
		s.logger.Warn("failed to archive canvas document", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *PipelineService) invalidateCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, relationshipCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate relationship cache", zap.Error(err))
	}
}

func (s *PipelineService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.syncCfg.RunRetention)
			deleted, err := s.runs.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				s.logger.Warn("sync run cleanup failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				s.logger.Info("sync run ledger pruned", zap.Int64("deleted", deleted))
			}
		}
	}
}

// collectTransformErrors flattens per-kind transformation errors and
// reports whether any batch failed outright.
func collectTransformErrors(results map[models.EntityKind]*transform.Result) ([]string, bool) {
	var out []string
	failed := false
	for _, kind := range models.SyncOrder {
		result, ok := results[kind]
		if !ok || result == nil {
			continue
		}
		for _, e := range result.Errors {
			out = append(out, fmt.Sprintf("%s: %s", kind, e))
		}
		if !result.Success {
			failed = true
			out = append(out, fmt.Sprintf("%s: transformation batch failed (%d of %d records)", kind, result.TransformedCount, result.SourceCount))
		}
	}
	return out, failed
}

func joinFirst(errs []string) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	return errs[0]
}
