package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/models"
	"github.com/noah-isme/canvas-sync-api/internal/repository"
	"github.com/noah-isme/canvas-sync-api/internal/transform"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
)

// savepointName scopes one course sync inside the outer transaction so a
// failed run can be unwound without disturbing anything the caller may
// have staged before it.
const savepointName = "course_sync"

// RecordSet groups the typed records of one course sync in the order they
// must be written: courses, students, assignments, enrollments.
type RecordSet struct {
	CourseID    int64
	Courses     []models.CourseRecord
	Students    []models.StudentRecord
	Assignments []models.AssignmentRecord
	Enrollments []models.EnrollmentRecord
}

// RecordSetFromResults unboxes transformer output into per-kind slices.
// Records of an unexpected concrete type are dropped with a count so a
// registry misconfiguration surfaces instead of panicking mid-sync.
func RecordSetFromResults(courseID int64, results map[models.EntityKind]*transform.Result, logger *zap.Logger) RecordSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := RecordSet{CourseID: courseID}
	dropped := 0

	for kind, result := range results {
		if result == nil {
			continue
		}
		for _, record := range result.Records {
			switch rec := record.(type) {
			case models.CourseRecord:
				set.Courses = append(set.Courses, rec)
			case models.StudentRecord:
				set.Students = append(set.Students, rec)
			case models.AssignmentRecord:
				set.Assignments = append(set.Assignments, rec)
			case models.EnrollmentRecord:
				set.Enrollments = append(set.Enrollments, rec)
			default:
				dropped++
				logger.Warn("unexpected record type from transformer",
					zap.String("kind", string(kind)),
					zap.String("type", fmt.Sprintf("%T", record)))
			}
		}
	}
	if dropped > 0 {
		logger.Warn("records dropped during unboxing", zap.Int("count", dropped))
	}
	return set
}

// Total reports how many records the set carries across all kinds.
func (s RecordSet) Total() int {
	return len(s.Courses) + len(s.Students) + len(s.Assignments) + len(s.Enrollments)
}

// SyncCoordinator drives multi-entity sync runs: one transaction per run,
// entities written in dependency order, everything unwound on the first
// failure so a partial run never becomes visible.
type SyncCoordinator struct {
	db            *sqlx.DB
	courses       *repository.CourseRepository
	students      *repository.StudentRepository
	assignments   *repository.AssignmentRepository
	enrollments   *repository.EnrollmentRepository
	history       *repository.HistoryRepository
	relationships *repository.RelationshipRepository
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewSyncCoordinator constructs a coordinator over the shared handle.
func NewSyncCoordinator(
	db *sqlx.DB,
	courses *repository.CourseRepository,
	students *repository.StudentRepository,
	assignments *repository.AssignmentRepository,
	enrollments *repository.EnrollmentRepository,
	history *repository.HistoryRepository,
	relationships *repository.RelationshipRepository,
	metrics *MetricsService,
	logger *zap.Logger,
) *SyncCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncCoordinator{
		db:            db,
		courses:       courses,
		students:      students,
		assignments:   assignments,
		enrollments:   enrollments,
		history:       history,
		relationships: relationships,
		metrics:       metrics,
		logger:        logger,
	}
}

// ExecuteFullSync writes every record in the set inside one transaction.
// Order is fixed: courses, students, assignments, enrollments, so foreign
// keys always resolve. Any step failing rolls back the whole run; the
// returned result says so via RollbackPerformed. When validateIntegrity is
// set, referential checks run inside the transaction before commit and a
// violation aborts the run the same way a write failure does.
func (s *SyncCoordinator) ExecuteFullSync(ctx context.Context, set RecordSet, validateIntegrity bool) (*models.SyncResult, error) {
	result := models.NewSyncResult()
	start := time.Now()

	s.logger.Info("full sync started",
		zap.Int64("course_id", set.CourseID),
		zap.Int("records", set.Total()),
		zap.Bool("validate_integrity", validateIntegrity))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to begin sync transaction")
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
		_ = tx.Rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to create savepoint")
	}

	runErr := s.applyFull(ctx, tx, set, result)
	if runErr == nil && validateIntegrity {
		runErr = s.checkIntegrity(ctx, tx, result)
	}
	if runErr == nil {
		runErr = s.writeHistory(ctx, tx, set)
	}

	if runErr != nil {
		s.rollback(ctx, tx, result)
		s.finish(result, "full", start, false)
		return result, runErr
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		s.rollback(ctx, tx, result)
		s.finish(result, "full", start, false)
		return result, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to release savepoint")
	}
	if err := tx.Commit(); err != nil {
		result.RollbackPerformed = true
		s.finish(result, "full", start, false)
		return result, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to commit sync transaction")
	}

	result.Success = true
	s.finish(result, "full", start, true)
	return result, nil
}

// ExecuteIncrementalSync writes only records the source modified after the
// cutoff. Records whose source timestamp is missing or unparseable are
// kept rather than silently dropped. Where a kept record diverges from the
// local row, the strategy decides: canvas_wins applies the remote record,
// local_wins keeps the row and only refreshes its sync stamp, merge is
// recorded as an unresolved conflict and the record is left untouched.
// Unresolved conflicts mark the run unsuccessful but never abort it.
func (s *SyncCoordinator) ExecuteIncrementalSync(ctx context.Context, set RecordSet, since time.Time, strategy models.ConflictStrategy) (*models.SyncResult, error) {
	result := models.NewSyncResult()
	start := time.Now()

	filtered := filterSince(set, since)
	s.logger.Info("incremental sync started",
		zap.Int64("course_id", set.CourseID),
		zap.Time("since", since),
		zap.String("strategy", string(strategy)),
		zap.Int("records", filtered.Total()),
		zap.Int("filtered_out", set.Total()-filtered.Total()))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to begin sync transaction")
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointName); err != nil {
		_ = tx.Rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to create savepoint")
	}

	if err := s.applyIncremental(ctx, tx, filtered, strategy, result); err != nil {
		s.rollback(ctx, tx, result)
		s.finish(result, "incremental", start, false)
		return result, err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointName); err != nil {
		s.rollback(ctx, tx, result)
		s.finish(result, "incremental", start, false)
		return result, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to release savepoint")
	}
	if err := tx.Commit(); err != nil {
		result.RollbackPerformed = true
		s.finish(result, "incremental", start, false)
		return result, appErrors.Wrap(err, appErrors.ErrTransaction.Code, appErrors.ErrTransaction.Status, "failed to commit sync transaction")
	}

	result.Success = !hasUnresolved(result.Conflicts)
	s.finish(result, "incremental", start, result.Success)
	return result, nil
}

// applyFull runs the four batch writes in dependency order and records
// per-kind counts as it goes, so a failed run still reports how far it got.
func (s *SyncCoordinator) applyFull(ctx context.Context, tx *sqlx.Tx, set RecordSet, result *models.SyncResult) error {
	steps := []struct {
		kind models.EntityKind
		run  func() (models.EntityCounts, error)
	}{
		{models.KindCourse, func() (models.EntityCounts, error) {
			return s.courses.WithTx(tx).BatchSyncCourses(ctx, set.Courses, true)
		}},
		{models.KindStudent, func() (models.EntityCounts, error) {
			return s.students.WithTx(tx).BatchSyncStudents(ctx, set.Students, true)
		}},
		{models.KindAssignment, func() (models.EntityCounts, error) {
			return s.assignments.WithTx(tx).BatchSyncAssignments(ctx, set.Assignments, true)
		}},
		{models.KindEnrollment, func() (models.EntityCounts, error) {
			return s.enrollments.WithTx(tx).BatchSyncEnrollments(ctx, set.Enrollments, true)
		}},
	}

	for _, step := range steps {
		counts, err := step.run()
		result.Counts[step.kind] = counts
		if err != nil {
			msg := fmt.Sprintf("%s sync failed: %v", step.kind, err)
			result.Errors = append(result.Errors, msg)
			return appErrors.Wrap(err, appErrors.ErrSyncOperation.Code, appErrors.ErrSyncOperation.Status, msg)
		}
		s.logger.Debug("sync step complete",
			zap.String("kind", string(step.kind)),
			zap.Int("processed", counts.Processed),
			zap.Int("created", counts.Created),
			zap.Int("updated", counts.Updated),
			zap.Int("skipped", counts.Skipped))
	}
	return nil
}

func (s *SyncCoordinator) applyIncremental(ctx context.Context, tx *sqlx.Tx, set RecordSet, strategy models.ConflictStrategy, result *models.SyncResult) error {
	if err := s.incrementalCourses(ctx, tx, set.Courses, strategy, result); err != nil {
		return err
	}
	if err := s.incrementalStudents(ctx, tx, set.Students, strategy, result); err != nil {
		return err
	}
	if err := s.incrementalAssignments(ctx, tx, set.Assignments, strategy, result); err != nil {
		return err
	}
	return s.incrementalEnrollments(ctx, tx, set.Enrollments, strategy, result)
}

func (s *SyncCoordinator) incrementalCourses(ctx context.Context, tx *sqlx.Tx, recs []models.CourseRecord, strategy models.ConflictStrategy, result *models.SyncResult) error {
	repo := s.courses.WithTx(tx)
	counts := models.EntityCounts{}
	for _, rec := range recs {
		counts.Processed++
		existing, err := repo.FindByID(ctx, rec.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return s.stepError(models.KindCourse, err, result)
		}
		if existing != nil && repository.CourseChanged(*existing, rec) {
			conflict, err := s.resolveConflict(models.KindCourse, fmt.Sprintf("%d", rec.ID), strategy, &counts, func(updateExisting bool) (models.SyncOutcome, error) {
				_, outcome, err := repo.SyncCourse(ctx, rec, updateExisting)
				return outcome, err
			})
			if err != nil {
				return s.stepError(models.KindCourse, err, result)
			}
			result.Conflicts = append(result.Conflicts, conflict)
			continue
		}
		_, outcome, err := repo.SyncCourse(ctx, rec, true)
		if err != nil {
			return s.stepError(models.KindCourse, err, result)
		}
		tallyOutcome(&counts, outcome)
	}
	result.Counts[models.KindCourse] = counts
	return nil
}

func (s *SyncCoordinator) incrementalStudents(ctx context.Context, tx *sqlx.Tx, recs []models.StudentRecord, strategy models.ConflictStrategy, result *models.SyncResult) error {
	repo := s.students.WithTx(tx)
	counts := models.EntityCounts{}
	for _, rec := range recs {
		counts.Processed++
		existing, err := repo.FindByID(ctx, rec.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return s.stepError(models.KindStudent, err, result)
		}
		if existing != nil && repository.StudentChanged(*existing, rec) {
			conflict, err := s.resolveConflict(models.KindStudent, fmt.Sprintf("%d", rec.ID), strategy, &counts, func(updateExisting bool) (models.SyncOutcome, error) {
				_, outcome, err := repo.SyncStudent(ctx, rec, updateExisting)
				return outcome, err
			})
			if err != nil {
				return s.stepError(models.KindStudent, err, result)
			}
			result.Conflicts = append(result.Conflicts, conflict)
			continue
		}
		_, outcome, err := repo.SyncStudent(ctx, rec, true)
		if err != nil {
			return s.stepError(models.KindStudent, err, result)
		}
		tallyOutcome(&counts, outcome)
	}
	result.Counts[models.KindStudent] = counts
	return nil
}

func (s *SyncCoordinator) incrementalAssignments(ctx context.Context, tx *sqlx.Tx, recs []models.AssignmentRecord, strategy models.ConflictStrategy, result *models.SyncResult) error {
	repo := s.assignments.WithTx(tx)
	counts := models.EntityCounts{}
	for _, rec := range recs {
		counts.Processed++
		existing, err := repo.FindByID(ctx, rec.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return s.stepError(models.KindAssignment, err, result)
		}
		if existing != nil && repository.AssignmentChanged(*existing, rec) {
			conflict, err := s.resolveConflict(models.KindAssignment, fmt.Sprintf("%d", rec.ID), strategy, &counts, func(updateExisting bool) (models.SyncOutcome, error) {
				_, outcome, err := repo.SyncAssignment(ctx, rec, updateExisting)
				return outcome, err
			})
			if err != nil {
				return s.stepError(models.KindAssignment, err, result)
			}
			result.Conflicts = append(result.Conflicts, conflict)
			continue
		}
		_, outcome, err := repo.SyncAssignment(ctx, rec, true)
		if err != nil {
			return s.stepError(models.KindAssignment, err, result)
		}
		tallyOutcome(&counts, outcome)
	}
	result.Counts[models.KindAssignment] = counts
	return nil
}

func (s *SyncCoordinator) incrementalEnrollments(ctx context.Context, tx *sqlx.Tx, recs []models.EnrollmentRecord, strategy models.ConflictStrategy, result *models.SyncResult) error {
	repo := s.enrollments.WithTx(tx)
	counts := models.EntityCounts{}
	for _, rec := range recs {
		counts.Processed++
		existing, err := repo.FindByStudentAndCourse(ctx, rec.StudentID, rec.CourseID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return s.stepError(models.KindEnrollment, err, result)
		}
		if existing != nil && repository.EnrollmentChanged(*existing, rec) {
			key := fmt.Sprintf("%d:%d", rec.StudentID, rec.CourseID)
			conflict, err := s.resolveConflict(models.KindEnrollment, key, strategy, &counts, func(updateExisting bool) (models.SyncOutcome, error) {
				_, outcome, err := repo.SyncEnrollment(ctx, rec, updateExisting)
				return outcome, err
			})
			if err != nil {
				return s.stepError(models.KindEnrollment, err, result)
			}
			result.Conflicts = append(result.Conflicts, conflict)
			continue
		}
		_, outcome, err := repo.SyncEnrollment(ctx, rec, true)
		if err != nil {
			return s.stepError(models.KindEnrollment, err, result)
		}
		tallyOutcome(&counts, outcome)
	}
	result.Counts[models.KindEnrollment] = counts
	return nil
}

// resolveConflict applies the configured strategy to one divergent record.
// The merge strategy has no automatic resolution; it records the conflict
// for manual handling and leaves the local row alone.
func (s *SyncCoordinator) resolveConflict(kind models.EntityKind, key string, strategy models.ConflictStrategy, counts *models.EntityCounts, apply func(updateExisting bool) (models.SyncOutcome, error)) (models.SyncConflict, error) {
	conflict := models.SyncConflict{Kind: kind, EntityKey: key, Strategy: strategy}

	switch strategy {
	case models.StrategyCanvasWins:
		outcome, err := apply(true)
		if err != nil {
			return conflict, err
		}
		tallyOutcome(counts, outcome)
		conflict.Resolved = true
		conflict.Resolution = "remote record applied"
	case models.StrategyLocalWins:
		outcome, err := apply(false)
		if err != nil {
			return conflict, err
		}
		tallyOutcome(counts, outcome)
		conflict.Resolved = true
		conflict.Resolution = "local record kept"
	default:
		counts.Skipped++
		conflict.Resolution = "manual resolution required"
		s.logger.Warn("unresolved sync conflict",
			zap.String("kind", string(kind)),
			zap.String("entity_key", key),
			zap.String("strategy", string(strategy)))
	}
	return conflict, nil
}

// checkIntegrity runs referential checks inside the sync transaction so a
// run that would leave orphans or duplicate keys behind never commits.
func (s *SyncCoordinator) checkIntegrity(ctx context.Context, tx *sqlx.Tx, result *models.SyncResult) error {
	repo := s.relationships.WithTx(tx)

	var violations []models.IntegrityViolation
	checks := []func(context.Context) ([]models.IntegrityViolation, error){
		repo.OrphanedAssignments,
		repo.OrphanedEnrollments,
		repo.DuplicateKeys,
	}
	for _, check := range checks {
		found, err := check(ctx)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "integrity validation failed")
		}
		violations = append(violations, found...)
	}

	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		result.Errors = append(result.Errors, v.Description)
	}
	return appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("%d integrity violations detected", len(violations)))
}

// writeHistory appends the per-run history rows: one course snapshot, one
// grade row per student carrying scores, one score row per assignment
// carrying points. History shares the sync transaction, so a rolled-back
// run leaves no trace here either.
func (s *SyncCoordinator) writeHistory(ctx context.Context, tx *sqlx.Tx, set RecordSet) error {
	repo := s.history.WithTx(tx)
	now := time.Now().UTC()

	for _, course := range set.Courses {
		snapshot := models.CourseSnapshot{
			CourseID:        course.ID,
			Name:            course.Name,
			StudentCount:    len(set.Students),
			AssignmentCount: len(set.Assignments),
			RecordedAt:      now,
		}
		if course.CourseCode != nil {
			snapshot.CourseCode = *course.CourseCode
		}
		if err := repo.RecordCourseSnapshot(ctx, snapshot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSyncOperation.Code, appErrors.ErrSyncOperation.Status, "failed to record course snapshot")
		}
	}

	for _, student := range set.Students {
		if student.CurrentScore == nil && student.FinalScore == nil {
			continue
		}
		grade := models.GradeHistory{
			StudentID:  student.ID,
			CourseID:   set.CourseID,
			RecordedAt: now,
		}
		if student.CurrentScore != nil {
			grade.CurrentScore = *student.CurrentScore
		}
		if student.FinalScore != nil {
			grade.FinalScore = *student.FinalScore
		}
		if err := repo.RecordGrade(ctx, grade); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSyncOperation.Code, appErrors.ErrSyncOperation.Status, "failed to record grade history")
		}
	}

	for _, assignment := range set.Assignments {
		if assignment.PointsPossible == nil {
			continue
		}
		score := models.AssignmentScoreHistory{
			AssignmentID:   assignment.ID,
			CourseID:       assignment.CourseID,
			PointsPossible: *assignment.PointsPossible,
			RecordedAt:     now,
		}
		if assignment.Published != nil {
			score.Published = *assignment.Published
		}
		if err := repo.RecordAssignmentScore(ctx, score); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSyncOperation.Code, appErrors.ErrSyncOperation.Status, "failed to record assignment score history")
		}
	}
	return nil
}

func (s *SyncCoordinator) rollback(ctx context.Context, tx *sqlx.Tx, result *models.SyncResult) {
	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointName); err != nil {
		s.logger.Warn("savepoint rollback failed", zap.Error(err))
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Warn("transaction rollback failed", zap.Error(err))
	}
	result.RollbackPerformed = true
}

func (s *SyncCoordinator) stepError(kind models.EntityKind, err error, result *models.SyncResult) error {
	msg := fmt.Sprintf("%s sync failed: %v", kind, err)
	result.Errors = append(result.Errors, msg)
	return appErrors.Wrap(err, appErrors.ErrSyncOperation.Code, appErrors.ErrSyncOperation.Status, msg)
}

func (s *SyncCoordinator) finish(result *models.SyncResult, mode string, start time.Time, success bool) {
	result.CompletedAt = time.Now().UTC()
	if s.metrics != nil {
		s.metrics.ObserveSyncRun(mode, success, time.Since(start))
		if result.RollbackPerformed {
			s.metrics.ObserveRollback()
		}
		for kind, counts := range result.Counts {
			s.metrics.ObserveSyncRecords(string(kind), counts)
		}
	}
	s.logger.Info("sync finished",
		zap.String("mode", mode),
		zap.Bool("success", success),
		zap.Bool("rollback", result.RollbackPerformed),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Duration("elapsed", time.Since(start)))
}

func tallyOutcome(counts *models.EntityCounts, outcome models.SyncOutcome) {
	switch outcome {
	case models.SyncOutcomeCreated:
		counts.Created++
	case models.SyncOutcomeUpdated:
		counts.Updated++
	default:
		counts.Skipped++
	}
}

func hasUnresolved(conflicts []models.SyncConflict) bool {
	for _, c := range conflicts {
		if !c.Resolved {
			return true
		}
	}
	return false
}

// filterSince keeps records modified after the cutoff. A record without a
// usable source timestamp is kept: losing it silently would be worse than
// re-syncing it.
func filterSince(set RecordSet, since time.Time) RecordSet {
	out := RecordSet{CourseID: set.CourseID}
	for _, rec := range set.Courses {
		if keepSince(rec.UpdatedAt, since) {
			out.Courses = append(out.Courses, rec)
		}
	}
	for _, rec := range set.Students {
		if keepSince(rec.UpdatedAt, since) {
			out.Students = append(out.Students, rec)
		}
	}
	for _, rec := range set.Assignments {
		if keepSince(rec.UpdatedAt, since) {
			out.Assignments = append(out.Assignments, rec)
		}
	}
	for _, rec := range set.Enrollments {
		if keepSince(rec.UpdatedAt, since) {
			out.Enrollments = append(out.Enrollments, rec)
		}
	}
	return out
}

func keepSince(updatedAt *time.Time, since time.Time) bool {
	if updatedAt == nil {
		return true
	}
	return updatedAt.After(since)
}
