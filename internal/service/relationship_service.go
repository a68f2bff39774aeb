package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/models"
	"github.com/noah-isme/canvas-sync-api/internal/repository"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
)

// relationshipCachePrefix namespaces all relationship cache keys so a
// post-sync invalidation can clear them with one pattern delete.
const relationshipCachePrefix = "rel:"

// RepairReport summarizes one repair pass over referential integrity.
type RepairReport struct {
	Violations         []models.IntegrityViolation `json:"violations"`
	DeletedAssignments int64                       `json:"deleted_assignments"`
	DeletedEnrollments int64                       `json:"deleted_enrollments"`
	Repaired           bool                        `json:"repaired"`
}

// RelationshipService serves cross-entity reads and referential integrity
// checks. Detection never mutates; deletion must be asked for explicitly.
type RelationshipService struct {
	relationships *repository.RelationshipRepository
	enrollments   *repository.EnrollmentRepository
	assignments   *repository.AssignmentRepository
	cache         *repository.CacheRepository
	metrics       *MetricsService
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewRelationshipService constructs the service. A nil cache disables
// caching without changing behavior.
func NewRelationshipService(
	relationships *repository.RelationshipRepository,
	enrollments *repository.EnrollmentRepository,
	assignments *repository.AssignmentRepository,
	cache *repository.CacheRepository,
	metrics *MetricsService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *RelationshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RelationshipService{
		relationships: relationships,
		enrollments:   enrollments,
		assignments:   assignments,
		cache:         cache,
		metrics:       metrics,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

// ValidateIntegrity runs every referential check and returns the found
// violations. An empty slice means the store is consistent.
func (s *RelationshipService) ValidateIntegrity(ctx context.Context) ([]models.IntegrityViolation, error) {
	checks := []func(context.Context) ([]models.IntegrityViolation, error){
		s.relationships.OrphanedAssignments,
		s.relationships.OrphanedEnrollments,
		s.relationships.OrphanedGradeHistory,
		s.relationships.DuplicateKeys,
	}

	violations := []models.IntegrityViolation{}
	for _, check := range checks {
		found, err := check(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "integrity validation failed")
		}
		violations = append(violations, found...)
	}
	return violations, nil
}

// RepairIntegrity reports current violations and, only when deleteOrphans
// is set, removes orphaned assignments and enrollments. Duplicate keys are
// never auto-repaired; they need a human decision about which row wins.
func (s *RelationshipService) RepairIntegrity(ctx context.Context, deleteOrphans bool) (*RepairReport, error) {
	violations, err := s.ValidateIntegrity(ctx)
	if err != nil {
		return nil, err
	}

	report := &RepairReport{Violations: violations}
	if !deleteOrphans || len(violations) == 0 {
		return report, nil
	}

	deletedAssignments, err := s.relationships.DeleteOrphanedAssignments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete orphaned assignments")
	}
	deletedEnrollments, err := s.relationships.DeleteOrphanedEnrollments(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete orphaned enrollments")
	}

	report.DeletedAssignments = deletedAssignments
	report.DeletedEnrollments = deletedEnrollments
	report.Repaired = deletedAssignments+deletedEnrollments > 0

	if report.Repaired {
		s.logger.Info("orphaned rows removed",
			zap.Int64("assignments", deletedAssignments),
			zap.Int64("enrollments", deletedEnrollments))
		s.InvalidateCache(ctx)
	}
	return report, nil
}

// StudentEnrollments lists a student's enrollments with course names.
func (s *RelationshipService) StudentEnrollments(ctx context.Context, studentID int64) ([]models.EnrollmentDetail, error) {
	key := fmt.Sprintf("%sstudent:%d:enrollments", relationshipCachePrefix, studentID)
	var cached []models.EnrollmentDetail
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	details, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student enrollments")
	}
	s.cacheSet(ctx, key, details)
	return details, nil
}

// CourseEnrollments lists a course's enrollments with student names.
func (s *RelationshipService) CourseEnrollments(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error) {
	key := fmt.Sprintf("%scourse:%d:enrollments", relationshipCachePrefix, courseID)
	var cached []models.EnrollmentDetail
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	details, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course enrollments")
	}
	s.cacheSet(ctx, key, details)
	return details, nil
}

// CourseAssignments lists a course's assignments.
func (s *RelationshipService) CourseAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	key := fmt.Sprintf("%scourse:%d:assignments", relationshipCachePrefix, courseID)
	var cached []models.Assignment
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course assignments")
	}
	s.cacheSet(ctx, key, assignments)
	return assignments, nil
}

// StudentPerformance returns the per-course performance rollup.
func (s *RelationshipService) StudentPerformance(ctx context.Context, studentID int64) ([]models.StudentPerformance, error) {
	key := fmt.Sprintf("%sstudent:%d:performance", relationshipCachePrefix, studentID)
	var cached []models.StudentPerformance
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.relationships.StudentPerformance(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student performance")
	}
	s.cacheSet(ctx, key, rows)
	return rows, nil
}

// InvalidateCache drops every cached relationship read.
func (s *RelationshipService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, relationshipCachePrefix+"*"); err != nil {
		s.logger.Warn("relationship cache invalidation failed", zap.Error(err))
	}
}

func (s *RelationshipService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.ObserveCache(hit)
	}
	if err != nil && !appErrors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("relationship cache read failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

func (s *RelationshipService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("relationship cache write failed", zap.String("key", key), zap.Error(err))
	}
}
