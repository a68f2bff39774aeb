package transform

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// Registry holds one transformer per entity kind and dispatches raw
// multi-entity documents to them. It is an explicitly constructed instance
// handed to the coordinator and validator; there is no ambient global
// registration.
type Registry struct {
	transformers map[models.EntityKind]Transformer
	logger       *zap.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		transformers: make(map[models.EntityKind]Transformer),
		logger:       logger,
	}
}

// NewDefaultRegistry constructs a registry with the four standard
// transformers registered.
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewCourseTransformer(logger))
	r.Register(NewStudentTransformer(logger))
	r.Register(NewAssignmentTransformer(logger))
	r.Register(NewEnrollmentTransformer(logger))
	return r
}

// Register associates a transformer with its kind. Re-registering a kind
// overwrites the previous transformer with a logged warning; last
// registration wins, which keeps test and override setups simple.
func (r *Registry) Register(t Transformer) {
	kind := t.Kind()
	if _, exists := r.transformers[kind]; exists {
		r.logger.Warn("transformer re-registered, previous registration replaced",
			zap.String("kind", string(kind)))
	}
	r.transformers[kind] = t
}

// Lookup returns the registered transformer for a kind.
func (r *Registry) Lookup(kind models.EntityKind) (Transformer, bool) {
	t, ok := r.transformers[kind]
	return t, ok
}

// Kinds returns the registered entity kinds.
func (r *Registry) Kinds() []models.EntityKind {
	kinds := make([]models.EntityKind, 0, len(r.transformers))
	for kind := range r.transformers {
		kinds = append(kinds, kind)
	}
	return kinds
}

// TransformEntities dispatches each kind's raw records to its transformer
// and collects one Result per kind. Kinds disabled by configuration
// (including enrollments whenever students are disabled) and kinds with no
// registered transformer are skipped with a log entry, never an error.
func (r *Registry) TransformEntities(byKind map[models.EntityKind][]canvas.Record, cfg *Config, courseID int64) map[models.EntityKind]*Result {
	results := make(map[models.EntityKind]*Result, len(byKind))
	now := time.Now().UTC()

	for _, kind := range models.SyncOrder {
		raws, present := byKind[kind]
		if !present {
			continue
		}
		if !cfg.EntityEnabled(kind) {
			r.logger.Info("entity kind disabled by configuration", zap.String("kind", string(kind)))
			continue
		}
		transformer, ok := r.transformers[kind]
		if !ok {
			r.logger.Warn("no transformer registered for kind", zap.String("kind", string(kind)))
			continue
		}

		fields := cfg.EntityFields(kind)
		tc := Context{
			CourseID: courseID,
			Policy:   ResolvePolicy(fields, knownFields(transformer)),
			Fields:   fields,
			Now:      now,
		}

		result := RunBatch(transformer, raws, tc, r.logger)
		r.logger.Info("entity batch transformed",
			zap.String("kind", string(kind)),
			zap.Int("source", result.SourceCount),
			zap.Int("transformed", result.TransformedCount),
			zap.Int("skipped", result.SkippedCount),
			zap.Bool("success", result.Success),
			zap.Duration("elapsed", result.Elapsed))
		results[kind] = result
	}

	return results
}
