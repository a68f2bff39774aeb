package transform

import (
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// LegacyStudentAdapter reshapes the canonical student transformer's output
// into the record shape pre-registry consumers expect: integer 0-100
// scores instead of two-decimal floats.
//
// It is an adapter over the canonical transformer, not a parallel
// implementation, so the normalization rule sets cannot drift. The
// precision divergence itself is preserved on purpose: which consumers
// depend on which precision has not been confirmed, so neither side may be
// unified into the other.
type LegacyStudentAdapter struct {
	inner  *StudentTransformer
	logger *zap.Logger
}

// NewLegacyStudentAdapter constructs the adapter around a canonical
// student transformer.
func NewLegacyStudentAdapter(inner *StudentTransformer, logger *zap.Logger) *LegacyStudentAdapter {
	if inner == nil {
		inner = NewStudentTransformer(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyStudentAdapter{inner: inner, logger: logger}
}

// TransformStudents runs the canonical transform over a batch and converts
// each surviving record to the legacy shape. Skips and failures follow the
// canonical transformer's behavior.
func (a *LegacyStudentAdapter) TransformStudents(raws []canvas.Record, tc Context) []models.LegacyStudentRecord {
	out := make([]models.LegacyStudentRecord, 0, len(raws))
	for _, raw := range raws {
		record, err := a.inner.Transform(raw, tc)
		if err != nil {
			a.logger.Warn("legacy student transform failed", zap.Error(err))
			continue
		}
		if record == nil {
			continue
		}
		student, ok := record.(models.StudentRecord)
		if !ok {
			continue
		}
		out = append(out, toLegacy(student))
	}
	return out
}

// toLegacy converts a canonical student record to the legacy integer-score
// shape.
func toLegacy(s models.StudentRecord) models.LegacyStudentRecord {
	legacy := models.LegacyStudentRecord{
		ID:         s.ID,
		UserID:     s.UserID,
		Name:       s.Name,
		LoginID:    s.LoginID,
		Email:      s.Email,
		LastSynced: s.LastSynced,
	}
	if s.CurrentScore != nil {
		legacy.CurrentScore = legacyRound(*s.CurrentScore)
	}
	if s.FinalScore != nil {
		legacy.FinalScore = legacyRound(*s.FinalScore)
	}
	return legacy
}

// legacyRound clamps scores into the integer 0-100 range legacy consumers
// were built against.
func legacyRound(v float64) int {
	rounded := int(math.Round(v))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
