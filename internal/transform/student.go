package transform

import (
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// StudentTransformer normalizes enrollment-shaped student records. Student
// payloads are the least consistent part of a Canvas document: identity may
// live in id or user_id, profile fields may be nested under a user object
// or flattened, and scores may sit inside a grades container.
type StudentTransformer struct {
	logger *zap.Logger
}

// NewStudentTransformer constructs the transformer.
func NewStudentTransformer(logger *zap.Logger) *StudentTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentTransformer{logger: logger}
}

// Kind implements Transformer.
func (t *StudentTransformer) Kind() models.EntityKind { return models.KindStudent }

// RequiredFields implements Transformer. Identity resolves from id or
// user_id with fallback, so neither can be individually required.
func (t *StudentTransformer) RequiredFields() []string { return nil }

// OptionalFields implements Transformer.
func (t *StudentTransformer) OptionalFields() []string {
	return []string{
		"id", "user_id", "user", "grades",
		"name", "login_id", "email",
		"current_score", "final_score", "current_grade",
		"last_activity_at", "updated_at",
	}
}

// structuralContainers are always preserved through explicit field
// filtering: the nested user and grades sub-objects carry the actual leaf
// fields extracted downstream, so dropping them would silently lose data
// the caller never meant to exclude.
var structuralContainers = []string{"user", "grades"}

// ValidateEntityConfig implements EntityConfigValidator with
// student-specific configuration advice.
func (t *StudentTransformer) ValidateEntityConfig(fields map[string]bool) []string {
	var warnings []string
	if fields["analytics"] && !fields["basicInfo"] {
		warnings = append(warnings, "students: analytics fields enabled without basicInfo; analytics rollups reference basic identity fields")
	}
	if fields["analytics"] {
		warnings = append(warnings, "students: analytics collection enabled; review privacy requirements before storing activity data")
	}
	return warnings
}

// Transform normalizes one raw student record. The record is skipped (nil,
// nil) when no identity can be resolved or when id and user_id disagree.
// Name, login and email always resolve to non-null defaults.
func (t *StudentTransformer) Transform(raw canvas.Record, tc Context) (models.SyncRecord, error) {
	raw, _ = filterRecord(raw, tc, t.RequiredFields(), structuralContainers)

	id, userID, ok := resolveStudentIdentity(raw)
	if !ok {
		t.logger.Debug("student record skipped: unresolvable identity",
			zap.Any("id", raw["id"]), zap.Any("user_id", raw["user_id"]))
		return nil, nil
	}

	user, _ := raw["user"].(map[string]any)
	grades, _ := raw["grades"].(map[string]any)

	record := models.StudentRecord{
		ID:         id,
		UserID:     userID,
		Name:       stringWithFallback(user, raw, "name", "Unknown"),
		LoginID:    stringWithFallback(user, raw, "login_id", "unknown"),
		Email:      stringWithFallback(user, raw, "email", ""),
		LastSynced: tc.ReferenceTime(),
	}

	current := roundScore(scoreValue(grades, raw, "current_score"))
	final := roundScore(scoreValue(grades, raw, "final_score"))
	record.CurrentScore = &current
	record.FinalScore = &final

	if grade, ok := canvas.AsString(gradeValue(grades, raw, "current_grade")); ok && grade != "" {
		record.CurrentGrade = &grade
	}

	record.LastActivity, _ = timeField(raw["last_activity_at"], "last_activity_at")
	record.UpdatedAt, _ = timeField(raw["updated_at"], "updated_at")

	return record, nil
}

// resolveStudentIdentity extracts the natural key: id falling back to
// user_id, with both resolving to the same integer when both are present.
func resolveStudentIdentity(raw canvas.Record) (id, userID int64, ok bool) {
	rawID, hasID := canvas.AsInt64(raw["id"])
	rawUserID, hasUserID := canvas.AsInt64(raw["user_id"])

	switch {
	case hasID && hasUserID:
		if rawID != rawUserID {
			return 0, 0, false
		}
		return rawID, rawUserID, true
	case hasID:
		return rawID, rawID, true
	case hasUserID:
		return rawUserID, rawUserID, true
	default:
		return 0, 0, false
	}
}

// stringWithFallback reads a field from the nested user object first, then
// the flat record, then the supplied default. Never returns through as nil.
func stringWithFallback(user map[string]any, raw canvas.Record, field, fallback string) string {
	if user != nil {
		if s, ok := canvas.AsString(user[field]); ok && s != "" {
			return s
		}
	}
	if s, ok := canvas.AsString(raw[field]); ok && s != "" {
		return s
	}
	return fallback
}

// scoreValue prefers the grades container over flat fields and defaults
// missing or invalid inputs to 0 rather than null.
func scoreValue(grades map[string]any, raw canvas.Record, field string) float64 {
	if grades != nil {
		if f, ok := canvas.AsFloat64(grades[field]); ok {
			return f
		}
	}
	if f, ok := canvas.AsFloat64(raw[field]); ok {
		return f
	}
	return 0
}

func gradeValue(grades map[string]any, raw canvas.Record, field string) any {
	if grades != nil {
		if v, ok := grades[field]; ok {
			return v
		}
	}
	return raw[field]
}

// roundScore applies the two-decimal rounding this transformer's consumers
// expect. The legacy adapter applies integer rounding instead; the
// precision divergence is deliberate and load-bearing for its consumers.
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
