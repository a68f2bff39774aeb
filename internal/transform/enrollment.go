package transform

import (
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// enrollmentStatuses maps free-text state values into the fixed vocabulary.
var enrollmentStatuses = map[string]models.EnrollmentStatus{
	"active":    models.EnrollmentStatusActive,
	"invited":   models.EnrollmentStatusInvited,
	"inactive":  models.EnrollmentStatusInactive,
	"completed": models.EnrollmentStatusCompleted,
	"deleted":   models.EnrollmentStatusDeleted,
	"rejected":  models.EnrollmentStatusRejected,
}

// EnrollmentTransformer derives enrollment records from the document's
// student list. Enrollments are implicit in a Canvas document: every
// student record implies one enrollment in the course being synced.
type EnrollmentTransformer struct {
	logger *zap.Logger
}

// NewEnrollmentTransformer constructs the transformer.
func NewEnrollmentTransformer(logger *zap.Logger) *EnrollmentTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentTransformer{logger: logger}
}

// Kind implements Transformer.
func (t *EnrollmentTransformer) Kind() models.EntityKind { return models.KindEnrollment }

// RequiredFields implements Transformer. Identity falls back between id
// and user_id, so neither can be individually required.
func (t *EnrollmentTransformer) RequiredFields() []string { return nil }

// OptionalFields implements Transformer.
func (t *EnrollmentTransformer) OptionalFields() []string {
	return []string{"id", "user_id", "course_id", "enrollment_state", "state", "status", "created_at", "updated_at"}
}

// Transform derives one enrollment from a student record. The course id
// comes from the transformation context when supplied, else from the record
// itself; with neither the record is skipped.
func (t *EnrollmentTransformer) Transform(raw canvas.Record, tc Context) (models.SyncRecord, error) {
	raw, _ = filterRecord(raw, tc, t.RequiredFields(), nil)

	studentID, ok := canvas.AsInt64(raw["id"])
	if !ok {
		if studentID, ok = canvas.AsInt64(raw["user_id"]); !ok {
			t.logger.Debug("enrollment skipped: no student id", zap.Any("record", raw["id"]))
			return nil, nil
		}
	}

	courseID := tc.CourseID
	if courseID == 0 {
		if courseID, ok = canvas.AsInt64(raw["course_id"]); !ok {
			t.logger.Debug("enrollment skipped: no course id", zap.Int64("student_id", studentID))
			return nil, nil
		}
	}

	record := models.EnrollmentRecord{
		StudentID:  studentID,
		CourseID:   courseID,
		Status:     NormalizeEnrollmentStatus(stateField(raw)),
		LastSynced: tc.ReferenceTime(),
	}
	record.EnrolledAt, _ = timeField(raw["created_at"], "created_at")
	record.UpdatedAt, _ = timeField(raw["updated_at"], "updated_at")

	return record, nil
}

// stateField reads the enrollment state under any of its aliases.
func stateField(raw canvas.Record) string {
	for _, key := range []string{"enrollment_state", "state", "status"} {
		if v, ok := canvas.AsString(raw[key]); ok && v != "" {
			return v
		}
	}
	return ""
}

// NormalizeEnrollmentStatus folds free-text states into the fixed
// vocabulary, defaulting unrecognized or absent values to active.
func NormalizeEnrollmentStatus(raw string) models.EnrollmentStatus {
	if status, ok := enrollmentStatuses[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return models.EnrollmentStatusActive
}
