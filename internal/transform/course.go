package transform

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// CourseTransformer normalizes the course object of a Canvas document.
type CourseTransformer struct {
	logger *zap.Logger
}

// NewCourseTransformer constructs the transformer.
func NewCourseTransformer(logger *zap.Logger) *CourseTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseTransformer{logger: logger}
}

// Kind implements Transformer.
func (t *CourseTransformer) Kind() models.EntityKind { return models.KindCourse }

// RequiredFields implements Transformer.
func (t *CourseTransformer) RequiredFields() []string { return []string{"id", "name"} }

// OptionalFields implements Transformer.
func (t *CourseTransformer) OptionalFields() []string {
	return []string{"course_code", "calendar", "start_at", "end_at", "created_at", "updated_at"}
}

// Transform normalizes one raw course record. The nested calendar.ics value
// flattens into calendar_ics, empty string when absent, never null.
// Timestamp fields parse leniently: unparsable values become nil with a
// logged warning rather than failing the record.
func (t *CourseTransformer) Transform(raw canvas.Record, tc Context) (models.SyncRecord, error) {
	raw, _ = filterRecord(raw, tc, t.RequiredFields(), nil)

	id, ok := canvas.AsInt64(raw["id"])
	if !ok {
		return nil, fmt.Errorf("course id %v is not numeric", raw["id"])
	}
	name, ok := canvas.AsString(raw["name"])
	if !ok || name == "" {
		return nil, fmt.Errorf("course %d has no usable name", id)
	}

	record := models.CourseRecord{
		ID:         id,
		Name:       name,
		LastSynced: tc.ReferenceTime(),
	}

	if code, ok := canvas.AsString(raw["course_code"]); ok {
		record.CourseCode = &code
	}

	record.CalendarICS = extractCalendarICS(raw["calendar"])

	record.StartAt = t.parseWarn(raw["start_at"], "start_at", id)
	record.EndAt = t.parseWarn(raw["end_at"], "end_at", id)
	record.CreatedAt = t.parseWarn(raw["created_at"], "created_at", id)
	record.UpdatedAt = t.parseWarn(raw["updated_at"], "updated_at", id)

	return record, nil
}

func (t *CourseTransformer) parseWarn(v any, field string, courseID int64) *time.Time {
	parsed, warning := timeField(v, field)
	if warning != "" {
		t.logger.Warn("course timestamp ignored",
			zap.Int64("course_id", courseID),
			zap.String("warning", warning))
	}
	return parsed
}

// extractCalendarICS digs the ics link out of the nested calendar object.
func extractCalendarICS(v any) string {
	calendar, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	ics, _ := canvas.AsString(calendar["ics"])
	return ics
}
