package transform

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// assignmentTypes maps case-insensitive raw type values to the fixed
// vocabulary.
var assignmentTypes = map[string]models.AssignmentType{
	"assignment":    models.AssignmentTypeAssignment,
	"quiz":          models.AssignmentTypeQuiz,
	"discussion":    models.AssignmentTypeDiscussion,
	"externaltool":  models.AssignmentTypeExternalTool,
	"external_tool": models.AssignmentTypeExternalTool,
	"page":          models.AssignmentTypePage,
}

// AssignmentTransformer normalizes module items into assignment records.
// Course and module ids come from the iteration context, not the payload,
// unless the payload explicitly carries its own.
type AssignmentTransformer struct {
	logger *zap.Logger
}

// NewAssignmentTransformer constructs the transformer.
func NewAssignmentTransformer(logger *zap.Logger) *AssignmentTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentTransformer{logger: logger}
}

// Kind implements Transformer.
func (t *AssignmentTransformer) Kind() models.EntityKind { return models.KindAssignment }

// RequiredFields implements Transformer.
func (t *AssignmentTransformer) RequiredFields() []string { return []string{"id"} }

// OptionalFields implements Transformer.
func (t *AssignmentTransformer) OptionalFields() []string {
	return []string{
		"title", "name", "type", "assignment_type",
		"points_possible", "content_details", "published",
		"url", "html_url", "position", "due_at", "updated_at",
		"module_id", "course_id",
	}
}

// Transform normalizes one module item.
func (t *AssignmentTransformer) Transform(raw canvas.Record, tc Context) (models.SyncRecord, error) {
	raw, _ = filterRecord(raw, tc, t.RequiredFields(), []string{"_module_id", "content_details"})

	id, ok := canvas.AsInt64(raw["id"])
	if !ok {
		return nil, fmt.Errorf("assignment id %v is not numeric", raw["id"])
	}

	record := models.AssignmentRecord{
		ID:             id,
		CourseID:       contextID(raw, "course_id", tc.CourseID),
		ModuleID:       moduleID(raw, tc),
		Name:           titleOrName(raw),
		AssignmentType: string(NormalizeAssignmentType(rawType(raw))),
		LastSynced:     tc.ReferenceTime(),
	}

	if points, ok := pointsPossible(raw); ok {
		record.PointsPossible = &points
	}
	if published, ok := canvas.AsBool(raw["published"]); ok {
		record.Published = &published
	}
	if url := urlField(raw); url != "" {
		record.URL = &url
	}
	if pos, ok := canvas.AsInt64(raw["position"]); ok {
		p := int(pos)
		record.Position = &p
	}

	record.DueAt, _ = timeField(raw["due_at"], "due_at")
	record.UpdatedAt, _ = timeField(raw["updated_at"], "updated_at")

	return record, nil
}

// titleOrName prefers title over name; module items use either.
func titleOrName(raw canvas.Record) string {
	if title, ok := canvas.AsString(raw["title"]); ok && title != "" {
		return title
	}
	name, _ := canvas.AsString(raw["name"])
	return name
}

// rawType reads the type field under either of its two names, preferring
// assignment_type.
func rawType(raw canvas.Record) string {
	if v, ok := canvas.AsString(raw["assignment_type"]); ok && v != "" {
		return v
	}
	v, _ := canvas.AsString(raw["type"])
	return v
}

// NormalizeAssignmentType folds a free-text type value into the fixed
// vocabulary. Unrecognized values keep their title-cased form; absent
// values default to Assignment.
func NormalizeAssignmentType(raw string) models.AssignmentType {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.AssignmentTypeAssignment
	}
	if normalized, ok := assignmentTypes[strings.ToLower(trimmed)]; ok {
		return normalized
	}
	return models.AssignmentType(titleCase(trimmed))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// pointsPossible prefers content_details.points_possible over the
// top-level field.
func pointsPossible(raw canvas.Record) (float64, bool) {
	if details, ok := raw["content_details"].(map[string]any); ok {
		if points, ok := canvas.AsFloat64(details["points_possible"]); ok {
			return points, true
		}
	}
	return canvas.AsFloat64(raw["points_possible"])
}

func urlField(raw canvas.Record) string {
	if url, ok := canvas.AsString(raw["url"]); ok && url != "" {
		return url
	}
	url, _ := canvas.AsString(raw["html_url"])
	return url
}

// contextID takes the id from the payload when explicitly present,
// otherwise the iteration context.
func contextID(raw canvas.Record, field string, fromContext int64) int64 {
	if v, ok := canvas.AsInt64(raw[field]); ok {
		return v
	}
	return fromContext
}

// moduleID resolves payload module_id first, then the module the item was
// observed under, then the call context.
func moduleID(raw canvas.Record, tc Context) int64 {
	if v, ok := canvas.AsInt64(raw["module_id"]); ok {
		return v
	}
	if v, ok := canvas.AsInt64(raw["_module_id"]); ok {
		return v
	}
	return tc.ModuleID
}
