package canvas

import (
	"encoding/json"
	"fmt"

	"github.com/noah-isme/canvas-sync-api/internal/models"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
)

// Record is one raw entity payload as delivered by the fetch step. Values
// stay untyped until they cross the transformer boundary, where they are
// validated and coerced into strict normalized records.
type Record = map[string]any

// Document is the nested payload produced by the external Canvas fetch
// script: one course object, enrollment-shaped student records, and modules
// whose items are assignment-like. Enrollments are implicit and derived
// from students plus the course id.
type Document struct {
	Success  bool       `json:"success"`
	Course   Record     `json:"course"`
	Students []Record   `json:"students"`
	Modules  []Record   `json:"modules"`
	Error    *FetchFail `json:"error,omitempty"`
}

// FetchFail carries the failure message of an unsuccessful fetch.
type FetchFail struct {
	Message string `json:"message"`
}

// Parse decodes raw JSON bytes into a Document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed canvas document")
	}
	return &doc, nil
}

// Validate enforces the document invariants: a truthy success flag and a
// course object carrying a non-null id. Either failing is a hard
// validation error that short-circuits the sync before any transform.
func (d *Document) Validate() error {
	if d == nil {
		return appErrors.Clone(appErrors.ErrValidation, "empty canvas document")
	}
	if !d.Success {
		msg := "canvas fetch reported failure"
		if d.Error != nil && d.Error.Message != "" {
			msg = fmt.Sprintf("canvas fetch reported failure: %s", d.Error.Message)
		}
		return appErrors.Clone(appErrors.ErrValidation, msg)
	}
	if d.Course == nil {
		return appErrors.Clone(appErrors.ErrValidation, "canvas document missing course object")
	}
	if d.Course["id"] == nil {
		return appErrors.Clone(appErrors.ErrValidation, "canvas course missing id")
	}
	return nil
}

// CourseID extracts the course id from the document, if present.
func (d *Document) CourseID() (int64, bool) {
	if d == nil || d.Course == nil {
		return 0, false
	}
	return AsInt64(d.Course["id"])
}

// RecordsByKind reshapes the nested document into flat per-kind raw record
// lists for registry dispatch. Assignment records are paired with their
// module context by the transformer's context, so module items are emitted
// with the owning module id attached under "_module_id". Enrollment records
// are the student records themselves; the enrollment transformer reads the
// ids it needs and takes the course id from context.
func (d *Document) RecordsByKind() map[models.EntityKind][]Record {
	out := make(map[models.EntityKind][]Record, 4)
	if d.Course != nil {
		out[models.KindCourse] = []Record{d.Course}
	}
	out[models.KindStudent] = append([]Record{}, d.Students...)
	out[models.KindEnrollment] = append([]Record{}, d.Students...)

	var items []Record
	for _, module := range d.Modules {
		moduleID, _ := AsInt64(module["id"])
		rawItems, _ := module["items"].([]any)
		for _, rawItem := range rawItems {
			item, ok := rawItem.(map[string]any)
			if !ok {
				continue
			}
			clone := make(Record, len(item)+1)
			for k, v := range item {
				clone[k] = v
			}
			clone["_module_id"] = moduleID
			items = append(items, clone)
		}
	}
	out[models.KindAssignment] = items
	return out
}

// AsInt64 coerces the loosely-typed numeric values JSON decoding produces
// (float64, json.Number, numeric strings) into an int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		var i int64
		if _, err := fmt.Sscanf(n, "%d", &i); err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// AsFloat64 coerces loosely-typed numeric values into a float64.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsString coerces a value into a string, reporting whether it was one.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AsBool coerces a value into a bool.
func AsBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}
