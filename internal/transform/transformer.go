package transform

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// Context carries the per-call surroundings of a transform: the course (and
// module, for assignments) being iterated, the resolved field policy, the
// entity's field settings, and the reference time stamped into last_synced.
type Context struct {
	CourseID int64
	ModuleID int64
	Policy   FieldPolicy
	Fields   map[string]bool
	Now      time.Time
}

// ReferenceTime returns the context time, defaulting to the current UTC
// instant.
func (tc Context) ReferenceTime() time.Time {
	if tc.Now.IsZero() {
		return time.Now().UTC()
	}
	return tc.Now
}

// Transformer converts one raw Canvas record into a normalized typed record.
//
// Transform is pure: it returns (nil, nil) to signal "skip this record" for
// skippable conditions and reserves errors for genuine per-record failures,
// which the batch runner catches, logs and appends to the result without
// aborting the batch.
type Transformer interface {
	Kind() models.EntityKind
	RequiredFields() []string
	OptionalFields() []string
	Transform(raw canvas.Record, tc Context) (models.SyncRecord, error)
}

// EntityConfigValidator is an optional transformer hook giving per-entity
// configuration advice (warnings only, never errors).
type EntityConfigValidator interface {
	ValidateEntityConfig(fields map[string]bool) []string
}

// Result aggregates the outcome of transforming one entity kind's batch.
type Result struct {
	Success          bool
	Records          []models.SyncRecord
	SourceCount      int
	TransformedCount int
	SkippedCount     int
	FilteredFields   map[string]struct{}
	Errors           []string
	Warnings         []string
	Elapsed          time.Duration
}

// evaluateSuccess applies the batch success policy: a batch passes when at
// least half of its source records transformed, or when nothing was
// skipped. Zero successes out of a nonzero source is always a failure.
func (r *Result) evaluateSuccess() {
	if r.SourceCount == 0 {
		r.Success = true
		return
	}
	if r.TransformedCount == 0 {
		r.Success = false
		return
	}
	r.Success = r.SkippedCount == 0 || r.TransformedCount*2 >= r.SourceCount
}

// knownFields builds the union of a transformer's required and optional
// field names.
func knownFields(t Transformer) map[string]struct{} {
	known := make(map[string]struct{})
	for _, f := range t.RequiredFields() {
		known[f] = struct{}{}
	}
	for _, f := range t.OptionalFields() {
		known[f] = struct{}{}
	}
	return known
}

// filterRecord applies the field policy to a raw record before per-kind
// extraction. Required fields and the entity's preserved structural
// containers survive regardless of filtering. Returns the filtered record
// and the set of field names that were dropped.
func filterRecord(raw canvas.Record, tc Context, required []string, preserve []string) (canvas.Record, []string) {
	if tc.Policy == PolicyPermissive {
		return raw, nil
	}
	keep := make(map[string]struct{}, len(required)+len(preserve))
	for _, f := range required {
		keep[f] = struct{}{}
	}
	for _, f := range preserve {
		keep[f] = struct{}{}
	}
	filtered := make(canvas.Record, len(raw))
	var dropped []string
	for key, value := range raw {
		if _, ok := keep[key]; ok {
			filtered[key] = value
			continue
		}
		if tc.Fields[key] {
			filtered[key] = value
			continue
		}
		dropped = append(dropped, key)
	}
	return filtered, dropped
}

// RunBatch transforms a batch of raw records through one transformer,
// applying required-field validation per record. One bad record never
// aborts the batch: it is skipped and reported in the result's errors.
func RunBatch(t Transformer, raws []canvas.Record, tc Context, logger *zap.Logger) *Result {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	result := &Result{
		SourceCount:    len(raws),
		FilteredFields: make(map[string]struct{}),
	}

	for i, raw := range raws {
		if missing := missingRequired(raw, t.RequiredFields()); missing != "" {
			result.SkippedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s record %d missing required field %q", t.Kind(), i, missing))
			continue
		}

		record, err := safeTransform(t, raw, tc)
		if err != nil {
			result.SkippedCount++
			result.Errors = append(result.Errors, fmt.Sprintf("%s record %d: %v", t.Kind(), i, err))
			logger.Warn("record transform failed",
				zap.String("kind", string(t.Kind())),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if record == nil {
			result.SkippedCount++
			continue
		}
		result.Records = append(result.Records, record)
		result.TransformedCount++
	}

	if tc.Policy == PolicyExplicit {
		for _, f := range t.OptionalFields() {
			if !tc.Fields[f] {
				result.FilteredFields[f] = struct{}{}
			}
		}
	}

	result.Elapsed = time.Since(start)
	result.evaluateSuccess()
	return result
}

// safeTransform shields the batch from panicking transformers.
func safeTransform(t Transformer, raw canvas.Record, tc Context) (record models.SyncRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = fmt.Errorf("panic in %s transformer: %v", t.Kind(), r)
		}
	}()
	return t.Transform(raw, tc)
}

func missingRequired(raw canvas.Record, required []string) string {
	for _, field := range required {
		if v, ok := raw[field]; !ok || v == nil {
			return field
		}
	}
	return ""
}
