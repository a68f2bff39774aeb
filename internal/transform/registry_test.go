package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func TestRegistryLookupAndKinds(t *testing.T) {
	r := NewDefaultRegistry(zap.NewNop())

	for _, kind := range models.SyncOrder {
		_, ok := r.Lookup(kind)
		assert.True(t, ok, "missing transformer for %s", kind)
	}
	assert.Len(t, r.Kinds(), 4)

	_, ok := r.Lookup(models.EntityKind("modules"))
	assert.False(t, ok)
}

func TestRegistryReRegisterReplaces(t *testing.T) {
	r := NewRegistry(nil)
	first := NewCourseTransformer(nil)
	second := NewCourseTransformer(nil)

	r.Register(first)
	r.Register(second)

	got, ok := r.Lookup(models.KindCourse)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestTransformEntities(t *testing.T) {
	r := NewDefaultRegistry(zap.NewNop())

	byKind := map[models.EntityKind][]canvas.Record{
		models.KindCourse:     {{"id": float64(101), "name": "Intro to Go"}},
		models.KindStudent:    {{"id": float64(501), "name": "Ada"}},
		models.KindEnrollment: {{"id": float64(501), "enrollment_state": "active"}},
	}

	results := r.TransformEntities(byKind, DefaultConfig(), 101)

	require.Contains(t, results, models.KindCourse)
	require.Contains(t, results, models.KindStudent)
	require.Contains(t, results, models.KindEnrollment)
	assert.NotContains(t, results, models.KindAssignment)

	enrollment := results[models.KindEnrollment].Records[0].(models.EnrollmentRecord)
	assert.Equal(t, int64(101), enrollment.CourseID)
	assert.Equal(t, int64(501), enrollment.StudentID)
}

func TestTransformEntitiesEmptyDocument(t *testing.T) {
	doc, err := canvas.Parse([]byte(`{"success": true, "course": {"id": 1, "name": "X"}, "students": [], "modules": []}`))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	r := NewDefaultRegistry(zap.NewNop())
	results := r.TransformEntities(doc.RecordsByKind(), DefaultConfig(), 1)

	course := results[models.KindCourse]
	require.True(t, course.Success)
	require.Len(t, course.Records, 1)
	assert.Equal(t, "", course.Records[0].(models.CourseRecord).CalendarICS)

	for _, kind := range []models.EntityKind{models.KindStudent, models.KindAssignment, models.KindEnrollment} {
		if res, ok := results[kind]; ok {
			assert.True(t, res.Success)
			assert.Empty(t, res.Records)
		}
	}
}

func TestTransformEntitiesSkipsDisabledKinds(t *testing.T) {
	r := NewDefaultRegistry(zap.NewNop())

	cfg := &Config{Entities: map[string]bool{string(models.KindAssignment): false}}
	byKind := map[models.EntityKind][]canvas.Record{
		models.KindCourse:     {{"id": float64(101), "name": "Intro to Go"}},
		models.KindAssignment: {{"id": float64(9001)}},
	}

	results := r.TransformEntities(byKind, cfg, 101)
	assert.Contains(t, results, models.KindCourse)
	assert.NotContains(t, results, models.KindAssignment)
}

func TestTransformEntitiesEnrollmentsFollowStudents(t *testing.T) {
	r := NewDefaultRegistry(zap.NewNop())

	cfg := &Config{Entities: map[string]bool{
		string(models.KindStudent):    false,
		string(models.KindEnrollment): true,
	}}
	byKind := map[models.EntityKind][]canvas.Record{
		models.KindStudent:    {{"id": float64(501)}},
		models.KindEnrollment: {{"id": float64(501)}},
	}

	results := r.TransformEntities(byKind, cfg, 101)
	assert.NotContains(t, results, models.KindStudent)
	assert.NotContains(t, results, models.KindEnrollment)
}

func TestConfigEntityEnabledDefaults(t *testing.T) {
	var nilCfg *Config
	assert.True(t, nilCfg.EntityEnabled(models.KindCourse))

	cfg := &Config{}
	assert.True(t, cfg.EntityEnabled(models.KindEnrollment))

	cfg = &Config{Entities: map[string]bool{string(models.KindCourse): false}}
	assert.False(t, cfg.EntityEnabled(models.KindCourse))
	assert.True(t, cfg.EntityEnabled(models.KindStudent))
}
