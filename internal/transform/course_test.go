package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func testContext() Context {
	return Context{CourseID: 101, Now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func TestCourseTransform(t *testing.T) {
	tr := NewCourseTransformer(zap.NewNop())

	raw := canvas.Record{
		"id":          float64(101),
		"name":        "Intro to Go",
		"course_code": "GO-101",
		"calendar":    map[string]any{"ics": "https://canvas.example.com/feeds/101.ics"},
		"start_at":    "2024-01-08T08:00:00Z",
		"updated_at":  "2024-03-15T14:30:00Z",
	}

	record, err := tr.Transform(raw, testContext())
	require.NoError(t, err)

	course, ok := record.(models.CourseRecord)
	require.True(t, ok)
	assert.Equal(t, int64(101), course.ID)
	assert.Equal(t, "Intro to Go", course.Name)
	require.NotNil(t, course.CourseCode)
	assert.Equal(t, "GO-101", *course.CourseCode)
	assert.Equal(t, "https://canvas.example.com/feeds/101.ics", course.CalendarICS)
	require.NotNil(t, course.UpdatedAt)
	assert.Equal(t, time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC), *course.UpdatedAt)
	assert.Equal(t, testContext().Now, course.LastSynced)
}

func TestCourseTransformMissingCalendarDefaultsEmpty(t *testing.T) {
	tr := NewCourseTransformer(nil)

	record, err := tr.Transform(canvas.Record{"id": float64(101), "name": "Intro to Go"}, testContext())
	require.NoError(t, err)

	course := record.(models.CourseRecord)
	assert.Equal(t, "", course.CalendarICS)
	assert.Nil(t, course.CourseCode)
	assert.Nil(t, course.StartAt)
}

func TestCourseTransformRejectsBadIdentity(t *testing.T) {
	tr := NewCourseTransformer(nil)

	_, err := tr.Transform(canvas.Record{"id": "abc", "name": "Intro to Go"}, testContext())
	assert.Error(t, err)

	_, err = tr.Transform(canvas.Record{"id": float64(101), "name": ""}, testContext())
	assert.Error(t, err)
}

func TestCourseTransformUnparsableTimestampBecomesNil(t *testing.T) {
	tr := NewCourseTransformer(zap.NewNop())

	raw := canvas.Record{
		"id":       float64(101),
		"name":     "Intro to Go",
		"start_at": "not-a-date",
	}
	record, err := tr.Transform(raw, testContext())
	require.NoError(t, err)
	assert.Nil(t, record.(models.CourseRecord).StartAt)
}

func TestCourseTransformExplicitFiltering(t *testing.T) {
	tr := NewCourseTransformer(nil)

	raw := canvas.Record{
		"id":          float64(101),
		"name":        "Intro to Go",
		"course_code": "GO-101",
		"start_at":    "2024-01-08T08:00:00Z",
	}
	tc := testContext()
	tc.Policy = PolicyExplicit
	tc.Fields = map[string]bool{"course_code": true}

	record, err := tr.Transform(raw, tc)
	require.NoError(t, err)

	course := record.(models.CourseRecord)
	// id and name are required and always survive filtering.
	assert.Equal(t, int64(101), course.ID)
	require.NotNil(t, course.CourseCode)
	assert.Nil(t, course.StartAt)
}
