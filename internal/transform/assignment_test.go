package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func TestAssignmentTransform(t *testing.T) {
	tr := NewAssignmentTransformer(nil)

	raw := canvas.Record{
		"id":              float64(9001),
		"title":           "HW1: Variables",
		"name":            "ignored when title present",
		"type":            "quiz",
		"points_possible": float64(50),
		"published":       true,
		"html_url":        "https://canvas.example.com/assignments/9001",
		"position":        float64(3),
		"due_at":          "2024-03-20T23:59:00Z",
	}
	tc := testContext()
	tc.ModuleID = 7

	record, err := tr.Transform(raw, tc)
	require.NoError(t, err)

	assignment, ok := record.(models.AssignmentRecord)
	require.True(t, ok)
	assert.Equal(t, int64(9001), assignment.ID)
	assert.Equal(t, int64(101), assignment.CourseID)
	assert.Equal(t, int64(7), assignment.ModuleID)
	assert.Equal(t, "HW1: Variables", assignment.Name)
	assert.Equal(t, "Quiz", assignment.AssignmentType)
	require.NotNil(t, assignment.PointsPossible)
	assert.Equal(t, 50.0, *assignment.PointsPossible)
	require.NotNil(t, assignment.URL)
	assert.Equal(t, "https://canvas.example.com/assignments/9001", *assignment.URL)
	require.NotNil(t, assignment.Position)
	assert.Equal(t, 3, *assignment.Position)
	require.NotNil(t, assignment.DueAt)
}

func TestAssignmentTransformContentDetailsPoints(t *testing.T) {
	tr := NewAssignmentTransformer(nil)

	raw := canvas.Record{
		"id":              float64(9002),
		"name":            "Essay",
		"points_possible": float64(10),
		"content_details": map[string]any{"points_possible": float64(25)},
	}
	record, err := tr.Transform(raw, testContext())
	require.NoError(t, err)

	assignment := record.(models.AssignmentRecord)
	require.NotNil(t, assignment.PointsPossible)
	assert.Equal(t, 25.0, *assignment.PointsPossible)
}

func TestAssignmentTransformModuleIDPrecedence(t *testing.T) {
	tr := NewAssignmentTransformer(nil)
	tc := testContext()
	tc.ModuleID = 7

	// Payload module_id beats the observed module marker and context.
	record, err := tr.Transform(canvas.Record{"id": float64(1), "module_id": float64(42), "_module_id": float64(13)}, tc)
	require.NoError(t, err)
	assert.Equal(t, int64(42), record.(models.AssignmentRecord).ModuleID)

	// The observed module marker beats the call context.
	record, err = tr.Transform(canvas.Record{"id": float64(2), "_module_id": float64(13)}, tc)
	require.NoError(t, err)
	assert.Equal(t, int64(13), record.(models.AssignmentRecord).ModuleID)

	record, err = tr.Transform(canvas.Record{"id": float64(3)}, tc)
	require.NoError(t, err)
	assert.Equal(t, int64(7), record.(models.AssignmentRecord).ModuleID)
}

func TestNormalizeAssignmentType(t *testing.T) {
	assert.Equal(t, models.AssignmentTypeAssignment, NormalizeAssignmentType(""))
	assert.Equal(t, models.AssignmentTypeAssignment, NormalizeAssignmentType("Assignment"))
	assert.Equal(t, models.AssignmentTypeQuiz, NormalizeAssignmentType("QUIZ"))
	assert.Equal(t, models.AssignmentTypeExternalTool, NormalizeAssignmentType("external_tool"))
	assert.Equal(t, models.AssignmentTypeDiscussion, NormalizeAssignmentType(" discussion "))
	assert.Equal(t, models.AssignmentType("Survey"), NormalizeAssignmentType("SURVEY"))
}
