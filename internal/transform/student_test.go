package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/canvas-sync-api/internal/canvas"
	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func TestStudentTransformNestedContainers(t *testing.T) {
	tr := NewStudentTransformer(nil)

	raw := canvas.Record{
		"id": float64(501),
		"user": map[string]any{
			"name":     "Ada Lovelace",
			"login_id": "ada",
			"email":    "ada@example.com",
		},
		"grades": map[string]any{
			"current_score": 85.555,
			"final_score":   91.0,
			"current_grade": "A-",
		},
	}

	record, err := tr.Transform(raw, testContext())
	require.NoError(t, err)

	student, ok := record.(models.StudentRecord)
	require.True(t, ok)
	assert.Equal(t, int64(501), student.ID)
	assert.Equal(t, int64(501), student.UserID)
	assert.Equal(t, "Ada Lovelace", student.Name)
	assert.Equal(t, "ada", student.LoginID)
	require.NotNil(t, student.CurrentScore)
	assert.Equal(t, 85.56, *student.CurrentScore)
	require.NotNil(t, student.FinalScore)
	assert.Equal(t, 91.0, *student.FinalScore)
	require.NotNil(t, student.CurrentGrade)
	assert.Equal(t, "A-", *student.CurrentGrade)
}

func TestStudentTransformScoreKeepsTwoDecimals(t *testing.T) {
	tr := NewStudentTransformer(nil)

	record, err := tr.Transform(canvas.Record{
		"id":     float64(503),
		"grades": map[string]any{"current_score": 85.6},
	}, testContext())
	require.NoError(t, err)

	student := record.(models.StudentRecord)
	require.NotNil(t, student.CurrentScore)
	assert.Equal(t, 85.6, *student.CurrentScore)
}

func TestStudentTransformFlatFieldsAndFallbacks(t *testing.T) {
	tr := NewStudentTransformer(nil)

	record, err := tr.Transform(canvas.Record{"user_id": float64(502)}, testContext())
	require.NoError(t, err)

	student := record.(models.StudentRecord)
	assert.Equal(t, int64(502), student.ID)
	assert.Equal(t, "Unknown", student.Name)
	assert.Equal(t, "unknown", student.LoginID)
	assert.Equal(t, "", student.Email)
	require.NotNil(t, student.CurrentScore)
	assert.Equal(t, 0.0, *student.CurrentScore)
	assert.Nil(t, student.CurrentGrade)
}

func TestStudentTransformIdentityDivergenceSkips(t *testing.T) {
	tr := NewStudentTransformer(nil)

	record, err := tr.Transform(canvas.Record{"id": float64(501), "user_id": float64(999)}, testContext())
	require.NoError(t, err)
	assert.Nil(t, record)

	record, err = tr.Transform(canvas.Record{"name": "no identity"}, testContext())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStudentTransformExplicitFilteringPreservesContainers(t *testing.T) {
	tr := NewStudentTransformer(nil)

	raw := canvas.Record{
		"id":               float64(501),
		"user":             map[string]any{"name": "Ada Lovelace"},
		"grades":           map[string]any{"current_score": 72.0},
		"last_activity_at": "2024-03-10T09:00:00Z",
	}
	tc := testContext()
	tc.Policy = PolicyExplicit
	tc.Fields = map[string]bool{"id": true}

	record, err := tr.Transform(raw, tc)
	require.NoError(t, err)

	student := record.(models.StudentRecord)
	// The user and grades containers survive filtering even when not
	// individually enabled; flat optional fields do not.
	assert.Equal(t, "Ada Lovelace", student.Name)
	require.NotNil(t, student.CurrentScore)
	assert.Equal(t, 72.0, *student.CurrentScore)
	assert.Nil(t, student.LastActivity)
}

func TestStudentValidateEntityConfig(t *testing.T) {
	tr := NewStudentTransformer(nil)

	assert.Empty(t, tr.ValidateEntityConfig(map[string]bool{"basicInfo": true}))

	warnings := tr.ValidateEntityConfig(map[string]bool{"analytics": true})
	assert.Len(t, warnings, 2)
}
