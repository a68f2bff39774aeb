package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

func newTestValidator() *ConfigValidator {
	return NewConfigValidator(NewDefaultRegistry(zap.NewNop()))
}

func TestValidateDefaultConfig(t *testing.T) {
	report := newTestValidator().Validate(DefaultConfig())

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.PerformanceBand)
}

func TestValidateNilConfig(t *testing.T) {
	report := newTestValidator().Validate(nil)
	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
}

func TestValidateUnknownEntityWarns(t *testing.T) {
	cfg := &Config{Entities: map[string]bool{"teachers": true}}
	report := newTestValidator().Validate(cfg)

	assert.True(t, report.Valid)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], `unknown entity "teachers"`)
}

func TestValidateEnabledWithoutTransformerErrors(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	registry.Register(NewCourseTransformer(nil))
	v := NewConfigValidator(registry)

	cfg := &Config{Entities: map[string]bool{string(models.KindStudent): true}}
	report := v.Validate(cfg)

	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "no transformer is registered")
}

func TestValidateModulesNeedNoTransformer(t *testing.T) {
	cfg := &Config{Entities: map[string]bool{"modules": true}}
	report := newTestValidator().Validate(cfg)
	assert.True(t, report.Valid)
}

func TestValidateRequiredFieldDisabledErrors(t *testing.T) {
	cfg := &Config{Fields: map[string]map[string]bool{
		string(models.KindCourse): {"name": false},
	}}
	report := newTestValidator().Validate(cfg)

	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "courses.name is required")
}

func TestValidateUnknownFieldWarns(t *testing.T) {
	cfg := &Config{Fields: map[string]map[string]bool{
		string(models.KindCourse): {"sis_import_id": true, "basicInfo": true},
	}}
	report := newTestValidator().Validate(cfg)

	assert.True(t, report.Valid)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "unknown field courses.sis_import_id")
}

func TestValidateEnrollmentDependencyWarning(t *testing.T) {
	cfg := &Config{Entities: map[string]bool{
		string(models.KindStudent):    false,
		string(models.KindEnrollment): true,
	}}
	report := newTestValidator().Validate(cfg)

	assert.True(t, report.Valid)
	found := false
	for _, w := range report.Warnings {
		if strings.Contains(w, "students are disabled") {
			found = true
		}
	}
	assert.True(t, found, "expected dependency warning, got %v", report.Warnings)
}

func TestValidatePerformanceEstimate(t *testing.T) {
	report := newTestValidator().Validate(DefaultConfig())
	// Four enabled entities and no field flags.
	assert.InDelta(t, 0.6, report.PerformanceScore, 1e-9)
	assert.Equal(t, BandHeavy, report.PerformanceBand)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[len(report.Warnings)-1], "expect a slower sync")

	light := &Config{Entities: map[string]bool{
		string(models.KindCourse):     true,
		string(models.KindStudent):    false,
		string(models.KindAssignment): false,
		string(models.KindEnrollment): false,
	}}
	report = newTestValidator().Validate(light)
	assert.Equal(t, BandVeryLight, report.PerformanceBand)
}
