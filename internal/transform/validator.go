package transform

import (
	"fmt"
	"sort"

	"github.com/noah-isme/canvas-sync-api/internal/models"
)

// Known entity names accepted in a configuration's entities section.
// Modules carry no transformer of their own: their items are consumed as
// assignment context during document reshaping.
var knownEntityNames = map[string]struct{}{
	string(models.KindCourse):     {},
	string(models.KindStudent):    {},
	string(models.KindAssignment): {},
	string(models.KindEnrollment): {},
	"modules":                     {},
}

// Performance bands for the advisory cost estimate.
const (
	BandVeryLight = "very_light"
	BandLight     = "light"
	BandModerate  = "moderate"
	BandHeavy     = "heavy"
	BandVeryHeavy = "very_heavy"
)

// ValidationReport is the outcome of validating a configuration before a
// sync runs. Errors make the configuration unusable; warnings and the
// performance estimate are advisory and never block a sync.
type ValidationReport struct {
	Valid            bool     `json:"valid"`
	Errors           []string `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	PerformanceScore float64  `json:"performance_score"`
	PerformanceBand  string   `json:"performance_band"`
}

// ConfigValidator inspects a configuration against the capabilities of the
// registered transformers.
type ConfigValidator struct {
	registry *Registry
}

// NewConfigValidator constructs a validator bound to a registry instance.
func NewConfigValidator(registry *Registry) *ConfigValidator {
	return &ConfigValidator{registry: registry}
}

// Validate checks configuration structure, entity names, transformer
// availability and required-field protection, then attaches the advisory
// performance estimate and per-transformer hook warnings.
func (v *ConfigValidator) Validate(cfg *Config) *ValidationReport {
	report := &ValidationReport{}

	if cfg == nil {
		report.Errors = append(report.Errors, "configuration is empty")
		report.finish()
		return report
	}

	v.checkEntities(cfg, report)
	v.checkFields(cfg, report)
	v.runHooks(cfg, report)
	v.estimate(cfg, report)

	report.finish()
	return report
}

func (r *ValidationReport) finish() {
	r.Valid = len(r.Errors) == 0
}

func (v *ConfigValidator) checkEntities(cfg *Config, report *ValidationReport) {
	for _, name := range sortedKeys(cfg.Entities) {
		enabled := cfg.Entities[name]
		if _, known := knownEntityNames[name]; !known {
			report.Warnings = append(report.Warnings, fmt.Sprintf("unknown entity %q in configuration", name))
			continue
		}
		if !enabled || name == "modules" {
			continue
		}
		if _, ok := v.registry.Lookup(models.EntityKind(name)); !ok {
			report.Errors = append(report.Errors, fmt.Sprintf("entity %q is enabled but no transformer is registered for it", name))
		}
	}

	if explicitlyEnabled(cfg.Entities, string(models.KindEnrollment)) && !cfg.EntityEnabled(models.KindStudent) {
		report.Warnings = append(report.Warnings, "enrollments are enabled but students are disabled; enrollments will be skipped (declared dependency)")
	}
}

func (v *ConfigValidator) checkFields(cfg *Config, report *ValidationReport) {
	for _, entityName := range sortedKeys2(cfg.Fields) {
		fields := cfg.Fields[entityName]
		if _, known := knownEntityNames[entityName]; !known {
			report.Warnings = append(report.Warnings, fmt.Sprintf("field settings for unknown entity %q", entityName))
			continue
		}
		transformer, ok := v.registry.Lookup(models.EntityKind(entityName))
		if !ok {
			continue
		}

		required := make(map[string]struct{})
		for _, f := range transformer.RequiredFields() {
			required[f] = struct{}{}
		}
		known := knownFields(transformer)

		for _, fieldName := range sortedKeys(fields) {
			enabled := fields[fieldName]
			if _, isRequired := required[fieldName]; isRequired && !enabled {
				report.Errors = append(report.Errors, fmt.Sprintf("field %s.%s is required and cannot be disabled", entityName, fieldName))
				continue
			}
			if _, isKnown := known[fieldName]; isKnown {
				continue
			}
			if _, isGroup := fieldGroups[fieldName]; isGroup {
				continue
			}
			report.Warnings = append(report.Warnings, fmt.Sprintf("unknown field %s.%s in configuration", entityName, fieldName))
		}
	}
}

func (v *ConfigValidator) runHooks(cfg *Config, report *ValidationReport) {
	for _, kind := range models.SyncOrder {
		transformer, ok := v.registry.Lookup(kind)
		if !ok {
			continue
		}
		hook, ok := transformer.(EntityConfigValidator)
		if !ok {
			continue
		}
		if !cfg.EntityEnabled(kind) {
			continue
		}
		report.Warnings = append(report.Warnings, hook.ValidateEntityConfig(cfg.EntityFields(kind))...)
	}
}

// estimate computes a coarse relative cost in [0,1] from the number of
// enabled entities and enabled optional field flags. Advisory only.
func (v *ConfigValidator) estimate(cfg *Config, report *ValidationReport) {
	entities := 0
	for _, kind := range models.SyncOrder {
		if cfg.EntityEnabled(kind) {
			entities++
		}
	}

	flags := 0
	for _, fields := range cfg.Fields {
		for _, enabled := range fields {
			if enabled {
				flags++
			}
		}
	}

	score := 0.15*float64(entities) + 0.04*float64(flags)
	if score > 1.0 {
		score = 1.0
	}
	report.PerformanceScore = score

	switch {
	case score < 0.2:
		report.PerformanceBand = BandVeryLight
	case score < 0.4:
		report.PerformanceBand = BandLight
	case score < 0.6:
		report.PerformanceBand = BandModerate
	case score < 0.8:
		report.PerformanceBand = BandHeavy
	default:
		report.PerformanceBand = BandVeryHeavy
	}

	if score >= 0.6 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("configuration is %s: expect a slower sync", report.PerformanceBand))
	}
}

func explicitlyEnabled(m map[string]bool, key string) bool {
	v, ok := m[key]
	return ok && v
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys2(m map[string]map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
