package transform

import "github.com/noah-isme/canvas-sync-api/internal/models"

// Config is the caller-supplied transformation configuration: which entity
// kinds are synchronized and which fields or field groups are enabled per
// entity. Field maps mix coarse group flags (basicInfo, dates, scores,
// analytics) with fine per-field booleans; the policy a transformer runs
// under is resolved from which of the two the caller actually supplied.
type Config struct {
	Entities map[string]bool            `json:"entities"`
	Fields   map[string]map[string]bool `json:"fields"`
}

// Known field group flags accepted alongside concrete field names.
var fieldGroups = map[string]struct{}{
	"basicInfo": {},
	"dates":     {},
	"scores":    {},
	"analytics": {},
	"metadata":  {},
}

// DefaultConfig enables every entity with permissive field handling.
func DefaultConfig() *Config {
	return &Config{
		Entities: map[string]bool{
			string(models.KindCourse):     true,
			string(models.KindStudent):    true,
			string(models.KindAssignment): true,
			string(models.KindEnrollment): true,
		},
	}
}

// EntityEnabled reports whether a kind is enabled. Kinds absent from the
// entities section default to enabled; enrollments are implicitly disabled
// whenever students are, because enrollment records are derived from the
// student list.
func (c *Config) EntityEnabled(kind models.EntityKind) bool {
	if c == nil {
		return true
	}
	if kind == models.KindEnrollment && !c.EntityEnabled(models.KindStudent) {
		return false
	}
	if c.Entities == nil {
		return true
	}
	enabled, ok := c.Entities[string(kind)]
	if !ok {
		return true
	}
	return enabled
}

// EntityFields returns the raw field settings supplied for a kind, which
// may be nil.
func (c *Config) EntityFields(kind models.EntityKind) map[string]bool {
	if c == nil || c.Fields == nil {
		return nil
	}
	return c.Fields[string(kind)]
}

// FieldPolicy is the two-variant filtering mode resolved once per transform
// call from the shape of the configuration.
type FieldPolicy int

const (
	// PolicyPermissive includes every optional field present in the raw
	// data. Chosen when the caller supplied no concrete per-field settings
	// for the entity, only group flags or nothing at all.
	PolicyPermissive FieldPolicy = iota
	// PolicyExplicit retains only fields explicitly set true, plus all
	// required fields.
	PolicyExplicit
)

func (p FieldPolicy) String() string {
	if p == PolicyExplicit {
		return "explicit"
	}
	return "permissive"
}

// ResolvePolicy inspects the supplied field settings against a
// transformer's known field names. Any concrete field key present switches
// the transformer into explicit mode for this call.
func ResolvePolicy(fields map[string]bool, known map[string]struct{}) FieldPolicy {
	for name := range fields {
		if _, ok := known[name]; ok {
			return PolicyExplicit
		}
	}
	return PolicyPermissive
}
