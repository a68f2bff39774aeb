package models

// EntityKind identifies one of the synchronized Canvas entity types. It is
// the unit of transformer dispatch and of per-kind sync accounting.
type EntityKind string

// Supported entity kinds, listed in sync dependency order.
const (
	KindCourse     EntityKind = "courses"
	KindStudent    EntityKind = "students"
	KindAssignment EntityKind = "assignments"
	KindEnrollment EntityKind = "enrollments"
)

// SyncOrder is the fixed dependency order for full syncs: assignments
// reference courses, enrollments reference both students and courses.
var SyncOrder = []EntityKind{KindCourse, KindStudent, KindAssignment, KindEnrollment}

// Valid reports whether the kind is one of the synchronized entity types.
func (k EntityKind) Valid() bool {
	switch k {
	case KindCourse, KindStudent, KindAssignment, KindEnrollment:
		return true
	}
	return false
}
