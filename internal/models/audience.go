package models

import (
	"fmt"
	"strings"
)

type AudienceKind string

const (
	AudienceSingleUser     AudienceKind = "single_user"
	AudienceDepartment     AudienceKind = "department"
	AudienceCourseRoster   AudienceKind = "course_roster"
	AudienceClassRoster    AudienceKind = "class_roster"
	AudienceTeacherRoster  AudienceKind = "teacher_roster"
	AudienceAllUsersExcept AudienceKind = "all_users_except"
	AudienceAllTeachers    AudienceKind = "all_teachers"
)

// AudienceSpec describes who should receive a dispatch. Only the fields that
// belong to Kind are meaningful; use the constructors below to build one.
// It is resolved at dispatch time and never persisted.
type AudienceSpec struct {
	Kind         AudienceKind `json:"kind"`
	UserID       string       `json:"user_id,omitempty"`
	DepartmentID string       `json:"department_id,omitempty"`
	Role         *Role        `json:"role,omitempty"`
	CourseID     string       `json:"course_id,omitempty"`
	ClassID      string       `json:"class_id,omitempty"`
	TeacherID    string       `json:"teacher_id,omitempty"`
	ExcludedID   string       `json:"excluded_user_id,omitempty"`
}

func SingleUser(userID string) AudienceSpec {
	return AudienceSpec{Kind: AudienceSingleUser, UserID: userID}
}

// Department targets every member of a department, optionally narrowed to a
// single role. A nil role means all roles.
func Department(departmentID string, role *Role) AudienceSpec {
	return AudienceSpec{Kind: AudienceDepartment, DepartmentID: departmentID, Role: role}
}

func CourseRoster(courseID string) AudienceSpec {
	return AudienceSpec{Kind: AudienceCourseRoster, CourseID: courseID}
}

func ClassRoster(classID string) AudienceSpec {
	return AudienceSpec{Kind: AudienceClassRoster, ClassID: classID}
}

// TeacherRoster targets every student enrolled in any section the teacher teaches.
func TeacherRoster(teacherID string) AudienceSpec {
	return AudienceSpec{Kind: AudienceTeacherRoster, TeacherID: teacherID}
}

func AllUsersExcept(excludedUserID string) AudienceSpec {
	return AudienceSpec{Kind: AudienceAllUsersExcept, ExcludedID: excludedUserID}
}

func AllTeachers() AudienceSpec {
	return AudienceSpec{Kind: AudienceAllTeachers}
}

// Validate checks that the spec names a known kind and carries the identifier
// that kind needs. It returns the offending field name with the error.
func (a AudienceSpec) Validate() (string, error) {
	required := func(field, value string) (string, error) {
		if strings.TrimSpace(value) == "" {
			return field, fmt.Errorf("%s is required for audience %q", field, a.Kind)
		}
		return "", nil
	}

	switch a.Kind {
	case AudienceSingleUser:
		return required("user_id", a.UserID)
	case AudienceDepartment:
		if a.Role != nil && !IsValidRole(NormalizeRole(*a.Role)) {
			return "role", fmt.Errorf("unknown role %q", *a.Role)
		}
		return required("department_id", a.DepartmentID)
	case AudienceCourseRoster:
		return required("course_id", a.CourseID)
	case AudienceClassRoster:
		return required("class_id", a.ClassID)
	case AudienceTeacherRoster:
		return required("teacher_id", a.TeacherID)
	case AudienceAllUsersExcept:
		return required("excluded_user_id", a.ExcludedID)
	case AudienceAllTeachers:
		return "", nil
	case "":
		return "kind", fmt.Errorf("audience kind is required")
	default:
		return "kind", fmt.Errorf("unknown audience kind %q", a.Kind)
	}
}

func (a AudienceSpec) String() string {
	switch a.Kind {
	case AudienceSingleUser:
		return fmt.Sprintf("%s(%s)", a.Kind, a.UserID)
	case AudienceDepartment:
		if a.Role != nil {
			return fmt.Sprintf("%s(%s, role=%s)", a.Kind, a.DepartmentID, *a.Role)
		}
		return fmt.Sprintf("%s(%s)", a.Kind, a.DepartmentID)
	case AudienceCourseRoster:
		return fmt.Sprintf("%s(%s)", a.Kind, a.CourseID)
	case AudienceClassRoster:
		return fmt.Sprintf("%s(%s)", a.Kind, a.ClassID)
	case AudienceTeacherRoster:
		return fmt.Sprintf("%s(%s)", a.Kind, a.TeacherID)
	case AudienceAllUsersExcept:
		return fmt.Sprintf("%s(%s)", a.Kind, a.ExcludedID)
	default:
		return string(a.Kind)
	}
}
