package models

import "strings"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

var validRoles = map[Role]struct{}{
	RoleAdmin:   {},
	RoleTeacher: {},
	RoleStudent: {},
	RoleStaff:   {},
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role Role) bool {
	_, ok := validRoles[role]
	return ok
}

// NormalizeRole lowercases and trims a role value.
func NormalizeRole(role Role) Role {
	return Role(strings.ToLower(strings.TrimSpace(string(role))))
}

// UserSummary is what the directory hands back for a membership query. The
// notification core only relies on ID; the rest passes through.
type UserSummary struct {
	ID           string  `json:"id"`
	DisplayName  string  `json:"display_name"`
	Email        string  `json:"email,omitempty"`
	Role         Role    `json:"role"`
	DepartmentID *string `json:"department_id,omitempty"`
}
