package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent  UserRole = "STUDENT"
	RoleTeacher  UserRole = "TEACHER"
	RoleDirector UserRole = "DIRECTOR"
	RoleTA       UserRole = "TA"
	RoleAdmin    UserRole = "ADMIN"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleDirector, RoleTA, RoleAdmin:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// Username carries the student number for students.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      UserRole  `db:"role" json:"role"`
	ClassID   *string   `db:"class_id" json:"class_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
