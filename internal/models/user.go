package models

import "time"

// UserRole represents the roles available to system operators.
type UserRole string

const (
	RoleAdministrator UserRole = "ADMINISTRATOR"
	RoleCoordinator   UserRole = "COORDINATOR"
	RoleProfessor     UserRole = "PROFESSOR"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdministrator, RoleCoordinator, RoleProfessor:
		return true
	}
	return false
}

// User represents an application operator stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	FullName     *string    `db:"full_name" json:"full_name,omitempty"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
