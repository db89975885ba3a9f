package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManager      Role = "manager"
	RoleStaff        Role = "staff"
	RoleCollaborator Role = "collaborator"
)

var validRoles = map[Role]struct{}{
	RoleAdmin:        {},
	RoleManager:      {},
	RoleStaff:        {},
	RoleCollaborator: {},
}

func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

// User is a persisted account. DepartmentID is empty when the user belongs to
// no department.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"department_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) Identity() AuthenticatedUser {
	return AuthenticatedUser{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
	}
}

// AuthenticatedUser is the identity resolved from a valid access token.
type AuthenticatedUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type UserList struct {
	Users []User `json:"users"`
}

// UserFilter narrows a user listing. Zero values match everything.
type UserFilter struct {
	DepartmentID string
	Role         Role
	ActiveOnly   bool
}
