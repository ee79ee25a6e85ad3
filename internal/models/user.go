package models

import (
	"time"

	"github.com/google/uuid"
)

// Role decides what an account may do. Anyone may vote; only editors author questions.
type Role string

const (
	RoleEditor Role = "editor"
	RoleVoter  Role = "voter"
)

// Valid reports whether r is a role the users table accepts.
func (r Role) Valid() bool {
	return r == RoleEditor || r == RoleVoter
}

// CanAuthor reports whether r may create questions and add choices.
func (r Role) CanAuthor() bool {
	return r == RoleEditor
}

// User is an account. Voting needs no account; logging in is for authoring.
type User struct {
	ID        uuid.UUID
	Email     string
	Password  string // bcrypt hash
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account is the view of a User returned by the auth endpoints.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CanAuthor bool      `json:"can_author"`
	CreatedAt time.Time `json:"created_at"`
}

// Account returns the public view of u.
func (u *User) Account() Account {
	return Account{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CanAuthor: u.Role.CanAuthor(),
		CreatedAt: u.CreatedAt,
	}
}
