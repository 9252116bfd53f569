package user

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const RoleAdmin Role = "ADMIN"
const RoleDeveloper Role = "DEVELOPER"

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDeveloper
}

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"firstName" db:"first_name"`
	LastName     string     `json:"lastName" db:"last_name"`
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"isActive" db:"is_active"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty" db:"updated_at,omitempty"`
}

// Actor is the authenticated caller passed explicitly into every service call.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Patch holds the optional fields of a user update. Nil means unchanged.
type Patch struct {
	Email     *string `json:"email,omitempty"`
	Password  *string `json:"password,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Email == nil && p.Password == nil && p.FirstName == nil &&
		p.LastName == nil && p.Role == nil && p.IsActive == nil
}
