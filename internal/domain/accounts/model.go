package accounts

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Doctors and plain users pair up in chat rooms; admins manage
// both.
const (
	RoleAdmin  = "ADMIN"
	RoleDoctor = "DOC"
	RoleUser   = "USR"
)

// Identification document types.
const (
	IdentificationCC  = "CC" // Cedula de Ciudadania
	IdentificationCE  = "CE" // Cedula de Extranjeria
	IdentificationNIT = "NIT"
)

// User represents an account in the identity store.
type User struct {
	ID                   uuid.UUID `db:"id" json:"id"`
	Role                 string    `db:"role" json:"role"`
	FirstName            string    `db:"first_name" json:"first_name"`
	LastName             string    `db:"last_name" json:"last_name"`
	IdentificationType   string    `db:"identification_type" json:"identification_type"`
	IdentificationNumber *string   `db:"identification_number" json:"identification_number,omitempty"`
	Username             string    `db:"username" json:"username"`
	Email                string    `db:"email" json:"email"`
	Phone                *string   `db:"phone" json:"phone,omitempty"`
	City                 *string   `db:"city" json:"city,omitempty"`
	Neighborhood         *string   `db:"neighborhood" json:"neighborhood,omitempty"`
	Address              *string   `db:"address" json:"address,omitempty"`
	PasswordHash         string    `db:"password_hash" json:"-"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// ValidRole reports whether role is one of the known user roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleUser:
		return true
	}
	return false
}
