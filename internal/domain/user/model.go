package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform account. Physicians evaluate referrals inside their
// specialties; administrators manage accounts and see everything.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Specialties   []string   `json:"specialties,omitempty"`
	LicenseNumber *string    `json:"license_number,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}
