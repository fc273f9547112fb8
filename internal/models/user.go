package models

import (
	"time"

	"github.com/google/uuid"
)

// User statuses
const (
	UserStatusActive              = "active"
	UserStatusSuspended           = "suspended"
	UserStatusBanned              = "banned"
	UserStatusPendingVerification = "pending_verification"
)

// User roles
const (
	UserRoleMember = "member"
	UserRoleAdmin  = "admin"
)

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	Nickname     string     `json:"nickname" db:"nickname"`
	Role         string     `json:"role" db:"role"`
	Status       string     `json:"status" db:"status"`
	Gender       *string    `json:"gender,omitempty" db:"gender"`
	Region       *string    `json:"region,omitempty" db:"region"`
	BirthYear    *int       `json:"birth_year,omitempty" db:"birth_year"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty" db:"last_active_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
