package models

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastSettings is the single mutable row of admin-tunable broadcast
// limits. Reads go through a short-TTL cache; writes only through the
// admin facade.
type BroadcastSettings struct {
	DailyLimit      int        `json:"daily_limit" db:"daily_limit"`
	HourlyLimit     int        `json:"hourly_limit" db:"hourly_limit"`
	CooldownMinutes int        `json:"cooldown_minutes" db:"cooldown_minutes"`
	BypassRoles     []string   `json:"bypass_roles" db:"bypass_roles"`
	UpdatedBy       *uuid.UUID `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Bypasses reports whether the given role is exempt from broadcast limits.
func (s BroadcastSettings) Bypasses(role string) bool {
	for _, r := range s.BypassRoles {
		if r == role {
			return true
		}
	}
	return false
}

// UpdateBroadcastSettingsRequest carries a partial settings change; nil
// fields keep their current value.
type UpdateBroadcastSettingsRequest struct {
	DailyLimit      *int     `json:"daily_limit,omitempty"`
	HourlyLimit     *int     `json:"hourly_limit,omitempty"`
	CooldownMinutes *int     `json:"cooldown_minutes,omitempty"`
	BypassRoles     []string `json:"bypass_roles,omitempty"`
}

// UsageLedgerEntry is one user's broadcast usage for one calendar day.
// Rows are upserted on every admission check and never deleted.
type UsageLedgerEntry struct {
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	UsageDate          time.Time  `json:"usage_date" db:"usage_date"`
	BroadcastsSent     int        `json:"broadcasts_sent" db:"broadcasts_sent"`
	LastBroadcastAt    *time.Time `json:"last_broadcast_at,omitempty" db:"last_broadcast_at"`
	LimitExceededCount int        `json:"limit_exceeded_count" db:"limit_exceeded_count"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}
