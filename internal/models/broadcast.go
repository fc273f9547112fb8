package models

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastLifetime is how long a broadcast stays active after creation.
const BroadcastLifetime = 144 * time.Hour // 6 days

// Recipient count bounds applied at the API layer.
const (
	MinRecipientCount     = 1
	MaxRecipientCount     = 10
	DefaultRecipientCount = 5
)

// MaxBroadcastTextLen caps the optional caption attached to a voice broadcast.
const MaxBroadcastTextLen = 200

type Broadcast struct {
	ID              uuid.UUID `json:"id" db:"id"`
	SenderID        uuid.UUID `json:"sender_id" db:"sender_id"`
	AudioRef        string    `json:"audio_ref" db:"audio_ref"`
	Text            *string   `json:"text,omitempty" db:"text"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	ExpiresAt       time.Time `json:"expires_at" db:"expires_at"`
}

// Active reports whether the broadcast has not expired yet.
func (b Broadcast) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}

type CreateBroadcastRequest struct {
	AudioRef        string            `json:"audio_ref" binding:"required,max=500"`
	Text            *string           `json:"text,omitempty" binding:"omitempty,max=200"`
	DurationSeconds *int              `json:"duration_seconds,omitempty" binding:"omitempty,min=0"`
	RecipientCount  int               `json:"recipient_count,omitempty"`
	Strategy        string            `json:"strategy,omitempty" binding:"omitempty,oneof=random recent familiar"`
	Filters         *SelectionFilters `json:"filters,omitempty"`
}

// SelectionFilters narrows the eligible recipient pool. All fields are
// optional AND predicates.
type SelectionFilters struct {
	Gender string `json:"gender,omitempty" binding:"omitempty,oneof=male female other"`
	Region string `json:"region,omitempty"`
	MinAge int    `json:"min_age,omitempty" binding:"omitempty,min=0"`
	MaxAge int    `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// ClampRecipientCount bounds a requested recipient count to [1, 10],
// substituting the default when unset.
func ClampRecipientCount(count int) int {
	if count == 0 {
		return DefaultRecipientCount
	}
	if count < MinRecipientCount {
		return MinRecipientCount
	}
	if count > MaxRecipientCount {
		return MaxRecipientCount
	}
	return count
}

type BroadcastResponse struct {
	ID              uuid.UUID `json:"id"`
	SenderID        uuid.UUID `json:"sender_id"`
	AudioRef        string    `json:"audio_ref"`
	Text            *string   `json:"text,omitempty"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type ReplyBroadcastRequest struct {
	AudioRef        string  `json:"audio_ref" binding:"required,max=500"`
	Text            *string `json:"text,omitempty" binding:"omitempty,max=200"`
	DurationSeconds *int    `json:"duration_seconds,omitempty" binding:"omitempty,min=0"`
}
