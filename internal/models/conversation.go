package models

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds inside a conversation.
const (
	MessageKindBroadcast = "broadcast" // the broadcast-origin first message
	MessageKindVoice     = "voice"
	MessageKindText      = "text"
)

// Conversation is the canonical 1:1 thread between two users. The pair is
// stored sorted (UserAID < UserBID) so each unordered pair exists exactly
// once regardless of which side initiated it.
type Conversation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserAID   uuid.UUID `json:"user_a_id" db:"user_a_id"`
	UserBID   uuid.UUID `json:"user_b_id" db:"user_b_id"`
	HiddenByA bool      `json:"hidden_by_a" db:"hidden_by_a"`
	HiddenByB bool      `json:"hidden_by_b" db:"hidden_by_b"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanonicalPair orders two user ids into the stored (user_a, user_b) form.
func CanonicalPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() < y.String() {
		return x, y
	}
	return y, x
}

// HiddenBy reports whether the given side of the conversation is soft-hidden.
func (c Conversation) HiddenBy(userID uuid.UUID) bool {
	switch userID {
	case c.UserAID:
		return c.HiddenByA
	case c.UserBID:
		return c.HiddenByB
	}
	return false
}

type ConversationMessage struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ConversationID uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id" db:"sender_id"`
	BroadcastID    *uuid.UUID `json:"broadcast_id,omitempty" db:"broadcast_id"`
	Kind           string     `json:"kind" db:"kind"`
	AudioRef       *string    `json:"audio_ref,omitempty" db:"audio_ref"`
	Text           *string    `json:"text,omitempty" db:"text"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
