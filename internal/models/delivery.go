package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the per-recipient lifecycle of one broadcast delivery.
type DeliveryStatus string

const (
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusReplied   DeliveryStatus = "replied"
)

// deliveryTransitions is the forward-only transition table. A status may
// only move rightwards: delivered -> read -> replied. replied is terminal.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusDelivered: {DeliveryStatusRead, DeliveryStatusReplied},
	DeliveryStatusRead:      {DeliveryStatusReplied},
	DeliveryStatusReplied:   {},
}

// CanTransition reports whether moving from to next is a legal forward step.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

// Delivery is one (broadcast, recipient) fan-out record, unique per pair.
type Delivery struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	BroadcastID uuid.UUID      `json:"broadcast_id" db:"broadcast_id"`
	RecipientID uuid.UUID      `json:"recipient_id" db:"recipient_id"`
	Status      DeliveryStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	ReadAt      *time.Time     `json:"read_at,omitempty" db:"read_at"`
	RepliedAt   *time.Time     `json:"replied_at,omitempty" db:"replied_at"`
}

// ReceivedBroadcast is a delivery joined with its originating broadcast,
// as returned to the recipient's inbox listing.
type ReceivedBroadcast struct {
	Delivery
	SenderID       uuid.UUID `json:"sender_id"`
	SenderNickname string    `json:"sender_nickname"`
	AudioRef       string    `json:"audio_ref"`
	Text           *string   `json:"text,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type GetReceivedBroadcastsResponse struct {
	Broadcasts []ReceivedBroadcast `json:"broadcasts"`
	Total      int                 `json:"total"`
}
