package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Push event types.
const (
	PushEventBroadcastReceived = "broadcast_received"
	PushEventBroadcastReply    = "broadcast_reply"
)

type PushEvent struct {
	Type        string    `json:"type"`
	BroadcastID uuid.UUID `json:"broadcast_id"`
	SenderID    uuid.UUID `json:"sender_id"`
}

// PushNotifier delivers a push event to a user. Implementations are
// fire-and-forget: callers log failures and never block on them.
type PushNotifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event PushEvent) error
}

// LogNotifier is the default notifier; it only logs the event. The real
// push transport lives behind this interface.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, event PushEvent) error {
	n.log.Debug().
		Str("user_id", userID.String()).
		Str("type", event.Type).
		Str("broadcast_id", event.BroadcastID.String()).
		Msg("push event")
	return nil
}
