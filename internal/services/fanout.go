package services

import (
	"context"
	"errors"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/database"
	"github.com/seunghan91/talk-api-open-sub000/internal/models"
	"github.com/seunghan91/talk-api-open-sub000/internal/obs"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type FanoutFailure struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Error       string    `json:"error"`
}

type FanoutResult struct {
	Created         int             `json:"created"`
	Duplicates      int             `json:"duplicates"`
	ConversationIDs []uuid.UUID     `json:"conversation_ids"`
	Failed          []FanoutFailure `json:"failed,omitempty"`
}

// FanoutCoordinator turns one admitted broadcast into per-recipient
// delivery records plus a conversation carrying the broadcast-origin
// message. Every step is idempotent on the schema's unique constraints,
// so retrying a (broadcast, recipient) pair never duplicates rows.
// Failures are isolated per recipient: one bad recipient never aborts
// the rest of the batch.
type FanoutCoordinator struct {
	db       database.Database
	notifier PushNotifier
	metrics  *obs.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

func NewFanoutCoordinator(db database.Database, notifier PushNotifier, metrics *obs.Metrics, log zerolog.Logger) *FanoutCoordinator {
	return &FanoutCoordinator{
		db:       db,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

func (f *FanoutCoordinator) Deliver(ctx context.Context, b models.Broadcast, recipientIDs []uuid.UUID) FanoutResult {
	start := time.Now()
	var result FanoutResult

	for _, recipientID := range recipientIDs {
		convID, created, err := f.deliverOne(ctx, b, recipientID)
		if err != nil {
			f.log.Warn().
				Err(err).
				Str("broadcast_id", b.ID.String()).
				Str("recipient_id", recipientID.String()).
				Msg("fan-out to recipient failed")
			f.count(obs.FanoutFailed)
			result.Failed = append(result.Failed, FanoutFailure{RecipientID: recipientID, Error: err.Error()})
			continue
		}

		if created {
			result.Created++
			f.count(obs.FanoutCreated)
		} else {
			result.Duplicates++
			f.count(obs.FanoutDuplicate)
		}
		result.ConversationIDs = append(result.ConversationIDs, convID)

		f.notify(ctx, recipientID, b)
	}

	if f.metrics != nil {
		f.metrics.FanoutDuration.Observe(time.Since(start).Seconds())
	}
	return result
}

// deliverOne runs the per-recipient fan-out sequence: delivery row,
// conversation find-or-create, sender-side unhide, broadcast-origin
// message.
func (f *FanoutCoordinator) deliverOne(ctx context.Context, b models.Broadcast, recipientID uuid.UUID) (uuid.UUID, bool, error) {
	now := f.now()

	var created bool
	err := withRetry(ctx, func() error {
		res, err := f.db.ExecContext(ctx, `
			INSERT INTO broadcast_deliveries (id, broadcast_id, recipient_id, status, created_at)
			VALUES ($1, $2, $3, 'delivered', $4)
			ON CONFLICT (broadcast_id, recipient_id) DO NOTHING
		`, uuid.New(), b.ID, recipientID, now)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			created = true
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, false, err
	}

	conv, err := EnsureConversation(ctx, f.db, b.SenderID, recipientID, now)
	if err != nil {
		return uuid.Nil, created, err
	}

	if conv.HiddenBy(b.SenderID) {
		if err := unhideConversation(ctx, f.db, conv, b.SenderID, now); err != nil {
			return conv.ID, created, err
		}
	}

	err = withRetry(ctx, func() error {
		_, err := f.db.ExecContext(ctx, `
			INSERT INTO conversation_messages (id, conversation_id, sender_id, broadcast_id, kind, audio_ref, text, created_at)
			VALUES ($1, $2, $3, $4, 'broadcast', $5, $6, $7)
			ON CONFLICT (conversation_id, sender_id, broadcast_id) DO NOTHING
		`, uuid.New(), conv.ID, b.SenderID, b.ID, b.AudioRef, b.Text, now)
		return err
	})
	if err != nil {
		return conv.ID, created, err
	}

	return conv.ID, created, nil
}

// notify is fire-and-forget: push failures are logged and swallowed,
// never surfaced to the fan-out result.
func (f *FanoutCoordinator) notify(ctx context.Context, recipientID uuid.UUID, b models.Broadcast) {
	if f.notifier == nil {
		return
	}
	event := PushEvent{
		Type:        PushEventBroadcastReceived,
		BroadcastID: b.ID,
		SenderID:    b.SenderID,
	}
	if err := f.notifier.Notify(ctx, recipientID, event); err != nil {
		f.log.Warn().
			Err(err).
			Str("recipient_id", recipientID.String()).
			Msg("push notification failed")
	}
}

func (f *FanoutCoordinator) count(outcome string) {
	if f.metrics == nil {
		return
	}
	f.metrics.FanoutTotal.WithLabelValues(outcome).Inc()
}

// withRetry reruns fn once on a transient failure. Context cancellation
// and unique violations are not retried; the latter are idempotent
// no-ops by construction.
func withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || isUniqueViolation(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fn()
}
