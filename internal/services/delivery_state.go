package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/database"
	"github.com/seunghan91/talk-api-open-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrBroadcastNotFound = errors.New("broadcast not found")
	ErrBroadcastExpired  = errors.New("broadcast expired")
	// ErrNotDeliveryOwner means the caller is not the recipient of the
	// delivery they tried to transition. Mapped to 403, not 404: the
	// broadcast exists, the caller just does not own a delivery of it.
	ErrNotDeliveryOwner = errors.New("caller is not the delivery recipient")
)

// DeliveryStateService drives the delivered -> read -> replied lifecycle
// of one delivery record. Transitions are forward-only; the SQL guards
// repeat the check so a concurrent transition can never regress a status.
type DeliveryStateService struct {
	db       database.Database
	notifier PushNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewDeliveryStateService(db database.Database, notifier PushNotifier, log zerolog.Logger) *DeliveryStateService {
	return &DeliveryStateService{
		db:       db,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// MarkRead transitions the caller's delivery to read. Calling it on an
// already read or replied delivery is a no-op, never a regression.
func (s *DeliveryStateService) MarkRead(ctx context.Context, broadcastID, callerID uuid.UUID) (models.Delivery, error) {
	d, err := s.getDelivery(ctx, broadcastID, callerID)
	if err != nil {
		return models.Delivery{}, err
	}

	if !d.Status.CanTransition(models.DeliveryStatusRead) {
		return d, nil
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE broadcast_deliveries
		SET status = 'read', read_at = $2
		WHERE id = $1 AND status = 'delivered'
	`, d.ID, now); err != nil {
		return models.Delivery{}, fmt.Errorf("failed to mark delivery read: %w", err)
	}

	d.Status = models.DeliveryStatusRead
	d.ReadAt = &now
	return d, nil
}

// MarkReplied transitions the caller's delivery to replied and appends the
// reply voice message to the pair conversation. Valid from delivered or
// read; a repeated reply for the same broadcast returns the original
// message instead of duplicating it.
func (s *DeliveryStateService) MarkReplied(ctx context.Context, broadcastID, callerID uuid.UUID, req models.ReplyBroadcastRequest) (models.ConversationMessage, error) {
	d, err := s.getDelivery(ctx, broadcastID, callerID)
	if err != nil {
		return models.ConversationMessage{}, err
	}

	var (
		senderID  uuid.UUID
		expiresAt time.Time
	)
	if err := s.db.QueryRowContext(ctx, `
		SELECT sender_id, expires_at FROM broadcasts WHERE id = $1
	`, broadcastID).Scan(&senderID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ConversationMessage{}, ErrBroadcastNotFound
		}
		return models.ConversationMessage{}, fmt.Errorf("failed to load broadcast: %w", err)
	}

	now := s.now()
	if !now.Before(expiresAt) {
		return models.ConversationMessage{}, ErrBroadcastExpired
	}

	if d.Status.CanTransition(models.DeliveryStatusReplied) {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE broadcast_deliveries
			SET status = 'replied', replied_at = $2
			WHERE id = $1 AND status IN ('delivered', 'read')
		`, d.ID, now); err != nil {
			return models.ConversationMessage{}, fmt.Errorf("failed to mark delivery replied: %w", err)
		}
	}

	conv, err := EnsureConversation(ctx, s.db, senderID, callerID, now)
	if err != nil {
		return models.ConversationMessage{}, err
	}

	msg := models.ConversationMessage{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       callerID,
		BroadcastID:    &broadcastID,
		Kind:           models.MessageKindVoice,
		AudioRef:       &req.AudioRef,
		Text:           req.Text,
		CreatedAt:      now,
	}

	var insertedID uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, sender_id, broadcast_id, kind, audio_ref, text, created_at)
		VALUES ($1, $2, $3, $4, 'voice', $5, $6, $7)
		ON CONFLICT (conversation_id, sender_id, broadcast_id) DO NOTHING
		RETURNING id
	`, msg.ID, conv.ID, callerID, broadcastID, req.AudioRef, req.Text, now).Scan(&insertedID)
	if errors.Is(err, sql.ErrNoRows) {
		// Duplicate reply for this broadcast; hand back the existing message.
		return s.getReplyMessage(ctx, conv.ID, callerID, broadcastID)
	}
	if err != nil {
		return models.ConversationMessage{}, fmt.Errorf("failed to append reply message: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $2 WHERE id = $1
	`, conv.ID, now); err != nil {
		return models.ConversationMessage{}, fmt.Errorf("failed to touch conversation: %w", err)
	}

	s.notifyReply(ctx, senderID, broadcastID, callerID)
	return msg, nil
}

func (s *DeliveryStateService) getDelivery(ctx context.Context, broadcastID, callerID uuid.UUID) (models.Delivery, error) {
	var d models.Delivery
	err := s.db.QueryRowContext(ctx, `
		SELECT id, broadcast_id, recipient_id, status, created_at, read_at, replied_at
		FROM broadcast_deliveries
		WHERE broadcast_id = $1 AND recipient_id = $2
	`, broadcastID, callerID).Scan(&d.ID, &d.BroadcastID, &d.RecipientID, &d.Status, &d.CreatedAt, &d.ReadAt, &d.RepliedAt)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Delivery{}, fmt.Errorf("failed to load delivery: %w", err)
	}

	// Distinguish "not a recipient" from "no such broadcast".
	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM broadcasts WHERE id = $1)
	`, broadcastID).Scan(&exists); err != nil {
		return models.Delivery{}, fmt.Errorf("failed to check broadcast: %w", err)
	}
	if exists {
		return models.Delivery{}, ErrNotDeliveryOwner
	}
	return models.Delivery{}, ErrBroadcastNotFound
}

func (s *DeliveryStateService) getReplyMessage(ctx context.Context, conversationID, senderID, broadcastID uuid.UUID) (models.ConversationMessage, error) {
	var msg models.ConversationMessage
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, broadcast_id, kind, audio_ref, text, created_at
		FROM conversation_messages
		WHERE conversation_id = $1 AND sender_id = $2 AND broadcast_id = $3
	`, conversationID, senderID, broadcastID).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.BroadcastID, &msg.Kind, &msg.AudioRef, &msg.Text, &msg.CreatedAt)
	if err != nil {
		return models.ConversationMessage{}, fmt.Errorf("failed to load reply message: %w", err)
	}
	return msg, nil
}

func (s *DeliveryStateService) notifyReply(ctx context.Context, senderID, broadcastID, replierID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	event := PushEvent{
		Type:        PushEventBroadcastReply,
		BroadcastID: broadcastID,
		SenderID:    replierID,
	}
	if err := s.notifier.Notify(ctx, senderID, event); err != nil {
		s.log.Warn().
			Err(err).
			Str("user_id", senderID.String()).
			Msg("push notification failed")
	}
}
