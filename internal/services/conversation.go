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
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// EnsureConversation finds or creates the canonical conversation between
// two users. A creation race against the unique (user_a_id, user_b_id)
// constraint is resolved by re-fetching the winner's row.
func EnsureConversation(ctx context.Context, db database.Database, x, y uuid.UUID, now time.Time) (models.Conversation, error) {
	a, b := models.CanonicalPair(x, y)

	conv, err := getConversation(ctx, db, a, b)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	id := uuid.New()
	_, err = db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_a_id, user_b_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, id, a, b, now)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the creation race; the winner's row is the canonical one.
			return getConversation(ctx, db, a, b)
		}
		return models.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	return models.Conversation{
		ID:        id,
		UserAID:   a,
		UserBID:   b,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func getConversation(ctx context.Context, db database.Database, a, b uuid.UUID) (models.Conversation, error) {
	var conv models.Conversation
	err := db.QueryRowContext(ctx, `
		SELECT id, user_a_id, user_b_id, hidden_by_a, hidden_by_b, created_at, updated_at
		FROM conversations
		WHERE user_a_id = $1 AND user_b_id = $2
	`, a, b).Scan(&conv.ID, &conv.UserAID, &conv.UserBID, &conv.HiddenByA, &conv.HiddenByB, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// unhideConversation clears the soft-hidden flag on the given user's side
// so the conversation reappears in their list.
func unhideConversation(ctx context.Context, db database.Database, conv models.Conversation, userID uuid.UUID, now time.Time) error {
	column := "hidden_by_a"
	if userID == conv.UserBID {
		column = "hidden_by_b"
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE conversations SET %s = false, updated_at = $2 WHERE id = $1
	`, column), conv.ID, now)
	if err != nil {
		return fmt.Errorf("failed to unhide conversation: %w", err)
	}
	return nil
}
