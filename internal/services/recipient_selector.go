package services

import (
	"context"
	"fmt"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/database"
	"github.com/seunghan91/talk-api-open-sub000/internal/models"

	"github.com/google/uuid"
)

// Selection strategies. All draw from the same eligible pool; they only
// change the ordering preference.
const (
	StrategyRandom   = "random"
	StrategyRecent   = "recent"   // recently active users first
	StrategyFamiliar = "familiar" // users with an existing conversation first
)

// RecipientSelector picks up to count eligible recipients for a sender.
// Eligibility excludes the sender, blocked relationships in either
// direction, and non-active accounts. Under-supply is not an error: fewer
// than count eligible users just means a smaller result.
type RecipientSelector struct {
	db  database.Database
	now func() time.Time
}

func NewRecipientSelector(db database.Database) *RecipientSelector {
	return &RecipientSelector{db: db, now: time.Now}
}

func (s *RecipientSelector) SelectRecipients(ctx context.Context, senderID uuid.UUID, count int, strategy string, filters *models.SelectionFilters) ([]uuid.UUID, error) {
	if count <= 0 {
		return nil, nil
	}

	query := `
		SELECT u.id
		FROM users u
		WHERE u.id <> $1
		AND u.status = 'active'
		AND NOT EXISTS (
			SELECT 1 FROM user_blocks b
			WHERE (b.blocker_id = $1 AND b.blocked_id = u.id)
			   OR (b.blocker_id = u.id AND b.blocked_id = $1)
		)`
	args := []interface{}{senderID}
	argIndex := 2

	if filters != nil {
		if filters.Gender != "" {
			query += fmt.Sprintf(" AND u.gender = $%d", argIndex)
			args = append(args, filters.Gender)
			argIndex++
		}
		if filters.Region != "" {
			query += fmt.Sprintf(" AND u.region = $%d", argIndex)
			args = append(args, filters.Region)
			argIndex++
		}
		currentYear := s.now().Year()
		if filters.MinAge > 0 {
			query += fmt.Sprintf(" AND u.birth_year <= $%d", argIndex)
			args = append(args, currentYear-filters.MinAge)
			argIndex++
		}
		if filters.MaxAge > 0 {
			query += fmt.Sprintf(" AND u.birth_year >= $%d", argIndex)
			args = append(args, currentYear-filters.MaxAge)
			argIndex++
		}
	}

	switch strategy {
	case StrategyRecent:
		query += " ORDER BY u.last_active_at DESC NULLS LAST"
	case StrategyFamiliar:
		query += ` ORDER BY (EXISTS (
			SELECT 1 FROM conversations c
			WHERE (c.user_a_id = $1 AND c.user_b_id = u.id)
			   OR (c.user_a_id = u.id AND c.user_b_id = $1)
		)) DESC, random()`
	default:
		query += " ORDER BY random()"
	}

	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, count)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select recipients: %w", err)
	}
	defer rows.Close()

	var recipients []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recipients, nil
}
