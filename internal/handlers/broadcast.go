package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/models"
	"github.com/seunghan91/talk-api-open-sub000/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BroadcastHandler struct {
	db       *sql.DB
	engine   *services.LimitDecisionEngine
	selector *services.RecipientSelector
	fanout   *services.FanoutCoordinator
}

func NewBroadcastHandler(db *sql.DB, engine *services.LimitDecisionEngine, selector *services.RecipientSelector, fanout *services.FanoutCoordinator) *BroadcastHandler {
	return &BroadcastHandler{db: db, engine: engine, selector: selector, fanout: fanout}
}

// CreateBroadcast admits, creates and fans out a new voice broadcast.
// The admission check, broadcast insert and usage recording share one
// transaction so concurrent sends from the same user cannot slip past
// the limit together.
func (h *BroadcastHandler) CreateBroadcast(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count := models.ClampRecipientCount(req.RecipientCount)
	ctx := c.Request.Context()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to begin transaction"})
		return
	}
	defer tx.Rollback()

	verdict, err := h.engine.Admit(ctx, tx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check broadcast limit"})
		return
	}

	if !verdict.Admitted {
		// Commit anyway: the denial was counted in the usage ledger.
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record attempt"})
			return
		}
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":  "Broadcast limit exceeded",
			"reason": verdict.Reason,
			"limits": verdict.Info,
		})
		return
	}

	now := time.Now()
	broadcast := models.Broadcast{
		ID:              uuid.New(),
		SenderID:        userID,
		AudioRef:        req.AudioRef,
		Text:            req.Text,
		DurationSeconds: req.DurationSeconds,
		CreatedAt:       now,
		ExpiresAt:       now.Add(models.BroadcastLifetime),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO broadcasts (id, sender_id, audio_ref, text, duration_seconds, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, broadcast.ID, broadcast.SenderID, broadcast.AudioRef, broadcast.Text, broadcast.DurationSeconds, broadcast.CreatedAt, broadcast.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create broadcast"})
		return
	}

	if !verdict.Info.IsBypass {
		if err := h.engine.RecordBroadcast(ctx, tx, userID, now); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record broadcast"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit broadcast"})
		return
	}

	// The broadcast row is committed; fan-out must not be cut short by a
	// client disconnect.
	fanoutCtx := context.WithoutCancel(ctx)

	recipients, err := h.selector.SelectRecipients(fanoutCtx, userID, count, req.Strategy, req.Filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to select recipients"})
		return
	}

	result := h.fanout.Deliver(fanoutCtx, broadcast, recipients)

	info := verdict.Info
	if !info.IsBypass {
		info.DailyUsed++
		info.HourlyUsed++
		if info.DailyRemaining > 0 {
			info.DailyRemaining--
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Broadcast sent successfully",
		"data": gin.H{
			"broadcast": models.BroadcastResponse{
				ID:              broadcast.ID,
				SenderID:        broadcast.SenderID,
				AudioRef:        broadcast.AudioRef,
				Text:            broadcast.Text,
				DurationSeconds: broadcast.DurationSeconds,
				CreatedAt:       broadcast.CreatedAt,
				ExpiresAt:       broadcast.ExpiresAt,
			},
			"fanout": result,
			"limits": info,
		},
	})
}

// GetLimits returns the caller's current broadcast limit snapshot.
func (h *BroadcastHandler) GetLimits(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	verdict, err := h.engine.CheckLimit(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check broadcast limit"})
		return
	}

	info := verdict.Info
	response := gin.H{
		"daily_limit":     info.DailyLimit,
		"daily_used":      info.DailyUsed,
		"daily_remaining": info.DailyRemaining,
		"hourly_limit":    info.HourlyLimit,
		"hourly_used":     info.HourlyUsed,
		"can_broadcast":   verdict.Admitted,
		"next_reset_at":   info.NextResetAt,
		"is_bypass":       info.IsBypass,
	}
	if info.CooldownEndsAt != nil {
		response["cooldown_ends_at"] = info.CooldownEndsAt
	}

	c.JSON(http.StatusOK, response)
}

// GetReceivedBroadcasts lists the caller's deliveries of still-active broadcasts.
func (h *BroadcastHandler) GetReceivedBroadcasts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page := c.DefaultQuery("page", "1")
	pageSize := c.DefaultQuery("page_size", "20")

	pageInt := 1
	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		pageInt = p
	}
	pageSizeInt := 20
	if ps, err := strconv.Atoi(pageSize); err == nil && ps > 0 && ps <= 100 {
		pageSizeInt = ps
	}
	offset := (pageInt - 1) * pageSizeInt

	query := `
		SELECT d.id, d.broadcast_id, d.recipient_id, d.status, d.created_at, d.read_at, d.replied_at,
		       b.sender_id, u.nickname, b.audio_ref, b.text, b.expires_at
		FROM broadcast_deliveries d
		JOIN broadcasts b ON b.id = d.broadcast_id
		JOIN users u ON u.id = b.sender_id
		WHERE d.recipient_id = $1 AND b.expires_at > NOW()
	`
	query += " ORDER BY d.created_at DESC LIMIT $2 OFFSET $3"

	rows, err := h.db.QueryContext(c.Request.Context(), query, userID, pageSizeInt, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch received broadcasts"})
		return
	}
	defer rows.Close()

	var broadcasts []models.ReceivedBroadcast
	for rows.Next() {
		var rb models.ReceivedBroadcast
		err := rows.Scan(
			&rb.ID, &rb.BroadcastID, &rb.RecipientID, &rb.Status, &rb.CreatedAt, &rb.ReadAt, &rb.RepliedAt,
			&rb.SenderID, &rb.SenderNickname, &rb.AudioRef, &rb.Text, &rb.ExpiresAt,
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan delivery"})
			return
		}
		broadcasts = append(broadcasts, rb)
	}

	var total int
	err = h.db.QueryRowContext(c.Request.Context(), `
		SELECT COUNT(*)
		FROM broadcast_deliveries d
		JOIN broadcasts b ON b.id = d.broadcast_id
		WHERE d.recipient_id = $1 AND b.expires_at > NOW()
	`, userID).Scan(&total)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count deliveries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Received broadcasts retrieved successfully",
		"data": models.GetReceivedBroadcastsResponse{
			Broadcasts: broadcasts,
			Total:      total,
		},
	})
}

// currentUserID pulls the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDInterface, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}

	userID, ok := userIDInterface.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return uuid.Nil, false
	}
	return userID, true
}
