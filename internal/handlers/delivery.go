package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/seunghan91/talk-api-open-sub000/internal/models"
	"github.com/seunghan91/talk-api-open-sub000/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeliveryHandler struct {
	db    *sql.DB
	state *services.DeliveryStateService
}

func NewDeliveryHandler(db *sql.DB, state *services.DeliveryStateService) *DeliveryHandler {
	return &DeliveryHandler{db: db, state: state}
}

// MarkRead marks the caller's delivery of a broadcast as read.
func (h *DeliveryHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	broadcastID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid broadcast ID"})
		return
	}

	delivery, err := h.state.MarkRead(c.Request.Context(), broadcastID, userID)
	if err != nil {
		h.renderStateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Broadcast marked as read",
		"data":    delivery,
	})
}

// Reply marks the caller's delivery as replied and appends the reply
// voice message to the conversation with the sender.
func (h *DeliveryHandler) Reply(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	broadcastID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid broadcast ID"})
		return
	}

	var req models.ReplyBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.state.MarkReplied(c.Request.Context(), broadcastID, userID, req)
	if err != nil {
		h.renderStateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Reply sent successfully",
		"data":    message,
	})
}

func (h *DeliveryHandler) renderStateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrBroadcastNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Broadcast not found"})
	case errors.Is(err, services.ErrNotDeliveryOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a recipient of this broadcast"})
	case errors.Is(err, services.ErrBroadcastExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Broadcast has expired"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update delivery"})
	}
}
