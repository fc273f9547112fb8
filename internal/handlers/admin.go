package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/seunghan91/talk-api-open-sub000/internal/models"
	"github.com/seunghan91/talk-api-open-sub000/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	db       *sql.DB
	settings *services.SettingsStore
}

func NewAdminHandler(db *sql.DB, settings *services.SettingsStore) *AdminHandler {
	return &AdminHandler{db: db, settings: settings}
}

// GetBroadcastSettings returns the current broadcast limit configuration.
func (h *AdminHandler) GetBroadcastSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load broadcast settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Broadcast settings retrieved successfully",
		"data":    settings,
	})
}

// UpdateBroadcastSettings applies a partial settings change. Fields not
// present in the body keep their current values.
func (h *AdminHandler) UpdateBroadcastSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.UpdateBroadcastSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), req, userID)
	if err != nil {
		var verrs services.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "Invalid broadcast settings",
				"fields": verrs,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update broadcast settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Broadcast settings updated successfully",
		"data":    settings,
	})
}
