package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seunghan91/talk-api-open-sub000/internal/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newDeliveryRouter(db *sql.DB, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	state := services.NewDeliveryStateService(db, nil, zerolog.Nop())
	h := NewDeliveryHandler(db, state)
	authed := r.Group("", func(c *gin.Context) { c.Set("user_id", userID) })
	authed.POST("/broadcasts/:id/read", h.MarkRead)
	authed.POST("/broadcasts/:id/reply", h.Reply)
	return r
}

func TestMarkReadInvalidBroadcastID(t *testing.T) {
	db, _ := newMockDB(t)
	r := newDeliveryRouter(db, uuid.New())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/broadcasts/not-a-uuid/read", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a malformed id", w.Code)
	}
}

func TestMarkReadNotRecipientIs403(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()
	broadcastID := uuid.New()
	r := newDeliveryRouter(db, userID)

	mock.ExpectQuery(`SELECT id, broadcast_id, recipient_id, status, created_at, read_at, replied_at\s+FROM broadcast_deliveries`).
		WithArgs(broadcastID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "broadcast_id", "recipient_id", "status", "created_at", "read_at", "replied_at"}))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM broadcasts WHERE id = \$1\)`).
		WithArgs(broadcastID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/broadcasts/"+broadcastID.String()+"/read", nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a non-recipient", w.Code)
	}
}

func TestReplyMissingBroadcastIs404(t *testing.T) {
	db, mock := newMockDB(t)
	userID := uuid.New()
	broadcastID := uuid.New()
	r := newDeliveryRouter(db, userID)

	mock.ExpectQuery(`SELECT id, broadcast_id, recipient_id, status, created_at, read_at, replied_at\s+FROM broadcast_deliveries`).
		WithArgs(broadcastID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "broadcast_id", "recipient_id", "status", "created_at", "read_at", "replied_at"}))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM broadcasts WHERE id = \$1\)`).
		WithArgs(broadcastID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/broadcasts/"+broadcastID.String()+"/reply", strings.NewReader(`{"audio_ref": "reply.m4a"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for a missing broadcast", w.Code)
	}
}
