package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func newAdminRouter(db *sql.DB, adminID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAdminHandler(db, services.NewSettingsStore(db))
	authed := r.Group("", func(c *gin.Context) { c.Set("user_id", adminID) })
	authed.GET("/broadcast_settings", h.GetBroadcastSettings)
	authed.PATCH("/broadcast_settings", h.UpdateBroadcastSettings)
	return r
}

func expectSettingsFetch(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT daily_limit, hourly_limit, cooldown_minutes, bypass_roles, updated_by, updated_at\s+FROM broadcast_settings`).
		WillReturnRows(sqlmock.NewRows([]string{"daily_limit", "hourly_limit", "cooldown_minutes", "bypass_roles", "updated_by", "updated_at"}).
			AddRow(20, 5, 10, "{admin}", nil, time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)))
}

func TestGetBroadcastSettings(t *testing.T) {
	db, mock := newMockDB(t)
	r := newAdminRouter(db, uuid.New())

	expectSettingsFetch(mock)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broadcast_settings", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data struct {
			DailyLimit int `json:"daily_limit"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.Data.DailyLimit != 20 {
		t.Errorf("daily_limit = %d, want 20", body.Data.DailyLimit)
	}
}

func TestUpdateBroadcastSettingsPartialChange(t *testing.T) {
	db, mock := newMockDB(t)
	r := newAdminRouter(db, uuid.New())

	expectSettingsFetch(mock)
	mock.ExpectExec(`UPDATE broadcast_settings`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/broadcast_settings", strings.NewReader(`{"hourly_limit": 3}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data struct {
			DailyLimit  int `json:"daily_limit"`
			HourlyLimit int `json:"hourly_limit"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.Data.HourlyLimit != 3 || body.Data.DailyLimit != 20 {
		t.Errorf("merged settings = %+v, want hourly 3 with daily untouched", body.Data)
	}
}

func TestUpdateBroadcastSettingsRejectsInvalid(t *testing.T) {
	db, mock := newMockDB(t)
	r := newAdminRouter(db, uuid.New())

	// Validation fails after the merge; nothing is persisted.
	expectSettingsFetch(mock)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/broadcast_settings", strings.NewReader(`{"hourly_limit": 100}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if _, ok := body.Fields["hourly_limit"]; !ok {
		t.Errorf("fields = %v, want a hourly_limit violation", body.Fields)
	}
}

func TestUpdateBroadcastSettingsRequiresAuth(t *testing.T) {
	db, _ := newMockDB(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAdminHandler(db, services.NewSettingsStore(db))
	r.PATCH("/broadcast_settings", h.UpdateBroadcastSettings)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/broadcast_settings", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without an authenticated user", w.Code)
	}
}
