package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ping", PerClientRateLimit(rps, burst), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestPerClientRateLimitAllowsBurst(t *testing.T) {
	r := newLimitedRouter(1, 2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/ping", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("request past the burst: status = %d, want 429", w.Code)
	}
}

// Separate authenticated users get separate buckets.
func TestPerClientRateLimitKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userA := uuid.New()
	userB := uuid.New()
	current := &userA

	r.POST("/ping",
		func(c *gin.Context) { c.Set("user_id", *current) },
		PerClientRateLimit(1, 1),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	send := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ping", nil))
		return w.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first request for user A: status = %d, want 200", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second request for user A: status = %d, want 429", code)
	}

	current = &userB
	if code := send(); code != http.StatusOK {
		t.Errorf("first request for user B: status = %d, want its own bucket", code)
	}
}
