package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gopherai-insect/internal/pkg/jwtutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminJWT(t *testing.T) {
	const secret = "test-secret"
	adminToken, err := jwtutil.GenerateToken(secret, "ops", jwtutil.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	viewerToken, err := jwtutil.GenerateToken(secret, "kid", "viewer", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.POST("/set-api-key", AdminJWT(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextAdminKey))
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "non admin", header: "Bearer " + viewerToken, want: http.StatusUnauthorized},
		{name: "admin", header: "Bearer " + adminToken, want: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/set-api-key", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
			if tc.want == http.StatusUnauthorized && !strings.Contains(w.Body.String(), `"code":40100`) {
				t.Fatalf("body = %s", w.Body.String())
			}
			if tc.want == http.StatusOK && w.Body.String() != "ops" {
				t.Fatalf("subject = %q", w.Body.String())
			}
		})
	}
}

func TestAdminJWTOpenWithoutSecret(t *testing.T) {
	r := gin.New()
	r.DELETE("/api-key", AdminJWT(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if w := serve(r, httptest.NewRequest(http.MethodDelete, "/api-key", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	id := w.Header().Get(HeaderRequestID)
	if len(id) != 36 {
		t.Fatalf("generated request id = %q", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	if w := serve(r, req); w.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("incoming request id not reused: %q", w.Header().Get(HeaderRequestID))
	}

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 2 {
		t.Fatalf("access log entries = %d", len(entries))
	}
	ctx := entries[1].ContextMap()
	if ctx["request_id"] != "abc-123" || ctx["status"] != int64(200) {
		t.Fatalf("log fields = %v", ctx)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/classify-insect", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/classify-insect", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		return serve(r, req)
	}

	for i := 0; i < 2; i++ {
		if w := post(); w.Code != http.StatusOK {
			t.Fatalf("burst request %d status = %d", i, w.Code)
		}
	}
	w := post()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if !strings.Contains(w.Body.String(), `"code":42900`) {
		t.Fatalf("body = %s", w.Body.String())
	}

	now = now.Add(time.Second)
	if w := post(); w.Code != http.StatusOK {
		t.Fatalf("after refill status = %d", w.Code)
	}
}
