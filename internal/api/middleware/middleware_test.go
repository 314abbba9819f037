package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init(logger.Config{Level: "error", Format: "console"})
}

func TestRequestIDGenerated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Get("request_id")
		c.String(200, "%v", id)
	})

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}
	if w.Body.String() == "" {
		t.Error("expected request_id in context")
	}
}

func TestRequestIDPreserved(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(200) })

	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "caller-id-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "caller-id-123" {
		t.Errorf("X-Request-ID = %q, want caller-id-123", got)
	}
}

func TestCORSAllowedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://ui.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(200) })

	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Errorf("Allow-Origin = %q, want the whitelisted origin", got)
	}
}

func TestCORSRejectedOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://ui.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(200) })

	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("non-whitelisted origin must not get CORS headers")
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://ui.example.com"}))

	req, _ := http.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight from whitelisted origin = %d, want 204", w.Code)
	}

	req, _ = http.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("preflight from unknown origin = %d, want 403", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	req, _ := http.NewRequest("GET", "/panic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic response = %d, want 500", w.Code)
	}
}

func TestErrorHandlerAppError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(errors.New(errors.ErrCodeTaskNotFound, "task not found"))
	})

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("app error status = %d, want 404", w.Code)
	}
}

func TestErrorHandlerHidesInternalMessages(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("sensitive database path /var/lib/app.db"))
	})

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := w.Body.String(); body == "" || strings.Contains(body, "sensitive") {
		t.Errorf("internal message leaked in production mode: %s", body)
	}
}

type staticValidator struct {
	username string
	err      error
}

func (v staticValidator) ValidateToken(string) (string, error) {
	return v.username, v.err
}

func TestJWTAuth(t *testing.T) {
	r := gin.New()
	r.Use(JWTAuth(staticValidator{username: "admin"}))
	r.GET("/", func(c *gin.Context) {
		username, _ := c.Get("username")
		c.String(200, "%v", username)
	})

	// Missing header
	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no header = %d, want 401", w.Code)
	}

	// Malformed header
	req, _ = http.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("malformed header = %d, want 401", w.Code)
	}

	// Valid token
	req, _ = http.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
	if w.Body.String() != "admin" {
		t.Errorf("username = %q, want admin", w.Body.String())
	}
}

func TestJWTAuthInvalidToken(t *testing.T) {
	r := gin.New()
	r.Use(JWTAuth(staticValidator{err: fmt.Errorf("token expired")}))
	r.GET("/", func(c *gin.Context) { c.Status(200) })

	req, _ := http.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token = %d, want 401", w.Code)
	}
}
