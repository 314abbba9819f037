package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/database"
	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/internal/queue"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/internal/tasks"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "error", Format: "console"})
}

func setupTestRouter(t *testing.T) (*gin.Engine, func()) {
	t.Helper()
	s, cleanup := store.SetupTestDB(t)

	if err := database.InitTaskLogDBWithPath(filepath.Join(t.TempDir(), "task_logs.db")); err != nil {
		t.Fatalf("init task log db: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt hash failed: %v", err)
	}

	cfg := config.Default()
	cfg.Admin = &config.AdminConfig{
		Enabled:      true,
		Username:     "admin",
		PasswordHash: string(hash),
		JWTSecret:    "router-test-secret",
	}

	q := queue.NewWithBackend(queue.NewMemoryBackend(), time.Minute, nil)
	svc := tasks.NewService(s, q, cfg.Task)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	Setup(r, cfg, Deps{
		Store:   s,
		Queue:   q,
		Tasks:   svc,
		Clients: platform.NewFactoryWithClients(),
	})
	return r, cleanup
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "hunter22",
	})
	req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestHealthEndpoint(t *testing.T) {
	r, cleanup := setupTestRouter(t)
	defer cleanup()

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r, cleanup := setupTestRouter(t)
	defer cleanup()

	paths := []struct {
		method, path string
	}{
		{"GET", "/api/v1/tasks"},
		{"GET", "/api/v1/projects"},
		{"GET", "/api/v1/templates"},
		{"GET", "/api/v1/stats"},
		{"GET", "/api/v1/admin/queue/status"},
		{"POST", "/api/v1/admin/tasks/some-id/requeue"},
	}
	for _, p := range paths {
		req, _ := http.NewRequest(p.method, p.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", p.method, p.path, w.Code)
		}
	}
}

func TestProtectedRouteWithToken(t *testing.T) {
	r, cleanup := setupTestRouter(t)
	defer cleanup()

	token := login(t, r)

	req, _ := http.NewRequest("GET", "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("tasks with token = %d, want 200 (%s)", w.Code, w.Body.String())
	}

	req, _ = http.NewRequest("GET", "/api/v1/admin/queue/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("queue status with token = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestUnknownWebhookPlatform(t *testing.T) {
	r, cleanup := setupTestRouter(t)
	defer cleanup()

	req, _ := http.NewRequest("POST", "/api/v1/webhooks/unknown", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown platform webhook = %d, want 404", w.Code)
	}
}
