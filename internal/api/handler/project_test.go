package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
)

func newProjectTestEnv(t *testing.T) (*gin.Engine, store.Store, func()) {
	t.Helper()
	s, cleanup := store.SetupTestDB(t)
	h := NewProjectHandler(s)

	router := SetupTestRouter()
	router.GET("/api/v1/projects", h.List)
	router.GET("/api/v1/projects/:id", h.Get)
	router.POST("/api/v1/projects", h.Create)
	router.PUT("/api/v1/projects/:id", h.Update)
	router.DELETE("/api/v1/projects/:id", h.Delete)
	return router, s, cleanup
}

func TestProjectCreate(t *testing.T) {
	router, s, cleanup := newProjectTestEnv(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("POST", "/api/v1/projects", map[string]interface{}{
		"name":           "widgets",
		"platform":       "github",
		"repo_url":       "https://github.com/acme/widgets",
		"webhook_secret": "hook-secret",
		"access_token":   "ghp_token",
	}))
	AssertStatus(t, w, http.StatusCreated)

	body := DecodeResponse(t, w)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("expected project id in response")
	}
	if strings.Contains(w.Body.String(), "hook-secret") || strings.Contains(w.Body.String(), "ghp_token") {
		t.Error("secrets must never appear in API responses")
	}

	project, err := s.Project().GetByID(id)
	if err != nil {
		t.Fatalf("created project not found: %v", err)
	}
	if project.WebhookSecret != "hook-secret" || project.AccessToken != "ghp_token" {
		t.Error("secrets should be stored")
	}
	if project.DefaultBranch != "main" {
		t.Errorf("default branch = %q, want main", project.DefaultBranch)
	}
	if !project.Enabled {
		t.Error("project should default to enabled")
	}
}

func TestProjectCreateValidation(t *testing.T) {
	router, _, cleanup := newProjectTestEnv(t)
	defer cleanup()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("POST", "/api/v1/projects", map[string]interface{}{
		"name": "missing-platform-and-url",
	}))
	AssertStatus(t, w, http.StatusBadRequest)
}

func TestProjectGetMasksSecrets(t *testing.T) {
	router, s, cleanup := newProjectTestEnv(t)
	defer cleanup()

	project := store.CreateTestProject(t, s, func(p *model.Project) {
		p.WebhookSecret = "super-secret-value"
		p.AccessToken = "glpat-abcdef123456"
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("GET", "/api/v1/projects/"+project.ID, nil))
	AssertStatus(t, w, http.StatusOK)

	body := DecodeResponse(t, w)
	masked, _ := body["webhook_secret"].(string)
	if masked != "su****ue" {
		t.Errorf("webhook_secret = %q, want masked su****ue", masked)
	}
	if strings.Contains(w.Body.String(), "super-secret-value") ||
		strings.Contains(w.Body.String(), "glpat-abcdef123456") {
		t.Error("raw secrets leaked in project response")
	}
}

func TestProjectUpdateKeepsSecretsWhenOmitted(t *testing.T) {
	router, s, cleanup := newProjectTestEnv(t)
	defer cleanup()

	project := store.CreateTestProject(t, s, func(p *model.Project) {
		p.WebhookSecret = "original-secret"
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("PUT", "/api/v1/projects/"+project.ID, map[string]interface{}{
		"name":     "renamed",
		"platform": project.Platform,
		"repo_url": project.RepoURL,
	}))
	AssertStatus(t, w, http.StatusOK)

	updated, err := s.Project().GetByID(project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("name = %q, want renamed", updated.Name)
	}
	if updated.WebhookSecret != "original-secret" {
		t.Error("omitted webhook secret should keep the stored value")
	}
}

func TestProjectUpdateDisables(t *testing.T) {
	router, s, cleanup := newProjectTestEnv(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)
	disabled := false

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("PUT", "/api/v1/projects/"+project.ID, map[string]interface{}{
		"name":     project.Name,
		"platform": project.Platform,
		"repo_url": project.RepoURL,
		"enabled":  disabled,
	}))
	AssertStatus(t, w, http.StatusOK)

	updated, err := s.Project().GetByID(project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if updated.Enabled {
		t.Error("project should be disabled")
	}
}

func TestProjectDelete(t *testing.T) {
	router, s, cleanup := newProjectTestEnv(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("DELETE", "/api/v1/projects/"+project.ID, nil))
	AssertStatus(t, w, http.StatusOK)

	if _, err := s.Project().GetByID(project.ID); err == nil {
		t.Error("project should be deleted")
	}
}

func TestProjectNotFound(t *testing.T) {
	router, _, cleanup := newProjectTestEnv(t)
	defer cleanup()

	for _, req := range []*http.Request{
		CreateTestRequest("GET", "/api/v1/projects/missing", nil),
		CreateTestRequest("DELETE", "/api/v1/projects/missing", nil),
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		AssertStatus(t, w, http.StatusNotFound)
	}
}

func TestProjectList(t *testing.T) {
	router, s, cleanup := newProjectTestEnv(t)
	defer cleanup()

	store.CreateTestProject(t, s)
	store.CreateTestProject(t, s)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, CreateTestRequest("GET", "/api/v1/projects", nil))
	AssertStatus(t, w, http.StatusOK)
	body := DecodeResponse(t, w)
	if int(body["total"].(float64)) != 2 {
		t.Errorf("total = %v, want 2", body["total"])
	}
}
