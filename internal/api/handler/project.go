// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	pkgerrors "github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/idgen"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// ProjectHandler handles project HTTP requests.
type ProjectHandler struct {
	store store.Store
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(s store.Store) *ProjectHandler {
	return &ProjectHandler{store: s}
}

// ProjectRequest is the create/update request body. Secrets are
// write-only: they are accepted here but never serialized back.
type ProjectRequest struct {
	Name          string `json:"name" binding:"required"`
	Platform      string `json:"platform" binding:"required"`
	RepoURL       string `json:"repo_url" binding:"required"`
	DefaultBranch string `json:"default_branch"`
	WebhookSecret string `json:"webhook_secret"`
	AccessToken   string `json:"access_token"`
	Enabled       *bool  `json:"enabled"`
}

// List handles GET /api/v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	page, pageSize, offset := parsePagination(c)

	projects, total, err := h.store.Project().List(pageSize, offset)
	if err != nil {
		logger.Error("Failed to list projects", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to list projects",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      projects,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get handles GET /api/v1/projects/:id
// Secrets are reported masked so an operator can tell whether they are
// set without the API ever returning them.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project":        project,
		"webhook_secret": maskedOrEmpty(project.WebhookSecret),
		"access_token":   maskedOrEmpty(project.AccessToken),
	})
}

// Create handles POST /api/v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	project := &model.Project{
		ID:            idgen.NewID(),
		Name:          req.Name,
		Platform:      req.Platform,
		RepoURL:       req.RepoURL,
		DefaultBranch: req.DefaultBranch,
		WebhookSecret: req.WebhookSecret,
		AccessToken:   req.AccessToken,
		Enabled:       req.Enabled == nil || *req.Enabled,
	}
	if project.DefaultBranch == "" {
		project.DefaultBranch = "main"
	}

	if err := h.store.Project().Create(project); err != nil {
		logger.Error("Failed to create project",
			zap.String("repo_url", req.RepoURL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to create project",
		})
		return
	}

	logger.Info("Project created",
		zap.String("project_id", project.ID),
		zap.String("repo_url", project.RepoURL),
	)
	c.JSON(http.StatusCreated, project)
}

// Update handles PUT /api/v1/projects/:id
// Empty secret fields keep the stored values; sending a new value
// replaces them.
func (h *ProjectHandler) Update(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	project.Name = req.Name
	project.Platform = req.Platform
	project.RepoURL = req.RepoURL
	if req.DefaultBranch != "" {
		project.DefaultBranch = req.DefaultBranch
	}
	if req.WebhookSecret != "" {
		project.WebhookSecret = req.WebhookSecret
	}
	if req.AccessToken != "" {
		project.AccessToken = req.AccessToken
	}
	if req.Enabled != nil {
		project.Enabled = *req.Enabled
	}

	if err := h.store.Project().Update(project); err != nil {
		logger.Error("Failed to update project",
			zap.String("project_id", project.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to update project",
		})
		return
	}

	c.JSON(http.StatusOK, project)
}

// Delete handles DELETE /api/v1/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	if err := h.store.Project().Delete(project.ID); err != nil {
		logger.Error("Failed to delete project",
			zap.String("project_id", project.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to delete project",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted", "project_id": project.ID})
}

func (h *ProjectHandler) loadProject(c *gin.Context) (*model.Project, bool) {
	id := c.Param("id")
	project, err := h.store.Project().GetByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    pkgerrors.ErrCodeNotFound,
				"message": "Project not found: " + id,
			})
			return nil, false
		}
		logger.Error("Failed to get project", zap.String("project_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to get project",
		})
		return nil, false
	}
	return project, true
}

func maskedOrEmpty(secret string) string {
	if secret == "" {
		return ""
	}
	return maskString(secret)
}
