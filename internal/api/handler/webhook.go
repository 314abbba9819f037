// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/git/platform"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/internal/tasks"
	pkgerrors "github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// WebhookHandler receives Git platform webhooks and turns them into
// review tasks.
type WebhookHandler struct {
	clients *platform.Factory
	store   store.Store
	tasks   *tasks.Service
	secrets map[string]string // platform name -> webhook secret
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(clients *platform.Factory, s store.Store, svc *tasks.Service, git config.GitConfig) *WebhookHandler {
	secrets := make(map[string]string)
	for _, p := range git.Platforms {
		if p.WebhookSecret != "" {
			secrets[p.Type] = p.WebhookSecret
		}
	}
	return &WebhookHandler{clients: clients, store: s, tasks: svc, secrets: secrets}
}

// HandleWebhook handles POST /api/v1/webhooks/:platform
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	platformName := c.Param("platform")

	client, err := h.clients.ClientByName(platformName)
	if err != nil {
		logger.Warn("Unknown webhook platform", zap.String("platform", platformName))
		c.JSON(http.StatusNotFound, gin.H{
			"code":    pkgerrors.ErrCodeGitNotFound,
			"message": "Unknown platform: " + platformName,
		})
		return
	}

	secret := h.secrets[platformName]
	if secret == "" {
		logger.Warn("Webhook secret not configured, signature validation skipped",
			zap.String("platform", platformName),
		)
	}

	event, err := client.ParseWebhook(c.Request, secret)
	if err != nil {
		logger.Warn("Failed to parse webhook",
			zap.String("platform", platformName),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeGitWebhook,
			"message": "Failed to parse webhook: " + err.Error(),
		})
		return
	}

	logger.Info("Webhook received",
		zap.String("platform", platformName),
		zap.String("type", string(event.Type)),
		zap.String("repo", event.Owner+"/"+event.Repo),
		zap.String("ref", event.Ref),
		zap.String("action", event.Action),
		zap.String("sender", event.Sender),
		zap.Int("pr_number", event.PRNumber),
	)

	switch event.Type {
	case platform.EventTypePush:
		h.createTask(c, event)
	case platform.EventTypePullRequest, platform.EventTypeMergeRequest:
		if !platform.ShouldProcessPREvent(event.Action) {
			logger.Info("PR/MR action skipped, not triggering review",
				zap.String("platform", platformName),
				zap.String("action", event.Action),
				zap.Int("pr_number", event.PRNumber),
			)
			c.JSON(http.StatusOK, gin.H{
				"message": "PR action not supported for code review, skipping",
				"action":  event.Action,
			})
			return
		}
		h.createTask(c, event)
	default:
		c.JSON(http.StatusOK, gin.H{
			"message": "Event received but not processed",
			"type":    event.Type,
		})
	}
}

// createTask resolves the project for an event and creates a review task.
// Unknown repositories get a project auto-created so they show up in the
// project list without manual registration.
func (h *WebhookHandler) createTask(c *gin.Context, event *platform.WebhookEvent) {
	project, err := h.resolveProject(event)
	if err != nil {
		logger.Error("Failed to resolve project for webhook",
			zap.String("repo_url", event.RepoURL),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to resolve project",
		})
		return
	}

	if !project.Enabled {
		logger.Info("Project disabled, skipping review",
			zap.String("project_id", project.ID),
			zap.String("repo_url", project.RepoURL),
		)
		c.JSON(http.StatusOK, gin.H{
			"message":    "Project is disabled, skipping",
			"project_id": project.ID,
		})
		return
	}

	task, created, err := h.tasks.CreateFromWebhook(c.Request.Context(), project, event)
	if err != nil {
		if appErr, ok := pkgerrors.AsAppError(err); ok {
			c.JSON(appErr.HTTPStatus(), gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeInternal,
			"message": "Failed to create review task",
		})
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{
			"message": "Task already exists for this commit",
			"task_id": task.ID,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":   "Review task created",
		"task_id":   task.ID,
		"pr_number": event.PRNumber,
	})
}

func (h *WebhookHandler) resolveProject(event *platform.WebhookEvent) (*model.Project, error) {
	project, err := h.store.Project().GetByRepoURL(event.RepoURL)
	if err == nil {
		return project, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	id, err := h.store.Project().Ensure(event.RepoURL, event.Platform, event.Owner+"/"+event.Repo)
	if err != nil {
		return nil, err
	}
	return h.store.Project().GetByID(id)
}
