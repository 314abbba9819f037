// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/consts"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	pkgerrors "github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// TemplateHandler handles prompt template HTTP requests.
type TemplateHandler struct {
	store store.Store
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(s store.Store) *TemplateHandler {
	return &TemplateHandler{store: s}
}

// TemplateRequest is the create/update request body.
type TemplateRequest struct {
	Category string `json:"category"`
	Name     string `json:"name" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Enabled  *bool  `json:"enabled"`
}

// List handles GET /api/v1/templates
// Query parameter: category (defaults to code-review).
func (h *TemplateHandler) List(c *gin.Context) {
	category := c.DefaultQuery("category", consts.TemplateCategoryCodeReview)

	templates, err := h.store.Template().ListByCategory(category)
	if err != nil {
		logger.Error("Failed to list templates", zap.String("category", category), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to list templates",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     templates,
		"category": category,
	})
}

// Get handles GET /api/v1/templates/:id
func (h *TemplateHandler) Get(c *gin.Context) {
	tmpl, ok := h.loadTemplate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// Create handles POST /api/v1/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	tmpl := &model.PromptTemplate{
		Category: req.Category,
		Name:     req.Name,
		Content:  req.Content,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if tmpl.Category == "" {
		tmpl.Category = consts.TemplateCategoryCodeReview
	}

	if err := h.store.Template().Create(tmpl); err != nil {
		logger.Error("Failed to create template", zap.String("name", req.Name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to create template",
		})
		return
	}

	c.JSON(http.StatusCreated, tmpl)
}

// Update handles PUT /api/v1/templates/:id
func (h *TemplateHandler) Update(c *gin.Context) {
	tmpl, ok := h.loadTemplate(c)
	if !ok {
		return
	}

	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	tmpl.Name = req.Name
	tmpl.Content = req.Content
	if req.Category != "" {
		tmpl.Category = req.Category
	}
	if req.Enabled != nil {
		tmpl.Enabled = *req.Enabled
	}

	if err := h.store.Template().Update(tmpl); err != nil {
		logger.Error("Failed to update template", zap.Uint("template_id", tmpl.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to update template",
		})
		return
	}

	c.JSON(http.StatusOK, tmpl)
}

// Delete handles DELETE /api/v1/templates/:id
func (h *TemplateHandler) Delete(c *gin.Context) {
	tmpl, ok := h.loadTemplate(c)
	if !ok {
		return
	}

	if err := h.store.Template().Delete(tmpl.ID); err != nil {
		logger.Error("Failed to delete template", zap.Uint("template_id", tmpl.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to delete template",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template deleted", "template_id": tmpl.ID})
}

func (h *TemplateHandler) loadTemplate(c *gin.Context) (*model.PromptTemplate, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid template ID",
		})
		return nil, false
	}

	tmpl, err := h.store.Template().GetByID(uint(id))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    pkgerrors.ErrCodeTemplateNotFound,
				"message": "Template not found",
			})
			return nil, false
		}
		logger.Error("Failed to get template", zap.Uint64("template_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to get template",
		})
		return nil, false
	}
	return tmpl, true
}
