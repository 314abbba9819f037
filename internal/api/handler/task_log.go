// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	pkgerrors "github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// TaskLogHandler handles task log HTTP requests. Logs live in a
// separate database from the main stores.
type TaskLogHandler struct {
	logs store.TaskLogStore
}

// NewTaskLogHandler creates a new task log handler.
func NewTaskLogHandler(logs store.TaskLogStore) *TaskLogHandler {
	return &TaskLogHandler{logs: logs}
}

const (
	defaultLogPageSize = 50
	maxLogPageSize     = 500
)

// GetTaskLogs handles GET /api/v1/tasks/:id/logs
// Query parameters:
//   - level: optional minimum log level (debug, info, warn, error)
//   - page, page_size: pagination, ignored when level is set
func (h *TaskLogHandler) GetTaskLogs(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid task ID",
		})
		return
	}

	if level := c.Query("level"); level != "" {
		h.getLogsByLevel(c, id, level)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultLogPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultLogPageSize
	}
	if pageSize > maxLogPageSize {
		pageSize = maxLogPageSize
	}

	logs, total, err := h.logs.GetByTaskIDWithPagination(id, page, pageSize)
	if err != nil {
		logger.Error("Failed to fetch task logs", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to fetch task logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      logs,
		"total":     total,
		"task_id":   id,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *TaskLogHandler) getLogsByLevel(c *gin.Context, id, level string) {
	switch model.LogLevel(level) {
	case model.LogLevelDebug, model.LogLevelInfo, model.LogLevelWarn, model.LogLevelError, model.LogLevelFatal:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid log level: " + level,
		})
		return
	}

	logs, err := h.logs.GetByTaskIDWithLevelAndAbove(id, model.LogLevel(level))
	if err != nil {
		logger.Error("Failed to fetch task logs", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to fetch task logs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    logs,
		"total":   len(logs),
		"task_id": id,
		"level":   level,
	})
}
