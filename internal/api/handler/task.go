// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reviewflow/reviewflow/internal/queue"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/internal/tasks"
	pkgerrors "github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// TaskHandler handles review task HTTP requests.
type TaskHandler struct {
	store store.Store
	tasks *tasks.Service
	queue *queue.Queue
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(s store.Store, svc *tasks.Service, q *queue.Queue) *TaskHandler {
	return &TaskHandler{store: s, tasks: svc, queue: q}
}

// List handles GET /api/v1/tasks
// Query parameters: status and project_id (optional filters), page, page_size.
func (h *TaskHandler) List(c *gin.Context) {
	status := c.Query("status")
	projectID := c.Query("project_id")
	page, pageSize, offset := parsePagination(c)

	taskList, total, err := h.store.Task().List(status, projectID, pageSize, offset)
	if err != nil {
		logger.Error("Failed to list tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to list tasks",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      taskList,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get handles GET /api/v1/tasks/:id
// The response includes the task's review records.
func (h *TaskHandler) Get(c *gin.Context) {
	id := c.Param("id")

	task, err := h.store.Task().GetByIDWithRecords(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    pkgerrors.ErrCodeTaskNotFound,
				"message": "Task not found: " + id,
			})
			return
		}
		logger.Error("Failed to get task", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to get task",
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

// Requeue handles POST /api/v1/admin/tasks/:id/requeue
// Puts a PENDING task back on the queue after a lost enqueue.
func (h *TaskHandler) Requeue(c *gin.Context) {
	id := c.Param("id")

	if err := h.tasks.Requeue(c.Request.Context(), id); err != nil {
		if appErr, ok := pkgerrors.AsAppError(err); ok {
			c.JSON(appErr.HTTPStatus(), gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}
		logger.Error("Failed to requeue task", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeQueuePush,
			"message": "Failed to requeue task",
		})
		return
	}

	logger.Info("Task requeued via API", zap.String("task_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Task requeued", "task_id": id})
}

// ReleaseLock handles POST /api/v1/admin/tasks/:id/release-lock
// Drops the processing lock of a task whose worker is gone. The recovery
// sweep does this automatically; this endpoint exists for operators who
// do not want to wait for the next sweep.
func (h *TaskHandler) ReleaseLock(c *gin.Context) {
	id := c.Param("id")

	if err := h.queue.ReleaseLock(c.Request.Context(), id); err != nil {
		logger.Error("Failed to release task lock", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeQueueLock,
			"message": "Failed to release lock",
		})
		return
	}

	logger.Info("Task lock released via API", zap.String("task_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Lock released", "task_id": id})
}

// LockStatus handles GET /api/v1/admin/tasks/:id/lock
// Reports whether a dequeue lock is held for the task and by which worker.
func (h *TaskHandler) LockStatus(c *gin.Context) {
	id := c.Param("id")

	owner, held, err := h.queue.LockInfo(c.Request.Context(), id)
	if err != nil {
		logger.Error("Failed to read task lock", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeQueueLock,
			"message": "Failed to read lock",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"task_id": id, "locked": held, "worker_id": owner})
}

// Delete handles DELETE /api/v1/admin/tasks/:id
// Removes the task from the queue before deleting the row so a queued
// entry cannot resurrect it.
func (h *TaskHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.store.Task().GetByID(id); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    pkgerrors.ErrCodeTaskNotFound,
				"message": "Task not found: " + id,
			})
			return
		}
		logger.Error("Failed to get task", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to get task",
		})
		return
	}

	if err := h.queue.Remove(c.Request.Context(), id); err != nil {
		logger.Warn("Failed to remove task from queue before delete",
			zap.String("task_id", id), zap.Error(err))
	}

	if err := h.store.Task().Delete(id); err != nil {
		logger.Error("Failed to delete task", zap.String("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    pkgerrors.ErrCodeDBQuery,
			"message": "Failed to delete task",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted", "task_id": id})
}
