// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/queue"
	"github.com/reviewflow/reviewflow/internal/store"
	pkgerrors "github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// StatsHandler handles statistics HTTP requests.
type StatsHandler struct {
	store store.Store
	queue *queue.Queue
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(s store.Store, q *queue.Queue) *StatsHandler {
	return &StatsHandler{store: s, queue: q}
}

// Overview is the response of the stats endpoint.
type Overview struct {
	TotalTasks     int64            `json:"total_tasks"`
	TasksByStatus  map[string]int64 `json:"tasks_by_status"`
	QueueSize      int64            `json:"queue_size"`
	TimeRange      string           `json:"time_range"`
	CompletedCount int64            `json:"completed_count"`
	IssuesFound    int64            `json:"issues_found"`
	InputTokens    int64            `json:"input_tokens"`
	OutputTokens   int64            `json:"output_tokens"`
	AvgDurationSec float64          `json:"avg_duration_seconds"`
}

// GetOverview handles GET /api/v1/stats
// Query parameter: time_range, one of "24h", "7d", "30d" (default 7d).
// The windowed numbers (completed count, issues, tokens, average
// duration) cover that range; the task counts and queue size are
// point-in-time.
func (h *StatsHandler) GetOverview(c *gin.Context) {
	timeRange := c.DefaultQuery("time_range", "7d")

	var start time.Time
	now := time.Now()
	switch timeRange {
	case "24h":
		start = now.Add(-24 * time.Hour)
	case "7d":
		start = now.AddDate(0, 0, -7)
	case "30d":
		start = now.AddDate(0, 0, -30)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeValidation,
			"message": "Invalid time_range parameter. Must be one of: 24h, 7d, 30d",
		})
		return
	}

	overview := Overview{
		TimeRange:     timeRange,
		TasksByStatus: make(map[string]int64),
	}

	total, err := h.store.Task().CountAll()
	if err != nil {
		h.queryFailed(c, "count tasks", err)
		return
	}
	overview.TotalTasks = total

	for _, status := range []model.TaskStatus{
		model.TaskStatusPending,
		model.TaskStatusRunning,
		model.TaskStatusCompleted,
		model.TaskStatusFailed,
	} {
		count, err := h.store.Task().CountByStatus(status)
		if err != nil {
			h.queryFailed(c, "count tasks by status", err)
			return
		}
		overview.TasksByStatus[string(status)] = count
	}

	completed, err := h.store.Task().CountCompletedAfter(start)
	if err != nil {
		h.queryFailed(c, "count completed tasks", err)
		return
	}
	overview.CompletedCount = completed

	avgDuration, err := h.store.Task().GetAverageDurationAfter(start)
	if err != nil {
		h.queryFailed(c, "average task duration", err)
		return
	}
	overview.AvgDurationSec = avgDuration

	issues, err := h.store.Record().CountIssuesAfter(start)
	if err != nil {
		h.queryFailed(c, "count issues", err)
		return
	}
	overview.IssuesFound = issues

	inputTokens, outputTokens, err := h.store.Record().SumTokensAfter(start)
	if err != nil {
		h.queryFailed(c, "sum tokens", err)
		return
	}
	overview.InputTokens = inputTokens
	overview.OutputTokens = outputTokens

	// Queue size is best-effort: a queue backend outage should not take
	// the stats endpoint down with it.
	size, err := h.queue.Size(c.Request.Context())
	if err != nil {
		logger.Warn("Failed to read queue size for stats", zap.Error(err))
		size = -1
	}
	overview.QueueSize = size

	c.JSON(http.StatusOK, overview)
}

func (h *StatsHandler) queryFailed(c *gin.Context, what string, err error) {
	logger.Error("Stats query failed", zap.String("query", what), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    pkgerrors.ErrCodeDBQuery,
		"message": "Failed to compute statistics",
	})
}
