// Package engine runs the review pipeline: a worker pool that polls the
// task queue, a retry service with exponential backoff, and a recovery
// sweep that rescues tasks stranded by dead workers.
package engine

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/ai"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/pkg/logger"
	"github.com/reviewflow/reviewflow/pkg/telemetry"
)

// maxBackoffExponent caps the retry delay at 2^10 seconds.
const maxBackoffExponent = 10

// RetryQueue is the queue surface the retry service needs.
type RetryQueue interface {
	RequeueWithDelay(ctx context.Context, taskID string, priority model.TaskPriority, delay time.Duration) error
	ReleaseLock(ctx context.Context, taskID string) error
}

// RetryService decides what happens to a task after a failed review:
// permanent failure for errors retrying cannot fix, a delayed requeue
// for transient ones.
type RetryService struct {
	tasks   store.TaskStore
	queue   RetryQueue
	metrics *telemetry.Metrics
	jitter  func() int
}

// NewRetryService creates a retry service.
func NewRetryService(tasks store.TaskStore, queue RetryQueue, metrics *telemetry.Metrics) *RetryService {
	return &RetryService{
		tasks:   tasks,
		queue:   queue,
		metrics: metrics,
		jitter:  func() int { return rand.Intn(2) },
	}
}

// backoffDelay returns 2^retryCount seconds plus up to one second of
// jitter. retryCount is the count before the current failure is
// recorded, so the first retry waits roughly one second.
func (s *RetryService) backoffDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > maxBackoffExponent {
		retryCount = maxBackoffExponent
	}
	return time.Duration(int64(1)<<retryCount+int64(s.jitter())) * time.Second
}

// HandleFailure records a task failure and schedules a retry when the
// failure classification allows one. Queue errors are logged and never
// propagated; the dequeue lock is always released best-effort so the
// task does not stay blocked until the lock TTL expires.
func (s *RetryService) HandleFailure(ctx context.Context, task *model.ReviewTask, ft ai.FailureType, message string) {
	defer s.releaseLock(ctx, task.ID)

	if !ai.IsRetryable(ft) {
		if err := s.tasks.MarkTaskFailedPermanently(task.ID, message); err != nil {
			logger.Error("Failed to mark task permanently failed",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			return
		}
		s.metrics.RecordPermanentFailure(ctx, string(ft))
		logger.Warn("Task failed permanently",
			zap.String("task_id", task.ID),
			zap.String("failure_type", string(ft)),
			zap.String("reason", message),
		)
		return
	}

	delay := s.backoffDelay(task.RetryCount)
	updated, err := s.tasks.MarkTaskFailed(task.ID, message)
	if err != nil {
		logger.Error("Failed to record task failure",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordTaskRetry(ctx, string(ft))

	switch updated.Status {
	case model.TaskStatusPending:
		if err := s.queue.RequeueWithDelay(ctx, task.ID, updated.Priority, delay); err != nil {
			logger.Error("Failed to requeue task for retry",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			return
		}
		logger.Info("Task scheduled for retry",
			zap.String("task_id", task.ID),
			zap.String("failure_type", string(ft)),
			zap.Int("retry_count", updated.RetryCount),
			zap.Duration("delay", delay),
		)
	case model.TaskStatusFailed:
		s.metrics.RecordPermanentFailure(ctx, string(ft))
		logger.Warn("Task exhausted its retries",
			zap.String("task_id", task.ID),
			zap.Int("retry_count", updated.RetryCount),
			zap.String("reason", message),
		)
	}
}

func (s *RetryService) releaseLock(ctx context.Context, taskID string) {
	if err := s.queue.ReleaseLock(ctx, taskID); err != nil {
		logger.Warn("Failed to release task lock",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}
