// Package queue implements the priority task queue backing the review
// scheduler. Task IDs are held in a sorted set whose score encodes both
// priority and arrival time, so a single pop-min returns the next task in
// priority order with FIFO ties. A per-task lock guards each dequeued task
// against concurrent workers.
package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/errors"
	"github.com/reviewflow/reviewflow/pkg/idgen"
	"github.com/reviewflow/reviewflow/pkg/logger"
	"github.com/reviewflow/reviewflow/pkg/telemetry"
)

// priorityBand separates priority tiers in the score space. Any timestamp in
// the coming centuries stays below this value, so a lower-priority task can
// never outrank a higher-priority one on age alone.
const priorityBand = 1e13

// ScoreFor computes the sorted-set score for a task of the given priority
// enqueued at time t. Lower scores dequeue first: higher priority shrinks
// the leading band term, and within a band older tasks win.
func ScoreFor(priority model.TaskPriority, t time.Time) float64 {
	return float64(100-priority.Score())*priorityBand + float64(t.UnixMilli())
}

// Backend provides the sorted-set and lock primitives the queue is built on.
type Backend interface {
	// Add inserts or updates a member with the given score.
	Add(ctx context.Context, member string, score float64) error

	// PopMin atomically removes and returns the member with the lowest
	// score. ok is false when the set is empty.
	PopMin(ctx context.Context) (member string, score float64, ok bool, err error)

	// Remove deletes a member from the set.
	Remove(ctx context.Context, member string) error

	// Card returns the number of members in the set.
	Card(ctx context.Context) (int64, error)

	// AcquireLock attempts to take the per-task lock for taskID, owned by
	// ownerID, expiring after ttl. Returns false when the lock is held.
	AcquireLock(ctx context.Context, taskID, ownerID string, ttl time.Duration) (bool, error)

	// ReleaseLock drops the per-task lock. Releasing an absent lock is a no-op.
	ReleaseLock(ctx context.Context, taskID string) error

	// GetLock returns the current lock holder for taskID. held is false
	// when no live lock exists.
	GetLock(ctx context.Context, taskID string) (owner string, held bool, err error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Queue schedules review tasks by ID with priority ordering and per-task
// dequeue locks.
type Queue struct {
	backend Backend
	lockTTL time.Duration
	metrics *telemetry.Metrics
}

// New builds a Queue from configuration, selecting the backend by name.
func New(cfg config.QueueConfig, metrics *telemetry.Metrics) (*Queue, error) {
	var backend Backend
	switch cfg.Backend {
	case "", "redis":
		backend = NewRedisBackend(cfg)
	case "memory":
		backend = NewMemoryBackend()
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, "unknown queue backend: "+cfg.Backend)
	}

	ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 300 * time.Second
	}

	return NewWithBackend(backend, ttl, metrics), nil
}

// NewWithBackend builds a Queue over an explicit backend. Used by tests and
// by callers that manage the backend lifecycle themselves.
func NewWithBackend(backend Backend, lockTTL time.Duration, metrics *telemetry.Metrics) *Queue {
	return &Queue{
		backend: backend,
		lockTTL: lockTTL,
		metrics: metrics,
	}
}

// Enqueue schedules a task at its priority with the current time.
func (q *Queue) Enqueue(ctx context.Context, taskID string, priority model.TaskPriority) error {
	score := ScoreFor(priority, time.Now())
	if err := q.backend.Add(ctx, taskID, score); err != nil {
		return errors.Wrap(errors.ErrCodeQueuePush, "failed to enqueue task", err)
	}

	q.metrics.RecordEnqueue(ctx, string(priority))
	logger.Debug("Task enqueued",
		zap.String("task_id", taskID),
		zap.String("priority", string(priority)),
		zap.Float64("score", score),
	)
	return nil
}

// Dequeue pops the next task and takes its lock on behalf of workerID.
// Returns an empty string when no task is available. When the lock for a
// popped task is already held, the task is restored at its original score
// and no task is returned; the caller simply polls again.
func (q *Queue) Dequeue(ctx context.Context, workerID string) (string, error) {
	for {
		taskID, score, ok, err := q.backend.PopMin(ctx)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeQueuePop, "failed to pop task", err)
		}
		if !ok {
			return "", nil
		}

		// Entries that are not valid task IDs cannot be processed and
		// would poison the queue if requeued. Drop them.
		if !idgen.IsValid(taskID) {
			logger.Warn("Dropping corrupted queue entry",
				zap.String("entry", taskID),
				zap.Float64("score", score),
			)
			continue
		}

		acquired, err := q.backend.AcquireLock(ctx, taskID, workerID, q.lockTTL)
		if err != nil {
			// Put the task back before surfacing the error so it is
			// not lost between the pop and the lock.
			if addErr := q.backend.Add(ctx, taskID, score); addErr != nil {
				logger.Error("Failed to restore task after lock error",
					zap.String("task_id", taskID),
					zap.Error(addErr),
				)
			}
			return "", errors.Wrap(errors.ErrCodeQueueLock, "failed to acquire task lock", err)
		}
		if !acquired {
			// Another worker holds this task. Restore it at its
			// original score so its queue position is preserved.
			q.metrics.RecordLockConflict(ctx)
			logger.Debug("Task lock held elsewhere, requeuing",
				zap.String("task_id", taskID),
				zap.String("worker_id", workerID),
			)
			if err := q.backend.Add(ctx, taskID, score); err != nil {
				return "", errors.Wrap(errors.ErrCodeQueuePush, "failed to restore contended task", err)
			}
			return "", nil
		}

		q.metrics.RecordDequeue(ctx)
		logger.Debug("Task dequeued",
			zap.String("task_id", taskID),
			zap.String("worker_id", workerID),
		)
		return taskID, nil
	}
}

// RequeueWithDelay releases the task's lock and reschedules it at its
// priority, deferred by delay. Used by retry handling.
func (q *Queue) RequeueWithDelay(ctx context.Context, taskID string, priority model.TaskPriority, delay time.Duration) error {
	if err := q.backend.ReleaseLock(ctx, taskID); err != nil {
		logger.Warn("Failed to release task lock before requeue",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}

	score := ScoreFor(priority, time.Now().Add(delay))
	if err := q.backend.Add(ctx, taskID, score); err != nil {
		return errors.Wrap(errors.ErrCodeQueuePush, "failed to requeue task", err)
	}

	q.metrics.RecordEnqueue(ctx, string(priority))
	logger.Info("Task requeued with delay",
		zap.String("task_id", taskID),
		zap.String("priority", string(priority)),
		zap.Duration("delay", delay),
	)
	return nil
}

// ReleaseLock drops the per-task lock. Safe to call when no lock exists.
func (q *Queue) ReleaseLock(ctx context.Context, taskID string) error {
	return q.backend.ReleaseLock(ctx, taskID)
}

// LockInfo reports whether a dequeue lock is held for the task and by
// which worker.
func (q *Queue) LockInfo(ctx context.Context, taskID string) (string, bool, error) {
	return q.backend.GetLock(ctx, taskID)
}

// Remove deletes a task from the queue without locking it.
func (q *Queue) Remove(ctx context.Context, taskID string) error {
	return q.backend.Remove(ctx, taskID)
}

// Size returns the number of queued tasks.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	n, err := q.backend.Card(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueueUnavailable, "failed to read queue size", err)
	}
	return n, nil
}

// HealthCheck verifies the backend is reachable.
func (q *Queue) HealthCheck(ctx context.Context) error {
	if err := q.backend.Ping(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeQueueUnavailable, "queue backend unreachable", err)
	}
	return nil
}

// Close releases backend resources.
func (q *Queue) Close() error {
	return q.backend.Close()
}
