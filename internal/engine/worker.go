package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/ai"
	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/reviewer"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

// WorkQueue is the queue surface the worker pool needs.
type WorkQueue interface {
	Dequeue(ctx context.Context, workerID string) (string, error)
	ReleaseLock(ctx context.Context, taskID string) error
}

// TaskReviewer runs the review pipeline for one task.
type TaskReviewer interface {
	Review(ctx context.Context, task *model.ReviewTask) (*reviewer.Outcome, error)
}

// Pool polls the queue with a fixed set of workers. The queue's atomic
// pop and per-task locks are the only cross-worker synchronization; the
// pool itself holds no shared task state.
type Pool struct {
	queue    WorkQueue
	tasks    store.TaskStore
	reviewer TaskReviewer
	retry    *RetryService

	workers      int
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a worker pool sized from configuration.
func NewPool(queue WorkQueue, tasks store.TaskStore, rev TaskReviewer, retry *RetryService, cfg config.TaskConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	poll := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Pool{
		queue:        queue,
		tasks:        tasks,
		reviewer:     rev,
		retry:        retry,
		workers:      workers,
		pollInterval: poll,
	}
}

// Start launches the workers. Calling Start on a running pool is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	logger.Info("Starting review workers",
		zap.Int("workers", p.workers),
		zap.Duration("poll_interval", p.pollInterval),
	)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop signals the workers and waits for in-flight reviews to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	logger.Info("Review workers stopped")
}

func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		taskID, err := p.queue.Dequeue(ctx, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Dequeue failed",
				zap.String("worker", workerID),
				zap.Error(err),
			)
			p.idle(ctx)
			continue
		}
		if taskID == "" {
			p.idle(ctx)
			continue
		}
		p.process(ctx, workerID, taskID)
	}
}

// idle waits one poll interval or until shutdown.
func (p *Pool) idle(ctx context.Context) {
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// process runs one dequeued task through the review pipeline. The task
// lock is held from dequeue until the retry service or this method
// releases it.
func (p *Pool) process(ctx context.Context, workerID, taskID string) {
	task, err := p.tasks.GetByID(taskID)
	if err != nil {
		logger.Error("Dequeued task not found, dropping",
			zap.String("worker", workerID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		p.releaseLock(ctx, taskID)
		return
	}

	if task.Status != model.TaskStatusPending {
		logger.Warn("Skipping task not in PENDING state",
			zap.String("task_id", taskID),
			zap.String("status", string(task.Status)),
		)
		p.releaseLock(ctx, taskID)
		return
	}

	if err := p.tasks.MarkTaskStarted(task.ID, time.Now()); err != nil {
		logger.Warn("Failed to start task, another worker may own it",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		p.releaseLock(ctx, taskID)
		return
	}
	task.Status = model.TaskStatusRunning

	logger.Info("Review started",
		zap.String("worker", workerID),
		zap.String("task_id", task.ID),
		zap.String("repo_url", task.RepoURL),
		zap.String("commit", task.CommitHash),
	)

	outcome, err := p.reviewer.Review(ctx, task)
	if err != nil {
		// The orchestrator escalates only configuration errors such as
		// a missing prompt template. Retrying cannot fix those.
		p.retry.HandleFailure(ctx, task, ai.FailureValidation, err.Error())
		return
	}
	if !outcome.Success {
		p.retry.HandleFailure(ctx, task, outcome.FailureType, outcome.Message)
		return
	}

	if err := p.tasks.MarkTaskCompleted(task.ID); err != nil {
		logger.Error("Failed to mark task completed",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
	}
	p.releaseLock(ctx, task.ID)
}

func (p *Pool) releaseLock(ctx context.Context, taskID string) {
	if err := p.queue.ReleaseLock(ctx, taskID); err != nil {
		logger.Warn("Failed to release task lock",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}
}
