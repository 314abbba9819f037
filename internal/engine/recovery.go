package engine

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/store"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

const (
	defaultRecoverySchedule = "*/5 * * * *"
	defaultStaleTaskMinutes = 30
)

// RecoveryQueue is the queue surface the reconciler needs.
type RecoveryQueue interface {
	Enqueue(ctx context.Context, taskID string, priority model.TaskPriority) error
	ReleaseLock(ctx context.Context, taskID string) error
}

// Reconciler periodically rescues tasks stranded in RUNNING by a worker
// that died. The worker's lock expires on its own; the task row needs
// this sweep to return to PENDING and re-enter the queue.
type Reconciler struct {
	tasks store.TaskStore
	queue RecoveryQueue
	cron  *cron.Cron

	schedule   string
	staleAfter time.Duration
}

// NewReconciler creates a reconciler with the configured sweep schedule.
func NewReconciler(tasks store.TaskStore, queue RecoveryQueue, cfg config.RecoveryConfig) *Reconciler {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultRecoverySchedule
	}
	minutes := cfg.StaleTaskMinutes
	if minutes <= 0 {
		minutes = defaultStaleTaskMinutes
	}
	return &Reconciler{
		tasks:      tasks,
		queue:      queue,
		cron:       cron.New(),
		schedule:   schedule,
		staleAfter: time.Duration(minutes) * time.Minute,
	}
}

// Start schedules the recovery sweep and runs one immediately so a
// restart picks up stranded tasks without waiting a full interval.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		r.Sweep(context.Background())
	}); err != nil {
		return err
	}
	r.cron.Start()

	logger.Info("Task recovery started",
		zap.String("schedule", r.schedule),
		zap.Duration("stale_after", r.staleAfter),
	)

	go func() {
		ctx := context.Background()
		r.RecoverPending(ctx)
		r.Sweep(ctx)
	}()
	return nil
}

// RecoverPending re-enqueues every PENDING task. Run at startup: after a
// restart with a volatile queue backend the rows survive but the queue
// entries may not. Re-adding an entry that still exists just rescores it.
func (r *Reconciler) RecoverPending(ctx context.Context) {
	pending, err := r.tasks.ListByStatus(model.TaskStatusPending)
	if err != nil {
		logger.Error("Failed to list pending tasks for recovery", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	recovered := 0
	for i := range pending {
		task := &pending[i]
		if err := r.queue.Enqueue(ctx, task.ID, task.Priority); err != nil {
			logger.Error("Failed to re-enqueue pending task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		recovered++
	}

	logger.Info("Pending tasks re-enqueued",
		zap.Int("pending", len(pending)),
		zap.Int("recovered", recovered),
	)
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	logger.Info("Task recovery stopped")
}

// Sweep reverts stale RUNNING tasks to PENDING and re-enqueues them.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.staleAfter)
	stale, err := r.tasks.ListStaleRunning(cutoff)
	if err != nil {
		logger.Error("Failed to list stale tasks", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	logger.Warn("Recovering stale tasks", zap.Int("count", len(stale)))

	recovered := 0
	for i := range stale {
		task := &stale[i]
		if err := r.tasks.ResetToPending(task.ID); err != nil {
			// The task may have finished between the query and now.
			logger.Warn("Skipping stale task that changed state",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		if err := r.queue.ReleaseLock(ctx, task.ID); err != nil {
			logger.Warn("Failed to release stale task lock",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
		if err := r.queue.Enqueue(ctx, task.ID, task.Priority); err != nil {
			logger.Error("Failed to re-enqueue recovered task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		recovered++
		logger.Info("Stale task recovered",
			zap.String("task_id", task.ID),
			zap.String("repo_url", task.RepoURL),
		)
	}

	logger.Info("Recovery sweep finished",
		zap.Int("stale", len(stale)),
		zap.Int("recovered", recovered),
	)
}
