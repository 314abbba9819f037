package queue

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/pkg/idgen"
	"github.com/reviewflow/reviewflow/pkg/logger"
)

func init() {
	logger.Init(logger.Config{Level: "error", Format: "text"})
}

func newTestQueue() (*Queue, *MemoryBackend) {
	backend := NewMemoryBackend()
	return NewWithBackend(backend, 300*time.Second, nil), backend
}

func TestScoreFor(t *testing.T) {
	at := time.UnixMilli(1738800000000)

	tests := []struct {
		name     string
		priority model.TaskPriority
		want     float64
	}{
		{"high priority", model.TaskPriorityHigh, 1738800000000},
		{"normal priority", model.TaskPriorityNormal, 501738800000000},
		{"unknown priority scores as normal", model.TaskPriority("URGENT"), 501738800000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreFor(tt.priority, at)
			if got != tt.want {
				t.Errorf("ScoreFor(%s) = %f, want %f", tt.priority, got, tt.want)
			}
		})
	}
}

func TestScoreOrderingAcrossPriorities(t *testing.T) {
	// A high-priority task enqueued much later still outranks an old
	// normal-priority task.
	oldNormal := ScoreFor(model.TaskPriorityNormal, time.UnixMilli(1))
	newHigh := ScoreFor(model.TaskPriorityHigh, time.UnixMilli(4102444800000)) // year 2100

	if newHigh >= oldNormal {
		t.Errorf("high score %f should be below normal score %f", newHigh, oldNormal)
	}
}

func TestScoreFIFOWithinPriority(t *testing.T) {
	earlier := ScoreFor(model.TaskPriorityNormal, time.UnixMilli(1738800000000))
	later := ScoreFor(model.TaskPriorityNormal, time.UnixMilli(1738800000001))

	if earlier >= later {
		t.Errorf("earlier task score %f should be below later score %f", earlier, later)
	}
}

func TestEnqueueDequeuePriorityOrder(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	normalID := idgen.NewTaskID()
	highID := idgen.NewTaskID()

	if err := q.Enqueue(ctx, normalID, model.TaskPriorityNormal); err != nil {
		t.Fatalf("Enqueue(normal) error: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := q.Enqueue(ctx, highID, model.TaskPriorityHigh); err != nil {
		t.Fatalf("Enqueue(high) error: %v", err)
	}

	// High priority pops first despite arriving later
	got, err := q.Dequeue(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if got != highID {
		t.Errorf("first Dequeue = %s, want high-priority task %s", got, highID)
	}

	got, err = q.Dequeue(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if got != normalID {
		t.Errorf("second Dequeue = %s, want %s", got, normalID)
	}
}

func TestDequeueFIFOWithinPriority(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	first := idgen.NewTaskID()
	second := idgen.NewTaskID()

	if err := q.Enqueue(ctx, first, model.TaskPriorityNormal); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := q.Enqueue(ctx, second, model.TaskPriorityNormal); err != nil {
		t.Fatal(err)
	}

	got, err := q.Dequeue(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if got != first {
		t.Errorf("Dequeue = %s, want oldest task %s", got, first)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q, _ := newTestQueue()

	got, err := q.Dequeue(context.Background(), "worker-1")
	if err != nil {
		t.Fatalf("Dequeue on empty queue error: %v", err)
	}
	if got != "" {
		t.Errorf("Dequeue on empty queue = %q, want empty", got)
	}
}

func TestDequeueTakesLock(t *testing.T) {
	q, backend := newTestQueue()
	ctx := context.Background()

	taskID := idgen.NewTaskID()
	if err := q.Enqueue(ctx, taskID, model.TaskPriorityNormal); err != nil {
		t.Fatal(err)
	}

	got, err := q.Dequeue(ctx, "worker-7")
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if got != taskID {
		t.Fatalf("Dequeue = %s, want %s", got, taskID)
	}

	owner, held := backend.LockOwner(taskID)
	if !held {
		t.Fatal("expected lock to be held after dequeue")
	}
	if owner != "worker-7" {
		t.Errorf("lock owner = %s, want worker-7", owner)
	}
}

func TestDequeueDropsCorruptedEntries(t *testing.T) {
	q, backend := newTestQueue()
	ctx := context.Background()

	// Inject garbage directly, ahead of a valid task
	if err := backend.Add(ctx, "not-a-task-id", 1); err != nil {
		t.Fatal(err)
	}
	taskID := idgen.NewTaskID()
	if err := q.Enqueue(ctx, taskID, model.TaskPriorityNormal); err != nil {
		t.Fatal(err)
	}

	got, err := q.Dequeue(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if got != taskID {
		t.Errorf("Dequeue = %s, want %s past the corrupted entry", got, taskID)
	}

	// The corrupted entry is gone, not requeued
	if _, ok := backend.Score("not-a-task-id"); ok {
		t.Error("corrupted entry should have been dropped")
	}
}

func TestDequeueLockConflictRestoresOriginalScore(t *testing.T) {
	q, backend := newTestQueue()
	ctx := context.Background()

	taskID := idgen.NewTaskID()
	if err := q.Enqueue(ctx, taskID, model.TaskPriorityHigh); err != nil {
		t.Fatal(err)
	}
	originalScore, ok := backend.Score(taskID)
	if !ok {
		t.Fatal("task missing from backend after enqueue")
	}

	// Another worker already holds this task's lock
	if _, err := backend.AcquireLock(ctx, taskID, "worker-other", time.Minute); err != nil {
		t.Fatal(err)
	}

	got, err := q.Dequeue(ctx, "worker-1")
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if got != "" {
		t.Errorf("Dequeue = %q, want none while task is locked", got)
	}

	// The task keeps its original queue position
	restored, ok := backend.Score(taskID)
	if !ok {
		t.Fatal("task should have been restored to the queue")
	}
	if restored != originalScore {
		t.Errorf("restored score = %f, want original %f", restored, originalScore)
	}

	// The other worker's lock is untouched
	owner, held := backend.LockOwner(taskID)
	if !held || owner != "worker-other" {
		t.Errorf("lock owner = %s (held=%v), want worker-other", owner, held)
	}
}

func TestRequeueWithDelay(t *testing.T) {
	q, backend := newTestQueue()
	ctx := context.Background()

	taskID := idgen.NewTaskID()
	if err := q.Enqueue(ctx, taskID, model.TaskPriorityNormal); err != nil {
		t.Fatal(err)
	}
	got, err := q.Dequeue(ctx, "worker-1")
	if err != nil || got != taskID {
		t.Fatalf("Dequeue = %q, %v", got, err)
	}

	delay := 8 * time.Second
	before := time.Now()
	if err := q.RequeueWithDelay(ctx, taskID, model.TaskPriorityNormal, delay); err != nil {
		t.Fatalf("RequeueWithDelay error: %v", err)
	}

	// Lock released
	if _, held := backend.LockOwner(taskID); held {
		t.Error("lock should be released after requeue")
	}

	// Score reflects the deferred timestamp
	score, ok := backend.Score(taskID)
	if !ok {
		t.Fatal("task missing after requeue")
	}
	want := ScoreFor(model.TaskPriorityNormal, before.Add(delay))
	if math.Abs(score-want) > 1000 {
		t.Errorf("requeued score = %f, want about %f", score, want)
	}
}

func TestReleaseLockAbsentIsNoop(t *testing.T) {
	q, _ := newTestQueue()

	if err := q.ReleaseLock(context.Background(), idgen.NewTaskID()); err != nil {
		t.Errorf("releasing an absent lock should not error: %v", err)
	}
}

func TestSizeAndRemove(t *testing.T) {
	q, _ := newTestQueue()
	ctx := context.Background()

	a := idgen.NewTaskID()
	b := idgen.NewTaskID()
	if err := q.Enqueue(ctx, a, model.TaskPriorityNormal); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, b, model.TaskPriorityHigh); err != nil {
		t.Fatal(err)
	}

	n, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	if n != 2 {
		t.Errorf("Size = %d, want 2", n)
	}

	if err := q.Remove(ctx, a); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	n, err = q.Size(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Size after remove = %d, want 1", n)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	q, err := New(config.QueueConfig{Backend: "memory", LockTTLSeconds: 60}, nil)
	if err != nil {
		t.Fatalf("New(memory) error: %v", err)
	}
	if q == nil {
		t.Fatal("New(memory) returned nil queue")
	}

	if _, err := New(config.QueueConfig{Backend: "bogus"}, nil); err == nil {
		t.Error("New(bogus) should fail")
	}
}

func TestMemoryLockExpiry(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	now := time.Now()
	backend.nowFunc = func() time.Time { return now }

	acquired, err := backend.AcquireLock(ctx, "task-1", "worker-1", 5*time.Minute)
	if err != nil || !acquired {
		t.Fatalf("AcquireLock = %v, %v", acquired, err)
	}

	// Still held before expiry
	acquired, err = backend.AcquireLock(ctx, "task-1", "worker-2", 5*time.Minute)
	if err != nil || acquired {
		t.Fatalf("AcquireLock while held = %v, %v, want false", acquired, err)
	}

	// Expired locks can be taken over
	now = now.Add(6 * time.Minute)
	acquired, err = backend.AcquireLock(ctx, "task-1", "worker-2", 5*time.Minute)
	if err != nil || !acquired {
		t.Fatalf("AcquireLock after expiry = %v, %v, want true", acquired, err)
	}
}
