package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewflow/reviewflow/internal/ai"
	"github.com/reviewflow/reviewflow/internal/config"
	"github.com/reviewflow/reviewflow/internal/model"
	"github.com/reviewflow/reviewflow/internal/reviewer"
	"github.com/reviewflow/reviewflow/internal/store"
)

// fakeReviewer returns a configured outcome or error per call.
type fakeReviewer struct {
	outcome *reviewer.Outcome
	err     error
	calls   int
}

func (r *fakeReviewer) Review(ctx context.Context, task *model.ReviewTask) (*reviewer.Outcome, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.outcome, nil
}

func newTestPool(s store.Store, q *fakeQueue, rev *fakeReviewer) *Pool {
	retry := NewRetryService(s.Task(), q, nil)
	retry.jitter = func() int { return 0 }
	return NewPool(q, s.Task(), rev, retry, config.TaskConfig{Workers: 1, PollIntervalSeconds: 1})
}

func TestProcessSuccess(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)
	task := store.CreateTestTask(t, s, project.ID)

	q := &fakeQueue{}
	rev := &fakeReviewer{outcome: &reviewer.Outcome{Success: true, Result: &ai.Result{Success: true}}}
	pool := newTestPool(s, q, rev)

	pool.process(context.Background(), "worker-0", task.ID)

	got, err := s.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, rev.calls)
	assert.Equal(t, []string{task.ID}, q.released)
}

func TestProcessRetryableFailureRequeues(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)
	task := store.CreateTestTask(t, s, project.ID)

	q := &fakeQueue{}
	rev := &fakeReviewer{outcome: &reviewer.Outcome{
		Success:     false,
		Message:     "All AI providers failed",
		FailureType: ai.FailureNetwork,
	}}
	pool := newTestPool(s, q, rev)

	pool.process(context.Background(), "worker-0", task.ID)

	got, err := s.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.Len(t, q.requeued, 1)
	assert.Equal(t, []string{task.ID}, q.released)
}

func TestProcessNonRetryableFailurePermanent(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)
	task := store.CreateTestTask(t, s, project.ID)

	q := &fakeQueue{}
	rev := &fakeReviewer{outcome: &reviewer.Outcome{
		Success:     false,
		Message:     "invalid request",
		FailureType: ai.FailureValidation,
	}}
	pool := newTestPool(s, q, rev)

	pool.process(context.Background(), "worker-0", task.ID)

	got, err := s.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Empty(t, q.requeued)
}

func TestProcessEscalatedErrorFailsPermanently(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)
	task := store.CreateTestTask(t, s, project.ID)

	q := &fakeQueue{}
	rev := &fakeReviewer{err: assert.AnError}
	pool := newTestPool(s, q, rev)

	pool.process(context.Background(), "worker-0", task.ID)

	got, err := s.Task().GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status,
		"configuration errors are not retried")
}

func TestProcessSkipsNonPendingTask(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	project := store.CreateTestProject(t, s)
	task := store.CreateTestTask(t, s, project.ID)
	require.NoError(t, s.Task().MarkTaskStarted(task.ID, time.Now()))
	require.NoError(t, s.Task().MarkTaskCompleted(task.ID))

	q := &fakeQueue{}
	rev := &fakeReviewer{}
	pool := newTestPool(s, q, rev)

	pool.process(context.Background(), "worker-0", task.ID)

	assert.Equal(t, 0, rev.calls, "completed task must not be reviewed again")
	assert.Equal(t, []string{task.ID}, q.released)
}

func TestProcessUnknownTaskReleasesLock(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	q := &fakeQueue{}
	rev := &fakeReviewer{}
	pool := newTestPool(s, q, rev)

	pool.process(context.Background(), "worker-0", "ghost-task")

	assert.Equal(t, 0, rev.calls)
	assert.Equal(t, []string{"ghost-task"}, q.released)
}

func TestPoolStartStop(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()

	q := &fakeQueue{}
	pool := newTestPool(s, q, &fakeReviewer{outcome: &reviewer.Outcome{Success: true}})

	pool.Start(context.Background())
	pool.Start(context.Background()) // second start is a no-op

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}
