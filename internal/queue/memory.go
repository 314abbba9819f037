package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend used for tests and single-node
// development setups. Semantics mirror the Redis backend: pop-min with
// lexicographic member tie-break, and expiring per-task locks.
type MemoryBackend struct {
	mu      sync.Mutex
	scores  map[string]float64
	locks   map[string]memoryLock
	nowFunc func() time.Time
}

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		scores:  make(map[string]float64),
		locks:   make(map[string]memoryLock),
		nowFunc: time.Now,
	}
}

func (b *MemoryBackend) Add(ctx context.Context, member string, score float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores[member] = score
	return nil
}

func (b *MemoryBackend) PopMin(ctx context.Context) (string, float64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.scores) == 0 {
		return "", 0, false, nil
	}

	var minMember string
	var minScore float64
	first := true
	for member, score := range b.scores {
		if first || score < minScore || (score == minScore && member < minMember) {
			minMember = member
			minScore = score
			first = false
		}
	}

	delete(b.scores, minMember)
	return minMember, minScore, true, nil
}

func (b *MemoryBackend) Remove(ctx context.Context, member string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.scores, member)
	return nil
}

func (b *MemoryBackend) Card(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.scores)), nil
}

func (b *MemoryBackend) AcquireLock(ctx context.Context, taskID, ownerID string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFunc()
	if lock, held := b.locks[taskID]; held && now.Before(lock.expiresAt) {
		return false, nil
	}
	b.locks[taskID] = memoryLock{owner: ownerID, expiresAt: now.Add(ttl)}
	return true, nil
}

func (b *MemoryBackend) ReleaseLock(ctx context.Context, taskID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.locks, taskID)
	return nil
}

func (b *MemoryBackend) GetLock(ctx context.Context, taskID string) (string, bool, error) {
	owner, held := b.LockOwner(taskID)
	return owner, held, nil
}

func (b *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// LockOwner returns the current lock holder for a task.
func (b *MemoryBackend) LockOwner(taskID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock, held := b.locks[taskID]
	if !held || !b.nowFunc().Before(lock.expiresAt) {
		return "", false
	}
	return lock.owner, true
}

// Score returns the queued score for a member. Test helper.
func (b *MemoryBackend) Score(member string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	score, ok := b.scores[member]
	return score, ok
}
