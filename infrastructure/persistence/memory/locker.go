package memory

import (
	"context"
	"sync"
	"time"

	"filon/application/ports"
	pkgerrors "filon/pkg/errors"
)

// Locker is a process-local ports.Locker with expiring leases
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	owner     string
	expiresAt time.Time
}

// NewLocker creates an empty in-memory locker
func NewLocker() *Locker {
	return &Locker{
		held:  make(map[string]lease),
		clock: time.Now,
	}
}

// Acquire takes resource for owner until ttl elapses. Re-acquiring a lock
// already held by the same owner extends it.
func (l *Locker) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (ports.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if current, ok := l.held[resource]; ok && current.owner != owner && now.Before(current.expiresAt) {
		remaining := current.expiresAt.Sub(now)
		return nil, pkgerrors.NewConflictError("resource is locked").
			WithCode(pkgerrors.CodeLockHeld).
			WithDetail("resource", resource).
			WithDetail("retryAfterSeconds", int((remaining+time.Second-1)/time.Second))
	}

	l.held[resource] = lease{owner: owner, expiresAt: now.Add(ttl)}
	return &memoryLock{locker: l, resource: resource, owner: owner}, nil
}

type memoryLock struct {
	locker   *Locker
	resource string
	owner    string
}

// Release drops the lock if this owner still holds it
func (m *memoryLock) Release(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()

	if current, ok := m.locker.held[m.resource]; ok && current.owner == m.owner {
		delete(m.locker.held, m.resource)
	}
	return nil
}
