package persistence

import (
	"context"
	"sync"
	"time"

	api "github.com/mohitkumar/stepflow/api/v1"
)

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedLock is a set of mutexes addressed by key. Entries exist only while
// someone holds or waits for them.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	timeout time.Duration
}

const DEFAULT_LOCK_TIMEOUT = 10 * time.Second

func NewKeyedLock(timeout time.Duration) *KeyedLock {
	if timeout <= 0 {
		timeout = DEFAULT_LOCK_TIMEOUT
	}
	return &KeyedLock{
		entries: make(map[string]*lockEntry),
		timeout: timeout,
	}
}

// Lock blocks until key is free, the timeout elapses or ctx is done. The
// returned func releases the lock.
func (l *KeyedLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.release(key, e)
		}, nil
	case <-timer.C:
		l.release(key, e)
		return nil, api.EngineSafetyFault{ExecutionId: key, Reason: "timed out waiting for execution lock"}
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *KeyedLock) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *KeyedLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
