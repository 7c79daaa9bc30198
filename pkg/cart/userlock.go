package cart

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// userLocks serializes read-modify-write mutations per user. Each live user
// gets a weight-1 semaphore so a cancelled request stops waiting instead of
// queueing forever; different users never contend. Entries are refcounted and
// dropped once the last holder or waiter is gone, so the map only holds users
// with in-flight mutations.
type userLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[int64]*lockEntry)}
}

// lock acquires the mutation lock for userID, blocking until it is available
// or ctx is done. On success the returned func releases the lock.
func (l *userLocks) lock(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[userID]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		l.release(userID, entry)
		return nil, err
	}

	return func() {
		entry.sem.Release(1)
		l.release(userID, entry)
	}, nil
}

func (l *userLocks) release(userID int64, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, userID)
	}
	l.mu.Unlock()
}
