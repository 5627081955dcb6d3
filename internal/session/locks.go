package session

import "sync"

// Locker serializes read-modify-write cycles per session. Two participants
// texting the same session concurrently, or a background sweep racing a
// turn, would otherwise last-write-win on save and silently discard the
// earlier writer's mutations.
// This only serializes within one process; multi-process deployments still
// observe last-write-wins.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is refcounted so the table entry can be reaped once the last
// holder or waiter releases it. Without the refcount the map would grow by
// one entry per session ever touched, for the life of the process.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sessionLock)}
}

// Lock acquires the mutex for sessionID, creating it on first use.
func (l *Locker) Lock(sessionID string) {
	l.mu.Lock()
	e, ok := l.locks[sessionID]
	if !ok {
		e = &sessionLock{}
		l.locks[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()
	e.mu.Lock()
}

// Unlock releases the mutex for sessionID and reaps the table entry when
// nobody else holds or waits on it.
func (l *Locker) Unlock(sessionID string) {
	l.mu.Lock()
	e, ok := l.locks[sessionID]
	if !ok {
		l.mu.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.locks, sessionID)
	}
	l.mu.Unlock()
	e.mu.Unlock()
}

// held reports how many lock table entries are live. Test hook.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
