package storage

import "sync"

// nameLocks serializes operations on the same note name. Entries are
// reference counted and dropped once nobody holds or waits for them.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	sync.Mutex
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*nameLock)}
}

// lock acquires the lock for name and returns the function releasing it.
func (l *nameLocks) lock(name string) (unlock func()) {
	l.mu.Lock()
	nl, ok := l.locks[name]
	if !ok {
		nl = new(nameLock)
		l.locks[name] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.Lock()
	return func() {
		nl.Unlock()
		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}
