package gate

import (
	"fmt"
	"sync"
)

// recordLocks serializes mutation at the granularity of a single user
// record. Entries are reference counted and dropped once released so the
// map does not grow with the user population.
type recordLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex for one (tenant, record) pair and returns the
// release function.
func (l *recordLocks) lock(tenant string, id int64) func() {
	key := fmt.Sprintf("%s/%d", tenant, id)

	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
