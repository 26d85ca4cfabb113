package account

import "sync"

// tenantLocks serializes sign-up per tenant so the uniqueness probe and the
// insert commit as one step. Entries are reference counted and dropped once
// released so the map does not grow with the tenant population.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[string]*tenantLockEntry
}

type tenantLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[string]*tenantLockEntry)}
}

func (l *tenantLocks) lock(tenant string) func() {
	l.mu.Lock()
	e, ok := l.locks[tenant]
	if !ok {
		e = &tenantLockEntry{}
		l.locks[tenant] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, tenant)
		}
		l.mu.Unlock()
	}
}
