package service

import "sync"

// accountLocks is a keyed mutex. An entry lives only while someone holds or
// waits for it, so idle accounts cost nothing.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

// Lock blocks until account is free and returns the matching unlock func.
func (l *accountLocks) Lock(account string) func() {
	l.mu.Lock()
	al, ok := l.locks[account]
	if !ok {
		al = &accountLock{}
		l.locks[account] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()

	return func() {
		al.mu.Unlock()

		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, account)
		}
		l.mu.Unlock()
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
