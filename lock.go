package uart

import (
	"sync"
	"time"
)

// TimedLocker is a lock whose acquisition can be bounded by a duration.
// A Device given a TimedLocker never blocks longer than its timeout.
type TimedLocker interface {
	sync.Locker
	TryLockFor(d time.Duration) bool
}

// TimedMutex is a mutual exclusion lock implementing TimedLocker.
// The zero value is an unlocked mutex.
type TimedMutex struct {
	once sync.Once
	sem  chan struct{}
}

func (m *TimedMutex) init() {
	m.once.Do(func() { m.sem = make(chan struct{}, 1) })
}

func (m *TimedMutex) Lock() {
	m.init()
	m.sem <- struct{}{}
}

func (m *TimedMutex) TryLock() bool {
	m.init()
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// TryLockFor waits at most d for the lock. A non-positive d makes a
// single attempt.
func (m *TimedMutex) TryLockFor(d time.Duration) bool {
	if d <= 0 {
		return m.TryLock()
	}
	m.init()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case m.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (m *TimedMutex) Unlock() {
	m.init()
	select {
	case <-m.sem:
	default:
		panic("uart: unlock of unlocked TimedMutex")
	}
}

// guard selects the acquisition strategy once, at construction.
type guard struct {
	plain sync.Locker
	timed TimedLocker
}

func newGuard(l sync.Locker) guard {
	if tl, ok := l.(TimedLocker); ok {
		return guard{timed: tl}
	}
	return guard{plain: l}
}

func (g guard) present() bool { return g.plain != nil || g.timed != nil }

// acquire takes the lock, giving up after timeout for a timed lock.
func (g guard) acquire(timeout time.Duration) bool {
	switch {
	case g.timed != nil:
		return g.timed.TryLockFor(timeout)
	case g.plain != nil:
		g.plain.Lock()
	}
	return true
}

// acquireBlocking ignores any timeout. Used by the receive goroutine,
// which has no realtime caller waiting on it.
func (g guard) acquireBlocking() {
	switch {
	case g.timed != nil:
		g.timed.Lock()
	case g.plain != nil:
		g.plain.Lock()
	}
}

func (g guard) release() {
	switch {
	case g.timed != nil:
		g.timed.Unlock()
	case g.plain != nil:
		g.plain.Unlock()
	}
}
