package billing

import "sync"

// ActionLock is a per-project try-lock against double submission.
// It only covers this process; the project row lock covers the rest.
type ActionLock struct {
	mu   sync.Mutex
	held map[int]struct{}
}

func NewActionLock() *ActionLock {
	return &ActionLock{held: make(map[int]struct{})}
}

// TryAcquire returns a release func, or false when the key is already held.
func (l *ActionLock) TryAcquire(key int) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}
