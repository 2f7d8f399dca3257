package linkgraph

import (
	"slices"
	"sync"
)

// Locks is an in-process keyed mutex. Holders of overlapping key sets are
// serialized; keys are always acquired in sorted order so two holders can
// never deadlock on each other.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks creates an empty keyed mutex.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*keyLock)}
}

// Lock acquires every key and returns a function that releases them.
// Duplicate and empty keys are ignored.
func (l *Locks) Lock(keys ...string) (unlock func()) {
	keys = sortedUnique(keys)
	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		l.mu.Lock()
		kl, ok := l.locks[k]
		if !ok {
			kl = &keyLock{}
			l.locks[k] = kl
		}
		kl.refs++
		l.mu.Unlock()

		kl.mu.Lock()
		held = append(held, kl)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
