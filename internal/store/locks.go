package store

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

type refMutex struct {
	sync.Mutex
	refs int
}

// parentLocks serializes writes per parent key.
type parentLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*refMutex
}

// lock acquires the locks of every id in a fixed order and returns the
// matching unlock.
func (l *parentLocks) lock(ids ...uuid.UUID) func() {
	ids = slices.Clone(ids)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	held := make([]*refMutex, 0, len(ids))
	for _, id := range ids {
		l.mu.Lock()
		if l.m == nil {
			l.m = make(map[uuid.UUID]*refMutex)
		}
		m := l.m[id]
		if m == nil {
			m = &refMutex{}
			l.m[id] = m
		}
		m.refs++
		l.mu.Unlock()

		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.m, ids[i])
			}
			l.mu.Unlock()
		}
	}
}
