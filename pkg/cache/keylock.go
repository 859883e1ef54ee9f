package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 64

// keyLocks serializes operations on the same key without a global lock.
// Distinct keys may share a stripe; that only costs contention.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(k Key) func() {
	m := &l.stripes[xxhash.Sum64String(k.s)%lockStripes]
	m.Lock()
	return m.Unlock
}

// lockAll takes every stripe in order and returns a func releasing them.
func (l *keyLocks) lockAll() func() {
	for i := range l.stripes {
		l.stripes[i].Lock()
	}
	return func() {
		for i := range l.stripes {
			l.stripes[i].Unlock()
		}
	}
}
