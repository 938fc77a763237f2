package order

import (
	"hash/fnv"
	"sync"
)

// orderLocks serializes writes to the same order so that the cache is updated in commit order.
type orderLocks struct {
	shards [64]sync.Mutex
}

func (l *orderLocks) lock(orderID string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	m := &l.shards[h.Sum32()%uint32(len(l.shards))]
	m.Lock()
	return m.Unlock
}
