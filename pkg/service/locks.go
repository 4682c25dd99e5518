package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyedLocks serializes mutations per task id.  Ids are striped over a fixed
// set of mutexes so the lock table never grows with the task count.
type keyedLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{}
}

// lock acquires the stripe for key and returns the release func.
func (locks *keyedLocks) lock(key string) func() {
	hash := fnv.New32a()
	hash.Write([]byte(key))

	stripe := &locks.stripes[hash.Sum32()%lockStripes]
	stripe.Lock()

	return stripe.Unlock
}
