package stores

import (
	"sync"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

/*
TaskCache fronts task reads with a capacity-bounded TTL cache.  Eviction
picks the entry with the lowest timestamp; expiry is checked on read.  The
task manager writes the cache and the store inside the same critical section,
so an entry is either the most recent persisted value or younger than TTL.
*/
type TaskCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	capacity int
	ttl      time.Duration
	clock    func() time.Time
}

type cacheEntry struct {
	task    *a2a.Task
	touched time.Time
}

func NewTaskCache(capacity int, ttl time.Duration) *TaskCache {
	if capacity <= 0 {
		capacity = 1000
	}

	if ttl <= 0 {
		ttl = 300 * time.Second
	}

	return &TaskCache{
		entries:  make(map[string]*cacheEntry, capacity),
		capacity: capacity,
		ttl:      ttl,
		clock:    time.Now,
	}
}

// SetClock swaps the time source, for tests.
func (cache *TaskCache) SetClock(now func() time.Time) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.clock = now
}

func (cache *TaskCache) Get(id string) (*a2a.Task, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	entry, ok := cache.entries[id]

	if !ok {
		return nil, false
	}

	if cache.clock().Sub(entry.touched) > cache.ttl {
		delete(cache.entries, id)
		return nil, false
	}

	return entry.task.Clone(), true
}

func (cache *TaskCache) Put(task *a2a.Task) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	now := cache.clock()

	if _, exists := cache.entries[task.ID]; !exists && len(cache.entries) >= cache.capacity {
		cache.evictOldest()
	}

	cache.entries[task.ID] = &cacheEntry{task: task.Clone(), touched: now}
}

func (cache *TaskCache) Invalidate(id string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, id)
}

func (cache *TaskCache) Len() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}

// evictOldest removes the entry with the lowest timestamp.  Caller holds the
// lock.
func (cache *TaskCache) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
		first    = true
	)

	for id, entry := range cache.entries {
		if first || entry.touched.Before(oldest) {
			oldestID = id
			oldest = entry.touched
			first = false
		}
	}

	if oldestID != "" {
		delete(cache.entries, oldestID)
	}
}
