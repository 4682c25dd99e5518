package stores

import (
	"fmt"
	"testing"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

func TestTaskCacheTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewTaskCache(10, time.Minute)
	cache.SetClock(func() time.Time { return now })

	cache.Put(a2a.NewTask("t1", "c1", now))

	if _, ok := cache.Get("t1"); !ok {
		t.Fatal("fresh entry should hit")
	}

	now = now.Add(time.Minute + time.Second)

	if _, ok := cache.Get("t1"); ok {
		t.Error("expired entry should miss")
	}
	if cache.Len() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestTaskCacheEvictsOldest(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewTaskCache(3, time.Hour)
	cache.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		cache.Put(a2a.NewTask(fmt.Sprintf("t%d", i), "c1", now))
		now = now.Add(time.Second)
	}

	cache.Put(a2a.NewTask("t3", "c1", now))

	if cache.Len() != 3 {
		t.Fatalf("len = %d, want 3", cache.Len())
	}
	if _, ok := cache.Get("t0"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := cache.Get("t3"); !ok {
		t.Error("newest entry missing after eviction")
	}
}

func TestTaskCacheUpdateDoesNotEvict(t *testing.T) {
	now := time.Unix(1000, 0)
	cache := NewTaskCache(2, time.Hour)
	cache.SetClock(func() time.Time { return now })

	cache.Put(a2a.NewTask("t1", "c1", now))
	cache.Put(a2a.NewTask("t2", "c1", now))

	// Overwriting an existing id must not push anything out.
	cache.Put(a2a.NewTask("t1", "c1", now))

	if cache.Len() != 2 {
		t.Errorf("len = %d, want 2", cache.Len())
	}
	if _, ok := cache.Get("t2"); !ok {
		t.Error("untouched entry evicted by an overwrite")
	}
}

func TestTaskCacheReturnsCopy(t *testing.T) {
	cache := NewTaskCache(10, time.Hour)
	task := a2a.NewTask("t1", "c1", time.Now())

	cache.Put(task)

	got, _ := cache.Get("t1")
	got.Status.State = a2a.TaskStateFailed

	fresh, _ := cache.Get("t1")

	if fresh.Status.State != a2a.TaskStateSubmitted {
		t.Error("cached task aliases the returned one")
	}
}

func TestTaskCacheInvalidate(t *testing.T) {
	cache := NewTaskCache(10, time.Hour)

	cache.Put(a2a.NewTask("t1", "c1", time.Now()))
	cache.Invalidate("t1")

	if _, ok := cache.Get("t1"); ok {
		t.Error("invalidated entry should miss")
	}
}
