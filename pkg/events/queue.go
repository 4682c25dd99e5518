package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

const (
	// DefaultBufferSize is the per-subscriber bounded buffer.
	DefaultBufferSize = 256
	// DefaultRingSize is the replay ring of most recent events.
	DefaultRingSize = 1024
)

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = fmt.Errorf("event queue closed")

// Filter is a pure predicate over events; only matching events are delivered
// to the subscriber that registered it.
type Filter func(a2a.Event) bool

// TaskFilter matches events belonging to a single task.
func TaskFilter(taskID string) Filter {
	return func(event a2a.Event) bool {
		switch event.Type {
		case a2a.EventTypeStatusUpdate:
			payload, err := event.StatusPayload()
			return err == nil && payload.TaskID == taskID
		case a2a.EventTypeArtifactUpdate:
			payload, err := event.ArtifactPayload()
			return err == nil && payload.TaskID == taskID
		}
		return false
	}
}

// TaskEvents matches any task-scoped event, which is what push notification
// delivery subscribes with.
func TaskEvents(event a2a.Event) bool {
	return event.TaskEvent()
}

/*
Subscription is one consumer's view of the queue.  Events arrive on Events()
in publish order; when the bounded buffer overflows the oldest buffered event
is dropped and the subscription is marked lagging.  Dropped events are never
duplicated or reordered.
*/
type Subscription struct {
	queue   *Queue
	ch      chan a2a.Event
	filter  Filter
	mu      sync.Mutex
	lagging bool
	closed  bool
}

func (sub *Subscription) Events() <-chan a2a.Event {
	return sub.ch
}

// Lagging reports whether any event was dropped for this subscriber.
func (sub *Subscription) Lagging() bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.lagging
}

// Close detaches the subscription from the queue and closes its channel.
func (sub *Subscription) Close() {
	sub.queue.unsubscribe(sub)
}

// deliver enqueues without blocking, dropping the oldest buffered event when
// the buffer is full.
func (sub *Subscription) deliver(event a2a.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	if sub.filter != nil && !sub.filter(event) {
		return
	}

	for {
		select {
		case sub.ch <- event:
			return
		default:
			select {
			case <-sub.ch:
				sub.lagging = true
			default:
			}
		}
	}
}

func (sub *Subscription) shutdown(final a2a.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}

	sub.closed = true

	select {
	case sub.ch <- final:
	default:
	}

	close(sub.ch)
}

/*
Queue is an in-process pub/sub hub.  It assigns every published event a
monotonic hex id and keeps a bounded ring of recent events so reconnecting
consumers can replay from a Last-Event-ID.
*/
type Queue struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	ring     []a2a.Event
	ringSize int
	bufSize  int
	seq      uint64
	closed   bool
	clock    func() time.Time
	logger   *log.Logger
}

type QueueOption func(*Queue)

func WithBufferSize(n int) QueueOption {
	return func(q *Queue) { q.bufSize = n }
}

func WithRingSize(n int) QueueOption {
	return func(q *Queue) { q.ringSize = n }
}

func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.clock = now }
}

func WithLogger(logger *log.Logger) QueueOption {
	return func(q *Queue) { q.logger = logger }
}

func NewQueue(opts ...QueueOption) *Queue {
	queue := &Queue{
		subs:     make(map[*Subscription]struct{}),
		ringSize: DefaultRingSize,
		bufSize:  DefaultBufferSize,
		clock:    time.Now,
		logger:   log.Default(),
	}

	for _, opt := range opts {
		opt(queue)
	}

	return queue
}

/*
Publish assigns id and timestamp, records the event in the replay ring and
fans it out to every live subscriber without blocking.
*/
func (queue *Queue) Publish(event a2a.Event) error {
	queue.mu.Lock()

	if queue.closed {
		queue.mu.Unlock()
		return ErrQueueClosed
	}

	queue.seq++
	event.ID = fmt.Sprintf("%016x", queue.seq)
	event.Timestamp = queue.clock().UTC()

	queue.ring = append(queue.ring, event)
	if len(queue.ring) > queue.ringSize {
		queue.ring = queue.ring[len(queue.ring)-queue.ringSize:]
	}

	// Snapshot so delivery happens outside the queue lock.
	subs := make([]*Subscription, 0, len(queue.subs))
	for sub := range queue.subs {
		subs = append(subs, sub)
	}

	queue.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(event)
	}

	return nil
}

// Subscribe registers a consumer.  A nil filter receives every event.
func (queue *Queue) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		queue:  queue,
		ch:     make(chan a2a.Event, queue.bufSize),
		filter: filter,
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}

	queue.subs[sub] = struct{}{}
	return sub
}

/*
Replay returns the ring events with id strictly greater than sinceID, in
publish order.  An empty sinceID returns nothing: replay is opt-in.
*/
func (queue *Queue) Replay(sinceID string, filter Filter) []a2a.Event {
	if sinceID == "" {
		return nil
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()

	var out []a2a.Event

	for _, event := range queue.ring {
		// Fixed-width hex ids order lexicographically.
		if event.ID <= sinceID {
			continue
		}
		if filter != nil && !filter(event) {
			continue
		}
		out = append(out, event)
	}

	return out
}

// LastID returns the id of the most recently published event.
func (queue *Queue) LastID() string {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	if len(queue.ring) == 0 {
		return ""
	}

	return queue.ring[len(queue.ring)-1].ID
}

/*
Close terminates all subscribers deterministically: each receives a final
connection_closed event and then channel EOF.  Further publishes fail with
ErrQueueClosed.
*/
func (queue *Queue) Close() {
	queue.mu.Lock()

	if queue.closed {
		queue.mu.Unlock()
		return
	}

	queue.closed = true
	queue.seq++

	final := a2a.Event{
		ID:        fmt.Sprintf("%016x", queue.seq),
		Type:      a2a.EventTypeClosed,
		Timestamp: queue.clock().UTC(),
	}

	subs := make([]*Subscription, 0, len(queue.subs))
	for sub := range queue.subs {
		subs = append(subs, sub)
	}
	queue.subs = make(map[*Subscription]struct{})

	queue.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown(final)
	}
}

func (queue *Queue) unsubscribe(sub *Subscription) {
	queue.mu.Lock()
	_, ok := queue.subs[sub]
	delete(queue.subs, sub)
	queue.mu.Unlock()

	if ok {
		sub.mu.Lock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		sub.mu.Unlock()
	}
}
