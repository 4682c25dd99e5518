package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/events"
)

// DefaultHeartbeatInterval keeps idle connections alive through proxies.
const DefaultHeartbeatInterval = 30 * time.Second

/*
Stream renders queue events as Server-Sent Events frames on a single
connection.  The queue knows nothing about SSE: the stream subscribes like
any other consumer, and every transport concern (framing, heartbeats,
Last-Event-ID replay) lives here.
*/
type Stream struct {
	w         io.Writer
	queue     *events.Queue
	filter    events.Filter
	heartbeat time.Duration
	clock     func() time.Time
	log       *log.Logger
}

type StreamOption func(*Stream)

func WithHeartbeatInterval(interval time.Duration) StreamOption {
	return func(s *Stream) { s.heartbeat = interval }
}

func WithClock(now func() time.Time) StreamOption {
	return func(s *Stream) { s.clock = now }
}

func WithLogger(logger *log.Logger) StreamOption {
	return func(s *Stream) { s.log = logger }
}

// NewStream binds a writer to a queue.  A nil filter streams every event.
func NewStream(w io.Writer, queue *events.Queue, filter events.Filter, opts ...StreamOption) *Stream {
	stream := &Stream{
		w:         w,
		queue:     queue,
		filter:    filter,
		heartbeat: DefaultHeartbeatInterval,
		clock:     time.Now,
		log:       log.Default(),
	}

	for _, opt := range opts {
		opt(stream)
	}

	return stream
}

/*
Serve replays missed events for a reconnecting client, then goes live until
the context is canceled or the queue closes.  The final frame is always
connection_closed, so well-behaved clients can tell a deliberate shutdown
from a dropped connection.
*/
func (stream *Stream) Serve(ctx context.Context, lastEventID string) error {
	sub := stream.queue.Subscribe(stream.filter)
	defer sub.Close()

	if err := stream.WriteEvent(a2a.Event{
		Type:      a2a.EventTypeConnected,
		Timestamp: stream.clock().UTC(),
	}); err != nil {
		return err
	}

	// An event published between Subscribe and Replay shows up in both; ids
	// are fixed-width hex, so tracking the highest replayed id and comparing
	// lexicographically keeps each event to a single write.
	var written string

	for _, event := range stream.queue.Replay(lastEventID, stream.filter) {
		if err := stream.WriteEvent(event); err != nil {
			return err
		}

		if event.ID > written {
			written = event.ID
		}
	}

	ticker := time.NewTicker(stream.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return stream.writeClosed()

		case event, ok := <-sub.Events():
			if !ok {
				return stream.writeClosed()
			}

			if event.ID != "" && event.ID <= written {
				continue
			}

			if err := stream.WriteEvent(event); err != nil {
				return err
			}

			if event.Type == a2a.EventTypeClosed {
				return nil
			}

			ticker.Reset(stream.heartbeat)

		case <-ticker.C:
			if err := stream.WriteEvent(a2a.Event{
				Type:      a2a.EventTypeHeartbeat,
				Timestamp: stream.clock().UTC(),
			}); err != nil {
				return err
			}
		}
	}
}

/*
WriteEvent frames one event.  The data line carries the whole event envelope
as JSON, so a parser can rebuild the event from the data alone; the id: and
event: lines exist for standard EventSource semantics (Last-Event-ID, typed
listeners).  Multi-line data is split into one data: line per line.
*/
func (stream *Stream) WriteEvent(event a2a.Event) error {
	var frame strings.Builder

	if event.ID != "" {
		fmt.Fprintf(&frame, "id: %s\n", event.ID)
	}

	fmt.Fprintf(&frame, "event: %s\n", event.Type)

	envelope, err := json.Marshal(event)

	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(envelope), "\n") {
		fmt.Fprintf(&frame, "data: %s\n", line)
	}

	frame.WriteString("\n")

	if _, err := io.WriteString(stream.w, frame.String()); err != nil {
		return err
	}

	return stream.flush()
}

func (stream *Stream) writeClosed() error {
	return stream.WriteEvent(a2a.Event{
		Type:      a2a.EventTypeClosed,
		Timestamp: stream.clock().UTC(),
	})
}

// flush pushes the frame onto the wire immediately; buffering an SSE frame
// defeats the point of the stream.
func (stream *Stream) flush() error {
	switch w := stream.w.(type) {
	case interface{ Flush() error }:
		return w.Flush()
	case http.Flusher:
		w.Flush()
	}

	return nil
}
