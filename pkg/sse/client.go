package sse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

const (
	DefaultReconnectDelay       = 3 * time.Second
	DefaultMaxReconnectAttempts = 10
)

/*
Client consumes a Server-Sent Events endpoint and reconnects on failure.  It
tracks the last event id across connections and presents it in the
Last-Event-ID header, so a server with a replay ring fills the gap.  A
retry: directive from the server replaces the reconnect delay.
*/
type Client struct {
	URL                  string
	Method               string
	Body                 []byte
	Headers              http.Header
	HTTP                 *http.Client
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	Logger               *log.Logger

	mu          sync.Mutex
	lastEventID string
	retryDelay  time.Duration
}

// NewClient builds a GET client with the default reconnect policy.
func NewClient(url string) *Client {
	return &Client{
		URL:                  url,
		Method:               http.MethodGet,
		HTTP:                 &http.Client{},
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		Logger:               log.Default(),
	}
}

// LastEventID returns the id of the most recently received event.
func (client *Client) LastEventID() string {
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.lastEventID
}

/*
Events connects and emits decoded events on the returned channel.  The
channel closes after a deliberate server shutdown (connection_closed), after
the context is canceled, or once reconnect attempts are exhausted.
*/
func (client *Client) Events(ctx context.Context) <-chan a2a.Event {
	out := make(chan a2a.Event)

	go func() {
		defer close(out)

		attempts := 0

		for {
			err := client.consume(ctx, out)

			if err == nil || ctx.Err() != nil {
				return
			}

			attempts++

			if attempts > client.MaxReconnectAttempts {
				client.Logger.Error("sse reconnect attempts exhausted",
					"url", client.URL, "attempts", attempts-1, "error", err)
				return
			}

			delay := client.backoff(attempts)

			client.Logger.Warn("sse connection lost, reconnecting",
				"url", client.URL, "attempt", attempts, "delay", delay, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()

	return out
}

// consume runs one connection to completion.  A nil return means the stream
// ended deliberately; an error asks the caller to reconnect.
func (client *Client) consume(ctx context.Context, out chan<- a2a.Event) error {
	resp, err := client.connect(ctx)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	parser := NewParser()
	buf := make([]byte, 4096)

	for {
		n, err := resp.Body.Read(buf)

		for _, frame := range parser.Feed(buf[:n]) {
			if frame.Retry > 0 {
				client.mu.Lock()
				client.retryDelay = frame.Retry
				client.mu.Unlock()
			}

			event, decodeErr := DecodeEvent(frame)

			if decodeErr != nil {
				client.Logger.Warn("sse frame decode failed", "error", decodeErr)
				continue
			}

			if event.ID != "" {
				client.mu.Lock()
				client.lastEventID = event.ID
				client.mu.Unlock()
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return nil
			}

			if event.Type == a2a.EventTypeClosed {
				return nil
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if err == io.EOF {
				return fmt.Errorf("sse stream ended unexpectedly")
			}
			return err
		}
	}
}

func (client *Client) connect(ctx context.Context) (*http.Response, error) {
	var body io.Reader

	if len(client.Body) > 0 {
		body = bytes.NewReader(client.Body)
	}

	method := client.Method

	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, client.URL, body)

	if err != nil {
		return nil, err
	}

	for key, values := range client.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	if len(client.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	if id := client.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := client.HTTP.Do(req)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse endpoint returned status %d", resp.StatusCode)
	}

	return resp, nil
}

// backoff doubles the base delay per consecutive failed attempt.  The base is
// the server's retry: value when one was received.
func (client *Client) backoff(attempt int) time.Duration {
	client.mu.Lock()
	base := client.retryDelay
	client.mu.Unlock()

	if base <= 0 {
		base = client.ReconnectDelay
	}

	delay := base

	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	if max := 60 * time.Second; delay > max {
		delay = max
	}

	return delay
}
