package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

// fastPolicy keeps retry pacing out of test wall time.
func fastPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type webhookRecorder struct {
	mu       sync.Mutex
	statuses []int
	payloads []webhookPayload
	done     chan struct{}
}

// newWebhookRecorder answers each request with the next scripted status and
// closes done once the script is exhausted.
func newWebhookRecorder(statuses ...int) (*webhookRecorder, *httptest.Server) {
	rec := &webhookRecorder{statuses: statuses, done: make(chan struct{})}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()

		var payload webhookPayload
		json.NewDecoder(r.Body).Decode(&payload)
		rec.payloads = append(rec.payloads, payload)

		status := http.StatusOK
		if len(rec.statuses) > 0 {
			status = rec.statuses[0]
			rec.statuses = rec.statuses[1:]
		}

		if len(rec.statuses) == 0 {
			select {
			case <-rec.done:
			default:
				close(rec.done)
			}
		}

		rec.mu.Unlock()
		w.WriteHeader(status)
	}))

	return rec, server
}

func (rec *webhookRecorder) received() []webhookPayload {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]webhookPayload(nil), rec.payloads...)
}

func TestSetConfigAssignsID(t *testing.T) {
	rt := runtime.New()
	m := NewManager(rt)

	saved, err := m.SetConfig(context.Background(), &a2a.PushNotificationConfig{
		TaskID: "t1",
		URL:    "https://example.com/hook",
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	if saved.ID == "" {
		t.Error("id must be assigned")
	}
	if !saved.Active {
		t.Error("new config must start active")
	}
}

func TestSetConfigValidation(t *testing.T) {
	rt := runtime.New()
	m := NewManager(rt)

	tests := []struct {
		name   string
		config a2a.PushNotificationConfig
	}{
		{"missing url", a2a.PushNotificationConfig{TaskID: "t1"}},
		{"missing task", a2a.PushNotificationConfig{URL: "https://example.com"}},
		{"bad scheme", a2a.PushNotificationConfig{TaskID: "t1", URL: "ftp://example.com"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.SetConfig(context.Background(), &tc.config)

			if !errors.Is(err, a2a.ErrInvalidParams) {
				t.Errorf("error = %v, want InvalidParams", err)
			}
		})
	}
}

func TestDeliveryRetriesUntilSuccess(t *testing.T) {
	rec, server := newWebhookRecorder(
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusOK,
	)
	defer server.Close()

	rt := runtime.New()
	m := NewManager(rt, WithDeliveryPolicy(fastPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, _ := m.SetConfig(ctx, &a2a.PushNotificationConfig{TaskID: "t1", URL: server.URL})

	go m.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	task := &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	rt.Queue.Publish(a2a.NewStatusEvent(task, true))

	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never saw the successful delivery")
	}

	payloads := rec.received()

	if len(payloads) != 3 {
		t.Fatalf("webhook hit %d times, want 3", len(payloads))
	}

	// All three attempts carry the same event id for de-duplication.
	for _, payload := range payloads {
		if payload.EventID != payloads[0].EventID {
			t.Error("attempts carried different event ids")
		}
		if payload.TaskID != "t1" {
			t.Errorf("payload task = %q", payload.TaskID)
		}
		if payload.Status == nil || payload.Status.State != a2a.TaskStateCompleted {
			t.Error("payload missing the status")
		}
	}

	// Delivery bookkeeping records the final success.
	deadline := time.After(time.Second)
	for m.State("t1", config.ID).LastSuccess.IsZero() {
		select {
		case <-deadline:
			t.Fatal("state never recorded the success")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDeliveryPermanent4xxDoesNotRetry(t *testing.T) {
	rec, server := newWebhookRecorder(http.StatusBadRequest)
	defer server.Close()

	rt := runtime.New()
	m := NewManager(rt, WithDeliveryPolicy(fastPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.SetConfig(ctx, &a2a.PushNotificationConfig{TaskID: "t1", URL: server.URL})

	go m.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	task := &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	rt.Queue.Publish(a2a.NewStatusEvent(task, true))

	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never hit")
	}

	// Give a wrong implementation a moment to retry.
	time.Sleep(50 * time.Millisecond)

	if got := len(rec.received()); got != 1 {
		t.Errorf("webhook hit %d times, want 1", got)
	}
}

func TestDeliveryExhaustionKeepsConfigActive(t *testing.T) {
	rec, server := newWebhookRecorder(
		http.StatusInternalServerError,
		http.StatusInternalServerError,
		http.StatusInternalServerError,
	)
	defer server.Close()

	rt := runtime.New()

	policy := fastPolicy()
	policy.MaxAttempts = 3

	m := NewManager(rt, WithDeliveryPolicy(policy))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, _ := m.SetConfig(ctx, &a2a.PushNotificationConfig{TaskID: "t1", URL: server.URL})

	go m.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	task := &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateFailed}}
	rt.Queue.Publish(a2a.NewStatusEvent(task, true))

	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never exhausted")
	}

	if got := len(rec.received()); got != 3 {
		t.Errorf("webhook hit %d times, want 3", got)
	}

	// Exhaustion drops the event but never deactivates the config.
	stored, err := m.GetConfig(ctx, "t1", config.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.Active {
		t.Error("config was deactivated by exhaustion")
	}
}

func TestInactiveConfigSkipped(t *testing.T) {
	rec, server := newWebhookRecorder()
	defer server.Close()

	rt := runtime.New()
	m := NewManager(rt, WithDeliveryPolicy(fastPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.SetConfig(ctx, &a2a.PushNotificationConfig{
		ID:     "c1",
		TaskID: "t1",
		URL:    server.URL,
		Active: false,
	})

	go m.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	task := &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	rt.Queue.Publish(a2a.NewStatusEvent(task, true))

	time.Sleep(50 * time.Millisecond)

	if got := len(rec.received()); got != 0 {
		t.Errorf("inactive config received %d deliveries", got)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	policy := DeliveryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	if got := policy.backoff(1); got != time.Second {
		t.Errorf("backoff(1) = %v, want 1s", got)
	}
	if got := policy.backoff(3); got != 4*time.Second {
		t.Errorf("backoff(3) = %v, want 4s", got)
	}
	if got := policy.backoff(10); got != 10*time.Second {
		t.Errorf("backoff(10) = %v, want the 10s cap", got)
	}
}
