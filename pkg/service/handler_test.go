package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/catalog"
	"github.com/agentwire/a2a-runtime/pkg/events"
	"github.com/agentwire/a2a-runtime/pkg/push"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

func testHandler(t *testing.T, rt *runtime.Runtime) *RequestHandler {
	t.Helper()

	registry := catalog.NewRegistry()
	registry.Register(catalog.Capability{Name: "echo"})

	cards := catalog.NewCardServer(registry, catalog.Info{
		Name:            "test agent",
		URL:             "http://localhost:0",
		ProtocolVersion: rt.Config.ProtocolVersion,
		Streaming:       rt.Config.StreamingEnabled,
	}, catalog.WithClock(rt.Clock.Now))

	tasks := NewTaskManager(rt)

	return NewRequestHandler(rt, tasks, push.NewManager(rt), cards, NewEchoExecutor(rt.RandomID))
}

func TestSendMessageBlocking(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := h.SendMessage(ctx, a2a.MessageSendParams{
		Message:  *a2a.NewTextMessage(a2a.RoleUser, "hello"),
		Blocking: true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if result.Task == nil {
		t.Fatal("blocking send must return the task")
	}
	if result.Task.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %q, want completed", result.Task.Status.State)
	}
	if len(result.Task.Artifacts) != 1 {
		t.Fatalf("artifact count = %d, want 1", len(result.Task.Artifacts))
	}
	if got := result.Task.Artifacts[0].Parts[0].Text; got != "hello" {
		t.Errorf("echoed artifact = %q, want %q", got, "hello")
	}

	// User message plus the agent's completion reply.
	if len(result.Task.History) < 2 {
		t.Errorf("history length = %d, want at least 2", len(result.Task.History))
	}
}

func TestSendMessageNonBlockingAck(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)
	ctx := context.Background()

	result, err := h.SendMessage(ctx, a2a.MessageSendParams{
		Message: *a2a.NewTextMessage(a2a.RoleUser, "hello"),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if result.TaskID == "" {
		t.Fatal("ack must carry the task id")
	}
	if result.Task != nil {
		t.Error("non-blocking send must not return the full task")
	}

	// The work finishes in the background; poll until terminal.
	deadline := time.After(5 * time.Second)

	for {
		task, err := h.GetTask(ctx, a2a.TaskQueryParams{ID: result.TaskID})
		if err != nil {
			t.Fatalf("get: %v", err)
		}

		if task.Status.State.Terminal() {
			if task.Status.State != a2a.TaskStateCompleted {
				t.Errorf("state = %q, want completed", task.Status.State)
			}
			return
		}

		select {
		case <-deadline:
			t.Fatal("task never reached a terminal state")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSendMessageRejectsInvalid(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)

	tests := []struct {
		name string
		msg  a2a.Message
	}{
		{"no parts", a2a.Message{Role: a2a.RoleUser}},
		{"bad role", a2a.Message{Role: "system", Parts: []a2a.Part{a2a.NewTextPart("x")}}},
		{"empty text part", a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{{Kind: a2a.PartKindText}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.SendMessage(context.Background(), a2a.MessageSendParams{Message: tc.msg})

			if !errors.Is(err, a2a.ErrInvalidParams) {
				t.Errorf("error = %v, want InvalidParams", err)
			}
		})
	}
}

func TestStreamMessageGatedOnCapability(t *testing.T) {
	rt := runtime.New()
	rt.Config.StreamingEnabled = false
	h := testHandler(t, rt)

	_, _, err := h.StreamMessage(context.Background(), a2a.MessageSendParams{
		Message: *a2a.NewTextMessage(a2a.RoleUser, "hello"),
	})

	if !errors.Is(err, a2a.ErrCapabilityNotSupported) {
		t.Errorf("error = %v, want CapabilityNotSupported", err)
	}

	_, err = h.Resubscribe(context.Background(), a2a.TaskResubscribeParams{ID: "t1"})

	if !errors.Is(err, a2a.ErrCapabilityNotSupported) {
		t.Errorf("resubscribe error = %v, want CapabilityNotSupported", err)
	}
}

func TestResubscribeUnknownTask(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)

	_, err := h.Resubscribe(context.Background(), a2a.TaskResubscribeParams{ID: "missing"})

	if !errors.Is(err, a2a.ErrTaskNotFound) {
		t.Errorf("error = %v, want TaskNotFound", err)
	}
}

func TestCancelTaskViaHandler(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)
	ctx := context.Background()

	task, err := h.Tasks().CreateTask(ctx, CreateTaskParams{Type: "message"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	canceled, rpcErr := h.CancelTask(ctx, a2a.TaskIDParams{ID: task.ID, Reason: "changed my mind"})
	if rpcErr != nil {
		t.Fatalf("cancel: %v", rpcErr)
	}

	if canceled.Status.State != a2a.TaskStateCanceled {
		t.Errorf("state = %q, want canceled", canceled.Status.State)
	}

	_, rpcErr = h.CancelTask(ctx, a2a.TaskIDParams{ID: task.ID})

	if !errors.Is(rpcErr, a2a.ErrTaskNotCancelable) {
		t.Errorf("error = %v, want TaskNotCancelable", rpcErr)
	}
}

func TestPushConfigGating(t *testing.T) {
	rt := runtime.New()
	rt.Config.PushNotificationsEnabled = false
	h := testHandler(t, rt)

	_, err := h.SetPushConfig(context.Background(), a2a.SetPushConfigParams{
		TaskID: "t1",
		Config: a2a.PushNotificationConfig{URL: "https://example.com/hook"},
	})

	if !errors.Is(err, a2a.ErrCapabilityNotSupported) {
		t.Errorf("error = %v, want CapabilityNotSupported", err)
	}
}

func TestPushConfigRequiresTask(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)

	_, err := h.SetPushConfig(context.Background(), a2a.SetPushConfigParams{
		TaskID: "missing",
		Config: a2a.PushNotificationConfig{URL: "https://example.com/hook"},
	})

	if !errors.Is(err, a2a.ErrTaskNotFound) {
		t.Errorf("error = %v, want TaskNotFound", err)
	}
}

func TestPushConfigRoundTrip(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)
	ctx := context.Background()

	task, _ := h.Tasks().CreateTask(ctx, CreateTaskParams{Type: "message"})

	saved, err := h.SetPushConfig(ctx, a2a.SetPushConfigParams{
		TaskID: task.ID,
		Config: a2a.PushNotificationConfig{URL: "https://example.com/hook"},
	})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	if saved.ID == "" {
		t.Fatal("config id must be assigned")
	}

	got, err := h.GetPushConfig(ctx, a2a.PushConfigParams{TaskID: task.ID, ConfigID: saved.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.URL != saved.URL {
		t.Errorf("url = %q, want %q", got.URL, saved.URL)
	}

	configs, err := h.ListPushConfigs(ctx, a2a.PushConfigParams{TaskID: task.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("config count = %d, want 1", len(configs))
	}

	if err := h.DeletePushConfig(ctx, a2a.PushConfigParams{TaskID: task.ID, ConfigID: saved.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := h.GetPushConfig(ctx, a2a.PushConfigParams{TaskID: task.ID, ConfigID: saved.ID}); err == nil {
		t.Error("config still readable after delete")
	}
}

// A task finished before the subscription existed must be returned right
// away instead of waiting out the deadline.
func TestAwaitTaskSeesPriorCompletion(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)
	ctx := context.Background()

	task, rpcErr := h.tasks.CreateTask(ctx, CreateTaskParams{Type: "message"})
	if rpcErr != nil {
		t.Fatalf("create: %v", rpcErr)
	}

	for _, state := range []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateCompleted} {
		if _, rpcErr := h.tasks.UpdateTaskStatus(ctx, task.ID, a2a.TaskStatus{State: state}); rpcErr != nil {
			t.Fatalf("transition to %s: %v", state, rpcErr)
		}
	}

	// Subscribing now means the completion event never reaches the channel.
	sub := rt.Queue.Subscribe(events.TaskFilter(task.ID))
	defer sub.Close()

	waitCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	final, rpcErr := h.awaitTask(waitCtx, sub, task.ID, nil)
	if rpcErr != nil {
		t.Fatalf("await: %v", rpcErr)
	}

	if final.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %q, want completed", final.Status.State)
	}
}

func TestGetExtendedCardRequiresAuth(t *testing.T) {
	rt := runtime.New()
	h := testHandler(t, rt)

	_, err := h.GetExtendedCard(context.Background())

	if !errors.Is(err, a2a.ErrAuthenticationRequired) {
		t.Errorf("error = %v, want AuthenticationRequired", err)
	}

	ctx := WithClaims(context.Background(), &AuthClaims{Subject: "alice"})

	card, err := h.GetExtendedCard(ctx)
	if err != nil {
		t.Fatalf("extended card: %v", err)
	}
	if card.Name != "test agent" {
		t.Errorf("card name = %q", card.Name)
	}
}
