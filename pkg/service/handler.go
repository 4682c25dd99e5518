package service

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/catalog"
	"github.com/agentwire/a2a-runtime/pkg/events"
	"github.com/agentwire/a2a-runtime/pkg/push"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
)

// CardExtender may rewrite the extended card based on the caller's claims,
// e.g. revealing internal skills to privileged subjects.
type CardExtender func(ctx context.Context, claims *AuthClaims, card a2a.AgentCard) a2a.AgentCard

/*
RequestHandler implements the A2A method set on top of the task manager, the
push notification manager and the card server.  It owns no transport: the
JSON-RPC engine and the SSE layer call into it.
*/
type RequestHandler struct {
	rt       *runtime.Runtime
	tasks    *TaskManager
	push     *push.Manager
	cards    *catalog.CardServer
	executor AgentExecutor
	extend   CardExtender
	log      *log.Logger
}

type HandlerOption func(*RequestHandler)

// WithCardExtender installs the extended-card mutation hook.
func WithCardExtender(extend CardExtender) HandlerOption {
	return func(h *RequestHandler) { h.extend = extend }
}

func NewRequestHandler(
	rt *runtime.Runtime,
	tasks *TaskManager,
	pushManager *push.Manager,
	cards *catalog.CardServer,
	executor AgentExecutor,
	opts ...HandlerOption,
) *RequestHandler {
	h := &RequestHandler{
		rt:       rt,
		tasks:    tasks,
		push:     pushManager,
		cards:    cards,
		executor: executor,
		log:      rt.Logger,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Tasks exposes the task manager to transports that need read access.
func (h *RequestHandler) Tasks() *TaskManager {
	return h.tasks
}

/*
SendMessage creates the task when the message does not address an existing
one, records the message, and hands both to the executor.  Blocking callers
get the task back once it reaches a terminal or input-required state; others
get an immediate acknowledgement.
*/
func (h *RequestHandler) SendMessage(ctx context.Context, params a2a.MessageSendParams) (*a2a.SendMessageResult, *a2a.RpcError) {
	task, msg, rpcErr := h.acceptMessage(ctx, params)

	if rpcErr != nil {
		return nil, rpcErr
	}

	if task.Status.State.Terminal() {
		return &a2a.SendMessageResult{Task: task}, nil
	}

	if !params.Blocking {
		h.startExecutor(ctx, msg, task)

		return &a2a.SendMessageResult{
			TaskID:    task.ID,
			ContextID: task.ContextID,
			Status:    &task.Status,
		}, nil
	}

	// Subscribe before the executor starts so no transition can slip past.
	sub := h.rt.Queue.Subscribe(events.TaskFilter(task.ID))
	defer sub.Close()

	h.startExecutor(ctx, msg, task)

	final, rpcErr := h.awaitTask(ctx, sub, task.ID, params.HistoryLength)

	if rpcErr != nil {
		return nil, rpcErr
	}

	return &a2a.SendMessageResult{Task: final}, nil
}

/*
StreamMessage accepts a message the same way SendMessage does, but hands the
caller the task and an event filter to attach a stream to.  Events flow until
the task reaches a terminal state or the connection drops.
*/
func (h *RequestHandler) StreamMessage(ctx context.Context, params a2a.MessageSendParams) (*a2a.Task, events.Filter, *a2a.RpcError) {
	if !h.rt.Config.StreamingEnabled {
		return nil, nil, a2a.ErrCapabilityNotSupported.WithMessagef("streaming is disabled")
	}

	task, msg, rpcErr := h.acceptMessage(ctx, params)

	if rpcErr != nil {
		return nil, nil, rpcErr
	}

	if !task.Status.State.Terminal() {
		h.startExecutor(ctx, msg, task)
	}

	return task, events.TaskFilter(task.ID), nil
}

// Resubscribe reopens a stream for an existing task.
func (h *RequestHandler) Resubscribe(ctx context.Context, params a2a.TaskResubscribeParams) (events.Filter, *a2a.RpcError) {
	if !h.rt.Config.StreamingEnabled {
		return nil, a2a.ErrCapabilityNotSupported.WithMessagef("streaming is disabled")
	}

	if params.ID == "" {
		return nil, a2a.ErrInvalidParams.WithMessagef("task id is required")
	}

	if _, err := h.tasks.GetTask(ctx, params.ID, nil); err != nil {
		return nil, err
	}

	return events.TaskFilter(params.ID), nil
}

func (h *RequestHandler) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, *a2a.RpcError) {
	if params.ID == "" {
		return nil, a2a.ErrInvalidParams.WithMessagef("task id is required")
	}

	return h.tasks.GetTask(ctx, params.ID, params.HistoryLength)
}

// CancelTask lets the executor abort its work first, then records the
// canceled state.  The executor's cancel failing is logged, not fatal: the
// state transition is what the protocol promises.
func (h *RequestHandler) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, *a2a.RpcError) {
	if params.ID == "" {
		return nil, a2a.ErrInvalidParams.WithMessagef("task id is required")
	}

	task, rpcErr := h.tasks.GetTask(ctx, params.ID, nil)

	if rpcErr != nil {
		return nil, rpcErr
	}

	if task.Status.State.Terminal() {
		return nil, a2a.ErrTaskNotCancelable.WithData(map[string]any{
			"state": task.Status.State,
		})
	}

	if err := h.executor.Cancel(ctx, task); err != nil {
		h.log.Warn("executor cancel failed", "task", task.ID, "error", err)
	}

	return h.tasks.CancelTask(ctx, params.ID, params.Reason)
}

func (h *RequestHandler) SetPushConfig(ctx context.Context, params a2a.SetPushConfigParams) (*a2a.PushNotificationConfig, *a2a.RpcError) {
	if rpcErr := h.requirePushTask(ctx, params.TaskID); rpcErr != nil {
		return nil, rpcErr
	}

	config := params.Config
	config.TaskID = params.TaskID

	return h.push.SetConfig(ctx, &config)
}

func (h *RequestHandler) GetPushConfig(ctx context.Context, params a2a.PushConfigParams) (*a2a.PushNotificationConfig, *a2a.RpcError) {
	if rpcErr := h.requirePushTask(ctx, params.TaskID); rpcErr != nil {
		return nil, rpcErr
	}

	return h.push.GetConfig(ctx, params.TaskID, params.ConfigID)
}

func (h *RequestHandler) ListPushConfigs(ctx context.Context, params a2a.PushConfigParams) ([]*a2a.PushNotificationConfig, *a2a.RpcError) {
	if rpcErr := h.requirePushTask(ctx, params.TaskID); rpcErr != nil {
		return nil, rpcErr
	}

	return h.push.ListConfigs(ctx, params.TaskID)
}

func (h *RequestHandler) DeletePushConfig(ctx context.Context, params a2a.PushConfigParams) *a2a.RpcError {
	if rpcErr := h.requirePushTask(ctx, params.TaskID); rpcErr != nil {
		return rpcErr
	}

	return h.push.DeleteConfig(ctx, params.TaskID, params.ConfigID)
}

// GetCard serves the public discovery document.
func (h *RequestHandler) GetCard(ctx context.Context) (a2a.AgentCard, *a2a.RpcError) {
	return h.cards.Card(catalog.DefaultCacheKey), nil
}

/*
GetExtendedCard serves the authenticated variant of the card.  Unauthenticated
callers are refused; the optional extender may reshape the card per caller.
*/
func (h *RequestHandler) GetExtendedCard(ctx context.Context) (a2a.AgentCard, *a2a.RpcError) {
	claims, ok := ClaimsFrom(ctx)

	if !ok {
		return a2a.AgentCard{}, a2a.ErrAuthenticationRequired
	}

	card := h.cards.Card("extended:" + claims.Subject)

	if h.extend != nil {
		card = h.extend(ctx, claims, card)
	}

	return card, nil
}

/*
acceptMessage validates the message, resolves or creates its task, appends
the message to history and publishes it as a message event for any stream
observers.
*/
func (h *RequestHandler) acceptMessage(ctx context.Context, params a2a.MessageSendParams) (*a2a.Task, *a2a.Message, *a2a.RpcError) {
	msg := params.Message

	if err := msg.Validate(); err != nil {
		return nil, nil, a2a.ErrInvalidParams.WithMessagef("invalid message: %s", err)
	}

	if msg.MessageID == "" {
		msg.MessageID = h.rt.RandomID()
	}

	var (
		task   *a2a.Task
		rpcErr *a2a.RpcError
	)

	if msg.TaskID != "" {
		task, rpcErr = h.tasks.GetTask(ctx, msg.TaskID, nil)
	} else {
		task, rpcErr = h.tasks.CreateTask(ctx, CreateTaskParams{
			Type:      "message",
			ContextID: msg.ContextID,
			Metadata:  params.Metadata,
		})
	}

	if rpcErr != nil {
		return nil, nil, rpcErr
	}

	msg.TaskID = task.ID
	msg.ContextID = task.ContextID

	task, rpcErr = h.tasks.AddMessage(ctx, task.ID, msg)

	if rpcErr != nil {
		return nil, nil, rpcErr
	}

	if err := h.rt.Queue.Publish(a2a.NewMessageEvent(&msg)); err != nil {
		h.log.Warn("message event publish failed", "task", task.ID, "error", err)
	}

	return task, &msg, nil
}

/*
startExecutor runs the agent logic detached from the request's cancellation:
a non-blocking caller disconnecting must not abort the work it submitted.  An
executor failure moves the task to failed when the transition is still legal.
*/
func (h *RequestHandler) startExecutor(ctx context.Context, msg *a2a.Message, task *a2a.Task) {
	execCtx := context.WithoutCancel(ctx)

	go func() {
		if err := h.executor.Execute(execCtx, msg, task, h.tasks); err != nil {
			h.log.Error("executor failed", "task", task.ID, "error", err)

			failure := a2a.NewTextMessage(a2a.RoleAgent, err.Error())
			failure.MessageID = h.rt.RandomID()
			failure.TaskID = task.ID

			if _, rpcErr := h.tasks.UpdateTaskStatus(execCtx, task.ID, a2a.TaskStatus{
				State:   a2a.TaskStateFailed,
				Message: failure,
			}); rpcErr != nil {
				h.log.Warn("failed-state transition rejected", "task", task.ID, "error", rpcErr)
			}
		}
	}()
}

// awaitTask blocks until the task reaches a terminal or input-required state,
// then returns the fresh record.  A deadline expiring mid-wait surfaces as
// AgentUnavailable; the task keeps whatever state it reached.
func (h *RequestHandler) awaitTask(ctx context.Context, sub *events.Subscription, taskID string, historyLength *int) (*a2a.Task, *a2a.RpcError) {
	// A concurrent writer may have finished the task before the subscription
	// existed; that transition never reaches the channel, so check once.
	current, rpcErr := h.tasks.GetTask(ctx, taskID, historyLength)

	if rpcErr != nil {
		return nil, rpcErr
	}

	if current.Status.State.Terminal() || current.Status.State == a2a.TaskStateInputRequired {
		return current, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, a2a.ErrAgentUnavailable.WithData(map[string]any{
				"reason": "deadline_exceeded",
			})

		case event, ok := <-sub.Events():
			if !ok {
				return h.tasks.GetTask(ctx, taskID, historyLength)
			}

			if event.Type != a2a.EventTypeStatusUpdate {
				continue
			}

			payload, err := event.StatusPayload()

			if err != nil {
				continue
			}

			state := payload.Status.State

			if state.Terminal() || state == a2a.TaskStateInputRequired {
				return h.tasks.GetTask(ctx, taskID, historyLength)
			}
		}
	}
}

// requirePushTask gates the push namespace on the capability flag and on the
// task existing.
func (h *RequestHandler) requirePushTask(ctx context.Context, taskID string) *a2a.RpcError {
	if !h.rt.Config.PushNotificationsEnabled {
		return a2a.ErrCapabilityNotSupported.WithMessagef("push notifications are disabled")
	}

	if taskID == "" {
		return a2a.ErrInvalidParams.WithMessagef("task id is required")
	}

	if _, err := h.tasks.GetTask(ctx, taskID, nil); err != nil {
		return err
	}

	return nil
}
