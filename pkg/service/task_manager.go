package service

// TaskManager is the sole authority for task state, history and artifacts.
// Every mutation of one task runs under that task's lock, and the cache and
// store are written inside the same critical section, so observers always
// see transitions in causal order.

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/events"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
	"github.com/agentwire/a2a-runtime/pkg/stores"
)

// CreateTaskParams captures everything needed to start a task.
type CreateTaskParams struct {
	Type      string
	Params    map[string]any
	ContextID string
	Metadata  map[string]any
}

type TaskManager struct {
	rt    *runtime.Runtime
	store stores.TaskStore
	cache *stores.TaskCache
	queue *events.Queue
	locks *keyedLocks
	log   *log.Logger
}

func NewTaskManager(rt *runtime.Runtime) *TaskManager {
	cache := stores.NewTaskCache(rt.Config.CacheSize, rt.Config.CacheTTL)
	cache.SetClock(rt.Clock.Now)

	return &TaskManager{
		rt:    rt,
		store: rt.Tasks,
		cache: cache,
		queue: rt.Queue,
		locks: newKeyedLocks(),
		log:   rt.Logger,
	}
}

/*
CreateTask generates the task and (if absent) context ids, persists the task
in the submitted state and emits the initial status event.
*/
func (tm *TaskManager) CreateTask(ctx context.Context, params CreateTaskParams) (*a2a.Task, *a2a.RpcError) {
	id := tm.rt.RandomID()
	contextID := params.ContextID

	if contextID == "" {
		contextID = tm.rt.RandomID()
	}

	task := a2a.NewTask(id, contextID, tm.rt.Clock.Now())

	task.Metadata = map[string]any{
		"type":      params.Type,
		"createdAt": task.Status.UpdatedAt,
	}

	if params.Params != nil {
		task.Metadata["params"] = params.Params
	}

	for k, v := range params.Metadata {
		task.Metadata[k] = v
	}

	unlock := tm.locks.lock(id)
	defer unlock()

	if err := tm.persist(ctx, task); err != nil {
		return nil, err
	}

	tm.emit(a2a.NewStatusEvent(task, false))

	tm.log.Info("task created", "task", task.ID, "context", task.ContextID, "type", params.Type)

	return task.Clone(), nil
}

/*
GetTask reads through the cache.  A historyLength bound truncates the
returned view to the most recent N messages; the stored record is unchanged.
*/
func (tm *TaskManager) GetTask(ctx context.Context, id string, historyLength *int) (*a2a.Task, *a2a.RpcError) {
	unlock := tm.locks.lock(id)
	task, err := tm.load(ctx, id)
	unlock()

	if err != nil {
		return nil, err
	}

	if historyLength != nil {
		return task.TrimmedHistory(*historyLength), nil
	}

	return task, nil
}

/*
UpdateTaskStatus validates the transition against the state machine,
persists and emits.  On an illegal pair the task is left untouched and the
error carries the offending edge in Data.
*/
func (tm *TaskManager) UpdateTaskStatus(ctx context.Context, id string, status a2a.TaskStatus) (*a2a.Task, *a2a.RpcError) {
	unlock := tm.locks.lock(id)
	defer unlock()

	task, err := tm.load(ctx, id)

	if err != nil {
		return nil, err
	}

	if !task.Status.State.CanTransitionTo(status.State) {
		return nil, a2a.ErrInvalidTaskState.WithData(map[string]any{
			"from": task.Status.State,
			"to":   status.State,
		})
	}

	task.Status = status
	task.Status.UpdatedAt = tm.rt.Clock.Now().UTC()

	if status.Message != nil {
		task.History = tm.appendHistory(task.History, *status.Message)
	}

	if err := tm.persist(ctx, task); err != nil {
		return nil, err
	}

	tm.emit(a2a.NewStatusEvent(task, task.Status.State.Terminal()))

	tm.log.Info("task status update", "task", task.ID, "state", task.Status.State)

	return task.Clone(), nil
}

// CancelTask is the shortcut transition to canceled.  Terminal tasks are not
// cancelable.
func (tm *TaskManager) CancelTask(ctx context.Context, id string, reason string) (*a2a.Task, *a2a.RpcError) {
	unlock := tm.locks.lock(id)
	defer unlock()

	task, err := tm.load(ctx, id)

	if err != nil {
		return nil, err
	}

	if task.Status.State.Terminal() {
		return nil, a2a.ErrTaskNotCancelable.WithData(map[string]any{
			"state": task.Status.State,
		})
	}

	task.Status = a2a.TaskStatus{
		State:     a2a.TaskStateCanceled,
		UpdatedAt: tm.rt.Clock.Now().UTC(),
	}

	if reason != "" {
		msg := a2a.NewTextMessage(a2a.RoleAgent, reason)
		msg.MessageID = tm.rt.RandomID()
		msg.TaskID = task.ID
		task.Status.Message = msg
	}

	if err := tm.persist(ctx, task); err != nil {
		return nil, err
	}

	tm.emit(a2a.NewStatusEvent(task, true))

	tm.log.Info("task canceled", "task", task.ID, "reason", reason)

	return task.Clone(), nil
}

/*
AddArtifact appends or replaces output.  With append set and a matching
artifactId the new parts are concatenated onto the existing artifact (never
deduplicated); otherwise the artifact is pushed as a new entry.
*/
func (tm *TaskManager) AddArtifact(ctx context.Context, id string, artifact a2a.Artifact, appendParts bool) (*a2a.Task, *a2a.RpcError) {
	unlock := tm.locks.lock(id)
	defer unlock()

	task, err := tm.load(ctx, id)

	if err != nil {
		return nil, err
	}

	appended := false

	if appendParts {
		for i := range task.Artifacts {
			if task.Artifacts[i].ArtifactID == artifact.ArtifactID {
				task.Artifacts[i].Parts = append(task.Artifacts[i].Parts, artifact.Parts...)
				appended = true
				break
			}
		}
	}

	if !appended {
		task.Artifacts = append(task.Artifacts, artifact.Clone())
	}

	task.Status.UpdatedAt = tm.rt.Clock.Now().UTC()

	if err := tm.persist(ctx, task); err != nil {
		return nil, err
	}

	tm.emit(a2a.NewArtifactEvent(task, artifact, appended))

	return task.Clone(), nil
}

/*
AddMessage appends to history, dropping the oldest entries when the cap is
exceeded.  No event is emitted here: messages reach subscribers through the
handler's own message events.
*/
func (tm *TaskManager) AddMessage(ctx context.Context, id string, msg a2a.Message) (*a2a.Task, *a2a.RpcError) {
	unlock := tm.locks.lock(id)
	defer unlock()

	task, err := tm.load(ctx, id)

	if err != nil {
		return nil, err
	}

	task.History = tm.appendHistory(task.History, msg)

	if err := tm.persist(ctx, task); err != nil {
		return nil, err
	}

	return task.Clone(), nil
}

// ListByContext returns every task in a conversation.
func (tm *TaskManager) ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, *a2a.RpcError) {
	return tm.store.ListByContext(ctx, contextID)
}

// appendHistory enforces the FIFO history cap.
func (tm *TaskManager) appendHistory(history []a2a.Message, msg a2a.Message) []a2a.Message {
	history = append(history, msg)

	if max := tm.rt.Config.MaxHistoryLength; max > 0 && len(history) > max {
		history = history[len(history)-max:]
	}

	return history
}

// load reads cache-first.  Caller holds the task lock.
func (tm *TaskManager) load(ctx context.Context, id string) (*a2a.Task, *a2a.RpcError) {
	if task, ok := tm.cache.Get(id); ok {
		return task, nil
	}

	task, err := tm.store.Get(ctx, id)

	if err != nil {
		return nil, err
	}

	tm.cache.Put(task)
	return task, nil
}

// persist writes store and cache together.  Caller holds the task lock.
func (tm *TaskManager) persist(ctx context.Context, task *a2a.Task) *a2a.RpcError {
	if err := tm.store.Save(ctx, task); err != nil {
		return err
	}

	tm.cache.Put(task)
	return nil
}

// emit publishes best-effort: a full or closed queue is logged, never
// surfaced to the caller whose mutation already committed.
func (tm *TaskManager) emit(event a2a.Event) {
	if tm.queue == nil {
		return
	}

	if err := tm.queue.Publish(event); err != nil {
		tm.log.Warn("event publish failed", "type", event.Type, "error", err)
	}
}
