package stores

import (
	"context"
	"sync"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

/*
InMemoryTaskStore is the reference TaskStore.  It keeps a context index so
tasks belonging to one conversation can be listed in insertion order without
scanning the whole map.
*/
type InMemoryTaskStore struct {
	mu       sync.RWMutex
	tasks    map[string]*a2a.Task
	byContex map[string][]string
}

func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{
		tasks:    make(map[string]*a2a.Task),
		byContex: make(map[string][]string),
	}
}

func (store *InMemoryTaskStore) Save(ctx context.Context, task *a2a.Task) *a2a.RpcError {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, exists := store.tasks[task.ID]; !exists && task.ContextID != "" {
		store.byContex[task.ContextID] = append(store.byContex[task.ContextID], task.ID)
	}

	store.tasks[task.ID] = task.Clone()
	return nil
}

func (store *InMemoryTaskStore) Get(ctx context.Context, id string) (*a2a.Task, *a2a.RpcError) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	task, ok := store.tasks[id]

	if !ok {
		return nil, a2a.ErrTaskNotFound.WithData(map[string]any{"taskId": id})
	}

	return task.Clone(), nil
}

func (store *InMemoryTaskStore) Delete(ctx context.Context, id string) *a2a.RpcError {
	store.mu.Lock()
	defer store.mu.Unlock()

	task, ok := store.tasks[id]

	if !ok {
		return a2a.ErrTaskNotFound.WithData(map[string]any{"taskId": id})
	}

	delete(store.tasks, id)

	ids := store.byContex[task.ContextID]
	for i, tid := range ids {
		if tid == id {
			store.byContex[task.ContextID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}

	return nil
}

func (store *InMemoryTaskStore) ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, *a2a.RpcError) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	ids := store.byContex[contextID]
	out := make([]*a2a.Task, 0, len(ids))

	for _, id := range ids {
		if task, ok := store.tasks[id]; ok {
			out = append(out, task.Clone())
		}
	}

	return out, nil
}

func (store *InMemoryTaskStore) Clear(ctx context.Context) *a2a.RpcError {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.tasks = make(map[string]*a2a.Task)
	store.byContex = make(map[string][]string)
	return nil
}

// InMemoryPushConfigStore is the reference PushConfigStore.
type InMemoryPushConfigStore struct {
	mu      sync.RWMutex
	configs map[string]map[string]*a2a.PushNotificationConfig
}

func NewInMemoryPushConfigStore() *InMemoryPushConfigStore {
	return &InMemoryPushConfigStore{
		configs: make(map[string]map[string]*a2a.PushNotificationConfig),
	}
}

func (store *InMemoryPushConfigStore) Save(ctx context.Context, config *a2a.PushNotificationConfig) *a2a.RpcError {
	store.mu.Lock()
	defer store.mu.Unlock()

	byTask, ok := store.configs[config.TaskID]

	if !ok {
		byTask = make(map[string]*a2a.PushNotificationConfig)
		store.configs[config.TaskID] = byTask
	}

	clone := *config
	byTask[config.ID] = &clone
	return nil
}

func (store *InMemoryPushConfigStore) Get(ctx context.Context, taskID string, configID string) (*a2a.PushNotificationConfig, *a2a.RpcError) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	config, ok := store.configs[taskID][configID]

	if !ok {
		return nil, a2a.ErrTaskNotFound.WithMessagef(
			"push notification config %s not found for task %s", configID, taskID,
		)
	}

	clone := *config
	return &clone, nil
}

func (store *InMemoryPushConfigStore) List(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, *a2a.RpcError) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	byTask := store.configs[taskID]
	out := make([]*a2a.PushNotificationConfig, 0, len(byTask))

	for _, config := range byTask {
		clone := *config
		out = append(out, &clone)
	}

	return out, nil
}

func (store *InMemoryPushConfigStore) Delete(ctx context.Context, taskID string, configID string) *a2a.RpcError {
	store.mu.Lock()
	defer store.mu.Unlock()

	byTask, ok := store.configs[taskID]

	if !ok {
		return a2a.ErrTaskNotFound.WithMessagef(
			"push notification config %s not found for task %s", configID, taskID,
		)
	}

	if _, ok := byTask[configID]; !ok {
		return a2a.ErrTaskNotFound.WithMessagef(
			"push notification config %s not found for task %s", configID, taskID,
		)
	}

	delete(byTask, configID)

	if len(byTask) == 0 {
		delete(store.configs, taskID)
	}

	return nil
}

func (store *InMemoryPushConfigStore) Clear(ctx context.Context) *a2a.RpcError {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.configs = make(map[string]map[string]*a2a.PushNotificationConfig)
	return nil
}
