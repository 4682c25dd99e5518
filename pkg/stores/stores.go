package stores

import (
	"context"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

/*
TaskStore is the storage port for tasks.  The task manager is the only
writer; everything else reads through the manager.  Implementations must not
alias stored values with returned ones.
*/
type TaskStore interface {
	Save(ctx context.Context, task *a2a.Task) *a2a.RpcError
	Get(ctx context.Context, id string) (*a2a.Task, *a2a.RpcError)
	Delete(ctx context.Context, id string) *a2a.RpcError
	ListByContext(ctx context.Context, contextID string) ([]*a2a.Task, *a2a.RpcError)
	Clear(ctx context.Context) *a2a.RpcError
}

// PushConfigStore is the storage port for webhook configs, keyed
// (taskID, configID).  Config lifecycle is independent of the task's.
type PushConfigStore interface {
	Save(ctx context.Context, config *a2a.PushNotificationConfig) *a2a.RpcError
	Get(ctx context.Context, taskID string, configID string) (*a2a.PushNotificationConfig, *a2a.RpcError)
	List(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, *a2a.RpcError)
	Delete(ctx context.Context, taskID string, configID string) *a2a.RpcError
	Clear(ctx context.Context) *a2a.RpcError
}
