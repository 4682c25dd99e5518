package service

import (
	"context"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

/*
AgentExecutor is the port behind which agent business logic lives.  The
runtime never runs agent code itself: it hands the executor the incoming
message and the task, and the executor drives the task through the manager.
Execute may return before the task is terminal; blocking callers wait on the
event queue instead.
*/
type AgentExecutor interface {
	Execute(ctx context.Context, msg *a2a.Message, task *a2a.Task, tm *TaskManager) error
	Cancel(ctx context.Context, task *a2a.Task) error
}

/*
EchoExecutor completes every task immediately with an agent message echoing
the user's text and a single text artifact.  It exists for smoke tests and
the serve command's default wiring.
*/
type EchoExecutor struct {
	randomID func() string
}

func NewEchoExecutor(randomID func() string) *EchoExecutor {
	return &EchoExecutor{randomID: randomID}
}

func (echo *EchoExecutor) Execute(ctx context.Context, msg *a2a.Message, task *a2a.Task, tm *TaskManager) error {
	if _, err := tm.UpdateTaskStatus(ctx, task.ID, a2a.TaskStatus{State: a2a.TaskStateWorking}); err != nil {
		return err
	}

	artifact := a2a.NewTextArtifact(echo.randomID(), "echo", msg.String())

	if _, err := tm.AddArtifact(ctx, task.ID, artifact, false); err != nil {
		return err
	}

	reply := a2a.NewTextMessage(a2a.RoleAgent, msg.String())
	reply.MessageID = echo.randomID()
	reply.TaskID = task.ID
	reply.ContextID = task.ContextID

	if _, err := tm.UpdateTaskStatus(ctx, task.ID, a2a.TaskStatus{
		State:   a2a.TaskStateCompleted,
		Message: reply,
	}); err != nil {
		return err
	}

	return nil
}

func (echo *EchoExecutor) Cancel(ctx context.Context, task *a2a.Task) error {
	return nil
}
