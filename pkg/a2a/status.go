package a2a

import (
	"encoding/json"
	"time"
)

/*
TaskState enumerates the mutually exclusive states a task may be in.  An
unrecognised value decodes to "unknown" rather than failing, so a newer peer
can introduce states without breaking older clients.
*/
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnknown       TaskState = "unknown"
)

// transitions is the allowed state-machine edge set.  Terminal states have
// no entry: they admit no outgoing transition.
var transitions = map[TaskState]map[TaskState]bool{
	TaskStateSubmitted: {
		TaskStateWorking:      true,
		TaskStateAuthRequired: true,
		TaskStateCanceled:     true,
		TaskStateRejected:     true,
	},
	TaskStateWorking: {
		TaskStateInputRequired: true,
		TaskStateAuthRequired:  true,
		TaskStateCompleted:     true,
		TaskStateCanceled:      true,
		TaskStateFailed:        true,
	},
	TaskStateInputRequired: {
		TaskStateWorking:   true,
		TaskStateCompleted: true,
		TaskStateCanceled:  true,
		TaskStateFailed:    true,
	},
	TaskStateAuthRequired: {
		TaskStateWorking:  true,
		TaskStateCanceled: true,
		TaskStateRejected: true,
	},
}

// Terminal reports whether the state admits no outgoing transition.
func (state TaskState) Terminal() bool {
	switch state {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed,
		TaskStateRejected, TaskStateUnknown:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge state → next is allowed.
func (state TaskState) CanTransitionTo(next TaskState) bool {
	return transitions[state][next]
}

func (state *TaskState) UnmarshalJSON(buf []byte) error {
	var raw string

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	switch TaskState(raw) {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateAuthRequired, TaskStateCompleted, TaskStateCanceled,
		TaskStateFailed, TaskStateRejected:
		*state = TaskState(raw)
	default:
		*state = TaskStateUnknown
	}

	return nil
}

/*
TaskStatus couples a state with the message that caused it and the moment it
was reached.  UpdatedAt is always UTC.
*/
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}
