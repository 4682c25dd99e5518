package a2a

import (
	"encoding/json"
	"time"
)

// EventType discriminates queue events.  It must be read before the Data
// payload is interpreted.
type EventType string

const (
	EventTypeStatusUpdate   EventType = "task_status_update"
	EventTypeArtifactUpdate EventType = "task_artifact_update"
	EventTypeMessage        EventType = "message"
	EventTypeHeartbeat      EventType = "heartbeat"
	EventTypeConnected      EventType = "connection_established"
	EventTypeClosed         EventType = "connection_closed"
	EventTypeError          EventType = "error"
)

/*
Event is the unit the queue broadcasts.  ID is a per-queue monotonic counter
rendered as fixed-width hex, so Last-Event-ID comparison works both
numerically and lexicographically.
*/
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TaskEvent reports whether the event concerns a task (the only events push
// notification delivery cares about).
func (event Event) TaskEvent() bool {
	return event.Type == EventTypeStatusUpdate || event.Type == EventTypeArtifactUpdate
}

// TaskStatusUpdatePayload is the Data of a task_status_update event.
type TaskStatusUpdatePayload struct {
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// TaskArtifactUpdatePayload is the Data of a task_artifact_update event.
type TaskArtifactUpdatePayload struct {
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId,omitempty"`
	Artifact  Artifact `json:"artifact"`
	Append    bool     `json:"append"`
	LastChunk bool     `json:"lastChunk,omitempty"`
}

// NewStatusEvent builds an (unassigned) status event; the queue fills in the
// id and timestamp on publish.
func NewStatusEvent(task *Task, final bool) Event {
	data, _ := json.Marshal(TaskStatusUpdatePayload{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    task.Status,
		Final:     final,
	})

	return Event{Type: EventTypeStatusUpdate, Data: data}
}

func NewArtifactEvent(task *Task, artifact Artifact, appended bool) Event {
	data, _ := json.Marshal(TaskArtifactUpdatePayload{
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Artifact:  artifact,
		Append:    appended,
	})

	return Event{Type: EventTypeArtifactUpdate, Data: data}
}

func NewMessageEvent(msg *Message) Event {
	data, _ := json.Marshal(msg)
	return Event{Type: EventTypeMessage, Data: data}
}

// StatusPayload decodes the event data as a status update.  Callers check
// the type first.
func (event Event) StatusPayload() (TaskStatusUpdatePayload, error) {
	var payload TaskStatusUpdatePayload
	err := json.Unmarshal(event.Data, &payload)
	return payload, err
}

func (event Event) ArtifactPayload() (TaskArtifactUpdatePayload, error) {
	var payload TaskArtifactUpdatePayload
	err := json.Unmarshal(event.Data, &payload)
	return payload, err
}
