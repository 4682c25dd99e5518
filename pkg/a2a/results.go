package a2a

/*
SendMessageResult is the payload of a message/send response.  A blocking send
returns the finished task; a non-blocking send acknowledges with the task and
context ids plus the submitted status.
*/
type SendMessageResult struct {
	Task      *Task       `json:"task,omitempty"`
	TaskID    string      `json:"taskId,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
	Status    *TaskStatus `json:"status,omitempty"`
}
