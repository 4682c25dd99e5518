package a2a

import "encoding/json"

// The wire is camelCase, but snake_case params are still accepted for
// backward compatibility.  Each param struct decodes both spellings and the
// encoder only ever emits camelCase.

// MessageSendParams carries the payload of message/send and message/stream.
type MessageSendParams struct {
	Message       Message        `json:"message"`
	Blocking      bool           `json:"blocking,omitempty"`
	HistoryLength *int           `json:"historyLength,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (p *MessageSendParams) UnmarshalJSON(buf []byte) error {
	var raw struct {
		Message          Message        `json:"message"`
		Blocking         bool           `json:"blocking"`
		HistoryLength    *int           `json:"historyLength"`
		HistoryLengthAlt *int           `json:"history_length"`
		Metadata         map[string]any `json:"metadata"`
	}

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	p.Message = raw.Message
	p.Blocking = raw.Blocking
	p.HistoryLength = coalesce(raw.HistoryLength, raw.HistoryLengthAlt)
	p.Metadata = raw.Metadata
	return nil
}

// TaskQueryParams identifies a task for reads, optionally bounding the
// returned history.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

func (p *TaskQueryParams) UnmarshalJSON(buf []byte) error {
	var raw struct {
		ID               string `json:"id"`
		TaskID           string `json:"taskId"`
		TaskIDAlt        string `json:"task_id"`
		HistoryLength    *int   `json:"historyLength"`
		HistoryLengthAlt *int   `json:"history_length"`
	}

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	p.ID = firstNonEmpty(raw.ID, raw.TaskID, raw.TaskIDAlt)
	p.HistoryLength = coalesce(raw.HistoryLength, raw.HistoryLengthAlt)
	return nil
}

// TaskIDParams identifies a task for cancel and similar operations.
type TaskIDParams struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

func (p *TaskIDParams) UnmarshalJSON(buf []byte) error {
	var raw struct {
		ID        string `json:"id"`
		TaskID    string `json:"taskId"`
		TaskIDAlt string `json:"task_id"`
		Reason    string `json:"reason"`
	}

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	p.ID = firstNonEmpty(raw.ID, raw.TaskID, raw.TaskIDAlt)
	p.Reason = raw.Reason
	return nil
}

// TaskResubscribeParams reopens a stream for an existing task.
type TaskResubscribeParams struct {
	ID          string `json:"id"`
	LastEventID string `json:"lastEventId,omitempty"`
}

func (p *TaskResubscribeParams) UnmarshalJSON(buf []byte) error {
	var raw struct {
		ID             string `json:"id"`
		TaskID         string `json:"taskId"`
		TaskIDAlt      string `json:"task_id"`
		LastEventID    string `json:"lastEventId"`
		LastEventIDAlt string `json:"last_event_id"`
	}

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	p.ID = firstNonEmpty(raw.ID, raw.TaskID, raw.TaskIDAlt)
	p.LastEventID = firstNonEmpty(raw.LastEventID, raw.LastEventIDAlt)
	return nil
}

// PushConfigParams addresses a single push notification config.
type PushConfigParams struct {
	TaskID   string `json:"taskId"`
	ConfigID string `json:"configId,omitempty"`
}

func (p *PushConfigParams) UnmarshalJSON(buf []byte) error {
	var raw struct {
		TaskID      string `json:"taskId"`
		TaskIDAlt   string `json:"task_id"`
		ConfigID    string `json:"configId"`
		ConfigIDAlt string `json:"config_id"`
	}

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	p.TaskID = firstNonEmpty(raw.TaskID, raw.TaskIDAlt)
	p.ConfigID = firstNonEmpty(raw.ConfigID, raw.ConfigIDAlt)
	return nil
}

// SetPushConfigParams registers or replaces a webhook config for a task.
type SetPushConfigParams struct {
	TaskID string                 `json:"taskId"`
	Config PushNotificationConfig `json:"pushNotificationConfig"`
}

func (p *SetPushConfigParams) UnmarshalJSON(buf []byte) error {
	var raw struct {
		TaskID    string                  `json:"taskId"`
		TaskIDAlt string                  `json:"task_id"`
		Config    *PushNotificationConfig `json:"pushNotificationConfig"`
		ConfigAlt *PushNotificationConfig `json:"push_notification_config"`
	}

	if err := json.Unmarshal(buf, &raw); err != nil {
		return err
	}

	p.TaskID = firstNonEmpty(raw.TaskID, raw.TaskIDAlt)
	if raw.Config != nil {
		p.Config = *raw.Config
	} else if raw.ConfigAlt != nil {
		p.Config = *raw.ConfigAlt
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesce[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
