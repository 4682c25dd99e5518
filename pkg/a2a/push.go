package a2a

import (
	"github.com/cohesivestack/valgo"
)

/*
PushNotificationConfig registers an outbound webhook for a task.  Configs are
keyed (taskId, id) and live independently of the task: deleting the task does
not cascade-delete its configs.
*/
type PushNotificationConfig struct {
	ID      string            `json:"id"`
	TaskID  string            `json:"taskId"`
	URL     string            `json:"url"`
	Token   string            `json:"token,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Active  bool              `json:"active"`
}

// Validate enforces the http/https scheme requirement on the webhook URL.
func (config *PushNotificationConfig) Validate() error {
	val := valgo.Is(
		valgo.String(config.TaskID, "taskId").Not().Blank(),
		valgo.String(config.URL, "url").Not().Blank(),
	).Is(
		valgo.String(config.URL, "url").Passing(func(url string) bool {
			return hasScheme(url, "http://") || hasScheme(url, "https://")
		}, "must use the http or https scheme"),
	)

	if !val.Valid() {
		return val.Error()
	}

	return nil
}

func hasScheme(url string, scheme string) bool {
	return len(url) > len(scheme) && url[:len(scheme)] == scheme
}
