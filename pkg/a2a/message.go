package a2a

import (
	"fmt"
	"strings"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

/*
Message represents all non-artifact communication between client and agent.
Messages are immutable once created; the task manager appends copies to a
task's history and never mutates them afterwards.
*/
type Message struct {
	MessageID string         `json:"messageId"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role Role, text string) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{NewTextPart(text)},
	}
}

func NewFileMessage(role Role, file *FileContent) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{{Kind: PartKindFile, File: file}},
	}
}

func NewDataMessage(role Role, data map[string]any) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{NewDataPart(data)},
	}
}

func (msg *Message) Validate() error {
	if msg.Role != RoleUser && msg.Role != RoleAgent {
		return fmt.Errorf("message role must be user or agent, got %q", msg.Role)
	}

	if len(msg.Parts) == 0 {
		return fmt.Errorf("message must carry at least one part")
	}

	for i := range msg.Parts {
		if err := msg.Parts[i].Validate(); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}

	return nil
}

// String concatenates the text content of all parts, which is what most
// log lines and terminal renderings want.
func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String()
}
