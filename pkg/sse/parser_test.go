package sse

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

func TestParserSingleFrame(t *testing.T) {
	parser := NewParser()

	frames := parser.Feed([]byte("id: 0000000000000001\nevent: task_status_update\ndata: {\"id\":\"0000000000000001\"}\n\n"))

	if len(frames) != 1 {
		t.Fatalf("frame count = %d, want 1", len(frames))
	}

	frame := frames[0]

	if frame.ID != "0000000000000001" {
		t.Errorf("id = %q", frame.ID)
	}
	if frame.Event != "task_status_update" {
		t.Errorf("event = %q", frame.Event)
	}
	if len(frame.Data) != 1 {
		t.Errorf("data lines = %d", len(frame.Data))
	}
}

// Frames split across arbitrary chunk boundaries must still parse.
func TestParserIncrementalFeed(t *testing.T) {
	raw := "id: 1\nevent: heartbeat\ndata: {}\n\nid: 2\nevent: heartbeat\ndata: {}\n\n"

	for chunkSize := 1; chunkSize <= len(raw); chunkSize++ {
		parser := NewParser()

		var frames []Frame

		for start := 0; start < len(raw); start += chunkSize {
			end := start + chunkSize
			if end > len(raw) {
				end = len(raw)
			}
			frames = append(frames, parser.Feed([]byte(raw[start:end]))...)
		}

		if len(frames) != 2 {
			t.Fatalf("chunk size %d: frame count = %d, want 2", chunkSize, len(frames))
		}
		if frames[0].ID != "1" || frames[1].ID != "2" {
			t.Fatalf("chunk size %d: ids = %q, %q", chunkSize, frames[0].ID, frames[1].ID)
		}
	}
}

func TestParserIgnoresCommentsAndUnknownFields(t *testing.T) {
	parser := NewParser()

	frames := parser.Feed([]byte(": heartbeat comment\nbogus: field\nid: 1\ndata: {}\n\n"))

	if len(frames) != 1 {
		t.Fatalf("frame count = %d, want 1", len(frames))
	}
	if frames[0].ID != "1" {
		t.Errorf("id = %q", frames[0].ID)
	}
}

func TestParserRetryDirective(t *testing.T) {
	parser := NewParser()

	frames := parser.Feed([]byte("retry: 5000\ndata: {}\n\nretry: bogus\ndata: {}\n\n"))

	if len(frames) != 2 {
		t.Fatalf("frame count = %d", len(frames))
	}
	if frames[0].Retry != 5*time.Second {
		t.Errorf("retry = %v, want 5s", frames[0].Retry)
	}
	if frames[1].Retry != 0 {
		t.Errorf("invalid retry parsed as %v", frames[1].Retry)
	}
}

func TestParserCRLF(t *testing.T) {
	parser := NewParser()

	frames := parser.Feed([]byte("id: 1\r\ndata: {}\r\n\r\n"))

	if len(frames) != 1 || frames[0].ID != "1" {
		t.Fatalf("frames = %+v", frames)
	}
}

func TestDecodeEventRoundTrip(t *testing.T) {
	payload, _ := json.Marshal(a2a.TaskStatusUpdatePayload{
		TaskID: "t1",
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	event := a2a.Event{
		ID:        "000000000000000a",
		Type:      a2a.EventTypeStatusUpdate,
		Data:      payload,
		Timestamp: time.Unix(1000, 0).UTC(),
	}

	envelope, _ := json.Marshal(event)

	frame := Frame{
		ID:    event.ID,
		Event: string(event.Type),
		Data:  []string{string(envelope)},
	}

	decoded, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != event.ID || decoded.Type != event.Type {
		t.Errorf("decoded = %+v", decoded)
	}

	status, err := decoded.StatusPayload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if status.TaskID != "t1" || status.Status.State != a2a.TaskStateWorking {
		t.Errorf("payload = %+v", status)
	}
}

// The transport lines win over the envelope when they disagree, matching
// EventSource behavior.
func TestDecodeEventTransportLinesWin(t *testing.T) {
	frame := Frame{
		ID:    "real-id",
		Event: "heartbeat",
		Data:  []string{`{"id":"stale-id","type":"message"}`},
	}

	decoded, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != "real-id" {
		t.Errorf("id = %q", decoded.ID)
	}
	if decoded.Type != a2a.EventTypeHeartbeat {
		t.Errorf("type = %q", decoded.Type)
	}
}

func TestDecodeEventMultiLineData(t *testing.T) {
	envelope := `{"id":"1",` + "\n" + `"type":"message"}`

	frame := Frame{Data: strings.Split(envelope, "\n")}

	decoded, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != "1" || decoded.Type != a2a.EventTypeMessage {
		t.Errorf("decoded = %+v", decoded)
	}
}
