package sse

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

/*
Frame is one wire-level Server-Sent Events message: the fields accumulated
between two blank lines.  Data keeps one entry per data: line; consumers join
with newlines per the SSE spec.
*/
type Frame struct {
	ID    string
	Event string
	Data  []string
	Retry time.Duration
}

// Empty reports whether the frame carries nothing worth dispatching.
func (frame Frame) Empty() bool {
	return frame.ID == "" && frame.Event == "" && len(frame.Data) == 0
}

/*
Parser is an incremental SSE frame parser.  Feed it arbitrary chunks; it
returns every frame completed by the chunk and buffers the rest.  Comment
lines (leading colon) are dropped, unknown fields ignored, both per the
EventSource spec.
*/
type Parser struct {
	buf     strings.Builder
	pending Frame
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes a chunk and returns the frames it completed.
func (parser *Parser) Feed(chunk []byte) []Frame {
	parser.buf.Write(chunk)

	text := parser.buf.String()
	parser.buf.Reset()

	var frames []Frame

	for {
		idx := strings.IndexByte(text, '\n')

		if idx < 0 {
			break
		}

		line := strings.TrimSuffix(text[:idx], "\r")
		text = text[idx+1:]

		if line == "" {
			if !parser.pending.Empty() {
				frames = append(frames, parser.pending)
			}
			parser.pending = Frame{}
			continue
		}

		parser.line(line)
	}

	parser.buf.WriteString(text)
	return frames
}

func (parser *Parser) line(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}

	field, value, found := strings.Cut(line, ":")

	if !found {
		field = line
	}

	value = strings.TrimPrefix(value, " ")

	switch field {
	case "id":
		parser.pending.ID = value
	case "event":
		parser.pending.Event = value
	case "data":
		parser.pending.Data = append(parser.pending.Data, value)
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			parser.pending.Retry = time.Duration(ms) * time.Millisecond
		}
	}
}

/*
DecodeEvent rebuilds the queue event from a frame.  The data lines carry the
full event envelope as JSON; the id: and event: lines win over the envelope
when both are present, since the transport lines are what an EventSource
implementation acts on.
*/
func DecodeEvent(frame Frame) (a2a.Event, error) {
	var event a2a.Event

	if len(frame.Data) > 0 {
		data := strings.Join(frame.Data, "\n")

		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return a2a.Event{}, err
		}
	}

	if frame.ID != "" {
		event.ID = frame.ID
	}

	if frame.Event != "" {
		event.Type = a2a.EventType(frame.Event)
	}

	return event, nil
}
