package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one decoded message of the session stream.
type Event struct {
	Stage   Stage
	Tag     string // raw stage tag as sent by the server
	Message string
	Data    json.RawMessage // nil when absent or null
}

// HasData reports whether the event carried a payload.
func (e Event) HasData() bool {
	return len(e.Data) > 0
}

// MalformedEventError reports a message or payload that could not be
// decoded. It never ends the stream.
type MalformedEventError struct {
	Raw    []byte
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event: %s: %v", e.Reason, e.Err)
	}
	return "malformed event: " + e.Reason
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// Decode parses one raw stream message. The object must carry string
// "stage" and "message" fields; "data" is optional.
func Decode(raw []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "not a JSON object", Err: err}
	}
	if fields == nil {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "not a JSON object"}
	}

	var ev Event
	stageRaw, ok := fields["stage"]
	if !ok {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "missing stage"}
	}
	if err := json.Unmarshal(stageRaw, &ev.Tag); err != nil {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "stage is not a string", Err: err}
	}
	if strings.TrimSpace(ev.Tag) == "" {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "empty stage"}
	}

	msgRaw, ok := fields["message"]
	if !ok || isNull(msgRaw) {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "missing message"}
	}
	if err := json.Unmarshal(msgRaw, &ev.Message); err != nil {
		return Event{}, &MalformedEventError{Raw: raw, Reason: "message is not a string", Err: err}
	}

	if data, ok := fields["data"]; ok && !isNull(data) {
		ev.Data = data
	}
	ev.Stage = ParseStage(ev.Tag)
	return ev, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
