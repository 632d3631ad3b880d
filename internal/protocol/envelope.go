package protocol

import "encoding/json"

// Envelope is one inbound signaling message: a tag plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Result is the reply for request/response events. Fire-and-forget broadcasts
// reuse the same shape without a status.
type Result struct {
	Event   string `json:"event"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(event, message string, data any) Result {
	return Result{Event: event, Status: StatusSuccess, Message: message, Data: data}
}

func Failure(event, message string) Result {
	return Result{Event: event, Status: StatusFailure, Message: message}
}

// Push is an outbound server-initiated message (broadcast or targeted).
type Push struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func (p Push) Marshal() ([]byte, error) { return json.Marshal(p) }
