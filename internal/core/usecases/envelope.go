package usecases

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope statuses.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusUnhandled = "unhandled"
)

// Envelope is the reply shape shared by the network transports.
// Payload is set only for StatusOK, Message otherwise.
type Envelope struct {
	ID      string  `json:"id,omitempty"`
	Status  string  `json:"status"`
	Payload *string `json:"payload,omitempty"`
	Message string  `json:"message,omitempty"`
}

func OKEnvelope(payload string) Envelope {
	return Envelope{Status: StatusOK, Payload: &payload}
}

func ErrorEnvelope(message string) Envelope {
	return Envelope{Status: StatusError, Message: message}
}

func UnhandledEnvelope(action string) Envelope {
	return Envelope{Status: StatusUnhandled, Message: fmt.Sprintf("%s: %s", ErrActionNotHandled, action)}
}

// Envelope converts a dispatch result to its wire form.
func (r Result) Envelope() Envelope {
	if r.OK {
		return OKEnvelope(r.Payload)
	}
	return ErrorEnvelope(r.Message)
}

// DecodeArgs parses a JSON argument array. Empty input is an empty list.
func DecodeArgs(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []json.RawMessage{}, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON array: %w", err)
	}
	if args == nil {
		args = []json.RawMessage{}
	}
	return args, nil
}
