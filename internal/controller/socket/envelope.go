package socket

import (
	"encoding/json"

	"github.com/Freeeeeet/class_scheduler/internal/service"
)

// EventAck answers a command.
const EventAck = "ack"

// Envelope is a server to client frame.
type Envelope struct {
	Event string `json:"event"`
	Ref   string `json:"ref,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Inbound is a client to server frame. Data is decoded per command.
type Inbound struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack answers a command.
type Ack struct {
	Command string            `json:"command"`
	OK      bool              `json:"ok"`
	Reason  service.ErrorKind `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Encode marshals an event frame for broadcast.
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: payload})
}
