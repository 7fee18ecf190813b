package event

import (
	"encoding/json"

	"github.com/novatrust/bio-gateway/internal/pubsub"
)

const (
	CaptureSurfaceEvent     = "captureSurfaceEvent"     // CaptureSurfaceEvent notification pushed by the capture surface
	OperationCompletedEvent = "operationCompletedEvent" // OperationCompletedEvent operation reached Completed
	OperationFailedEvent    = "operationFailedEvent"    // OperationFailedEvent operation reached Failed or Expired
)

// CaptureSurface is the raw notification the vendor capture page posts back.
// Only the verifiedPage/success shape acts as a completion signal, everything
// else is logged and ignored by the detector.
type CaptureSurface struct {
	OperationID string `json:"operationID"`
	Type        string `json:"type"`
	PageName    string `json:"pageName"`
	Success     bool   `json:"success"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *CaptureSurface) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *CaptureSurface) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}

// OperationCompleted defines the operationCompleted data
type OperationCompleted struct {
	OperationID string `json:"operationID"`
	UserID      string `json:"userID"`
	Kind        string `json:"kind"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *OperationCompleted) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *OperationCompleted) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}

// OperationFailed defines the operationFailed data
type OperationFailed struct {
	OperationID string   `json:"operationID"`
	UserID      string   `json:"userID"`
	Kind        string   `json:"kind"`
	State       string   `json:"state"`
	Reasons     []string `json:"reasons"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *OperationFailed) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *OperationFailed) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}
