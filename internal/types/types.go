package types

import "github.com/collabcanvas/backend/internal/canvas"

// ClientMessage is the flat inbound frame; Type selects which of the optional
// fields are meaningful. See pkg/types for the event catalogue.
type ClientMessage struct {
	Type           string            `json:"type"`
	RoomCode       string            `json:"roomCode,omitempty"`
	RoomName       string            `json:"roomName,omitempty"`
	Component      *canvas.Component `json:"component,omitempty"`
	ParentID       string            `json:"parentId,omitempty"`
	ChildComponent *canvas.Component `json:"childComponent,omitempty"`
	ComponentID    string            `json:"componentId,omitempty"`
	NewPosition    *canvas.Position  `json:"newPosition,omitempty"`
	NewSize        *canvas.Size      `json:"newSize,omitempty"`
	StyleUpdates   map[string]string `json:"styleUpdates,omitempty"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Event is an outbound frame.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Outbound payload shapes.

type ErrorPayload struct {
	Message string `json:"message"`
}

type UserPayload struct {
	Email string `json:"email"`
}

type RoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

type LeftRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type UserStatus struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	IsConnected bool   `json:"isConnected"`
}

type ChildAddedPayload struct {
	ParentID       string            `json:"parentId"`
	ChildComponent *canvas.Component `json:"childComponent"`
}

type RemovedPayload struct {
	ComponentID string `json:"componentId"`
}

type MovedPayload struct {
	ComponentID string          `json:"componentId"`
	NewPosition canvas.Position `json:"newPosition"`
}

type TransformedPayload struct {
	ComponentID string      `json:"componentId"`
	NewSize     canvas.Size `json:"newSize"`
}

type StyleUpdatedPayload struct {
	ComponentID  string            `json:"componentId"`
	StyleUpdates map[string]string `json:"styleUpdates"`
}

type PropertiesUpdatedPayload struct {
	ComponentID string            `json:"componentId"`
	Updates     map[string]string `json:"updates"`
}

func ErrorEvent(message string) Event {
	return Event{Type: "error", Payload: ErrorPayload{Message: message}}
}
