package collab

import (
	"encoding/json"

	"github.com/rayscope/rayscope/backend-go/internal/auth"
	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	ViewerID  string          `json:"viewerId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	// Client → server
	TypeInput          = "input"
	TypeControlLayer   = "control.layer"
	TypeControlOpacity = "control.opacity"
	TypeControlZoom    = "control.zoom"
	TypeResize         = "resize"
	TypePresenceUpdate = "presence.update"

	// Server → client
	TypeWelcome       = "welcome"
	TypeFrame         = "frame"
	TypeZoom          = "zoom"
	TypeInfo          = "info"
	TypePresenceState = "presence.state"
	TypePresenceJoin  = "presence.join"
	TypePresenceLeave = "presence.leave"
	TypeError         = "error"
)

type LayerPayload struct {
	Layer   string `json:"layer"`
	Enabled bool   `json:"enabled"`
}

type ValuePayload struct {
	Value float64 `json:"value"`
}

type ResizePayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ZoomPayload struct {
	Scale float64 `json:"scale"`
}

type WelcomePayload struct {
	SessionID string               `json:"sessionId"`
	ClientID  string               `json:"clientId"`
	Viewer    auth.Viewer          `json:"viewer"`
	Viewport  engine.ViewportState `json:"viewport"`
	Options   engine.RenderOptions `json:"options"`
}

type InfoPayload struct {
	Ready  bool         `json:"ready"`
	Error  string       `json:"error,omitempty"`
	Panels panel.Panels `json:"panels"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// PresencePayload carries a viewer's cursor. Clients send it in canvas
// pixels; the session converts it to world coordinates before relaying, so
// other viewers can place it under their own pan and zoom.
type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PresenceStatePayload maps client IDs to their last known presence.
type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	ViewerID    string `json:"viewerId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
	ViewerID string `json:"viewerId"`
}

func newMessage(typ string, payload interface{}) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return &Message{Type: typ, Payload: data}
}
