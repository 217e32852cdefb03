package gateway

import (
	"encoding/json"
	"time"
)

// Role is the capability a connection subscribed with.
type Role string

const (
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
	RoleTeam     Role = "team"
)

// Message types that exist only on the websocket edge, alongside the engine
// event types fanned out verbatim.
const (
	messageTypeSnapshot = "Snapshot"
	messageTypePressAck = "PressAck"
	messageTypeError    = "Error"
)

// InboundMessage is a client-to-server websocket frame.
type InboundMessage struct {
	Type       string `json:"type"`
	QuestionID string `json:"question_id,omitempty"`
}

const (
	inboundTypePress           = "Press"
	inboundTypeRequestSnapshot = "RequestSnapshot"
)

// OutboundMessage is a server-to-client websocket frame. Engine events reuse
// the same envelope shape, so clients switch on `type` uniformly.
type OutboundMessage struct {
	Type      string          `json:"type"`
	GameID    string          `json:"game_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ErrorPayload reports a rejected client request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
