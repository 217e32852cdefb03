package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type identifies an engine event on the wire.
type Type string

const (
	TypeRoundStarted     Type = "RoundStarted"
	TypeRoundPaused      Type = "RoundPaused"
	TypeRoundResumed     Type = "RoundResumed"
	TypeRoundStopped     Type = "RoundStopped"
	TypeTimerUpdate      Type = "TimerUpdate"
	TypeTimerExpired     Type = "TimerExpired"
	TypeQuestionOpened   Type = "QuestionOpened"
	TypePressRegistered  Type = "PressRegistered"
	TypeQuestionResolved Type = "QuestionResolved"
)

// Event is the envelope published to the bus and fanned out to clients.
type Event struct {
	ID        uuid.UUID       `json:"event_id"`
	GameID    string          `json:"game_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher delivers engine events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
