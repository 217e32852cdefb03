package events

import (
	"time"
)

// Payloads carried inside the event envelope. Shapes are the wire contract
// consumed by the gateway and its websocket clients.

// RoundStartedPayload announces a round start with its time allocation.
type RoundStartedPayload struct {
	GameID           string    `json:"game_id"`
	QuestionID       string    `json:"question_id"`
	AllocatedSeconds int       `json:"allocated_seconds"`
	StartedAt        time.Time `json:"started_at"`
}

// RoundPausedPayload carries the remaining time frozen at pause.
type RoundPausedPayload struct {
	GameID           string    `json:"game_id"`
	RemainingSeconds int       `json:"remaining_seconds"`
	PausedAt         time.Time `json:"paused_at"`
}

// RoundResumedPayload announces a resume with the re-anchored remaining time.
type RoundResumedPayload struct {
	GameID           string    `json:"game_id"`
	RemainingSeconds int       `json:"remaining_seconds"`
	ResumedAt        time.Time `json:"resumed_at"`
}

// RoundStoppedPayload announces an operator stop.
type RoundStoppedPayload struct {
	GameID    string    `json:"game_id"`
	StoppedAt time.Time `json:"stopped_at"`
}

// TimerUpdatePayload is the periodic tick broadcast while the clock runs.
// A dropped update is superseded by the next one, so it needs no retry.
type TimerUpdatePayload struct {
	GameID           string    `json:"game_id"`
	RemainingSeconds int       `json:"remaining_seconds"`
	TickedAt         time.Time `json:"ticked_at"`
}

// TimerExpiredPayload fires exactly once when the countdown reaches zero.
type TimerExpiredPayload struct {
	GameID    string    `json:"game_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// QuestionOpenedPayload announces a new buzzer window.
type QuestionOpenedPayload struct {
	GameID           string    `json:"game_id"`
	QuestionID       string    `json:"question_id"`
	AllocatedSeconds int       `json:"allocated_seconds"`
	OpenedAt         time.Time `json:"opened_at"`
}

// PressRegisteredPayload acknowledges a buzz with its serving rank.
type PressRegisteredPayload struct {
	QuestionID string    `json:"question_id"`
	TeamID     string    `json:"team_id"`
	TeamName   string    `json:"team_name,omitempty"`
	Rank       int       `json:"rank"`
	ReceivedAt time.Time `json:"received_at"`
}

// AttemptResult is one team's final standing within a question window.
type AttemptResult struct {
	TeamID     string    `json:"team_id"`
	TeamName   string    `json:"team_name,omitempty"`
	Rank       int       `json:"rank"`
	Verdict    string    `json:"verdict"`
	ReceivedAt time.Time `json:"received_at"`
}

// QuestionResolvedPayload is the single outcome of a question window:
// a winning team, or none when two strikes locked it.
type QuestionResolvedPayload struct {
	QuestionID    string          `json:"question_id"`
	WinningTeamID *string         `json:"winning_team_id"`
	Attempts      []AttemptResult `json:"attempts"`
	ResolvedAt    time.Time       `json:"resolved_at"`
}
