package engine

import (
	"time"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/clock"
	"github.com/techclash/arena/internal/events"
)

// Snapshot is the full current state of a game session, sent to a client that
// (re)subscribes in lieu of event replay. A reconnecting client converges in
// a single round trip instead of waiting for the next tick.
type Snapshot struct {
	GameID           string            `json:"game_id"`
	ClockState       clock.State       `json:"clock_state"`
	RemainingSeconds int               `json:"remaining_seconds"`
	TotalSeconds     int               `json:"total_seconds"`
	Question         *QuestionSnapshot `json:"question,omitempty"`
	TakenAt          time.Time         `json:"taken_at"`
}

// QuestionSnapshot is the active question window as seen at snapshot time,
// including any already-resolved buzzer outcomes.
type QuestionSnapshot struct {
	QuestionID       string                 `json:"question_id"`
	State            arbiter.WindowState    `json:"state"`
	AllocatedSeconds int                    `json:"allocated_seconds"`
	WrongCount       int                    `json:"wrong_count"`
	WinningTeamID    *string                `json:"winning_team_id,omitempty"`
	Attempts         []events.AttemptResult `json:"attempts"`
}

func snapshotSession(s *Session, now time.Time) *Snapshot {
	snap := &Snapshot{
		GameID:           s.GameID,
		ClockState:       s.Clock.State(),
		RemainingSeconds: int(s.Clock.Remaining(now).Seconds()),
		TotalSeconds:     int(s.Clock.Total().Seconds()),
		TakenAt:          now,
	}
	if w := s.Arbiter.Window(); w != nil {
		snap.Question = snapshotWindow(s, w)
	}
	return snap
}

func snapshotWindow(s *Session, w *arbiter.Window) *QuestionSnapshot {
	qs := &QuestionSnapshot{
		QuestionID:       w.QuestionID.String(),
		State:            w.State,
		AllocatedSeconds: int(w.Allocated.Seconds()),
		WrongCount:       w.WrongCount,
		Attempts:         attemptResults(s, w),
	}
	if w.WinningTeamID != nil {
		id := w.WinningTeamID.String()
		qs.WinningTeamID = &id
	}
	return qs
}

func attemptResults(s *Session, w *arbiter.Window) []events.AttemptResult {
	results := make([]events.AttemptResult, 0, len(w.Attempts))
	for _, att := range w.Attempts {
		results = append(results, events.AttemptResult{
			TeamID:     att.TeamID.String(),
			TeamName:   s.TeamName(att.TeamID),
			Rank:       att.Rank,
			Verdict:    string(att.Verdict),
			ReceivedAt: att.ReceivedAt,
		})
	}
	return results
}
