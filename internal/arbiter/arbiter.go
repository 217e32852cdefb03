package arbiter

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrWindowOpen is returned when opening a window while another is open.
	ErrWindowOpen = errors.New("question window already open")
	// ErrNoWindow is returned when the referenced question window does not exist.
	ErrNoWindow = errors.New("no such question window")
	// ErrWindowClosed is returned for presses or verdicts against a Locked or
	// Resolved window.
	ErrWindowClosed = errors.New("question window closed")
	// ErrDuplicateAttempt is returned when a team buzzes twice in one window.
	ErrDuplicateAttempt = errors.New("duplicate attempt")
	// ErrUnknownTeam is returned when the team is not on the roster.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrNotPending is returned when resolving an attempt that is not the
	// currently resolvable one.
	ErrNotPending = errors.New("attempt not pending")
)

// MaxStrikes is the number of incorrect verdicts that lock a question.
const MaxStrikes = 2

// Verdict is the operator's ruling on a buzzer attempt.
type Verdict string

const (
	VerdictPending   Verdict = "PENDING"
	VerdictCorrect   Verdict = "CORRECT"
	VerdictIncorrect Verdict = "INCORRECT"
)

// WindowState is the lifecycle state of a question window.
type WindowState string

const (
	WindowOpen     WindowState = "OPEN"
	WindowLocked   WindowState = "LOCKED"
	WindowResolved WindowState = "RESOLVED"
)

// Attempt is one team's buzz within a question window, in serving order.
type Attempt struct {
	TeamID     uuid.UUID
	Rank       int
	ReceivedAt time.Time
	Verdict    Verdict
}

// Window is the arbitration scope for a single buzzer question.
type Window struct {
	QuestionID    uuid.UUID
	OpenedAt      time.Time
	Allocated     time.Duration
	State         WindowState
	Attempts      []Attempt
	WrongCount    int
	WinningTeamID *uuid.UUID
}

// Arbiter resolves concurrent buzzer presses for one game session into a
// strict serving order and applies the two-strike lockout policy. It is not
// safe for concurrent use; the engine's command loop serializes access.
type Arbiter struct {
	teams  map[uuid.UUID]bool
	window *Window
}

// New creates an arbiter for the given roster.
func New(teamIDs []uuid.UUID) *Arbiter {
	teams := make(map[uuid.UUID]bool, len(teamIDs))
	for _, id := range teamIDs {
		teams[id] = true
	}
	return &Arbiter{teams: teams}
}

// OpenWindow creates a new question window in Open state. Only one window may
// be open at a time; the previous one must be closed first.
func (a *Arbiter) OpenWindow(questionID uuid.UUID, allocated time.Duration, openedAt time.Time) (*Window, error) {
	if a.window != nil && a.window.State == WindowOpen {
		return nil, fmt.Errorf("question %s: %w", a.window.QuestionID, ErrWindowOpen)
	}
	a.window = &Window{
		QuestionID: questionID,
		OpenedAt:   openedAt,
		Allocated:  allocated,
		State:      WindowOpen,
	}
	return a.window, nil
}

// Window returns the current question window, or nil if none was opened.
func (a *Arbiter) Window() *Window {
	return a.window
}

// CloseWindow discards the current window when the round advances or stops.
func (a *Arbiter) CloseWindow() *Window {
	w := a.window
	a.window = nil
	return w
}

// Press records a buzz for teamID and returns its rank in the serving order.
// receivedAt must be the server receipt time; callers enqueue presses FIFO so
// same-tick arrivals keep their inbound order and no team is systematically
// favored.
func (a *Arbiter) Press(questionID, teamID uuid.UUID, receivedAt time.Time) (int, error) {
	w, err := a.lookup(questionID)
	if err != nil {
		return 0, err
	}
	if w.State != WindowOpen {
		return 0, fmt.Errorf("question %s is %s: %w", questionID, w.State, ErrWindowClosed)
	}
	if !a.teams[teamID] {
		return 0, fmt.Errorf("team %s: %w", teamID, ErrUnknownTeam)
	}
	for _, att := range w.Attempts {
		if att.TeamID == teamID {
			return 0, fmt.Errorf("team %s already buzzed: %w", teamID, ErrDuplicateAttempt)
		}
	}
	rank := len(w.Attempts) + 1
	w.Attempts = append(w.Attempts, Attempt{
		TeamID:     teamID,
		Rank:       rank,
		ReceivedAt: receivedAt,
		Verdict:    VerdictPending,
	})
	return rank, nil
}

// Resolve applies the operator's verdict to teamID's attempt. Only the
// earliest pending attempt is resolvable, so two teams can never both be
// marked correct. A Correct verdict resolves the window with a winner; the
// second Incorrect verdict locks it with none.
func (a *Arbiter) Resolve(questionID, teamID uuid.UUID, verdict Verdict) (*Window, error) {
	w, err := a.lookup(questionID)
	if err != nil {
		return nil, err
	}
	if w.State != WindowOpen {
		return nil, fmt.Errorf("question %s is %s: %w", questionID, w.State, ErrWindowClosed)
	}
	if !a.teams[teamID] {
		return nil, fmt.Errorf("team %s: %w", teamID, ErrUnknownTeam)
	}
	if verdict != VerdictCorrect && verdict != VerdictIncorrect {
		return nil, fmt.Errorf("invalid verdict %q", verdict)
	}

	idx := a.firstPending(w)
	if idx < 0 || w.Attempts[idx].TeamID != teamID {
		return nil, fmt.Errorf("team %s: %w", teamID, ErrNotPending)
	}

	w.Attempts[idx].Verdict = verdict
	switch verdict {
	case VerdictCorrect:
		winner := teamID
		w.WinningTeamID = &winner
		w.State = WindowResolved
	case VerdictIncorrect:
		w.WrongCount++
		if w.WrongCount >= MaxStrikes {
			w.State = WindowLocked
		}
	}
	return w, nil
}

func (a *Arbiter) lookup(questionID uuid.UUID) (*Window, error) {
	if a.window == nil || a.window.QuestionID != questionID {
		return nil, fmt.Errorf("question %s: %w", questionID, ErrNoWindow)
	}
	return a.window, nil
}

func (a *Arbiter) firstPending(w *Window) int {
	for i, att := range w.Attempts {
		if att.Verdict == VerdictPending {
			return i
		}
	}
	return -1
}
