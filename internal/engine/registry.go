package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/clock"
)

var (
	// ErrUnknownGame is returned for a game ID outside the configured catalog.
	ErrUnknownGame = errors.New("unknown game")
	// ErrAlreadyActive is returned when activating a game whose clock is
	// Running or Paused.
	ErrAlreadyActive = errors.New("game already active")
	// ErrNotActive is returned for operations on a game with no live session.
	ErrNotActive = errors.New("game not active")
)

// Team is the roster entry a session carries for validation and display.
type Team struct {
	ID      uuid.UUID
	Name    string
	LogoURL *string
}

// Session holds the authoritative state for one active game: its countdown
// clock and its buzzer arbiter. Owned by the engine's command loop.
type Session struct {
	GameID  string
	Clock   *clock.Clock
	Arbiter *arbiter.Arbiter
	Teams   map[uuid.UUID]Team
}

// TeamName resolves a roster display name, empty if unknown.
func (s *Session) TeamName(id uuid.UUID) string {
	return s.Teams[id].Name
}

// Registry maps game IDs to their live sessions and enforces one active
// clock per game type. Not safe for concurrent use; the engine's command
// loop serializes access.
type Registry struct {
	catalog  map[string]bool
	sessions map[string]*Session
}

// NewRegistry creates a registry for the configured game catalog.
func NewRegistry(gameIDs []string) *Registry {
	catalog := make(map[string]bool, len(gameIDs))
	for _, id := range gameIDs {
		catalog[id] = true
	}
	return &Registry{
		catalog:  catalog,
		sessions: make(map[string]*Session),
	}
}

// Activate creates a fresh session for gameID with the given roster. It fails
// with ErrAlreadyActive while a previous session's clock is Running or Paused.
func (r *Registry) Activate(gameID string, teams []Team) (*Session, error) {
	if !r.catalog[gameID] {
		return nil, fmt.Errorf("game %q: %w", gameID, ErrUnknownGame)
	}
	if existing, ok := r.sessions[gameID]; ok {
		switch existing.Clock.State() {
		case clock.StateRunning, clock.StatePaused:
			return nil, fmt.Errorf("game %q: %w", gameID, ErrAlreadyActive)
		}
	}

	roster := make(map[uuid.UUID]Team, len(teams))
	teamIDs := make([]uuid.UUID, 0, len(teams))
	for _, t := range teams {
		roster[t.ID] = t
		teamIDs = append(teamIDs, t.ID)
	}

	session := &Session{
		GameID:  gameID,
		Clock:   clock.New(),
		Arbiter: arbiter.New(teamIDs),
		Teams:   roster,
	}
	r.sessions[gameID] = session
	return session, nil
}

// Get returns the live session for gameID.
func (r *Registry) Get(gameID string) (*Session, error) {
	if !r.catalog[gameID] {
		return nil, fmt.Errorf("game %q: %w", gameID, ErrUnknownGame)
	}
	session, ok := r.sessions[gameID]
	if !ok {
		return nil, fmt.Errorf("game %q: %w", gameID, ErrNotActive)
	}
	return session, nil
}

// Deactivate drops the session for gameID, freeing the game type for a new
// activation.
func (r *Registry) Deactivate(gameID string) {
	delete(r.sessions, gameID)
}

// Sessions returns all live sessions, in no particular order.
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
