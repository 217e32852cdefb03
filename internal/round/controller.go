package round

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/engine"
	"github.com/techclash/arena/internal/roster"
	"github.com/techclash/arena/internal/scoring"
)

// ErrNoTeams is returned when a round is started for a game with an empty roster.
var ErrNoTeams = errors.New("no teams enrolled for game")

// EngineAPI is what the controller needs from the live engine.
type EngineAPI interface {
	StartRound(ctx context.Context, gameID string, teams []engine.Team, questionID uuid.UUID, allocated time.Duration) error
	NextQuestion(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration) error
	Pause(ctx context.Context, gameID string) error
	Resume(ctx context.Context, gameID string) error
	Stop(ctx context.Context, gameID string) error
	Resolve(ctx context.Context, gameID string, questionID, teamID uuid.UUID, verdict arbiter.Verdict) (*engine.Outcome, error)
	Snapshot(ctx context.Context, gameID string) (*engine.Snapshot, error)
	ActiveGames(ctx context.Context) ([]string, error)
}

// RosterStore is what the controller needs from the roster repository.
type RosterStore interface {
	TeamsForGame(ctx context.Context, gameID string) ([]roster.Team, error)
}

// ScoringStore is what the controller needs from the scoring repository.
type ScoringStore interface {
	RecordTimeAllocation(ctx context.Context, req scoring.RecordTimeAllocationRequest) error
	RecordAttempt(ctx context.Context, req scoring.RecordAttemptRequest) error
	RecordOutcome(ctx context.Context, req scoring.RecordOutcomeRequest) error
	StandingsForGame(ctx context.Context, gameID string) ([]scoring.TeamStanding, error)
}

// Controller drives rounds end to end: it loads rosters, commands the engine,
// and persists verdicts once a question window reaches a final state.
type Controller struct {
	engine  EngineAPI
	rosters RosterStore
	scores  ScoringStore
	catalog []string
}

// NewController creates a controller over the configured game catalog.
func NewController(eng EngineAPI, rosters RosterStore, scores ScoringStore, catalog []string) *Controller {
	return &Controller{
		engine:  eng,
		rosters: rosters,
		scores:  scores,
		catalog: catalog,
	}
}

// Catalog returns the configured game types.
func (c *Controller) Catalog() []string {
	return c.catalog
}

// ActiveGames returns the game types with a live round.
func (c *Controller) ActiveGames(ctx context.Context) ([]string, error) {
	return c.engine.ActiveGames(ctx)
}

// StartRound loads the game's roster, activates a session with a fresh clock
// and buzzer window, and records the question's time allocation.
func (c *Controller) StartRound(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration) error {
	teams, err := c.rosters.TeamsForGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if len(teams) == 0 {
		return fmt.Errorf("game %s: %w", gameID, ErrNoTeams)
	}

	if err := c.engine.StartRound(ctx, gameID, engineTeams(teams), questionID, allocated); err != nil {
		return err
	}

	c.recordAllocation(ctx, gameID, questionID, allocated)
	return nil
}

// NextQuestion advances the live round to a new question with a fresh clock
// and buzzer window.
func (c *Controller) NextQuestion(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration) error {
	if err := c.engine.NextQuestion(ctx, gameID, questionID, allocated); err != nil {
		return err
	}

	c.recordAllocation(ctx, gameID, questionID, allocated)
	return nil
}

func (c *Controller) Pause(ctx context.Context, gameID string) error {
	return c.engine.Pause(ctx, gameID)
}

func (c *Controller) Resume(ctx context.Context, gameID string) error {
	return c.engine.Resume(ctx, gameID)
}

func (c *Controller) Stop(ctx context.Context, gameID string) error {
	return c.engine.Stop(ctx, gameID)
}

func (c *Controller) Snapshot(ctx context.Context, gameID string) (*engine.Snapshot, error) {
	return c.engine.Snapshot(ctx, gameID)
}

func (c *Controller) Standings(ctx context.Context, gameID string) ([]scoring.TeamStanding, error) {
	return c.scores.StandingsForGame(ctx, gameID)
}

// Resolve applies an operator verdict. Once the window reaches a final state,
// every attempt and the outcome are persisted for standings.
func (c *Controller) Resolve(ctx context.Context, gameID string, questionID, teamID uuid.UUID, verdict arbiter.Verdict) (*engine.Outcome, error) {
	outcome, err := c.engine.Resolve(ctx, gameID, questionID, teamID, verdict)
	if err != nil {
		return nil, err
	}

	if outcome.Final {
		c.persistOutcome(ctx, outcome)
	}
	return outcome, nil
}

// persistOutcome writes a final window to the scoring store. Persistence
// failures are logged, not returned: the live round must not stall on the
// database.
func (c *Controller) persistOutcome(ctx context.Context, outcome *engine.Outcome) {
	for _, attempt := range outcome.Attempts {
		req := scoring.RecordAttemptRequest{
			GameID:         outcome.GameID,
			QuestionID:     outcome.QuestionID,
			TeamID:         attempt.TeamID,
			Rank:           attempt.Rank,
			Verdict:        string(attempt.Verdict),
			ReceivedAt:     attempt.ReceivedAt,
			ElapsedSeconds: attempt.ReceivedAt.Sub(outcome.OpenedAt).Seconds(),
		}
		if err := c.scores.RecordAttempt(ctx, req); err != nil {
			log.Error().
				Err(err).
				Str("game_id", outcome.GameID).
				Str("question_id", outcome.QuestionID.String()).
				Str("team_id", attempt.TeamID.String()).
				Msg("failed to record attempt")
		}
	}

	if err := c.scores.RecordOutcome(ctx, scoring.RecordOutcomeRequest{
		GameID:        outcome.GameID,
		QuestionID:    outcome.QuestionID,
		WinningTeamID: outcome.WinningTeamID,
		ResolvedAt:    outcome.ResolvedAt,
	}); err != nil {
		log.Error().
			Err(err).
			Str("game_id", outcome.GameID).
			Str("question_id", outcome.QuestionID.String()).
			Msg("failed to record outcome")
	}
}

func (c *Controller) recordAllocation(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration) {
	err := c.scores.RecordTimeAllocation(ctx, scoring.RecordTimeAllocationRequest{
		GameID:           gameID,
		QuestionID:       questionID,
		AllocatedSeconds: int(allocated.Seconds()),
		StartedAt:        time.Now(),
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID).
			Str("question_id", questionID.String()).
			Msg("failed to record time allocation")
	}
}

func engineTeams(teams []roster.Team) []engine.Team {
	out := make([]engine.Team, 0, len(teams))
	for _, t := range teams {
		out = append(out, engine.Team{
			ID:      t.ID,
			Name:    t.Name,
			LogoURL: t.LogoURL,
		})
	}
	return out
}
