package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/clock"
	"github.com/techclash/arena/internal/events"
)

// ErrRoundNotRunning is returned for presses while the round clock is paused,
// stopped or expired. A press acknowledged after a pause would let a buzz
// sneak past the freeze, so the command order decides.
var ErrRoundNotRunning = errors.New("round not running")

// PressAck acknowledges an accepted buzz with its serving rank.
type PressAck struct {
	Rank       int       `json:"rank"`
	ReceivedAt time.Time `json:"received_at"`
}

// Outcome reports the effect of a verdict. Final is set once the window is
// Resolved or Locked, which is the controller's cue to persist it.
type Outcome struct {
	GameID        string
	QuestionID    uuid.UUID
	WindowState   arbiter.WindowState
	Final         bool
	WinningTeamID *uuid.UUID
	Attempts      []arbiter.Attempt
	OpenedAt      time.Time
	ResolvedAt    time.Time
}

// Engine owns all session state and mutates it from a single command loop.
// Network handlers and the tick schedule communicate with it only by
// enqueuing commands, so the state machines are single-threaded in effect.
type Engine struct {
	registry     *Registry
	publisher    events.Publisher
	clock        clockwork.Clock
	tickInterval time.Duration
	cmdCh        chan command
}

type command func(ctx context.Context, now time.Time)

// NewEngine creates an engine over the given registry and event publisher.
// Pass clockwork.NewRealClock() in production; tests use a FakeClock.
func NewEngine(registry *Registry, publisher events.Publisher, clk clockwork.Clock, tickInterval time.Duration) *Engine {
	return &Engine{
		registry:     registry,
		publisher:    publisher,
		clock:        clk,
		tickInterval: tickInterval,
		cmdCh:        make(chan command, 256),
	}
}

// Run processes commands and tick broadcasts until ctx is cancelled. All
// state mutation happens on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("tick_interval", e.tickInterval).Msg("engine started")

	ticker := e.clock.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine shutting down")
			return nil
		case cmd := <-e.cmdCh:
			cmd(ctx, e.clock.Now())
		case <-ticker.Chan():
			e.handleTick(ctx, e.clock.Now())
		}
	}
}

// do enqueues fn on the command stream and waits for its result.
func (e *Engine) do(ctx context.Context, fn func(ctx context.Context, now time.Time) error) error {
	errCh := make(chan error, 1)
	select {
	case e.cmdCh <- func(cmdCtx context.Context, now time.Time) { errCh <- fn(cmdCtx, now) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartRound activates gameID with the given roster, starts its countdown and
// opens the first question window.
func (e *Engine) StartRound(ctx context.Context, gameID string, teams []Team, questionID uuid.UUID, allocated time.Duration) error {
	return e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Activate(gameID, teams)
		if err != nil {
			return err
		}
		if err := session.Clock.Start(allocated, now); err != nil {
			return err
		}
		if _, err := session.Arbiter.OpenWindow(questionID, allocated, now); err != nil {
			return err
		}

		log.Info().
			Str("game_id", gameID).
			Str("question_id", questionID.String()).
			Int("allocated_sec", int(allocated.Seconds())).
			Msg("round started")

		e.publish(cmdCtx, gameID, events.TypeRoundStarted, events.RoundStartedPayload{
			GameID:           gameID,
			QuestionID:       questionID.String(),
			AllocatedSeconds: int(allocated.Seconds()),
			StartedAt:        now,
		})
		e.publishQuestionOpened(cmdCtx, gameID, questionID, allocated, now)
		return nil
	})
}

// NextQuestion advances gameID to a new question window with a fresh
// countdown. The previous window is discarded; its outcome, if final, was
// already persisted on resolve.
func (e *Engine) NextQuestion(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration) error {
	return e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		session.Arbiter.CloseWindow()
		session.Clock.Stop()
		if err := session.Clock.Start(allocated, now); err != nil {
			return err
		}
		if _, err := session.Arbiter.OpenWindow(questionID, allocated, now); err != nil {
			return err
		}

		log.Info().
			Str("game_id", gameID).
			Str("question_id", questionID.String()).
			Msg("advanced to next question")

		e.publish(cmdCtx, gameID, events.TypeRoundStarted, events.RoundStartedPayload{
			GameID:           gameID,
			QuestionID:       questionID.String(),
			AllocatedSeconds: int(allocated.Seconds()),
			StartedAt:        now,
		})
		e.publishQuestionOpened(cmdCtx, gameID, questionID, allocated, now)
		return nil
	})
}

// Pause freezes gameID's countdown. Presses enqueued ahead of the pause still
// count; presses behind it are rejected.
func (e *Engine) Pause(ctx context.Context, gameID string) error {
	return e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		if err := session.Clock.Pause(now); err != nil {
			return err
		}
		remaining := session.Clock.Remaining(now)

		log.Info().
			Str("game_id", gameID).
			Int("remaining_sec", int(remaining.Seconds())).
			Msg("round paused")

		e.publish(cmdCtx, gameID, events.TypeRoundPaused, events.RoundPausedPayload{
			GameID:           gameID,
			RemainingSeconds: int(remaining.Seconds()),
			PausedAt:         now,
		})
		return nil
	})
}

// Resume re-anchors gameID's countdown against its frozen remaining time.
func (e *Engine) Resume(ctx context.Context, gameID string) error {
	return e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		if err := session.Clock.Resume(now); err != nil {
			return err
		}
		remaining := session.Clock.Remaining(now)

		log.Info().
			Str("game_id", gameID).
			Int("remaining_sec", int(remaining.Seconds())).
			Msg("round resumed")

		e.publish(cmdCtx, gameID, events.TypeRoundResumed, events.RoundResumedPayload{
			GameID:           gameID,
			RemainingSeconds: int(remaining.Seconds()),
			ResumedAt:        now,
		})
		return nil
	})
}

// Stop ends gameID's round: clock to Idle, window discarded, session
// deactivated so the game type can be activated again.
func (e *Engine) Stop(ctx context.Context, gameID string) error {
	return e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		session.Clock.Stop()
		session.Arbiter.CloseWindow()
		e.registry.Deactivate(gameID)

		log.Info().Str("game_id", gameID).Msg("round stopped")

		e.publish(cmdCtx, gameID, events.TypeRoundStopped, events.RoundStoppedPayload{
			GameID:    gameID,
			StoppedAt: now,
		})
		return nil
	})
}

// Press records a buzz for teamID. The server receipt time is stamped here,
// before the command is enqueued, so channel FIFO order breaks same-tick ties
// without ever consulting the team identifier.
func (e *Engine) Press(ctx context.Context, gameID string, questionID, teamID uuid.UUID) (PressAck, error) {
	receivedAt := e.clock.Now()
	var ack PressAck
	err := e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		if session.Clock.State() != clock.StateRunning {
			return fmt.Errorf("game %q: %w", gameID, ErrRoundNotRunning)
		}
		rank, err := session.Arbiter.Press(questionID, teamID, receivedAt)
		if err != nil {
			return err
		}
		ack = PressAck{Rank: rank, ReceivedAt: receivedAt}

		log.Info().
			Str("game_id", gameID).
			Str("question_id", questionID.String()).
			Str("team_id", teamID.String()).
			Int("rank", rank).
			Msg("press registered")

		e.publish(cmdCtx, gameID, events.TypePressRegistered, events.PressRegisteredPayload{
			QuestionID: questionID.String(),
			TeamID:     teamID.String(),
			TeamName:   session.TeamName(teamID),
			Rank:       rank,
			ReceivedAt: receivedAt,
		})
		return nil
	})
	return ack, err
}

// Resolve applies the operator's verdict to teamID's pending attempt and
// reports whether the window reached a final state.
func (e *Engine) Resolve(ctx context.Context, gameID string, questionID, teamID uuid.UUID, verdict arbiter.Verdict) (*Outcome, error) {
	var outcome *Outcome
	err := e.do(ctx, func(cmdCtx context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		w, err := session.Arbiter.Resolve(questionID, teamID, verdict)
		if err != nil {
			return err
		}

		outcome = &Outcome{
			GameID:        gameID,
			QuestionID:    w.QuestionID,
			WindowState:   w.State,
			Final:         w.State != arbiter.WindowOpen,
			WinningTeamID: w.WinningTeamID,
			Attempts:      append([]arbiter.Attempt(nil), w.Attempts...),
			OpenedAt:      w.OpenedAt,
			ResolvedAt:    now,
		}

		log.Info().
			Str("game_id", gameID).
			Str("question_id", questionID.String()).
			Str("team_id", teamID.String()).
			Str("verdict", string(verdict)).
			Str("window_state", string(w.State)).
			Msg("attempt resolved")

		if outcome.Final {
			payload := events.QuestionResolvedPayload{
				QuestionID: w.QuestionID.String(),
				Attempts:   attemptResults(session, w),
				ResolvedAt: now,
			}
			if w.WinningTeamID != nil {
				id := w.WinningTeamID.String()
				payload.WinningTeamID = &id
			}
			e.publish(cmdCtx, gameID, events.TypeQuestionResolved, payload)
		}
		return nil
	})
	return outcome, err
}

// Snapshot returns the full current state for gameID, the payload sent to a
// (re)subscribing client.
func (e *Engine) Snapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	var snap *Snapshot
	err := e.do(ctx, func(_ context.Context, now time.Time) error {
		session, err := e.registry.Get(gameID)
		if err != nil {
			return err
		}
		snap = snapshotSession(session, now)
		return nil
	})
	return snap, err
}

// ActiveGames lists game IDs with a live session.
func (e *Engine) ActiveGames(ctx context.Context) ([]string, error) {
	var games []string
	err := e.do(ctx, func(_ context.Context, _ time.Time) error {
		for _, s := range e.registry.Sessions() {
			games = append(games, s.GameID)
		}
		return nil
	})
	return games, err
}

func (e *Engine) handleTick(ctx context.Context, now time.Time) {
	for _, session := range e.registry.Sessions() {
		if session.Clock.State() != clock.StateRunning {
			continue
		}
		remaining, expired := session.Clock.Tick(now)
		if expired {
			log.Info().Str("game_id", session.GameID).Msg("timer expired")
			e.publish(ctx, session.GameID, events.TypeTimerExpired, events.TimerExpiredPayload{
				GameID:    session.GameID,
				ExpiredAt: now,
			})
			continue
		}
		e.publish(ctx, session.GameID, events.TypeTimerUpdate, events.TimerUpdatePayload{
			GameID:           session.GameID,
			RemainingSeconds: int(remaining.Seconds()),
			TickedAt:         now,
		})
	}
}

func (e *Engine) publishQuestionOpened(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration, now time.Time) {
	e.publish(ctx, gameID, events.TypeQuestionOpened, events.QuestionOpenedPayload{
		GameID:           gameID,
		QuestionID:       questionID.String(),
		AllocatedSeconds: int(allocated.Seconds()),
		OpenedAt:         now,
	})
}

// publish marshals and sends one event. Delivery is best effort: a failed
// tick broadcast is superseded by the next one, and final outcomes are always
// part of the next snapshot.
func (e *Engine) publish(ctx context.Context, gameID string, typ events.Type, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to marshal event payload")
		return
	}
	event := events.Event{
		ID:        uuid.New(),
		GameID:    gameID,
		Type:      typ,
		Timestamp: e.clock.Now(),
		Payload:   data,
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID).
			Str("event_type", string(typ)).
			Msg("failed to publish event")
	}
}
