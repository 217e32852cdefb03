package round

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/engine"
	"github.com/techclash/arena/internal/roster"
	"github.com/techclash/arena/internal/scoring"
)

type fakeEngineAPI struct {
	startGame     string
	startTeams    []engine.Team
	startQuestion uuid.UUID
	startErr      error

	nextQuestion uuid.UUID
	nextErr      error

	resolveOutcome *engine.Outcome
	resolveErr     error

	paused, resumed, stopped bool
}

func (f *fakeEngineAPI) StartRound(ctx context.Context, gameID string, teams []engine.Team, questionID uuid.UUID, allocated time.Duration) error {
	f.startGame = gameID
	f.startTeams = teams
	f.startQuestion = questionID
	return f.startErr
}

func (f *fakeEngineAPI) NextQuestion(ctx context.Context, gameID string, questionID uuid.UUID, allocated time.Duration) error {
	f.nextQuestion = questionID
	return f.nextErr
}

func (f *fakeEngineAPI) Pause(ctx context.Context, gameID string) error  { f.paused = true; return nil }
func (f *fakeEngineAPI) Resume(ctx context.Context, gameID string) error { f.resumed = true; return nil }
func (f *fakeEngineAPI) Stop(ctx context.Context, gameID string) error   { f.stopped = true; return nil }

func (f *fakeEngineAPI) Resolve(ctx context.Context, gameID string, questionID, teamID uuid.UUID, verdict arbiter.Verdict) (*engine.Outcome, error) {
	return f.resolveOutcome, f.resolveErr
}

func (f *fakeEngineAPI) Snapshot(ctx context.Context, gameID string) (*engine.Snapshot, error) {
	return &engine.Snapshot{GameID: gameID}, nil
}

func (f *fakeEngineAPI) ActiveGames(ctx context.Context) ([]string, error) {
	return []string{f.startGame}, nil
}

type fakeRosterStore struct {
	teams []roster.Team
	err   error
}

func (f *fakeRosterStore) TeamsForGame(ctx context.Context, gameID string) ([]roster.Team, error) {
	return f.teams, f.err
}

type fakeScoringStore struct {
	allocations []scoring.RecordTimeAllocationRequest
	attempts    []scoring.RecordAttemptRequest
	outcomes    []scoring.RecordOutcomeRequest

	attemptErr error
	outcomeErr error
}

func (f *fakeScoringStore) RecordTimeAllocation(ctx context.Context, req scoring.RecordTimeAllocationRequest) error {
	f.allocations = append(f.allocations, req)
	return nil
}

func (f *fakeScoringStore) RecordAttempt(ctx context.Context, req scoring.RecordAttemptRequest) error {
	f.attempts = append(f.attempts, req)
	return f.attemptErr
}

func (f *fakeScoringStore) RecordOutcome(ctx context.Context, req scoring.RecordOutcomeRequest) error {
	f.outcomes = append(f.outcomes, req)
	return f.outcomeErr
}

func (f *fakeScoringStore) StandingsForGame(ctx context.Context, gameID string) ([]scoring.TeamStanding, error) {
	return nil, nil
}

func testRoster() []roster.Team {
	return []roster.Team{
		{ID: uuid.New(), Name: "Null Pointers"},
		{ID: uuid.New(), Name: "Segfault Squad"},
	}
}

func TestStartRoundLoadsRosterAndRecordsAllocation(t *testing.T) {
	eng := &fakeEngineAPI{}
	rosters := &fakeRosterStore{teams: testRoster()}
	scores := &fakeScoringStore{}
	c := NewController(eng, rosters, scores, []string{"code_crushers"})

	questionID := uuid.New()
	err := c.StartRound(context.Background(), "code_crushers", questionID, 30*time.Minute)
	require.NoError(t, err)

	require.Equal(t, "code_crushers", eng.startGame)
	require.Equal(t, questionID, eng.startQuestion)
	require.Len(t, eng.startTeams, 2)
	require.Equal(t, "Null Pointers", eng.startTeams[0].Name)

	require.Len(t, scores.allocations, 1)
	require.Equal(t, 1800, scores.allocations[0].AllocatedSeconds)
	require.Equal(t, questionID, scores.allocations[0].QuestionID)
}

func TestStartRoundRejectsEmptyRoster(t *testing.T) {
	eng := &fakeEngineAPI{}
	c := NewController(eng, &fakeRosterStore{}, &fakeScoringStore{}, nil)

	err := c.StartRound(context.Background(), "code_crushers", uuid.New(), time.Minute)
	require.ErrorIs(t, err, ErrNoTeams)
	require.Empty(t, eng.startGame)
}

func TestStartRoundEngineRejectionSkipsAllocation(t *testing.T) {
	eng := &fakeEngineAPI{startErr: engine.ErrAlreadyActive}
	scores := &fakeScoringStore{}
	c := NewController(eng, &fakeRosterStore{teams: testRoster()}, scores, nil)

	err := c.StartRound(context.Background(), "code_crushers", uuid.New(), time.Minute)
	require.ErrorIs(t, err, engine.ErrAlreadyActive)
	require.Empty(t, scores.allocations)
}

func TestResolveNonFinalVerdictNotPersisted(t *testing.T) {
	eng := &fakeEngineAPI{
		resolveOutcome: &engine.Outcome{
			GameID:      "code_crushers",
			QuestionID:  uuid.New(),
			WindowState: arbiter.WindowOpen,
			Final:       false,
		},
	}
	scores := &fakeScoringStore{}
	c := NewController(eng, &fakeRosterStore{}, scores, nil)

	outcome, err := c.Resolve(context.Background(), "code_crushers", uuid.New(), uuid.New(), arbiter.VerdictIncorrect)
	require.NoError(t, err)
	require.False(t, outcome.Final)
	require.Empty(t, scores.attempts)
	require.Empty(t, scores.outcomes)
}

func TestResolveFinalVerdictPersistsAttemptsAndOutcome(t *testing.T) {
	winner := uuid.New()
	loser := uuid.New()
	questionID := uuid.New()
	opened := time.Now()

	eng := &fakeEngineAPI{
		resolveOutcome: &engine.Outcome{
			GameID:        "code_crushers",
			QuestionID:    questionID,
			WindowState:   arbiter.WindowResolved,
			Final:         true,
			WinningTeamID: &winner,
			OpenedAt:      opened,
			ResolvedAt:    opened.Add(20 * time.Second),
			Attempts: []arbiter.Attempt{
				{TeamID: loser, Rank: 1, Verdict: arbiter.VerdictIncorrect, ReceivedAt: opened.Add(5 * time.Second)},
				{TeamID: winner, Rank: 2, Verdict: arbiter.VerdictCorrect, ReceivedAt: opened.Add(12 * time.Second)},
			},
		},
	}
	scores := &fakeScoringStore{}
	c := NewController(eng, &fakeRosterStore{}, scores, nil)

	outcome, err := c.Resolve(context.Background(), "code_crushers", questionID, winner, arbiter.VerdictCorrect)
	require.NoError(t, err)
	require.True(t, outcome.Final)

	require.Len(t, scores.attempts, 2)
	require.Equal(t, 5.0, scores.attempts[0].ElapsedSeconds)
	require.Equal(t, "INCORRECT", scores.attempts[0].Verdict)
	require.Equal(t, 12.0, scores.attempts[1].ElapsedSeconds)
	require.Equal(t, "CORRECT", scores.attempts[1].Verdict)

	require.Len(t, scores.outcomes, 1)
	require.Equal(t, &winner, scores.outcomes[0].WinningTeamID)
}

func TestResolvePersistenceFailureDoesNotFailVerdict(t *testing.T) {
	questionID := uuid.New()
	eng := &fakeEngineAPI{
		resolveOutcome: &engine.Outcome{
			GameID:      "code_crushers",
			QuestionID:  questionID,
			WindowState: arbiter.WindowLocked,
			Final:       true,
			Attempts: []arbiter.Attempt{
				{TeamID: uuid.New(), Rank: 1, Verdict: arbiter.VerdictIncorrect, ReceivedAt: time.Now()},
			},
		},
	}
	scores := &fakeScoringStore{
		attemptErr: errors.New("db down"),
		outcomeErr: errors.New("db down"),
	}
	c := NewController(eng, &fakeRosterStore{}, scores, nil)

	outcome, err := c.Resolve(context.Background(), "code_crushers", questionID, uuid.New(), arbiter.VerdictIncorrect)
	require.NoError(t, err)
	require.True(t, outcome.Final)
	require.Nil(t, outcome.WinningTeamID)
}

func TestNextQuestionRecordsAllocation(t *testing.T) {
	eng := &fakeEngineAPI{}
	scores := &fakeScoringStore{}
	c := NewController(eng, &fakeRosterStore{}, scores, nil)

	questionID := uuid.New()
	require.NoError(t, c.NextQuestion(context.Background(), "code_crushers", questionID, 45*time.Second))
	require.Equal(t, questionID, eng.nextQuestion)
	require.Len(t, scores.allocations, 1)
	require.Equal(t, 45, scores.allocations[0].AllocatedSeconds)
}
