package arbiter

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	teamA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	teamB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	teamC = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func openWindow(t *testing.T) (*Arbiter, uuid.UUID, time.Time) {
	t.Helper()
	a := New([]uuid.UUID{teamA, teamB, teamC})
	questionID := uuid.New()
	openedAt := time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC)
	_, err := a.OpenWindow(questionID, 30*time.Second, openedAt)
	require.NoError(t, err)
	return a, questionID, openedAt
}

func TestOpenWindowWhileOpen(t *testing.T) {
	a, _, openedAt := openWindow(t)
	_, err := a.OpenWindow(uuid.New(), 30*time.Second, openedAt)
	assert.ErrorIs(t, err, ErrWindowOpen)
}

func TestPressRanksFollowReceiptOrder(t *testing.T) {
	a, q, openedAt := openWindow(t)

	// Three teams buzz within 50ms; receipt times t1<t2<t3 determine ranks
	// regardless of which network goroutine delivered them.
	presses := []struct {
		team uuid.UUID
		at   time.Time
	}{
		{teamC, openedAt.Add(10 * time.Millisecond)},
		{teamA, openedAt.Add(25 * time.Millisecond)},
		{teamB, openedAt.Add(50 * time.Millisecond)},
	}

	for i, p := range presses {
		rank, err := a.Press(q, p.team, p.at)
		require.NoError(t, err)
		assert.Equal(t, i+1, rank)
	}

	w := a.Window()
	require.Len(t, w.Attempts, 3)
	assert.Equal(t, teamC, w.Attempts[0].TeamID)
	assert.Equal(t, teamA, w.Attempts[1].TeamID)
	assert.Equal(t, teamB, w.Attempts[2].TeamID)
	for i := 1; i < len(w.Attempts); i++ {
		assert.True(t, w.Attempts[i].ReceivedAt.After(w.Attempts[i-1].ReceivedAt),
			"attempts must be monotonically increasing in receipt time")
	}
}

func TestPressValidation(t *testing.T) {
	a, q, openedAt := openWindow(t)
	_, err := a.Press(q, teamA, openedAt.Add(time.Second))
	require.NoError(t, err)

	tests := []struct {
		name     string
		question uuid.UUID
		team     uuid.UUID
		wantErr  error
	}{
		{"unknown question", uuid.New(), teamA, ErrNoWindow},
		{"unknown team", q, uuid.New(), ErrUnknownTeam},
		{"duplicate while pending", q, teamA, ErrDuplicateAttempt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Press(tt.question, tt.team, openedAt.Add(2*time.Second))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTeamCannotBuzzAgainAfterResolution(t *testing.T) {
	a, q, openedAt := openWindow(t)
	_, err := a.Press(q, teamA, openedAt.Add(time.Second))
	require.NoError(t, err)
	_, err = a.Resolve(q, teamA, VerdictIncorrect)
	require.NoError(t, err)

	_, err = a.Press(q, teamA, openedAt.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrDuplicateAttempt)

	// Other teams may still buzz after one strike.
	rank, err := a.Press(q, teamB, openedAt.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
}

func TestTwoStrikesLockTheWindow(t *testing.T) {
	a, q, openedAt := openWindow(t)

	for i, team := range []uuid.UUID{teamA, teamB} {
		_, err := a.Press(q, team, openedAt.Add(time.Duration(i+1)*time.Second))
		require.NoError(t, err)
		w, err := a.Resolve(q, team, VerdictIncorrect)
		require.NoError(t, err)
		assert.Equal(t, i+1, w.WrongCount)
	}

	w := a.Window()
	assert.Equal(t, WindowLocked, w.State)
	assert.Nil(t, w.WinningTeamID)

	_, err := a.Press(q, teamC, openedAt.Add(5*time.Second))
	assert.ErrorIs(t, err, ErrWindowClosed)
	_, err = a.Resolve(q, teamC, VerdictCorrect)
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestCorrectVerdictResolvesWindow(t *testing.T) {
	a, q, openedAt := openWindow(t)

	_, err := a.Press(q, teamB, openedAt.Add(time.Second))
	require.NoError(t, err)
	w, err := a.Resolve(q, teamB, VerdictCorrect)
	require.NoError(t, err)

	assert.Equal(t, WindowResolved, w.State)
	require.NotNil(t, w.WinningTeamID)
	assert.Equal(t, teamB, *w.WinningTeamID)

	// Once resolved, no press and no further verdict is accepted.
	_, err = a.Press(q, teamC, openedAt.Add(2*time.Second))
	assert.ErrorIs(t, err, ErrWindowClosed)
	_, err = a.Resolve(q, teamC, VerdictCorrect)
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestOnlyFirstPendingAttemptIsResolvable(t *testing.T) {
	a, q, openedAt := openWindow(t)

	_, err := a.Press(q, teamA, openedAt.Add(time.Second))
	require.NoError(t, err)
	_, err = a.Press(q, teamB, openedAt.Add(2*time.Second))
	require.NoError(t, err)

	// teamB buzzed second: its attempt is queued, not resolvable yet.
	_, err = a.Resolve(q, teamB, VerdictCorrect)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = a.Resolve(q, teamA, VerdictIncorrect)
	require.NoError(t, err)

	// Now teamB is at the head of the queue.
	w, err := a.Resolve(q, teamB, VerdictCorrect)
	require.NoError(t, err)
	assert.Equal(t, WindowResolved, w.State)
}

func TestResolveWithoutAttempt(t *testing.T) {
	a, q, _ := openWindow(t)
	_, err := a.Resolve(q, teamA, VerdictCorrect)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestResolveUnknownTeam(t *testing.T) {
	a, q, openedAt := openWindow(t)
	_, err := a.Press(q, teamA, openedAt.Add(time.Second))
	require.NoError(t, err)

	_, err = a.Resolve(q, uuid.New(), VerdictCorrect)
	assert.ErrorIs(t, err, ErrUnknownTeam)
}

func TestCloseWindowAllowsReopen(t *testing.T) {
	a, q, openedAt := openWindow(t)
	closed := a.CloseWindow()
	require.NotNil(t, closed)
	assert.Equal(t, q, closed.QuestionID)
	assert.Nil(t, a.Window())

	_, err := a.OpenWindow(uuid.New(), time.Minute, openedAt.Add(time.Minute))
	assert.NoError(t, err)
}
