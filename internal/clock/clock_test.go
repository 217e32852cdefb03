package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTransitions(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(c *Clock)
		wantErr bool
	}{
		{
			name:  "start from idle",
			setup: func(c *Clock) {},
		},
		{
			name: "start from expired",
			setup: func(c *Clock) {
				require.NoError(t, c.Start(10*time.Second, t0.Add(-time.Minute)))
				c.Tick(t0)
			},
		},
		{
			name: "start while running",
			setup: func(c *Clock) {
				require.NoError(t, c.Start(10*time.Second, t0))
			},
			wantErr: true,
		},
		{
			name: "start while paused",
			setup: func(c *Clock) {
				require.NoError(t, c.Start(10*time.Second, t0))
				require.NoError(t, c.Pause(t0.Add(time.Second)))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			tt.setup(c)
			err := c.Start(30*time.Second, t0)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateRunning, c.State())
			assert.Equal(t, 30*time.Second, c.Remaining(t0))
		})
	}
}

func TestPauseFreezesRemaining(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	c := New()
	require.NoError(t, c.Start(60*time.Second, t0))

	require.NoError(t, c.Pause(t0.Add(25*time.Second)))
	assert.Equal(t, StatePaused, c.State())
	frozen := c.Remaining(t0.Add(25 * time.Second))
	assert.Equal(t, 35*time.Second, frozen)

	// An arbitrary wall-clock delay while paused must not change remaining.
	assert.Equal(t, frozen, c.Remaining(t0.Add(3*time.Hour)))

	require.NoError(t, c.Resume(t0.Add(3*time.Hour)))
	assert.Equal(t, frozen, c.Remaining(t0.Add(3*time.Hour)))
}

func TestPauseResumeInvalidStates(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	c := New()
	assert.ErrorIs(t, c.Pause(t0), ErrInvalidTransition)
	assert.ErrorIs(t, c.Resume(t0), ErrInvalidTransition)

	require.NoError(t, c.Start(time.Minute, t0))
	assert.ErrorIs(t, c.Resume(t0), ErrInvalidTransition)
}

func TestTickExpiresExactlyOnce(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	c := New()
	require.NoError(t, c.Start(30*time.Second, t0))

	rem, expired := c.Tick(t0.Add(29 * time.Second))
	assert.Equal(t, time.Second, rem)
	assert.False(t, expired)

	rem, expired = c.Tick(t0.Add(30 * time.Second))
	assert.Equal(t, time.Duration(0), rem)
	assert.True(t, expired)
	assert.Equal(t, StateExpired, c.State())

	// A later tick must not fire expiry again.
	rem, expired = c.Tick(t0.Add(31 * time.Second))
	assert.Equal(t, time.Duration(0), rem)
	assert.False(t, expired)
}

func TestExpiryCountsOnlyRunningTime(t *testing.T) {
	// start(1800s), run 1200s, pause, resume much later, run 600s more:
	// expiry fires at 1800s of cumulative running time, not wall time.
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	c := New()
	require.NoError(t, c.Start(1800*time.Second, t0))

	atPause := t0.Add(1200 * time.Second)
	require.NoError(t, c.Pause(atPause))
	assert.Equal(t, 600*time.Second, c.Remaining(atPause))

	atResume := atPause.Add(10 * time.Minute)
	require.NoError(t, c.Resume(atResume))

	rem, expired := c.Tick(atResume.Add(599 * time.Second))
	assert.Equal(t, time.Second, rem)
	assert.False(t, expired)

	_, expired = c.Tick(atResume.Add(600 * time.Second))
	assert.True(t, expired)
}

func TestMissedTicksDoNotDrift(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	c := New()
	require.NoError(t, c.Start(60*time.Second, t0))

	// Simulate a stalled tick loop: the next tick arrives 17s late.
	rem, expired := c.Tick(t0.Add(17 * time.Second))
	assert.Equal(t, 43*time.Second, rem)
	assert.False(t, expired)
}

func TestStopFromAnyState(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	for _, state := range []string{"idle", "running", "paused", "expired"} {
		t.Run(state, func(t *testing.T) {
			c := New()
			switch state {
			case "running":
				require.NoError(t, c.Start(time.Minute, t0))
			case "paused":
				require.NoError(t, c.Start(time.Minute, t0))
				require.NoError(t, c.Pause(t0.Add(time.Second)))
			case "expired":
				require.NoError(t, c.Start(time.Second, t0))
				c.Tick(t0.Add(2 * time.Second))
			}
			c.Stop()
			assert.Equal(t, StateIdle, c.State())
			assert.Equal(t, time.Duration(0), c.Remaining(t0))
		})
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	c := New()
	require.NoError(t, c.Start(5*time.Second, t0))
	assert.Equal(t, time.Duration(0), c.Remaining(t0.Add(time.Hour)))

	// Pausing after the deadline freezes at zero, not below.
	require.NoError(t, c.Pause(t0.Add(time.Hour)))
	assert.Equal(t, time.Duration(0), c.Remaining(t0.Add(2*time.Hour)))
}

func TestErrInvalidTransitionIsWrapped(t *testing.T) {
	c := New()
	err := c.Pause(time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "IDLE")
}
