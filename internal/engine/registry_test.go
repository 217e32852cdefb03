package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryActivateLifecycle(t *testing.T) {
	r := NewRegistry([]string{"code_crushers"})
	t0 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	_, err := r.Activate("bogus", roster())
	assert.ErrorIs(t, err, ErrUnknownGame)

	s, err := r.Activate("code_crushers", roster())
	require.NoError(t, err)
	require.NoError(t, s.Clock.Start(time.Minute, t0))

	// Running blocks re-activation.
	_, err = r.Activate("code_crushers", roster())
	assert.ErrorIs(t, err, ErrAlreadyActive)

	// Paused blocks it the same way.
	require.NoError(t, s.Clock.Pause(t0.Add(time.Second)))
	_, err = r.Activate("code_crushers", roster())
	assert.ErrorIs(t, err, ErrAlreadyActive)

	// An idle clock (stopped round) frees the game type.
	s.Clock.Stop()
	fresh, err := r.Activate("code_crushers", roster())
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
}

func TestRegistryGetAndDeactivate(t *testing.T) {
	r := NewRegistry([]string{"code_crushers"})

	_, err := r.Get("code_crushers")
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = r.Get("bogus")
	assert.ErrorIs(t, err, ErrUnknownGame)

	team := Team{ID: uuid.New(), Name: "Null Pointers"}
	s, err := r.Activate("code_crushers", []Team{team})
	require.NoError(t, err)
	assert.Equal(t, "Null Pointers", s.TeamName(team.ID))
	assert.Equal(t, "", s.TeamName(uuid.New()))

	got, err := r.Get("code_crushers")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Len(t, r.Sessions(), 1)

	r.Deactivate("code_crushers")
	_, err = r.Get("code_crushers")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Empty(t, r.Sessions())
}
