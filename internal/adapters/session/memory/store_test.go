package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/grader/internal/domain"
	portmocks "github.com/bnema/grader/internal/ports/mocks"
)

func sampleLaunch() domain.LaunchContext {
	return domain.LaunchContext{
		ToolKeyID:    "key-1",
		ResourceUser: domain.ResourceUser{ID: "ru-1", UserID: "alice", ToolKeyID: "key-1"},
		CustomArgs:   []string{"--fast"},
	}
}

func TestStoreOpenAssignsIdentifiers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	clock := portmocks.NewMockClock(t)
	clock.EXPECT().Now().Return(now)

	store := NewStore(time.Hour, clock)

	launch, err := store.Open(context.Background(), sampleLaunch())
	require.NoError(t, err)
	assert.NotEmpty(t, launch.SessionID)
	assert.NotEmpty(t, launch.LaunchID)
	assert.Equal(t, now, launch.CreatedAt)

	got, err := store.Get(context.Background(), launch.SessionID)
	require.NoError(t, err)
	assert.Equal(t, launch, got)

	got.CustomArgs[0] = "--mutated"
	again, err := store.Get(context.Background(), launch.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "--fast", again.CustomArgs[0])
}

func TestStoreExpiresSessions(t *testing.T) {
	t.Parallel()

	opened := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	current := opened
	clock := portmocks.NewMockClock(t)
	clock.EXPECT().Now().RunAndReturn(func() time.Time { return current })

	store := NewStore(time.Minute, clock)
	launch, err := store.Open(context.Background(), sampleLaunch())
	require.NoError(t, err)

	current = opened.Add(2 * time.Minute)
	_, err = store.Get(context.Background(), launch.SessionID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestStoreDeleteAndMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(0, nil)
	require.NoError(t, store.Put(context.Background(), domain.LaunchContext{
		SessionID:    "fixed",
		ToolKeyID:    "key-1",
		ResourceUser: domain.ResourceUser{ID: "ru-1"},
	}))

	_, err := store.Get(context.Background(), "fixed")
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "fixed"))
	_, err = store.Get(context.Background(), "fixed")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStoreRejectsIncompleteLaunch(t *testing.T) {
	t.Parallel()

	store := NewStore(0, nil)
	require.Error(t, store.Put(context.Background(), domain.LaunchContext{ToolKeyID: "key-1"}))
}
