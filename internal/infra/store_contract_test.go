package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmstock/stockmon/internal/domain"
)

type storeUnderTest interface {
	domain.KeyValueStore
	domain.DaemonStateStore
}

// runStoreContract checks the behavior every local store must share.
func runStoreContract(t *testing.T, open func(t *testing.T) storeUnderTest) {
	t.Run("missing key is ErrNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.Get("nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set("notification_settings", `{"lowStockAlerts":false}`))

		got, err := s.Get("notification_settings")
		require.NoError(t, err)
		assert.Equal(t, `{"lowStockAlerts":false}`, got)
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set("auth_token", "old"))
		require.NoError(t, s.Set("auth_token", "new"))

		got, err := s.Get("auth_token")
		require.NoError(t, err)
		assert.Equal(t, "new", got)
	})

	t.Run("no state recorded", func(t *testing.T) {
		s := open(t)
		state, err := s.LoadState()
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("save and load state", func(t *testing.T) {
		s := open(t)
		started := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		want := domain.DaemonState{
			PID:           4242,
			Version:       "1.2.0",
			StartedAt:     started,
			LastHeartbeat: started.Add(time.Minute),
			LastCycleAt:   started.Add(2 * time.Minute),
			LastCycleSent: 3,
			Mode:          "user",
		}
		require.NoError(t, s.SaveState(want))

		got, err := s.LoadState()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.PID, got.PID)
		assert.Equal(t, want.Version, got.Version)
		assert.True(t, want.StartedAt.Equal(got.StartedAt))
		assert.True(t, want.LastHeartbeat.Equal(got.LastHeartbeat))
		assert.True(t, want.LastCycleAt.Equal(got.LastCycleAt))
		assert.Equal(t, 3, got.LastCycleSent)
		assert.Equal(t, "user", got.Mode)
	})

	t.Run("save replaces previous state", func(t *testing.T) {
		s := open(t)
		now := time.Now().Truncate(time.Second)
		require.NoError(t, s.SaveState(domain.DaemonState{PID: 1, StartedAt: now, LastHeartbeat: now}))
		require.NoError(t, s.SaveState(domain.DaemonState{PID: 2, StartedAt: now, LastHeartbeat: now}))

		got, err := s.LoadState()
		require.NoError(t, err)
		assert.Equal(t, 2, got.PID)
		assert.True(t, got.LastCycleAt.IsZero())
	})

	t.Run("clear state", func(t *testing.T) {
		s := open(t)
		now := time.Now()
		require.NoError(t, s.SaveState(domain.DaemonState{PID: 1, StartedAt: now, LastHeartbeat: now}))
		require.NoError(t, s.ClearState())

		got, err := s.LoadState()
		require.NoError(t, err)
		assert.Nil(t, got)

		// Clearing twice is fine.
		assert.NoError(t, s.ClearState())
	})

	t.Run("clear state keeps values", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Set("push_token", "tok"))
		require.NoError(t, s.ClearState())

		got, err := s.Get("push_token")
		require.NoError(t, err)
		assert.Equal(t, "tok", got)
	})
}
