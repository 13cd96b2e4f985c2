package infra

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessManager_IsRunning(t *testing.T) {
	pm := NewProcessManager()

	assert.True(t, pm.IsRunning(os.Getpid()))
	assert.False(t, pm.IsRunning(0))
	assert.False(t, pm.IsRunning(-1))
	assert.False(t, pm.IsRunning(1<<22+12345), "pid above pid_max")
}

func TestProcessManager_GetCurrentPID(t *testing.T) {
	assert.Equal(t, os.Getpid(), NewProcessManager().GetCurrentPID())
}

func TestProcessManager_Describe(t *testing.T) {
	info, err := NewProcessManager().Describe(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.NotEmpty(t, info.Name)
	assert.False(t, info.StartedAt.IsZero())
}
