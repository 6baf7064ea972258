package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402labs/devicegate/types"
)

func TestReadDefaultsToLocked(t *testing.T) {
	m := NewStateMachine()

	status := m.Read("X402-LOCK-001")
	assert.Equal(t, types.StateLocked, status.State)
	assert.Zero(t, status.Remaining)
}

func TestUnlockThenRead(t *testing.T) {
	m := NewStateMachine()

	expiry := m.Unlock("X402-LOCK-001", time.Minute)
	assert.True(t, expiry.After(time.Now()))

	status := m.Read("X402-LOCK-001")
	assert.Equal(t, types.StateUnlocked, status.State)
	assert.Greater(t, status.Remaining, 50*time.Second)
	assert.LessOrEqual(t, status.Remaining, time.Minute)
}

func TestUnlockWindowExpiresLazily(t *testing.T) {
	m := NewStateMachine()

	m.Unlock("X402-LOCK-001", 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	status := m.Read("X402-LOCK-001")
	assert.Equal(t, types.StateLocked, status.State)
	assert.Zero(t, status.Remaining)
}

func TestUnlockOverwritesWindow(t *testing.T) {
	m := NewStateMachine()

	first := m.Unlock("X402-LOCK-001", time.Minute)
	second := m.Unlock("X402-LOCK-001", time.Hour)
	require.True(t, second.After(first))

	status := m.Read("X402-LOCK-001")
	assert.Equal(t, types.StateUnlocked, status.State)
	assert.Greater(t, status.Remaining, 50*time.Minute)
}

func TestLockClearsWindow(t *testing.T) {
	m := NewStateMachine()

	m.Unlock("X402-LOCK-001", time.Hour)
	m.Lock("X402-LOCK-001")

	status := m.Read("X402-LOCK-001")
	assert.Equal(t, types.StateLocked, status.State)
	assert.Zero(t, status.Remaining)
}

func TestDevicesAreIndependent(t *testing.T) {
	m := NewStateMachine()

	m.Unlock("X402-LOCK-001", time.Hour)

	assert.Equal(t, types.StateUnlocked, m.Read("X402-LOCK-001").State)
	assert.Equal(t, types.StateLocked, m.Read("X402-COFFEE-001").State)
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	lock, ok := c.Get("X402-LOCK-001")
	require.True(t, ok)
	assert.True(t, lock.Supports("unlock"))
	assert.True(t, lock.Supports("lock"))
	assert.False(t, lock.Supports("brew"))

	price, ok := lock.PriceFor("unlock")
	require.True(t, ok)
	assert.Equal(t, "0.10", price)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Len(t, c.All(), 2)
}
