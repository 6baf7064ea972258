// Package device tracks per-device lock state with auto-expiring unlock
// windows, and carries the static device catalog and the outbound
// command transport.
package device

import (
	"sync"
	"time"

	"github.com/x402labs/devicegate/types"
)

type record struct {
	state           types.LockState
	unlockExpiresAt time.Time
}

// StateMachine holds per-device Locked/Unlocked state. Records are
// created lazily at first reference, defaulting to Locked. Expiry is
// lazy: every read reconciles an elapsed unlock window before returning,
// so no background timer runs and no caller ever observes a stale
// Unlocked state.
type StateMachine struct {
	mu      sync.Mutex
	devices map[string]*record
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{devices: make(map[string]*record)}
}

// Unlock transitions the device to Unlocked until now+duration,
// overwriting any prior unlock window. It returns the expiry instant.
func (m *StateMachine) Unlock(deviceID string, duration time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.get(deviceID)
	r.state = types.StateUnlocked
	r.unlockExpiresAt = time.Now().Add(duration)
	return r.unlockExpiresAt
}

// Lock transitions the device to Locked and clears the unlock window.
func (m *StateMachine) Lock(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.get(deviceID)
	r.state = types.StateLocked
	r.unlockExpiresAt = time.Time{}
}

// Read returns the reconciled state and the remaining unlock window.
// Remaining is zero when locked.
func (m *StateMachine) Read(deviceID string) types.DeviceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.get(deviceID)
	now := time.Now()
	if r.state == types.StateUnlocked && !now.Before(r.unlockExpiresAt) {
		r.state = types.StateLocked
		r.unlockExpiresAt = time.Time{}
	}

	status := types.DeviceStatus{DeviceID: deviceID, State: r.state}
	if r.state == types.StateUnlocked {
		status.Remaining = r.unlockExpiresAt.Sub(now)
	}
	return status
}

// get returns the record for deviceID, creating it Locked on first
// reference. Callers hold the mutex.
func (m *StateMachine) get(deviceID string) *record {
	r, ok := m.devices[deviceID]
	if !ok {
		r = &record{state: types.StateLocked}
		m.devices[deviceID] = r
	}
	return r
}
