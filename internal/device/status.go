// Package device holds the authoritative in-memory record of the power
// monitor's relay states. Exactly one Status instance exists per process;
// every read and write goes through its mutex-guarded accessors.
package device

import (
	"sync"
	"time"
)

// Relay identifiers as used on the wire and in the activity log.
const (
	Relay1 = 1
	Relay2 = 2
)

// RelayState is the live state of one relay. Since is set iff the relay is
// on, and records the last off-to-on transition.
type RelayState struct {
	On    bool
	Since *time.Time
}

// Snapshot is a point-in-time copy of both relay states. It is a value type,
// safe to use after the lock is released.
type Snapshot struct {
	Relay1 RelayState
	Relay2 RelayState
}

// Status tracks relay states behind a mutex. Two writers mutate it: the
// device's own status reports (authoritative) and optimistic updates applied
// when a command is dispatched.
type Status struct {
	mu sync.Mutex
	r1 RelayState
	r2 RelayState
}

// NewStatus creates a Status with both relays off.
func NewStatus() *Status {
	return &Status{}
}

// ApplyReport applies a full device status report. The report is ground
// truth and overwrites any optimistic state unconditionally. It returns the
// ids of relays whose on/off state changed; an empty result means the report
// was a no-op.
func (s *Status) ApplyReport(r1, r2 bool, now time.Time) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []int
	if applyRelay(&s.r1, r1, now) {
		changed = append(changed, Relay1)
	}
	if applyRelay(&s.r2, r2, now) {
		changed = append(changed, Relay2)
	}
	return changed
}

// ApplyCommand applies the optimistic update for one dispatched command.
// Only the addressed relay is touched. A command that matches the current
// state is a no-op: it must not reset the transition timestamp and reports
// no change. Unknown relay ids report no change.
func (s *Status) ApplyCommand(relay int, on bool, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch relay {
	case Relay1:
		return applyRelay(&s.r1, on, now)
	case Relay2:
		return applyRelay(&s.r2, on, now)
	default:
		return false
	}
}

// applyRelay sets one relay's state, stamping or clearing Since on a real
// transition. Returns false when the new value equals the current one.
func applyRelay(rs *RelayState, on bool, now time.Time) bool {
	if rs.On == on {
		return false
	}
	rs.On = on
	if on {
		t := now
		rs.Since = &t
	} else {
		rs.Since = nil
	}
	return true
}

// Snapshot returns a point-in-time copy of both relay states.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Relay1: copyRelay(s.r1), Relay2: copyRelay(s.r2)}
}

func copyRelay(rs RelayState) RelayState {
	out := RelayState{On: rs.On}
	if rs.Since != nil {
		t := *rs.Since
		out.Since = &t
	}
	return out
}
