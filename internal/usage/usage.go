// Package usage computes cumulative relay on-time from logged transitions.
// It is pure computation over an ordered event sequence — no I/O and no view
// of the live relay state, so a relay with no log entries in the window
// always accounts for zero time even if it is currently on.
package usage

import (
	"math"
	"time"
)

// Event is one relay transition drawn from the activity log.
type Event struct {
	On bool
	At time.Time
}

// ActiveDuration reduces an ascending-by-time event sequence to the total
// time the relay spent on, evaluated at now.
//
// An ON event opens a pending interval, overwriting any previous pending
// start (consecutive ONs collapse — last ON wins). An OFF event closes the
// pending interval if one is open and is ignored otherwise. An interval
// still open after the last event extends to now.
func ActiveDuration(events []Event, now time.Time) time.Duration {
	var total time.Duration
	var pendingOnAt *time.Time

	for i := range events {
		ev := events[i]
		if ev.On {
			t := ev.At
			pendingOnAt = &t
			continue
		}
		if pendingOnAt != nil {
			total += ev.At.Sub(*pendingOnAt)
			pendingOnAt = nil
		}
	}

	if pendingOnAt != nil {
		total += now.Sub(*pendingOnAt)
	}
	return total
}

// Hours converts a duration to fractional hours rounded to two decimal
// places, the unit reported by the usage endpoint.
func Hours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}
