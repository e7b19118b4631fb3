// Package storage persists sensor readings and relay activity events.
// The real implementation targets PostgreSQL; the memory implementation
// backs development mode and tests.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/powersense/backend/internal/usage"
)

// ErrNoReadings is returned by LatestReading when nothing has been stored.
var ErrNoReadings = errors.New("no readings stored")

// Reading is one electrical sample reported by the device.
type Reading struct {
	Timestamp  time.Time
	Voltage    float64
	Current    float64
	Power      float64 // instantaneous
	AvgCurrent float64
	AvgPower   float64
}

// ActivityEvent is one persisted relay transition, the unit of duration
// accounting. Actor identifies the surface that caused it ("Web", "App",
// "Device").
type ActivityEvent struct {
	Relay int
	On    bool
	Actor string
	At    time.Time
}

// HistoryPoint is one timestamped value in a metric series.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// History bundles the latest metrics with per-metric series for the
// dashboard graphs.
type History struct {
	Current           float64        `json:"current"`
	AvgCurrent        float64        `json:"avgCurrent"`
	Voltage           float64        `json:"voltage"`
	InstPower         float64        `json:"instPower"`
	AvgPower          float64        `json:"avgPower"`
	CurrentHistory    []HistoryPoint `json:"currentHistory"`
	AvgCurrentHistory []HistoryPoint `json:"avgCurrentHistory"`
	VoltageHistory    []HistoryPoint `json:"voltageHistory"`
	PowerHistory      []HistoryPoint `json:"powerHistory"`
}

// Store is the persistence boundary consumed by the hub and the HTTP API.
type Store interface {
	// SaveReading appends one sensor sample.
	SaveReading(ctx context.Context, r Reading) error

	// LatestReading returns the most recent sample, or ErrNoReadings.
	LatestReading(ctx context.Context) (Reading, error)

	// ReadingHistory returns the latest metrics plus per-metric series
	// covering the given look-back window.
	ReadingHistory(ctx context.Context, window time.Duration) (History, error)

	// AveragePower returns the mean instantaneous power over the window.
	// A window with no samples yields zero.
	AveragePower(ctx context.Context, window time.Duration) (float64, error)

	// AppendActivity records one relay transition.
	AppendActivity(ctx context.Context, ev ActivityEvent) error

	// ActivityEvents returns the transitions for one relay since the given
	// time, ascending by time, in reducer form.
	ActivityEvents(ctx context.Context, relay int, since time.Time) ([]usage.Event, error)

	// Close releases the underlying resources.
	Close() error
}
