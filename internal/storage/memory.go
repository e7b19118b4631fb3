package storage

import (
	"context"
	"sync"
	"time"

	"github.com/powersense/backend/internal/usage"
)

// MemoryStore keeps readings and activity in process memory. It backs
// development mode (no database configured) and tests. Readings are capped
// to avoid unbounded growth in long dev sessions.
type MemoryStore struct {
	mu       sync.Mutex
	readings []Reading
	activity []ActivityEvent
	cap      int
}

// Default cap on retained readings in memory mode.
const memoryReadingCap = 10000

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cap: memoryReadingCap}
}

// SaveReading appends one sensor sample, evicting the oldest at capacity.
func (s *MemoryStore) SaveReading(_ context.Context, r Reading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	if len(s.readings) > s.cap {
		s.readings = s.readings[len(s.readings)-s.cap:]
	}
	return nil
}

// LatestReading returns the most recent sample, or ErrNoReadings.
func (s *MemoryStore) LatestReading(_ context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readings) == 0 {
		return Reading{}, ErrNoReadings
	}
	latest := s.readings[0]
	for _, r := range s.readings[1:] {
		if !r.Timestamp.Before(latest.Timestamp) {
			latest = r
		}
	}
	return latest, nil
}

// ReadingHistory returns the latest metrics plus per-metric series.
func (s *MemoryStore) ReadingHistory(ctx context.Context, window time.Duration) (History, error) {
	var h History
	latest, err := s.LatestReading(ctx)
	switch err {
	case nil:
		h.Current = latest.Current
		h.AvgCurrent = latest.AvgCurrent
		h.Voltage = latest.Voltage
		h.InstPower = latest.Power
		h.AvgPower = latest.AvgPower
	case ErrNoReadings:
	default:
		return History{}, err
	}

	cutoff := time.Now().Add(-window)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.readings {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		h.CurrentHistory = append(h.CurrentHistory, HistoryPoint{r.Timestamp, r.Current})
		h.AvgCurrentHistory = append(h.AvgCurrentHistory, HistoryPoint{r.Timestamp, r.AvgCurrent})
		h.VoltageHistory = append(h.VoltageHistory, HistoryPoint{r.Timestamp, r.Voltage})
		h.PowerHistory = append(h.PowerHistory, HistoryPoint{r.Timestamp, r.Power})
	}
	return h, nil
}

// AveragePower returns the mean instantaneous power over the window.
func (s *MemoryStore) AveragePower(_ context.Context, window time.Duration) (float64, error) {
	cutoff := time.Now().Add(-window)
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum float64
	var n int
	for _, r := range s.readings {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		sum += r.Power
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// AppendActivity records one relay transition.
func (s *MemoryStore) AppendActivity(_ context.Context, ev ActivityEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, ev)
	return nil
}

// ActivityEvents returns one relay's transitions since the given time,
// ascending by time.
func (s *MemoryStore) ActivityEvents(_ context.Context, relay int, since time.Time) ([]usage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []usage.Event
	for _, ev := range s.activity {
		if ev.Relay != relay || ev.At.Before(since) {
			continue
		}
		events = append(events, usage.Event{On: ev.On, At: ev.At})
	}
	return events, nil
}

// Activity returns a copy of all recorded activity events, newest last.
// Test helper.
func (s *MemoryStore) Activity() []ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEvent, len(s.activity))
	copy(out, s.activity)
	return out
}

// Readings returns a copy of all stored readings. Test helper.
func (s *MemoryStore) Readings() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
