package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreLatestReading(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.LatestReading(ctx); err != ErrNoReadings {
		t.Errorf("empty store: got %v, want ErrNoReadings", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.SaveReading(ctx, Reading{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Voltage:   230 + float64(i),
		})
		if err != nil {
			t.Fatalf("SaveReading: %v", err)
		}
	}

	latest, err := s.LatestReading(ctx)
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if latest.Voltage != 232 {
		t.Errorf("latest voltage: got %v, want 232", latest.Voltage)
	}
}

func TestMemoryStoreReadingHistoryWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now()
	old := Reading{Timestamp: now.Add(-48 * time.Hour), Power: 100}
	recent := Reading{Timestamp: now.Add(-time.Hour), Power: 200, Current: 0.9}
	if err := s.SaveReading(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveReading(ctx, recent); err != nil {
		t.Fatal(err)
	}

	h, err := s.ReadingHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("ReadingHistory: %v", err)
	}
	if len(h.PowerHistory) != 1 {
		t.Fatalf("power history: got %d points, want 1", len(h.PowerHistory))
	}
	if h.PowerHistory[0].Value != 200 {
		t.Errorf("power point: got %v, want 200", h.PowerHistory[0].Value)
	}
	if h.InstPower != 200 || h.Current != 0.9 {
		t.Errorf("latest metrics: got power=%v current=%v", h.InstPower, h.Current)
	}
}

func TestMemoryStoreAveragePower(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now()
	for _, p := range []float64{100, 200, 300} {
		if err := s.SaveReading(ctx, Reading{Timestamp: now.Add(-time.Minute), Power: p}); err != nil {
			t.Fatal(err)
		}
	}
	// Outside the window, must be excluded.
	if err := s.SaveReading(ctx, Reading{Timestamp: now.Add(-2 * time.Hour), Power: 9000}); err != nil {
		t.Fatal(err)
	}

	avg, err := s.AveragePower(ctx, time.Hour)
	if err != nil {
		t.Fatalf("AveragePower: %v", err)
	}
	if avg != 200 {
		t.Errorf("got %v, want 200", avg)
	}

	empty := NewMemoryStore()
	avg, err = empty.AveragePower(ctx, time.Hour)
	if err != nil || avg != 0 {
		t.Errorf("empty store: got %v/%v, want 0/nil", avg, err)
	}
}

func TestMemoryStoreActivityWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	appends := []ActivityEvent{
		{Relay: 1, On: true, Actor: "Device", At: base},
		{Relay: 2, On: true, Actor: "App", At: base.Add(time.Minute)},
		{Relay: 1, On: false, Actor: "Web", At: base.Add(2 * time.Minute)},
	}
	for _, ev := range appends {
		if err := s.AppendActivity(ctx, ev); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	events, err := s.ActivityEvents(ctx, 1, base)
	if err != nil {
		t.Fatalf("ActivityEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("relay 1: got %d events, want 2", len(events))
	}
	if !events[0].On || events[1].On {
		t.Errorf("relay 1 event order wrong: %+v", events)
	}

	// Window excludes the first event.
	events, err = s.ActivityEvents(ctx, 1, base.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].On {
		t.Errorf("windowed: got %+v, want single OFF", events)
	}
}

func TestMemoryStoreReadingCap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.cap = 5

	for i := 0; i < 8; i++ {
		if err := s.SaveReading(ctx, Reading{Power: float64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	got := s.Readings()
	if len(got) != 5 {
		t.Fatalf("got %d readings, want 5", len(got))
	}
	if got[0].Power != 3 {
		t.Errorf("oldest retained: got %v, want 3", got[0].Power)
	}
}
