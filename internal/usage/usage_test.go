package usage

import (
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return base.Add(time.Duration(seconds) * time.Second)
}

func TestActiveDurationClosedAndOpenIntervals(t *testing.T) {
	// on@0, off@10, on@20, evaluated at 30: (10-0) + (30-20) = 20s
	events := []Event{
		{On: true, At: at(0)},
		{On: false, At: at(10)},
		{On: true, At: at(20)},
	}
	got := ActiveDuration(events, at(30))
	if got != 20*time.Second {
		t.Errorf("got %v, want 20s", got)
	}
}

func TestActiveDurationLastOnWins(t *testing.T) {
	// on@0, on@5, off@10: the second ON overwrites, total is 10s not 15s
	events := []Event{
		{On: true, At: at(0)},
		{On: true, At: at(5)},
		{On: false, At: at(10)},
	}
	got := ActiveDuration(events, at(100))
	if got != 10*time.Second {
		t.Errorf("got %v, want 10s", got)
	}
}

func TestActiveDurationUnmatchedOff(t *testing.T) {
	// An OFF with no preceding ON in the window is a no-op.
	events := []Event{{On: false, At: at(0)}}
	if got := ActiveDuration(events, at(50)); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestActiveDurationEmpty(t *testing.T) {
	if got := ActiveDuration(nil, at(10)); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestActiveDurationStillOn(t *testing.T) {
	events := []Event{{On: true, At: at(0)}}
	if got := ActiveDuration(events, at(3600)); got != time.Hour {
		t.Errorf("got %v, want 1h", got)
	}
}

func TestHoursRounding(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want float64
	}{
		{0, 0},
		{time.Hour, 1},
		{90 * time.Minute, 1.5},
		{time.Minute, 0.02},       // 0.0166... rounds up
		{20 * time.Second, 0.01},  // 0.0055... rounds up
		{10 * time.Second, 0},     // 0.0027... rounds down
		{7*time.Hour + 44*time.Minute + 24*time.Second, 7.74},
	}
	for _, tc := range cases {
		if got := Hours(tc.d); got != tc.want {
			t.Errorf("Hours(%v): got %v, want %v", tc.d, got, tc.want)
		}
	}
}
