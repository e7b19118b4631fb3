package mqtt

import (
	"fmt"
	"testing"
)

func TestReplayQueueFIFO(t *testing.T) {
	q := newReplayQueue(10)

	for i := 0; i < 3; i++ {
		q.push(queuedMsg{topic: fmt.Sprintf("t%d", i)})
	}
	if q.len() != 3 {
		t.Fatalf("len: got %d, want 3", q.len())
	}

	msgs := q.drain()
	if len(msgs) != 3 {
		t.Fatalf("drain: got %d messages, want 3", len(msgs))
	}
	for i, msg := range msgs {
		want := fmt.Sprintf("t%d", i)
		if msg.topic != want {
			t.Errorf("msg %d: got %q, want %q", i, msg.topic, want)
		}
	}
	if q.len() != 0 {
		t.Errorf("queue not reset after drain: len=%d", q.len())
	}
	if q.drain() != nil {
		t.Error("drain of empty queue should return nil")
	}
}

func TestReplayQueueDropsOldestAtCapacity(t *testing.T) {
	q := newReplayQueue(3)

	for i := 0; i < 5; i++ {
		q.push(queuedMsg{topic: fmt.Sprintf("t%d", i)})
	}
	if q.len() != 3 {
		t.Fatalf("len: got %d, want 3", q.len())
	}

	msgs := q.drain()
	want := []string{"t2", "t3", "t4"}
	for i, msg := range msgs {
		if msg.topic != want[i] {
			t.Errorf("msg %d: got %q, want %q", i, msg.topic, want[i])
		}
	}
}
