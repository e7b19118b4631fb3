package mqtt

import "log/slog"

// queuedMsg stores one serialized MQTT message for replay after
// reconnection.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// replayQueue is a fixed-capacity FIFO holding messages produced while the
// broker is unreachable. When full, the oldest message is dropped.
// Not safe for concurrent use — caller must synchronize.
type replayQueue struct {
	msgs    []queuedMsg
	limit   int
	dropped bool // true if any message was dropped since the last drain
}

func newReplayQueue(limit int) *replayQueue {
	return &replayQueue{limit: limit}
}

func (q *replayQueue) push(msg queuedMsg) {
	if len(q.msgs) == q.limit {
		if !q.dropped {
			slog.Warn("mqtt replay queue full, dropping oldest", "limit", q.limit)
			q.dropped = true
		}
		copy(q.msgs, q.msgs[1:])
		q.msgs[len(q.msgs)-1] = msg
		return
	}
	q.msgs = append(q.msgs, msg)
}

// drain returns all queued messages oldest-first and resets the queue.
func (q *replayQueue) drain() []queuedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = nil
	q.dropped = false
	return out
}

func (q *replayQueue) len() int {
	return len(q.msgs)
}
