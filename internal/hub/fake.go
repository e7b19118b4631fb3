package hub

import "errors"

// FakeConn is a scriptable Conn for tests. It records every frame written
// to it.
type FakeConn struct {
	// Messages contains all frames written to the connection.
	Messages [][]byte

	// Pings counts liveness probes sent to the connection.
	Pings int

	// Closed tracks if Close was called.
	Closed bool

	// WriteError, if set, is returned by WriteMessage.
	WriteError error

	// PingError, if set, is returned by Ping.
	PingError error
}

// NewFakeConn creates a FakeConn for testing.
func NewFakeConn() *FakeConn {
	return &FakeConn{}
}

// WriteMessage records the frame.
func (f *FakeConn) WriteMessage(data []byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.Closed {
		return errors.New("write on closed connection")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.Messages = append(f.Messages, buf)
	return nil
}

// Ping records the probe.
func (f *FakeConn) Ping() error {
	if f.PingError != nil {
		return f.PingError
	}
	f.Pings++
	return nil
}

// Close marks the connection as closed.
func (f *FakeConn) Close() error {
	f.Closed = true
	return nil
}

// LastMessage returns the most recent frame, or nil.
func (f *FakeConn) LastMessage() []byte {
	if len(f.Messages) == 0 {
		return nil
	}
	return f.Messages[len(f.Messages)-1]
}
