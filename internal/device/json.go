package device

import "encoding/json"

// snapshotJSON is the wire representation of a Snapshot. Transition times are
// unix milliseconds to stay compatible with existing dashboard and app
// clients, null while a relay is off.
type snapshotJSON struct {
	R1      bool   `json:"r1"`
	R2      bool   `json:"r2"`
	R1Start *int64 `json:"r1Start"`
	R2Start *int64 `json:"r2Start"`
}

// MarshalJSON renders the snapshot in the wire format consumed by viewers.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{R1: s.Relay1.On, R2: s.Relay2.On}
	if s.Relay1.Since != nil {
		ms := s.Relay1.Since.UnixMilli()
		out.R1Start = &ms
	}
	if s.Relay2.Since != nil {
		ms := s.Relay2.Since.UnixMilli()
		out.R2Start = &ms
	}
	return json.Marshal(out)
}
