// Package mqtt republishes hub telemetry and relay transitions to an MQTT
// broker, with abstraction for testing. The bridge is optional; the hub
// works without it.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/powersense/backend/internal/storage"
)

// TopicTelemetry carries sensor readings.
const TopicTelemetry = "powersense/telemetry"

// TopicRelay returns the state topic for one relay.
func TopicRelay(relay int) string {
	return fmt.Sprintf("powersense/relay/%d/state", relay)
}

// Publisher publishes hub events to MQTT.
type Publisher interface {
	// PublishReading sends one sensor reading to the broker.
	// Returns error if publishing fails (must not crash the hub).
	PublishReading(r storage.Reading) error

	// PublishRelay sends one relay transition to the broker.
	PublishRelay(ev storage.ActivityEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TelemetryPayload is the MQTT message payload for a sensor reading.
type TelemetryPayload struct {
	Telemetry TelemetryInner `json:"telemetry"`
}

// TelemetryInner contains the reading details.
type TelemetryInner struct {
	Timestamp  string  `json:"timestamp"`
	Voltage    float64 `json:"voltage"`
	Current    float64 `json:"current"`
	Power      float64 `json:"power"`
	AvgCurrent float64 `json:"avg_current"`
	AvgPower   float64 `json:"avg_power"`
}

// FormatReadingPayload creates the JSON payload for a sensor reading.
func FormatReadingPayload(r storage.Reading) ([]byte, error) {
	payload := TelemetryPayload{
		Telemetry: TelemetryInner{
			Timestamp:  r.Timestamp.UTC().Format(time.RFC3339),
			Voltage:    r.Voltage,
			Current:    r.Current,
			Power:      r.Power,
			AvgCurrent: r.AvgCurrent,
			AvgPower:   r.AvgPower,
		},
	}
	return json.Marshal(payload)
}

// RelayPayload is the MQTT message payload for a relay transition.
type RelayPayload struct {
	Relay RelayInner `json:"relay"`
}

// RelayInner contains the transition details.
type RelayInner struct {
	Timestamp string `json:"timestamp"`
	ID        int    `json:"id"`
	State     string `json:"state"`
	Actor     string `json:"actor"`
}

// FormatRelayPayload creates the JSON payload for a relay transition.
func FormatRelayPayload(ev storage.ActivityEvent) ([]byte, error) {
	state := "OFF"
	if ev.On {
		state = "ON"
	}
	payload := RelayPayload{
		Relay: RelayInner{
			Timestamp: ev.At.UTC().Format(time.RFC3339),
			ID:        ev.Relay,
			State:     state,
			Actor:     ev.Actor,
		},
	}
	return json.Marshal(payload)
}
