// Package protocol defines the JSON wire frames exchanged over the persistent
// websocket link between the device, the hub, and viewer clients.
//
// Inbound frames form a closed union keyed by the "type" field. Anything that
// does not decode into a known variant is dropped by the caller — a single
// corrupt reading must never tear down the device link.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame type tags as they appear on the wire.
const (
	TypeStatus       = "STATUS"
	TypeSensorData   = "SENSOR_DATA"
	TypeCommand      = "COMMAND"
	TypeStatusUpdate = "STATUS_UPDATE"
	TypeSensorUpdate = "SENSOR_UPDATE"
)

// ErrMalformed reports a frame that is not valid JSON or has no type field.
var ErrMalformed = errors.New("malformed frame")

// ErrUnknownType reports a syntactically valid frame of a type the hub does
// not consume.
var ErrUnknownType = errors.New("unknown frame type")

// Frame is a decoded inbound wire frame. The concrete type is one of
// StatusReport or SensorData.
type Frame interface {
	frameType() string
}

// StatusReport is the device's full relay snapshot.
type StatusReport struct {
	Relay1 bool `json:"r1"`
	Relay2 bool `json:"r2"`
}

func (StatusReport) frameType() string { return TypeStatus }

// SensorData is one electrical reading reported by the device.
type SensorData struct {
	Voltage    float64 `json:"voltage"`
	Current    float64 `json:"current"`
	Power      float64 `json:"power"`
	AvgCurrent float64 `json:"avg_current"`
	AvgPower   float64 `json:"avg_power"`
}

func (SensorData) frameType() string { return TypeSensorData }

// Decode parses one inbound frame. It returns ErrMalformed for invalid JSON
// or a missing type tag, and ErrUnknownType for tags outside the union.
func Decode(data []byte) (Frame, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch probe.Type {
	case TypeStatus:
		var f StatusReport
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return f, nil
	case TypeSensorData:
		var f SensorData
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return f, nil
	case "":
		return nil, fmt.Errorf("%w: missing type field", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, probe.Type)
	}
}

// EncodeCommand serializes a COMMAND frame for the device link.
func EncodeCommand(relay int, state bool) ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Relay int    `json:"relay"`
		State bool   `json:"state"`
	}{TypeCommand, relay, state})
}

// EncodeStatusUpdate wraps a relay snapshot for fan-out to viewers.
func EncodeStatusUpdate(snapshot any) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{TypeStatusUpdate, snapshot})
}

// EncodeSensorUpdate wraps a telemetry reading for fan-out to viewers.
func EncodeSensorUpdate(reading SensorData) ([]byte, error) {
	return json.Marshal(struct {
		Type string     `json:"type"`
		Data SensorData `json:"data"`
	}{TypeSensorUpdate, reading})
}
