package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeStatusReport(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"STATUS","r1":true,"r2":false}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	report, ok := frame.(StatusReport)
	if !ok {
		t.Fatalf("expected StatusReport, got %T", frame)
	}
	if !report.Relay1 {
		t.Error("expected r1=true")
	}
	if report.Relay2 {
		t.Error("expected r2=false")
	}
}

func TestDecodeSensorData(t *testing.T) {
	raw := `{"type":"SENSOR_DATA","voltage":231.5,"current":1.2,"power":277.8,"avg_current":1.1,"avg_power":254.0}`
	frame, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	reading, ok := frame.(SensorData)
	if !ok {
		t.Fatalf("expected SensorData, got %T", frame)
	}
	if reading.Voltage != 231.5 {
		t.Errorf("voltage: got %v, want 231.5", reading.Voltage)
	}
	if reading.AvgPower != 254.0 {
		t.Errorf("avg_power: got %v, want 254.0", reading.AvgPower)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"r1":true}`,
		`{"type":12}`,
		``,
	}
	for _, raw := range cases {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Decode(%q): got %v, want ErrMalformed", raw, err)
		}
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"REBOOT"}`))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("got %v, want ErrUnknownType", err)
	}
}

func TestEncodeCommand(t *testing.T) {
	payload, err := EncodeCommand(2, true)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	var decoded struct {
		Type  string `json:"type"`
		Relay int    `json:"relay"`
		State bool   `json:"state"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeCommand {
		t.Errorf("type: got %q, want %q", decoded.Type, TypeCommand)
	}
	if decoded.Relay != 2 || !decoded.State {
		t.Errorf("got relay=%d state=%v, want relay=2 state=true", decoded.Relay, decoded.State)
	}
}

func TestEncodeSensorUpdateWrapsReading(t *testing.T) {
	payload, err := EncodeSensorUpdate(SensorData{Voltage: 230, Power: 60})
	if err != nil {
		t.Fatalf("EncodeSensorUpdate: %v", err)
	}

	var decoded struct {
		Type string     `json:"type"`
		Data SensorData `json:"data"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypeSensorUpdate {
		t.Errorf("type: got %q, want %q", decoded.Type, TypeSensorUpdate)
	}
	if decoded.Data.Voltage != 230 || decoded.Data.Power != 60 {
		t.Errorf("data round-trip mismatch: %+v", decoded.Data)
	}
}
