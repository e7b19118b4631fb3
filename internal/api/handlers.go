package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/powersense/backend/internal/device"
	"github.com/powersense/backend/internal/hub"
	"github.com/powersense/backend/internal/storage"
	"github.com/powersense/backend/internal/usage"
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "PowerSense Unified Backend is Online!")
}

// handleStatus reports device reachability and the live relay snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Online bool            `json:"online"`
		Data   device.Snapshot `json:"data"`
	}{s.hub.Online(), s.hub.Snapshot()})
}

// handleToggle is the app-facing relay control: POST with {state: bool}.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	relay, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid relay id")
		return
	}

	var body struct {
		State *bool `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.State == nil {
		writeError(w, http.StatusBadRequest, "Invalid body. Expected { state: boolean }")
		return
	}

	s.dispatch(w, relay, *body.State, hub.ActorApp)
}

// handleLegacyRelay is the older web control surface: GET /relay/{id}/{on|off}.
func (s *Server) handleLegacyRelay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	relay, err := strconv.Atoi(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid relay id")
		return
	}

	var state bool
	switch vars["action"] {
	case "on":
		state = true
	case "off":
		state = false
	default:
		writeError(w, http.StatusBadRequest, "Invalid action. Expected on or off")
		return
	}

	s.dispatch(w, relay, state, hub.ActorWeb)
}

// dispatch runs one relay command and translates the hub's error taxonomy
// into HTTP outcomes.
func (s *Server) dispatch(w http.ResponseWriter, relay int, state bool, actor string) {
	switch err := s.hub.Dispatch(relay, state, actor); {
	case err == nil:
		writeJSON(w, http.StatusOK, struct {
			Success  bool `json:"success"`
			NewState bool `json:"newState"`
		}{true, state})
	case errors.Is(err, hub.ErrDeviceOffline):
		writeError(w, http.StatusServiceUnavailable, "Device Offline")
	case errors.Is(err, hub.ErrTransmissionFailed):
		writeError(w, http.StatusInternalServerError, "Transmission Failed")
	default:
		s.log.Error("dispatch failed", "relay", relay, "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// handleUsage reduces the activity log to per-relay on-time over the
// requested look-back window.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	hours, err := intervalParam(r, "interval", 24)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid interval parameter."})
		return
	}

	now := time.Now()
	since := now.Add(-time.Duration(hours) * time.Hour)

	totals := make(map[string]float64, 2)
	for _, relay := range []int{device.Relay1, device.Relay2} {
		events, err := s.store.ActivityEvents(r.Context(), relay, since)
		if err != nil {
			s.log.Error("activity query failed", "relay", relay, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to compute usage."})
			return
		}
		totals[fmt.Sprintf("relay%d", relay)] = usage.Hours(usage.ActiveDuration(events, now))
	}
	writeJSON(w, http.StatusOK, totals)
}

// handleSensorData serves the dashboard graphs: latest metrics plus
// per-metric history series.
func (s *Server) handleSensorData(w http.ResponseWriter, r *http.Request) {
	hours, err := intervalParam(r, "interval", 24)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid interval parameter."})
		return
	}

	history, err := s.store.ReadingHistory(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		s.log.Error("reading history failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to retrieve sensor data."})
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleAvgPower serves the mean instantaneous power over a period given
// in minutes. The period is required.
func (s *Server) handleAvgPower(w http.ResponseWriter, r *http.Request) {
	minutes, err := strconv.Atoi(r.URL.Query().Get("period"))
	if err != nil || minutes <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid period parameter."})
		return
	}

	avg, err := s.store.AveragePower(r.Context(), time.Duration(minutes)*time.Minute)
	if err != nil {
		s.log.Error("average power query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to retrieve specific average power data."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"avgPower": avg})
}

// latestJSON is the shape the mobile app expects for its SensorData class.
type latestJSON struct {
	Voltage   float64 `json:"voltage"`
	Current   float64 `json:"current"`
	Power     float64 `json:"power"`
	Energy    float64 `json:"energy"`
	Timestamp string  `json:"timestamp"`
}

// handleLatest serves the most recent reading in the mobile app's shape.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading, err := s.store.LatestReading(r.Context())
	if errors.Is(err, storage.ErrNoReadings) {
		writeJSON(w, http.StatusOK, latestJSON{})
		return
	}
	if err != nil {
		s.log.Error("latest reading query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Failed to fetch android sensor data"})
		return
	}

	writeJSON(w, http.StatusOK, latestJSON{
		Voltage: reading.Voltage,
		Current: reading.Current,
		Power:   reading.Power,
		// The app renders avg power in its energy slot until the firmware
		// reports kWh directly.
		Energy:    reading.AvgPower,
		Timestamp: reading.Timestamp.UTC().Format(time.RFC3339),
	})
}

// relayJSON describes one relay in the hardwired catalog.
type relayJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsOn        bool   `json:"isOn"`
}

// handleRelayList returns the hardwired relay catalog with live states, a
// fallback for clients that keep their own switch definitions elsewhere.
func (s *Server) handleRelayList(w http.ResponseWriter, _ *http.Request) {
	snap := s.hub.Snapshot()
	writeJSON(w, http.StatusOK, []relayJSON{
		{ID: "1", Name: "Living Room", Description: "Main Light", IsOn: snap.Relay1.On},
		{ID: "2", Name: "Bedroom", Description: "Fan", IsOn: snap.Relay2.On},
	})
}

// intervalParam parses a positive integer query parameter with a default.
func intervalParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s parameter %q", name, raw)
	}
	return v, nil
}
