package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/powersense/backend/internal/device"
	"github.com/powersense/backend/internal/hub"
	"github.com/powersense/backend/internal/metrics"
	"github.com/powersense/backend/internal/storage"
)

// TestEndToEnd drives the whole stack over real websockets: a device link
// and a viewer link connect to /ws, the device reports, the viewer sees the
// broadcast, and an HTTP toggle reaches the device as a COMMAND frame while
// the viewer gets the optimistic update.
func TestEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(device.NewStatus(), store, nil, metrics.New(), log)
	srv := New(":0", h, store, nil, log)

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	dial := func(name string) *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", name, err)
		}
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	readFrame := func(conn *websocket.Conn, name string) (string, map[string]any) {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("decode %s frame %q: %v", name, raw, err)
		}
		typ, _ := frame["type"].(string)
		data, _ := frame["data"].(map[string]any)
		if data == nil {
			data = frame
		}
		return typ, data
	}

	dev := dial("device")
	viewer := dial("viewer")

	// Both links receive the snapshot on registration.
	for _, tc := range []struct {
		conn *websocket.Conn
		name string
	}{{dev, "device"}, {viewer, "viewer"}} {
		typ, data := readFrame(tc.conn, tc.name)
		if typ != "STATUS_UPDATE" {
			t.Fatalf("%s greeting: got %q, want STATUS_UPDATE", tc.name, typ)
		}
		if data["r1"] != false || data["r2"] != false {
			t.Fatalf("%s greeting state: %v", tc.name, data)
		}
	}

	// The device reports relay 1 on; the viewer gets the broadcast, the
	// device does not get its own state echoed back.
	if err := dev.WriteMessage(websocket.TextMessage, []byte(`{"type":"STATUS","r1":true,"r2":false}`)); err != nil {
		t.Fatal(err)
	}
	typ, data := readFrame(viewer, "viewer")
	if typ != "STATUS_UPDATE" || data["r1"] != true {
		t.Fatalf("viewer after report: %s %v", typ, data)
	}
	if data["r1Start"] == nil {
		t.Error("r1Start should be set while relay 1 is on")
	}

	// HTTP toggle: the device receives a COMMAND, the viewer the new state.
	resp, err := http.Post(ts.URL+"/api/relays/2/toggle", "application/json", bytes.NewBufferString(`{"state":true}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle status: %d", resp.StatusCode)
	}

	cmdType, cmd := readFrame(dev, "device")
	if cmdType != "COMMAND" || cmd["relay"] != float64(2) || cmd["state"] != true {
		t.Fatalf("device command frame: %s %v", cmdType, cmd)
	}
	updType, update := readFrame(viewer, "viewer")
	if updType != "STATUS_UPDATE" || update["r2"] != true {
		t.Fatalf("viewer after toggle: %s %v", updType, update)
	}

	// A sensor reading lands in the store and reaches the viewer.
	if err := dev.WriteMessage(websocket.TextMessage, []byte(`{"type":"SENSOR_DATA","voltage":230.5,"current":1.2,"power":276.6,"avg_current":1.1,"avg_power":250.3}`)); err != nil {
		t.Fatal(err)
	}
	senType, sensor := readFrame(viewer, "viewer")
	if senType != "SENSOR_UPDATE" || sensor["voltage"] != 230.5 {
		t.Fatalf("viewer sensor frame: %s %v", senType, sensor)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(store.Readings()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("reading never reached the store")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := store.Readings()[0].Power; got != 276.6 {
		t.Errorf("stored power: got %v", got)
	}
}
