// Package hub bridges the single device websocket link with any number of
// viewer links. It owns the connection registry, role resolution, the
// liveness monitor, command dispatch, and status fan-out.
//
// All registry and relay-state mutation is serialized behind one mutex;
// transport writes happen outside it so a slow connection never stalls the
// control path.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/powersense/backend/internal/device"
	"github.com/powersense/backend/internal/metrics"
	"github.com/powersense/backend/internal/mqtt"
	"github.com/powersense/backend/internal/protocol"
	"github.com/powersense/backend/internal/storage"
)

// ErrDeviceOffline is returned by Dispatch when no device link is bound.
var ErrDeviceOffline = errors.New("device offline")

// ErrTransmissionFailed is returned by Dispatch when the command frame
// cannot be written to the device link. Relay state is left unchanged.
var ErrTransmissionFailed = errors.New("transmission failed")

// Actor strings recorded in the activity log.
const (
	ActorWeb    = "Web"
	ActorApp    = "App"
	ActorDevice = "Device"
)

// DefaultProbeInterval is the liveness probe period. A connection survives
// at most two intervals without a pong before eviction.
const DefaultProbeInterval = 5 * time.Second

// How long a storage write on the live path may take before being abandoned.
const storeTimeout = 5 * time.Second

// Conn is the transport side of one registered connection.
type Conn interface {
	// WriteMessage writes one complete text frame.
	WriteMessage(data []byte) error

	// Ping sends a liveness probe control frame.
	Ping() error

	// Close tears down the transport.
	Close() error
}

// Client is one registered connection and its hub-side bookkeeping. The
// role starts unknown; the first STATUS frame a connection sends binds it
// as the device.
type Client struct {
	ID   string
	conn Conn

	// alive is cleared by each probe and set again only by a pong.
	// Guarded by the hub mutex.
	alive bool
}

// Hub tracks all open connections and the relay state they converge on.
type Hub struct {
	log    *slog.Logger
	status *device.Status
	store  storage.Store
	pub    mqtt.Publisher // nil when the bridge is disabled
	mt     *metrics.Metrics
	now    func() time.Time

	mu      sync.Mutex
	clients map[*Client]struct{}
	device  *Client // at most one; nil when no device link is bound
}

// New creates a Hub. The publisher may be nil to disable the MQTT bridge.
func New(status *device.Status, store storage.Store, pub mqtt.Publisher, mt *metrics.Metrics, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log.With("component", "hub"),
		status:  status,
		store:   store,
		pub:     pub,
		mt:      mt,
		now:     time.Now,
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a connection with no role and immediately sends it the
// current relay snapshot, so new viewers render real state without waiting
// for the next change.
func (h *Hub) Register(conn Conn) *Client {
	c := &Client{ID: uuid.NewString(), conn: conn, alive: true}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.mt.Connections.Set(float64(total))

	if payload, err := protocol.EncodeStatusUpdate(h.status.Snapshot()); err == nil {
		if err := conn.WriteMessage(payload); err != nil {
			h.log.Debug("initial status write failed", "client", c.ID, "err", err)
		}
	}

	h.log.Info("connection registered", "client", c.ID, "connections", total)
	return c
}

// Unregister removes a connection, clearing the device binding if it held
// it. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	wasDevice := h.device == c
	if wasDevice {
		h.device = nil
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.mt.Connections.Set(float64(total))

	if wasDevice {
		h.log.Info("device disconnected", "client", c.ID)
	} else {
		h.log.Info("connection unregistered", "client", c.ID, "connections", total)
	}
}

// Pong marks a connection as alive. This is the only way the liveness flag
// is ever set back.
func (h *Hub) Pong(c *Client) {
	h.mu.Lock()
	c.alive = true
	h.mu.Unlock()
}

// Online reports whether a device link is currently bound.
func (h *Hub) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.device != nil
}

// Snapshot returns the current relay state.
func (h *Hub) Snapshot() device.Snapshot {
	return h.status.Snapshot()
}

// HandleMessage processes one inbound frame from a registered connection.
// Malformed and unknown frames are dropped silently — a corrupt reading
// must not tear down the link.
func (h *Hub) HandleMessage(c *Client, data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		h.mt.FramesTotal.WithLabelValues("dropped").Inc()
		h.log.Debug("dropping frame", "client", c.ID, "err", err)
		return
	}

	switch f := frame.(type) {
	case protocol.StatusReport:
		h.mt.FramesTotal.WithLabelValues(protocol.TypeStatus).Inc()
		h.handleStatus(c, f)
	case protocol.SensorData:
		h.mt.FramesTotal.WithLabelValues(protocol.TypeSensorData).Inc()
		h.handleSensor(c, f)
	}
}

// handleStatus binds the sender as the device and applies its report as
// ground truth. Binding displaces any prior holder; the old connection
// stays registered as an ordinary viewer-grade socket.
func (h *Hub) handleStatus(c *Client, f protocol.StatusReport) {
	now := h.now()

	h.mu.Lock()
	if h.device != c {
		if h.device != nil {
			h.log.Info("device binding moved", "from", h.device.ID, "to", c.ID)
		} else {
			h.log.Info("device connected", "client", c.ID)
		}
		h.device = c
	}
	changed := h.status.ApplyReport(f.Relay1, f.Relay2, now)
	h.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	h.broadcastStatus(c)
	for _, relay := range changed {
		on := f.Relay1
		if relay == device.Relay2 {
			on = f.Relay2
		}
		h.recordActivity(storage.ActivityEvent{Relay: relay, On: on, Actor: ActorDevice, At: now})
	}
}

// handleSensor stores the reading and fans it out to everyone but the
// device that reported it.
func (h *Hub) handleSensor(c *Client, f protocol.SensorData) {
	reading := storage.Reading{
		Timestamp:  h.now(),
		Voltage:    f.Voltage,
		Current:    f.Current,
		Power:      f.Power,
		AvgCurrent: f.AvgCurrent,
		AvgPower:   f.AvgPower,
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := h.store.SaveReading(ctx, reading); err != nil {
		h.log.Error("save reading failed", "err", err)
	}
	cancel()

	if h.pub != nil {
		if err := h.pub.PublishReading(reading); err != nil {
			h.log.Warn("mqtt telemetry publish failed", "err", err)
		}
	}

	payload, err := protocol.EncodeSensorUpdate(f)
	if err != nil {
		h.log.Error("encode sensor update failed", "err", err)
		return
	}
	h.fanOut(payload, c)
}

// Dispatch forwards a relay command to the device link, applies the
// optimistic update, and fans out the new state. It blocks only on the
// transport hand-off — the device's next STATUS report is the only
// confirmation channel.
func (h *Hub) Dispatch(relay int, state bool, actor string) error {
	payload, err := protocol.EncodeCommand(relay, state)
	if err != nil {
		return err
	}

	h.mu.Lock()
	dev := h.device
	h.mu.Unlock()
	if dev == nil {
		h.mt.CommandsTotal.WithLabelValues(metrics.OutcomeOffline).Inc()
		return ErrDeviceOffline
	}

	if err := dev.conn.WriteMessage(payload); err != nil {
		h.mt.CommandsTotal.WithLabelValues(metrics.OutcomeTransmission).Inc()
		h.log.Warn("command write failed", "relay", relay, "err", err)
		return errors.Join(ErrTransmissionFailed, err)
	}
	h.mt.CommandsTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	now := h.now()
	h.mu.Lock()
	changed := h.status.ApplyCommand(relay, state, now)
	h.mu.Unlock()

	if !changed {
		return nil
	}

	h.broadcastStatus(dev)
	h.recordActivity(storage.ActivityEvent{Relay: relay, On: state, Actor: actor, At: now})
	return nil
}

// broadcastStatus serializes the current snapshot once and fans it out to
// every connection except the excluded one.
func (h *Hub) broadcastStatus(exclude *Client) {
	payload, err := protocol.EncodeStatusUpdate(h.status.Snapshot())
	if err != nil {
		h.log.Error("encode status update failed", "err", err)
		return
	}
	h.fanOut(payload, exclude)
}

// fanOut writes one payload to every registered connection except the
// excluded one. Delivery is best-effort: a failed write is logged and the
// remaining targets still receive the payload.
func (h *Hub) fanOut(payload []byte, exclude *Client) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.conn.WriteMessage(payload); err != nil {
			h.log.Debug("broadcast write failed", "client", c.ID, "err", err)
		}
	}
	h.mt.BroadcastsTotal.Inc()
}

// recordActivity appends one transition to the activity log and mirrors it
// to the MQTT bridge. Failures are logged, never propagated — losing a log
// entry must not break the live path.
func (h *Hub) recordActivity(ev storage.ActivityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.AppendActivity(ctx, ev); err != nil {
		h.log.Error("append activity failed", "relay", ev.Relay, "err", err)
	}

	if h.pub != nil {
		if err := h.pub.PublishRelay(ev); err != nil {
			h.log.Warn("mqtt relay publish failed", "relay", ev.Relay, "err", err)
		}
	}
}

// Run drives the liveness monitor until the context is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probe()
		}
	}
}

// probe performs one liveness pass: connections that never acknowledged the
// previous probe are closed and unregistered, the rest get their flag
// cleared and a fresh ping.
func (h *Hub) probe() {
	h.mu.Lock()
	var dead, live []*Client
	for c := range h.clients {
		if !c.alive {
			dead = append(dead, c)
		} else {
			c.alive = false
			live = append(live, c)
		}
	}
	h.mu.Unlock()

	for _, c := range dead {
		h.log.Info("evicting unresponsive connection", "client", c.ID)
		_ = c.conn.Close()
		h.Unregister(c)
		h.mt.EvictionsTotal.Inc()
	}

	for _, c := range live {
		if err := c.conn.Ping(); err != nil {
			h.log.Debug("ping failed", "client", c.ID, "err", err)
		}
	}
}
