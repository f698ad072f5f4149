// Package monitor owns the door controller state and drives it one poll
// tick at a time.
//
// All state is mutated from the single control goroutine that calls Tick and
// HandleInbound. Other goroutines observe it through the status tracker.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sweeney/door-sentinel/internal/delivery"
	"github.com/sweeney/door-sentinel/internal/gpio"
	"github.com/sweeney/door-sentinel/internal/logic"
	"github.com/sweeney/door-sentinel/internal/metrics"
	"github.com/sweeney/door-sentinel/internal/mqtt"
	"github.com/sweeney/door-sentinel/internal/protocol"
	"github.com/sweeney/door-sentinel/internal/status"
)

// DefaultFlushRetry is how often a non-empty offline buffer is retried.
const DefaultFlushRetry = 5 * time.Second

// Reporter is the ingest side of the monitor. *delivery.Channel implements it.
type Reporter interface {
	Mode() delivery.Mode
	MarkOnline()
	SendSingle(ctx context.Context, open bool) error
	SendBulk(ctx context.Context, events []logic.PendingEvent) error
}

// Deps are the collaborators of a Monitor. Mirror, Tracker and Metrics are
// optional.
type Deps struct {
	Sensor   gpio.Reader
	Siren    gpio.Output
	Reporter Reporter
	Router   *protocol.Router
	Mirror   mqtt.Publisher
	Tracker  *status.Tracker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Config holds the monitor timings and identity.
type Config struct {
	DoorID         string
	DoorName       string
	Start          time.Time
	Debounce       time.Duration
	Siren          time.Duration
	Heartbeat      time.Duration
	FlushRetry     time.Duration
	BufferCapacity int
	Location       *time.Location // zone for offline timestamps; nil means time.Local
}

// Monitor is the door controller.
type Monitor struct {
	cfg  Config
	deps Deps

	sampler   *logic.Sampler
	timer     *logic.SirenTimer
	buffer    *logic.OfflineBuffer
	heartbeat *logic.Heartbeat

	sirenOn   bool
	lastFlush time.Time
	logger    *slog.Logger
}

// New creates a monitor. The door is assumed closed and the siren released
// until the sensor says otherwise.
func New(deps Deps, cfg Config) *Monitor {
	if cfg.FlushRetry <= 0 {
		cfg.FlushRetry = DefaultFlushRetry
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if deps.Mirror == nil {
		deps.Mirror = mqtt.NopPublisher{}
	}

	m := &Monitor{
		cfg:       cfg,
		deps:      deps,
		sampler:   logic.NewSampler(cfg.Debounce, cfg.Start),
		timer:     logic.NewSirenTimer(cfg.Siren),
		buffer:    logic.NewOfflineBuffer(cfg.BufferCapacity),
		heartbeat: logic.NewHeartbeat(cfg.Heartbeat, cfg.Start),
		lastFlush: cfg.Start,
		logger:    deps.Logger.With("component", "monitor"),
	}
	deps.Router.SetObserver(deps.Metrics.ObserveFrame)
	m.publishStatus()
	return m
}

// DoorState returns the debounced door state.
func (m *Monitor) DoorState() logic.DoorState {
	return m.sampler.State()
}

// Mode returns the ingest connectivity mode.
func (m *Monitor) Mode() delivery.Mode {
	return m.deps.Reporter.Mode()
}

// SirenActive reports whether the siren is energized.
func (m *Monitor) SirenActive() bool {
	return m.timer.Active()
}

// Buffered returns the number of openings waiting for a flush.
func (m *Monitor) Buffered() int {
	return m.buffer.Len()
}

// Tick runs one control cycle at now: sample the sensor, run the siren timer,
// retry a pending flush and send the heartbeat when due.
func (m *Monitor) Tick(ctx context.Context, now time.Time) {
	level, err := m.deps.Sensor.Read()
	if err != nil {
		m.logger.Warn("sensor read failed", "error", err)
	} else if tr, ok := m.sampler.Sample(logic.Reading{Level: level, Time: now}); ok {
		m.onTransition(ctx, tr)
	}

	if m.timer.Tick(now) {
		m.logger.Info("siren released", "after", now.Sub(m.timer.StartedAt()))
	}
	m.driveSiren()

	if m.deps.Reporter.Mode() == delivery.Offline && m.buffer.Len() > 0 &&
		now.Sub(m.lastFlush) >= m.cfg.FlushRetry {
		m.flush(ctx, now)
	}

	if uptime, ok := m.heartbeat.Due(now); ok {
		m.deps.Router.Heartbeat(uptime)
	}

	m.publishStatus()
}

// HandleInbound passes one transport notification to the protocol router.
func (m *Monitor) HandleInbound(in protocol.Inbound) {
	m.deps.Router.Handle(in, m.sampler.State())
	if m.deps.Tracker != nil {
		m.deps.Tracker.SetSocketConnected(m.deps.Router.State() == protocol.Connected)
	}
}

func (m *Monitor) onTransition(ctx context.Context, tr logic.Transition) {
	offline := m.deps.Reporter.Mode() == delivery.Offline
	m.logger.Info("door transition", "state", tr.To, "offline_mode", offline)
	m.deps.Metrics.ObserveTransition(string(tr.To))

	switch tr.To {
	case logic.DoorOpen:
		m.timer.OnDoorOpen(tr.Time)
		m.deps.Metrics.ObserveSirenActivation()
		m.driveSiren()
		if offline {
			m.bufferOpening(tr)
			m.flush(ctx, tr.Time)
		} else {
			m.report(ctx, true)
		}
	case logic.DoorClosed:
		m.timer.OnDoorClose()
		m.driveSiren()
		if offline {
			// Only openings are kept for the bulk report.
			m.logger.Debug("closure not reported while offline")
		} else {
			m.report(ctx, false)
		}
	}

	if err := m.deps.Mirror.Publish(mqtt.DoorEvent{
		Timestamp:   tr.Time,
		DoorID:      m.cfg.DoorID,
		Name:        m.cfg.DoorName,
		State:       tr.To,
		OfflineMode: offline,
	}); err != nil {
		m.logger.Debug("mqtt mirror failed", "error", err)
	}
}

func (m *Monitor) report(ctx context.Context, open bool) {
	start := time.Now()
	err := m.deps.Reporter.SendSingle(ctx, open)
	m.deps.Metrics.ObserveDelivery(metrics.KindSingle, deliveryResult(err), time.Since(start))
	if err != nil {
		m.logger.Warn("report failed, switching to offline mode", "open", open, "error", err)
	}
}

func (m *Monitor) bufferOpening(tr logic.Transition) {
	if m.buffer.Len() == m.buffer.Cap() {
		m.logger.Warn("offline buffer full, overwriting oldest opening", "capacity", m.buffer.Cap())
		m.deps.Metrics.ObserveBufferOverflow()
	}
	m.buffer.Push(logic.PendingEvent{
		Timestamp: logic.FormatTimestamp(tr.Time.In(m.cfg.Location)),
		DoorID:    m.cfg.DoorID,
	})
}

// flush sends every buffered opening in one request. The buffer is cleared
// and the channel promoted to Online only when the request succeeds.
func (m *Monitor) flush(ctx context.Context, now time.Time) {
	m.lastFlush = now
	events := m.buffer.Drain()
	if len(events) == 0 {
		return
	}

	start := time.Now()
	err := m.deps.Reporter.SendBulk(ctx, events)
	m.deps.Metrics.ObserveDelivery(metrics.KindBulk, deliveryResult(err), time.Since(start))
	if err != nil {
		m.logger.Debug("offline flush failed", "pending", len(events), "error", err)
		return
	}

	m.buffer.Clear()
	m.deps.Reporter.MarkOnline()
	m.logger.Info("offline openings delivered, back online", "count", len(events))
}

// driveSiren mirrors the timer onto the output line.
func (m *Monitor) driveSiren() {
	active := m.timer.Active()
	if active == m.sirenOn {
		return
	}
	if err := m.deps.Siren.Set(active); err != nil {
		m.logger.Error("siren output failed", "energize", active, "error", err)
		return
	}
	m.sirenOn = active
	m.deps.Metrics.SetSirenActive(active)
}

func (m *Monitor) publishStatus() {
	online := m.deps.Reporter.Mode() == delivery.Online
	m.deps.Metrics.SetOnline(online)
	m.deps.Metrics.SetBufferDepth(m.buffer.Len())

	if m.deps.Tracker == nil {
		return
	}
	m.deps.Tracker.Update(status.Door{
		State:            m.sampler.State(),
		SirenActive:      m.timer.Active(),
		SirenActivations: m.timer.Activations(),
		Online:           online,
		BufferDepth:      m.buffer.Len(),
		BufferOverflowed: m.buffer.Overflowed(),
		Counts:           m.sampler.Counts(),
	})
}

func deliveryResult(err error) string {
	var rejected *delivery.RejectedError
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &rejected):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
