// Command door-sentinel watches an emergency door contact, sounds a siren on
// opening and reports door events to the ingest server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sweeney/door-sentinel/internal/config"
	"github.com/sweeney/door-sentinel/internal/delivery"
	"github.com/sweeney/door-sentinel/internal/gpio"
	"github.com/sweeney/door-sentinel/internal/logging"
	"github.com/sweeney/door-sentinel/internal/logic"
	"github.com/sweeney/door-sentinel/internal/metrics"
	"github.com/sweeney/door-sentinel/internal/monitor"
	"github.com/sweeney/door-sentinel/internal/mqtt"
	"github.com/sweeney/door-sentinel/internal/protocol"
	"github.com/sweeney/door-sentinel/internal/socketio"
	"github.com/sweeney/door-sentinel/internal/status"
	"github.com/sweeney/door-sentinel/internal/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty for defaults)")
	printState := flag.Bool("print-state", false, "Print current door state and exit")

	flag.Parse()

	if err := run(*configPath, *printState); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, printState bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, cfg.Door.ID)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	dev, err := gpio.Open(gpio.Config{
		Backend:   cfg.GPIO.Backend,
		Chip:      cfg.GPIO.Chip,
		SensorPin: cfg.GPIO.SensorPin,
		SirenPin:  cfg.GPIO.SirenPin,
	})
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer dev.Close()

	if printState {
		level, err := dev.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("door %s: %s\n", cfg.Door.ID, logic.StateFromLevel(level))
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	m := metrics.New()
	tracker := status.NewTracker(start, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		rp, err := mqtt.NewRealPublisher(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			DoorID:   cfg.Door.ID,
		}, logger)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = rp, rp
	}
	defer publisher.Close()

	channel := delivery.New(delivery.Config{
		URL:     cfg.Ingest.URL,
		DoorID:  cfg.Door.ID,
		Timeout: cfg.Ingest.Timeout,
	}, delivery.LinkFunc(networkUp), &http.Client{})

	var emitter protocol.Emitter = noSocket{}
	var inbound <-chan protocol.Inbound
	if cfg.Socket.URL != "" {
		client := socketio.New(socketio.Config{
			URL:            cfg.Socket.URL,
			ReconnectDelay: cfg.Socket.ReconnectDelay,
			WriteTimeout:   cfg.Socket.WriteTimeout,
		}, logger)
		go client.Run(ctx)
		emitter, inbound = client, client.Inbound()
	} else {
		logger.Warn("socket.url empty, event protocol disabled")
	}

	mon := monitor.New(monitor.Deps{
		Sensor:   dev,
		Siren:    dev,
		Reporter: channel,
		Router:   protocol.NewRouter(cfg.Door.ID, cfg.Door.Name, emitter, logger),
		Mirror:   publisher,
		Tracker:  tracker,
		Metrics:  m,
		Logger:   logger,
	}, monitor.Config{
		DoorID:         cfg.Door.ID,
		DoorName:       cfg.Door.Name,
		Start:          start,
		Debounce:       cfg.Timing.Debounce,
		Siren:          cfg.Timing.Siren,
		Heartbeat:      cfg.Timing.Heartbeat,
		FlushRetry:     cfg.Timing.FlushRetry,
		BufferCapacity: logic.DefaultBufferCapacity,
		Location:       loc,
	})

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		logger.Warn("failed to publish startup event", "error", err)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, m.Handler(), logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer stopServer(srv, 2*time.Second, logger)
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("started",
		"door_name", cfg.Door.Name,
		"poll", cfg.Timing.Poll,
		"debounce", cfg.Timing.Debounce,
		"siren", cfg.Timing.Siren,
		"ingest", cfg.Ingest.URL,
		"socket", cfg.Socket.URL,
		"broker", cfg.MQTT.Broker,
	)

	ticker := time.NewTicker(cfg.Timing.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctx, loop{
		monitor:       mon,
		publisher:     publisher,
		mqttStatus:    mqttStatus,
		tracker:       tracker,
		mqttHeartbeat: cfg.MQTT.Heartbeat,
		logger:        logger,
		now:           time.Now,
	}, ticker.C, inbound, sigCh)
}

// loop holds what runLoop needs besides its channels.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func stopServer(srv shutdowner, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http server shutdown failed", "error", err)
	}
}

type loop struct {
	monitor       *monitor.Monitor
	publisher     mqtt.Publisher
	mqttStatus    mqtt.ConnectionStatus
	tracker       *status.Tracker
	mqttHeartbeat time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// runLoop is the single control goroutine: every poll tick and every inbound
// protocol notification is applied to the monitor here.
func runLoop(ctx context.Context, l loop, tick <-chan time.Time, inbound <-chan protocol.Inbound, sig <-chan os.Signal) error {
	heartbeat := logic.NewHeartbeat(l.mqttHeartbeat, l.now())

	for {
		select {
		case s := <-sig:
			l.logger.Info("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
			snap := l.tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  l.now(),
				Event:      mqtt.EventShutdown,
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, mqtt.EventShutdown, signalName),
			}
			if err := l.publisher.PublishSystem(event); err != nil {
				l.logger.Warn("failed to publish shutdown event", "error", err)
			}
			return nil

		case in, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			l.monitor.HandleInbound(in)

		case <-tick:
			t := l.now()
			l.monitor.Tick(ctx, t)
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())

			if _, due := heartbeat.Due(t); due {
				if net := readNetworkInfo(); net != nil {
					l.tracker.SetNetwork(net)
				}
				snap := l.tracker.Snapshot()
				if err := l.publisher.PublishSystem(mqtt.SystemEvent{
					Timestamp:  t,
					Event:      mqtt.EventHeartbeat,
					RawPayload: status.FormatStatusEvent(snap, mqtt.EventHeartbeat, ""),
				}); err != nil {
					l.logger.Debug("heartbeat publish failed", "error", err)
				}
			}
		}
	}
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		DoorID:      cfg.Door.ID,
		DoorName:    cfg.Door.Name,
		PollMs:      cfg.Timing.Poll.Milliseconds(),
		DebounceMs:  cfg.Timing.Debounce.Milliseconds(),
		SirenMs:     cfg.Timing.Siren.Milliseconds(),
		HeartbeatMs: cfg.Timing.Heartbeat.Milliseconds(),
		IngestURL:   cfg.Ingest.URL,
		SocketURL:   cfg.Socket.URL,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	}
}

// noSocket is the emitter used when the event protocol is disabled.
type noSocket struct{}

func (noSocket) Handshake() error  { return protocol.ErrTransportDown }
func (noSocket) Emit([]byte) error { return protocol.ErrTransportDown }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// networkUp is the delivery link check. An absent status counts as up.
func networkUp() bool {
	switch strings.ToLower(os.Getenv(envNetworkStatus)) {
	case "disconnected", "down", "offline":
		return false
	default:
		return true
	}
}
