// Package config loads the door-sentinel configuration.
//
// Configuration comes from built-in defaults, optionally overlaid by a YAML
// file, then by DOOR_SENTINEL_* environment variables. The result is validated
// before use.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo for clock.timezone

	"gopkg.in/yaml.v3"

	"github.com/sweeney/door-sentinel/internal/gpio"
)

// Config is the root configuration structure.
type Config struct {
	Door    DoorConfig    `yaml:"door"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Timing  TimingConfig  `yaml:"timing"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Socket  SocketConfig  `yaml:"socket"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Clock   ClockConfig   `yaml:"clock"`
	Logging LoggingConfig `yaml:"logging"`
}

// DoorConfig identifies this unit on the shared event bus.
type DoorConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// GPIOConfig selects the GPIO backend and lines.
type GPIOConfig struct {
	Backend   string `yaml:"backend"` // "gpiocdev" or "periph"
	Chip      string `yaml:"chip"`
	SensorPin int    `yaml:"sensor_pin"`
	SirenPin  int    `yaml:"siren_pin"`
}

// TimingConfig holds the control loop durations.
type TimingConfig struct {
	Poll       time.Duration `yaml:"poll"`
	Debounce   time.Duration `yaml:"debounce"`
	Siren      time.Duration `yaml:"siren"`
	Heartbeat  time.Duration `yaml:"heartbeat"`
	FlushRetry time.Duration `yaml:"flush_retry"`
}

// IngestConfig is the HTTP report endpoint.
type IngestConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SocketConfig is the real-time event connection.
type SocketConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// MQTTConfig configures the optional state mirror. An empty broker disables it.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"` // status snapshot interval, 0 disables
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// ClockConfig configures the wall clock used for offline timestamps.
type ClockConfig struct {
	Timezone string `yaml:"timezone"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load returns the default configuration overlaid with the YAML file at path
// (skipped when path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the reference deployment configuration.
func Default() *Config {
	return &Config{
		Door: DoorConfig{
			ID:   "2",
			Name: "Emergency Gate Dock",
		},
		GPIO: GPIOConfig{
			Backend:   "gpiocdev",
			Chip:      "gpiochip0",
			SensorPin: gpio.DefaultPinSensor,
			SirenPin:  gpio.DefaultPinSiren,
		},
		Timing: TimingConfig{
			Poll:       10 * time.Millisecond,
			Debounce:   50 * time.Millisecond,
			Siren:      10 * time.Second,
			Heartbeat:  5 * time.Second,
			FlushRetry: 5 * time.Second,
		},
		Ingest: IngestConfig{
			URL:     "http://localhost:3028/portao_emerg",
			Timeout: 2 * time.Second,
		},
		Socket: SocketConfig{
			URL:            "ws://localhost:3028/socket.io/?EIO=4&transport=websocket",
			ReconnectDelay: 5 * time.Second,
			WriteTimeout:   time.Second,
		},
		MQTT: MQTTConfig{
			ClientID:  "door-sentinel",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Clock: ClockConfig{
			Timezone: "Local",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides.
// Variables follow the pattern DOOR_SENTINEL_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOOR_SENTINEL_DOOR_ID"); v != "" {
		cfg.Door.ID = v
	}
	if v := os.Getenv("DOOR_SENTINEL_INGEST_URL"); v != "" {
		cfg.Ingest.URL = v
	}
	if v := os.Getenv("DOOR_SENTINEL_SOCKET_URL"); v != "" {
		cfg.Socket.URL = v
	}
	if v := os.Getenv("DOOR_SENTINEL_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("DOOR_SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Door.ID == "" {
		errs = append(errs, "door.id is required")
	}

	switch c.GPIO.Backend {
	case "gpiocdev", "periph":
	default:
		errs = append(errs, fmt.Sprintf("gpio.backend %q must be gpiocdev or periph", c.GPIO.Backend))
	}
	if c.GPIO.SensorPin < 0 || c.GPIO.SirenPin < 0 {
		errs = append(errs, "gpio pins must not be negative")
	}
	if c.GPIO.SensorPin == c.GPIO.SirenPin {
		errs = append(errs, "gpio.sensor_pin and gpio.siren_pin must differ")
	}

	if c.Timing.Poll <= 0 {
		errs = append(errs, "timing.poll must be positive")
	}
	if c.Timing.Debounce < 0 {
		errs = append(errs, "timing.debounce must not be negative")
	}
	if c.Timing.Siren <= 0 {
		errs = append(errs, "timing.siren must be positive")
	}
	if c.Timing.FlushRetry <= 0 {
		errs = append(errs, "timing.flush_retry must be positive")
	}

	if err := checkURL(c.Ingest.URL, "http", "https"); err != nil {
		errs = append(errs, "ingest.url: "+err.Error())
	}
	if c.Ingest.Timeout <= 0 {
		errs = append(errs, "ingest.timeout must be positive")
	}

	if c.MQTT.Heartbeat < 0 {
		errs = append(errs, "mqtt.heartbeat must not be negative")
	}

	if c.Socket.URL != "" {
		if err := checkURL(c.Socket.URL, "ws", "wss"); err != nil {
			errs = append(errs, "socket.url: "+err.Error())
		}
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, "clock.timezone: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the time zone used for wall-clock timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Clock.Timezone == "" || c.Clock.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Clock.Timezone)
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
}
