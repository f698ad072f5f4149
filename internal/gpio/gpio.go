// Package gpio provides the door contact input and siren output with
// hardware abstraction.
// The real implementations use the Linux GPIO character device (gpiocdev)
// or periph.io. The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Reader reads the door contact.
type Reader interface {
	// Read returns the raw contact level: true = HIGH (door open).
	Read() (bool, error)
}

// Output drives the siren relay.
type Output interface {
	// Set energizes (true) or releases (false) the siren.
	// Relay polarity is handled by the implementation.
	Set(energized bool) error
}

// Device is the pair of lines a door unit needs.
type Device interface {
	Reader
	Output

	// Close releases the siren and GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering) of the reference wiring.
const (
	DefaultPinSensor = 16
	DefaultPinSiren  = 17
)

// Config selects the backend and lines.
type Config struct {
	Backend   string // "gpiocdev" (default) or "periph"
	Chip      string // gpiocdev only
	SensorPin int
	SirenPin  int
}

// Open opens the configured backend. The siren starts released.
func Open(cfg Config) (Device, error) {
	switch cfg.Backend {
	case "", "gpiocdev":
		d, err := NewCdevDevice(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "periph":
		d, err := NewPeriphDevice(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", cfg.Backend)
	}
}
