//go:build linux

package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphDevice drives the door lines through periph.io, for boards where the
// character device is unavailable.
type PeriphDevice struct {
	sensor pgpio.PinIO
	siren  pgpio.PinIO
}

// NewPeriphDevice initialises the periph host and configures both pins.
// Pins are addressed by their BCM numbers.
func NewPeriphDevice(cfg Config) (*PeriphDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	sensor := gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.SensorPin))
	if sensor == nil {
		return nil, fmt.Errorf("sensor pin GPIO%d not found", cfg.SensorPin)
	}
	siren := gpioreg.ByName(fmt.Sprintf("GPIO%d", cfg.SirenPin))
	if siren == nil {
		return nil, fmt.Errorf("siren pin GPIO%d not found", cfg.SirenPin)
	}

	if err := sensor.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure sensor pin: %w", err)
	}
	// Relay is energized by LOW; start released.
	if err := siren.Out(pgpio.High); err != nil {
		return nil, fmt.Errorf("configure siren pin: %w", err)
	}

	return &PeriphDevice{sensor: sensor, siren: siren}, nil
}

// Read returns true when the contact is HIGH (door open).
func (d *PeriphDevice) Read() (bool, error) {
	return d.sensor.Read() == pgpio.High, nil
}

// Set energizes or releases the siren relay.
func (d *PeriphDevice) Set(energized bool) error {
	level := pgpio.High
	if energized {
		level = pgpio.Low
	}
	if err := d.siren.Out(level); err != nil {
		return fmt.Errorf("set siren pin: %w", err)
	}
	return nil
}

// Close releases the siren and halts both pins.
func (d *PeriphDevice) Close() error {
	var errs []error
	if err := d.siren.Out(pgpio.High); err != nil {
		errs = append(errs, fmt.Errorf("release siren: %w", err))
	}
	if err := d.siren.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt siren pin: %w", err))
	}
	if err := d.sensor.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt sensor pin: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
