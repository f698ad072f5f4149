//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// CdevDevice drives the door lines through the Linux GPIO character device.
type CdevDevice struct {
	chip   *gpiocdev.Chip
	sensor *gpiocdev.Line
	siren  *gpiocdev.Line
}

// NewCdevDevice requests the sensor and siren lines on cfg.Chip.
func NewCdevDevice(cfg Config) (*CdevDevice, error) {
	chipName := cfg.Chip
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("door-sentinel"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Contact closes to ground; the pull-up makes an open door read HIGH.
	sensor, err := chip.RequestLine(cfg.SensorPin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request sensor pin %d: %w", cfg.SensorPin, err)
	}

	// The siren relay is energized by a LOW level. Active-low keeps logical
	// 1 = energized and starts the line released (physical HIGH).
	siren, err := chip.RequestLine(cfg.SirenPin, gpiocdev.AsActiveLow, gpiocdev.AsOutput(0))
	if err != nil {
		sensor.Close()
		chip.Close()
		return nil, fmt.Errorf("request siren pin %d: %w", cfg.SirenPin, err)
	}

	return &CdevDevice{
		chip:   chip,
		sensor: sensor,
		siren:  siren,
	}, nil
}

// Read returns true when the contact is HIGH (door open).
func (d *CdevDevice) Read() (bool, error) {
	v, err := d.sensor.Value()
	if err != nil {
		return false, fmt.Errorf("read sensor pin: %w", err)
	}
	return v == 1, nil
}

// Set energizes or releases the siren relay.
func (d *CdevDevice) Set(energized bool) error {
	v := 0
	if energized {
		v = 1
	}
	if err := d.siren.SetValue(v); err != nil {
		return fmt.Errorf("set siren pin: %w", err)
	}
	return nil
}

// Close releases the siren before freeing the lines so a restart never
// leaves it sounding.
func (d *CdevDevice) Close() error {
	var errs []error

	if d.siren != nil {
		if err := d.siren.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release siren: %w", err))
		}
		if err := d.siren.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close siren pin: %w", err))
		}
	}
	if d.sensor != nil {
		if err := d.sensor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor pin: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
