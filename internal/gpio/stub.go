//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevDevice is not available on non-Linux platforms.
type CdevDevice struct{}

// NewCdevDevice returns an error on non-Linux platforms.
func NewCdevDevice(Config) (*CdevDevice, error) {
	return nil, errUnsupported
}

func (d *CdevDevice) Read() (bool, error) { return false, errUnsupported }
func (d *CdevDevice) Set(bool) error      { return errUnsupported }
func (d *CdevDevice) Close() error        { return nil }

// PeriphDevice is not available on non-Linux platforms.
type PeriphDevice struct{}

// NewPeriphDevice returns an error on non-Linux platforms.
func NewPeriphDevice(Config) (*PeriphDevice, error) {
	return nil, errUnsupported
}

func (d *PeriphDevice) Read() (bool, error) { return false, errUnsupported }
func (d *PeriphDevice) Set(bool) error      { return errUnsupported }
func (d *PeriphDevice) Close() error        { return nil }
