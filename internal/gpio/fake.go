package gpio

import "errors"

// FakeDevice is a test double that returns scripted contact levels and
// records siren output changes.
type FakeDevice struct {
	// Samples contains scripted contact levels (true = HIGH, door open).
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Siren is the current siren output.
	Siren bool

	// SirenHistory records every value passed to Set.
	SirenHistory []bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeDevice creates a FakeDevice with the given samples.
func NewFakeDevice(samples ...bool) *FakeDevice {
	return &FakeDevice{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeDevice) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Set records the siren output.
func (f *FakeDevice) Set(energized bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Siren = energized
	f.SirenHistory = append(f.SirenHistory, energized)
	return nil
}

// Close marks the device as closed and releases the siren.
func (f *FakeDevice) Close() error {
	f.Closed = true
	f.Siren = false
	return nil
}

// Reset resets the device to the beginning of samples.
func (f *FakeDevice) Reset() {
	f.index = 0
	f.Closed = false
	f.Siren = false
	f.SirenHistory = nil
}
