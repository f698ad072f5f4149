package protocol

// FakeEmitter records outbound traffic for test assertions.
type FakeEmitter struct {
	// Handshakes counts Handshake calls.
	Handshakes int

	// Frames contains every emitted frame.
	Frames [][]byte

	// EmitError, if set, will be returned by Emit.
	EmitError error

	// HandshakeError, if set, will be returned by Handshake.
	HandshakeError error
}

// Handshake records the acknowledgment.
func (f *FakeEmitter) Handshake() error {
	if f.HandshakeError != nil {
		return f.HandshakeError
	}
	f.Handshakes++
	return nil
}

// Emit records the frame.
func (f *FakeEmitter) Emit(frame []byte) error {
	if f.EmitError != nil {
		return f.EmitError
	}
	f.Frames = append(f.Frames, append([]byte(nil), frame...))
	return nil
}

// Reset clears recorded traffic.
func (f *FakeEmitter) Reset() {
	f.Handshakes = 0
	f.Frames = nil
	f.EmitError = nil
	f.HandshakeError = nil
}
