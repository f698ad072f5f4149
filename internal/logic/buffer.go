package logic

// DefaultBufferCapacity is the number of offline openings kept in memory.
const DefaultBufferCapacity = 20

// OfflineBuffer is a fixed-capacity ring of openings awaiting bulk delivery.
// Once full, each push overwrites the oldest slot.
// Not safe for concurrent use.
type OfflineBuffer struct {
	buf      []PendingEvent
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any event was overwritten since last clear
}

// NewOfflineBuffer creates an empty buffer. A non-positive capacity means
// DefaultBufferCapacity.
func NewOfflineBuffer(capacity int) *OfflineBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &OfflineBuffer{
		buf:      make([]PendingEvent, capacity),
		capacity: capacity,
	}
}

// Push stores ev at the write index and advances it modulo capacity.
func (b *OfflineBuffer) Push(ev PendingEvent) {
	if b.count == b.capacity {
		b.overflow = true
	} else {
		b.count++
	}
	b.buf[b.head] = ev
	b.head = (b.head + 1) % b.capacity
}

// Drain returns the occupied slots oldest first. The buffer is not modified.
func (b *OfflineBuffer) Drain() []PendingEvent {
	if b.count == 0 {
		return nil
	}

	result := make([]PendingEvent, 0, b.count)
	// Oldest item is at (head - count) mod capacity
	start := (b.head - b.count + b.capacity) % b.capacity
	for i := 0; i < b.count; i++ {
		result = append(result, b.buf[(start+i)%b.capacity])
	}
	return result
}

// Clear empties every slot.
func (b *OfflineBuffer) Clear() {
	for i := range b.buf {
		b.buf[i] = PendingEvent{}
	}
	b.head = 0
	b.count = 0
	b.overflow = false
}

// Len returns the number of occupied slots.
func (b *OfflineBuffer) Len() int {
	return b.count
}

// Cap returns the buffer capacity.
func (b *OfflineBuffer) Cap() int {
	return b.capacity
}

// Overflowed reports whether any event was overwritten since the last Clear.
func (b *OfflineBuffer) Overflowed() bool {
	return b.overflow
}
