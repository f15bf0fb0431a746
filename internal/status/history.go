package status

import "time"

// HistorySize is the number of publications kept for display.
const HistorySize = 32

// Publication is one transport attempt.
type Publication struct {
	Time     time.Time
	Topic    string
	Bytes    int
	Retained bool
	OK       bool
}

// history is a fixed-capacity FIFO of recent publications.
// Not safe for concurrent use; the caller synchronizes.
type history struct {
	buf      []Publication
	capacity int
	head     int // next write position
	count    int
}

func newHistory(capacity int) *history {
	return &history{
		buf:      make([]Publication, capacity),
		capacity: capacity,
	}
}

func (h *history) push(p Publication) {
	h.buf[h.head] = p
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// items returns the stored publications, oldest first.
func (h *history) items() []Publication {
	if h.count == 0 {
		return nil
	}

	result := make([]Publication, h.count)
	// Oldest item is at (head - count) mod capacity
	start := (h.head - h.count + h.capacity) % h.capacity
	for i := 0; i < h.count; i++ {
		result[i] = h.buf[(start+i)%h.capacity]
	}
	return result
}

func (h *history) len() int {
	return h.count
}
