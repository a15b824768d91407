package monitor

import (
	"time"
)

// Sample is one atomically captured position reading.
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	RAHours    float64   `json:"ra_hours"`
	DecDegrees float64   `json:"dec_degrees"`
	AltDegrees float64   `json:"alt_degrees"`
	AzDegrees  float64   `json:"az_degrees"`
}

// Velocity is the finite-difference rate between two consecutive
// samples. It is zero when no previous sample exists or the elapsed
// time is not positive.
type Velocity struct {
	RAHoursPerSec float64 `json:"ra_hours_per_sec"`
	DecDegPerSec  float64 `json:"dec_deg_per_sec"`
	AltDegPerSec  float64 `json:"alt_deg_per_sec"`
	AzDegPerSec   float64 `json:"az_deg_per_sec"`
	// TotalDegPerSec combines the RA rate (converted to degrees) and
	// the Dec rate euclideanly.
	TotalDegPerSec float64 `json:"total_deg_per_sec"`
}

// Entry is a sample as recorded in the history, annotated with the
// measured speed and, for anomalous motion, an alert marker.
type Entry struct {
	Sample
	SpeedDegPerSec float64 `json:"speed_deg_per_sec"`
	Alert          bool    `json:"alert,omitempty"`
	AlertID        string  `json:"alert_id,omitempty"`
}

// DefaultHistorySize bounds the history ring.
const DefaultHistorySize = 1000

// History is a fixed-capacity FIFO of entries. On overflow the oldest
// entry is evicted silently; entries are never dropped out of order.
// It is not synchronized; the monitor owns it under its own lock.
type History struct {
	entries []Entry
	start   int
	count   int
}

// NewHistory returns a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{entries: make([]Entry, capacity)}
}

// Len reports the number of stored entries.
func (h *History) Len() int {
	return h.count
}

// Append records e, evicting the oldest entry if the ring is full.
func (h *History) Append(e Entry) {
	if h.count < len(h.entries) {
		h.entries[(h.start+h.count)%len(h.entries)] = e
		h.count++
		return
	}
	h.entries[h.start] = e
	h.start = (h.start + 1) % len(h.entries)
}

// Last copies out the most recent n entries, oldest first. n <= 0
// means all.
func (h *History) Last(n int) []Entry {
	if n <= 0 || n > h.count {
		n = h.count
	}
	out := make([]Entry, n)
	first := h.count - n
	for i := 0; i < n; i++ {
		out[i] = h.entries[(h.start+first+i)%len(h.entries)]
	}
	return out
}

// Clear discards all entries.
func (h *History) Clear() {
	h.start = 0
	h.count = 0
}
