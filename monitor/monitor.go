// Package monitor supervises a mount's reported position from a
// background polling loop: it derives velocity from consecutive
// samples, keeps a bounded history, and raises throttled
// anomalous-motion alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsdeck/nexstar_interface/nexstar"
)

// Sampler is the slice of the mount the monitor needs each poll.
// *nexstar.Telescope and mount.Mount both satisfy it.
type Sampler interface {
	PositionRADec() (nexstar.RADec, error)
	PositionAltAz() (nexstar.AltAz, error)
}

// State is the monitor lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

const (
	// DefaultInterval is the polling cadence.
	DefaultInterval = 5 * time.Second
	// DefaultAlertThreshold is the anomalous-motion total speed.
	DefaultAlertThreshold = 5.0 // deg/s

	// MinInterval and MaxInterval bound SetInterval.
	MinInterval = 500 * time.Millisecond
	MaxInterval = 30 * time.Second
	// MinAlertThreshold and MaxAlertThreshold bound SetAlertThreshold.
	MinAlertThreshold = 0.1
	MaxAlertThreshold = 20.0

	// slewDetectDegPerSec is the total speed above which the mount is
	// considered to be slewing.
	slewDetectDegPerSec = 0.1
	// alertCooldown throttles alerts.
	alertCooldown = 5 * time.Second
	// maxConsecutiveErrors is the circuit breaker: the monitor stops
	// itself rather than spin forever against a dead link.
	maxConsecutiveErrors = 3
)

// AlertFunc is called, outside the monitor's lock, for each alert
// entry recorded.
type AlertFunc func(Entry)

// SampleFunc is called, outside the monitor's lock, after every
// successful sample.
type SampleFunc func(Entry, Velocity)

// Status is a consistent snapshot of the monitor's shared state.
type Status struct {
	State          string    `json:"state"`
	HavePosition   bool      `json:"have_position"`
	Position       Sample    `json:"position"`
	Velocity       Velocity  `json:"velocity"`
	Slewing        bool      `json:"slewing"`
	ExpectedSlew   bool      `json:"expected_slew"`
	ErrorCount     int       `json:"error_count"`
	LastError      string    `json:"last_error,omitempty"`
	Interval       float64   `json:"interval_sec"`
	AlertThreshold float64   `json:"alert_threshold_deg_per_sec"`
	HistoryLen     int       `json:"history_len"`
	OverlayEnabled bool      `json:"overlay_enabled"`
	LastUpdate     time.Time `json:"last_update"`
}

// Monitor polls a Sampler from one background goroutine. All shared
// state sits behind a single mutex; accessors only read or copy and
// never perform I/O. The sampler itself must serialize wire access
// (the nexstar executor does).
type Monitor struct {
	alertFunc  AlertFunc
	sampleFunc SampleFunc

	mu             sync.Mutex
	sampler        Sampler
	state          State
	interval       time.Duration
	threshold      float64
	expectedSlew   bool
	historyEnabled bool
	overlayEnabled bool
	history        *History
	last           Sample
	haveLast       bool
	velocity       Velocity
	slewing        bool
	errorCount     int
	lastErr        error
	lastAlert      time.Time
	cancel         context.CancelFunc
	done           chan struct{}
}

// New returns a stopped monitor with default configuration. The
// sampler may be nil and supplied later with SetSampler; the loop
// idles until one is present.
func New(s Sampler) *Monitor {
	return &Monitor{
		sampler:        s,
		interval:       DefaultInterval,
		threshold:      DefaultAlertThreshold,
		historyEnabled: true,
		overlayEnabled: true,
		history:        NewHistory(DefaultHistorySize),
	}
}

// SetAlertFunc registers the alert callback. Call before Start.
func (m *Monitor) SetAlertFunc(f AlertFunc) { m.alertFunc = f }

// SetSampleFunc registers the per-sample callback. Call before Start.
func (m *Monitor) SetSampleFunc(f SampleFunc) { m.sampleFunc = f }

// SetSampler swaps the polled mount handle.
func (m *Monitor) SetSampler(s Sampler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampler = s
}

// Start transitions Stopped -> Running and launches the polling
// goroutine.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Running {
		return errors.New("monitor: already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = Running
	m.errorCount = 0
	m.lastErr = nil
	go m.run(ctx, cancel, m.done)
	return nil
}

// Stop asks the loop to exit and waits for it. An in-flight sample is
// not interrupted; shutdown latency is bounded by the transport
// timeout, not the polling interval.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != Running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer func() {
		cancel()
		m.mu.Lock()
		m.state = Stopped
		m.mu.Unlock()
		close(done)
	}()
	for {
		m.mu.Lock()
		sampler := m.sampler
		interval := m.interval
		m.mu.Unlock()

		if sampler == nil {
			// No endpoint configured yet; idle and retry.
		} else if err := m.sampleOnce(sampler); err != nil {
			if m.recordError(err) {
				log.Printf("monitor: stopping after %d consecutive sampling errors: %v", maxConsecutiveErrors, err)
				return
			}
			log.Printf("monitor: sampling: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// recordError counts a failed sample and reports whether the circuit
// breaker tripped.
func (m *Monitor) recordError(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
	m.lastErr = err
	return m.errorCount >= maxConsecutiveErrors
}

func (m *Monitor) sampleOnce(sampler Sampler) error {
	radec, err := sampler.PositionRADec()
	if err != nil {
		return fmt.Errorf("sampling ra/dec: %w", err)
	}
	altaz, err := sampler.PositionAltAz()
	if err != nil {
		return fmt.Errorf("sampling alt/az: %w", err)
	}
	now := time.Now()
	sample := Sample{
		Timestamp:  now,
		RAHours:    radec.RAHours,
		DecDegrees: radec.DecDegrees,
		AltDegrees: altaz.AltDegrees,
		AzDegrees:  altaz.AzDegrees,
	}

	m.mu.Lock()
	m.errorCount = 0
	m.lastErr = nil
	var vel Velocity
	if m.haveLast {
		vel = deriveVelocity(m.last, sample)
	}
	m.last = sample
	m.haveLast = true
	m.velocity = vel
	m.slewing = vel.TotalDegPerSec > slewDetectDegPerSec

	entry := Entry{Sample: sample, SpeedDegPerSec: vel.TotalDegPerSec}
	anomalous := !m.expectedSlew && vel.TotalDegPerSec > m.threshold
	if anomalous && now.Sub(m.lastAlert) >= alertCooldown {
		// An alert is advisory telemetry recorded in the history, not
		// an error.
		m.lastAlert = now
		entry.Alert = true
		entry.AlertID = uuid.NewString()
	}
	if m.historyEnabled {
		m.history.Append(entry)
	}
	m.mu.Unlock()

	if entry.Alert && m.alertFunc != nil {
		m.alertFunc(entry)
	}
	if m.sampleFunc != nil {
		m.sampleFunc(entry, vel)
	}
	return nil
}

// deriveVelocity finite-differences two consecutive samples. A
// non-positive elapsed time yields a zero velocity.
func deriveVelocity(prev, cur Sample) Velocity {
	elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if elapsed <= 0 {
		return Velocity{}
	}
	v := Velocity{
		RAHoursPerSec: (cur.RAHours - prev.RAHours) / elapsed,
		DecDegPerSec:  (cur.DecDegrees - prev.DecDegrees) / elapsed,
		AltDegPerSec:  (cur.AltDegrees - prev.AltDegrees) / elapsed,
		AzDegPerSec:   (cur.AzDegrees - prev.AzDegrees) / elapsed,
	}
	raDeg := nexstar.HoursToDegrees(v.RAHoursPerSec)
	v.TotalDegPerSec = math.Sqrt(raDeg*raDeg + v.DecDegPerSec*v.DecDegPerSec)
	return v
}

// State reports the lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Position returns the last sample, if any.
func (m *Monitor) Position() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, m.haveLast
}

// Velocity returns the last derived velocity.
func (m *Monitor) Velocity() Velocity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.velocity
}

// Slewing reports whether the last sample showed motion above the
// slew-detection floor.
func (m *Monitor) Slewing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slewing
}

// ErrorCount reports consecutive sampling failures since the last
// success.
func (m *Monitor) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount
}

// Interval returns the polling interval.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetInterval updates the polling interval. Out-of-range values are
// rejected: the setter returns false and the interval is unchanged.
func (m *Monitor) SetInterval(d time.Duration) bool {
	if d < MinInterval || d > MaxInterval {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	return true
}

// AlertThreshold returns the anomalous-motion threshold in deg/s.
func (m *Monitor) AlertThreshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetAlertThreshold updates the threshold with the same
// reject-and-return-false shape as SetInterval.
func (m *Monitor) SetAlertThreshold(degPerSec float64) bool {
	if degPerSec < MinAlertThreshold || degPerSec > MaxAlertThreshold {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = degPerSec
	return true
}

// ExpectedSlew reports the caller-set commanded-move flag.
func (m *Monitor) ExpectedSlew() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expectedSlew
}

// SetExpectedSlew suppresses (true) or re-enables (false) anomalous
// motion alerts around an intentional commanded move.
func (m *Monitor) SetExpectedSlew(expected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedSlew = expected
}

// HistoryEnabled reports whether samples are recorded.
func (m *Monitor) HistoryEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyEnabled
}

// SetHistoryEnabled toggles history recording. Existing entries are
// kept; only explicit ClearHistory discards them.
func (m *Monitor) SetHistoryEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyEnabled = enabled
}

// OverlayEnabled reports whether status consumers should draw the
// position-trail overlay. The flag is carried and broadcast here; the
// monitor itself does no rendering.
func (m *Monitor) OverlayEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlayEnabled
}

// SetOverlayEnabled toggles the trail-overlay flag.
func (m *Monitor) SetOverlayEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlayEnabled = enabled
}

// History copies out the most recent n entries, oldest first. n <= 0
// means all.
func (m *Monitor) History(n int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Last(n)
}

// ClearHistory discards all history entries.
func (m *Monitor) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Clear()
}

// ExportHistory writes the history to path in the named format
// ("csv" or "json"). The snapshot is taken under the lock; the file
// I/O happens outside it.
func (m *Monitor) ExportHistory(path, format string) error {
	entries := m.History(0)
	switch format {
	case "csv":
		return ExportCSV(path, entries)
	case "json":
		return ExportJSON(path, entries)
	}
	return fmt.Errorf("monitor: unknown export format %q", format)
}

// Snapshot returns a consistent copy of the monitor's state. Callers
// must use it (not stale samples) to decide whether data is current:
// a stopped monitor no longer updates anything.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{
		State:          m.state.String(),
		HavePosition:   m.haveLast,
		Position:       m.last,
		Velocity:       m.velocity,
		Slewing:        m.slewing,
		ExpectedSlew:   m.expectedSlew,
		ErrorCount:     m.errorCount,
		Interval:       m.interval.Seconds(),
		AlertThreshold: m.threshold,
		HistoryLen:     m.history.Len(),
		OverlayEnabled: m.overlayEnabled,
		LastUpdate:     m.last.Timestamp,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

// StatusText is a one-line human-readable summary.
func (m *Monitor) StatusText() string {
	st := m.Snapshot()
	if !st.HavePosition {
		return fmt.Sprintf("%s, no samples yet, errors %d", st.State, st.ErrorCount)
	}
	return fmt.Sprintf("%s, ra %.4fh dec %.4f az %.4f alt %.4f, %.4f deg/s, errors %d, last update %s",
		st.State, st.Position.RAHours, st.Position.DecDegrees, st.Position.AzDegrees, st.Position.AltDegrees,
		st.Velocity.TotalDegPerSec, st.ErrorCount, st.LastUpdate.Format(time.RFC3339))
}
