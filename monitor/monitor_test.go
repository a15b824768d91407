package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/obsdeck/nexstar_interface/nexstar"
)

// fakeSampler serves scripted positions, optionally failing the first
// failN calls.
type fakeSampler struct {
	mu    sync.Mutex
	radec nexstar.RADec
	altaz nexstar.AltAz
	failN int
	calls int
}

func (f *fakeSampler) set(ra, dec, az, alt float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radec = nexstar.RADec{RAHours: ra, DecDegrees: dec}
	f.altaz = nexstar.AltAz{AzDegrees: az, AltDegrees: alt}
}

func (f *fakeSampler) PositionRADec() (nexstar.RADec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failN != 0 {
		f.failN--
		return nexstar.RADec{}, errors.New("link down")
	}
	return f.radec, nil
}

func (f *fakeSampler) PositionAltAz() (nexstar.AltAz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.altaz, nil
}

func TestDeriveVelocity(t *testing.T) {
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	prev := Sample{Timestamp: base, RAHours: 5, DecDegrees: 10, AltDegrees: 40, AzDegrees: 100}
	cur := Sample{Timestamp: base.Add(time.Second), RAHours: 5.01, DecDegrees: 10, AltDegrees: 40.5, AzDegrees: 101}
	v := deriveVelocity(prev, cur)
	if got, want := v.RAHoursPerSec, 0.01; !almostEqual(got, want) {
		t.Errorf("RAHoursPerSec = %v, want %v", got, want)
	}
	if got := v.DecDegPerSec; got != 0 {
		t.Errorf("DecDegPerSec = %v, want 0", got)
	}
	if got, want := v.AltDegPerSec, 0.5; !almostEqual(got, want) {
		t.Errorf("AltDegPerSec = %v, want %v", got, want)
	}
	if got, want := v.AzDegPerSec, 1.0; !almostEqual(got, want) {
		t.Errorf("AzDegPerSec = %v, want %v", got, want)
	}
	// 0.01 h/s of RA is 0.15 deg/s; dec is still.
	if got, want := v.TotalDegPerSec, 0.15; !almostEqual(got, want) {
		t.Errorf("TotalDegPerSec = %v, want %v", got, want)
	}
}

func TestDeriveVelocityNonPositiveElapsed(t *testing.T) {
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	prev := Sample{Timestamp: base, RAHours: 5}
	for _, cur := range []Sample{
		{Timestamp: base, RAHours: 6},
		{Timestamp: base.Add(-time.Second), RAHours: 6},
	} {
		if v := deriveVelocity(prev, cur); v != (Velocity{}) {
			t.Errorf("velocity with elapsed %v = %+v, want zero", cur.Timestamp.Sub(prev.Timestamp), v)
		}
	}
}

func almostEqual(got, want float64) bool {
	d := got - want
	return d > -1e-9 && d < 1e-9
}

func TestAlertAndThrottle(t *testing.T) {
	s := &fakeSampler{}
	m := New(s)
	var alerts []Entry
	m.SetAlertFunc(func(e Entry) { alerts = append(alerts, e) })

	// Drive the sampler directly; position jumps between calls make the
	// finite-difference speed enormous regardless of wall-clock timing.
	s.set(0, 0, 0, 0)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	s.set(0, 80, 0, 0)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts after jump = %d, want 1", len(alerts))
	}
	if alerts[0].AlertID == "" {
		t.Error("alert has no ID")
	}
	if !m.Slewing() {
		t.Error("fast motion not reported as slewing")
	}

	// A second jump inside the cooldown window is recorded but not
	// re-alerted.
	time.Sleep(2 * time.Millisecond)
	s.set(0, -80, 0, 0)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts inside cooldown = %d, want 1", len(alerts))
	}
	if got := m.History(0); len(got) != 3 {
		t.Errorf("history length = %d, want 3", len(got))
	}

	// Once the cooldown has passed, the next anomalous sample alerts
	// again. Backdating the throttle timestamp stands in for waiting.
	m.mu.Lock()
	m.lastAlert = time.Now().Add(-alertCooldown - time.Second)
	m.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	s.set(0, 80, 0, 0)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts after cooldown expiry = %d, want 2", len(alerts))
	}
	if alerts[1].AlertID == alerts[0].AlertID {
		t.Error("re-armed alert reused the previous ID")
	}
}

func TestExpectedSlewSuppressesAlerts(t *testing.T) {
	s := &fakeSampler{}
	m := New(s)
	var alerts []Entry
	m.SetAlertFunc(func(e Entry) { alerts = append(alerts, e) })
	m.SetExpectedSlew(true)

	s.set(0, 0, 0, 0)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	s.set(0, 80, 0, 0)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alerts during expected slew = %d, want 0", len(alerts))
	}
	// The slewing flag still reflects the motion.
	if !m.Slewing() {
		t.Error("expected slew hid the slewing flag")
	}
}

func TestCircuitBreaker(t *testing.T) {
	s := &fakeSampler{failN: -1} // fail forever
	m := New(s)
	if !m.SetInterval(MinInterval) {
		t.Fatal("SetInterval(MinInterval) rejected")
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for m.State() == Running {
		if time.Now().After(deadline) {
			m.Stop()
			t.Fatal("monitor did not stop itself")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := m.ErrorCount(); got != maxConsecutiveErrors {
		t.Errorf("ErrorCount = %d, want %d", got, maxConsecutiveErrors)
	}
	if st := m.Snapshot(); st.LastError == "" {
		t.Error("Snapshot.LastError empty after breaker trip")
	}
	// Stop on an already-stopped monitor is a no-op.
	m.Stop()
}

func TestErrorCountResetsOnSuccess(t *testing.T) {
	s := &fakeSampler{failN: 2}
	m := New(s)
	m.SetInterval(MinInterval)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, ok := m.Position(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no successful sample")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if m.State() != Running {
		t.Error("monitor stopped despite recovery")
	}
	if got := m.ErrorCount(); got != 0 {
		t.Errorf("ErrorCount after recovery = %d, want 0", got)
	}
}

func TestStartStop(t *testing.T) {
	m := New(&fakeSampler{})
	m.SetInterval(MinInterval)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err == nil {
		t.Error("second Start succeeded")
	}
	m.Stop()
	if m.State() != Stopped {
		t.Error("state after Stop is not stopped")
	}
	// Restart works.
	if err := m.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	m.Stop()
}

func TestConfigValidation(t *testing.T) {
	m := New(nil)
	if m.SetInterval(100 * time.Millisecond) {
		t.Error("interval below minimum accepted")
	}
	if m.SetInterval(time.Minute) {
		t.Error("interval above maximum accepted")
	}
	if got := m.Interval(); got != DefaultInterval {
		t.Errorf("interval changed to %v by rejected set", got)
	}
	if !m.SetInterval(2 * time.Second) {
		t.Error("valid interval rejected")
	}
	if got := m.Interval(); got != 2*time.Second {
		t.Errorf("Interval = %v, want 2s", got)
	}

	if m.SetAlertThreshold(0.05) {
		t.Error("threshold below minimum accepted")
	}
	if m.SetAlertThreshold(25) {
		t.Error("threshold above maximum accepted")
	}
	if got := m.AlertThreshold(); got != DefaultAlertThreshold {
		t.Errorf("threshold changed to %v by rejected set", got)
	}
	if !m.SetAlertThreshold(10) {
		t.Error("valid threshold rejected")
	}

	if !m.OverlayEnabled() {
		t.Error("overlay not enabled by default")
	}
	m.SetOverlayEnabled(false)
	if m.OverlayEnabled() || m.Snapshot().OverlayEnabled {
		t.Error("overlay toggle not reflected")
	}
}

func TestHistoryToggle(t *testing.T) {
	s := &fakeSampler{}
	m := New(s)
	m.SetHistoryEnabled(false)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	if got := m.History(0); len(got) != 0 {
		t.Fatalf("history recorded while disabled: %d entries", len(got))
	}
	m.SetHistoryEnabled(true)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	if got := m.History(0); len(got) != 1 {
		t.Fatalf("history length = %d, want 1", len(got))
	}
	m.ClearHistory()
	if got := m.History(0); len(got) != 0 {
		t.Fatalf("history length after clear = %d, want 0", len(got))
	}
}

func TestSnapshot(t *testing.T) {
	s := &fakeSampler{}
	s.set(6, 30, 120, 45)
	m := New(s)
	if err := m.sampleOnce(s); err != nil {
		t.Fatal(err)
	}
	st := m.Snapshot()
	if st.State != "stopped" || !st.HavePosition {
		t.Errorf("Snapshot = %+v", st)
	}
	if st.Position.RAHours != 6 || st.Position.AzDegrees != 120 {
		t.Errorf("Snapshot position = %+v", st.Position)
	}
	if st.HistoryLen != 1 {
		t.Errorf("HistoryLen = %d, want 1", st.HistoryLen)
	}
}
