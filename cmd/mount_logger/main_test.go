package main

import (
	"testing"
	"time"

	"github.com/obsdeck/nexstar_interface/monitor"
	"github.com/obsdeck/nexstar_interface/power"
)

func sampleStatus() status {
	return status{
		Monitor: monitor.Status{
			State:          "running",
			HavePosition:   true,
			Position:       monitor.Sample{RAHours: 6.5, DecDegrees: -30, AltDegrees: 40, AzDegrees: 120},
			Velocity:       monitor.Velocity{TotalDegPerSec: 0.2},
			Slewing:        true,
			ExpectedSlew:   true,
			ErrorCount:     0,
			Interval:       5,
			AlertThreshold: 5,
			HistoryLen:     12,
			LastUpdate:     time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestStatusTags(t *testing.T) {
	tags := statusTags(sampleStatus())
	for key, want := range map[string]string{
		"state":         "running",
		"slewing":       "true",
		"expected_slew": "true",
	} {
		if got := tags[key]; got != want {
			t.Errorf("tag %q = %q, want %q", key, got, want)
		}
	}
}

func TestStatusFields(t *testing.T) {
	fields := statusFields(sampleStatus())
	if got := fields["ra_hours"]; got != 6.5 {
		t.Errorf("ra_hours = %v, want 6.5", got)
	}
	if got := fields["dec_degrees"]; got != -30.0 {
		t.Errorf("dec_degrees = %v, want -30", got)
	}
	if got := fields["velocity_deg_per_sec"]; got != 0.2 {
		t.Errorf("velocity_deg_per_sec = %v, want 0.2", got)
	}
	if got := fields["history_len"]; got != 12 {
		t.Errorf("history_len = %v, want 12", got)
	}
	if _, ok := fields["last_error"]; ok {
		t.Error("last_error present with no error")
	}
	// The discrete state travels as a tag, not a field.
	if _, ok := fields["state"]; ok {
		t.Error("state leaked into fields")
	}
}

func TestStatusFieldsNoPosition(t *testing.T) {
	st := sampleStatus()
	st.Monitor.HavePosition = false
	st.Monitor.LastError = "link down"
	fields := statusFields(st)
	if _, ok := fields["ra_hours"]; ok {
		t.Error("position fields emitted before the first sample")
	}
	if got := fields["last_error"]; got != "link down" {
		t.Errorf("last_error = %v", got)
	}
}

func TestPowerFields(t *testing.T) {
	fields := powerFields(power.Status{MountPowered: true, CommandMountPower: true})
	if got := fields["mount_powered"]; got != true {
		t.Errorf("mount_powered = %v, want true", got)
	}
	if got := fields["fault"]; got != false {
		t.Errorf("fault = %v, want false", got)
	}
}
