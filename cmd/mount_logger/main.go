// mount_logger tails mountd's status WebSocket and records every
// update as InfluxDB points, for long-term pointing and drift
// analysis.
package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"github.com/obsdeck/nexstar_interface/monitor"
	"github.com/obsdeck/nexstar_interface/power"
)

// status mirrors the document mountd broadcasts on /api/ws.
type status struct {
	Monitor monitor.Status `json:"monitor"`
	Power   *power.Status  `json:"power,omitempty"`
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	client := influxdb2.NewClient(env("INFLUX_SERVER", "http://localhost:9999"), os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Non-blocking write client.
	writeApi := client.WriteApi(env("INFLUX_ORG", "observatory"), env("INFLUX_BUCKET", "mount.raw"))
	defer writeApi.Close()
	go func() {
		for err := range writeApi.Errors() {
			log.Printf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

// statusTags indexes each point by the monitor's discrete state, so
// dashboards can split series on slews and outages without parsing
// field values.
func statusTags(st status) map[string]string {
	return map[string]string{
		"state":         st.Monitor.State,
		"slewing":       strconv.FormatBool(st.Monitor.Slewing),
		"expected_slew": strconv.FormatBool(st.Monitor.ExpectedSlew),
	}
}

func statusFields(st status) map[string]interface{} {
	fields := map[string]interface{}{
		"error_count":                 st.Monitor.ErrorCount,
		"interval_sec":                st.Monitor.Interval,
		"alert_threshold_deg_per_sec": st.Monitor.AlertThreshold,
		"history_len":                 st.Monitor.HistoryLen,
	}
	if st.Monitor.HavePosition {
		fields["ra_hours"] = st.Monitor.Position.RAHours
		fields["dec_degrees"] = st.Monitor.Position.DecDegrees
		fields["alt_degrees"] = st.Monitor.Position.AltDegrees
		fields["az_degrees"] = st.Monitor.Position.AzDegrees
		fields["ra_hours_per_sec"] = st.Monitor.Velocity.RAHoursPerSec
		fields["dec_deg_per_sec"] = st.Monitor.Velocity.DecDegPerSec
		fields["alt_deg_per_sec"] = st.Monitor.Velocity.AltDegPerSec
		fields["az_deg_per_sec"] = st.Monitor.Velocity.AzDegPerSec
		fields["velocity_deg_per_sec"] = st.Monitor.Velocity.TotalDegPerSec
	}
	if st.Monitor.LastError != "" {
		fields["last_error"] = st.Monitor.LastError
	}
	return fields
}

func powerFields(p power.Status) map[string]interface{} {
	return map[string]interface{}{
		"fault":               p.Fault,
		"mount_powered":       p.MountPowered,
		"dew_heater_on":       p.DewHeaterOn,
		"command_mount_power": p.CommandMountPower,
		"command_dew_heater":  p.CommandDewHeater,
	}
}

func logData(writeApi api.WriteApi) error {
	url := env("MOUNTD_ADDRESS", "ws://localhost:8502/api/ws")
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var st status
		if err := conn.ReadJSON(&st); err != nil {
			return err
		}
		// Points are stamped with the sample time, not the receive
		// time, so replayed or delayed updates land where they belong.
		ts := st.Monitor.LastUpdate
		if ts.IsZero() {
			ts = time.Now()
		}
		writeApi.WritePoint(influxdb2.NewPoint("mount.status", statusTags(st), statusFields(st), ts))
		if st.Power != nil {
			writeApi.WritePoint(influxdb2.NewPoint("mount.power", nil, powerFields(*st.Power), ts))
		}
	}
}
