package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsdeck/nexstar_interface/monitor"
	"github.com/obsdeck/nexstar_interface/nexstar"
	"github.com/obsdeck/nexstar_interface/power"
)

// ServerStatus is what the status endpoints and the WebSocket
// broadcast carry.
type ServerStatus struct {
	Monitor monitor.Status `json:"monitor"`
	Power   *power.Status  `json:"power,omitempty"`
}

type Server struct {
	mu  sync.Mutex
	tel *nexstar.Telescope
	pdu *power.PDU
	mon *monitor.Monitor

	statusMu    sync.RWMutex
	statusCond  *sync.Cond
	status      ServerStatus
	powerStatus *power.Status
}

func NewServer(tel *nexstar.Telescope, mon *monitor.Monitor) *Server {
	s := &Server{tel: tel, mon: mon}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

// refreshStatus recomputes the broadcast snapshot and wakes all
// WebSocket writers.
func (s *Server) refreshStatus() {
	snap := s.mon.Snapshot()
	s.statusMu.Lock()
	s.status = ServerStatus{Monitor: snap, Power: s.powerStatus}
	s.statusCond.Broadcast()
	s.statusMu.Unlock()
}

func (s *Server) powerCallback(st power.Status) {
	s.statusMu.Lock()
	s.powerStatus = &st
	s.statusMu.Unlock()
	s.refreshStatus()
}

func (s *Server) currentStatus() ServerStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.currentStatus()); err != nil {
		log.Print(err)
	}
}

func (s *Server) PositionHandler(w http.ResponseWriter, r *http.Request) {
	sample, ok := s.mon.Position()
	if !ok {
		http.Error(w, "no position yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sample)
}

func (s *Server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	last := 0
	if v := r.URL.Query().Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "bad last parameter", http.StatusBadRequest)
			return
		}
		last = n
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.mon.History(last))
}

func (s *Server) HistoryCSVHandler(w http.ResponseWriter, r *http.Request) {
	entries := s.mon.History(0)
	if len(entries) == 0 {
		http.Error(w, "no history to export", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=position_history.csv")
	if err := monitor.WriteCSV(w, entries); err != nil {
		log.Printf("writing csv export: %v", err)
	}
}

func (s *Server) HistoryJSONHandler(w http.ResponseWriter, r *http.Request) {
	entries := s.mon.History(0)
	if len(entries) == 0 {
		http.Error(w, "no history to export", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := monitor.WriteJSON(w, entries); err != nil {
		log.Printf("writing json export: %v", err)
	}
}

// Command is one JSON message on the control WebSocket.
type Command struct {
	Command    string  `json:"command"`
	RAHours    float64 `json:"ra_hours"`
	DecDegrees float64 `json:"dec_degrees"`
	AzDegrees  float64 `json:"az_degrees"`
	AltDegrees float64 `json:"alt_degrees"`
	Mode       int     `json:"mode"`
	Value      float64 `json:"value"`
	Enabled    bool    `json:"enabled"`
}

func (s *Server) handleCommand(msg Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	switch msg.Command {
	case "goto_ra_dec":
		s.mon.SetExpectedSlew(true)
		err = s.tel.GotoRADec(msg.RAHours, msg.DecDegrees)
	case "goto_alt_az":
		s.mon.SetExpectedSlew(true)
		err = s.tel.GotoAltAz(msg.AzDegrees, msg.AltDegrees)
	case "sync_ra_dec":
		err = s.tel.SyncRADec(msg.RAHours, msg.DecDegrees)
	case "cancel_goto":
		err = s.tel.CancelGoto()
		s.mon.SetExpectedSlew(false)
	case "set_tracking_mode":
		err = s.tel.SetTrackingMode(nexstar.TrackingMode(msg.Mode))
	case "set_expected_slew":
		s.mon.SetExpectedSlew(msg.Enabled)
	case "set_interval":
		if !s.mon.SetInterval(time.Duration(msg.Value * float64(time.Second))) {
			log.Printf("rejected interval %v", msg.Value)
		}
	case "set_alert_threshold":
		if !s.mon.SetAlertThreshold(msg.Value) {
			log.Printf("rejected alert threshold %v", msg.Value)
		}
	case "set_history_enabled":
		s.mon.SetHistoryEnabled(msg.Enabled)
	case "set_overlay_enabled":
		s.mon.SetOverlayEnabled(msg.Enabled)
	case "clear_history":
		s.mon.ClearHistory()
	case "monitor_start":
		err = s.mon.Start()
	case "monitor_stop":
		s.mon.Stop()
	case "set_mount_power":
		if s.pdu != nil {
			err = s.pdu.SetMountPower(msg.Enabled)
		}
	case "set_dew_heater":
		if s.pdu != nil {
			err = s.pdu.SetDewHeater(msg.Enabled)
		}
	default:
		log.Printf("unknown command %q", msg.Command)
	}
	if err != nil {
		log.Printf("command %q: %v", msg.Command, err)
	}
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	done := make(chan struct{})

	// Read and process incoming commands.
	go func() {
		defer close(done)
		defer conn.Close()
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			s.handleCommand(msg)
			s.refreshStatus()
		}
	}()

	send := func(status ServerStatus) bool {
		if err := conn.WriteJSON(status); err != nil {
			return false
		}
		return true
	}

	if !send(s.currentStatus()) {
		return
	}
	for {
		select {
		case <-done:
			return
		default:
		}
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		if !send(status) {
			return
		}
	}
}
