package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/obsdeck/nexstar_interface/nexstar"
)

// ListenRotctld serves the hamlib rotctld protocol, mapping azimuth
// and elevation onto the mount's alt/az frame so existing satellite
// and dish tooling can drive the telescope.
func (s *Server) ListenRotctld(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing rotctld socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("failed to accept: %v", err)
				continue
			}
			go s.handleRotctld(conn)
		}
	}()
	return nil
}

func (s *Server) handleRotctld(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		// Two forms of command: single character, or "+\" followed by
		// the command name.
		cmd := scanner.Text()
		var args []string
		var extended bool
		if len(cmd) == 0 {
			continue
		} else if len(cmd) > 2 && cmd[0:2] == `+\` {
			extended = true
			parts := strings.Split(cmd, " ")
			cmd = parts[0][2:]
			if len(parts) > 1 {
				args = parts[1:]
			}
			fmt.Fprintf(conn, "%s:\n", cmd)
		} else {
			// Space after command is optional.
			if len(cmd) > 1 {
				args = strings.Fields(strings.TrimLeft(cmd[1:], " "))
			}
			cmd = string(cmd[0])
		}
		rprt := -1
		switch cmd {
		case "1", "dump_caps":
			fmt.Fprintf(conn, `Model name: NexStar
Mfg name: Celestron
Rot type: Az-El
Min Azimuth: 0.00
Max Azimuth: 360.00
Min Elevation: -90.00
Max Elevation: 90.00
Can set Position: Y
Can get Position: Y
Can Stop: Y
Can Park: N
Can Reset: N
Can Move: Y
Can get Info: N
`)
			rprt = 0
		case "S", "stop":
			extended = true // always print RPRT
			s.mu.Lock()
			err := s.tel.CancelGoto()
			s.mon.SetExpectedSlew(false)
			s.mu.Unlock()
			if err != nil {
				log.Printf("rotctld stop: %v", err)
				break
			}
			rprt = 0
		case "P", "set_pos":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			az, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				rprt = -22
				break
			}
			el, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				rprt = -22
				break
			}
			// hamlib azimuths may be reported in [-180,180).
			if az < 0 {
				az += 360
			}
			s.mu.Lock()
			s.mon.SetExpectedSlew(true)
			err = s.tel.GotoAltAz(az, el)
			s.mu.Unlock()
			if err != nil {
				log.Printf("rotctld set_pos: %v", err)
				break
			}
			rprt = 0
		case "M", "move":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			dir, err := strconv.Atoi(args[0])
			if err != nil {
				rprt = -22
				break
			}
			// Speed is 0-100; the mount has fixed rates 0-9.
			speed, err := strconv.Atoi(args[1])
			if err != nil || speed < 0 || speed > 100 {
				rprt = -22
				break
			}
			rate := speed / 10
			if rate > 9 {
				rate = 9
			}
			var axis nexstar.Axis
			sense := nexstar.DirPositive
			switch dir {
			case 2: // Up
				axis = nexstar.AxisAltitude
			case 4: // Down
				axis, sense = nexstar.AxisAltitude, nexstar.DirNegative
			case 8: // Left
				axis, sense = nexstar.AxisAzimuth, nexstar.DirNegative
			case 16: // Right
				axis = nexstar.AxisAzimuth
			default:
				rprt = -22
			}
			if axis != 0 {
				s.mu.Lock()
				err := s.tel.Move(axis, sense, rate)
				s.mu.Unlock()
				if err != nil {
					log.Printf("rotctld move: %v", err)
					break
				}
				rprt = 0
			}
		case "p", "get_pos":
			sample, ok := s.mon.Position()
			if !ok {
				// Fall back to a direct read when the monitor has not
				// sampled yet.
				pos, err := s.tel.PositionAltAz()
				if err != nil {
					log.Printf("rotctld get_pos: %v", err)
					break
				}
				sample.AzDegrees, sample.AltDegrees = pos.AzDegrees, pos.AltDegrees
			}
			if extended {
				fmt.Fprintf(conn, "Azimuth: %.6f\nElevation: %.6f\n", sample.AzDegrees, sample.AltDegrees)
			} else {
				fmt.Fprintf(conn, "%.6f\n%.6f\n", sample.AzDegrees, sample.AltDegrees)
			}
			rprt = 0
		}
		if extended || rprt != 0 {
			fmt.Fprintf(conn, "RPRT %d\n", rprt)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
