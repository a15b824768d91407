package nexstar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Simulator implements the hand-controller side of the wire over a
// net.Pipe, with simple kinematics: gotos move toward the target at
// SlewRate, fixed-rate moves integrate a per-axis velocity. It exists
// so the rest of the system can be exercised without a mount.
type Simulator struct {
	conn net.Conn

	// SlewRate is the goto speed in degrees/second. Set before Run.
	SlewRate float64

	mu       sync.Mutex
	az, alt  float64 // wire degrees
	ra, dec  float64 // wire degrees
	tgtAz    float64
	tgtAlt   float64
	tgtRA    float64
	tgtDec   float64
	slewing  bool
	velAz    float64 // deg/s from P commands
	velAlt   float64
	mode     TrackingMode
	lat, lon float64 // wire degrees
	clock    [8]byte
}

// simStep is the discrete simulation step size.
const simStep = 25 * time.Millisecond

// NewSimulator returns a simulator and the transport for the host
// side of its pipe.
func NewSimulator() (*Simulator, Transport) {
	a, b := net.Pipe()
	s := &Simulator{
		conn:     a,
		SlewRate: 4,
		clock:    [8]byte{12, 0, 0, 1, 1, 26, 0, 0},
	}
	return s, &PipeTransport{Conn: b}
}

// Run services commands and advances the kinematics until ctx is
// canceled or the peer closes the pipe.
func (s *Simulator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	g.Go(s.serve)
	g.Go(func() error {
		t := time.NewTicker(simStep)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
			}
			s.step(simStep.Seconds())
		}
	})
	return g.Wait()
}

func (s *Simulator) serve() error {
	br := bufio.NewReader(s.conn)
	for {
		cmd, err := br.ReadBytes(Terminator)
		if err == io.EOF || err == io.ErrClosedPipe {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading pipe: %w", err)
		}
		reply := s.handle(cmd[:len(cmd)-1])
		if _, err := s.conn.Write(append(reply, Terminator)); err != nil {
			return fmt.Errorf("writing pipe: %w", err)
		}
	}
}

func approach(pos, target, maxDelta float64) float64 {
	delta := target - pos
	if math.Abs(delta) <= maxDelta {
		return target
	}
	if delta < 0 {
		return pos - maxDelta
	}
	return pos + maxDelta
}

func (s *Simulator) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slewing {
		maxDelta := s.SlewRate * dt
		s.az = approach(s.az, s.tgtAz, maxDelta)
		s.alt = approach(s.alt, s.tgtAlt, maxDelta)
		s.ra = approach(s.ra, s.tgtRA, maxDelta)
		s.dec = approach(s.dec, s.tgtDec, maxDelta)
		if s.az == s.tgtAz && s.alt == s.tgtAlt && s.ra == s.tgtRA && s.dec == s.tgtDec {
			s.slewing = false
		}
	}
	s.az = math.Mod(s.az+s.velAz*dt+360, 360)
	s.alt += s.velAlt * dt
}

func (s *Simulator) handle(cmd []byte) []byte {
	if len(cmd) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch cmd[0] {
	case 'K':
		if len(cmd) == 2 {
			return cmd[1:2]
		}
	case 'V':
		return []byte{4, 21}
	case 'm':
		return []byte{6}
	case 'E':
		return []byte(EncodePair(s.ra, s.dec))
	case 'Z':
		return []byte(EncodePair(s.az, s.alt))
	case 'R', 'B', 'S':
		a, b, err := DecodePair(string(cmd[1:]))
		if err != nil {
			log.Printf("simulator: %q: %v", cmd, err)
			return nil
		}
		switch cmd[0] {
		case 'R':
			s.tgtRA, s.tgtDec = a, b
			s.tgtAz, s.tgtAlt = s.az, s.alt
			s.slewing = true
		case 'B':
			s.tgtAz, s.tgtAlt = a, b
			s.tgtRA, s.tgtDec = s.ra, s.dec
			s.slewing = true
		case 'S':
			s.ra, s.dec = a, b
		}
		return nil
	case 'L':
		if s.slewing {
			return []byte("1")
		}
		return []byte("0")
	case 'M':
		s.slewing = false
		s.tgtAz, s.tgtAlt = s.az, s.alt
		s.tgtRA, s.tgtDec = s.ra, s.dec
		return nil
	case 'P':
		if len(cmd) != 7 {
			break
		}
		rate := float64(cmd[3])
		if Direction(cmd[2]) == DirNegative {
			rate = -rate
		}
		switch Axis(cmd[1]) {
		case AxisAzimuth:
			s.velAz = rate
		case AxisAltitude:
			s.velAlt = rate
		}
		return nil
	case 't':
		return []byte{byte(s.mode)}
	case 'T':
		if len(cmd) == 2 {
			s.mode = TrackingMode(cmd[1])
			return nil
		}
	case 'w':
		return []byte(DegreesToHex(s.lat) + DegreesToHex(s.lon))
	case 'W':
		if len(cmd) != 17 {
			break
		}
		lat, err := HexToDegrees(string(cmd[1:9]))
		if err != nil {
			break
		}
		lon, err := HexToDegrees(string(cmd[9:17]))
		if err != nil {
			break
		}
		s.lat, s.lon = lat, lon
		return nil
	case 'h':
		return append([]byte(nil), s.clock[:]...)
	case 'H':
		if len(cmd) == 9 {
			copy(s.clock[:], cmd[1:])
			return nil
		}
	}
	log.Printf("simulator: unhandled command %q", cmd)
	return nil
}
