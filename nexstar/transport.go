package nexstar

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tarm/serial"
)

// Transport is a half-duplex byte stream to the hand controller.
//
// Read must not block indefinitely: it should return (0, nil) after a
// short internal timeout when no byte is available, so the executor
// can enforce its own per-command deadline on top.
type Transport interface {
	io.ReadWriteCloser
	// Flush discards bytes buffered in both directions.
	Flush() error
}

// shortReadTimeout bounds a single Read so the executor's deadline
// loop can make progress. It is much smaller than any command timeout.
const shortReadTimeout = 50 * time.Millisecond

// OpenSerial opens the mount's serial port. The hand controller talks
// 9600 baud, 8 data bits, no parity, 1 stop bit, no flow control.
func OpenSerial(port string) (Transport, error) {
	c := &serial.Config{Name: port, Baud: 9600, ReadTimeout: shortReadTimeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", port, err)
	}
	return &serialTransport{Transport: s}, nil
}

// serialTransport adapts a serial port to the Transport read contract.
// tarm/serial surfaces its ReadTimeout as (0, io.EOF); on a serial
// line that means "nothing arrived yet", not end of stream, so it maps
// to the contract's (0, nil) idle read.
type serialTransport struct {
	Transport
}

func (s *serialTransport) Read(b []byte) (int, error) {
	n, err := s.Transport.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// PipeTransport adapts a net.Conn (the simulator's pipe, or a serial
// device exposed over TCP) to the Transport contract.
type PipeTransport struct {
	Conn net.Conn
}

func (p *PipeTransport) Read(b []byte) (int, error) {
	p.Conn.SetReadDeadline(time.Now().Add(shortReadTimeout))
	n, err := p.Conn.Read(b)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, nil
	}
	return n, err
}

func (p *PipeTransport) Write(b []byte) (int, error) {
	return p.Conn.Write(b)
}

func (p *PipeTransport) Close() error {
	return p.Conn.Close()
}

// Flush drains whatever the peer has already sent.
func (p *PipeTransport) Flush() error {
	buf := make([]byte, 64)
	for {
		p.Conn.SetReadDeadline(time.Now().Add(time.Millisecond))
		n, err := p.Conn.Read(buf)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
