package nexstar

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Terminator delimits every command and reply on the wire.
const Terminator = '#'

// DefaultTimeout is how long Send waits for a terminator. Goto and
// sync commands can take the hand controller a couple of seconds to
// acknowledge.
const DefaultTimeout = 3500 * time.Millisecond

// Executor drives one Transport. Send is serialized internally so the
// background monitor and direct callers can share one long-lived
// connection, but the protocol itself remains strictly one request in
// flight at a time: Send discards any stale buffered bytes before
// writing, deliberately destroying a late reply to a previous command.
type Executor struct {
	// Timeout bounds each Send. Callers wanting fast shutdown of a
	// wedged link should reduce it; Send is not interruptible.
	Timeout time.Duration

	mu sync.Mutex
	t  Transport
}

// NewExecutor wraps an open transport.
func NewExecutor(t Transport) *Executor {
	return &Executor{Timeout: DefaultTimeout, t: t}
}

// Connect opens the named serial port and returns an executor for it.
func Connect(port string) (*Executor, error) {
	t, err := OpenSerial(port)
	if err != nil {
		return nil, err
	}
	return NewExecutor(t), nil
}

// Connected reports whether the transport is open.
func (e *Executor) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t != nil
}

// Close closes the transport. Subsequent Sends fail with
// ErrNotConnected.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.t == nil {
		return nil
	}
	err := e.t.Close()
	e.t = nil
	return err
}

// Send writes cmd plus the terminator and returns the reply bytes up
// to (excluding) the next terminator, or ErrTimeout if none arrives
// within Timeout.
func (e *Executor) Send(cmd []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.t == nil {
		return nil, ErrNotConnected
	}
	if err := e.t.Flush(); err != nil {
		return nil, fmt.Errorf("flushing before %q: %w", cmd, err)
	}
	framed := make([]byte, 0, len(cmd)+1)
	framed = append(framed, cmd...)
	framed = append(framed, Terminator)
	if _, err := e.t.Write(framed); err != nil {
		return nil, fmt.Errorf("writing %q: %w", cmd, err)
	}
	var reply []byte
	deadline := time.Now().Add(e.Timeout)
	buf := make([]byte, 1)
	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: no reply to %q within %v", ErrTimeout, cmd, e.Timeout)
		}
		n, err := e.t.Read(buf)
		if err == io.EOF && n == 0 {
			return nil, fmt.Errorf("reading reply to %q: %w", cmd, io.ErrUnexpectedEOF)
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading reply to %q: %w", cmd, err)
		}
		if n == 0 {
			// The transport's own short read timeout expired with
			// nothing available.
			time.Sleep(time.Millisecond)
			continue
		}
		if buf[0] == Terminator {
			return reply, nil
		}
		reply = append(reply, buf[0])
	}
}

// SendEmpty sends a command whose only acknowledgement is a bare
// terminator.
func (e *Executor) SendEmpty(cmd []byte) error {
	reply, err := e.Send(cmd)
	if err != nil {
		return err
	}
	if len(reply) != 0 {
		return fmt.Errorf("%w: unexpected %q in reply to %q", ErrMalformedReply, reply, cmd)
	}
	return nil
}

// GetSingleByte sends cmd and expects exactly one reply byte.
func (e *Executor) GetSingleByte(cmd []byte) (byte, error) {
	reply, err := e.Send(cmd)
	if err != nil {
		return 0, err
	}
	if len(reply) != 1 {
		return 0, fmt.Errorf("%w: reply %q to %q is %d bytes, want 1", ErrMalformedReply, reply, cmd, len(reply))
	}
	return reply[0], nil
}

// GetTwoBytes sends cmd and expects exactly two reply bytes.
func (e *Executor) GetTwoBytes(cmd []byte) ([2]byte, error) {
	var out [2]byte
	reply, err := e.Send(cmd)
	if err != nil {
		return out, err
	}
	if len(reply) != 2 {
		return out, fmt.Errorf("%w: reply %q to %q is %d bytes, want 2", ErrMalformedReply, reply, cmd, len(reply))
	}
	copy(out[:], reply)
	return out, nil
}

// GetCoordinatePair sends cmd and decodes a 17-character coordinate
// pair reply. Both angles are in the wire's unsigned convention.
func (e *Executor) GetCoordinatePair(cmd []byte) (float64, float64, error) {
	reply, err := e.Send(cmd)
	if err != nil {
		return 0, 0, err
	}
	return DecodePair(string(reply))
}

// GetTimeBytes sends cmd and expects the 8-byte date/time tuple.
func (e *Executor) GetTimeBytes(cmd []byte) ([8]byte, error) {
	var out [8]byte
	reply, err := e.Send(cmd)
	if err != nil {
		return out, err
	}
	if len(reply) != 8 {
		return out, fmt.Errorf("%w: reply %q to %q is %d bytes, want 8", ErrMalformedReply, reply, cmd, len(reply))
	}
	copy(out[:], reply)
	return out, nil
}
