// Package modbus wraps goburrow/modbus with the reconnect-and-poll
// loop shared by the observatory's Modbus RTU peripherals.
package modbus

import (
	"context"
	"log"
	"time"

	"github.com/goburrow/modbus"
)

// Client owns an RTU serial connection and drives a caller-supplied
// Poll function in a loop while the connection is up. A poll error
// tears the connection down; the reconnect loop brings it back a
// second later.
type Client struct {
	Port string
	// BaudRate of the RTU bus (the observatory PDU runs 19200).
	BaudRate int
	SlaveId  byte
	// PollInterval paces the poll loop. Zero means back-to-back.
	PollInterval time.Duration

	// Poll is called repeatedly while the connection is active.
	Poll func() error

	handler *modbus.RTUClientHandler
	modbus.Client
}

// Connect configures the handler and starts the reconnect loop. It
// does not wait for the first successful connection.
func (c *Client) Connect(ctx context.Context) error {
	handler := modbus.NewRTUClientHandler(c.Port)
	handler.BaudRate = c.BaudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	handler.SlaveId = c.SlaveId
	c.handler = handler
	c.Client = modbus.NewClient(handler)
	go c.reconnectLoop(ctx)
	return nil
}

func (c *Client) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		if err := c.handler.Connect(); err != nil {
			log.Printf("opening %q: %v", c.Port, err)
			continue
		}
		if err := c.watch(ctx); err != nil && ctx.Err() == nil {
			log.Printf("polling %q: %v", c.Port, err)
		}
	}
}

func (c *Client) watch(ctx context.Context) error {
	defer c.handler.Close()
	for {
		if err := c.Poll(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}
}

// WriteCoil sets a single coil using the protocol's 0xFF00/0x0000
// encoding.
func (c *Client) WriteCoil(coil int, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	_, err := c.WriteSingleCoil(uint16(coil), v)
	return err
}

// BytesToBits unpacks a coil/discrete-input response, LSB first.
func BytesToBits(bs []byte) []bool {
	var out []bool
	for _, b := range bs {
		for i := 0; i < 8; i++ {
			out = append(out, (b>>uint(i)&1) == 1)
		}
	}
	return out
}
