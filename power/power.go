// Package power polls the observatory's power-distribution unit over
// Modbus RTU. Coil 0 switches the mount supply and coil 1 the dew
// heater; the discrete inputs report the sensed state of each output
// plus a summary fault flag.
package power

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/obsdeck/nexstar_interface/internal/modbus"
)

type Status struct {
	Fault bool `json:"fault"`

	CommandMountPower bool `json:"command_mount_power"`
	CommandDewHeater  bool `json:"command_dew_heater"`

	MountPowered bool `json:"mount_powered"`
	DewHeaterOn  bool `json:"dew_heater_on"`
}

type StatusCallback func(status Status)

const (
	coilMount = 0
	coilDew   = 1
	numCoils  = 2
)

type PDU struct {
	statusCallback StatusCallback
	mu             sync.Mutex
	client         *modbus.Client
	coils          []bool
	inputs         []bool
}

// Connect starts polling the PDU on the given serial port. The
// callback fires after every successful poll.
func Connect(ctx context.Context, port string, baud int, pollInterval time.Duration, statusCallback StatusCallback) (*PDU, error) {
	p := &PDU{
		client: &modbus.Client{
			Port:         port,
			BaudRate:     baud,
			SlaveId:      1,
			PollInterval: pollInterval,
		},
		statusCallback: statusCallback,
	}
	p.client.Poll = p.pollOnce
	return p, p.client.Connect(ctx)
}

func (p *PDU) pollOnce() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	coils, err := p.client.ReadCoils(0, numCoils)
	if err != nil {
		return err
	}
	inputs, err := p.client.ReadDiscreteInputs(0, numCoils+1)
	if err != nil {
		return err
	}
	p.coils = modbus.BytesToBits(coils)
	p.inputs = modbus.BytesToBits(inputs)
	p.notifyStatus()
	return nil
}

func (p *PDU) notifyStatus() {
	if p.statusCallback != nil {
		p.statusCallback(p.parse())
	}
}

func (p *PDU) parse() Status {
	return Status{
		Fault:             p.inputs[0],
		MountPowered:      p.inputs[1],
		DewHeaterOn:       p.inputs[2],
		CommandMountPower: p.coils[coilMount],
		CommandDewHeater:  p.coils[coilDew],
	}
}

// Status returns the last polled state.
func (p *PDU) Status() (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.coils) < numCoils || len(p.inputs) < numCoils+1 {
		return Status{}, fmt.Errorf("power: no poll data yet")
	}
	return p.parse(), nil
}

// SetMountPower switches the mount supply relay.
func (p *PDU) SetMountPower(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client.WriteCoil(coilMount, on)
}

// SetDewHeater switches the dew heater relay.
func (p *PDU) SetDewHeater(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client.WriteCoil(coilDew, on)
}
