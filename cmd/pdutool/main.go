// pdutool is a commissioning tool for the power-distribution unit: it
// talks Modbus RTU directly on the serial bus, switches the output
// relays, and dumps the coil and input state. Useful when bringing up
// the PDU without running the full daemon.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/goburrow/modbus"

	pdubus "github.com/obsdeck/nexstar_interface/internal/modbus"
)

var (
	serialPort = flag.String("serial", "/dev/ttyUSB1", "PDU serial port name")
	baud       = flag.Int("baud", 19200, "PDU baud rate")
	slave      = flag.Int("slave", 1, "Modbus slave id")
	mountPower = flag.String("mount", "", "switch the mount supply relay (on/off)")
	dewHeater  = flag.String("dew", "", "switch the dew heater relay (on/off)")
)

func writeRelay(client modbus.Client, coil uint16, arg string) error {
	on, err := strconv.ParseBool(arg)
	if err != nil {
		// Accept on/off as well as true/false and 1/0.
		switch arg {
		case "on":
			on = true
		case "off":
			on = false
		default:
			return fmt.Errorf("bad relay state %q", arg)
		}
	}
	var v uint16
	if on {
		v = 0xFF00
	}
	_, err = client.WriteSingleCoil(coil, v)
	return err
}

func main() {
	flag.Parse()
	handler := modbus.NewRTUClientHandler(*serialPort)
	handler.BaudRate = *baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	handler.SlaveId = byte(*slave)
	if err := handler.Connect(); err != nil {
		log.Fatalf("opening %q: %v", *serialPort, err)
	}
	defer handler.Close()
	client := modbus.NewClient(handler)

	if *mountPower != "" {
		if err := writeRelay(client, 0, *mountPower); err != nil {
			log.Fatalf("mount relay: %v", err)
		}
	}
	if *dewHeater != "" {
		if err := writeRelay(client, 1, *dewHeater); err != nil {
			log.Fatalf("dew relay: %v", err)
		}
	}

	coilBytes, err := client.ReadCoils(0, 2)
	if err != nil {
		log.Fatalf("reading coils: %v", err)
	}
	inputBytes, err := client.ReadDiscreteInputs(0, 3)
	if err != nil {
		log.Fatalf("reading inputs: %v", err)
	}
	coils := pdubus.BytesToBits(coilBytes)
	inputs := pdubus.BytesToBits(inputBytes)
	fmt.Printf("command mount=%v dew=%v\n", coils[0], coils[1])
	fmt.Printf("sensed  fault=%v mount=%v dew=%v\n", inputs[0], inputs[1], inputs[2])
}
