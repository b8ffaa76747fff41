package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-ambient/debug"
)

// ErrPortNotFound is returned when no port matches the requested name
var ErrPortNotFound = errors.New("midi port not found")

// ErrDriverHung is returned when the driver does not answer a port scan
var ErrDriverHung = errors.New("midi driver not responding")

// scanTimeout bounds a port scan (CoreMIDI can hang)
const scanTimeout = 3 * time.Second

type portsResult struct {
	ins  []drivers.In
	outs []drivers.Out
}

func scan() (portsResult, error) {
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r, nil
	case <-time.After(scanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return portsResult{}, ErrDriverHung
	}
}

// ListPorts returns the names of all input and output ports
func ListPorts() (ins, outs []string, err error) {
	r, err := scan()
	if err != nil {
		return nil, nil, err
	}
	for _, p := range r.ins {
		ins = append(ins, p.String())
	}
	for _, p := range r.outs {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

func matches(portName, want string) bool {
	return strings.Contains(strings.ToLower(portName), strings.ToLower(want))
}

// Out is an open output port
type Out struct {
	port drivers.Out
	send func(gomidi.Message) error
}

// OpenOut opens the first output port whose name contains name (case-insensitive)
func OpenOut(name string) (*Out, error) {
	r, err := scan()
	if err != nil {
		return nil, err
	}
	for _, p := range r.outs {
		if !matches(p.String(), name) {
			continue
		}
		send, err := gomidi.SendTo(p)
		if err != nil {
			return nil, fmt.Errorf("open output %q: %w", p.String(), err)
		}
		debug.Log("midi", "opened output %s", p.String())
		return &Out{port: p, send: send}, nil
	}
	return nil, fmt.Errorf("%w: output %q", ErrPortNotFound, name)
}

func (o *Out) Name() string {
	return o.port.String()
}

// Send writes one message to the port
func (o *Out) Send(msg gomidi.Message) error {
	return o.send(msg)
}

func (o *Out) Close() error {
	return o.port.Close()
}

// CloseDriver releases the MIDI driver; call once at exit
func CloseDriver() {
	gomidi.CloseDriver()
}
