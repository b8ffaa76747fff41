package midi

import (
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-ambient/debug"
)

// NoteEvent is a note-on played on a keyboard
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
}

// Keyboard listens to a MIDI input and reports note-ons. The app uses it to
// pick a lock root by playing a key.
type Keyboard struct {
	id       string
	stopFunc func()
	noteChan chan NoteEvent

	mu     sync.Mutex
	closed bool
}

// OpenKeyboard listens on the first input port whose name contains name
func OpenKeyboard(name string) (*Keyboard, error) {
	r, err := scan()
	if err != nil {
		return nil, err
	}
	for _, p := range r.ins {
		if matches(p.String(), name) {
			return newKeyboard(p.String(), p)
		}
	}
	return nil, fmt.Errorf("%w: input %q", ErrPortNotFound, name)
}

func newKeyboard(id string, inPort drivers.In) (*Keyboard, error) {
	kb := &Keyboard{
		id:       id,
		noteChan: make(chan NoteEvent, 32),
	}

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		kb.handle(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	kb.stopFunc = stop
	debug.Log("midi", "listening on %s", id)
	return kb, nil
}

// handle forwards note-ons without blocking the driver callback. Callbacks
// still in flight after Close are dropped.
func (kb *Keyboard) handle(msg gomidi.Message) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	if kb.closed {
		return
	}
	select {
	case kb.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
	default:
	}
}

func (kb *Keyboard) ID() string {
	return kb.id
}

func (kb *Keyboard) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

func (kb *Keyboard) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	if !kb.closed {
		kb.closed = true
		close(kb.noteChan)
	}
	return nil
}
