package midi

import "time"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Channels per stream (0-based, shown to users as 1-3)
const (
	ChannelDrone   uint8 = 0
	ChannelPattern uint8 = 1
	ChannelPhrase  uint8 = 2
)

// Event is one note message, At after the intent's onset
type Event struct {
	At       time.Duration
	Type     uint8 // NoteOn, NoteOff
	Channel  uint8
	Note     uint8
	Velocity uint8
	Pair     int // shared by a note-on and its note-off, unique within one Render
}
