package midi

import (
	"fmt"
	"sort"
	"time"

	"go-ambient/intent"
	"go-ambient/theory"
)

// RenderConfig controls how intents become notes
type RenderConfig struct {
	Tempo int // quarter notes per minute
	Low   int // lowest MIDI note emitted
	High  int // highest MIDI note emitted
}

func DefaultRenderConfig() RenderConfig {
	return RenderConfig{Tempo: 72, Low: 36, High: 96}
}

func (rc RenderConfig) Validate() error {
	if rc.Tempo < 20 || rc.Tempo > 300 {
		return fmt.Errorf("tempo %d out of range 20-300", rc.Tempo)
	}
	if rc.Low < 0 || rc.High > 127 || rc.High-rc.Low < 11 {
		return fmt.Errorf("note range %d-%d must span an octave inside 0-127", rc.Low, rc.High)
	}
	return nil
}

func (rc RenderConfig) beat() time.Duration {
	return time.Minute / time.Duration(rc.Tempo)
}

// Triads on I, IV and vi, one per drone chord index
var droneChords = [intent.ChordCount][3]int{
	{1, 3, 5},
	{4, 6, 8},
	{6, 8, 10},
}

// Scale-degree shapes for each phrase contour
var contourDegrees = map[intent.Contour][]int{
	intent.RiseFall: {1, 2, 3, 5, 6, 5, 3, 2},
	intent.Arch:     {1, 3, 5, 8, 5, 3, 1},
	intent.Meander:  {3, 2, 4, 3, 5, 4, 6, 5},
}

const droneVelocity = 70

// Render turns an intent into note events against scale s, sorted by At
func Render(in intent.Intent, s theory.Scale, rc RenderConfig) []Event {
	var events []Event
	switch v := in.(type) {
	case intent.Drone:
		events = renderDrone(v, s, rc)
	case intent.Pattern:
		events = renderPattern(v, s, rc)
	case intent.Phrase:
		events = renderPhrase(v, s, rc)
	}
	for i := range events {
		events[i].Pair = i / 2
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })
	return events
}

func renderDrone(d intent.Drone, s theory.Scale, rc RenderConfig) []Event {
	idx := d.ChordIdx
	if idx < 0 || idx >= len(droneChords) {
		return nil
	}
	hold := time.Duration(d.HoldSec * float64(time.Second))

	var events []Event
	for _, deg := range droneChords[idx] {
		note := fit(theory.ScaleDegreeToMidi(deg, -1, s), s, rc)
		events = append(events, noteEvents(0, hold, ChannelDrone, note, droneVelocity)...)
	}
	return events
}

func renderPattern(p intent.Pattern, s theory.Scale, rc RenderConfig) []Event {
	steps := p.Subdivision.Steps()
	stepLen := rc.beat() * 4 / time.Duration(steps) // 8 or 16 steps per bar
	vel := uint8(40 + p.Density*60)

	var events []Event
	for i := 0; i < steps; i++ {
		if !p.Step(i) {
			continue
		}
		deg := i%7 + 1
		note := fit(theory.ScaleDegreeToMidi(deg, 1, s), s, rc)
		at := time.Duration(i) * stepLen
		events = append(events, noteEvents(at, stepLen/2, ChannelPattern, note, vel)...)
	}
	return events
}

func renderPhrase(p intent.Phrase, s theory.Scale, rc RenderConfig) []Event {
	degrees, ok := contourDegrees[p.ContourID]
	if !ok {
		return nil
	}
	beat := rc.beat()
	vel := uint8(p.Loudness * 127)

	var events []Event
	for i, deg := range degrees {
		note := fit(theory.ScaleDegreeToMidi(deg, 0, s), s, rc)
		events = append(events, noteEvents(time.Duration(i)*beat, beat*9/10, ChannelPhrase, note, vel)...)
	}
	return events
}

// noteEvents builds an on/off pair
func noteEvents(at, length time.Duration, ch, note, vel uint8) []Event {
	return []Event{
		{At: at, Type: NoteOn, Channel: ch, Note: note, Velocity: vel},
		{At: at + length, Type: NoteOff, Channel: ch, Note: note},
	}
}

// fit folds note into [Low, High] by octaves and snaps it to the scale
func fit(note int, s theory.Scale, rc RenderConfig) uint8 {
	for note < rc.Low {
		note += 12
	}
	for note > rc.High {
		note -= 12
	}
	note = theory.QuantizeMidi(note, s)
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}
	return uint8(note)
}
