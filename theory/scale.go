package theory

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode is one of the seven-note diatonic modes
type Mode int

const (
	Ionian Mode = iota
	Dorian
	Lydian
	Mixolydian
	Aeolian
	modeCount
)

// Intervals from root (semitones), one row per mode
var modeIntervals = [modeCount][7]int{
	Ionian:     {0, 2, 4, 5, 7, 9, 11},
	Dorian:     {0, 2, 3, 5, 7, 9, 10},
	Lydian:     {0, 2, 4, 6, 7, 9, 11},
	Mixolydian: {0, 2, 4, 5, 7, 9, 10},
	Aeolian:    {0, 2, 3, 5, 7, 8, 10},
}

var modeNames = [modeCount]string{"Ionian", "Dorian", "Lydian", "Mixolydian", "Aeolian"}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Modes returns every mode in table order
func Modes() []Mode {
	out := make([]Mode, 0, modeCount)
	for m := Ionian; m < modeCount; m++ {
		out = append(out, m)
	}
	return out
}

func (m Mode) String() string {
	if m < 0 || m >= modeCount {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m >= 0 && m < modeCount
}

// Intervals returns the mode's ascending semitone offsets from the root
func (m Mode) Intervals() [7]int {
	if !m.Valid() {
		return modeIntervals[Ionian]
	}
	return modeIntervals[m]
}

// ParseMode looks a mode up by name (case-insensitive)
func ParseMode(name string) (Mode, error) {
	for i, n := range modeNames {
		if strings.EqualFold(n, name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", name)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scale is a root pitch (absolute MIDI number) and a mode.
// Values are never mutated; build a new one instead.
type Scale struct {
	Root int  `json:"rootMidi"`
	Mode Mode `json:"mode"`
}

func (s Scale) String() string {
	return fmt.Sprintf("%s %s", noteNames[floorMod(s.Root, 12)], s.Mode)
}

// PitchClasses returns the scale's pitch classes in interval-table order
func (s Scale) PitchClasses() [7]int {
	var out [7]int
	root := floorMod(s.Root, 12)
	for i, iv := range s.Mode.Intervals() {
		out[i] = (root + iv) % 12
	}
	return out
}

// Contains reports whether note's pitch class belongs to the scale
func (s Scale) Contains(note int) bool {
	pc := floorMod(note, 12)
	for _, p := range s.PitchClasses() {
		if p == pc {
			return true
		}
	}
	return false
}

// ScaleDegreeToMidi converts a 1-based scale degree to a MIDI note.
// Every 7 degrees climbs one octave; octaveLane shifts by whole octaves
// from the root's own octave. No clamping is applied.
func ScaleDegreeToMidi(degree, octaveLane int, s Scale) int {
	intervals := s.Mode.Intervals()
	n := len(intervals)
	idx := floorMod(degree-1, n)
	octaveOffset := floorDiv(degree-1, n)

	rootOctave := floorDiv(s.Root, 12)
	target := rootOctave + octaveLane + octaveOffset

	return target*12 + floorMod(s.Root, 12) + intervals[idx]
}

// QuantizeMidi moves note to the nearest scale pitch class within its own
// octave. Distance is circular; ties go to the earlier table entry.
func QuantizeMidi(note int, s Scale) int {
	intervals := s.Mode.Intervals()
	rootPC := floorMod(s.Root, 12)
	inPC := floorMod(note, 12)
	octave := floorDiv(note, 12)

	closest := intervals[0]
	minDist := 12
	for _, iv := range intervals {
		pc := (rootPC + iv) % 12
		d := abs(inPC - pc)
		if 12-d < d {
			d = 12 - d
		}
		if d < minDist {
			minDist = d
			closest = iv
		}
	}

	return octave*12 + (rootPC+closest)%12
}

// NoteName formats a MIDI note as name+octave, C4 = 60
func NoteName(note int) string {
	return fmt.Sprintf("%s%d", noteNames[floorMod(note, 12)], floorDiv(note, 12)-1)
}

var letterPC = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// ParseNote reads a MIDI number ("50") or a note name with octave ("D3",
// "F#4", "Bb2"). The result must lie in 0-127.
func ParseNote(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("note %d out of range", n)
		}
		return n, nil
	}
	if s == "" {
		return 0, fmt.Errorf("empty note")
	}

	pc, ok := letterPC[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("note %q: bad letter", s)
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		pc++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b"):
		pc--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("note %q: bad octave", s)
	}
	n := (octave+1)*12 + pc
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("note %q out of range", s)
	}
	return n, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
