// Package intent defines the musical events the scheduler emits.
//
// An intent says what should happen and when, never how it sounds. Each
// value is immutable and delivered once; WhenSec is the scheduled onset on
// the scheduler's monotonic clock, already including the lookahead.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags an intent variant
type Kind int

const (
	KindDrone Kind = iota
	KindPattern
	KindPhrase
)

func (k Kind) String() string {
	switch k {
	case KindDrone:
		return "drone"
	case KindPattern:
		return "pattern"
	case KindPhrase:
		return "phrase"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds lists the variants in per-tick emission order
func Kinds() []Kind {
	return []Kind{KindDrone, KindPattern, KindPhrase}
}

// Intent is one of Drone, Pattern or Phrase
type Intent interface {
	Kind() Kind
	When() float64
	Validate() error
	sealed()
}

// Subdivision is the rhythmic grid of a pattern
type Subdivision string

const (
	Eighth    Subdivision = "1/8"
	Sixteenth Subdivision = "1/16"
)

// Steps returns how many mask bits a pattern at s plays
func (s Subdivision) Steps() int {
	if s == Sixteenth {
		return 16
	}
	return 8
}

// Contour names a phrase shape
type Contour string

const (
	RiseFall Contour = "riseFall"
	Arch     Contour = "arch"
	Meander  Contour = "meander"
)

// Contours lists the phrase shapes in selection order
func Contours() []Contour {
	return []Contour{RiseFall, Arch, Meander}
}

const (
	ChordCount  = 3
	MaskLimit   = 1 << 16
	MinLoudness = 0.4
	MaxLoudness = 0.9
)

// ErrOutOfRange marks a payload field outside its domain
var ErrOutOfRange = errors.New("intent field out of range")

// Drone holds a chord from a small set for HoldSec seconds
type Drone struct {
	WhenSec  float64 `json:"whenSec"`
	ChordIdx int     `json:"chordIdx"`
	HoldSec  float64 `json:"holdSec"`
}

// Pattern is a 16-bit step mask played at a density-derived subdivision
type Pattern struct {
	WhenSec     float64     `json:"whenSec"`
	Density     float64     `json:"density"`
	Subdivision Subdivision `json:"subdivision"`
	Mask        uint16      `json:"mask"`
}

// Phrase is a short melodic gesture following a named contour
type Phrase struct {
	WhenSec   float64 `json:"whenSec"`
	ContourID Contour `json:"contourId"`
	Loudness  float64 `json:"loudness"`
}

func (Drone) Kind() Kind   { return KindDrone }
func (Pattern) Kind() Kind { return KindPattern }
func (Phrase) Kind() Kind  { return KindPhrase }

func (d Drone) When() float64   { return d.WhenSec }
func (p Pattern) When() float64 { return p.WhenSec }
func (p Phrase) When() float64  { return p.WhenSec }

func (Drone) sealed()   {}
func (Pattern) sealed() {}
func (Phrase) sealed()  {}

// SubdivisionFor is the fixed density rule: above 0.5 plays sixteenths
func SubdivisionFor(density float64) Subdivision {
	if density > 0.5 {
		return Sixteenth
	}
	return Eighth
}

func (d Drone) Validate() error {
	if d.WhenSec < 0 {
		return fmt.Errorf("%w: drone whenSec %v", ErrOutOfRange, d.WhenSec)
	}
	if d.ChordIdx < 0 || d.ChordIdx >= ChordCount {
		return fmt.Errorf("%w: chordIdx %d", ErrOutOfRange, d.ChordIdx)
	}
	if d.HoldSec < 0 {
		return fmt.Errorf("%w: holdSec %v", ErrOutOfRange, d.HoldSec)
	}
	return nil
}

func (p Pattern) Validate() error {
	if p.WhenSec < 0 {
		return fmt.Errorf("%w: pattern whenSec %v", ErrOutOfRange, p.WhenSec)
	}
	if p.Density < 0 || p.Density > 1 {
		return fmt.Errorf("%w: density %v", ErrOutOfRange, p.Density)
	}
	if p.Subdivision != SubdivisionFor(p.Density) {
		return fmt.Errorf("%w: subdivision %q for density %v", ErrOutOfRange, p.Subdivision, p.Density)
	}
	return nil
}

func (p Phrase) Validate() error {
	if p.WhenSec < 0 {
		return fmt.Errorf("%w: phrase whenSec %v", ErrOutOfRange, p.WhenSec)
	}
	switch p.ContourID {
	case RiseFall, Arch, Meander:
	default:
		return fmt.Errorf("%w: contour %q", ErrOutOfRange, p.ContourID)
	}
	if p.Loudness < MinLoudness || p.Loudness > MaxLoudness {
		return fmt.Errorf("%w: loudness %v", ErrOutOfRange, p.Loudness)
	}
	return nil
}

// Step reports whether step i (0-15) of the mask is set
func (p Pattern) Step(i int) bool {
	if i < 0 || i > 15 {
		return false
	}
	return p.Mask&(1<<uint(i)) != 0
}

// MarshalJSON methods add the kind tag so consumers can tell variants apart

func (d Drone) MarshalJSON() ([]byte, error) {
	type plain Drone
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{KindDrone.String(), plain(d)})
}

func (p Pattern) MarshalJSON() ([]byte, error) {
	type plain Pattern
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{KindPattern.String(), plain(p)})
}

func (p Phrase) MarshalJSON() ([]byte, error) {
	type plain Phrase
	return json.Marshal(struct {
		Kind string `json:"kind"`
		plain
	}{KindPhrase.String(), plain(p)})
}

// ErrUnknownKind is returned by Decode for an unrecognised kind tag
var ErrUnknownKind = errors.New("unknown intent kind")

// Decode reads one tagged intent message and validates it
func Decode(data []byte) (Intent, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	var in Intent
	switch head.Kind {
	case "drone":
		var d Drone
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode drone: %w", err)
		}
		in = d
	case "pattern":
		var p Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode pattern: %w", err)
		}
		in = p
	case "phrase":
		var p Phrase
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode phrase: %w", err)
		}
		in = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Kind)
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}
