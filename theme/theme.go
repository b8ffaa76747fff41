package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-ambient/intent"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Drone   rune // ▬ held chord
	Pattern rune // ● sounding step
	Rest    rune // · silent step
	Phrase  rune // ~ melodic line
	Lock    rune // ◆ scale locked
	Follow  rune // ◇ following seasons
	Running rune // ▶
	Stopped rune // ■
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Drone:   '▬',
			Pattern: '●',
			Rest:    '·',
			Phrase:  '~',
			Lock:    '◆',
			Follow:  '◇',
			Running: '▶',
			Stopped: '■',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.25
	RoleFG      = 0.45
	RoleAccent  = 0.6
	RoleDrone   = 0.35
	RolePattern = 0.65
	RolePhrase  = 0.9
	RoleWarning = 1.0
)

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

// Stream returns the lane color for an intent kind
func (t *Theme) Stream(k intent.Kind) lipgloss.Color {
	switch k {
	case intent.KindDrone:
		return t.Color(RoleDrone)
	case intent.KindPattern:
		return t.Color(RolePattern)
	case intent.KindPhrase:
		return t.Color(RolePhrase)
	}
	return t.FG()
}

// Glyph returns the lane symbol for an intent kind
func (t *Theme) Glyph(k intent.Kind) rune {
	switch k {
	case intent.KindDrone:
		return t.Symbols.Drone
	case intent.KindPattern:
		return t.Symbols.Pattern
	case intent.KindPhrase:
		return t.Symbols.Phrase
	}
	return '?'
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(Hex(c))
}

// Hex formats c as #rrggbb
func Hex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
