package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-ambient/intent"
)

// RenderCell renders a single colored glyph
func RenderCell(color lipgloss.Color, glyph rune) string {
	return lipgloss.NewStyle().Foreground(color).Render(string(glyph))
}

// RenderMask renders the sounding steps of a pattern, one glyph per step
func RenderMask(p intent.Pattern, color, muted lipgloss.Color, on, off rune) string {
	var out strings.Builder
	for i := 0; i < p.Subdivision.Steps(); i++ {
		if i > 0 && i%4 == 0 {
			out.WriteString(" ")
		}
		if p.Step(i) {
			out.WriteString(RenderCell(color, on))
		} else {
			out.WriteString(RenderCell(muted, off))
		}
	}
	return out.String()
}

// RenderMeter renders value 0-1 as a bar of width cells
func RenderMeter(value float64, width int, color, muted lipgloss.Color) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value*float64(width) + 0.5)
	on := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	off := lipgloss.NewStyle().Foreground(muted).Render(strings.Repeat("░", width-filled))
	return on + off
}

// Describe returns a one-line summary of an intent's payload
func Describe(in intent.Intent) string {
	switch v := in.(type) {
	case intent.Drone:
		return fmt.Sprintf("chord %d  hold %.1fs", v.ChordIdx, v.HoldSec)
	case intent.Pattern:
		return fmt.Sprintf("%s  density %.2f  mask %04x", v.Subdivision, v.Density, v.Mask)
	case intent.Phrase:
		return fmt.Sprintf("%s  loud %.2f", v.ContourID, v.Loudness)
	}
	return ""
}

// Lane is one stream's row in the main view
type Lane struct {
	Kind   intent.Kind
	Color  lipgloss.Color
	Muted  lipgloss.Color
	Glyph  rune
	Rest   rune // silent pattern step
	Count  string // preformatted
	Recent []intent.Intent
}

// Render draws the lane: a title line with a glyph per recent intent, then
// the newest intent's details
func (l Lane) Render(width int) string {
	title := lipgloss.NewStyle().Foreground(l.Color).Bold(true).Width(9).Render(l.Kind.String())
	count := lipgloss.NewStyle().Foreground(l.Muted).Render(l.Count)

	trail := width - 9 - lipgloss.Width(l.Count) - 2
	if trail < 0 {
		trail = 0
	}
	recent := l.Recent
	if len(recent) > trail {
		recent = recent[len(recent)-trail:]
	}
	var cells strings.Builder
	for range recent {
		cells.WriteString(RenderCell(l.Color, l.Glyph))
	}
	padding := strings.Repeat(" ", trail-len(recent))

	lines := []string{title + cells.String() + padding + "  " + count}

	if len(l.Recent) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(l.Muted).Render("         waiting"))
		return strings.Join(lines, "\n")
	}

	last := l.Recent[len(l.Recent)-1]
	detail := fmt.Sprintf("         @%7.2fs  %s", last.When(), Describe(last))
	lines = append(lines, lipgloss.NewStyle().Foreground(l.Muted).Render(detail))

	switch v := last.(type) {
	case intent.Pattern:
		lines = append(lines, "         "+RenderMask(v, l.Color, l.Muted, l.Glyph, l.Rest))
	case intent.Phrase:
		lines = append(lines, "         "+RenderMeter(v.Loudness, 16, l.Color, l.Muted))
	case intent.Drone:
		lines = append(lines, "         "+RenderMeter(v.HoldSec/6, 16, l.Color, l.Muted))
	}
	return strings.Join(lines, "\n")
}
