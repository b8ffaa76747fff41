package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"go-ambient/intent"
)

const (
	fg    = lipgloss.Color("#ffffff")
	muted = lipgloss.Color("#444444")
)

func TestRenderMask(t *testing.T) {
	p := intent.Pattern{Subdivision: intent.Eighth, Mask: 0b1000_0101}
	got := ansi.Strip(RenderMask(p, fg, muted, 'x', '.'))
	if got != "x.x. ...x" {
		t.Errorf("mask = %q", got)
	}

	p.Subdivision = intent.Sixteenth
	p.Mask = 0xffff
	if got := ansi.Strip(RenderMask(p, fg, muted, 'x', '.')); strings.Count(got, "x") != 16 {
		t.Errorf("full mask = %q", got)
	}
}

func TestRenderMeter(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{3, "████"},
		{-1, "░░░░"},
	}
	for _, tt := range tests {
		if got := ansi.Strip(RenderMeter(tt.v, 4, fg, muted)); got != tt.want {
			t.Errorf("meter(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		in   intent.Intent
		want string
	}{
		{intent.Drone{ChordIdx: 2, HoldSec: 4.5}, "chord 2  hold 4.5s"},
		{intent.Pattern{Density: 0.75, Subdivision: intent.Sixteenth, Mask: 0xbeef}, "1/16  density 0.75  mask beef"},
		{intent.Phrase{ContourID: intent.Meander, Loudness: 0.6}, "meander  loud 0.60"},
	}
	for _, tt := range tests {
		if got := Describe(tt.in); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLaneRender(t *testing.T) {
	l := Lane{Kind: intent.KindPhrase, Color: fg, Muted: muted, Glyph: '~', Count: "3"}

	empty := ansi.Strip(l.Render(40))
	if !strings.Contains(empty, "phrase") || !strings.Contains(empty, "waiting") {
		t.Errorf("empty lane:\n%s", empty)
	}

	for i := 0; i < 50; i++ {
		l.Recent = append(l.Recent, intent.Phrase{WhenSec: float64(i), ContourID: intent.Arch, Loudness: 0.5})
	}
	out := ansi.Strip(l.Render(40))
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("%d lines:\n%s", len(lines), out)
	}
	// Trail is clipped to the width left after title and count
	if n := strings.Count(lines[0], "~"); n != 40-9-1-2 {
		t.Errorf("%d glyphs in %q", n, lines[0])
	}
	if !strings.Contains(lines[1], "49.00s") || !strings.Contains(lines[1], "arch") {
		t.Errorf("detail = %q", lines[1])
	}
}

func TestLanePatternUsesGlyphs(t *testing.T) {
	l := Lane{Kind: intent.KindPattern, Color: fg, Muted: muted, Glyph: '#', Rest: '_', Count: "1"}
	l.Recent = []intent.Intent{intent.Pattern{WhenSec: 1, Density: 0.2, Subdivision: intent.Eighth, Mask: 0b0000_0011}}

	lines := strings.Split(ansi.Strip(l.Render(40)), "\n")
	if len(lines) != 3 {
		t.Fatalf("%d lines", len(lines))
	}
	if got := strings.TrimSpace(lines[2]); got != "##__ ____" {
		t.Errorf("mask row = %q", got)
	}
}
