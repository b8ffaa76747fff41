package main

import (
	"strings"
	"testing"

	"go-ambient/intent"
	"go-ambient/theory"
)

func TestParseScale(t *testing.T) {
	tests := []struct {
		in   string
		want theory.Scale
	}{
		{"D3 Dorian", theory.Scale{Root: 50, Mode: theory.Dorian}},
		{"50 dorian", theory.Scale{Root: 50, Mode: theory.Dorian}},
		{"  A3   Aeolian ", theory.Scale{Root: 57, Mode: theory.Aeolian}},
	}
	for _, tt := range tests {
		got, err := parseScale(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseScale(%q) = %v, %v", tt.in, got, err)
		}
	}
	for _, bad := range []string{"", "D3", "D3 Phrygian", "X Dorian", "D3 Dorian extra"} {
		if _, err := parseScale(bad); err == nil {
			t.Errorf("parseScale(%q) accepted", bad)
		}
	}
}

func TestParseRunFlags(t *testing.T) {
	f, rest, err := parseRunFlags("play", []string{"-n", "2.5", "-lock", "C4 Lydian", "IAC"})
	if err != nil {
		t.Fatal(err)
	}
	if f.seconds != 2.5 || f.lock != "C4 Lydian" || f.json {
		t.Errorf("flags = %+v", f)
	}
	if len(rest) != 1 || rest[0] != "IAC" {
		t.Errorf("args = %v", rest)
	}
}

func TestFormatIntent(t *testing.T) {
	s := theory.Scale{Root: 50, Mode: theory.Dorian}
	line := formatIntent(intent.Pattern{WhenSec: 1.25, Density: 0.5, Subdivision: intent.Eighth, Mask: 3}, s)
	for _, want := range []string{"1.250s", "pattern", "D Dorian", "sub=1/8", "mask=0000000000000011"} {
		if !strings.Contains(line, want) {
			t.Errorf("%q missing %q", line, want)
		}
	}
}

func TestReadIntents(t *testing.T) {
	src := `{"kind":"drone","whenSec":4.15,"chordIdx":1,"holdSec":5}

{"kind":"pattern","whenSec":5.25,"density":0.7,"subdivision":"1/16","mask":255}
{"kind":"phrase","whenSec":9.15,"contourId":"arch","loudness":0.5}
`
	got, err := readIntents(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d intents", len(got))
	}
	kinds := []intent.Kind{intent.KindDrone, intent.KindPattern, intent.KindPhrase}
	for i, in := range got {
		if in.Kind() != kinds[i] {
			t.Errorf("intent %d is %s, want %s", i, in.Kind(), kinds[i])
		}
	}

	_, err = readIntents(strings.NewReader(`{"kind":"drone","whenSec":1,"chordIdx":1,"holdSec":5}` + "\n" + `{"kind":"chord"}`))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v", err)
	}
}

func TestDegreeNoteStaysInMIDIRange(t *testing.T) {
	for _, root := range []int{0, 60, 120, 127} {
		s := theory.Scale{Root: root, Mode: theory.Ionian}
		for deg := 1; deg <= 8; deg++ {
			n := int(degreeNote(deg, s))
			if n > 127 || !s.Contains(n) {
				t.Errorf("root %d degree %d: note %d", root, deg, n)
			}
		}
	}
	// Root 120 + octave folds back down to 120
	if got := degreeNote(8, theory.Scale{Root: 120, Mode: theory.Ionian}); got != 120 {
		t.Errorf("degreeNote(8, C9) = %d, want 120", got)
	}
}
