package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-ambient/intent"
)

func TestDefaultPalette(t *testing.T) {
	p := Default()
	if p.Name != "Dusk" {
		t.Errorf("name = %q", p.Name)
	}
	if len(p.Colors) != 13 {
		t.Errorf("%d colors", len(p.Colors))
	}
	if p.Colors[0] != (RGB{17, 14, 38}) {
		t.Errorf("first color %v", p.Colors[0])
	}
}

func TestParseGPLSkipsJunk(t *testing.T) {
	src := `GIMP Palette
Name: Test
Columns: 2
# comment
0 0 0 black
300 0 0 out of range
x y z
255 255 255
`
	p, err := ParseGPL(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Colors) != 2 {
		t.Fatalf("colors = %v", p.Colors)
	}
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Error("empty palette accepted")
	}
}

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.gpl")
	os.WriteFile(path, []byte("GIMP Palette\n10 20 30\n"), 0644)

	p, err := LoadOrDefault(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Lookup(0.5) != (RGB{10, 20, 30}) {
		t.Errorf("single color lookup = %v", p.Lookup(0.5))
	}

	if _, err := LoadGPL(filepath.Join(t.TempDir(), "missing.gpl")); err == nil {
		t.Error("missing file accepted")
	}
	if p, err := LoadOrDefault(""); err != nil || p.Name != "Dusk" {
		t.Errorf("empty path: %v %v", p, err)
	}
}

func TestLookup(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	tests := []struct {
		norm float64
		want RGB
	}{
		{-1, RGB{0, 0, 0}},
		{0, RGB{0, 0, 0}},
		{0.5, RGB{100, 50, 25}},
		{1, RGB{200, 100, 50}},
		{2, RGB{200, 100, 50}},
	}
	for _, tt := range tests {
		if got := p.Lookup(tt.norm); got != tt.want {
			t.Errorf("Lookup(%v) = %v, want %v", tt.norm, got, tt.want)
		}
	}
}

func TestStreamColorsDiffer(t *testing.T) {
	th := New(Default())
	seen := map[string]bool{}
	for _, k := range intent.Kinds() {
		c := string(th.Stream(k))
		if seen[c] {
			t.Errorf("%s shares color %s", k, c)
		}
		seen[c] = true
		if th.Glyph(k) == '?' {
			t.Errorf("%s has no glyph", k)
		}
	}
	if Hex(RGB{255, 0, 16}) != "#ff0010" {
		t.Errorf("hex = %s", Hex(RGB{255, 0, 16}))
	}
}
