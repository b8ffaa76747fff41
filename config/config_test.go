package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-ambient/scheduler"
	"go-ambient/season"
	"go-ambient/theory"
)

func TestDefaultsMatchComponents(t *testing.T) {
	cfg := DefaultConfig()

	sc, err := cfg.SchedulerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if sc != scheduler.DefaultConfig() {
		t.Errorf("scheduler config %+v differs from default", sc)
	}

	if _, err := cfg.RenderConfig(); err != nil {
		t.Error(err)
	}

	plan, err := cfg.Plan()
	if err != nil {
		t.Fatal(err)
	}
	if plan[season.Summer] != season.DefaultPlan()[season.Summer] {
		t.Errorf("plan = %v", plan)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Scale.FollowSeasons || cfg.Scheduler.TickMS != 100 {
		t.Errorf("not defaults: %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.MIDI.Enabled = true
	cfg.MIDI.OutputPort = "IAC Driver"
	cfg.Scale.FollowSeasons = false
	cfg.Scale.Locked = &theory.Scale{Root: 50, Mode: theory.Dorian}
	if err := cfg.SaveFile(path); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.MIDI.OutputPort != "IAC Driver" || !got.MIDI.Enabled {
		t.Errorf("midi = %+v", got.MIDI)
	}
	if got.Scale.Locked == nil || *got.Scale.Locked != (theory.Scale{Root: 50, Mode: theory.Dorian}) {
		t.Errorf("locked = %v", got.Scale.Locked)
	}

	p, err := got.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if p.IsFollowingSeasons() || p.CurrentScale() != (theory.Scale{Root: 50, Mode: theory.Dorian}) {
		t.Errorf("policy state: %+v", p.Snapshot())
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"midi":{"tempo":90}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MIDI.Tempo != 90 {
		t.Errorf("tempo = %d", cfg.MIDI.Tempo)
	}
	if cfg.Scheduler.Drone.Max != 8000 {
		t.Errorf("drone bounds lost: %+v", cfg.Scheduler.Drone)
	}
}

func TestInvalidSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler.Pattern = BoundsMS{Min: 2000, Max: 1000}
	if _, err := cfg.SchedulerConfig(); !errors.Is(err, scheduler.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Scale.Plan = season.Plan{season.Winter: {Root: 50, Mode: theory.Dorian}}
	if _, err := cfg.Policy(); !errors.Is(err, season.ErrIncompletePlan) {
		t.Errorf("expected ErrIncompletePlan, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.MIDI.HighNote = cfg.MIDI.LowNote + 3
	if _, err := cfg.RenderConfig(); err == nil {
		t.Error("narrow note range accepted")
	}
}

func TestBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"scale":{"locked":{"rootMidi":50,"mode":"Phrygian"}}}`), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestRememberScale(t *testing.T) {
	cfg := DefaultConfig()
	p, _ := season.NewPolicy(nil, season.WithClock(func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) }))
	p.LockScale(&theory.Scale{Root: 55, Mode: theory.Lydian})
	cfg.RememberScale(p.Snapshot())
	if cfg.Scale.FollowSeasons || cfg.Scale.Locked == nil || cfg.Scale.Locked.Root != 55 {
		t.Errorf("scale = %+v", cfg.Scale)
	}
}
