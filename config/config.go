package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-ambient/midi"
	"go-ambient/scheduler"
	"go-ambient/season"
	"go-ambient/theory"
)

// BoundsMS is a cadence range in milliseconds
type BoundsMS struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// SchedulerConfig holds loop timing in milliseconds
type SchedulerConfig struct {
	TickMS      int      `json:"tickMs"`
	LookaheadMS int      `json:"lookaheadMs"`
	Drone       BoundsMS `json:"drone"`
	Pattern     BoundsMS `json:"pattern"`
	Phrase      BoundsMS `json:"phrase"`
}

// MIDIConfig defines the synth output and optional keyboard input
type MIDIConfig struct {
	Enabled        bool    `json:"enabled"`
	OutputPort     string  `json:"outputPort,omitempty"`
	InputPort      string  `json:"inputPort,omitempty"` // keyboard used to pick a lock root
	Tempo          int     `json:"tempo"`
	LowNote        int     `json:"lowNote"`
	HighNote       int     `json:"highNote"`
	NotesPerSecond float64 `json:"notesPerSecond,omitempty"`
}

// ScaleConfig stores the scale selection the app starts with
type ScaleConfig struct {
	FollowSeasons bool          `json:"followSeasons"`
	Locked        *theory.Scale `json:"locked,omitempty"`
	Plan          season.Plan   `json:"plan,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette    string `json:"palette,omitempty"` // path to a .gpl file; empty uses the built-in one
	AutoStart  bool   `json:"autoStart"`
	HistoryLen int    `json:"historyLen,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	MIDI      MIDIConfig      `json:"midi"`
	Scale     ScaleConfig     `json:"scale"`
	UI        UIConfig        `json:"ui,omitempty"`
	Debug     bool            `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	sc := scheduler.DefaultConfig()
	rc := midi.DefaultRenderConfig()
	return &Config{
		Scheduler: SchedulerConfig{
			TickMS:      ms(sc.Tick),
			LookaheadMS: ms(sc.Lookahead),
			Drone:       BoundsMS{ms(sc.Drone.Min), ms(sc.Drone.Max)},
			Pattern:     BoundsMS{ms(sc.Pattern.Min), ms(sc.Pattern.Max)},
			Phrase:      BoundsMS{ms(sc.Phrase.Min), ms(sc.Phrase.Max)},
		},
		MIDI: MIDIConfig{
			Tempo:          rc.Tempo,
			LowNote:        rc.Low,
			HighNote:       rc.High,
			NotesPerSecond: 40,
		},
		Scale: ScaleConfig{
			FollowSeasons: true,
		},
		UI: UIConfig{
			AutoStart:  true,
			HistoryLen: 24,
		},
	}
}

func ms(d time.Duration) int {
	return int(d / time.Millisecond)
}

func dur(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// SchedulerConfig converts to the loop's config and validates it
func (c *Config) SchedulerConfig() (scheduler.Config, error) {
	s := c.Scheduler
	out := scheduler.Config{
		Tick:      dur(s.TickMS),
		Lookahead: dur(s.LookaheadMS),
		Drone:     scheduler.Bounds{Min: dur(s.Drone.Min), Max: dur(s.Drone.Max)},
		Pattern:   scheduler.Bounds{Min: dur(s.Pattern.Min), Max: dur(s.Pattern.Max)},
		Phrase:    scheduler.Bounds{Min: dur(s.Phrase.Min), Max: dur(s.Phrase.Max)},
	}
	if err := out.Validate(); err != nil {
		return scheduler.Config{}, err
	}
	return out, nil
}

// RenderConfig converts the MIDI section and validates it
func (c *Config) RenderConfig() (midi.RenderConfig, error) {
	rc := midi.RenderConfig{Tempo: c.MIDI.Tempo, Low: c.MIDI.LowNote, High: c.MIDI.HighNote}
	if err := rc.Validate(); err != nil {
		return midi.RenderConfig{}, fmt.Errorf("midi config: %w", err)
	}
	return rc, nil
}

// Plan returns the configured season plan, or the default when none is set
func (c *Config) Plan() (season.Plan, error) {
	if len(c.Scale.Plan) == 0 {
		return season.DefaultPlan(), nil
	}
	if err := c.Scale.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("scale config: %w", err)
	}
	return c.Scale.Plan, nil
}

// Policy builds a season policy in the configured state
func (c *Config) Policy() (*season.Policy, error) {
	plan, err := c.Plan()
	if err != nil {
		return nil, err
	}
	p, err := season.NewPolicy(plan)
	if err != nil {
		return nil, err
	}
	p.SetMode(c.Scale.Locked, c.Scale.FollowSeasons)
	return p, nil
}

// RememberScale copies a policy's lock and follow flag into the config
func (c *Config) RememberScale(st season.State) {
	c.Scale.FollowSeasons = st.Follow
	c.Scale.Locked = st.Locked
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-ambient"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults; a missing file yields defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
