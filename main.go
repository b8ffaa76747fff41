package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-ambient/config"
	"go-ambient/debug"
	"go-ambient/dispatcher"
	"go-ambient/midi"
	"go-ambient/season"
	"go-ambient/theme"
	"go-ambient/theory"
	"go-ambient/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Debug || os.Getenv("AMBIENT_DEBUG") != "" {
		if err := debug.Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}
	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		return err
	}

	feed := tui.NewFeed(64)
	d := dispatcher.New(dispatcher.FromConfig(schedCfg), feed, dispatcher.LogConsumer)

	status := "midi off"
	cleanup := func() {}
	if cfg.MIDI.Enabled {
		defer midi.CloseDriver()
		status, cleanup, err = attachMIDI(cfg, d, policy)
		if err != nil {
			// keep running without sound
			status = err.Error()
			debug.Log("main", "ERROR %v", err)
		}
	}

	m := tui.NewModel(d, policy, feed, theme.New(palette),
		tui.WithHistory(cfg.UI.HistoryLen),
		tui.WithAutoStart(cfg.UI.AutoStart))
	m.Status = status

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, runErr := p.Run()

	if h := d.Handle(); h != nil {
		h.Stop()
	}
	cleanup()

	cfg.RememberScale(policy.Snapshot())
	if err := cfg.Save(); err != nil {
		debug.Log("main", "save config: %v", err)
	}
	return runErr
}

// attachMIDI subscribes a player on the configured output and, if set, lets
// a keyboard pick the lock root. cleanup is never nil and releases whatever
// was opened, most recent first.
func attachMIDI(cfg *config.Config, d *dispatcher.Dispatcher, policy *season.Policy) (status string, cleanup func(), err error) {
	var closers []func()
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	rc, err := cfg.RenderConfig()
	if err != nil {
		return "", cleanup, err
	}
	out, err := midi.OpenOut(cfg.MIDI.OutputPort)
	if err != nil {
		return "", cleanup, err
	}
	closers = append(closers, func() { out.Close() })

	var opts []midi.PlayerOption
	if cfg.MIDI.NotesPerSecond > 0 {
		opts = append(opts, midi.WithRateLimit(cfg.MIDI.NotesPerSecond, 16))
	}
	player := midi.NewPlayer(out.Send, policy, rc, opts...)
	closers = append(closers, player.Close)
	d.Subscribe(player)

	status = "out: " + out.Name()

	if cfg.MIDI.InputPort != "" {
		kb, err := midi.OpenKeyboard(cfg.MIDI.InputPort)
		if err != nil {
			debug.Log("main", "keyboard: %v", err)
			return status + "  (keyboard: " + err.Error() + ")", cleanup, nil
		}
		closers = append(closers, func() { kb.Close() })
		go func() {
			for ev := range kb.NoteEvents() {
				lockRoot(policy, ev.Note)
			}
		}()
		status += "  in: " + kb.ID()
	}
	return status, cleanup, nil
}

// lockRoot locks the scale to note as root, keeping the current mode
func lockRoot(policy *season.Policy, note uint8) theory.Scale {
	s := theory.Scale{Root: int(note), Mode: policy.CurrentScale().Mode}
	policy.LockScale(&s)
	return s
}
