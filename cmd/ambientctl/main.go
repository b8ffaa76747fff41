package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-ambient/config"
	"go-ambient/debug"
	"go-ambient/dispatcher"
	"go-ambient/intent"
	"go-ambient/midi"
	"go-ambient/season"
	"go-ambient/theory"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "run":
		err = runHeadless(os.Args[2:])
	case "play":
		err = play(os.Args[2:])
	case "degrees":
		err = degrees(os.Args[2:])
	case "replay":
		err = replay(os.Args[2:])
	case "watch":
		err = watchPorts()
	default:
		usage()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, midi.ErrDriverHung) {
			fmt.Fprintln(os.Stderr, "Fix: sudo killall coreaudiod midiserver")
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("go-ambient headless tool")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                      - List MIDI ports")
	fmt.Println("  run [-n sec] [-json]      - Print intents as they are scheduled")
	fmt.Println("  play [-n sec] <port>      - Play intents on a MIDI output")
	fmt.Println("  degrees [-scale S] <port> - Play each degree of a scale once")
	fmt.Println("  replay [-port P]          - Read run -json output from stdin and print or play it")
	fmt.Println("  watch                     - Poll for port changes")
	fmt.Println("")
	fmt.Println("Scales are written root then mode, e.g. \"D3 Dorian\" or \"50 Dorian\".")
}

type runFlags struct {
	seconds float64
	json    bool
	lock    string
	debug   bool
}

func parseRunFlags(name string, args []string) (runFlags, []string, error) {
	var f runFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Float64Var(&f.seconds, "n", 0, "stop after this many seconds (0 runs until interrupted)")
	fs.BoolVar(&f.json, "json", false, "print intents as JSON lines")
	fs.StringVar(&f.lock, "lock", "", "lock the scale instead of following seasons")
	fs.BoolVar(&f.debug, "debug", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return f, nil, err
	}
	return f, fs.Args(), nil
}

// setup loads config and builds the policy and dispatcher both run and play use
func setup(f runFlags, consumers ...dispatcher.Consumer) (*config.Config, *season.Policy, *dispatcher.Dispatcher, error) {
	if f.debug {
		debug.EnableTo(os.Stderr)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, nil, nil, err
	}
	if f.lock != "" {
		s, err := parseScale(f.lock)
		if err != nil {
			return nil, nil, nil, err
		}
		policy.LockScale(&s)
	}
	sc, err := cfg.SchedulerConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	consumers = append(consumers, dispatcher.LogConsumer)
	return cfg, policy, dispatcher.New(dispatcher.FromConfig(sc), consumers...), nil
}

// runFor starts d and blocks until the deadline, an interrupt, or the loop ends
func runFor(d *dispatcher.Dispatcher, seconds float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer cancel()
	}

	h := d.Start()
	select {
	case <-ctx.Done():
		h.Stop()
	case <-h.Done():
	}
	return h.Err()
}

func runHeadless(args []string) error {
	f, _, err := parseRunFlags("run", args)
	if err != nil {
		return err
	}

	var policy *season.Policy
	show := dispatcher.ConsumerFunc(func(in intent.Intent) {
		if f.json {
			data, err := json.Marshal(in)
			if err != nil {
				fmt.Fprintf(os.Stderr, "encode: %v\n", err)
				return
			}
			fmt.Println(string(data))
			return
		}
		fmt.Println(formatIntent(in, policy.CurrentScale()))
	})

	_, p, d, err := setup(f, show)
	if err != nil {
		return err
	}
	policy = p

	if !f.json {
		st := policy.Snapshot()
		fmt.Printf("scale %s (%s, follow=%v)\n", st.Current, st.Season, st.Follow)
	}
	if err := runFor(d, f.seconds); err != nil {
		return err
	}
	if !f.json {
		printSummary(d)
	}
	return nil
}

func formatIntent(in intent.Intent, s theory.Scale) string {
	var detail string
	switch v := in.(type) {
	case intent.Drone:
		detail = fmt.Sprintf("chord=%d hold=%.2fs", v.ChordIdx, v.HoldSec)
	case intent.Pattern:
		detail = fmt.Sprintf("density=%.2f sub=%s mask=%016b", v.Density, v.Subdivision, v.Mask)
	case intent.Phrase:
		detail = fmt.Sprintf("contour=%s loudness=%.2f", v.ContourID, v.Loudness)
	}
	return fmt.Sprintf("%8.3fs  %-7s %-14s %s", in.When(), in.Kind(), s, detail)
}

func printSummary(d *dispatcher.Dispatcher) {
	fmt.Println("")
	for _, k := range intent.Kinds() {
		s := d.Stats().Snapshot(k)
		fmt.Printf("  %-7s %4d  mean gap %5.2fs  jitter %4.2fs\n", k, s.Count, s.MeanGap.Seconds(), s.Jitter.Seconds())
	}
}

func play(args []string) error {
	f, rest, err := parseRunFlags("play", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("play needs one port name")
	}
	defer midi.CloseDriver()

	cfg, policy, d, err := setup(f)
	if err != nil {
		return err
	}
	rc, err := cfg.RenderConfig()
	if err != nil {
		return err
	}

	out, err := midi.OpenOut(rest[0])
	if err != nil {
		return err
	}
	defer out.Close()

	player := midi.NewPlayer(out.Send, policy, rc)
	defer player.Close()
	d.Subscribe(player)

	fmt.Printf("playing %s on %s (ctrl+c to stop)\n", policy.CurrentScale(), out.Name())
	return runFor(d, f.seconds)
}

func degrees(args []string) error {
	fs := flag.NewFlagSet("degrees", flag.ContinueOnError)
	scaleArg := fs.String("scale", "", "scale to play (default: today's)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("degrees needs one port name")
	}
	defer midi.CloseDriver()

	s := season.PickScaleForDate(time.Now(), nil)
	if *scaleArg != "" {
		var err error
		if s, err = parseScale(*scaleArg); err != nil {
			return err
		}
	}

	out, err := midi.OpenOut(fs.Arg(0))
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Printf("Using output: %s\n", out.Name())
	fmt.Printf("Playing %s\n", s)

	for deg := 1; deg <= 8; deg++ {
		note := degreeNote(deg, s)
		fmt.Printf("  %d: %s\n", deg, theory.NoteName(int(note)))
		if err := out.Send(gomidi.NoteOn(midi.ChannelPhrase, note, 90)); err != nil {
			return err
		}
		time.Sleep(300 * time.Millisecond)
		out.Send(gomidi.NoteOff(midi.ChannelPhrase, note))
	}

	fmt.Println("Done!")
	return nil
}

// degreeNote is degree deg of s, folded by octaves into 0-127
func degreeNote(deg int, s theory.Scale) uint8 {
	n := theory.ScaleDegreeToMidi(deg, 0, s)
	for n > 127 {
		n -= 12
	}
	for n < 0 {
		n += 12
	}
	return uint8(n)
}

// offsetClock is a loop clock frozen at a fixed reading
type offsetClock time.Duration

func (c offsetClock) Now() time.Duration { return time.Duration(c) }

// readIntents decodes one tagged intent per line, skipping blank lines
func readIntents(r io.Reader) ([]intent.Intent, error) {
	var out []intent.Intent
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		in, err := intent.Decode([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, in)
	}
	return out, sc.Err()
}

func replay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	port := fs.String("port", "", "MIDI output to play on (default: print only)")
	scaleArg := fs.String("scale", "", "scale to render against (default: configured)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	intents, err := readIntents(os.Stdin)
	if err != nil {
		return err
	}
	if len(intents) == 0 {
		return fmt.Errorf("no intents on stdin")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	if *scaleArg != "" {
		s, err := parseScale(*scaleArg)
		if err != nil {
			return err
		}
		policy.LockScale(&s)
	}

	if *port == "" {
		for _, in := range intents {
			fmt.Println(formatIntent(in, policy.CurrentScale()))
		}
		return nil
	}

	rc, err := cfg.RenderConfig()
	if err != nil {
		return err
	}
	defer midi.CloseDriver()
	out, err := midi.OpenOut(*port)
	if err != nil {
		return err
	}
	defer out.Close()

	player := midi.NewPlayer(out.Send, policy, rc)
	defer player.Close()

	// The first intent plays now; the rest keep their spacing
	first := intents[0].When()
	player.SetClock(offsetClock(time.Duration(first * float64(time.Second))))
	for _, in := range intents {
		player.Consume(in)
	}

	last := intents[len(intents)-1].When() - first
	fmt.Printf("replaying %d intents (%.1fs) on %s\n", len(intents), last, out.Name())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	for player.Pending() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil
}

// parseScale reads "D3 Dorian" or "50 Dorian"
func parseScale(s string) (theory.Scale, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return theory.Scale{}, fmt.Errorf("scale %q: want root and mode", s)
	}
	root, err := theory.ParseNote(fields[0])
	if err != nil {
		return theory.Scale{}, fmt.Errorf("scale %q: %w", s, err)
	}
	mode, err := theory.ParseMode(fields[1])
	if err != nil {
		return theory.Scale{}, fmt.Errorf("scale %q: %w", s, err)
	}
	return theory.Scale{Root: root, Mode: mode}, nil
}

func watchPorts() error {
	fmt.Println("Polling for port changes every 2 seconds. Ctrl+C to exit.")
	defer midi.CloseDriver()

	lastIn := ""
	lastOut := ""

	for {
		ins, outs, err := midi.ListPorts()
		if err != nil {
			return err
		}

		currentIn := strings.Join(ins, ",")
		currentOut := strings.Join(outs, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Port change detected\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", ins)
			fmt.Printf("  Outputs: %v\n", outs)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}

func listPorts() error {
	fmt.Println("(waiting up to 3 seconds...)")
	defer midi.CloseDriver()

	ins, outs, err := midi.ListPorts()
	if err != nil {
		return err
	}

	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range ins {
		fmt.Printf("  %d: %s\n", i, p)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p)
	}
	return nil
}
