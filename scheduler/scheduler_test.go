package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"go-ambient/intent"
)

// fixedRand always returns the same fraction and cycles IntN results
type fixedRand struct {
	f float64
	n int
}

func (r *fixedRand) Float64() float64 { return r.f }

func (r *fixedRand) IntN(n int) int {
	r.n++
	return r.n % n
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func mustLoop(t *testing.T, opts ...Option) *Loop {
	t.Helper()
	l, err := New(DefaultConfig(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// simulate advances in tick steps up to total and collects every emission
func simulate(l *Loop, total time.Duration) []intent.Intent {
	var out []intent.Intent
	for now := l.cfg.Tick; now <= total; now += l.cfg.Tick {
		out = append(out, l.Tick(now)...)
	}
	return out
}

func countKinds(in []intent.Intent) map[intent.Kind]int {
	counts := map[intent.Kind]int{}
	for _, i := range in {
		counts[i.Kind()]++
	}
	return counts
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatal(err)
	}

	bad := []func(*Config){
		func(c *Config) { c.Tick = 0 },
		func(c *Config) { c.Lookahead = -time.Millisecond },
		func(c *Config) { c.Drone.Max = c.Drone.Min },
		func(c *Config) { c.Pattern.Min = 0 },
		func(c *Config) { c.Phrase = Bounds{Min: 2 * time.Second, Max: time.Second} },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: expected ErrInvalidConfig, got %v", i, err)
		}
	}
}

func TestNineSecondScenario(t *testing.T) {
	// Gaps pinned to each stream's minimum
	l := mustLoop(t, WithRand(&fixedRand{f: 0}))
	got := simulate(l, 9000*time.Millisecond)
	counts := countKinds(got)

	if counts[intent.KindDrone] < 1 {
		t.Errorf("no drone emitted in 9s")
	}
	if counts[intent.KindPhrase] < 1 {
		t.Errorf("no phrase emitted in 9s")
	}
	if counts[intent.KindPattern] < 4 {
		t.Errorf("got %d patterns, want at least 4", counts[intent.KindPattern])
	}

	// With minimum gaps: drone fires after 4000ms strictly, so at 4100
	first := got[0]
	if first.Kind() != intent.KindPattern {
		t.Fatalf("first emission %s, want pattern", first.Kind())
	}
	if want := 1.1 + 0.15; !near(first.When(), want) {
		t.Errorf("first pattern whenSec = %v, want %v", first.When(), want)
	}
}

func TestSeededScenarioCounts(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		l := mustLoop(t, WithRand(seeded(seed)))
		counts := countKinds(simulate(l, 9000*time.Millisecond))
		if counts[intent.KindDrone] < 1 {
			t.Errorf("seed %d: no drone in 9s", seed)
		}
		// Pattern gaps never exceed 2000ms
		if counts[intent.KindPattern] < 4 {
			t.Errorf("seed %d: %d patterns in 9s", seed, counts[intent.KindPattern])
		}
	}
}

func TestGapsWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	bounds := map[intent.Kind]Bounds{
		intent.KindDrone:   cfg.Drone,
		intent.KindPattern: cfg.Pattern,
		intent.KindPhrase:  cfg.Phrase,
	}

	for seed := uint64(1); seed <= 5; seed++ {
		l := mustLoop(t, WithRand(seeded(seed)))
		var last [3]time.Duration
		fired := [3]int{}

		for i := 1; i <= 1000; i++ {
			now := time.Duration(i) * cfg.Tick
			for _, in := range l.Tick(now) {
				k := in.Kind()
				gap := now - last[k]
				b := bounds[k]
				if gap < b.Min || gap > b.Max {
					t.Fatalf("seed %d: %s gap %v outside [%v, %v]", seed, k, gap, b.Min, b.Max)
				}
				if l.LastFired(k) != now {
					t.Fatalf("lastFired not reset for %s", k)
				}
				last[k] = now
				fired[k]++
			}
		}

		for _, k := range intent.Kinds() {
			if fired[k] < 2 {
				t.Errorf("seed %d: %s fired only %d times in 100s", seed, k, fired[k])
			}
		}
	}
}

func TestTickOrder(t *testing.T) {
	// Everything due at once: drone, pattern, phrase
	l := mustLoop(t, WithRand(&fixedRand{f: 0.5}))
	got := l.Tick(20 * time.Second)
	if len(got) != 3 {
		t.Fatalf("got %d intents, want 3", len(got))
	}
	for i, k := range intent.Kinds() {
		if got[i].Kind() != k {
			t.Errorf("position %d: %s, want %s", i, got[i].Kind(), k)
		}
	}
}

func TestPayloadInvariants(t *testing.T) {
	l := mustLoop(t, WithRand(seeded(42)))
	all := simulate(l, 10*time.Minute)
	if len(all) == 0 {
		t.Fatal("nothing emitted")
	}

	contours := map[intent.Contour]int{}
	chords := map[int]int{}
	for _, in := range all {
		if err := in.Validate(); err != nil {
			t.Fatalf("%#v: %v", in, err)
		}
		switch v := in.(type) {
		case intent.Pattern:
			if (v.Density > 0.5) != (v.Subdivision == intent.Sixteenth) {
				t.Fatalf("density %v with subdivision %s", v.Density, v.Subdivision)
			}
		case intent.Drone:
			chords[v.ChordIdx]++
			if v.HoldSec < 4 || v.HoldSec >= 6 {
				t.Fatalf("holdSec %v", v.HoldSec)
			}
		case intent.Phrase:
			contours[v.ContourID]++
		}
	}
	if len(chords) != 3 {
		t.Errorf("chords seen: %v", chords)
	}
	if len(contours) != 3 {
		t.Errorf("contours seen: %v", contours)
	}
}

func TestWhenIncludesLookahead(t *testing.T) {
	l := mustLoop(t, WithRand(&fixedRand{f: 0}))
	got := l.Tick(5 * time.Second)
	for _, in := range got {
		if !near(in.When(), 5.15) {
			t.Errorf("%s whenSec = %v, want 5.15", in.Kind(), in.When())
		}
	}
}

func TestRunDelivers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tick = time.Millisecond
	cfg.Pattern = Bounds{Min: time.Millisecond, Max: 2 * time.Millisecond}

	clock := &stepClock{step: 500 * time.Millisecond}
	l, err := New(cfg, WithRand(seeded(7)), WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan intent.Intent, 16)
	done := make(chan struct{})
	go func() {
		l.Run(ctx, out)
		close(done)
	}()

	select {
	case in := <-out:
		if in.Kind() != intent.KindPattern {
			t.Errorf("first intent %s, want pattern", in.Kind())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no intent delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDoesNotBlockOnFullChannel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tick = time.Millisecond
	l, _ := New(cfg, WithRand(&fixedRand{}), WithClock(&stepClock{step: time.Minute}))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan intent.Intent) // unbuffered and never read
	done := make(chan struct{})
	go func() {
		l.Run(ctx, out)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked on a full channel")
	}
}

// stepClock advances by step on every read
type stepClock struct {
	now, step time.Duration
}

func (c *stepClock) Now() time.Duration {
	c.now += c.step
	return c.now
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
