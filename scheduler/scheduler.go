package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go-ambient/debug"
	"go-ambient/intent"
)

// Bounds is the inclusive-exclusive range an inter-emission gap is drawn from
type Bounds struct {
	Min, Max time.Duration
}

// Config controls cadence and lookahead
type Config struct {
	Tick      time.Duration
	Lookahead time.Duration
	Drone     Bounds
	Pattern   Bounds
	Phrase    Bounds
}

// DefaultConfig returns 100ms ticks, 150ms lookahead and the standard cadences
func DefaultConfig() Config {
	return Config{
		Tick:      100 * time.Millisecond,
		Lookahead: 150 * time.Millisecond,
		Drone:     Bounds{4000 * time.Millisecond, 8000 * time.Millisecond},
		Pattern:   Bounds{1000 * time.Millisecond, 2000 * time.Millisecond},
		Phrase:    Bounds{8000 * time.Millisecond, 15000 * time.Millisecond},
	}
}

// ErrInvalidConfig wraps every Config validation failure
var ErrInvalidConfig = errors.New("invalid scheduler config")

func (c Config) Validate() error {
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick %v", ErrInvalidConfig, c.Tick)
	}
	if c.Lookahead < 0 {
		return fmt.Errorf("%w: lookahead %v", ErrInvalidConfig, c.Lookahead)
	}
	for _, b := range []struct {
		name string
		b    Bounds
	}{{"drone", c.Drone}, {"pattern", c.Pattern}, {"phrase", c.Phrase}} {
		if b.b.Min <= 0 || b.b.Max <= b.b.Min {
			return fmt.Errorf("%w: %s bounds %v-%v", ErrInvalidConfig, b.name, b.b.Min, b.b.Max)
		}
	}
	return nil
}

// Rand is the random source the loop draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Clock reports elapsed monotonic time since its epoch
type Clock interface {
	Now() time.Duration
}

type monoClock struct{ start time.Time }

// NewClock returns a clock whose epoch is the moment of the call
func NewClock() Clock {
	return monoClock{start: time.Now()}
}

func (c monoClock) Now() time.Duration {
	return time.Since(c.start)
}

// Loop tracks three independent cadences (drone, pattern, phrase).
// Each has a last-fired stamp; on every tick a fresh gap is drawn for each
// stream and the stream fires when the time since its stamp exceeds it.
type Loop struct {
	cfg   Config
	rng   Rand
	clock Clock

	lastFired [3]time.Duration
}

// Option configures a Loop
type Option func(*Loop)

func WithRand(r Rand) Option {
	return func(l *Loop) { l.rng = r }
}

func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// New validates cfg and builds a loop with zeroed stamps
func New(cfg Config, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Loop{cfg: cfg}
	for _, o := range opts {
		o(l)
	}
	if l.rng == nil {
		l.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if l.clock == nil {
		l.clock = NewClock()
	}
	return l, nil
}

// Clock returns the clock intents' WhenSec is measured on
func (l *Loop) Clock() Clock {
	return l.clock
}

func (l *Loop) Config() Config {
	return l.cfg
}

// LastFired returns the stamp of the given stream
func (l *Loop) LastFired(k intent.Kind) time.Duration {
	return l.lastFired[k]
}

// Tick evaluates drone, pattern then phrase at time now and returns what fired,
// in that order.
func (l *Loop) Tick(now time.Duration) []intent.Intent {
	var out []intent.Intent
	when := (now + l.cfg.Lookahead).Seconds()

	for _, k := range intent.Kinds() {
		if now-l.lastFired[k] <= l.gap(k) {
			continue
		}
		out = append(out, l.generate(k, when))
		l.lastFired[k] = now
	}
	return out
}

// gap draws a fresh threshold for stream k on every check
func (l *Loop) gap(k intent.Kind) time.Duration {
	b := l.bounds(k)
	return b.Min + time.Duration(l.rng.Float64()*float64(b.Max-b.Min))
}

func (l *Loop) bounds(k intent.Kind) Bounds {
	switch k {
	case intent.KindDrone:
		return l.cfg.Drone
	case intent.KindPattern:
		return l.cfg.Pattern
	default:
		return l.cfg.Phrase
	}
}

func (l *Loop) generate(k intent.Kind, when float64) intent.Intent {
	switch k {
	case intent.KindDrone:
		return intent.Drone{
			WhenSec:  when,
			ChordIdx: l.rng.IntN(intent.ChordCount),
			HoldSec:  between(l.rng, 4, 6),
		}
	case intent.KindPattern:
		density := l.rng.Float64()
		return intent.Pattern{
			WhenSec:     when,
			Density:     density,
			Subdivision: intent.SubdivisionFor(density),
			Mask:        uint16(l.rng.IntN(intent.MaskLimit)),
		}
	default:
		contours := intent.Contours()
		return intent.Phrase{
			WhenSec:   when,
			ContourID: contours[l.rng.IntN(len(contours))],
			Loudness:  between(l.rng, intent.MinLoudness, intent.MaxLoudness),
		}
	}
}

func between(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// Run ticks on a time.Ticker until ctx is cancelled, sending every intent to
// out. Sends never block: when out is full the intent is dropped and logged.
func (l *Loop) Run(ctx context.Context, out chan<- intent.Intent) {
	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	debug.Log("sched", "loop running tick=%v lookahead=%v", l.cfg.Tick, l.cfg.Lookahead)

	for {
		select {
		case <-ctx.Done():
			debug.Log("sched", "loop stopped")
			return
		case <-ticker.C:
			now := l.clock.Now()
			for _, in := range l.Tick(now) {
				select {
				case out <- in:
					debug.Log("sched", "%s due at %.3fs", in.Kind(), in.When())
				case <-ctx.Done():
					return
				default:
					debug.LogEvery(10, "sched", "channel full, dropped %s", in.Kind())
				}
			}
		}
	}
}
