package stats

import (
	"math"
	"sync"
	"time"

	"go-ambient/intent"
)

// EMA folds x into an exponential moving average. A nil prev starts the
// average at x. Higher alpha follows x more closely.
func EMA(prev *float64, x, alpha float64) float64 {
	if prev == nil {
		return x
	}
	return alpha*x + (1-alpha)*(*prev)
}

// RollingStd is the population standard deviation of samples (0 for fewer than 2)
func RollingStd(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(samples))
	return math.Sqrt(variance)
}

const (
	emaAlpha   = 0.2
	windowSize = 32
)

// Stream summarises one intent stream's cadence
type Stream struct {
	Count   int
	LastGap time.Duration
	MeanGap time.Duration // EMA
	Jitter  time.Duration // rolling std over the last 32 gaps
}

type streamState struct {
	count    int
	lastWhen float64
	lastGap  float64
	ema      *float64
	window   []float64
}

// Cadence tracks emission gaps per stream from intents' WhenSec
type Cadence struct {
	mu      sync.Mutex
	streams map[intent.Kind]*streamState
}

func NewCadence() *Cadence {
	return &Cadence{streams: make(map[intent.Kind]*streamState)}
}

// Observe records one intent. It satisfies the dispatcher's consumer shape.
func (c *Cadence) Observe(in intent.Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.streams[in.Kind()]
	if !ok {
		st = &streamState{}
		c.streams[in.Kind()] = st
	}
	st.count++
	when := in.When()
	if st.count > 1 {
		gap := when - st.lastWhen
		st.lastGap = gap
		avg := EMA(st.ema, gap, emaAlpha)
		st.ema = &avg
		st.window = append(st.window, gap)
		if len(st.window) > windowSize {
			st.window = st.window[len(st.window)-windowSize:]
		}
	}
	st.lastWhen = when
}

// Snapshot returns the current summary for kind
func (c *Cadence) Snapshot(k intent.Kind) Stream {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.streams[k]
	if !ok {
		return Stream{}
	}
	out := Stream{
		Count:   st.count,
		LastGap: seconds(st.lastGap),
		Jitter:  seconds(RollingStd(st.window)),
	}
	if st.ema != nil {
		out.MeanGap = seconds(*st.ema)
	}
	return out
}

// Reset clears all streams, used when the scheduler restarts from zero
func (c *Cadence) Reset() {
	c.mu.Lock()
	c.streams = make(map[intent.Kind]*streamState)
	c.mu.Unlock()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
