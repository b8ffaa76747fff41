package midi

import (
	"container/heap"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"golang.org/x/time/rate"

	"go-ambient/debug"
	"go-ambient/intent"
	"go-ambient/scheduler"
	"go-ambient/theory"
)

// Sender writes one MIDI message; *Out.Send and gomidi.SendTo results fit
type Sender func(gomidi.Message) error

// ScaleSource supplies the scale in effect when an intent is rendered
type ScaleSource interface {
	CurrentScale() theory.Scale
}

// Default note-on budget; note-offs are never limited
const (
	defaultNotesPerSecond = 40
	defaultBurst          = 16
)

type timedEvent struct {
	at  time.Time
	seq  uint64 // keeps equal times in insertion order
	pair uint64 // player-wide id of the on/off pair
	ev   Event
}

type eventQueue []timedEvent

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(timedEvent)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Player renders intents into note events and sends each at its time.
// It is a dispatcher consumer: Consume queues, an output goroutine sends.
type Player struct {
	send    Sender
	scales  ScaleSource
	rc      RenderConfig
	limiter *rate.Limiter
	now     func() time.Time

	mu    sync.Mutex
	queue eventQueue
	seq   uint64
	pairs uint64
	epoch time.Time // wall time of the loop clock's zero
	held  map[[2]uint8]int

	// pairs whose note-on was rate limited; their note-off is dropped
	suppressed map[uint64]struct{}

	wake     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	once     sync.Once
}

// PlayerOption configures a Player
type PlayerOption func(*Player)

// WithRateLimit caps note-ons per second; extra note-ons are dropped
func WithRateLimit(perSecond float64, burst int) PlayerOption {
	return func(p *Player) { p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func withNow(now func() time.Time) PlayerOption {
	return func(p *Player) { p.now = now }
}

// NewPlayer starts a player sending through send
func NewPlayer(send Sender, scales ScaleSource, rc RenderConfig, opts ...PlayerOption) *Player {
	p := newPlayer(send, scales, rc, opts...)
	go p.outputLoop()
	return p
}

func newPlayer(send Sender, scales ScaleSource, rc RenderConfig, opts ...PlayerOption) *Player {
	p := &Player{
		send:       send,
		scales:     scales,
		rc:         rc,
		limiter:    rate.NewLimiter(defaultNotesPerSecond, defaultBurst),
		now:        time.Now,
		held:       make(map[[2]uint8]int),
		suppressed: make(map[uint64]struct{}),
		wake:       make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	p.epoch = p.now()
	return p
}

// SetClock anchors WhenSec values to wall time for a new scheduler run
func (p *Player) SetClock(c scheduler.Clock) {
	p.mu.Lock()
	p.epoch = p.now().Add(-c.Now())
	p.mu.Unlock()
}

// Consume renders in against the current scale and queues its events
func (p *Player) Consume(in intent.Intent) {
	scale := p.scales.CurrentScale()
	events := Render(in, scale, p.rc)
	if len(events) == 0 {
		return
	}

	p.mu.Lock()
	onset := p.epoch.Add(time.Duration(in.When() * float64(time.Second)))
	base := p.pairs
	for _, ev := range events {
		p.seq++
		heap.Push(&p.queue, timedEvent{at: onset.Add(ev.At), seq: p.seq, pair: base + uint64(ev.Pair), ev: ev})
	}
	p.pairs += uint64(len(events)/2 + 1)
	p.mu.Unlock()

	debug.Log("midi", "queued %s in %s: %d events", in.Kind(), scale, len(events))
	p.interrupt()
}

// interrupt wakes the output loop to recalculate its wait
func (p *Player) interrupt() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued events
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Player) outputLoop() {
	defer close(p.done)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next, ok := p.flushDue(p.now())

		wait := time.Hour
		if ok {
			wait = next.Sub(p.now())
			if wait < 0 {
				wait = 0
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-p.stopChan:
			return
		case <-p.wake:
		case <-timer.C:
		}
	}
}

// flushDue sends every event due at or before now and reports when the
// next one is due
func (p *Player) flushDue(now time.Time) (time.Time, bool) {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return time.Time{}, false
		}
		if p.queue[0].at.After(now) {
			next := p.queue[0].at
			p.mu.Unlock()
			return next, true
		}
		te := heap.Pop(&p.queue).(timedEvent)
		p.mu.Unlock()

		p.emit(te)
	}
}

func (p *Player) emit(te timedEvent) {
	ev := te.ev
	key := [2]uint8{ev.Channel, ev.Note}

	switch ev.Type {
	case NoteOn:
		if !p.limiter.Allow() {
			p.mu.Lock()
			p.suppressed[te.pair] = struct{}{}
			p.mu.Unlock()
			debug.LogEvery(20, "midi", "rate limited ch=%d note=%d", ev.Channel+1, ev.Note)
			return
		}
		p.mu.Lock()
		p.held[key]++
		p.mu.Unlock()
		p.sendMsg(gomidi.NoteOn(ev.Channel, ev.Note, ev.Velocity))

	case NoteOff:
		p.mu.Lock()
		if _, ok := p.suppressed[te.pair]; ok {
			delete(p.suppressed, te.pair)
			p.mu.Unlock()
			return
		}
		if n := p.held[key]; n <= 1 {
			delete(p.held, key)
		} else {
			p.held[key] = n - 1
		}
		p.mu.Unlock()
		p.sendMsg(gomidi.NoteOff(ev.Channel, ev.Note))
	}
}

func (p *Player) sendMsg(msg gomidi.Message) {
	if p.send == nil {
		return
	}
	if err := p.send(msg); err != nil {
		debug.LogEvery(20, "midi", "send failed: %v", err)
	}
}

// Close stops the output loop, drops queued events and releases held notes
func (p *Player) Close() {
	p.once.Do(func() {
		close(p.stopChan)
		<-p.done
		p.releaseAll()
	})
}

func (p *Player) releaseAll() {
	p.mu.Lock()
	p.queue = nil
	held := p.held
	p.held = make(map[[2]uint8]int)
	p.suppressed = make(map[uint64]struct{})
	p.mu.Unlock()

	for key := range held {
		p.sendMsg(gomidi.NoteOff(key[0], key[1]))
	}
}
