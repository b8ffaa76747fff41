package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go-ambient/debug"
	"go-ambient/intent"
	"go-ambient/scheduler"
	"go-ambient/stats"
)

// Consumer receives every intent the loop emits, in emission order
type Consumer interface {
	Consume(intent.Intent)
}

// ConsumerFunc adapts a function to Consumer
type ConsumerFunc func(intent.Intent)

func (f ConsumerFunc) Consume(in intent.Intent) { f(in) }

// LogConsumer writes each intent to the debug log
var LogConsumer = ConsumerFunc(func(in intent.Intent) {
	debug.Log("intent", "received %s %+v", in.Kind(), in)
})

// ClockAware consumers learn the clock of every new run before its first
// intent arrives, so they can map WhenSec onto wall time.
type ClockAware interface {
	SetClock(scheduler.Clock)
}

// Factory builds a fresh loop for each start
type Factory func() (*scheduler.Loop, error)

// ErrLoopPanicked is the handle error after the loop goroutine panics
var ErrLoopPanicked = errors.New("scheduler loop panicked")

const queueSize = 64

// Dispatcher owns the scheduler lifecycle (at most one running loop) and
// fans emitted intents out to consumers.
type Dispatcher struct {
	factory Factory

	mu      sync.Mutex
	running *Handle

	consumersMu sync.RWMutex
	consumers   []Consumer

	cadence *stats.Cadence
}

// New builds a dispatcher. With no consumers, intents go to LogConsumer.
func New(factory Factory, consumers ...Consumer) *Dispatcher {
	if len(consumers) == 0 {
		consumers = []Consumer{LogConsumer}
	}
	return &Dispatcher{
		factory:   factory,
		consumers: consumers,
		cadence:   stats.NewCadence(),
	}
}

// FromConfig returns a Factory building loops from cfg with the given options
func FromConfig(cfg scheduler.Config, opts ...scheduler.Option) Factory {
	return func() (*scheduler.Loop, error) {
		return scheduler.New(cfg, opts...)
	}
}

// Subscribe adds a consumer; it sees intents emitted from now on. A
// ClockAware consumer joining a running loop gets that run's clock first.
func (d *Dispatcher) Subscribe(c Consumer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ca, ok := c.(ClockAware); ok && d.running != nil && d.running.loop != nil {
		ca.SetClock(d.running.loop.Clock())
	}

	d.consumersMu.Lock()
	d.consumers = append(d.consumers, c)
	d.consumersMu.Unlock()
}

// Stats returns cadence statistics for the current run
func (d *Dispatcher) Stats() *stats.Cadence {
	return d.cadence
}

// Running reports whether a loop is active
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running != nil
}

// Handle returns the running handle, or nil
func (d *Dispatcher) Handle() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start launches a loop unless one is already running, in which case the
// existing handle is returned and a warning logged. If the factory fails
// the error is logged and the returned handle is already finished with Err
// set; nothing is left running.
func (d *Dispatcher) Start() *Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running != nil {
		debug.Log("dispatch", "WARN intent scheduler already running")
		return d.running
	}

	loop, err := d.factory()
	if err != nil {
		err = fmt.Errorf("start scheduler: %w", err)
		debug.Log("dispatch", "ERROR %v", err)
		h := newHandle(func() {})
		h.finish(err)
		return h
	}

	d.cadence.Reset()
	d.announceClock(loop.Clock())

	ctx, cancel := context.WithCancel(context.Background())
	h := newHandle(cancel)
	h.loop = loop
	d.running = h

	out := make(chan intent.Intent, queueSize)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(out)
		if err := runLoop(ctx, loop, out); err != nil {
			debug.Log("dispatch", "ERROR %v", err)
			h.setErr(err)
		}
	}()
	go func() {
		defer wg.Done()
		d.forward(ctx, out)
	}()
	go func() {
		wg.Wait()
		cancel()
		d.release(h)
		h.finish(nil)
	}()

	debug.Log("dispatch", "intent scheduler started")
	return h
}

// runLoop turns a panic in the loop into an error
func runLoop(ctx context.Context, loop *scheduler.Loop, out chan<- intent.Intent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoopPanicked, r)
		}
	}()
	loop.Run(ctx, out)
	return nil
}

// forward drains out until it is closed or ctx is cancelled. Whatever is
// still queued at cancellation is not delivered.
func (d *Dispatcher) forward(ctx context.Context, out <-chan intent.Intent) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-out:
			if !ok {
				return
			}
			d.cadence.Observe(in)
			d.deliver(in)
		}
	}
}

func (d *Dispatcher) announceClock(c scheduler.Clock) {
	d.consumersMu.RLock()
	defer d.consumersMu.RUnlock()
	for _, consumer := range d.consumers {
		if ca, ok := consumer.(ClockAware); ok {
			ca.SetClock(c)
		}
	}
}

func (d *Dispatcher) deliver(in intent.Intent) {
	d.consumersMu.RLock()
	consumers := d.consumers
	d.consumersMu.RUnlock()

	for _, c := range consumers {
		safeConsume(c, in)
	}
}

func safeConsume(c Consumer, in intent.Intent) {
	defer func() {
		if r := recover(); r != nil {
			debug.Log("dispatch", "ERROR consumer panicked on %s: %v", in.Kind(), r)
		}
	}()
	c.Consume(in)
}

// release clears the running slot if it still holds h
func (d *Dispatcher) release(h *Handle) {
	d.mu.Lock()
	if d.running == h {
		d.running = nil
	}
	d.mu.Unlock()
}

// Handle controls one running loop
type Handle struct {
	cancel context.CancelFunc
	loop   *scheduler.Loop

	done     chan struct{}
	once     sync.Once
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{cancel: cancel, done: make(chan struct{})}
}

// Stop cancels the loop and waits for it and the forwarder to exit.
// Safe to call more than once and on a handle that failed to start.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
		debug.Log("dispatch", "intent scheduler stopped")
	})
}

// Done is closed once the loop has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports why the loop ended or failed to start, nil after a clean stop
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Clock is the loop clock intents' WhenSec is measured on, nil if the
// loop never started
func (h *Handle) Clock() scheduler.Clock {
	if h.loop == nil {
		return nil
	}
	return h.loop.Clock()
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
}

func (h *Handle) finish(err error) {
	if err != nil {
		h.setErr(err)
	}
	h.once.Do(func() { close(h.done) })
}
