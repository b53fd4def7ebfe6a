// Package debounce coalesces bursts of calls into one delayed invocation.
//
// Each Trigger cancels the invocation scheduled by the previous Trigger on
// the same gate and schedules a new one delay later, so the handler runs
// once per quiet window with the argument of the last call.
//
//	search := debounce.Func(func(q string) { exec.Fetch(ctx) }, 300*time.Millisecond)
//	search("s")
//	search("sh")
//	search("shoes") // only this one reaches the handler
package debounce

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fetchkit/pkg/logging"
)

// DefaultDelay is used when a non-positive delay is given.
const DefaultDelay = 500 * time.Millisecond

var (
	debounceTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_debounce_triggers_total",
		Help: "Calls made to debounced handlers",
	})

	debounceFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_debounce_fired_total",
		Help: "Debounced handler invocations after a quiet window",
	})
)

// Option configures a Gate.
type Option func(*options)

type options struct {
	dispatch func(func())
	logger   *zerolog.Logger
}

// WithDispatcher makes the gate hand the fired invocation to dispatch
// instead of running it on the timer goroutine. Use it to run handlers on
// a consumer's event loop.
func WithDispatcher(dispatch func(func())) Option {
	return func(o *options) {
		o.dispatch = dispatch
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// Gate debounces calls to a handler taking one argument. A Gate holds at
// most one pending invocation.
type Gate[A any] struct {
	handler  func(A)
	delay    time.Duration
	dispatch func(func())
	logger   zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// New creates a gate around handler.
func New[A any](handler func(A), delay time.Duration, opts ...Option) *Gate[A] {
	if delay <= 0 {
		delay = DefaultDelay
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dispatch == nil {
		o.dispatch = func(f func()) { f() }
	}
	logger := logging.NewLogger(logging.ComponentDebounce)
	if o.logger != nil {
		logger = *o.logger
	}

	return &Gate[A]{
		handler:  handler,
		delay:    delay,
		dispatch: o.dispatch,
		logger:   logger,
	}
}

// Trigger replaces any pending invocation with handler(arg) after the
// gate's delay. It is a no-op once the gate is stopped.
func (g *Gate[A]) Trigger(arg A) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return
	}
	debounceTriggersTotal.Inc()

	if g.timer != nil {
		g.timer.Stop()
	}
	g.seq++
	seq := g.seq
	g.timer = time.AfterFunc(g.delay, func() { g.fire(seq, arg) })

	g.logger.Debug().
		Uint64("seq", seq).
		Dur("delay", g.delay).
		Msg("Debounced call scheduled")
}

// fire hands the handler to the dispatcher if seq is still the latest
// scheduled call. A timer whose Stop raced with expiry is filtered out here.
func (g *Gate[A]) fire(seq uint64, arg A) {
	g.mu.Lock()
	if g.stopped || seq != g.seq {
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	debounceFiredTotal.Inc()
	g.dispatch(func() {
		g.started(seq)
		g.handler(arg)
	})
}

// started clears the pending call once its handler begins, unless a newer
// Trigger has replaced it in the meantime.
func (g *Gate[A]) started(seq uint64) {
	g.mu.Lock()
	if seq == g.seq {
		g.timer = nil
	}
	g.mu.Unlock()
}

// Pending reports whether an invocation is scheduled and its handler has
// not started yet. With WithDispatcher this covers the time the call waits
// in the dispatcher.
func (g *Gate[A]) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timer != nil
}

// Stop drops the pending invocation, if any, and disables the gate. Owners
// call it when the state the handler would touch is torn down.
func (g *Gate[A]) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Func returns the gated form of handler directly.
func Func[A any](handler func(A), delay time.Duration, opts ...Option) func(A) {
	return New(handler, delay, opts...).Trigger
}

// Func0 debounces a handler that takes no arguments.
func Func0(handler func(), delay time.Duration, opts ...Option) func() {
	g := New(func(struct{}) { handler() }, delay, opts...)
	return func() { g.Trigger(struct{}{}) }
}
