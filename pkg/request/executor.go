// Package request runs one logical HTTP request against a transport and
// keeps its loading, error and data state live for a consumer.
//
// An Executor moves through Idle → Pending → Idle. An envelope with code
// 200 replaces Data and calls OnSuccess; any other code calls OnFail and
// keeps Data; a transport failure sets Error and calls nothing. Error is
// cleared whenever a new fetch starts.
//
// Each fetch takes an in-flight token. Only the most recently started fetch
// may write state or fire callbacks; results of superseded fetches are
// dropped when they arrive.
package request

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/fetchkit/pkg/client"
	"github.com/Sternrassler/fetchkit/pkg/logging"
	"github.com/Sternrassler/fetchkit/pkg/observable"
)

// Transport is the collaborator that performs the HTTP exchange.
// *client.Client implements it.
type Transport interface {
	Request(ctx context.Context, d client.Descriptor) (*client.Envelope[json.RawMessage], error)
}

// State is an immutable snapshot of an executor.
type State[T any] struct {
	Loading bool
	Error   bool
	Data    T
}

// Executor owns the lifecycle of one request.
type Executor[T any] struct {
	tr     Transport
	desc   Descriptor[T]
	logger zerolog.Logger

	gen      atomic.Uint64
	attachMu sync.Mutex
	attached bool

	state *observable.Value[State[T]]
	data  *observable.Value[T]
}

// call is a fetch whose URL and params were resolved when it started.
type call struct {
	token uint64
	req   client.Descriptor
}

// New creates an executor. It does not fetch; see Attach.
func New[T any](tr Transport, d Descriptor[T]) *Executor[T] {
	if tr == nil {
		panic("transport cannot be nil")
	}
	if d.URL == nil {
		panic("descriptor url cannot be nil")
	}

	return &Executor[T]{
		tr:     tr,
		desc:   d,
		logger: logging.NewLogger(logging.ComponentExecutor),
		state:  observable.NewValue(State[T]{Data: d.Options.InitialData}),
		data:   observable.NewValue(d.Options.InitialData),
	}
}

// State returns the current snapshot.
func (e *Executor[T]) State() State[T] {
	return e.state.Get()
}

// Loading reports whether the latest fetch is still pending.
func (e *Executor[T]) Loading() bool {
	return e.state.Get().Loading
}

// Error reports whether the latest resolved fetch failed at transport level.
func (e *Executor[T]) Error() bool {
	return e.state.Get().Error
}

// Data returns the payload of the last successful envelope, or InitialData.
func (e *Executor[T]) Data() T {
	return e.state.Get().Data
}

// Subscribe calls fn with every new snapshot. Calls happen in the goroutine
// that caused the change. When fetches overlap across goroutines, delivery
// order between them is not guaranteed; State is always current.
func (e *Executor[T]) Subscribe(fn func(State[T])) (cancel func()) {
	return e.state.Subscribe(fn)
}

// DataSource exposes Data as a live source that notifies once per
// successful fetch.
func (e *Executor[T]) DataSource() observable.Source[T] {
	return e.data
}

// Attach signals that the consumer is now bound to the executor. With the
// OnAttach trigger, the first call starts a fetch: Loading is already true
// when Attach returns and the channel closes when the fetch resolves. Any
// other call returns a closed channel and does nothing.
func (e *Executor[T]) Attach(ctx context.Context) <-chan struct{} {
	e.attachMu.Lock()
	first := !e.attached
	e.attached = true
	e.attachMu.Unlock()

	if !first || e.desc.Options.Trigger != OnAttach {
		done := make(chan struct{})
		close(done)
		return done
	}
	return e.Start(ctx)
}

// Fetch runs one request and returns when it has resolved. Failures are
// reflected in the state and never returned.
func (e *Executor[T]) Fetch(ctx context.Context) {
	e.run(ctx, e.begin())
}

// Start is the non-blocking form of Fetch. The state is already Pending
// when Start returns; the channel closes on resolution.
func (e *Executor[T]) Start(ctx context.Context) <-chan struct{} {
	c := e.begin()
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.run(ctx, c)
	}()
	return done
}

// begin takes a new token, resolves the descriptor and enters Pending.
func (e *Executor[T]) begin() call {
	c := call{
		token: e.gen.Add(1),
		req:   e.resolve(),
	}

	e.state.Update(func(s State[T]) State[T] {
		s.Loading = true
		s.Error = false
		return s
	})

	e.logger.Debug().
		Uint64("token", c.token).
		Str("method", c.req.Method).
		Str("url", c.req.URL).
		Msg("Fetch started")

	return c
}

func (e *Executor[T]) resolve() client.Descriptor {
	method, url := SplitMethod(e.desc.URL.Get())

	d := client.Descriptor{
		Method:  method,
		URL:     url,
		Header:  e.desc.Options.Header.Clone(),
		Timeout: e.desc.Options.Timeout,
	}

	if e.desc.Params == nil {
		return d
	}
	params := e.desc.Params.Get()
	if params == nil {
		return d
	}
	if IsGetLike(method) {
		d.Query = map[string]any(params)
	} else {
		d.Body = map[string]any(params)
	}
	return d
}

func (e *Executor[T]) run(ctx context.Context, c call) {
	fetchInFlight.Inc()
	env, err := e.tr.Request(ctx, c.req)
	fetchInFlight.Dec()

	if err != nil {
		e.finishError(c, err)
		return
	}

	typed, decodeErr := client.Decode[T](env)
	if env.OK() {
		if decodeErr != nil {
			e.finishError(c, &client.TransportError{
				Class:      client.ErrorClassDecode,
				StatusCode: http.StatusOK,
				Message:    "envelope data does not match the expected type",
				Err:        decodeErr,
			})
			return
		}
		e.finishSuccess(c, typed)
		return
	}

	if decodeErr != nil {
		e.logger.Debug().Err(decodeErr).Int("code", env.Code).Msg("Failure envelope data not decoded")
	}
	e.finishFail(c, typed)
}

// settle applies f to the state only while c is the latest fetch.
func (e *Executor[T]) settle(c call, f func(State[T]) State[T]) bool {
	_, applied := e.state.UpdateIf(func(s State[T]) (State[T], bool) {
		if e.gen.Load() != c.token {
			return s, false
		}
		return f(s), true
	})
	if !applied {
		fetchTotal.WithLabelValues(outcomeStale).Inc()
		e.logger.Debug().
			Uint64("token", c.token).
			Str("url", c.req.URL).
			Msg("Superseded response dropped")
	}
	return applied
}

func (e *Executor[T]) finishSuccess(c call, env client.Envelope[T]) {
	applied := e.settle(c, func(s State[T]) State[T] {
		s.Data = env.Data
		s.Loading = false
		return s
	})
	if !applied {
		return
	}
	fetchTotal.WithLabelValues(outcomeSuccess).Inc()

	e.data.Set(env.Data)
	if e.desc.Options.OnSuccess != nil {
		e.desc.Options.OnSuccess(env)
	}
}

func (e *Executor[T]) finishFail(c call, env client.Envelope[T]) {
	applied := e.settle(c, func(s State[T]) State[T] {
		s.Loading = false
		return s
	})
	if !applied {
		return
	}
	fetchTotal.WithLabelValues(outcomeFail).Inc()

	e.logger.Warn().
		Str("method", c.req.Method).
		Str("url", c.req.URL).
		Int("code", env.Code).
		Str("err_msg", env.ErrMsg).
		Msg("Request rejected by application")

	if e.desc.Options.OnFail != nil {
		e.desc.Options.OnFail(env)
	}
}

func (e *Executor[T]) finishError(c call, err error) {
	applied := e.settle(c, func(s State[T]) State[T] {
		s.Loading = false
		s.Error = true
		return s
	})
	if !applied {
		return
	}
	fetchTotal.WithLabelValues(outcomeError).Inc()

	e.logger.Warn().
		Err(err).
		Str("method", c.req.Method).
		Str("url", c.req.URL).
		Msg("Request failed")
}
