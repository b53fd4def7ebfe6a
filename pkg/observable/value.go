// Package observable provides the live values that executors, coordinators and
// their consumers share.
//
// A [Value] carries a value and a set of subscribers. Every Set publishes the
// new value to each subscriber, synchronously, in the goroutine that called
// Set and with no lock held. Subscribers must not block.
package observable

import (
	"maps"
	"slices"
	"sync"
)

// Getter is anything that can produce a current value. Request URLs and
// parameters are resolved through a Getter each time a fetch starts.
type Getter[T any] interface {
	Get() T
}

// Source is a Getter that also notifies subscribers on change.
type Source[T any] interface {
	Getter[T]
	Subscribe(fn func(T)) (cancel func())
}

// Static returns a Getter that always yields v.
func Static[T any](v T) Getter[T] {
	return staticGetter[T]{v: v}
}

type staticGetter[T any] struct{ v T }

func (s staticGetter[T]) Get() T { return s.v }

// Func adapts a function to a Getter. The function is called on every Get,
// which makes it suitable for values derived from other live state.
type Func[T any] func() T

// Get calls f.
func (f Func[T]) Get() T { return f() }

// Value is a mutable live value.
type Value[T any] struct {
	mu     sync.Mutex
	value  T
	nextID uint64
	subs   map[uint64]func(T)
}

// NewValue creates a Value holding v.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{value: v}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set stores x and notifies every subscriber with it.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	v.value = x
	subs := v.snapshotSubs()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(x)
	}
}

// Update sets the value to f(current). The read and write happen under one
// lock, so concurrent updates are not lost.
func (v *Value[T]) Update(f func(T) T) T {
	v.mu.Lock()
	x := f(v.value)
	v.value = x
	subs := v.snapshotSubs()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(x)
	}
	return x
}

// UpdateIf applies f under the lock. When f reports false the value is left
// as is and nobody is notified. It returns the resulting value and whether
// it changed.
func (v *Value[T]) UpdateIf(f func(T) (T, bool)) (T, bool) {
	v.mu.Lock()
	x, ok := f(v.value)
	if !ok {
		cur := v.value
		v.mu.Unlock()
		return cur, false
	}
	v.value = x
	subs := v.snapshotSubs()
	v.mu.Unlock()

	for _, fn := range subs {
		fn(x)
	}
	return x, true
}

// Subscribe registers fn to be called after every change. The returned
// function removes the subscription and is safe to call more than once.
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	if v.subs == nil {
		v.subs = make(map[uint64]func(T))
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	}
}

// snapshotSubs copies the subscriber list in registration order.
// Callers hold v.mu.
func (v *Value[T]) snapshotSubs() []func(T) {
	if len(v.subs) == 0 {
		return nil
	}
	out := make([]func(T), 0, len(v.subs))
	for _, id := range slices.Sorted(maps.Keys(v.subs)) {
		out = append(out, v.subs[id])
	}
	return out
}
