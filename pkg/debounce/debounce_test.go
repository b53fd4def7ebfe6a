package debounce

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recorder[A any] struct {
	mu    sync.Mutex
	calls []A
	times []time.Time
	fired chan struct{}
}

func newRecorder[A any]() *recorder[A] {
	return &recorder[A]{fired: make(chan struct{}, 16)}
}

func (r *recorder[A]) handle(a A) {
	r.mu.Lock()
	r.calls = append(r.calls, a)
	r.times = append(r.times, time.Now())
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder[A]) snapshot() ([]A, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]A(nil), r.calls...), append([]time.Time(nil), r.times...)
}

func (r *recorder[A]) wait(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(timeout):
		t.Fatal("handler did not fire")
	}
}

func quiet() Option {
	return WithLogger(zerolog.Nop())
}

func TestGate_BurstFiresOnceAfterLastCall(t *testing.T) {
	rec := newRecorder[int]()
	g := New(rec.handle, 300*time.Millisecond, quiet())

	start := time.Now()
	g.Trigger(1)
	time.Sleep(100 * time.Millisecond)
	g.Trigger(2)
	time.Sleep(100 * time.Millisecond)
	g.Trigger(3)

	rec.wait(t, time.Second)
	time.Sleep(100 * time.Millisecond)

	calls, times := rec.snapshot()
	if !reflect.DeepEqual(calls, []int{3}) {
		t.Fatalf("calls = %v, want [3]", calls)
	}

	elapsed := times[0].Sub(start)
	if elapsed < 490*time.Millisecond || elapsed >= 800*time.Millisecond {
		t.Errorf("fired after %s, want about 500ms", elapsed)
	}
	if g.Pending() {
		t.Error("nothing should be pending after firing")
	}
}

func TestGate_SpacedCallsEachFire(t *testing.T) {
	rec := newRecorder[string]()
	g := New(rec.handle, 30*time.Millisecond, quiet())

	g.Trigger("a")
	rec.wait(t, time.Second)
	time.Sleep(20 * time.Millisecond)
	g.Trigger("b")
	rec.wait(t, time.Second)

	calls, _ := rec.snapshot()
	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

func TestGate_Stop(t *testing.T) {
	rec := newRecorder[int]()
	g := New(rec.handle, 20*time.Millisecond, quiet())

	g.Trigger(1)
	if !g.Pending() {
		t.Fatal("Trigger should schedule a call")
	}
	g.Stop()
	if g.Pending() {
		t.Error("Stop should drop the pending call")
	}

	g.Trigger(2)
	if g.Pending() {
		t.Error("a stopped gate must ignore Trigger")
	}

	time.Sleep(80 * time.Millisecond)
	if calls, _ := rec.snapshot(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestGate_DefaultDelay(t *testing.T) {
	for _, delay := range []time.Duration{0, -time.Second} {
		g := New(func(int) {}, delay, quiet())
		if g.delay != DefaultDelay {
			t.Errorf("New(delay=%s).delay = %s, want %s", delay, g.delay, DefaultDelay)
		}
	}
}

func TestGate_Dispatcher(t *testing.T) {
	loop := make(chan func(), 1)
	ran := false

	g := New(func(int) { ran = true }, 10*time.Millisecond,
		quiet(),
		WithDispatcher(func(f func()) { loop <- f }),
	)
	g.Trigger(1)

	select {
	case f := <-loop:
		if ran {
			t.Error("handler must wait for the dispatcher")
		}
		if !g.Pending() {
			t.Error("queued call is still pending")
		}
		f()
	case <-time.After(time.Second):
		t.Fatal("nothing dispatched")
	}
	if !ran {
		t.Error("handler did not run")
	}
	if g.Pending() {
		t.Error("call should no longer be pending once started")
	}
}

func TestFunc0(t *testing.T) {
	fired := make(chan struct{}, 4)
	count := 0
	var mu sync.Mutex

	fn := Func0(func() {
		mu.Lock()
		count++
		mu.Unlock()
		fired <- struct{}{}
	}, 20*time.Millisecond, quiet())

	for i := 0; i < 5; i++ {
		fn()
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler did not fire")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestFunc_ForwardsLastArgument(t *testing.T) {
	rec := newRecorder[string]()
	search := Func(rec.handle, 20*time.Millisecond, quiet())

	search("s")
	search("sh")
	search("shoes")

	rec.wait(t, time.Second)
	calls, _ := rec.snapshot()
	if !reflect.DeepEqual(calls, []string{"shoes"}) {
		t.Errorf("calls = %v, want [shoes]", calls)
	}
}
