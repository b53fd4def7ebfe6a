package request

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Sternrassler/fetchkit/pkg/client"
)

type result struct {
	env *client.Envelope[json.RawMessage]
	err error
}

// gatedTransport holds every request until the test releases it.
type gatedTransport struct {
	mu      sync.Mutex
	calls   []client.Descriptor
	pending []chan result
	arrived chan struct{}
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{arrived: make(chan struct{}, 64)}
}

func (g *gatedTransport) Request(ctx context.Context, d client.Descriptor) (*client.Envelope[json.RawMessage], error) {
	ch := make(chan result, 1)
	g.mu.Lock()
	g.calls = append(g.calls, d)
	g.pending = append(g.pending, ch)
	g.mu.Unlock()
	g.arrived <- struct{}{}

	r := <-ch
	return r.env, r.err
}

// awaitCalls blocks until n requests have reached the transport.
func (g *gatedTransport) awaitCalls(n int) {
	for {
		g.mu.Lock()
		got := len(g.calls)
		g.mu.Unlock()
		if got >= n {
			return
		}
		<-g.arrived
	}
}

func (g *gatedTransport) release(i int, r result) {
	g.mu.Lock()
	ch := g.pending[i]
	g.mu.Unlock()
	ch <- r
}

func (g *gatedTransport) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *gatedTransport) call(i int) client.Descriptor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[i]
}

// staticTransport answers every request the same way.
type staticTransport struct {
	mu    sync.Mutex
	calls []client.Descriptor
	res   result
}

func (s *staticTransport) Request(ctx context.Context, d client.Descriptor) (*client.Envelope[json.RawMessage], error) {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return s.res.env, s.res.err
}

func (s *staticTransport) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func envelope(code int, data string) result {
	return result{env: &client.Envelope[json.RawMessage]{Code: code, Data: json.RawMessage(data)}}
}
