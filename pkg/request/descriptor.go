package request

import (
	"net/http"
	"time"

	"github.com/Sternrassler/fetchkit/pkg/client"
	"github.com/Sternrassler/fetchkit/pkg/observable"
)

// Params are request parameters. They become the query string for GET-like
// methods and the JSON body otherwise.
type Params map[string]any

// Trigger selects when the first fetch happens.
type Trigger int

const (
	// OnAttach fetches once, when the consumer first attaches.
	OnAttach Trigger = iota

	// Manual never fetches on its own; the caller invokes Fetch or Start.
	Manual
)

// String implements fmt.Stringer.
func (t Trigger) String() string {
	switch t {
	case OnAttach:
		return "on_attach"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// Descriptor identifies one logical request.
type Descriptor[T any] struct {
	// URL may carry a method token in its last segment, e.g. "users:post".
	URL observable.Getter[string]

	// Params is optional. It is read again on every fetch, so a derived
	// getter reflects the caller's current state (such as a page cursor).
	Params observable.Getter[Params]

	Options Options[T]
}

// Options configures an executor.
type Options[T any] struct {
	// InitialData seeds Data until the first successful fetch.
	InitialData T

	Trigger Trigger

	// OnSuccess is called after a code 200 envelope has been stored.
	OnSuccess func(client.Envelope[T])

	// OnFail is called for envelopes with any other code.
	OnFail func(client.Envelope[T])

	// Header and Timeout are passed through to the transport.
	Header  http.Header
	Timeout time.Duration
}

// Get is shorthand for a descriptor with a static URL and no params.
func Get[T any](url string, opts Options[T]) Descriptor[T] {
	return Descriptor[T]{URL: observable.Static(url), Options: opts}
}

// With is shorthand for a descriptor with a static URL and params.
func With[T any](url string, params observable.Getter[Params], opts Options[T]) Descriptor[T] {
	return Descriptor[T]{URL: observable.Static(url), Params: params, Options: opts}
}
