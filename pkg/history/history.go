// Package history keeps a short most-recent-first list of search queries in
// a key-value store.
//
// The list is deduplicated and capped. It is loaded once on construction and
// written back as a JSON array of strings after every change. Store failures
// never reach the caller: a value that cannot be read or parsed loads as an
// empty list, and a failed write leaves the in-memory list authoritative.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/fetchkit/pkg/logging"
)

const (
	// DefaultKey is the store key used when none is configured.
	DefaultKey = "__search__"

	// DefaultMaxLength caps the list when no limit is configured.
	DefaultMaxLength = 10
)

// Option configures a History.
type Option func(*History)

// WithKey stores the list under key.
func WithKey(key string) Option {
	return func(h *History) {
		if key != "" {
			h.key = key
		}
	}
}

// WithMaxLength caps the list at n entries.
func WithMaxLength(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.max = n
		}
	}
}

// History is a recent-query list.
type History struct {
	store  Store
	key    string
	max    int
	logger zerolog.Logger

	mu   sync.Mutex
	list []string
}

// New loads the list persisted under the configured key.
func New(ctx context.Context, store Store, opts ...Option) *History {
	if store == nil {
		panic("store cannot be nil")
	}

	h := &History{
		store:  store,
		key:    DefaultKey,
		max:    DefaultMaxLength,
		logger: logging.NewLogger(logging.ComponentHistory),
	}
	for _, opt := range opts {
		opt(h)
	}

	list, err := h.load(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Str("key", h.key).Msg("Recent queries unavailable, starting empty")
	}
	h.list = list
	historyLength.WithLabelValues(h.key).Set(float64(len(list)))
	return h
}

func (h *History) load(ctx context.Context) ([]string, error) {
	data, err := h.store.Get(ctx, h.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return []string{}, err
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		storeErrors.WithLabelValues("decode").Inc()
		return []string{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// GetAll returns the list, most recent first.
func (h *History) GetAll() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.list)
}

// AddOne moves query to the front, inserting it if absent, and drops the
// oldest entry when the list grows past its cap.
func (h *History) AddOne(ctx context.Context, query string) []string {
	return h.reset(ctx, func(list []string) []string {
		list = slices.DeleteFunc(list, func(s string) bool { return s == query })
		list = slices.Insert(list, 0, query)
		if len(list) > h.max {
			list = list[:h.max]
		}
		return list
	})
}

// RemoveOne deletes query from the list.
func (h *History) RemoveOne(ctx context.Context, query string) []string {
	return h.reset(ctx, func(list []string) []string {
		return slices.DeleteFunc(list, func(s string) bool { return s == query })
	})
}

// ClearAll empties the list.
func (h *History) ClearAll(ctx context.Context) []string {
	return h.reset(ctx, func([]string) []string {
		return []string{}
	})
}

// reset replaces the list with f(copy of list) and persists it.
func (h *History) reset(ctx context.Context, f func([]string) []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.list = f(slices.Clone(h.list))
	historyLength.WithLabelValues(h.key).Set(float64(len(h.list)))

	data, err := json.Marshal(h.list)
	if err == nil {
		err = h.store.Set(ctx, h.key, data)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("key", h.key).Msg("Failed to persist recent queries")
	}

	return slices.Clone(h.list)
}
