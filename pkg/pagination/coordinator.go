package pagination

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/fetchkit/pkg/logging"
	"github.com/Sternrassler/fetchkit/pkg/observable"
)

// Page is one page of a listing as the server delivers it.
type Page[T any] struct {
	Total int `json:"total"`
	List  []T `json:"list"`
}

// Snapshot is an immutable view of a coordinator.
type Snapshot[T any] struct {
	List    []T
	Loading bool
	NoMore  bool
}

// FetchFunc re-issues the paged query using the current Cursor.Page and
// returns once it has resolved. request.Executor.Fetch has this shape.
type FetchFunc func(ctx context.Context)

type scroll[T any] struct {
	list    []T
	total   int
	loading bool
	busy    bool
}

func (s scroll[T]) noMore() bool {
	return s.total != 0 && s.total <= len(s.list)
}

func (s scroll[T]) snapshot() Snapshot[T] {
	return Snapshot[T]{
		List:    slices.Clip(s.list),
		Loading: s.loading,
		NoMore:  s.noMore(),
	}
}

// Coordinator accumulates pages delivered by a source.
type Coordinator[T any] struct {
	cursor *Cursor
	fetch  FetchFunc
	logger zerolog.Logger

	state     *observable.Value[scroll[T]]
	unwatch   func()
	closeOnce sync.Once
}

// New starts watching source. Every page the source publishes from now on
// is appended to the accumulated list until Close is called; the page the
// source holds at construction only contributes its total.
func New[T any](source observable.Source[Page[T]], cursor *Cursor, fetch FetchFunc) *Coordinator[T] {
	if source == nil || cursor == nil || fetch == nil {
		panic("pagination: source, cursor and fetch are required")
	}

	c := &Coordinator[T]{
		cursor: cursor,
		fetch:  fetch,
		logger: logging.NewLogger(logging.ComponentPagination),
		state:  observable.NewValue(scroll[T]{total: source.Get().Total}),
	}
	c.unwatch = source.Subscribe(c.merge)
	return c
}

func (c *Coordinator[T]) merge(p Page[T]) {
	s := c.state.Update(func(s scroll[T]) scroll[T] {
		s.list = append(slices.Clip(s.list), p.List...)
		s.total = p.Total
		return s
	})
	pagesMerged.Inc()

	c.logger.Debug().
		Int("page_items", len(p.List)).
		Int("accumulated", len(s.list)).
		Int("total", s.total).
		Bool("no_more", s.noMore()).
		Msg("Page merged")
}

// List returns the accumulated items.
func (c *Coordinator[T]) List() []T {
	return c.state.Get().snapshot().List
}

// Loading reports whether a LoadMore is waiting on its fetch.
func (c *Coordinator[T]) Loading() bool {
	return c.state.Get().loading
}

// NoMore reports whether the whole listing has been accumulated.
func (c *Coordinator[T]) NoMore() bool {
	return c.state.Get().noMore()
}

// Snapshot returns the current view.
func (c *Coordinator[T]) Snapshot() Snapshot[T] {
	return c.state.Get().snapshot()
}

// Subscribe calls fn with a new snapshot after every change.
func (c *Coordinator[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	return c.state.Subscribe(func(s scroll[T]) {
		fn(s.snapshot())
	})
}

// LoadMore advances the cursor and fetches the next page, returning once the
// fetch has resolved. It returns false without doing anything when the
// accumulated list already holds total items or another LoadMore is still in
// progress.
func (c *Coordinator[T]) LoadMore(ctx context.Context) bool {
	result := loadAdvanced
	s, ok := c.state.UpdateIf(func(s scroll[T]) (scroll[T], bool) {
		switch {
		case s.busy:
			result = loadBusy
			return s, false
		case len(s.list) >= s.total:
			result = loadExhausted
			return s, false
		}
		s.busy = true
		s.loading = true
		return s, true
	})
	loadMoreTotal.WithLabelValues(result).Inc()

	if !ok {
		c.logger.Debug().
			Str("result", result).
			Int("accumulated", len(s.list)).
			Int("total", s.total).
			Msg("LoadMore skipped")
		return false
	}

	page := c.cursor.advance()
	c.logger.Debug().Int("page", page).Msg("Loading next page")

	c.fetch(ctx)

	c.state.Update(func(s scroll[T]) scroll[T] {
		s.busy = false
		s.loading = false
		return s
	})
	return true
}

// Refresh rewinds the cursor to page 0, empties the accumulated list and
// starts a fetch without waiting for it.
func (c *Coordinator[T]) Refresh(ctx context.Context) {
	c.cursor.reset()
	c.state.Update(func(s scroll[T]) scroll[T] {
		s.list = nil
		return s
	})
	refreshTotal.Inc()

	c.logger.Debug().Msg("Refreshing from first page")
	go c.fetch(ctx)
}

// Close stops merging pages from the source.
func (c *Coordinator[T]) Close() {
	c.closeOnce.Do(c.unwatch)
}
