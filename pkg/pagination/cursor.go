package pagination

import "sync"

// Cursor is the page number a paged query should request next. The caller
// owns it and reads it when building the query; only a Coordinator moves it.
// Pages are 0-based.
type Cursor struct {
	mu   sync.Mutex
	page int
}

// Page returns the current page number.
func (c *Cursor) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

func (c *Cursor) advance() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page++
	return c.page
}

func (c *Cursor) reset() {
	c.mu.Lock()
	c.page = 0
	c.mu.Unlock()
}
