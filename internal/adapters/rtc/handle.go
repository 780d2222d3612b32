package rtc

import "sync"

// closer carries the close-once and OnClose bookkeeping shared by all handles.
type closer struct {
	closeMu sync.Mutex
	closed  bool
	hooks   []func()
}

func (c *closer) OnClose(fn func()) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		fn()
		return
	}
	c.hooks = append(c.hooks, fn)
	c.closeMu.Unlock()
}

func (c *closer) markClosed() ([]func(), bool) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil, false
	}
	c.closed = true
	hooks := c.hooks
	c.hooks = nil
	return hooks, true
}

func (c *closer) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

func runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}
