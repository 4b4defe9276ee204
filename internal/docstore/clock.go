package docstore

import (
	"sync"
	"time"
)

// Option configures a store
type Option func(*options)

type options struct {
	now func() time.Time
	hub *Hub
}

// WithClock replaces the wall clock used for server timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithHub shares a change hub between stores
func WithHub(hub *Hub) Option {
	return func(o *options) {
		o.hub = hub
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.hub == nil {
		o.hub = NewHub()
	}
	return o
}

// serverClock hands out non-decreasing UTC timestamps so that store-assigned
// times never run backwards, even if the wall clock does.
type serverClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newServerClock(now func() time.Time) *serverClock {
	return &serverClock{now: now}
}

func (c *serverClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
