package covalue

import (
	"sync"
	"sync/atomic"
)

// Core is a locally materialised CoValue: id, variant, immutable header, a
// mutable content accessor, and a monotonic availability flag.
type Core struct {
	ID      string
	Header  Header
	Variant Variant

	content   Content
	available atomic.Bool
	readyOnce sync.Once
	readyCh   chan struct{}
}

// NewCore constructs a materialised core. The header is frozen at
// construction per("headers are immutable").
func NewCore(id string, variant Variant, header Header, content Content) *Core {
	return &Core{ID: id, Header: header, Variant: variant, content: content, readyCh: make(chan struct{})}
}

// CurrentContent returns the CRDT-merged content accessor.
func (c *Core) CurrentContent() Content { return c.content }

// Available reports whether the runtime has a verified state for this core.
func (c *Core) Available() bool { return c.available.Load() }

// Ready returns a channel that closes exactly once, the moment this core
// first becomes available. Safe to call and select on repeatedly.
func (c *Core) Ready() <-chan struct{} { return c.readyCh }

// MarkAvailable flips the availability flag and closes Ready's channel. It
// is idempotent and never reverses to false (monotonic).
func (c *Core) MarkAvailable() {
	c.available.Store(true)
	c.readyOnce.Do(func() { close(c.readyCh) })
}

// AsMap type-asserts the content as map-shaped (map, group or account
// variants are all map content), returning ok=false for list/stream.
func (c *Core) AsMap() (*MapContent, bool) {
	switch v := c.content.(type) {
	case *MapContent:
		return v, true
	case *AccountContent:
		return v.MapContent, true
	}
	return nil, false
}

// AsGroup type-asserts the content as group content.
func (c *Core) AsGroup() (*GroupContent, bool) {
	v, ok := c.content.(*GroupContent)
	return v, ok
}

// AsList type-asserts the content as list content.
func (c *Core) AsList() (*ListContent, bool) {
	v, ok := c.content.(*ListContent)
	return v, ok
}

// AsStream type-asserts the content as stream content.
func (c *Core) AsStream() (*StreamContent, bool) {
	v, ok := c.content.(*StreamContent)
	return v, ok
}

// AsAccount type-asserts the content as account content.
func (c *Core) AsAccount() (*AccountContent, bool) {
	v, ok := c.content.(*AccountContent)
	return v, ok
}
