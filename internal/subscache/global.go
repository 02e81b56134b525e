package subscache

import "sync"

// global holds the process-wide node-aware cache: callers always go
// through Attach / Global, never a bare package-level cache.
var global struct {
	mu      sync.Mutex
	nodeID  string
	cache   *Cache
	hasNode bool
}

// Attach binds the global cache to nodeID. If nodeID differs from the
// previously attached node (or no node has ever been attached), the prior
// cache is fully cleared — invoking every Unsubscribe — before a fresh one
// is installed. Returns the attached cache.
func Attach(nodeID string) *Cache {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.hasNode && global.nodeID == nodeID {
		return global.cache
	}

	if global.cache != nil {
		global.cache.Clear()
	}
	global.cache = New(DefaultCleanupDelay)
	global.nodeID = nodeID
	global.hasNode = true
	return global.cache
}

// Global returns the currently attached cache, or nil if Attach has never
// been called.
func Global() *Cache {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.cache
}

// CurrentNodeID returns the node id the global cache is currently attached
// to, and whether any node has been attached yet.
func CurrentNodeID() (string, bool) {
	global.mu.Lock()
	defer global.mu.Unlock()
	return global.nodeID, global.hasNode
}
