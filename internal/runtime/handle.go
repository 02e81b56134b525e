package runtime

import (
	"context"

	"github.com/maia-os/covalue-core/internal/covalue"
)

// BackendHandle is the narrow surface CRUD, GroupOps, SchemaResolver and
// CoValueExtractor depend on, replacing the cyclic backend<->resolver
// back-pointers of the source implementation. Every
// consumer package takes this interface, never a concrete *Node, so there
// are no import cycles between internal/crud, internal/groupops,
// internal/schemaresolver and internal/runtime.
type BackendHandle interface {
	// GetCoValue returns the locally materialised core for id, or nil if
	// none has ever been requested.
	GetCoValue(id string) *covalue.Core

	// AllCoValues returns every core this node has materialised so far, in
	// no particular order. Used by the all-values read path; it reflects
	// only what this process has seen, not the full durable store.
	AllCoValues() []*covalue.Core

	// LoadCoValueCore fires (or reuses) a load request for id against the
	// store, returning the core once it exists locally (it may still be
	// unavailable). Waiting on an in-flight load is bounded only by ctx.
	LoadCoValueCore(ctx context.Context, id string) (*covalue.Core, error)

	// GetCurrentContent is a convenience wrapper around GetCoValue +
	// CurrentContent, returning (nil, false) if the core is absent.
	GetCurrentContent(id string) (covalue.Content, bool)

	// IsAvailable reports whether id's core has observed a verified state.
	IsAvailable(id string) bool

	// GetHeader returns id's header, or the zero Header if absent.
	GetHeader(id string) (covalue.Header, bool)

	// Persist durably writes core's current content and marks it available.
	Persist(ctx context.Context, core *covalue.Core) error

	// CreateCoValue mints a fresh core of the given variant/header/content,
	// persists it, marks it available and registers it locally.
	CreateCoValue(ctx context.Context, variant covalue.Variant, header covalue.Header, content covalue.Content) (*covalue.Core, error)

	// WaitAvailable blocks until id's core is available or ctx is done.
	WaitAvailable(ctx context.Context, id string) error

	// Account returns the backend's own account core, once loaded.
	Account() *covalue.Core

	// SetAccount records the backend's own account core once resolved
	// during bootstrap (used by the Seeder).
	SetAccount(core *covalue.Core)

	// SystemSpark returns the name of the designated system spark.
	SystemSpark() string
}
