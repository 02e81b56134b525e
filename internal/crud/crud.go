// Package crud implements the single CRUD dispatcher over the CoValue
// graph: read (single / batch / collection / all), create, update,
// delete, plus the spark-scoped variants of each. It is a single
// dispatching type fronting several related operations over one entity
// family, delegating loading and membership bookkeeping to narrower
// collaborators instead of inlining everything.
package crud

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/exprfilter"
	"github.com/maia-os/covalue-core/internal/extractor"
	"github.com/maia-os/covalue-core/internal/loader"
	"github.com/maia-os/covalue-core/internal/reactive"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/schemaindex"
	"github.com/maia-os/covalue-core/internal/subscache"
	"github.com/maia-os/covalue-core/internal/telemetry"
)

// Op names the dispatched operation.
type Op string

const (
	OpRead   Op = "read"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"

	OpCreateSpark Op = "createSpark"
	OpReadSpark   Op = "readSpark"
	OpUpdateSpark Op = "updateSpark"
	OpDeleteSpark Op = "deleteSpark"
)

// Request is the tagged record accepted by Do.
type Request struct {
	Op     Op
	Schema string         // resolved schema co-id; "" means all-values read
	ID     string         // single read/update/delete target
	Key    string         // alias for ID on read, kept distinct for clarity at call sites
	Keys   []string       // batch read
	Filter map[string]any // collection/all-values read filter, strict equality
	Expr   string         // optional go-bexpr expression, additive to Filter
	Data   map[string]any // create/update payload
	Name   string         // spark name, for the spark ops
}

const (
	singleReadTimeout  = 5 * time.Second
	defaultGroupWait   = 10 * time.Second
	indexAppendTimeout = 5 * time.Second

	// allValuesFanKey is the collFans bucket an all-values read registers
	// under, alongside the real schema ids collection reads use.
	allValuesFanKey = "*"
)

// IndexResolver looks up (and lazily creates) the schemaindex.Index for a
// schema id's owning spark. The Seeder wires one up per spark at startup.
type IndexResolver func(schemaID string) *schemaindex.Index

// ProfileGroupResolver returns the universal default group id for new
// CoValues lacking an explicit owner, resolved from profile.group and
// cached on the backend for the process lifetime.
type ProfileGroupResolver func(ctx context.Context) (string, error)

// collFan is one store tracked against a schema id (or allValuesFanKey):
// the store itself plus the closure that recomputes and re-emits its
// value, so a write anywhere in that bucket can re-run it.
type collFan struct {
	store *reactive.Store[[]extractor.Flat]
	emit  func()
}

// CRUD bundles the collaborators the dispatcher depends on.
type CRUD struct {
	Backend      runtime.BackendHandle
	Subs         *subscache.Cache
	IndexFor     IndexResolver
	DefaultGroup ProfileGroupResolver
	Metrics      *telemetry.CRUDMetrics

	mu              sync.Mutex
	cachedGroupID   string
	cachedGroupOnce bool

	collMu   sync.Mutex
	collFans map[string]map[*reactive.Store[[]extractor.Flat]]*collFan
}

// New constructs a dispatcher.
func New(backend runtime.BackendHandle, subs *subscache.Cache, indexFor IndexResolver, defaultGroup ProfileGroupResolver) *CRUD {
	return &CRUD{
		Backend:      backend,
		Subs:         subs,
		IndexFor:     indexFor,
		DefaultGroup: defaultGroup,
		collFans:     make(map[string]map[*reactive.Store[[]extractor.Flat]]*collFan),
	}
}

// Do dispatches req to the matching operation.
func (c *CRUD) Do(ctx context.Context, req Request) (any, error) {
	start := time.Now()
	result, err := c.dispatch(ctx, req)
	if c.Metrics != nil {
		c.Metrics.RecordOp(ctx, string(req.Op), float64(time.Since(start).Milliseconds()), err)
	}
	return result, err
}

func (c *CRUD) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Op {
	case OpRead:
		return c.read(ctx, req)
	case OpCreate:
		return c.create(ctx, req)
	case OpUpdate:
		return c.update(ctx, req)
	case OpDelete:
		return c.delete(ctx, req)
	case OpCreateSpark:
		return c.createSpark(ctx, req)
	case OpReadSpark:
		return c.readSpark(ctx, req)
	case OpUpdateSpark:
		return c.updateSpark(ctx, req)
	case OpDeleteSpark:
		return c.deleteSpark(ctx, req)
	default:
		return nil, errs.New(errs.Structural, "crud.Do", errs.Errorf("unknown op %q", req.Op))
	}
}

// --- read ---------------------------------------------------------------

func (c *CRUD) read(ctx context.Context, req Request) (any, error) {
	if len(req.Keys) > 0 {
		stores := make([]*reactive.Store[extractor.Flat], len(req.Keys))
		for i, id := range req.Keys {
			stores[i] = c.singleRead(ctx, id)
		}
		return stores, nil
	}
	id := req.ID
	if id == "" {
		id = req.Key
	}
	if id != "" {
		return c.singleRead(ctx, id), nil
	}
	if req.Schema == "" {
		return c.allValuesRead(ctx, req.Filter, req.Expr), nil
	}
	return c.collectionRead(ctx, req.Schema, req.Filter, req.Expr), nil
}

// singleRead resolves id to its materialised core, emitting once
// immediately if already available or once the background load settles
// otherwise. The store is re-emitted by notifySingle on every subsequent
// update/delete of id while its subscription cache entry is live. Repeated
// reads of the same id share the cached store.
func (c *CRUD) singleRead(ctx context.Context, id string) *reactive.Store[extractor.Flat] {
	store := reactive.New(extractor.Flat{ID: id, Type: covalue.TypeUnknown, Loading: true})

	sub := c.Subs.GetOrCreate(id, func() subscache.Subscription {
		return &storeSub{store: store}
	})
	if ss, ok := sub.(*storeSub); ok {
		store = ss.store
	}

	core := c.Backend.GetCoValue(id)
	if core != nil && core.Available() {
		store.Set(extractor.ExtractFlat(core, extractor.HintNone, nil))
		return store
	}

	go func() {
		loadCtx, cancel := context.WithTimeout(context.Background(), singleReadTimeout)
		defer cancel()
		loaded, err := loader.Ensure(loadCtx, c.Backend, id, loader.Options{WaitForAvailable: true, Timeout: singleReadTimeout})
		if err != nil {
			store.Set(extractor.Flat{ID: id, Type: covalue.TypeUnknown, Err: err})
			return
		}
		if loaded == nil {
			store.Set(extractor.Flat{ID: id, Type: covalue.TypeUnknown, Err: errs.New(errs.NotFound, "crud.singleRead", fmt.Errorf("%s not found", id))})
			return
		}
		store.Set(extractor.ExtractFlat(loaded, extractor.HintNone, nil))
	}()

	_ = ctx
	return store
}

// storeSub adapts a reactive.Store into a subscache.Subscription so a
// single store is shared across repeated reads of the same id; unsubscribe
// has nothing further to release since the cache's own cleanup timer
// already owns this entry's lifetime.
type storeSub struct {
	store *reactive.Store[extractor.Flat]
}

func (s *storeSub) Unsubscribe() {}

// notifySingle re-extracts id's current core and re-emits it to the
// store cached for id, if a single-read subscription is live for it.
func (c *CRUD) notifySingle(id string) {
	sub, ok := c.Subs.Get(id)
	if !ok {
		return
	}
	ss, ok := sub.(*storeSub)
	if !ok {
		return
	}
	core := c.Backend.GetCoValue(id)
	ss.store.Set(extractor.ExtractFlat(core, extractor.HintNone, nil))
}

// allValuesRead enumerates every CoValue this node has materialised,
// extracts each available one, applies filter and expr and emits the
// array. It re-runs on every create/update/delete across the whole
// backend, not just one schema's membership.
func (c *CRUD) allValuesRead(ctx context.Context, filter map[string]any, expr string) *reactive.Store[[]extractor.Flat] {
	store := reactive.New([]extractor.Flat{})

	emit := func() {
		cores := c.Backend.AllCoValues()
		items := make([]extractor.Flat, 0, len(cores))
		for _, core := range cores {
			if core == nil || !core.Available() {
				continue
			}
			flat := extractor.ExtractFlat(core, extractor.HintNone, nil)
			if matchesFilter(flat, filter) && (expr == "" || exprfilter.Match(expr, flat.Fields)) {
				items = append(items, flat)
			}
		}
		if !reflect.DeepEqual(items, store.Value()) {
			store.Set(items)
		}
	}

	emit()
	c.trackCollection(allValuesFanKey, store, emit)
	store.OnEmpty(func() { c.untrackCollection(allValuesFanKey, store) })

	_ = ctx
	return store
}

// collectionRead resolves schemaID's index list and emits the extracted,
// filtered membership. It re-runs on every create/update/delete touching
// schemaID while a listener is attached.
func (c *CRUD) collectionRead(ctx context.Context, schemaID string, filter map[string]any, expr string) *reactive.Store[[]extractor.Flat] {
	store := reactive.New([]extractor.Flat{})

	idx := c.indexFor(schemaID)
	if idx == nil {
		return store
	}

	emit := func() {
		ids, err := idx.Snapshot(ctx, schemaID)
		if err != nil {
			return
		}
		items := make([]extractor.Flat, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue // dedup duplicate index entries
			}
			seen[id] = true

			core := c.Backend.GetCoValue(id)
			if core == nil {
				go func(id string) {
					loadCtx, cancel := context.WithTimeout(context.Background(), singleReadTimeout)
					defer cancel()
					_, _ = loader.Ensure(loadCtx, c.Backend, id, loader.Options{})
				}(id)
				continue
			}
			if !core.Available() {
				continue
			}
			flat := extractor.ExtractFlat(core, extractor.HintNone, nil)
			if matchesFilter(flat, filter) && (expr == "" || exprfilter.Match(expr, flat.Fields)) {
				items = append(items, flat)
			}
		}

		if !reflect.DeepEqual(items, store.Value()) {
			store.Set(items)
		}
	}

	emit()
	c.trackCollection(schemaID, store, emit)
	store.OnEmpty(func() { c.untrackCollection(schemaID, store) })
	return store
}

// matchesFilter applies strict equality on every (key, value) pair, no
// coercion. A list/stream item matches if any of its elements match.
func matchesFilter(flat extractor.Flat, filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	if flat.Fields != nil {
		for k, want := range filter {
			got, ok := flat.Fields[k]
			if !ok || !reflect.DeepEqual(got, want) {
				return false
			}
		}
		return true
	}
	for _, item := range flat.Items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		match := true
		for k, want := range filter {
			if got, ok := m[k]; !ok || !reflect.DeepEqual(got, want) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (c *CRUD) trackCollection(fanKey string, store *reactive.Store[[]extractor.Flat], emit func()) {
	c.collMu.Lock()
	defer c.collMu.Unlock()
	fans, ok := c.collFans[fanKey]
	if !ok {
		fans = make(map[*reactive.Store[[]extractor.Flat]]*collFan)
		c.collFans[fanKey] = fans
	}
	fans[store] = &collFan{store: store, emit: emit}
}

func (c *CRUD) untrackCollection(fanKey string, store *reactive.Store[[]extractor.Flat]) {
	c.collMu.Lock()
	defer c.collMu.Unlock()
	fans := c.collFans[fanKey]
	delete(fans, store)
	if len(fans) == 0 {
		delete(c.collFans, fanKey)
	}
}

// notifyCollections re-runs emit for every store tracked under fanKey,
// i.e. step 6's "when any tracked id updates, re-run steps 2-5".
func (c *CRUD) notifyCollections(fanKey string) {
	if fanKey == "" {
		return
	}
	c.collMu.Lock()
	fans := c.collFans[fanKey]
	emits := make([]func(), 0, len(fans))
	for _, fan := range fans {
		emits = append(emits, fan.emit)
	}
	c.collMu.Unlock()

	for _, emit := range emits {
		emit()
	}
}

// --- create ---------------------------------------------------------------

func (c *CRUD) create(ctx context.Context, req Request) (extractor.Flat, error) {
	variant, err := cotypeOf(req.Data)
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Structural, "crud.create", err)
	}

	groupID, err := c.resolveDefaultGroup(ctx)
	if err != nil {
		return extractor.Flat{}, err
	}

	content := variant.newContent()
	if mc, ok := content.(*covalue.MapContent); ok {
		for k, v := range req.Data {
			mc.Set(k, v)
		}
	}

	core, err := c.Backend.CreateCoValue(ctx, variant.variant, covalue.Header{Schema: req.Schema, Meta: map[string]any{"group": groupID}}, content)
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.create", err)
	}

	if variant.variant == covalue.VariantMap && req.Schema != "" {
		idx := c.indexFor(req.Schema)
		if idx != nil {
			indexCtx, cancel := context.WithTimeout(ctx, indexAppendTimeout)
			if err := idx.Append(indexCtx, req.Schema, core.ID); err != nil {
				// logged, not fatal to create
				_ = err
			}
			cancel()
		}
	}

	c.notifyCollections(req.Schema)
	c.notifyCollections(allValuesFanKey)

	return extractor.ExtractFlat(core, extractor.HintNone, nil), nil
}

type cotype struct {
	variant    covalue.Variant
	newContent func() covalue.Content
}

func cotypeOf(data map[string]any) (cotype, error) {
	// Inference from payload shape: object -> comap.
	// Array/string payloads arrive pre-wrapped by the caller in this
	// backend's Go surface, so only the object case is reachable here.
	if data == nil {
		return cotype{}, fmt.Errorf("create: nil payload")
	}
	return cotype{variant: covalue.VariantMap, newContent: func() covalue.Content { return covalue.NewMapContent() }}, nil
}

func (c *CRUD) resolveDefaultGroup(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.cachedGroupOnce {
		id := c.cachedGroupID
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	if c.DefaultGroup == nil {
		return "", errs.New(errs.Structural, "crud.resolveDefaultGroup", fmt.Errorf("no default group resolver configured"))
	}
	groupCtx, cancel := context.WithTimeout(ctx, defaultGroupWait)
	defer cancel()
	id, err := c.DefaultGroup(groupCtx)
	if err != nil {
		return "", errs.New(errs.Timeout, "crud.resolveDefaultGroup", err)
	}

	c.mu.Lock()
	c.cachedGroupID = id
	c.cachedGroupOnce = true
	c.mu.Unlock()
	return id, nil
}

func (c *CRUD) indexFor(schemaID string) *schemaindex.Index {
	if c.IndexFor == nil {
		return nil
	}
	return c.IndexFor(schemaID)
}

// --- update ---------------------------------------------------------------

func (c *CRUD) update(ctx context.Context, req Request) (extractor.Normalised, error) {
	core, err := loader.Ensure(ctx, c.Backend, req.ID, loader.Options{WaitForAvailable: true, Timeout: singleReadTimeout})
	if err != nil {
		return extractor.Normalised{}, errs.New(errs.Timeout, "crud.update", err)
	}
	if core == nil || !core.Available() {
		return extractor.Normalised{}, errs.New(errs.NotFound, "crud.update", fmt.Errorf("%s not available", req.ID))
	}
	m, ok := core.AsMap()
	if !ok {
		return extractor.Normalised{}, errs.New(errs.Structural, "crud.update", fmt.Errorf("%s is not a map variant", req.ID))
	}
	for k, v := range req.Data {
		m.Set(k, v)
	}
	if err := c.Backend.Persist(ctx, core); err != nil {
		return extractor.Normalised{}, errs.New(errs.Transient, "crud.update", err)
	}

	c.notifySingle(core.ID)
	c.notifyCollections(core.Header.Schema)
	c.notifyCollections(allValuesFanKey)

	return extractor.ExtractNormalised(core, extractor.HintNone), nil
}

// --- delete (hard) ---------------------------------------------------------

func (c *CRUD) delete(ctx context.Context, req Request) (bool, error) {
	core, err := loader.Ensure(ctx, c.Backend, req.ID, loader.Options{WaitForAvailable: true, Timeout: singleReadTimeout})
	if err != nil {
		return false, errs.New(errs.Timeout, "crud.delete", err)
	}
	if core == nil {
		return true, nil // already gone: delete is terminal
	}
	m, ok := core.AsMap()
	if !ok {
		return false, errs.New(errs.Structural, "crud.delete", fmt.Errorf("%s is not a map variant", req.ID))
	}

	schemaID := req.Schema
	if schemaID == "" {
		schemaID = core.Header.Schema
	}
	if idx := c.indexFor(schemaID); idx != nil {
		_ = idx.Remove(ctx, schemaID, core.ID) // proceed anyway if not found
	}

	for _, k := range m.Keys() {
		m.Delete(k)
	}
	if err := c.Backend.Persist(ctx, core); err != nil {
		return false, errs.New(errs.Transient, "crud.delete", err)
	}

	c.notifySingle(core.ID)
	c.notifyCollections(schemaID)
	c.notifyCollections(allValuesFanKey)

	return true, nil
}

// --- spark ops --------------------------------------------------------

// createSpark mints a fresh group, an empty os scaffold (schematas,
// indexes) and a spark record under req.Name, registering it in
// account.registries.sparks (creating that chain if absent, reusing it
// if present).
func (c *CRUD) createSpark(ctx context.Context, req Request) (extractor.Flat, error) {
	if req.Name == "" {
		return extractor.Flat{}, errs.New(errs.Structural, "crud.createSpark", fmt.Errorf("name is required"))
	}
	account := c.Backend.Account()
	if account == nil {
		return extractor.Flat{}, errs.New(errs.Structural, "crud.createSpark", fmt.Errorf("no account bound"))
	}
	accountMap, ok := account.AsMap()
	if !ok {
		return extractor.Flat{}, errs.New(errs.Structural, "crud.createSpark", fmt.Errorf("account has no map content"))
	}

	groupCore, err := c.Backend.CreateCoValue(ctx, covalue.VariantGroup, covalue.Header{RulesetType: "group"}, covalue.NewGroupContent())
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}

	schematasCore, err := c.Backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, covalue.NewMapContent())
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}
	indexesCore, err := c.Backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, covalue.NewMapContent())
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}
	osContent := covalue.NewMapContent()
	osContent.Set("schematas", schematasCore.ID)
	osContent.Set("indexes", indexesCore.ID)
	osCore, err := c.Backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, osContent)
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}

	sparkRecord := covalue.NewMapContent()
	sparkRecord.Set("name", req.Name)
	sparkRecord.Set("group", groupCore.ID)
	sparkRecord.Set("os", osCore.ID)
	for k, v := range req.Data {
		sparkRecord.Set(k, v)
	}
	sparkCore, err := c.Backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, sparkRecord)
	if err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}

	registriesMap, registriesCore, err := c.resolveOrCreateMapRef(ctx, accountMap, "registries")
	if err != nil {
		return extractor.Flat{}, err
	}
	sparksMap, sparksCore, err := c.resolveOrCreateMapRef(ctx, registriesMap, "sparks")
	if err != nil {
		return extractor.Flat{}, err
	}
	sparksMap.Set(req.Name, sparkCore.ID)
	if err := c.Backend.Persist(ctx, sparksCore); err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}
	if err := c.Backend.Persist(ctx, registriesCore); err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}
	if err := c.Backend.Persist(ctx, account); err != nil {
		return extractor.Flat{}, errs.New(errs.Transient, "crud.createSpark", err)
	}

	c.notifyCollections(allValuesFanKey)
	return extractor.ExtractFlat(sparkCore, extractor.HintNone, nil), nil
}

// resolveOrCreateMapRef reads parent[key] as a co-id reference to a map
// CoValue, loading it if present; if absent, it mints an empty one and
// wires it into parent (the caller persists parent's owning core).
func (c *CRUD) resolveOrCreateMapRef(ctx context.Context, parent *covalue.MapContent, key string) (*covalue.MapContent, *covalue.Core, error) {
	if raw, ok := parent.Get(key); ok {
		if id, ok := raw.(string); ok {
			if core, err := loader.Ensure(ctx, c.Backend, id, loader.Options{WaitForAvailable: true, Timeout: singleReadTimeout}); err == nil && core != nil {
				if m, ok := core.AsMap(); ok {
					return m, core, nil
				}
			}
		}
	}
	core, err := c.Backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, covalue.NewMapContent())
	if err != nil {
		return nil, nil, errs.New(errs.Transient, "crud.resolveOrCreateMapRef", err)
	}
	parent.Set(key, core.ID)
	m, _ := core.AsMap()
	return m, core, nil
}

// resolveSparkID resolves req.ID directly, or looks req.Name up through
// account.registries.sparks when ID is empty.
func (c *CRUD) resolveSparkID(ctx context.Context, req Request) (string, error) {
	if req.ID != "" {
		return req.ID, nil
	}
	if req.Name == "" {
		return "", errs.New(errs.Structural, "crud.resolveSparkID", fmt.Errorf("id or name is required"))
	}

	notFound := func() error {
		return errs.New(errs.NotFound, "crud.resolveSparkID", fmt.Errorf("spark %q not found", req.Name))
	}

	account := c.Backend.Account()
	if account == nil {
		return "", errs.New(errs.Structural, "crud.resolveSparkID", fmt.Errorf("no account bound"))
	}
	accountMap, ok := account.AsMap()
	if !ok {
		return "", errs.New(errs.Structural, "crud.resolveSparkID", fmt.Errorf("account has no map content"))
	}

	registriesID, ok := mapStringRef(accountMap, "registries")
	if !ok {
		return "", notFound()
	}
	registriesCore, err := loader.Ensure(ctx, c.Backend, registriesID, loader.Options{WaitForAvailable: true, Timeout: singleReadTimeout})
	if err != nil {
		return "", errs.New(errs.Timeout, "crud.resolveSparkID", err)
	}
	if registriesCore == nil {
		return "", notFound()
	}
	registriesMap, ok := registriesCore.AsMap()
	if !ok {
		return "", notFound()
	}

	sparksID, ok := mapStringRef(registriesMap, "sparks")
	if !ok {
		return "", notFound()
	}
	sparksCore, err := loader.Ensure(ctx, c.Backend, sparksID, loader.Options{WaitForAvailable: true, Timeout: singleReadTimeout})
	if err != nil {
		return "", errs.New(errs.Timeout, "crud.resolveSparkID", err)
	}
	if sparksCore == nil {
		return "", notFound()
	}
	sparksMap, ok := sparksCore.AsMap()
	if !ok {
		return "", notFound()
	}

	sparkID, ok := mapStringRef(sparksMap, req.Name)
	if !ok {
		return "", notFound()
	}
	return sparkID, nil
}

func mapStringRef(m *covalue.MapContent, key string) (string, bool) {
	raw, ok := m.Get(key)
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok
}

func (c *CRUD) readSpark(ctx context.Context, req Request) (*reactive.Store[extractor.Flat], error) {
	id, err := c.resolveSparkID(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.singleRead(ctx, id), nil
}

func (c *CRUD) updateSpark(ctx context.Context, req Request) (extractor.Normalised, error) {
	id, err := c.resolveSparkID(ctx, req)
	if err != nil {
		return extractor.Normalised{}, err
	}
	req.ID = id
	return c.update(ctx, req)
}

func (c *CRUD) deleteSpark(ctx context.Context, req Request) (bool, error) {
	id, err := c.resolveSparkID(ctx, req)
	if err != nil {
		return false, err
	}
	req.ID = id
	return c.delete(ctx, req)
}
