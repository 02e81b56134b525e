package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/telemetry"
)

// DefaultAvailabilityTimeout is a default wait for a core to become
// available. WaitAvailable and LoadCoValueCore do not apply it themselves;
// they are bounded only by their ctx.
const DefaultAvailabilityTimeout = 2 * time.Second

// Node is the minimal local node the backend core runs against: an
// in-memory registry of materialised cores backed by a durable Store. It is
// explicitly not a CRDT peer — there is no merge algorithm and no network
// sync; LoadCoValueCore only ever resolves against this process's own Store.
// It exists solely to give BackendHandle a concrete implementation; the
// actual CRDT transport and disk storage live outside this package.
type Node struct {
	id          string
	sessionID   string
	store       *Store
	systemSpark string

	mu     sync.Mutex
	cores  map[string]*covalue.Core
	loads  map[string]chan struct{} // in-flight load dedup"idempotent"
	acctMu sync.RWMutex
	acct   *covalue.Core

	metrics *telemetry.StoreMetrics
}

// SetMetrics attaches store telemetry. Nil is safe and disables recording;
// there is no default instance since a Node may run before telemetry.Init
// has selected an exporter.
func (n *Node) SetMetrics(m *telemetry.StoreMetrics) {
	n.metrics = m
}

// NewNode constructs a node with the given identity (used by the
// node-aware global subscription cache to detect node swaps) and
// system spark name. A fresh session id is minted for the process's own stream writes.
func NewNode(id string, store *Store, systemSpark string) *Node {
	return &Node{
		id:          id,
		sessionID:   uuid.NewString(),
		store:       store,
		systemSpark: systemSpark,
		cores:       make(map[string]*covalue.Core),
		loads:       make(map[string]chan struct{}),
	}
}

// ID returns the node's identity, consulted by the node-aware global
// subscription cache to detect a node swap.
func (n *Node) ID() string { return n.id }

// SessionID returns the session partition this process appends its own
// stream writes under. Remote sessions observed via sync keep their own
// ids; this is only used for locally originated appends.
func (n *Node) SessionID() string { return n.sessionID }

// AppendLocal appends value to stream's own session (SessionID) and
// persists the delta, the entry point a local writer uses instead of
// reaching into StreamContent directly.
func (n *Node) AppendLocal(ctx context.Context, streamCore *covalue.Core, value any) error {
	stream, ok := streamCore.AsStream()
	if !ok {
		return fmt.Errorf("runtime: %s is not a stream variant", streamCore.ID)
	}
	stream.Append(n.sessionID, value)
	b, err := jsonMarshal(value)
	if err != nil {
		return err
	}
	return n.store.AppendStreamItem(ctx, &StreamItemRow{
		CoValueID: streamCore.ID,
		SessionID: n.sessionID,
		Seq:       len(stream.Sessions()[n.sessionID]) - 1,
		ValueJSON: b,
	})
}

func (n *Node) GetCoValue(id string) *covalue.Core {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cores[id]
}

// AllCoValues returns a snapshot of every core materialised locally so far.
func (n *Node) AllCoValues() []*covalue.Core {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*covalue.Core, 0, len(n.cores))
	for _, core := range n.cores {
		out = append(out, core)
	}
	return out
}

func (n *Node) GetCurrentContent(id string) (covalue.Content, bool) {
	core := n.GetCoValue(id)
	if core == nil {
		return nil, false
	}
	return core.CurrentContent(), true
}

func (n *Node) IsAvailable(id string) bool {
	core := n.GetCoValue(id)
	return core != nil && core.Available()
}

func (n *Node) GetHeader(id string) (covalue.Header, bool) {
	core := n.GetCoValue(id)
	if core == nil {
		return covalue.Header{}, false
	}
	return core.Header, true
}

func (n *Node) SystemSpark() string { return n.systemSpark }

func (n *Node) Account() *covalue.Core {
	n.acctMu.RLock()
	defer n.acctMu.RUnlock()
	return n.acct
}

// SetAccount records the backend's own account core once resolved during
// seeding or login.
func (n *Node) SetAccount(core *covalue.Core) {
	n.acctMu.Lock()
	defer n.acctMu.Unlock()
	n.acct = core
}

// LoadCoValueCore ensures id is registered locally, fetching it from the
// durable store on first sight. Concurrent callers for the same id share
// the in-flight fetch.
func (n *Node) LoadCoValueCore(ctx context.Context, id string) (*covalue.Core, error) {
	if !covalue.ValidID(id) {
		return nil, fmt.Errorf("runtime: invalid covalue id %q", id)
	}

	n.mu.Lock()
	if core, ok := n.cores[id]; ok {
		n.mu.Unlock()
		return core, nil
	}
	if wait, inFlight := n.loads[id]; inFlight {
		n.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		n.mu.Lock()
		core := n.cores[id]
		n.mu.Unlock()
		return core, nil
	}
	done := make(chan struct{})
	n.loads[id] = done
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		delete(n.loads, id)
		n.mu.Unlock()
		close(done)
	}()

	row, err := n.store.Get(ctx, id)
	if err != nil {
		return nil, nil // not found locally yet: absent core is not an error
	}

	core, err := n.hydrateCore(row)
	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordError(ctx, "hydrate")
		}
		return nil, err
	}
	core.MarkAvailable()

	n.mu.Lock()
	n.cores[id] = core
	n.mu.Unlock()
	return core, nil
}

func (n *Node) hydrateCore(row *CoValueRow) (*covalue.Core, error) {
	header := toHeader(row)
	variant := covalue.Variant(row.Variant)

	var content covalue.Content
	switch variant {
	case covalue.VariantMap:
		m := covalue.NewMapContent()
		for k, v := range row.ContentJSON.data {
			m.Set(k, v)
		}
		content = m
	case covalue.VariantAccount:
		a := covalue.NewAccountContent()
		for k, v := range row.ContentJSON.data {
			a.Set(k, v)
		}
		content = a
	case covalue.VariantGroup:
		g := covalue.NewGroupContent()
		for k, v := range row.ContentJSON.data {
			if role, ok := v.(string); ok {
				g.AddMember(k, role)
			}
		}
		content = g
	case covalue.VariantList:
		l := covalue.NewListContent()
		items, err := decodeListItems(row.ListItems)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			l.Append(item)
		}
		content = l
	case covalue.VariantStream:
		s := covalue.NewStreamContent()
		items, err := n.store.StreamItems(context.Background(), row.ID)
		if err != nil {
			return nil, fmt.Errorf("runtime: load stream items: %w", err)
		}
		for _, it := range items {
			var v any
			if err := jsonUnmarshal(it.ValueJSON, &v); err != nil {
				continue
			}
			s.Append(it.SessionID, v)
		}
		content = s
	default:
		return nil, fmt.Errorf("runtime: unknown variant %q for %s", row.Variant, row.ID)
	}

	return covalue.NewCore(row.ID, variant, header, content), nil
}

// WaitAvailable blocks until id's core reports available or ctx expires.
func (n *Node) WaitAvailable(ctx context.Context, id string) error {
	core := n.GetCoValue(id)
	if core == nil {
		return fmt.Errorf("runtime: %s not loaded", id)
	}
	if core.Available() {
		return nil
	}
	start := time.Now()
	select {
	case <-core.Ready():
		n.recordLoadWait(ctx, start, false)
		return nil
	case <-ctx.Done():
		n.recordLoadWait(ctx, start, true)
		return ctx.Err()
	}
}

func (n *Node) recordLoadWait(ctx context.Context, start time.Time, timedOut bool) {
	if n.metrics == nil {
		return
	}
	n.metrics.RecordLoadWait(ctx, float64(time.Since(start).Milliseconds()), timedOut)
}

// CreateCoValue mints id, registers the core locally, persists it and marks
// it available — the create path's "storage sync" is synchronous here
// since there is no network hop.
func (n *Node) CreateCoValue(ctx context.Context, variant covalue.Variant, header covalue.Header, content covalue.Content) (*covalue.Core, error) {
	id := covalue.NewID(header.Schema)
	core := covalue.NewCore(id, variant, header, content)
	core.MarkAvailable()

	n.mu.Lock()
	n.cores[id] = core
	n.mu.Unlock()

	if err := n.Persist(ctx, core); err != nil {
		return nil, err
	}
	return core, nil
}

// Persist writes core's current content to the durable store.
func (n *Node) Persist(ctx context.Context, core *covalue.Core) error {
	row := &CoValueRow{
		ID:          core.ID,
		Variant:     string(core.Variant),
		Schema:      core.Header.Schema,
		RulesetType: core.Header.RulesetType,
		Available:   true,
	}
	row.HeaderMeta, _ = marshalContent(core.Header.Meta)

	switch content := core.CurrentContent().(type) {
	case *covalue.AccountContent:
		row.ContentJSON, _ = marshalContent(content.Snapshot())
	case *covalue.MapContent:
		row.ContentJSON, _ = marshalContent(content.Snapshot())
	case *covalue.GroupContent:
		snap := make(map[string]any)
		for _, m := range content.Members() {
			snap[m.MemberID] = m.Role
		}
		row.ContentJSON, _ = marshalContent(snap)
	case *covalue.ListContent:
		encoded, err := encodeListItems(content.Items())
		if err != nil {
			return err
		}
		row.ListItems = encoded
	case *covalue.StreamContent:
		if err := n.persistStreamAppends(ctx, core.ID, content); err != nil {
			return err
		}
	}

	if err := n.store.Upsert(ctx, row); err != nil {
		if n.metrics != nil {
			n.metrics.RecordError(ctx, "persist")
		}
		return err
	}
	if n.metrics != nil {
		n.metrics.RecordEmission(ctx, string(core.Variant))
	}
	return nil
}

// persistStreamAppends inserts every session item of content as a new
// stream row on each call; it does not skip items already stored. Persist
// calls it, which CreateCoValue does once for a fresh stream core;
// AppendLocal writes only its own new item via AppendStreamItem.
func (n *Node) persistStreamAppends(ctx context.Context, coValueID string, content *covalue.StreamContent) error {
	for sessionID, items := range content.Sessions() {
		for seq, item := range items {
			b, err := jsonMarshal(item)
			if err != nil {
				return err
			}
			if err := n.store.AppendStreamItem(ctx, &StreamItemRow{
				CoValueID: coValueID,
				SessionID: sessionID,
				Seq:       seq,
				ValueJSON: b,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
