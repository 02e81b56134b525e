// Package schemaresolver turns human-readable identifiers
// (°Maia/schema/..., °Maia/agent/..., instance paths) into CoValue
// identifiers, schema documents or reactive stores by walking a fixed path
// through the account graph.
package schemaresolver

import (
	"context"
	"strings"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/extractor"
	"github.com/maia-os/covalue-core/internal/loader"
	"github.com/maia-os/covalue-core/internal/reactive"
	"github.com/maia-os/covalue-core/internal/runtime"
)

// RefSigil is the registry reference prefix character (U+00B0).
const RefSigil = "°"

// RefKind classifies a parsed registry-shaped identifier.
type RefKind int

const (
	RefNone RefKind = iota
	RefSchema
	RefAgent
	RefInstance
)

// ParsedRef is a decomposed registry reference.
type ParsedRef struct {
	Kind  RefKind
	Spark string
	Path  string // remainder after the kind segment; for instance refs, everything after the spark
}

// ParseRef decomposes a `°<spark>/...` identifier. Returns ok=false for
// co-ids, bare names and anything not starting with the sigil.
func ParseRef(identifier string) (ParsedRef, bool) {
	if !strings.HasPrefix(identifier, RefSigil) {
		return ParsedRef{}, false
	}
	rest := strings.TrimPrefix(identifier, RefSigil)
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 {
		return ParsedRef{}, false
	}
	spark, kind := parts[0], parts[1]
	path := ""
	if len(parts) == 3 {
		path = parts[2]
	}

	switch kind {
	case "schema":
		return ParsedRef{Kind: RefSchema, Spark: spark, Path: path}, true
	case "agent":
		return ParsedRef{Kind: RefAgent, Spark: spark, Path: path}, true
	case "actor", "inbox", "view", "context", "state", "style":
		return ParsedRef{Kind: RefInstance, Spark: spark, Path: kind + "/" + path}, true
	default:
		// <kind>/{actor|inbox|...}/<path>: reparse with one more segment consumed.
		if len(parts) == 3 {
			subParts := strings.SplitN(path, "/", 2)
			if len(subParts) == 2 {
				switch subParts[0] {
				case "actor", "inbox", "view", "context", "state", "style":
					return ParsedRef{Kind: RefInstance, Spark: spark, Path: kind + "/" + path}, true
				}
			}
		}
		return ParsedRef{}, false
	}
}

// ReturnType selects what Resolve returns.
type ReturnType int

const (
	ReturnCoID ReturnType = iota
	ReturnSchema
	ReturnStore
)

// Options configures one Resolve call.
type Options struct {
	ReturnType  ReturnType
	DeepResolve bool
	Spark       string // overrides backend.SystemSpark()
}

// Result is Resolve's polymorphic return.
type Result struct {
	CoID   string
	Schema map[string]any
	Store  *reactive.Store[extractor.Flat]
}

const defaultReadTimeout = loader.DefaultTimeout

// Resolve resolves identifier per. identifier may be a co-id, a
// registry-shaped string, or (via ResolveFromCoValue) an explicit
// `{fromCoValue}` request.
func Resolve(ctx context.Context, backend runtime.BackendHandle, identifier string, opts Options) (Result, error) {
	if covalue.ValidID(identifier) {
		return finish(ctx, backend, identifier, opts)
	}

	// Registry maps are keyed by the full registry reference.
	key := identifier
	ref, ok := ParseRef(identifier)
	if !ok {
		// Bare name: normalise by prefixing °<spark>/schema/.
		spark := effectiveSpark(backend, opts.Spark)
		if spark == "" {
			return Result{}, errs.New(errs.Structural, "schemaresolver.Resolve", errs.Errorf("no spark for bare name %q", identifier))
		}
		ref = ParsedRef{Kind: RefSchema, Spark: spark, Path: identifier}
		key = RefSigil + spark + "/schema/" + identifier
	}

	spark := ref.Spark
	if spark == "" {
		spark = effectiveSpark(backend, opts.Spark)
	}
	if spark == "" {
		return Result{}, errs.New(errs.Structural, "schemaresolver.Resolve", errs.Errorf("missing spark for registry lookup"))
	}

	registry, err := walkToRegistry(ctx, backend, spark, ref.Kind)
	if err != nil {
		return Result{}, err
	}
	if registry == nil {
		return Result{}, nil
	}

	raw, ok := registry.Get(key)
	if !ok {
		return Result{}, nil // missing keys are non-fatal
	}
	coID, ok := raw.(string)
	if !ok {
		return Result{}, nil
	}

	if opts.ReturnType == ReturnCoID {
		return Result{CoID: coID}, nil
	}
	return finish(ctx, backend, coID, opts)
}

// ResolveFromCoValue implements the `{fromCoValue: co-id}` form: loads the
// CoValue and resolves via its header $schema.
func ResolveFromCoValue(ctx context.Context, backend runtime.BackendHandle, fromCoValue string, opts Options) (Result, error) {
	core, err := loader.Ensure(ctx, backend, fromCoValue, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
	if err != nil {
		return Result{}, err
	}
	if core == nil || !core.Header.HasSchema() {
		return Result{}, nil
	}
	return finish(ctx, backend, core.Header.Schema, opts)
}

func effectiveSpark(backend runtime.BackendHandle, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return backend.SystemSpark()
}

// walkToRegistry walks account -> registries -> sparks -> <spark> -> os ->
// schematas for schema/instance refs, or account -> registries -> sparks ->
// <spark> -> agents for agent refs (agents hangs off the spark record
// itself, not off os).
func walkToRegistry(ctx context.Context, backend runtime.BackendHandle, spark string, kind RefKind) (*covalue.MapContent, error) {
	account := backend.Account()
	if account == nil {
		return nil, errs.New(errs.Structural, "schemaresolver.walkToRegistry", errs.Errorf("no account bound"))
	}
	accountMap, ok := account.AsMap()
	if !ok {
		return nil, errs.New(errs.Structural, "schemaresolver.walkToRegistry", errs.Errorf("account has no map content"))
	}

	sparkRecordID, err := readSingleMapRef(ctx, backend, accountMap, "registries", "sparks", spark)
	if err != nil || sparkRecordID == "" {
		return nil, err
	}
	sparkCore, err := loader.Ensure(ctx, backend, sparkRecordID, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
	if err != nil || sparkCore == nil {
		return nil, err
	}
	sparkMap, ok := sparkCore.AsMap()
	if !ok {
		return nil, nil
	}

	if kind == RefAgent {
		agentsRef, ok := sparkMap.Get("agents")
		if !ok {
			return nil, nil
		}
		agentsID, _ := agentsRef.(string)
		agentsCore, err := loader.Ensure(ctx, backend, agentsID, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
		if err != nil || agentsCore == nil {
			return nil, err
		}
		agentsMap, ok := agentsCore.AsMap()
		if !ok {
			return nil, nil
		}
		return agentsMap, nil
	}

	osRef, ok := sparkMap.Get("os")
	if !ok {
		return nil, nil
	}
	osID, _ := osRef.(string)
	osCore, err := loader.Ensure(ctx, backend, osID, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
	if err != nil || osCore == nil {
		return nil, err
	}
	osMap, ok := osCore.AsMap()
	if !ok {
		return nil, nil
	}

	regRef, ok := osMap.Get("schematas")
	if !ok {
		return nil, nil
	}
	regID, _ := regRef.(string)
	regCore, err := loader.Ensure(ctx, backend, regID, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
	if err != nil || regCore == nil {
		return nil, err
	}
	regMap, ok := regCore.AsMap()
	if !ok {
		return nil, nil
	}
	return regMap, nil
}

// readSingleMapRef reads nested.key1.key2... following co-id reference
// chains stored as strings in map content, one hop at a time.
func readSingleMapRef(ctx context.Context, backend runtime.BackendHandle, start *covalue.MapContent, path ...string) (string, error) {
	current := start
	for i, key := range path {
		raw, ok := current.Get(key)
		if !ok {
			return "", nil
		}
		id, ok := raw.(string)
		if !ok {
			return "", nil
		}
		if i == len(path)-1 {
			return id, nil
		}
		core, err := loader.Ensure(ctx, backend, id, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
		if err != nil || core == nil {
			return "", err
		}
		next, ok := core.AsMap()
		if !ok {
			return "", nil
		}
		current = next
	}
	return "", nil
}

func finish(ctx context.Context, backend runtime.BackendHandle, coID string, opts Options) (Result, error) {
	switch opts.ReturnType {
	case ReturnCoID:
		return Result{CoID: coID}, nil
	case ReturnStore:
		core, err := loader.Ensure(ctx, backend, coID, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
		if err != nil {
			return Result{}, err
		}
		store := reactive.New(extractor.ExtractFlat(core, extractor.HintNone, nil))
		return Result{CoID: coID, Store: store}, nil
	default: // ReturnSchema
		doc, err := loadSchemaDocument(ctx, backend, coID)
		if err != nil {
			return Result{}, err
		}
		return Result{CoID: coID, Schema: doc}, nil
	}
}

// loadSchemaDocument loads coID and shapes it into a JSON-Schema document
// per: prefers a nested `definition` (legacy wrapper), strips
// id/type/definition, recursively removes stray `id` fields except inside
// properties/items, injects $id, inherits $schema from the outer CoValue.
func loadSchemaDocument(ctx context.Context, backend runtime.BackendHandle, coID string) (map[string]any, error) {
	core, err := loader.Ensure(ctx, backend, coID, loader.Options{WaitForAvailable: true, Timeout: defaultReadTimeout})
	if err != nil {
		return nil, err
	}
	if core == nil {
		return nil, nil
	}
	m, ok := core.AsMap()
	if !ok {
		return nil, nil
	}
	doc := m.Snapshot()

	if nested, ok := doc["definition"].(map[string]any); ok {
		doc = nested
	}
	delete(doc, "id")
	delete(doc, "type")
	delete(doc, "definition")
	stripStrayIDs(doc, false)

	doc["$id"] = coID
	if _, has := doc["$schema"]; !has && core.Header.HasSchema() {
		doc["$schema"] = core.Header.Schema
	}
	return doc, nil
}

// stripStrayIDs recursively removes "id" keys except directly inside a
// properties/items object, where "id" is a legitimate field name.
func stripStrayIDs(node map[string]any, insideFields bool) {
	if !insideFields {
		delete(node, "id")
	}
	for key, v := range node {
		isFieldsContainer := key == "properties" || key == "items"
		switch child := v.(type) {
		case map[string]any:
			stripStrayIDs(child, isFieldsContainer)
		case []any:
			for _, item := range child {
				if m, ok := item.(map[string]any); ok {
					stripStrayIDs(m, false)
				}
			}
		}
	}
}
