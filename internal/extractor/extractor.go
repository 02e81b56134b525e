// Package extractor converts a materialised CoValue core into the flat,
// schema-tagged representation the operation API returns. It is a pure
// function over covalue.Core: no I/O, no suspension points.
package extractor

import (
	"github.com/maia-os/covalue-core/internal/covalue"
)

// SchemaHint lets a caller force the extracted $schema to one of the three
// reserved aliases when the CoValue's own header doesn't already say so.
type SchemaHint string

const (
	HintNone    SchemaHint = ""
	HintGroup   SchemaHint = covalue.SchemaGroup
	HintAccount SchemaHint = covalue.SchemaAccount
	HintMeta    SchemaHint = covalue.SchemaMetaAlias
)

// Flat is the hot-path extraction: id, type, $schema, plus the content's
// own fields flattened to the top level. Loading/Err surface the
// read-path's `{id, loading:true}` / `{id, error}` states;
// a store readiness check is Variant != unknown && !Loading && Err == nil.
type Flat struct {
	ID      string
	Type    covalue.ExtractedType
	Schema  string
	Fields  map[string]any // map/account variants
	Items   []any          // list/stream variants
	Loading bool
	Err     error
}

// Ready reports whether this extraction represents a settled, errorless
// state — the single readiness predicate used uniformly across the read
// path.
func (f Flat) Ready() bool {
	return f.Type != covalue.TypeUnknown && !f.Loading && f.Err == nil
}

// Account is injected by CRUD when it already holds an in-hand account
// reference, preferring it over a fresh core read.
type Account struct {
	ID     string
	Fields map[string]any
}

// ExtractFlat produces the Flat form for core. hint overrides the derived
// $schema; account, if non-nil and either core is nil or core.ID matches
// it, short-circuits the content read entirely.
func ExtractFlat(core *covalue.Core, hint SchemaHint, account *Account) Flat {
	if account != nil && (core == nil || core.ID == account.ID) {
		return Flat{ID: account.ID, Type: covalue.TypeMap, Schema: string(HintAccount), Fields: account.Fields}
	}
	if core == nil {
		return Flat{Type: covalue.TypeUnknown}
	}

	out := Flat{ID: core.ID, Schema: resolveSchema(core, hint)}

	switch content := core.CurrentContent().(type) {
	case *covalue.AccountContent:
		out.Type = covalue.TypeMap
		out.Fields = extractMapFields(content.MapContent)
	case *covalue.MapContent:
		out.Type = covalue.TypeMap
		out.Fields = extractMapFields(content)
	case *covalue.GroupContent:
		out.Type = covalue.TypeMap
		out.Fields = groupFields(content)
	case *covalue.ListContent:
		out.Type = covalue.TypeList
		out.Items = content.Items()
	case *covalue.StreamContent:
		out.Type = covalue.TypeStream
		out.Items = content.Flatten()
	default:
		out.Type = covalue.TypeUnknown
	}
	return out
}

func resolveSchema(core *covalue.Core, hint SchemaHint) string {
	if hint != HintNone {
		return string(hint)
	}
	switch {
	case core.Variant == covalue.VariantGroup || core.Header.IsGroupRuleset():
		return covalue.SchemaGroup
	case core.Variant == covalue.VariantAccount:
		return covalue.SchemaAccount
	default:
		return core.Header.Schema
	}
}

// extractMapFields copies every key via Get, tolerating per-key failures
// without aborting extraction of siblings.
func extractMapFields(m *covalue.MapContent) map[string]any {
	fields := make(map[string]any)
	for _, k := range m.Keys() {
		func() {
			defer func() { _ = recover() }()
			if v, ok := m.Get(k); ok {
				fields[k] = v
			}
		}()
	}
	return fields
}

func groupFields(g *covalue.GroupContent) map[string]any {
	fields := make(map[string]any)
	members := make(map[string]string)
	for _, m := range g.Members() {
		members[m.MemberID] = m.Role
	}
	fields["members"] = members
	return fields
}

// Property is one entry of the normalised diagnostic extraction, a second
// tagged-property form alongside the flat field map.
type Property struct {
	Key   string
	Value any
	Type  string // co-id, key, sealed, null, object, array, error
}

// Normalised is the inspection-surface extraction: id/type/$schema plus an
// array of tagged properties instead of a flat field map. Not on the hot
// path — used by diagnostic tooling and as crud's update result.
type Normalised struct {
	ID         string
	Type       covalue.ExtractedType
	Schema     string
	Properties []Property
	Items      []any
}

// ExtractNormalised produces the tagged-property diagnostic form.
func ExtractNormalised(core *covalue.Core, hint SchemaHint) Normalised {
	flat := ExtractFlat(core, hint, nil)
	out := Normalised{ID: flat.ID, Type: flat.Type, Schema: flat.Schema, Items: flat.Items}
	for k, v := range flat.Fields {
		t := classify(v)
		if t == "sealed" {
			v = "sealed_***"
		}
		out.Properties = append(out.Properties, Property{Key: k, Value: v, Type: t})
	}
	return out
}

// classify tags a raw value for the normalised form. Sealed values are left
// untouched on the flat path; only this diagnostic path redacts.
func classify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		if covalue.ValidID(val) {
			return "co-id"
		}
		if isSealed(val) {
			return "sealed"
		}
		return "key"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "key"
	}
}

func isSealed(s string) bool {
	const prefix = "sealed_"
	return len(s) > len(prefix) && s[:len(prefix)] == prefix
}
