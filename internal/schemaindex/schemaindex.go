// Package schemaindex maintains, per schema id, the append-only list
// CoValue that serves as the canonical membership of that schema. Index
// lists are looked up and lazily created under the owning spark's
// `os.indexes` map, treating that list as the single source of truth for
// "what belongs together" rather than scanning every row.
package schemaindex

import (
	"context"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/runtime"
)

// IndexSchemaGenesis marks the auto-generated schema every index list
// carries as its own $schema.
const IndexSchemaGenesis = "co_zIndexSchemaGenesis"

// Index wraps the spark's indexes map (schema id -> index list co-id) and
// the backend needed to load/create/mutate index lists.
type Index struct {
	backend    runtime.BackendHandle
	indexesMap *covalue.MapContent
	groupID    string
}

// New constructs an Index bound to a spark's `os.indexes` map and the group
// that should own freshly created index lists.
func New(backend runtime.BackendHandle, indexesMap *covalue.MapContent, ownerGroupID string) *Index {
	return &Index{backend: backend, indexesMap: indexesMap, groupID: ownerGroupID}
}

// resolveOrCreateList returns the index list core for schemaID, creating
// one (and recording it in the indexes map) if absent.
func (x *Index) resolveOrCreateList(ctx context.Context, schemaID string) (*covalue.Core, error) {
	if raw, ok := x.indexesMap.Get(schemaID); ok {
		if listID, ok := raw.(string); ok {
			core := x.backend.GetCoValue(listID)
			if core == nil {
				loaded, err := x.backend.LoadCoValueCore(ctx, listID)
				if err != nil {
					return nil, errs.New(errs.Transient, "schemaindex.resolveOrCreateList", err)
				}
				core = loaded
			}
			if core != nil {
				return core, nil
			}
		}
	}

	core, err := x.backend.CreateCoValue(ctx, covalue.VariantList, covalue.Header{Schema: IndexSchemaGenesis, Meta: map[string]any{"group": x.groupID}}, covalue.NewListContent())
	if err != nil {
		return nil, errs.New(errs.Transient, "schemaindex.resolveOrCreateList", err)
	}
	x.indexesMap.Set(schemaID, core.ID)
	return core, nil
}

// Append adds itemID to schemaID's index list if not already present
// (idempotent).
func (x *Index) Append(ctx context.Context, schemaID, itemID string) error {
	core, err := x.resolveOrCreateList(ctx, schemaID)
	if err != nil {
		return err
	}
	list, ok := core.AsList()
	if !ok {
		return errs.New(errs.Structural, "schemaindex.Append", errs.Errorf("%s is not a list", core.ID))
	}
	if list.IndexOf(itemID) >= 0 {
		return nil
	}
	list.Append(itemID)
	if err := x.backend.Persist(ctx, core); err != nil {
		return errs.New(errs.Transient, "schemaindex.Append", err)
	}
	return nil
}

// Remove removes itemID from schemaID's index list by its current
// position, if present.
func (x *Index) Remove(ctx context.Context, schemaID, itemID string) error {
	core, err := x.resolveOrCreateList(ctx, schemaID)
	if err != nil {
		return err
	}
	list, ok := core.AsList()
	if !ok {
		return nil
	}
	idx := list.IndexOf(itemID)
	if idx < 0 {
		return nil
	}
	list.DeleteAt(idx)
	if err := x.backend.Persist(ctx, core); err != nil {
		return errs.New(errs.Transient, "schemaindex.Remove", err)
	}
	return nil
}

// Snapshot returns schemaID's current membership, deduplicated by id. A
// duplicate is tolerated (it can arise from a racing concurrent append
// across two nodes) but every occurrence after the first is dropped.
func (x *Index) Snapshot(ctx context.Context, schemaID string) ([]string, error) {
	core, err := x.resolveOrCreateList(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	list, ok := core.AsList()
	if !ok {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, raw := range list.Items() {
		id, ok := raw.(string)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// Reindex appends any id in knownIDs missing from schemaID's index list.
// Used by the Seeder's end-of-bootstrap re-index pass.
func (x *Index) Reindex(ctx context.Context, schemaID string, knownIDs []string) error {
	existing, err := x.Snapshot(ctx, schemaID)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}
	for _, id := range knownIDs {
		if present[id] {
			continue
		}
		if err := x.Append(ctx, schemaID, id); err != nil {
			return err
		}
		present[id] = true
	}
	return nil
}
