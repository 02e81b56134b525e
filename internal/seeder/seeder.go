// Package seeder bootstraps an account's permission groups, meta-schema,
// topologically ordered schema CoValues, registry entries, and data,
// following a "create if absent, reuse if present" discipline for every
// registry entry. For configs it only registers an inferred schema under
// each config key not already declared; config values themselves are not
// stored as CoValues.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/crud"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/extractor"
	"github.com/maia-os/covalue-core/internal/inference"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/schemaindex"
	"github.com/maia-os/covalue-core/internal/telemetry"
)

// SchemaSpec is one schema to seed, in dependency order relative to its
// DependsOn keys (other SchemaSpec.Key values in the same batch).
type SchemaSpec struct {
	Key       string
	Document  map[string]any
	DependsOn []string
}

// DataEntry is one application-data item to create once its schema exists.
type DataEntry struct {
	SchemaKey string
	Payload   map[string]any
}

// Request is one seed() invocation's input.
type Request struct {
	SparkName string
	Schemas   []SchemaSpec
	Configs   map[string]any // inferred schemas are generated for any key not already declared
	Data      []DataEntry
}

// Result reports what the seed pass produced, for idempotent-rerun checks.
type Result struct {
	AccountID      string
	SparkGroupID   string
	MetaSchemaID   string
	SchemaIDs      map[string]string // key -> co-id
	CreatedDataIDs []string
}

// createdDataEntry remembers one data item's co-id and owning schema so a
// later reseed can tell it apart from an item the new request no longer
// lists and hard-delete it.
type createdDataEntry struct {
	ID       string
	SchemaID string
}

// Seeder bootstraps the account graph. The bootstrap singletons (spark
// group, account, meta-schema, schema/data registries) are created once,
// on the first Seed call, and cached on the Seeder; every later Seed call
// against the same Seeder reuses them instead of minting a fresh graph,
// which is what makes repeated Seed calls idempotent. There is no stable
// id to rediscover this graph from a fresh process — CreateCoValue always
// mints a random id — so idempotency is scoped to one Seeder's lifetime,
// not to a node's durable storage across process restarts.
type Seeder struct {
	backend  runtime.BackendHandle
	indexes  *covalue.MapContent
	schemaIx *schemaindex.Index

	seeded        bool
	groupCore     *covalue.Core
	accountCore   *covalue.Core
	account       *covalue.AccountContent
	metaCore      *covalue.Core
	schematas     *covalue.MapContent
	schematasCore *covalue.Core
	indexesCore   *covalue.Core
	osCore        *covalue.Core
	sparkCore     *covalue.Core
	sparksCore    *covalue.Core
	registriesCore *covalue.Core

	createdData map[string]createdDataEntry // dedup key -> (co-id, schema)

	Metrics *telemetry.SeederMetrics
}

// SetMetrics attaches seeder run telemetry. Nil is safe and disables
// recording.
func (s *Seeder) SetMetrics(m *telemetry.SeederMetrics) {
	s.Metrics = m
}

// New constructs a Seeder bound to backend. indexes is the spark's
// `os.indexes` map content (created fresh on first seed).
func New(backend runtime.BackendHandle, indexes *covalue.MapContent, ownerGroupID string) *Seeder {
	return &Seeder{
		backend:     backend,
		indexes:     indexes,
		schemaIx:    schemaindex.New(backend, indexes, ownerGroupID),
		createdData: make(map[string]createdDataEntry),
	}
}

// Seed runs the bootstrap pipeline. It is idempotent: rerunning with the
// same Request produces the same registry contents and schema index
// memberships as a single run, and a request that drops a previously
// declared schema or data entry hard-deletes it (clears its keys and
// removes its id from the schema index).
func (s *Seeder) Seed(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := s.seedInner(ctx, req)
	if s.Metrics != nil {
		schemaCount, dataCount := 0, 0
		if result != nil {
			schemaCount, dataCount = len(result.SchemaIDs), len(result.CreatedDataIDs)
		}
		s.Metrics.RecordRun(ctx, float64(time.Since(start).Milliseconds()), schemaCount, dataCount)
	}
	return result, err
}

func (s *Seeder) seedInner(ctx context.Context, req Request) (*Result, error) {
	result := &Result{SchemaIDs: make(map[string]string)}

	if !s.seeded {
		if err := s.bootstrap(ctx, req.SparkName); err != nil {
			return nil, err
		}
	}
	result.SparkGroupID = s.groupCore.ID
	result.AccountID = s.accountCore.ID
	result.MetaSchemaID = s.metaCore.ID
	s.backend.SetAccount(s.accountCore)

	order, err := schemaOrder(req.Schemas)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]SchemaSpec, len(req.Schemas))
	for _, spec := range req.Schemas {
		byKey[spec.Key] = spec
	}

	c := crud.New(s.backend, nil, func(schemaID string) *schemaindex.Index { return s.schemaIx }, func(context.Context) (string, error) { return s.groupCore.ID, nil })

	wantedSchemaKeys := map[string]bool{"meta": true}

	for _, key := range order {
		wantedSchemaKeys[key] = true
		spec := byKey[key]
		regKey := s.regKey(req.SparkName, key)
		if existing, ok := s.schematas.Get(regKey); ok {
			result.SchemaIDs[key] = existing.(string)
			continue
		}

		content := covalue.NewMapContent()
		for k, v := range spec.Document {
			content.Set(k, v)
		}
		schemaCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: s.metaCore.ID}, content)
		if err != nil {
			return nil, errs.New(errs.Transient, "seeder.Seed", fmt.Errorf("create schema %s: %w", key, err))
		}
		s.schematas.Set(regKey, schemaCore.ID)
		result.SchemaIDs[key] = schemaCore.ID
	}

	// Configs not already covered by a declared schema get an inferred one.
	var needsInference []string
	for key := range req.Configs {
		wantedSchemaKeys[key] = true
		regKey := s.regKey(req.SparkName, key)
		if _, ok := s.schematas.Get(regKey); !ok {
			needsInference = append(needsInference, key)
		}
	}
	if len(needsInference) > 0 {
		inferred, err := inference.InferMany(req.Configs, needsInference)
		if err != nil {
			return nil, errs.New(errs.Transient, "seeder.Seed", err)
		}
		for _, inf := range inferred {
			content := covalue.NewMapContent()
			content.Set("inferred", true)
			content.Set("document", inf.SchemaJSON)
			schemaCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: s.metaCore.ID}, content)
			if err != nil {
				return nil, errs.New(errs.Transient, "seeder.Seed", err)
			}
			s.schematas.Set(s.regKey(req.SparkName, inf.Key), schemaCore.ID)
			result.SchemaIDs[inf.Key] = schemaCore.ID
			wantedSchemaKeys[inf.Key] = true
		}
	}

	if err := s.cleanupSchemas(ctx, req.SparkName, wantedSchemaKeys); err != nil {
		return nil, err
	}
	if err := s.backend.Persist(ctx, s.schematasCore); err != nil {
		return nil, errs.New(errs.Transient, "seeder.Seed", err)
	}
	if err := s.backend.Persist(ctx, s.indexesCore); err != nil {
		return nil, errs.New(errs.Transient, "seeder.Seed", err)
	}

	// Rehydrate data. create() already appends each new item to its schema
	// index, so no separate reindex pass is needed here. An item already
	// created for the same (schema, payload) pair on a prior Seed call is
	// reused rather than duplicated.
	wantedData := make(map[string]bool, len(req.Data))
	for _, entry := range req.Data {
		schemaID, ok := result.SchemaIDs[entry.SchemaKey]
		if !ok {
			continue
		}
		dataKey, err := dataDedupKey(entry)
		if err != nil {
			return nil, errs.New(errs.Structural, "seeder.Seed", fmt.Errorf("data for %s: %w", entry.SchemaKey, err))
		}
		wantedData[dataKey] = true

		if existing, ok := s.createdData[dataKey]; ok {
			result.CreatedDataIDs = append(result.CreatedDataIDs, existing.ID)
			continue
		}

		created, err := c.Do(ctx, crud.Request{Op: crud.OpCreate, Schema: schemaID, Data: entry.Payload})
		if err != nil {
			return nil, errs.New(errs.Transient, "seeder.Seed", fmt.Errorf("create data for %s: %w", entry.SchemaKey, err))
		}
		flat, ok := created.(extractor.Flat)
		if !ok {
			return nil, errs.New(errs.Structural, "seeder.Seed", fmt.Errorf("create data for %s: unexpected result type", entry.SchemaKey))
		}
		s.createdData[dataKey] = createdDataEntry{ID: flat.ID, SchemaID: schemaID}
		result.CreatedDataIDs = append(result.CreatedDataIDs, flat.ID)
	}

	if err := s.cleanupData(ctx, wantedData); err != nil {
		return nil, err
	}

	return result, nil
}

// bootstrap creates the spark group, account, meta-schema, and the
// schematas/indexes/os/spark-record/sparks/registries chain exactly once,
// caching every core on s so later Seed calls reuse them.
func (s *Seeder) bootstrap(ctx context.Context, sparkName string) error {
	_, groupCore, err := s.ensureGroup(ctx)
	if err != nil {
		return err
	}
	s.groupCore = groupCore
	s.schemaIx = schemaindex.New(s.backend, s.indexes, groupCore.ID)

	account, accountCore, err := s.ensureAccount(ctx, groupCore.ID)
	if err != nil {
		return err
	}
	s.account = account
	s.accountCore = accountCore

	metaCore, err := s.ensureMetaSchema(ctx)
	if err != nil {
		return err
	}
	s.metaCore = metaCore

	s.schematas = covalue.NewMapContent()
	s.schematas.Set(s.regKey(sparkName, "meta"), metaCore.ID)

	indexesCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, s.indexes)
	if err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}
	s.indexesCore = indexesCore

	schematasCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, s.schematas)
	if err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}
	s.schematasCore = schematasCore

	osContent := covalue.NewMapContent()
	osContent.Set("schematas", schematasCore.ID)
	osContent.Set("indexes", indexesCore.ID)
	osCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, osContent)
	if err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}
	s.osCore = osCore

	sparkRecord := covalue.NewMapContent()
	sparkRecord.Set("name", sparkName)
	sparkRecord.Set("group", groupCore.ID)
	sparkRecord.Set("os", osCore.ID)
	sparkCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, sparkRecord)
	if err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}
	s.sparkCore = sparkCore

	sparksMap := covalue.NewMapContent()
	sparksMap.Set(sparkName, sparkCore.ID)
	sparksCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, sparksMap)
	if err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}
	s.sparksCore = sparksCore

	registries := covalue.NewMapContent()
	registries.Set("sparks", sparksCore.ID)
	registriesCore, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, registries)
	if err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}
	s.registriesCore = registriesCore

	s.account.Set(covalue.AccountKeyRegistries, registriesCore.ID)
	if err := s.backend.Persist(ctx, s.accountCore); err != nil {
		return errs.New(errs.Transient, "seeder.bootstrap", err)
	}

	s.seeded = true
	return nil
}

func (s *Seeder) regKey(sparkName, key string) string {
	return "°" + sparkName + "/schema/" + key
}

// cleanupSchemas hard-deletes every schema this spark previously
// registered that the current request no longer declares, per kind
// (dropping a schema from the request is the reseed path's "remove" verb).
func (s *Seeder) cleanupSchemas(ctx context.Context, sparkName string, wanted map[string]bool) error {
	prefix := s.regKey(sparkName, "")
	for _, regKey := range s.schematas.Keys() {
		if !strings.HasPrefix(regKey, prefix) {
			continue
		}
		key := strings.TrimPrefix(regKey, prefix)
		if wanted[key] {
			continue
		}
		raw, ok := s.schematas.Get(regKey)
		if !ok {
			continue
		}
		schemaID, ok := raw.(string)
		if !ok {
			continue
		}
		if err := s.hardDelete(ctx, schemaID); err != nil {
			return err
		}
		s.schematas.Delete(regKey)
	}
	return nil
}

// cleanupData hard-deletes and unindexes every data item this Seeder
// previously created that the current request no longer lists.
func (s *Seeder) cleanupData(ctx context.Context, wanted map[string]bool) error {
	for key, entry := range s.createdData {
		if wanted[key] {
			continue
		}
		if err := s.hardDelete(ctx, entry.ID); err != nil {
			return err
		}
		_ = s.schemaIx.Remove(ctx, entry.SchemaID, entry.ID)
		delete(s.createdData, key)
	}
	return nil
}

// hardDelete clears every key of id's map content and persists the empty
// result, the terminal state reserved for the reseed path.
func (s *Seeder) hardDelete(ctx context.Context, id string) error {
	core := s.backend.GetCoValue(id)
	if core == nil {
		loaded, err := s.backend.LoadCoValueCore(ctx, id)
		if err != nil {
			return errs.New(errs.Transient, "seeder.hardDelete", err)
		}
		core = loaded
	}
	if core == nil {
		return nil
	}
	m, ok := core.AsMap()
	if !ok {
		return nil
	}
	for _, k := range m.Keys() {
		m.Delete(k)
	}
	if err := s.backend.Persist(ctx, core); err != nil {
		return errs.New(errs.Transient, "seeder.hardDelete", err)
	}
	return nil
}

// dataDedupKey identifies a data entry across Seed calls by its schema key
// plus the canonical JSON encoding of its payload (Go's encoding/json
// sorts map keys, making the encoding stable for equal payloads).
func dataDedupKey(entry DataEntry) (string, error) {
	b, err := json.Marshal(entry.Payload)
	if err != nil {
		return "", err
	}
	return entry.SchemaKey + "|" + string(b), nil
}

func (s *Seeder) ensureGroup(ctx context.Context) (*covalue.GroupContent, *covalue.Core, error) {
	core, err := s.backend.CreateCoValue(ctx, covalue.VariantGroup, covalue.Header{RulesetType: "group"}, covalue.NewGroupContent())
	if err != nil {
		return nil, nil, errs.New(errs.Transient, "seeder.ensureGroup", err)
	}
	g, _ := core.AsGroup()
	return g, core, nil
}

func (s *Seeder) ensureAccount(ctx context.Context, groupID string) (*covalue.AccountContent, *covalue.Core, error) {
	content := covalue.NewAccountContent()
	content.Set(covalue.AccountKeyProfile, map[string]any{"group": groupID})
	core, err := s.backend.CreateCoValue(ctx, covalue.VariantAccount, covalue.Header{}, content)
	if err != nil {
		return nil, nil, errs.New(errs.Transient, "seeder.ensureAccount", err)
	}
	a, _ := core.AsAccount()
	return a, core, nil
}

func (s *Seeder) ensureMetaSchema(ctx context.Context) (*covalue.Core, error) {
	content := covalue.NewMapContent()
	content.Set("cotype", "comap")
	content.Set("title", "GenesisSchema")
	core, err := s.backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, content)
	if err != nil {
		return nil, errs.New(errs.Transient, "seeder.ensureMetaSchema", err)
	}
	return core, nil
}

func schemaOrder(specs []SchemaSpec) ([]string, error) {
	keys := make([]string, len(specs))
	deps := make(map[string][]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
		deps[s.Key] = s.DependsOn
	}
	return topologicalOrder(keys, deps)
}
