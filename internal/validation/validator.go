// Package validation validates a CoValue's JSON snapshot against its
// governing JSON-Schema document: a single document (a CoValue's current
// post-state) is validated against the schema CoValue's merged content,
// with compiled schemas cached by raw schema JSON text via an LRU.
package validation

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Result is a validation outcome: a status tag plus a human-readable
// detail on failure.
type Result struct {
	Status string // "valid", "invalid", "error"
	Detail string
}

// Validator compiles and caches JSON schemas, then validates arbitrary
// decoded JSON values against them.
type Validator struct {
	schemaCache *lru.Cache[string, *jsonschema.Schema]
}

// New constructs a validator whose compiled-schema cache holds cacheSize
// entries, evicting least-recently-used schemas beyond that.
func New(cacheSize int) (*Validator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("validation: create schema cache: %w", err)
	}
	return &Validator{schemaCache: cache}, nil
}

// Validate checks value against the JSON-Schema document schemaJSON (the
// merged content of a schema CoValue, re-serialised to text), reusing a
// compiled schema from cache when schemaJSON has been seen before.
func (v *Validator) Validate(schemaJSON string, value any) Result {
	schema, err := v.compileOrGet(schemaJSON)
	if err != nil {
		return Result{Status: "error", Detail: fmt.Sprintf("schema compilation failed: %v", err)}
	}

	if err := schema.Validate(value); err != nil {
		return Result{Status: "invalid", Detail: v.formatValidationError(err)}
	}
	return Result{Status: "valid"}
}

func (v *Validator) compileOrGet(schemaJSON string) (*jsonschema.Schema, error) {
	if cached, ok := v.schemaCache.Get(schemaJSON); ok {
		return cached, nil
	}

	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse schema JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	const resourceURL = "covalue-schema.json"
	if err := compiler.AddResource(resourceURL, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.schemaCache.Add(schemaJSON, schema)
	return schema, nil
}

// formatValidationError builds a structured "failed at '$.path': detail"
// message, truncating excessively long library messages.
func (v *Validator) formatValidationError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	path := "$"
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		path = "$." + strings.Join(parts, ".")
	}

	msg := ve.Error()
	if len(msg) > 200 {
		msg = msg[:200] + "... (truncated)"
	}
	return fmt.Sprintf("validation failed at '%s': %s", path, msg)
}

// InvalidateCache drops schemaJSON from the compiled-schema cache, used
// when a schema CoValue's content changes.
func (v *Validator) InvalidateCache(schemaJSON string) {
	v.schemaCache.Remove(schemaJSON)
}

// CacheSize reports the current number of cached compiled schemas.
func (v *Validator) CacheSize() int {
	return v.schemaCache.Len()
}
