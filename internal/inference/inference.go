// Package inference infers a JSON-Schema document from a sample value,
// used by the Seeder for config keys whose schema was not pre-declared
// (data entries with an undeclared schema key are skipped, not inferred).
// It wraps JLugagne/jsonschema-infer: marshal the sample,
// feed it to a fresh generator, take the resulting schema text.
package inference

import (
	"encoding/json"
	"fmt"

	jsonschema "github.com/JLugagne/jsonschema-infer"
)

// Inferred is one sample's generated schema, keyed by whatever identifier
// the caller associates with the sample (a config key, a data field name).
type Inferred struct {
	Key        string
	SchemaJSON string
}

// InferOne generates a schema document for a single sample value.
func InferOne(key string, sample any) (Inferred, error) {
	valueJSON, err := json.Marshal(sample)
	if err != nil {
		return Inferred{}, fmt.Errorf("inference: marshal sample for %s: %w", key, err)
	}

	generator := jsonschema.New()
	if err := generator.AddSample(string(valueJSON)); err != nil {
		return Inferred{}, fmt.Errorf("inference: add sample for %s: %w", key, err)
	}
	schema, err := generator.Generate()
	if err != nil {
		return Inferred{}, fmt.Errorf("inference: generate schema for %s: %w", key, err)
	}
	return Inferred{Key: key, SchemaJSON: string(schema)}, nil
}

// InferMany infers a schema for every (key, sample) in values whose key is
// present in needsSchema.
func InferMany(values map[string]any, needsSchema []string) ([]Inferred, error) {
	want := make(map[string]bool, len(needsSchema))
	for _, k := range needsSchema {
		want[k] = true
	}

	var out []Inferred
	for key, sample := range values {
		if !want[key] {
			continue
		}
		inferred, err := InferOne(key, sample)
		if err != nil {
			return nil, err
		}
		out = append(out, inferred)
	}
	return out, nil
}
