// Package syncvalidation wraps the runtime's "handle incoming content"
// entry point and runs before any merge. Decisions are expressed as a
// typed Decision = Allow | RejectWith(...) rather than exceptions, the
// same "validate before accepting" gate run synchronously ahead of a
// write.
package syncvalidation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/extractor"
	"github.com/maia-os/covalue-core/internal/loader"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/telemetry"
	"github.com/maia-os/covalue-core/internal/validation"
)

// DecisionKind is Allow or RejectWith.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Reject
)

// Decision is the outcome of one validation pass.
type Decision struct {
	Kind   DecisionKind
	Reason errs.Kind
	Detail string
}

func allow() Decision { return Decision{Kind: Allow} }

func reject(kind errs.Kind, detail string) Decision {
	return Decision{Kind: Reject, Reason: kind, Detail: detail}
}

// IsAllowed reports whether d permits the merge to proceed.
func (d Decision) IsAllowed() bool { return d.Kind == Allow }

// SchemaArrivalTimeout bounds how long the hook waits for a not-yet-local
// schema to arrive before rejecting.
const SchemaArrivalTimeout = 5 * time.Second

// IncomingMessage is the addressed payload the hook inspects, reduced to
// the fields the decision depends on.
type IncomingMessage struct {
	TargetID string
	Header   covalue.Header
}

// Hook validates one incoming message before the runtime merges it.
type Hook struct {
	Backend   runtime.BackendHandle
	Validator *validation.Validator
	Metrics   *telemetry.SyncValidationMetrics
}

// New constructs a Hook.
func New(backend runtime.BackendHandle, validator *validation.Validator) *Hook {
	return &Hook{Backend: backend, Validator: validator}
}

// Evaluate runs the full decision chain and records its outcome.
func (h *Hook) Evaluate(ctx context.Context, msg IncomingMessage) Decision {
	decision := h.evaluate(ctx, msg)
	if h.Metrics != nil {
		reason := ""
		if !decision.IsAllowed() {
			reason = string(decision.Reason)
		}
		h.Metrics.RecordDecision(ctx, decision.IsAllowed(), reason)
	}
	return decision
}

func (h *Hook) evaluate(ctx context.Context, msg IncomingMessage) Decision {
	// Step 1: groups, accounts and profiles are allowed unconditionally.
	if msg.Header.IsGroupRuleset() {
		return allow()
	}
	if isAccountOrProfile(msg.Header) {
		return allow()
	}

	// Step 2: missing $schema is rejected outright.
	schema := msg.Header.Schema
	if schema == "" {
		return reject(errs.SchemaMissing, "missing $schema on "+msg.TargetID)
	}

	// Step 3: reserved strings bypass validation; anything else must be a co-id.
	if covalue.ReservedSchema(schema) {
		return allow()
	}
	if !covalue.ValidID(schema) {
		return reject(errs.SchemaMissing, "non-co-id $schema "+schema)
	}

	// Step 4: resolve the schema, bounded wait.
	schemaCore, err := loader.Ensure(ctx, h.Backend, schema, loader.Options{WaitForAvailable: true, Timeout: SchemaArrivalTimeout})
	if err != nil {
		return reject(errs.Timeout, "schema "+schema+" did not arrive in time")
	}
	if schemaCore == nil {
		return reject(errs.SchemaMissing, "schema "+schema+" not found")
	}

	// Step 5: extract current post-state of the target and validate.
	targetCore := h.Backend.GetCoValue(msg.TargetID)
	if targetCore == nil {
		// Brand-new remote CoValue with no materialised content yet: allow
		// through, schema availability alone has been established.
		return allow()
	}

	schemaMap, ok := schemaCore.AsMap()
	if !ok {
		return reject(errs.SchemaMissing, "schema "+schema+" has no map content")
	}
	schemaJSON, err := json.Marshal(schemaMap.Snapshot())
	if err != nil {
		return reject(errs.Validation, "schema "+schema+" could not be serialised")
	}

	flat := extractor.ExtractFlat(targetCore, extractor.HintNone, nil)
	result := h.Validator.Validate(string(schemaJSON), flatToJSONValue(flat))
	if result.Status != "valid" {
		return reject(errs.Validation, result.Detail)
	}
	return allow()
}

func isAccountOrProfile(h covalue.Header) bool {
	if h.Meta == nil {
		return false
	}
	if v, ok := h.Meta["isProfile"].(bool); ok && v {
		return true
	}
	if v, ok := h.Meta["isAccount"].(bool); ok && v {
		return true
	}
	return false
}

func flatToJSONValue(flat extractor.Flat) any {
	if flat.Fields != nil {
		return flat.Fields
	}
	if flat.Items != nil {
		return flat.Items
	}
	return map[string]any{}
}
