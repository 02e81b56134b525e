package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics holds metric instruments for the runtime store.
type StoreMetrics struct {
	EmissionCounter metric.Int64Counter     // total Persist/CreateCoValue calls
	LoadWaitLatency metric.Float64Histogram // time spent in WaitAvailable
	QueryErrors     metric.Int64Counter     // store-layer errors
}

// NewStoreMetrics creates metric instruments for runtime store telemetry.
func NewStoreMetrics() (*StoreMetrics, error) {
	meter := otel.Meter("covalue-core/runtime")

	emissionCounter, err := meter.Int64Counter(
		"covalue.store.emission.count",
		metric.WithDescription("Total number of CoValue persist/create operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	loadWaitLatency, err := meter.Float64Histogram(
		"covalue.store.load_wait.duration",
		metric.WithDescription("Time spent waiting for a CoValue to become available"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000),
	)
	if err != nil {
		return nil, err
	}

	queryErrors, err := meter.Int64Counter(
		"covalue.store.error.count",
		metric.WithDescription("Total number of runtime store errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &StoreMetrics{
		EmissionCounter: emissionCounter,
		LoadWaitLatency: loadWaitLatency,
		QueryErrors:     queryErrors,
	}, nil
}

// RecordEmission records one store emission (create or persist) for variant.
func (m *StoreMetrics) RecordEmission(ctx context.Context, variant string) {
	m.EmissionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("covalue.variant", variant)))
}

// RecordLoadWait records how long a caller waited for availability.
func (m *StoreMetrics) RecordLoadWait(ctx context.Context, durationMs float64, timedOut bool) {
	m.LoadWaitLatency.Record(ctx, durationMs, metric.WithAttributes(attribute.Bool("timed_out", timedOut)))
}

// RecordError increments the store error counter for op.
func (m *StoreMetrics) RecordError(ctx context.Context, op string) {
	m.QueryErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// CRUDMetrics holds metric instruments for the CRUD dispatcher.
type CRUDMetrics struct {
	OpCounter  metric.Int64Counter     // total Do() calls by op
	OpDuration metric.Float64Histogram // Do() latency by op
	OpErrors   metric.Int64Counter     // Do() failures by op
}

// NewCRUDMetrics creates metric instruments for CRUD telemetry.
func NewCRUDMetrics() (*CRUDMetrics, error) {
	meter := otel.Meter("covalue-core/crud")

	opCounter, err := meter.Int64Counter(
		"covalue.crud.op.count",
		metric.WithDescription("Total number of CRUD dispatcher calls"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	opDuration, err := meter.Float64Histogram(
		"covalue.crud.op.duration",
		metric.WithDescription("CRUD dispatcher call duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter(
		"covalue.crud.op.error.count",
		metric.WithDescription("Total number of failed CRUD dispatcher calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &CRUDMetrics{OpCounter: opCounter, OpDuration: opDuration, OpErrors: opErrors}, nil
}

// RecordOp records one CRUD dispatcher call.
func (m *CRUDMetrics) RecordOp(ctx context.Context, op string, durationMs float64, err error) {
	attrs := metric.WithAttributes(attribute.String(AttrCRUDOperation, op))
	m.OpCounter.Add(ctx, 1, attrs)
	m.OpDuration.Record(ctx, durationMs, attrs)
	if err != nil {
		m.OpErrors.Add(ctx, 1, attrs)
	}
}

// SyncValidationMetrics holds metric instruments for the incoming-message
// validation hook.
type SyncValidationMetrics struct {
	DecisionCounter metric.Int64Counter // allow/reject decisions by reason
}

// NewSyncValidationMetrics creates metric instruments for hook telemetry.
func NewSyncValidationMetrics() (*SyncValidationMetrics, error) {
	meter := otel.Meter("covalue-core/syncvalidation")

	decisionCounter, err := meter.Int64Counter(
		"covalue.syncvalidation.decision.count",
		metric.WithDescription("Total number of SyncValidationHook decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncValidationMetrics{DecisionCounter: decisionCounter}, nil
}

// RecordDecision records one hook decision (allowed, or rejected with reason).
func (m *SyncValidationMetrics) RecordDecision(ctx context.Context, allowed bool, reason string) {
	m.DecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("allowed", allowed),
		attribute.String("reason", reason),
	))
}

// SeederMetrics holds metric instruments for bootstrap runs.
type SeederMetrics struct {
	RunDuration    metric.Float64Histogram
	SchemasCreated metric.Int64Counter
	DataCreated    metric.Int64Counter
}

// NewSeederMetrics creates metric instruments for seeder telemetry.
func NewSeederMetrics() (*SeederMetrics, error) {
	meter := otel.Meter("covalue-core/seeder")

	runDuration, err := meter.Float64Histogram(
		"covalue.seeder.run.duration",
		metric.WithDescription("Seed() run duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	schemasCreated, err := meter.Int64Counter(
		"covalue.seeder.schemas.count",
		metric.WithDescription("Total number of schema CoValues registered (created or reused) by seed runs"),
		metric.WithUnit("{schema}"),
	)
	if err != nil {
		return nil, err
	}

	dataCreated, err := meter.Int64Counter(
		"covalue.seeder.data.count",
		metric.WithDescription("Total number of data CoValues listed (created or reused) by seed runs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SeederMetrics{RunDuration: runDuration, SchemasCreated: schemasCreated, DataCreated: dataCreated}, nil
}

// RecordRun records one seed run's summary counts and duration.
func (m *SeederMetrics) RecordRun(ctx context.Context, durationMs float64, schemaCount, dataCount int) {
	m.RunDuration.Record(ctx, durationMs)
	m.SchemasCreated.Add(ctx, int64(schemaCount))
	m.DataCreated.Add(ctx, int64(dataCount))
}

// Common metric attribute keys.
const (
	AttrCoValueVariant = "covalue.variant"
	AttrCRUDOperation  = "crud.operation"
	AttrDecisionReason = "reason"
)
