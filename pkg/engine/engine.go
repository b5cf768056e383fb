// Package engine coordinates the moderation pipeline: route, invoke,
// aggregate, audit. It is the façade the HTTP layer calls into.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"modex-hq/aegis/pkg/audit"
	"modex-hq/aegis/pkg/audit/recorder"
	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/ensemble"
	"modex-hq/aegis/pkg/routing"
	"modex-hq/aegis/pkg/telemetry/metrics"
	"modex-hq/aegis/pkg/telemetry/tracing"
)

// Engine runs the moderation pipeline for admitted requests. Once a request
// is admitted the engine always produces a decision: backend failures
// degrade the decision to REVIEW_REQUIRED rather than erroring.
type Engine struct {
	router      *routing.Router
	invoker     *ensemble.Invoker
	interpreter *ensemble.Interpreter
	recorder    *recorder.Recorder // nil when auditing is disabled
	metrics     *metrics.Collector // nil when metrics are disabled
	tracer      *tracing.Tracer    // nil when tracing is disabled
	logger      *slog.Logger
}

// New creates an engine. Recorder, metrics collector, and tracer are
// optional; pass nil to disable them.
func New(router *routing.Router, invoker *ensemble.Invoker, interpreter *ensemble.Interpreter,
	rec *recorder.Recorder, collector *metrics.Collector, tracer *tracing.Tracer) *Engine {
	return &Engine{
		router:      router,
		invoker:     invoker,
		interpreter: interpreter,
		recorder:    rec,
		metrics:     collector,
		tracer:      tracer,
		logger:      slog.Default().With("component", "engine"),
	}
}

// Router returns the routing layer, used by the admin endpoints.
func (e *Engine) Router() *routing.Router {
	return e.router
}

// ItemResult is one item's result within a batch-moderation request.
// Exactly one of Decision or Err is meaningful.
type ItemResult struct {
	// Index is the item's position in the submitted batch.
	Index int

	// Filename is the client-supplied file name.
	Filename string

	// Decision is the item's moderation decision, when moderation ran.
	Decision ensemble.Decision

	// Err is set when the item was rejected before moderation
	// (validation failure) and no decision exists.
	Err error
}

// Moderate runs the full pipeline for one admitted request. The only errors
// it returns are policy errors; everything downstream of routing degrades
// into the decision itself.
func (e *Engine) Moderate(ctx context.Context, req backend.Request, clientKey string) (ensemble.Decision, error) {
	start := time.Now()

	ctx, endSpan := e.startSpan(ctx, req)
	defer endSpan()

	assignments, policyVersion, err := e.route(req.ID, clientKey)
	if err != nil {
		return ensemble.Decision{}, err
	}

	outcomes := e.invoker.Invoke(ctx, req, assignments)
	decision := e.interpreter.Aggregate(req.ID, outcomes)
	decision.ProcessingTime = time.Since(start)

	e.observe(req, decision, outcomes, policyVersion)
	return decision, nil
}

// ModerateBatch runs one independent pipeline per item concurrently. An
// individual item's failure degrades only that item's result; the batch as
// a whole always completes.
func (e *Engine) ModerateBatch(ctx context.Context, reqs []backend.Request, clientKey string) []ItemResult {
	results := make([]ItemResult, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req backend.Request) {
			defer wg.Done()

			decision, err := e.Moderate(ctx, req, clientKey)
			results[i] = ItemResult{
				Index:    i,
				Filename: req.Filename,
				Decision: decision,
				Err:      err,
			}
		}(i, req)
	}

	wg.Wait()
	return results
}

// route selects a backend version for every kind under one policy snapshot.
func (e *Engine) route(requestID, clientKey string) (map[backend.Kind]routing.Assignment, int64, error) {
	assignments, err := e.router.SelectAll(requestID, clientKey)
	if err != nil {
		return nil, 0, &PolicyError{Cause: err}
	}

	var policyVersion int64
	for _, kind := range backend.Kinds() {
		assignment := assignments[kind]
		policyVersion = assignment.PolicyVersion

		e.logger.Debug("routing decision",
			"request_id", requestID,
			"kind", string(kind),
			"version", assignment.Version,
			"policy_version", assignment.PolicyVersion,
			"sticky", assignment.Sticky,
		)
		if e.metrics != nil {
			source := metrics.SourceDraw
			if assignment.Sticky {
				source = metrics.SourceSticky
			}
			e.metrics.Routing().RecordSelection(string(kind), assignment.Version, source)
		}
	}

	return assignments, policyVersion, nil
}

// observe emits audit, metrics, and log events for one decision.
func (e *Engine) observe(req backend.Request, decision ensemble.Decision, outcomes map[backend.Kind]backend.Outcome, policyVersion int64) {
	if e.recorder != nil {
		if !e.recorder.Record(audit.FromDecision(decision, policyVersion)) && e.metrics != nil {
			e.metrics.Request().RecordAuditDrop()
		}
	}

	if e.metrics != nil {
		for _, out := range outcomes {
			e.metrics.Backend().RecordCall(string(out.Kind), out.Version, string(out.Status), out.Latency)
		}
	}

	e.logger.Info("moderation decision",
		"request_id", req.ID,
		"verdict", string(decision.Verdict),
		"confidence", decision.Confidence,
		"category", decision.Category,
		"policy_version", policyVersion,
		"processing_time_ms", decision.ProcessingTime.Milliseconds(),
	)
}

// startSpan opens the request span when tracing is enabled.
func (e *Engine) startSpan(ctx context.Context, req backend.Request) (context.Context, func()) {
	if e.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := e.tracer.Start(ctx, "moderate", tracing.RequestAttributes(req.ID, len(req.Image)))
	return ctx, func() { span.End() }
}
