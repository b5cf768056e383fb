package ensemble

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/batch"
	"modex-hq/aegis/pkg/routing"
)

// Invoker fans a request out to its assigned backend versions. Batch-capable
// backends go through the batch assembler; the rest are invoked directly.
// Total in-flight backend calls are bounded by a weighted semaphore.
//
// Invoke returns only when every call has a terminal outcome. A slow or dead
// backend produces a Timeout outcome for its kind; it never blocks the other
// kinds' results.
type Invoker struct {
	registry  *backend.Registry
	assembler *batch.Assembler
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// NewInvoker creates an invoker bounded to maxConcurrent in-flight calls.
func NewInvoker(registry *backend.Registry, assembler *batch.Assembler, maxConcurrent int64) *Invoker {
	return &Invoker{
		registry:  registry,
		assembler: assembler,
		sem:       semaphore.NewWeighted(maxConcurrent),
		logger:    slog.Default().With("component", "ensemble.invoker"),
	}
}

// Invoke dispatches one call per assignment concurrently and collects the
// outcomes. The context bounds the whole fan-out; expiry converts pending
// calls to Timeout outcomes.
func (inv *Invoker) Invoke(ctx context.Context, req backend.Request, assignments map[backend.Kind]routing.Assignment) map[backend.Kind]backend.Outcome {
	var (
		mu       sync.Mutex
		outcomes = make(map[backend.Kind]backend.Outcome, len(assignments))
		wg       sync.WaitGroup
	)

	for kind, assignment := range assignments {
		wg.Add(1)
		go func(kind backend.Kind, assignment routing.Assignment) {
			defer wg.Done()
			out := inv.invokeOne(ctx, req, kind, assignment.Version)
			mu.Lock()
			outcomes[kind] = out
			mu.Unlock()
		}(kind, assignment)
	}

	wg.Wait()
	return outcomes
}

// invokeOne performs a single backend call, always returning a terminal
// outcome.
func (inv *Invoker) invokeOne(ctx context.Context, req backend.Request, kind backend.Kind, version string) backend.Outcome {
	start := time.Now()

	if err := inv.sem.Acquire(ctx, 1); err != nil {
		// Deadline expired while queued for admission.
		return backend.Timeout(kind, version, err, time.Since(start))
	}
	defer inv.sem.Release(1)

	client, err := inv.registry.Client(kind, version)
	if err != nil {
		return backend.Failure(kind, version, err, time.Since(start))
	}

	call := backend.Call{
		RequestID: req.ID,
		Kind:      kind,
		Version:   version,
		Image:     req.Image,
	}

	if client.SupportsBatch() && inv.assembler != nil {
		handle := inv.assembler.Submit(ctx, call)
		return handle.Wait(ctx, kind, version)
	}

	return client.Invoke(ctx, call)
}

// RegistryDispatcher routes sealed batches to the matching backend client.
// It is the production batch.Dispatcher.
type RegistryDispatcher struct {
	registry *backend.Registry
}

// NewRegistryDispatcher creates a dispatcher over the registry.
func NewRegistryDispatcher(registry *backend.Registry) *RegistryDispatcher {
	return &RegistryDispatcher{registry: registry}
}

// Dispatch sends a sealed batch to its backend. A single-call batch uses the
// plain invoke path to spare the backend the batch envelope.
func (d *RegistryDispatcher) Dispatch(ctx context.Context, kind backend.Kind, version string, calls []backend.Call) []backend.Outcome {
	client, err := d.registry.Client(kind, version)
	if err != nil {
		outcomes := make([]backend.Outcome, len(calls))
		for i := range outcomes {
			outcomes[i] = backend.Failure(kind, version, err, 0)
		}
		return outcomes
	}

	if len(calls) == 1 {
		return []backend.Outcome{client.Invoke(ctx, calls[0])}
	}
	return client.InvokeBatch(ctx, calls)
}
