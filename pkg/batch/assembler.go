package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
)

// Dispatcher sends a sealed batch to the wire and returns one terminal
// outcome per call, in input order.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind backend.Kind, version string, calls []backend.Call) []backend.Outcome
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, kind backend.Kind, version string, calls []backend.Call) []backend.Outcome

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, kind backend.Kind, version string, calls []backend.Call) []backend.Outcome {
	return f(ctx, kind, version, calls)
}

// Handle is a submitter's claim on one slot in a batch. Exactly one outcome
// is delivered per handle.
type Handle struct {
	ch chan backend.Outcome
}

// Outcome returns the channel the terminal outcome is delivered on.
func (h *Handle) Outcome() <-chan backend.Outcome {
	return h.ch
}

// Wait blocks until the outcome arrives or the context is cancelled. On
// cancellation it returns a timeout outcome; the batch itself still runs to
// completion in the background.
func (h *Handle) Wait(ctx context.Context, kind backend.Kind, version string) backend.Outcome {
	select {
	case out := <-h.ch:
		return out
	case <-ctx.Done():
		return backend.Timeout(kind, version, ctx.Err(), 0)
	}
}

// slot pairs a call with its handle inside a window.
type slot struct {
	call   backend.Call
	handle *Handle
}

// window accumulates slots for one (kind, version) pair until sealed.
type window struct {
	kind     backend.Kind
	version  string
	openedAt time.Time
	slots    []slot
	timer    *time.Timer
}

// Assembler coalesces calls into windows, one open window per
// (kind, version) pair. Capacity and max-wait come from each kind's batch
// configuration.
type Assembler struct {
	dispatcher Dispatcher
	settings   map[backend.Kind]config.BatchConfig
	logger     *slog.Logger

	// OnSeal, when set, observes every sealed window. trigger is one of
	// "capacity", "timer", or "flush". Set before the first Submit.
	OnSeal func(kind backend.Kind, version, trigger string, size int, age time.Duration)

	mu      sync.Mutex
	windows map[string]*window
	closed  bool

	wg sync.WaitGroup
}

// NewAssembler creates an assembler. settings maps each backend kind to its
// batch window parameters.
func NewAssembler(dispatcher Dispatcher, settings map[backend.Kind]config.BatchConfig) *Assembler {
	return &Assembler{
		dispatcher: dispatcher,
		settings:   settings,
		windows:    make(map[string]*window),
		logger:     slog.Default().With("component", "batch.assembler"),
	}
}

// Submit places a call into the open window for its kind and version,
// opening one if needed, and returns a handle for the outcome. A window
// that reaches capacity seals immediately; otherwise the max-wait timer
// seals it.
func (a *Assembler) Submit(ctx context.Context, call backend.Call) *Handle {
	handle := &Handle{ch: make(chan backend.Outcome, 1)}
	key := string(call.Kind) + "/" + call.Version
	cfg := a.settings[call.Kind]

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		handle.ch <- backend.Failure(call.Kind, call.Version, context.Canceled, 0)
		return handle
	}

	w, ok := a.windows[key]
	if !ok {
		w = &window{
			kind:     call.Kind,
			version:  call.Version,
			openedAt: time.Now(),
			slots:    make([]slot, 0, cfg.Capacity),
		}
		a.windows[key] = w
		// Timer seal path: only fires if the capacity path has not
		// already removed this exact window from the map.
		w.timer = time.AfterFunc(cfg.MaxWait, func() {
			a.sealIfCurrent(key, w)
		})
	}

	w.slots = append(w.slots, slot{call: call, handle: handle})

	if len(w.slots) >= cfg.Capacity {
		// Capacity seal path.
		delete(a.windows, key)
		w.timer.Stop()
		a.mu.Unlock()
		// Dispatch on a fresh context: the batch serves several
		// submitters, so no single caller's cancellation may abort it.
		a.dispatch(context.Background(), w, "capacity")
		return handle
	}

	a.mu.Unlock()
	return handle
}

// sealIfCurrent seals the window from the timer path. If the window has
// already been sealed by capacity (and possibly replaced by a fresh window
// under the same key), this is a no-op.
func (a *Assembler) sealIfCurrent(key string, w *window) {
	a.mu.Lock()
	if a.windows[key] != w {
		a.mu.Unlock()
		return
	}
	delete(a.windows, key)
	a.mu.Unlock()
	a.dispatch(context.Background(), w, "timer")
}

// dispatch hands a sealed window to the dispatcher and delivers outcomes.
func (a *Assembler) dispatch(ctx context.Context, w *window, trigger string) {
	age := time.Since(w.openedAt)
	if a.OnSeal != nil {
		a.OnSeal(w.kind, w.version, trigger, len(w.slots), age)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		calls := make([]backend.Call, len(w.slots))
		for i, s := range w.slots {
			calls[i] = s.call
		}

		a.logger.Debug("batch sealed",
			"kind", string(w.kind),
			"version", w.version,
			"trigger", trigger,
			"size", len(calls),
			"window_age", age,
		)

		outcomes := a.dispatcher.Dispatch(ctx, w.kind, w.version, calls)
		for i, s := range w.slots {
			if i < len(outcomes) {
				s.handle.ch <- outcomes[i]
				continue
			}
			// Dispatcher contract violation; still resolve the handle.
			s.handle.ch <- backend.Failure(w.kind, w.version, context.Canceled, 0)
		}
	}()
}

// Flush seals every open window immediately. Used on shutdown so no
// submitter is left waiting on a max-wait timer.
func (a *Assembler) Flush() {
	a.mu.Lock()
	pending := make([]*window, 0, len(a.windows))
	for key, w := range a.windows {
		w.timer.Stop()
		delete(a.windows, key)
		pending = append(pending, w)
	}
	a.mu.Unlock()

	for _, w := range pending {
		a.dispatch(context.Background(), w, "flush")
	}
}

// Close flushes open windows, waits for in-flight dispatches, and rejects
// further submissions.
func (a *Assembler) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.Flush()
	a.wg.Wait()
	a.logger.Debug("batch assembler closed")
}

// SettingsFromConfig extracts per-kind batch settings from the backend
// configuration.
func SettingsFromConfig(backends map[string]config.BackendConfig) map[backend.Kind]config.BatchConfig {
	settings := make(map[backend.Kind]config.BatchConfig, len(backends))
	for name, cfg := range backends {
		settings[backend.Kind(name)] = cfg.Batch
	}
	return settings
}
