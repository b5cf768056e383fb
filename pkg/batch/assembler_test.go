package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"modex-hq/aegis/pkg/backend"
	"modex-hq/aegis/pkg/config"
)

// recordingDispatcher captures every dispatched batch and returns one success
// outcome per call.
type recordingDispatcher struct {
	mu      sync.Mutex
	batches [][]backend.Call
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, kind backend.Kind, version string, calls []backend.Call) []backend.Outcome {
	d.mu.Lock()
	d.batches = append(d.batches, calls)
	d.mu.Unlock()

	outcomes := make([]backend.Outcome, len(calls))
	for i, call := range calls {
		outcomes[i] = backend.Success(kind, version, call.RequestID, 1.0, time.Millisecond)
	}
	return outcomes
}

func (d *recordingDispatcher) Batches() [][]backend.Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]backend.Call(nil), d.batches...)
}

func testSettings(capacity int, maxWait time.Duration) map[backend.Kind]config.BatchConfig {
	return map[backend.Kind]config.BatchConfig{
		backend.KindSafety: {Capacity: capacity, MaxWait: maxWait},
	}
}

func submitCall(a *Assembler, id string) *Handle {
	return a.Submit(context.Background(), backend.Call{
		RequestID: id,
		Kind:      backend.KindSafety,
		Version:   "v1",
	})
}

func TestSubmitCapacitySeal(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	a := NewAssembler(dispatcher, testSettings(8, time.Hour))
	defer a.Close()

	handles := make([]*Handle, 8)
	for i := range handles {
		handles[i] = submitCall(a, fmt.Sprintf("req-%d", i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i, h := range handles {
		out := h.Wait(ctx, backend.KindSafety, "v1")
		if out.Status != backend.StatusSuccess {
			t.Fatalf("handle %d: status = %s, want success", i, out.Status)
		}
		if out.Payload != fmt.Sprintf("req-%d", i) {
			t.Errorf("handle %d received outcome %v: outcomes must match submission order", i, out.Payload)
		}
	}

	batches := dispatcher.Batches()
	if len(batches) != 1 {
		t.Fatalf("got %d batches, want exactly 1 (no double seal)", len(batches))
	}
	if len(batches[0]) != 8 {
		t.Errorf("batch size = %d, want 8", len(batches[0]))
	}
}

func TestSubmitTimerSeal(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	a := NewAssembler(dispatcher, testSettings(8, 10*time.Millisecond))
	defer a.Close()

	h := submitCall(a, "req-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out := h.Wait(ctx, backend.KindSafety, "v1")
	if out.Status != backend.StatusSuccess {
		t.Fatalf("status = %s, want success (timer should seal a partial window)", out.Status)
	}

	batches := dispatcher.Batches()
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Errorf("batches = %v, want one single-call batch", batches)
	}
}

func TestSubmitSingleSealUnderRace(t *testing.T) {
	// Tight timer and full capacity together: every call must resolve
	// exactly once no matter which path seals first.
	dispatcher := &recordingDispatcher{}
	a := NewAssembler(dispatcher, testSettings(8, time.Microsecond))
	defer a.Close()

	const total = 64
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := submitCall(a, fmt.Sprintf("req-%d", i))
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			out := h.Wait(ctx, backend.KindSafety, "v1")
			if out.Status != backend.StatusSuccess {
				t.Errorf("call %d: status = %s", i, out.Status)
			}
		}(i)
	}
	wg.Wait()

	dispatched := 0
	for _, batch := range dispatcher.Batches() {
		if len(batch) > 8 {
			t.Errorf("batch of %d exceeds capacity 8", len(batch))
		}
		dispatched += len(batch)
	}
	if dispatched != total {
		t.Errorf("dispatched %d calls, want %d (each call exactly once)", dispatched, total)
	}
}

func TestSubmitSeparateWindowsPerVersion(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	a := NewAssembler(dispatcher, testSettings(8, 5*time.Millisecond))
	defer a.Close()

	h1 := a.Submit(context.Background(), backend.Call{RequestID: "req-1", Kind: backend.KindSafety, Version: "v1"})
	h2 := a.Submit(context.Background(), backend.Call{RequestID: "req-2", Kind: backend.KindSafety, Version: "v2"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if out := h1.Wait(ctx, backend.KindSafety, "v1"); out.Version != "v1" {
		t.Errorf("first call served by %q, want v1", out.Version)
	}
	if out := h2.Wait(ctx, backend.KindSafety, "v2"); out.Version != "v2" {
		t.Errorf("second call served by %q, want v2", out.Version)
	}

	if batches := dispatcher.Batches(); len(batches) != 2 {
		t.Errorf("got %d batches, want 2 (one per version)", len(batches))
	}
}

func TestWaitCancelledCallerGetsTimeout(t *testing.T) {
	// Slow dispatcher: the caller cancels while its batch is in flight.
	block := make(chan struct{})
	dispatcher := DispatcherFunc(func(ctx context.Context, kind backend.Kind, version string, calls []backend.Call) []backend.Outcome {
		<-block
		outcomes := make([]backend.Outcome, len(calls))
		for i := range calls {
			outcomes[i] = backend.Success(kind, version, nil, 1.0, 0)
		}
		return outcomes
	})

	a := NewAssembler(dispatcher, testSettings(8, time.Millisecond))
	defer func() {
		close(block)
		a.Close()
	}()

	h := submitCall(a, "req-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := h.Wait(ctx, backend.KindSafety, "v1")
	if out.Status != backend.StatusTimeout {
		t.Errorf("status = %s, want timeout when the caller's deadline expires", out.Status)
	}
}

func TestFlushSealsOpenWindows(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	a := NewAssembler(dispatcher, testSettings(8, time.Hour))

	h := submitCall(a, "req-1")
	a.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out := h.Wait(ctx, backend.KindSafety, "v1")
	if out.Status != backend.StatusSuccess {
		t.Errorf("status = %s, want success after flush", out.Status)
	}

	a.Close()
}

func TestSubmitAfterCloseFails(t *testing.T) {
	a := NewAssembler(&recordingDispatcher{}, testSettings(8, time.Millisecond))
	a.Close()

	h := submitCall(a, "req-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out := h.Wait(ctx, backend.KindSafety, "v1")
	if out.Status != backend.StatusFailure {
		t.Errorf("status = %s, want failure after close", out.Status)
	}
}

func TestOnSealObservesTrigger(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	a := NewAssembler(dispatcher, testSettings(2, time.Hour))

	var mu sync.Mutex
	var triggers []string
	a.OnSeal = func(kind backend.Kind, version, trigger string, size int, age time.Duration) {
		mu.Lock()
		triggers = append(triggers, fmt.Sprintf("%s:%d", trigger, size))
		mu.Unlock()
	}

	h1 := submitCall(a, "req-1")
	h2 := submitCall(a, "req-2")
	h3 := submitCall(a, "req-3")
	a.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, h := range []*Handle{h1, h2, h3} {
		h.Wait(ctx, backend.KindSafety, "v1")
	}
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(triggers) != 2 || triggers[0] != "capacity:2" || triggers[1] != "flush:1" {
		t.Errorf("seals = %v, want [capacity:2 flush:1]", triggers)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	settings := SettingsFromConfig(map[string]config.BackendConfig{
		"safety": {Batch: config.BatchConfig{Capacity: 32, MaxWait: 500 * time.Microsecond}},
		"ocr":    {Batch: config.BatchConfig{Capacity: 8, MaxWait: 200 * time.Microsecond}},
	})

	if got := settings[backend.KindSafety].Capacity; got != 32 {
		t.Errorf("safety capacity = %d, want 32", got)
	}
	if got := settings[backend.KindOCR].MaxWait; got != 200*time.Microsecond {
		t.Errorf("ocr max wait = %v, want 200µs", got)
	}
}
