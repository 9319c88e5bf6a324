package sandbox

import (
	"context"
	"sync"
	"testing"
)

func TestNewBridge_InvalidModuleFails(t *testing.T) {
	ctx := context.Background()
	_, err := NewBridge(ctx, []byte("not a wasm module"), nil)
	if err == nil {
		t.Fatal("expected an error compiling garbage bytes, got nil")
	}
}

func TestNewBridge_ConcurrentCompileSharesFailure(t *testing.T) {
	ctx := context.Background()
	garbage := []byte("still not a wasm module, but a stable one")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, errs[i] = NewBridge(ctx, garbage, nil)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			t.Errorf("goroutine %d: expected compile error, got nil", i)
		}
	}
}

func TestInstance_ResolveReturnsCachedCallable(t *testing.T) {
	inst := &Instance{callables: make(map[string]*Callable)}
	// mod is nil here, so only the cache-hit path can run: a cache miss
	// (and with it the missing-export path) needs a live api.Module.
	inst.callables["entry"] = &Callable{}
	c, err := inst.Resolve("get_in", "entry")
	if err != nil {
		t.Fatalf("unexpected error on cache hit: %v", err)
	}
	if c != inst.callables["entry"] {
		t.Fatal("Resolve returned a different Callable than the cached one")
	}
}
