package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/oriys/distilled/internal/bincode"
	"github.com/oriys/distilled/internal/completion"
	"github.com/oriys/distilled/internal/config"
	"github.com/oriys/distilled/internal/pipeline"
)

// These tests drive RunOne/Map/MapReduce's real encode/decode/ordering
// logic through Runner's dispatch test seam, standing in for a real
// worker.Pool backed by a compiled wasm binary: dispatch plays the part
// of "the sandbox," decoding the batch the same way a guest entry would
// and returning an encoded result. With dispatch set, submit bypasses the
// worker pool and the completion.Manager entirely.

type fakeRequest struct {
	getInName     string
	entryName     string
	payload       []byte
	instanceCount uint32
}

func newFakeRunner(handler func(fakeRequest) ([]byte, error)) *Runner {
	completions := completion.NewManager()
	r := &Runner{completions: completions, cfg: config.DefaultWorkerConfig()}
	r.dispatch = func(ctx context.Context, getInName, entryName string, payload []byte, instanceCount uint32) ([]byte, error) {
		return handler(fakeRequest{getInName: getInName, entryName: entryName, payload: payload, instanceCount: instanceCount})
	}
	return r
}

func doubleDescriptor() *pipeline.Descriptor[uint32, uint32] {
	return pipeline.NewMap[uint32, uint32]("double_entry", "double_get_in", bincode.Uint32, bincode.Uint32)
}

func batchHandler(step func(uint32) uint32) func(fakeRequest) ([]byte, error) {
	return func(req fakeRequest) ([]byte, error) {
		rd := bincode.NewReader(req.payload)
		w := bincode.NewWriter(len(req.payload))
		for i := uint32(0); i < req.instanceCount; i++ {
			v, err := bincode.Uint32.UnmarshalBin(rd)
			if err != nil {
				return nil, err
			}
			bincode.Uint32.MarshalBin(w, step(v))
		}
		return w.Bytes(), nil
	}
}

func TestRunOne_RoundTrip(t *testing.T) {
	r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n * 2 }))
	d := doubleDescriptor()

	got, err := RunOne[uint32, uint32](context.Background(), r, d, 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestRunOne_DeserializeFailureOnTruncatedResult(t *testing.T) {
	r := newFakeRunner(func(fakeRequest) ([]byte, error) {
		return []byte{0x01}, nil // too short to decode a uint32
	})
	d := doubleDescriptor()

	if _, err := RunOne[uint32, uint32](context.Background(), r, d, 1); err == nil {
		t.Fatal("expected a decode error for a truncated result")
	}
}

func TestMap_PreservesInputOrderAcrossBatches(t *testing.T) {
	r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n + 100 }))
	r.cfg.BatchSize = 2
	d := doubleDescriptor()

	args := []uint32{1, 2, 3, 4, 5}
	got, err := Map[uint32, uint32](context.Background(), r, d, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint32{101, 102, 103, 104, 105}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMap_BatchSizeInvariance(t *testing.T) {
	args := []uint32{1, 2, 3, 4, 5, 6, 7}
	want := []uint32{2, 4, 6, 8, 10, 12, 14}

	for _, batchSize := range []int{1, 2, 3, 7, 100} {
		r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n * 2 }))
		r.cfg.BatchSize = batchSize
		d := doubleDescriptor()

		got, err := Map[uint32, uint32](context.Background(), r, d, args)
		if err != nil {
			t.Fatalf("batch size %d: unexpected error: %v", batchSize, err)
		}
		if len(got) != len(want) {
			t.Fatalf("batch size %d: got %d results, want %d", batchSize, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("batch size %d, index %d: got %d, want %d", batchSize, i, got[i], want[i])
			}
		}
	}
}

func TestMap_EmptyInputReturnsEmptyOutput(t *testing.T) {
	r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n }))
	d := doubleDescriptor()

	got, err := Map[uint32, uint32](context.Background(), r, d, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestMap_PropagatesWorkerError(t *testing.T) {
	boom := errors.New("boom")
	r := newFakeRunner(func(fakeRequest) ([]byte, error) { return nil, boom })
	d := doubleDescriptor()

	_, err := Map[uint32, uint32](context.Background(), r, d, []uint32{1, 2, 3})
	if !errors.Is(err, boom) {
		t.Fatalf("got error %v, want %v", err, boom)
	}
}

func TestMap_PanicsWhenDescriptorIsMapReduce(t *testing.T) {
	sum := func(a, b uint32) (uint32, error) { return a + b, nil }
	r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n }))
	d := pipeline.NewMapReduce[uint32, uint32]("sum_entry", "sum_get_in", bincode.Uint32, bincode.Uint32, sum, 0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Map to panic when given a map_reduce descriptor")
		}
	}()
	Map[uint32, uint32](context.Background(), r, d, []uint32{1})
}

func TestMapReduce_FoldsAcrossBatchesWithEmbeddedSeed(t *testing.T) {
	sum := func(a, b uint32) (uint32, error) { return a + b, nil }
	handler := func(req fakeRequest) ([]byte, error) {
		rd := bincode.NewReader(req.payload)
		acc, err := bincode.Uint32.UnmarshalBin(rd)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < req.instanceCount; i++ {
			v, err := bincode.Uint32.UnmarshalBin(rd)
			if err != nil {
				return nil, err
			}
			acc += v
		}
		w := bincode.NewWriter(8)
		bincode.Uint32.MarshalBin(w, acc)
		return w.Bytes(), nil
	}

	r := newFakeRunner(handler)
	r.cfg.BatchSize = 2
	d := pipeline.NewMapReduce[uint32, uint32]("sum_entry", "sum_get_in", bincode.Uint32, bincode.Uint32, sum, 0)

	got, err := MapReduce[uint32, uint32](context.Background(), r, d, []uint32{1, 2, 3, 4, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 15 {
		t.Fatalf("got %d, want 15", got)
	}
}

func TestMapReduce_EmptyInputReturnsInit(t *testing.T) {
	sum := func(a, b uint32) (uint32, error) { return a + b, nil }
	r := newFakeRunner(func(fakeRequest) ([]byte, error) {
		t.Fatal("dispatch should not be called for an empty input")
		return nil, nil
	})
	d := pipeline.NewMapReduce[uint32, uint32]("sum_entry", "sum_get_in", bincode.Uint32, bincode.Uint32, sum, 9)

	got, err := MapReduce[uint32, uint32](context.Background(), r, d, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 9 {
		t.Fatalf("got %d, want the configured init value 9", got)
	}
}

func TestMapReduce_PanicsWhenDescriptorIsMapOnly(t *testing.T) {
	r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n }))
	d := doubleDescriptor()

	defer func() {
		if recover() == nil {
			t.Fatal("expected MapReduce to panic when given a map-only descriptor")
		}
	}()
	MapReduce[uint32, uint32](context.Background(), r, d, []uint32{1})
}

func TestRunner_RequestIDsAreMonotonicAndCancellationSafe(t *testing.T) {
	r := newFakeRunner(batchHandler(func(n uint32) uint32 { return n }))

	a := r.completions.NewID()
	b := r.completions.NewID()
	if b <= a {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", a, b)
	}

	h := r.completions.Register(r.completions.NewID())
	if r.completions.LiveCount() == 0 {
		t.Fatal("expected a live completion slot after Register")
	}
	h.Close()
	if r.completions.LiveCount() != 0 {
		t.Fatalf("expected Close to release the slot, got %d live", r.completions.LiveCount())
	}
}
