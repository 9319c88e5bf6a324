//go:build wasm

// This file only builds and runs under GOOS=wasip1 GOARCH=wasm, the same
// target the real pipeline guests ship as (e.g. via `go test` with a
// wasm exec wrapper such as wasmtime's go_wasip1_wasm_exec). It exercises
// RunMap/RunReduce's decode/run/encode loop directly; report_panic is
// only reached on the error paths, which are exercised separately in
// internal/pipeline (plain Go, no wasm target needed) for the composition
// logic RunMap/RunReduce delegate to.
package guestrt

import (
	"testing"

	"github.com/oriys/distilled/internal/bincode"
	"github.com/oriys/distilled/internal/pipeline"
)

func TestRunMap_DecodesRunsEncodesBatch(t *testing.T) {
	chain := pipeline.Then[uint32, uint32, uint32](pipeline.Start[uint32](), func(n uint32) (uint32, error) {
		return n * 2, nil
	})

	w := bincode.NewWriter(12)
	bincode.Uint32.MarshalBin(w, 3)
	bincode.Uint32.MarshalBin(w, 4)
	bincode.Uint32.MarshalBin(w, 5)
	payload := w.Bytes()

	buf := ensureIn(uint32(len(payload)))
	copy(buf, payload)

	encoded := RunMap[uint32, uint32](chain, bincode.Uint32, bincode.Uint32, uint32(len(payload)), 3)
	offset := uint32(encoded >> 32)
	length := uint32(encoded)
	if offset != bufferPointer(outBuf) {
		t.Fatalf("offset %d does not point at outBuf (%d)", offset, bufferPointer(outBuf))
	}
	if int(length) != len(outBuf) {
		t.Fatalf("length %d does not match outBuf length %d", length, len(outBuf))
	}

	r := bincode.NewReader(outBuf)
	for i, want := range []uint32{6, 8, 10} {
		got, err := bincode.Uint32.UnmarshalBin(r)
		if err != nil {
			t.Fatalf("decoding result %d: %v", i, err)
		}
		if got != want {
			t.Errorf("result %d = %d, want %d", i, got, want)
		}
	}
	if r.Remaining() != 0 {
		t.Errorf("expected output fully consumed, %d bytes left", r.Remaining())
	}
}

func TestRunReduce_FoldsToSingleValue(t *testing.T) {
	chain := pipeline.Start[uint32]()
	sum := func(a, b uint32) (uint32, error) { return a + b, nil }

	w := bincode.NewWriter(16)
	bincode.Uint32.MarshalBin(w, 0) // fold seed
	bincode.Uint32.MarshalBin(w, 1)
	bincode.Uint32.MarshalBin(w, 2)
	bincode.Uint32.MarshalBin(w, 3)
	payload := w.Bytes()

	buf := ensureIn(uint32(len(payload)))
	copy(buf, payload)

	encoded := RunReduce[uint32, uint32](chain, bincode.Uint32, bincode.Uint32, sum, uint32(len(payload)), 3)
	offset := uint32(encoded >> 32)
	length := uint32(encoded)
	if offset != bufferPointer(outBuf) || int(length) != len(outBuf) {
		t.Fatalf("encoded (offset,length) = (%d,%d) does not match outBuf", offset, length)
	}
	r := bincode.NewReader(outBuf)
	got, err := bincode.Uint32.UnmarshalBin(r)
	if err != nil {
		t.Fatalf("decoding folded result: %v", err)
	}
	if got != 6 {
		t.Errorf("folded result = %d, want 6", got)
	}
}
