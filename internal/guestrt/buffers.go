//go:build wasm

// Package guestrt is the guest-side half of the driver ABI (spec.md §4.B,
// §4.F): shared input/output buffers, the single get_in export every
// pipeline shares, and the generic RunMap/RunReduce drivers each
// pipeline's //go:wasmexport entry wraps around its composed
// pipeline.Chain. It plays the role original_source/distilled-derive
// played at macro-expansion time — but where the Rust macro generated one
// get_in/get_out/wrapper triple per #[distilled] function at compile
// time, Go has no macros, so RunMap/RunReduce are generic functions
// monomorphized once per pipeline's concrete In/Out types, and each
// pipeline supplies its own tiny //go:wasmexport wrapper naming the entry
// the host resolves.
package guestrt

import "unsafe"

var (
	inBuf  []byte
	outBuf []byte
)

// ensureIn grows inBuf to exactly length bytes, reusing its backing array
// when it already has enough capacity so that steady-state batches do not
// allocate on every call.
func ensureIn(length uint32) []byte {
	n := int(length)
	if cap(inBuf) < n {
		inBuf = make([]byte, n)
	} else {
		inBuf = inBuf[:n]
	}
	return inBuf
}

func bufferPointer(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(&b[0])))
}

// GetIn is the one export every pipeline shares (spec.md §4.B: "get_in is
// not pipeline-specific — every pipeline's entry shares the same get_in
// export"). The host calls it with the batch's encoded length and writes
// the batch payload at the returned offset before calling the pipeline's
// entry export.
//
//go:wasmexport get_in
func GetIn(length uint32) uint32 {
	return bufferPointer(ensureIn(length))
}

// encodeOffsetLength packs an (offset, length) pair into the u64 every
// entry export returns, per spec.md §4.B.
func encodeOffsetLength(offset, length uint32) uint64 {
	return uint64(offset)<<32 | uint64(length)
}
