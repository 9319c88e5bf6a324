//go:build wasm

package guestrt

import (
	"fmt"

	"github.com/oriys/distilled/internal/bincode"
	"github.com/oriys/distilled/internal/pipeline"
)

// RunMap decodes instanceCount records from the shared input buffer,
// applies chain to each in order, re-encodes the results in order, and
// returns the (offset, length) of the result batch. It asserts every
// input byte was consumed (spec.md invariant 7: the ABI never silently
// truncates); violating it panics into withPanicCapture.
func RunMap[In, Out any](chain *pipeline.Chain[In, Out], inCodec bincode.Codec[In], outCodec bincode.Codec[Out], paramLen, instanceCount uint32) uint64 {
	return withPanicCapture(func() uint64 {
		r := bincode.NewReader(inBuf[:paramLen])
		w := bincode.NewWriter(int(paramLen))
		for i := uint32(0); i < instanceCount; i++ {
			in, err := inCodec.UnmarshalBin(r)
			if err != nil {
				panic(fmt.Sprintf("guestrt: decoding record %d of %d: %v", i, instanceCount, err))
			}
			out, err := chain.Run(in)
			if err != nil {
				panic(fmt.Sprintf("guestrt: pipeline step failed on record %d: %v", i, err))
			}
			outCodec.MarshalBin(w, out)
		}
		if rem := r.Remaining(); rem != 0 {
			panic(fmt.Sprintf("guestrt: %d unconsumed payload bytes after decoding %d records", rem, instanceCount))
		}
		outBuf = w.Bytes()
		return encodeOffsetLength(bufferPointer(outBuf), uint32(len(outBuf)))
	})
}

// RunReduce decodes a fold seed followed by instanceCount records, maps
// each record through chain, and folds the mapped outputs into a single
// value starting from the decoded seed using reduce, returning that one
// value encoded as (offset, length). This is the guest side of a
// map_reduce pipeline (spec.md §4.E); the host embeds the seed in every
// batch's payload (ahead of the records) and folds the per-batch results
// together with the same reduce function, mirroring
// original_source/src/host.rs's map_reduce, which serializes init before
// the partition's arguments in the same bin_arg buffer.
func RunReduce[In, Out any](
	chain *pipeline.Chain[In, Out],
	inCodec bincode.Codec[In],
	outCodec bincode.Codec[Out],
	reduce pipeline.Reducer[Out],
	paramLen, instanceCount uint32,
) uint64 {
	return withPanicCapture(func() uint64 {
		r := bincode.NewReader(inBuf[:paramLen])
		acc, err := outCodec.UnmarshalBin(r)
		if err != nil {
			panic(fmt.Sprintf("guestrt: decoding fold seed: %v", err))
		}
		for i := uint32(0); i < instanceCount; i++ {
			in, err := inCodec.UnmarshalBin(r)
			if err != nil {
				panic(fmt.Sprintf("guestrt: decoding record %d of %d: %v", i, instanceCount, err))
			}
			mapped, err := chain.Run(in)
			if err != nil {
				panic(fmt.Sprintf("guestrt: pipeline step failed on record %d: %v", i, err))
			}
			acc, err = reduce(acc, mapped)
			if err != nil {
				panic(fmt.Sprintf("guestrt: reducer failed folding record %d: %v", i, err))
			}
		}
		if rem := r.Remaining(); rem != 0 {
			panic(fmt.Sprintf("guestrt: %d unconsumed payload bytes after decoding %d records", rem, instanceCount))
		}
		w := bincode.NewWriter(16)
		outCodec.MarshalBin(w, acc)
		outBuf = w.Bytes()
		return encodeOffsetLength(bufferPointer(outBuf), uint32(len(outBuf)))
	})
}
