package bincode

// Codec implementations for the primitive types used by the example
// pipelines (spec.md §8 S1-S4). Aggregate/tuple types compose these the
// same way nanoserde-derived structs concatenate their fields' encodings.

// Uint8 encodes/decodes a raw byte.
var Uint8 = NewCodec(
	func(w *Writer, v uint8) { w.WriteUint8(v) },
	func(r *Reader) (uint8, error) { return r.ReadUint8() },
)

// Uint16 encodes/decodes 2 little-endian bytes.
var Uint16 = NewCodec(
	func(w *Writer, v uint16) { w.WriteUint16(v) },
	func(r *Reader) (uint16, error) { return r.ReadUint16() },
)

// Uint32 encodes/decodes 4 little-endian bytes.
var Uint32 = NewCodec(
	func(w *Writer, v uint32) { w.WriteUint32(v) },
	func(r *Reader) (uint32, error) { return r.ReadUint32() },
)

// Uint64 encodes/decodes 8 little-endian bytes.
var Uint64 = NewCodec(
	func(w *Writer, v uint64) { w.WriteUint64(v) },
	func(r *Reader) (uint64, error) { return r.ReadUint64() },
)

// String encodes/decodes a u64-length-prefixed UTF-8 string.
var String = NewCodec(
	func(w *Writer, v string) { w.WriteString(v) },
	func(r *Reader) (string, error) { return r.ReadString() },
)
