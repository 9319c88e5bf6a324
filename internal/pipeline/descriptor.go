package pipeline

import "github.com/oriys/distilled/internal/bincode"

// Descriptor is the host-side half of one compiled pipeline: the pair of
// export names the sandbox bridge resolves (spec.md §4.B's ResolvedCallable)
// plus the codecs needed to encode a batch and decode its results. Reduce
// is nil for a plain map pipeline and non-nil for map_reduce, in which
// case every batch embeds Init as the fold seed and the host folds
// partials across batches with the same Reduce (spec.md §9, Open Question
// 1, resolved in favor of host-side folding with a per-batch embedded
// init — see DESIGN.md).
type Descriptor[In, Out any] struct {
	EntryName string
	GetInName string
	InCodec   bincode.Codec[In]
	OutCodec  bincode.Codec[Out]
	Reduce    Reducer[Out]
	Init      Out
}

// NewMap describes a pipeline with no reduction stage: the entry applies
// its composed Chain to every record in a batch independently.
func NewMap[In, Out any](entryName, getInName string, inCodec bincode.Codec[In], outCodec bincode.Codec[Out]) *Descriptor[In, Out] {
	return &Descriptor[In, Out]{
		EntryName: entryName,
		GetInName: getInName,
		InCodec:   inCodec,
		OutCodec:  outCodec,
	}
}

// NewMapReduce describes a pipeline whose sandbox entry also folds the
// batch's mapped outputs against init before returning a single value per
// batch; the host then folds those per-batch values together with the
// same reduce function (spec.md §4.E).
func NewMapReduce[In, Out any](
	entryName, getInName string,
	inCodec bincode.Codec[In],
	outCodec bincode.Codec[Out],
	reduce Reducer[Out],
	init Out,
) *Descriptor[In, Out] {
	return &Descriptor[In, Out]{
		EntryName: entryName,
		GetInName: getInName,
		InCodec:   inCodec,
		OutCodec:  outCodec,
		Reduce:    reduce,
		Init:      init,
	}
}

// IsMapReduce reports whether d folds its batch outputs before returning.
func (d *Descriptor[In, Out]) IsMapReduce() bool {
	return d.Reduce != nil
}
