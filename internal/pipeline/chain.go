// Package pipeline is the compile-time composition half of spec.md §4.E:
// the free generic functions Start/Then stand in for the Rust
// distilled-derive proc-macro (original_source/distilled-derive), which
// wired a sequence of #[distilled] functions into one wasm export at
// macro-expansion time. Go has no macros, so composition happens through
// generic monomorphization instead — Start/Then build a Chain value whose
// Run method is resolved to a fixed call sequence at compile time, the
// same guarantee the macro gave the original.
//
// Methods cannot introduce new type parameters in Go, which is why Then
// is a free function rather than a method on Chain: Chain[In, Mid] has no
// way to accept an Out type parameter of its own.
package pipeline

// Step is one pure map stage: deterministic, side-effect free, and the
// unit both the guest driver (internal/guestrt) and this package compose.
type Step[In, Out any] func(In) (Out, error)

// Reducer folds two partial results into one, used by map_reduce entries.
type Reducer[T any] func(a, b T) (T, error)

// Chain is a composed sequence of Step values from In to Out, fixed at
// construction time.
type Chain[In, Out any] struct {
	run func(In) (Out, error)
}

// Run executes the composed chain against one input record.
func (c *Chain[In, Out]) Run(in In) (Out, error) {
	return c.run(in)
}

// Start begins a chain that is the identity function on In. Compose onto
// it with Then.
func Start[In any]() *Chain[In, In] {
	return &Chain[In, In]{run: func(in In) (In, error) { return in, nil }}
}

// Then appends step to prev, producing a new Chain from prev's input type
// to step's output type.
func Then[In, Mid, Out any](prev *Chain[In, Mid], step Step[Mid, Out]) *Chain[In, Out] {
	return &Chain[In, Out]{
		run: func(in In) (Out, error) {
			var zero Out
			mid, err := prev.Run(in)
			if err != nil {
				return zero, err
			}
			return step(mid)
		},
	}
}
