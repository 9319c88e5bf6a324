// Package xerrors defines the per-request error surface described in
// spec.md §7: every kind a sandbox invocation can fail with, modeled on
// the teacher's practice of a single typed error per subsystem boundary
// (e.g. backend.Client errors) and on original_source/src/error.rs's
// ExecutionError, which wrapped wasmer's RuntimeError/ExportError behind
// one message-carrying type.
package xerrors

import "fmt"

// Kind identifies which spec.md §7 failure category an ExecutionError
// belongs to.
type Kind int

const (
	// KindMissingExport: the sandbox module does not export a required
	// entry point (get_in or the pipeline's entry name).
	KindMissingExport Kind = iota
	// KindTrap: the sandbox call trapped, including a guest panic
	// re-raised through the panic channel (spec.md §4.G).
	KindTrap
	// KindBoundsViolation: a payload write fell outside the sandbox's
	// current linear memory view.
	KindBoundsViolation
	// KindABIViolation: the driver ABI contract was broken — an
	// out-of-bounds (offset, length) return, or a non-empty remainder
	// after decoding the advertised payload (invariant 7).
	KindABIViolation
	// KindDeserializeFailure: a returned record failed to decode as the
	// pipeline's declared output type.
	KindDeserializeFailure
)

func (k Kind) String() string {
	switch k {
	case KindMissingExport:
		return "missing_export"
	case KindTrap:
		return "trap"
	case KindBoundsViolation:
		return "bounds_violation"
	case KindABIViolation:
		return "abi_violation"
	case KindDeserializeFailure:
		return "deserialize_failure"
	default:
		return "unknown"
	}
}

// ExecutionError is the single error type returned to a Runner caller for
// any per-request failure. Construction failures (module compilation,
// instance creation) are plain wrapped errors instead — see spec.md §7's
// policy split between fatal construction errors and per-request errors.
type ExecutionError struct {
	Kind    Kind
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// MissingExport reports that the named sandbox export could not be found.
func MissingExport(name string) *ExecutionError {
	return &ExecutionError{Kind: KindMissingExport, Message: fmt.Sprintf("missing export %q", name)}
}

// Trap wraps a sandbox trap message, including guest panics forwarded
// through the panic channel.
func Trap(msg string) *ExecutionError {
	return &ExecutionError{Kind: KindTrap, Message: msg}
}

// BoundsViolation reports a payload write outside the sandbox's linear
// memory.
func BoundsViolation(msg string) *ExecutionError {
	return &ExecutionError{Kind: KindBoundsViolation, Message: msg}
}

// ABIViolation reports a broken driver ABI contract.
func ABIViolation(msg string) *ExecutionError {
	return &ExecutionError{Kind: KindABIViolation, Message: msg}
}

// DeserializeFailure wraps a decode error for a returned record.
func DeserializeFailure(err error) *ExecutionError {
	return &ExecutionError{Kind: KindDeserializeFailure, Message: err.Error()}
}
