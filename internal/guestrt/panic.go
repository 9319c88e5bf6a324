//go:build wasm

package guestrt

import (
	"fmt"
	"runtime/debug"
)

// reportPanic is the guest's half of the panic channel (spec.md §4.G): a
// guest panic is forwarded to the host via this import before the panic
// is allowed to continue unwinding and trap the instance, so the host
// sees the actual message instead of a bare "unreachable executed" trap.
// Grounded on original_source/src/host.rs's "exit" host import, which the
// original's panic hook called the same way.
//
//go:wasmimport env report_panic
func reportPanicHost(ptr, length uint32)

// InstallPanicHook silences the runtime's own unrecovered-panic traceback
// printing: the panic channel (withPanicCapture) is what carries the
// payload and location to the host, so the guest doesn't also need to dump
// a trace to its own stderr. Call once during guest initialization.
func InstallPanicHook() {
	debug.SetTraceback("none")
}

// withPanicCapture recovers any panic raised by fn, forwards its payload
// and a source location through the panic channel, and re-panics so the
// instance still traps — the host's wazero call returns an error either
// way, but now carries the actual message via the captured report_panic
// call (spec.md §4.G requires "panic payload and location"; scenario S5
// requires the resulting host error to contain both). The location comes
// from debug.Stack(), captured here while the panicking goroutine's stack
// is still intact, the same way the pack's bigslice worker formats its own
// recovered panics ("%v\n%s", e, debug.Stack()).
func withPanicCapture(fn func() uint64) (result uint64) {
	defer func() {
		if r := recover(); r != nil {
			msg := []byte(fmt.Sprintf("%v\n%s", r, debug.Stack()))
			reportPanicHost(bufferPointer(msg), uint32(len(msg)))
			panic(r)
		}
	}()
	return fn()
}
