// Package completion bridges the push model of the worker pool (results
// arrive unsolicited on a response channel) to the pull model callers want
// (await one specific id). It realizes spec.md §4.C and the
// original_source/src/future.rs Manager/RunFuture pair, translated from a
// Rust Future poll loop into a blocking Wait backed by a per-handle
// channel, since Go has no native async/await to hang a Waker off of.
package completion

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oriys/distilled/internal/metrics"
)

// Outcome is whatever a worker delivers for a request: either result bytes
// or an execution error. It is intentionally untyped at this layer —
// completion has no notion of pipelines or records, only opaque payloads.
type Outcome struct {
	Value []byte
	Err   error
}

type slot struct {
	ready chan Outcome
	// delivered guards against a double Deliver call for the same id,
	// asserted in Strict mode the way the spec requires ("asserted in
	// debug").
	delivered atomic.Bool
}

// Manager correlates in-flight request ids to awaitable handles. It is
// safe for concurrent use; critical sections are O(1) as spec.md §4.C
// requires.
type Manager struct {
	mu      sync.Mutex
	slots   map[uint64]*slot
	nextID  atomic.Uint64
	// Strict enables the "Deliver called twice" assertion. Left on by
	// default; tests that intentionally race double-delivery can turn it
	// off.
	Strict bool
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{slots: make(map[uint64]*slot), Strict: true}
}

// NewID returns the next monotonic request id. IDs are never reused within
// a process (spec.md invariant 6).
func (m *Manager) NewID() uint64 {
	return m.nextID.Add(1)
}

// Register creates (or overwrites) the unresolved slot for id and returns
// a Handle the caller can Wait on. Overwriting mirrors the spec's
// "register(id, waker) — store or overwrite the waker for an unresolved
// id", needed because a single logical request may be retried onto a new
// slot without a fresh id in degenerate embedder code.
func (m *Manager) Register(id uint64) *Handle {
	s := &slot{ready: make(chan Outcome, 1)}
	m.mu.Lock()
	m.slots[id] = s
	n := len(m.slots)
	m.mu.Unlock()
	metrics.Global().SetLiveCompletions(n)
	return &Handle{id: id, manager: m, slot: s}
}

// Deliver stores outcome for id and wakes its waiter. If no slot exists
// (the handle was already dropped/cancelled) the outcome is silently
// discarded, per spec.md §4.C.
func (m *Manager) Deliver(id uint64, outcome Outcome) {
	m.mu.Lock()
	s, ok := m.slots[id]
	if ok {
		delete(m.slots, id)
	}
	n := len(m.slots)
	m.mu.Unlock()
	metrics.Global().SetLiveCompletions(n)

	if !ok {
		return
	}
	if m.Strict && !s.delivered.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("completion: deliver called twice for id %d", id))
	}
	s.ready <- outcome
}

// Cancel removes the slot for id, if any. Idempotent, per spec.md §4.C.
func (m *Manager) Cancel(id uint64) {
	m.mu.Lock()
	_, ok := m.slots[id]
	if ok {
		delete(m.slots, id)
	}
	n := len(m.slots)
	m.mu.Unlock()
	if ok {
		metrics.Global().SetLiveCompletions(n)
	}
}

// LiveCount returns the number of unresolved slots, used by tests to
// assert spec.md invariant 5 (cancellation safety / no leaks).
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Handle is the awaitable returned by Register. Exactly one of Wait/Close
// should be called; Close after a successful Wait is a harmless no-op
// since the slot has already been removed by Deliver.
type Handle struct {
	id      uint64
	manager *Manager
	slot    *slot
	closed  atomic.Bool
}

// ID returns the request id this handle correlates to.
func (h *Handle) ID() uint64 { return h.id }

// Wait blocks until a result is delivered or ctx is done. On context
// cancellation the handle's registration is cancelled before returning,
// so a late response is discarded rather than leaking the slot.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case out := <-h.slot.ready:
		return out, nil
	case <-ctx.Done():
		h.Close()
		return Outcome{}, ctx.Err()
	}
}

// Close cancels the handle's completion registration without waiting.
// Safe to call multiple times.
func (h *Handle) Close() {
	if h.closed.CompareAndSwap(false, true) {
		h.manager.Cancel(h.id)
	}
}
