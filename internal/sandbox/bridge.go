// Package sandbox is the memory/ABI bridge of spec.md §4.B: it translates
// between host byte buffers and a WASM guest's linear memory, invokes the
// two exported functions that make up the driver ABI (get_in, entry), and
// turns guest-originated panics into typed host errors (spec.md §4.G).
//
// It is built directly on wazero, the WASM runtime the example corpus
// names (other_examples/*wazero*). Bridge owns the compiled module and the
// host-side report_panic import; Instance is one guest instantiation,
// exclusively owned by a single worker goroutine for its entire lifetime
// (spec.md §5 — never shared across threads).
package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"golang.org/x/sync/singleflight"

	"github.com/oriys/distilled/internal/logging"
	"github.com/oriys/distilled/internal/xerrors"
)

// compileGroup deduplicates concurrent compilations of byte-identical WASM
// modules the way the teacher's pool.Pool singleflights concurrent
// cold-starts for the same pool key — if two Runners are constructed
// concurrently from the same guest binary (e.g. a test suite spinning up
// parallel Runners), only one actually pays wazero's compile cost.
var compileGroup singleflight.Group

// Bridge holds the compiled module shared by every Instance created from
// it. Construct one Bridge per distinct guest binary.
type Bridge struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	preopens []string
}

// panicState is shared, per-Instance, between the report_panic host import
// and whatever goroutine is currently inside an exported call on that
// instance. Since an Instance is only ever driven by one goroutine at a
// time, a single field (no lock) is enough.
type panicState struct {
	message string
	raised  bool
}

// NewBridge compiles wasmBytes under ctx. preopenDirs grants the guest
// read-only access to the listed host directories, each mounted at the
// same path (default empty, matching original_source's
// wasi.preopen("/etc") made configurable instead of hard-coded).
func NewBridge(ctx context.Context, wasmBytes []byte, preopenDirs []string) (*Bridge, error) {
	sum := sha256.Sum256(wasmBytes)
	key := hex.EncodeToString(sum[:])

	type compiled struct {
		rt  wazero.Runtime
		mod wazero.CompiledModule
	}
	v, err, _ := compileGroup.Do(key, func() (interface{}, error) {
		rt := wazero.NewRuntime(ctx)
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("instantiate wasi: %w", err)
		}
		mod, err := rt.CompileModule(ctx, wasmBytes)
		if err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("module compilation: %w", err)
		}
		return compiled{rt: rt, mod: mod}, nil
	})
	if err != nil {
		return nil, err
	}
	c := v.(compiled)
	return &Bridge{runtime: c.rt, compiled: c.mod, preopens: preopenDirs}, nil
}

// Close releases the underlying wazero runtime and every instance created
// from it.
func (b *Bridge) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

// NewInstance instantiates a fresh guest from the compiled module,
// registers the env.report_panic host import, and invokes _start exactly
// once (spec.md §4.B). The returned Instance must be used by a single
// goroutine for its entire lifetime.
func (b *Bridge) NewInstance(ctx context.Context, instanceName string) (*Instance, error) {
	ps := &panicState{}

	envBuilder := b.runtime.NewHostModuleBuilder("env")
	envBuilder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, ptr, length uint32) {
			msg, ok := mod.Memory().Read(ptr, length)
			text := "<non-utf8 panic>"
			if ok && utf8.Valid(msg) {
				text = string(msg)
			}
			ps.message = text
			ps.raised = true
		}).
		Export("report_panic")
	if _, err := envBuilder.Instantiate(ctx); err != nil {
		return nil, fmt.Errorf("instance creation: register report_panic: %w", err)
	}

	cfg := wazero.NewModuleConfig().
		WithName(instanceName).
		WithStartFunctions() // we invoke _start ourselves, once, below
	if len(b.preopens) > 0 {
		fsCfg := wazero.NewFSConfig()
		for _, dir := range b.preopens {
			fsCfg = fsCfg.WithReadOnlyDirMount(dir, dir)
		}
		cfg = cfg.WithFSConfig(fsCfg)
	}

	mod, err := b.runtime.InstantiateModule(ctx, b.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instance creation: %w", err)
	}

	inst := &Instance{
		mod:       mod,
		panicSt:   ps,
		callables: make(map[string]*Callable),
	}

	if start := mod.ExportedFunction("_start"); start != nil {
		if _, err := start.Call(ctx); err != nil {
			mod.Close(ctx)
			return nil, fmt.Errorf("instance creation: running _start: %w", inst.wrapTrap(err))
		}
	}
	return inst, nil
}

// Callable is the cached pair of resolved exports for one pipeline entry
// name (spec.md §3's ResolvedCallable).
type Callable struct {
	getIn api.Function
	main  api.Function
}

// Instance is one guest sandbox, exclusively owned by one worker.
type Instance struct {
	mod       api.Module
	panicSt   *panicState
	mu        sync.Mutex // guards callables; only contended during cache population
	callables map[string]*Callable
}

// Close tears down the guest instance.
func (inst *Instance) Close(ctx context.Context) error {
	return inst.mod.Close(ctx)
}

// Resolve returns the cached Callable for entryName, looking up and
// memoizing it on first use (spec.md: "Cached lazily on first use per
// entry name per worker").
func (inst *Instance) Resolve(getInName, entryName string) (*Callable, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if c, ok := inst.callables[entryName]; ok {
		return c, nil
	}
	getIn := inst.mod.ExportedFunction(getInName)
	if getIn == nil {
		return nil, xerrors.MissingExport(getInName)
	}
	main := inst.mod.ExportedFunction(entryName)
	if main == nil {
		return nil, xerrors.MissingExport(entryName)
	}
	c := &Callable{getIn: getIn, main: main}
	inst.callables[entryName] = c
	return c, nil
}

// Invoke runs the driver ABI invocation sequence of spec.md §4.B steps
// 2-5: call get_in, copy payload into the returned pointer, call entry,
// decode and read back the output.
func (inst *Instance) Invoke(ctx context.Context, c *Callable, payload []byte, instanceCount uint32) ([]byte, error) {
	paramLen := uint32(len(payload))

	res, err := c.getIn.Call(ctx, uint64(paramLen))
	if err != nil {
		return nil, inst.wrapTrap(err)
	}
	ptr := uint32(res[0])

	mem := inst.mod.Memory()
	if paramLen > 0 {
		if !mem.Write(ptr, payload) {
			return nil, xerrors.BoundsViolation(fmt.Sprintf(
				"payload of %d bytes does not fit at offset %d in a %d-byte memory", paramLen, ptr, mem.Size()))
		}
	}

	res, err = c.main.Call(ctx, uint64(paramLen), uint64(instanceCount))
	if err != nil {
		return nil, inst.wrapTrap(err)
	}
	encoded := res[0]
	offset := uint32(encoded >> 32)
	length := uint32(encoded)

	out, ok := mem.Read(offset, length)
	if !ok {
		return nil, xerrors.ABIViolation(fmt.Sprintf(
			"output region [%d,%d) out of bounds for a %d-byte memory", offset, offset+length, mem.Size()))
	}
	// Copy: the returned slice aliases guest linear memory, which is only
	// valid until the next get_in call on this instance (spec.md §4.B).
	owned := make([]byte, len(out))
	copy(owned, out)
	return owned, nil
}

// wrapTrap converts a wazero call error into an ExecutionError, preferring
// the guest panic message captured via report_panic when one was raised
// during this call (spec.md §4.G).
func (inst *Instance) wrapTrap(err error) *xerrors.ExecutionError {
	if inst.panicSt.raised {
		msg := inst.panicSt.message
		inst.panicSt.raised = false
		inst.panicSt.message = ""
		logging.Op().Debug("sandbox guest panic", "message", msg)
		return xerrors.Trap(msg)
	}
	return xerrors.Trap(err.Error())
}
