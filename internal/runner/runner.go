// Package runner is the high-level entry point of spec.md §4.F: RunOne,
// Map, and MapReduce as free generic functions over a *Runner and a
// *pipeline.Descriptor[In, Out]. It is the Go realization of
// original_source/src/host.rs's Runner (run_one/map/map_reduce), wiring
// together sandbox.Bridge, worker.Pool, and completion.Manager, with
// golang.org/x/sync/errgroup replacing host.rs's sequential future-await
// loop for genuine fan-out while still returning results in input order.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oriys/distilled/internal/bincode"
	"github.com/oriys/distilled/internal/completion"
	"github.com/oriys/distilled/internal/config"
	"github.com/oriys/distilled/internal/logging"
	"github.com/oriys/distilled/internal/pipeline"
	"github.com/oriys/distilled/internal/sandbox"
	"github.com/oriys/distilled/internal/worker"
	"github.com/oriys/distilled/internal/xerrors"
)

// Runner owns one sandbox bridge, its worker pool, and the completion
// manager correlating in-flight requests. Construct one per guest binary.
type Runner struct {
	bridge      *sandbox.Bridge
	pool        *worker.Pool
	completions *completion.Manager
	cfg         config.WorkerConfig

	// dispatch is a test seam: nil in production, in which case submit
	// uses pool/completions as usual. Tests that cannot stand up a real
	// sandbox.Bridge substitute a fake worker here to exercise RunOne,
	// Map, and MapReduce's real encode/decode/ordering logic end to end.
	dispatch func(ctx context.Context, getInName, entryName string, payload []byte, instanceCount uint32) ([]byte, error)
}

// New compiles wasmBytes, starts cfg.WorkerCount workers (each owning one
// sandbox instance), and returns a ready Runner.
func New(ctx context.Context, wasmBytes []byte, cfg config.WorkerConfig) (*Runner, error) {
	bridge, err := sandbox.NewBridge(ctx, wasmBytes, cfg.PreopenDirs)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	completions := completion.NewManager()
	pool, err := worker.NewPool(ctx, bridge, cfg, completions)
	if err != nil {
		bridge.Close(context.Background())
		return nil, fmt.Errorf("runner: %w", err)
	}
	return &Runner{bridge: bridge, pool: pool, completions: completions, cfg: cfg}, nil
}

// Close stops every worker and releases the sandbox bridge. Requests
// already queued are still processed and their results delivered before
// the workers exit.
func (r *Runner) Close() error {
	r.pool.Stop()
	return r.bridge.Close(context.Background())
}

func (r *Runner) batchSize() int {
	if r.cfg.BatchSize <= 0 {
		return config.DefaultWorkerConfig().BatchSize
	}
	return r.cfg.BatchSize
}

// submit enqueues one Request and blocks until its result is delivered or
// ctx is done.
func (r *Runner) submit(ctx context.Context, getInName, entryName string, payload []byte, instanceCount uint32) ([]byte, error) {
	if r.dispatch != nil {
		return r.dispatch(ctx, getInName, entryName, payload, instanceCount)
	}

	id := r.completions.NewID()
	handle := r.completions.Register(id)

	if err := r.pool.Submit(worker.Request{
		ID:            id,
		GetInName:     getInName,
		EntryName:     entryName,
		Payload:       payload,
		InstanceCount: instanceCount,
	}); err != nil {
		handle.Close()
		return nil, err
	}

	outcome, err := handle.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return outcome.Value, outcome.Err
}

// traceID mints a short human-legible id for one invocation's log line,
// distinct from the completion manager's monotonic u64 correlation id.
func traceID() string {
	return uuid.New().String()[:8]
}

// RunOne invokes d against a single record (spec.md §4.E's run_one).
func RunOne[In, Out any](ctx context.Context, r *Runner, d *pipeline.Descriptor[In, Out], in In) (Out, error) {
	var zero Out
	if d.IsMapReduce() {
		panic("runner: RunOne called with a map_reduce descriptor")
	}

	reqID := traceID()
	start := time.Now()

	w := bincode.NewWriter(64)
	d.InCodec.MarshalBin(w, in)

	raw, err := r.submit(ctx, d.GetInName, d.EntryName, w.Bytes(), 1)
	if err != nil {
		logging.Default().Log(&logging.InvocationLog{RequestID: reqID, Pipeline: d.EntryName, Partitions: 1, DurationMs: time.Since(start).Milliseconds(), Success: false, Error: err.Error(), InputCount: 1})
		return zero, err
	}

	rd := bincode.NewReader(raw)
	out, err := d.OutCodec.UnmarshalBin(rd)
	if err != nil {
		err = xerrors.DeserializeFailure(err)
	} else if rem := rd.Remaining(); rem != 0 {
		err = xerrors.ABIViolation(fmt.Sprintf("%d unconsumed bytes in run_one result", rem))
	}

	logEntry := &logging.InvocationLog{RequestID: reqID, Pipeline: d.EntryName, Partitions: 1, DurationMs: time.Since(start).Milliseconds(), Success: err == nil, InputCount: 1}
	if err != nil {
		logEntry.Error = err.Error()
		logging.Default().Log(logEntry)
		return zero, err
	}
	logging.Default().Log(logEntry)
	return out, nil
}

// Map partitions args into batches of the Runner's configured batch size
// (spec.md §4.E default 2), dispatches each batch concurrently, and
// returns results in the same order as args regardless of which batch
// completes first.
func Map[In, Out any](ctx context.Context, r *Runner, d *pipeline.Descriptor[In, Out], args []In) ([]Out, error) {
	if d.IsMapReduce() {
		panic("runner: Map called with a map_reduce descriptor")
	}
	if len(args) == 0 {
		return nil, nil
	}

	reqID := traceID()
	callStart := time.Now()
	batchSize := r.batchSize()
	results := make([]Out, len(args))

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(args); start += batchSize {
		end := start + batchSize
		if end > len(args) {
			end = len(args)
		}
		start, end := start, end
		g.Go(func() error {
			chunk := args[start:end]
			w := bincode.NewWriter(64 * len(chunk))
			for _, a := range chunk {
				d.InCodec.MarshalBin(w, a)
			}

			raw, err := r.submit(gctx, d.GetInName, d.EntryName, w.Bytes(), uint32(len(chunk)))
			if err != nil {
				return err
			}

			rd := bincode.NewReader(raw)
			for i := range chunk {
				out, err := d.OutCodec.UnmarshalBin(rd)
				if err != nil {
					return xerrors.DeserializeFailure(err)
				}
				results[start+i] = out
			}
			if rem := rd.Remaining(); rem != 0 {
				return xerrors.ABIViolation(fmt.Sprintf("%d unconsumed bytes in batch [%d,%d)", rem, start, end))
			}
			return nil
		})
	}

	err := g.Wait()
	logEntry := &logging.InvocationLog{RequestID: reqID, Pipeline: d.EntryName, Partitions: (len(args) + batchSize - 1) / batchSize, DurationMs: time.Since(callStart).Milliseconds(), Success: err == nil, InputCount: len(args)}
	if err != nil {
		logEntry.Error = err.Error()
		logging.Default().Log(logEntry)
		return nil, err
	}
	logging.Default().Log(logEntry)
	return results, nil
}

// MapReduce partitions args the same way Map does, but each batch's
// payload embeds d.Init ahead of its records (spec.md §4.E, §9) so the
// sandbox entry folds the batch down to one value; MapReduce then folds
// those per-batch values together on the host with the same Reduce.
func MapReduce[In, Out any](ctx context.Context, r *Runner, d *pipeline.Descriptor[In, Out], args []In) (Out, error) {
	var zero Out
	if !d.IsMapReduce() {
		panic("runner: MapReduce called with a descriptor that has no Reduce")
	}
	if len(args) == 0 {
		return d.Init, nil
	}

	reqID := traceID()
	callStart := time.Now()
	batchSize := r.batchSize()
	numBatches := (len(args) + batchSize - 1) / batchSize
	partials := make([]Out, numBatches)

	g, gctx := errgroup.WithContext(ctx)
	for b := 0; b < numBatches; b++ {
		start := b * batchSize
		end := start + batchSize
		if end > len(args) {
			end = len(args)
		}
		b, start, end := b, start, end
		g.Go(func() error {
			chunk := args[start:end]
			w := bincode.NewWriter(64 * (len(chunk) + 1))
			d.OutCodec.MarshalBin(w, d.Init)
			for _, a := range chunk {
				d.InCodec.MarshalBin(w, a)
			}

			raw, err := r.submit(gctx, d.GetInName, d.EntryName, w.Bytes(), uint32(len(chunk)))
			if err != nil {
				return err
			}

			rd := bincode.NewReader(raw)
			out, err := d.OutCodec.UnmarshalBin(rd)
			if err != nil {
				return xerrors.DeserializeFailure(err)
			}
			if rem := rd.Remaining(); rem != 0 {
				return xerrors.ABIViolation(fmt.Sprintf("%d unconsumed bytes in batch %d result", rem, b))
			}
			partials[b] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logging.Default().Log(&logging.InvocationLog{RequestID: reqID, Pipeline: d.EntryName, Partitions: numBatches, DurationMs: time.Since(callStart).Milliseconds(), Success: false, Error: err.Error(), InputCount: len(args)})
		return zero, err
	}

	acc := d.Init
	for _, p := range partials {
		var err error
		acc, err = d.Reduce(acc, p)
		if err != nil {
			logging.Default().Log(&logging.InvocationLog{RequestID: reqID, Pipeline: d.EntryName, Partitions: numBatches, DurationMs: time.Since(callStart).Milliseconds(), Success: false, Error: err.Error(), InputCount: len(args)})
			return zero, err
		}
	}
	logging.Default().Log(&logging.InvocationLog{RequestID: reqID, Pipeline: d.EntryName, Partitions: numBatches, DurationMs: time.Since(callStart).Milliseconds(), Success: true, InputCount: len(args)})
	return acc, nil
}
