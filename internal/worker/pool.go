// Package worker is the fixed-size dispatcher of spec.md §4.D: a pool of
// goroutines, each exclusively owning one sandbox.Instance for its entire
// lifetime, pulling Requests off a shared queue and delivering Outcomes
// through a completion.Manager. It is the Go realization of
// original_source/src/host.rs's thread-spawn loop (one OS thread per
// worker, each with its own wasm Store and a HashMap<String, Callable>
// function cache), generalized to spec.md's batch/id model.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/distilled/internal/completion"
	"github.com/oriys/distilled/internal/config"
	"github.com/oriys/distilled/internal/logging"
	"github.com/oriys/distilled/internal/metrics"
	"github.com/oriys/distilled/internal/sandbox"
	"github.com/oriys/distilled/internal/xerrors"
)

// ErrPoolClosed is returned by Submit once Stop has been called.
var ErrPoolClosed = errors.New("worker: pool is closed")

// resolveWorkerCount applies spec.md §4.D's default (4 workers) when cfg
// leaves WorkerCount unset or invalid.
func resolveWorkerCount(cfg config.WorkerConfig) int {
	if cfg.WorkerCount <= 0 {
		return config.DefaultWorkerConfig().WorkerCount
	}
	return cfg.WorkerCount
}

// Request is one unit of dispatch: invoke entryName (resolved via
// getInName) on the next free worker with payload as the already-encoded
// batch, reporting the result under id.
type Request struct {
	ID            uint64
	GetInName     string
	EntryName     string
	Payload       []byte
	InstanceCount uint32
}

// Pool is a fixed set of worker goroutines, each bound to one sandbox
// instance created from the same compiled module (spec.md §4.D: "workers
// do not share Instances; a worker's Instance lives for the worker's
// entire lifetime").
type Pool struct {
	bridge      *sandbox.Bridge
	completions *completion.Manager
	queue       *queue
	workerCount int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts cfg.WorkerCount workers, each instantiating its own
// sandbox.Instance from bridge. If any instance fails to start, already
// -started workers are stopped and the error is returned (spec.md: a pool
// either starts cleanly or not at all).
func NewPool(ctx context.Context, bridge *sandbox.Bridge, cfg config.WorkerConfig, completions *completion.Manager) (*Pool, error) {
	workerCount := resolveWorkerCount(cfg)

	p := &Pool{
		bridge:      bridge,
		completions: completions,
		queue:       newQueue(cfg.RequestChannelSize),
		workerCount: workerCount,
	}

	started := make([]*sandbox.Instance, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		instName := fmt.Sprintf("worker-%d-%s", i, uuid.New().String()[:8])
		inst, err := bridge.NewInstance(ctx, instName)
		if err != nil {
			for _, s := range started {
				s.Close(context.Background())
			}
			return nil, fmt.Errorf("worker: starting worker %d: %w", i, err)
		}
		started = append(started, inst)
	}

	for i, inst := range started {
		p.wg.Add(1)
		go p.run(ctx, i, inst)
	}
	logging.Op().Info("worker pool started", "workers", workerCount)
	return p, nil
}

// Submit enqueues req for processing by the next free worker. The result
// is reported asynchronously through the completion.Manager slot
// registered under req.ID; Submit itself does not block on completion.
func (p *Pool) Submit(req Request) error {
	if err := p.queue.push(req); err != nil {
		return err
	}
	metrics.Global().SetQueueDepth(p.queue.len())
	return nil
}

// Stop closes the queue and blocks until the workers have processed every
// request already queued and exited. Idempotent.
func (p *Pool) Stop() {
	p.closeOnce.Do(func() {
		p.queue.close()
		p.wg.Wait()
		logging.Op().Info("worker pool stopped")
	})
}

func (p *Pool) run(ctx context.Context, id int, inst *sandbox.Instance) {
	defer p.wg.Done()
	defer inst.Close(context.Background())

	for {
		req, ok := p.queue.pop()
		if !ok {
			return
		}
		metrics.Global().SetQueueDepth(p.queue.len())

		start := time.Now()
		out, err := p.invoke(ctx, inst, req)
		durationMs := time.Since(start).Milliseconds()
		metrics.Global().RecordInvocation(durationMs, err == nil)

		var execErr *xerrors.ExecutionError
		if errors.As(err, &execErr) && execErr.Kind == xerrors.KindTrap {
			metrics.Global().RecordTrap()
		}

		logging.Op().Debug("worker processed request", "worker", id, "request_id", req.ID, "duration_ms", durationMs, "error", err)
		p.completions.Deliver(req.ID, completion.Outcome{Value: out, Err: err})
	}
}

func (p *Pool) invoke(ctx context.Context, inst *sandbox.Instance, req Request) ([]byte, error) {
	callable, err := inst.Resolve(req.GetInName, req.EntryName)
	if err != nil {
		return nil, err
	}
	return inst.Invoke(ctx, callable, req.Payload, req.InstanceCount)
}
