package probe

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Poller is the control surface described in spec.md §4.6: Init starts the
// dispatcher, Insert/Remove attach and detach backends, Control pauses or
// resumes a backend without losing its history, and Status renders the CLI
// view served by the control API's GET /api/v1/backends/:id/status route
// (handlers.go).
type Poller struct {
	mu sync.Mutex // guards targets; the scheduler has its own finer mutex for the heap

	sched   *scheduler
	pool    ConnPool
	work    WorkerPool
	targets map[string]*target

	cancel context.CancelFunc
}

// NewPoller builds a Poller using pool for connections and work for
// dispatching probe attempts. Both are required collaborators (spec.md §6
// "Consumed"); callers typically pass NewDialConnPool and
// NewBoundedWorkerPool.
func NewPoller(pool ConnPool, work WorkerPool) *Poller {
	return &Poller{
		pool:    pool,
		work:    work,
		targets: make(map[string]*target),
	}
}

// Init starts the dispatcher goroutine (spec.md §4.4). Safe to call once;
// a second call is a no-op.
func (p *Poller) Init(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.sched = newScheduler(p.pool, p.work)
	go p.sched.run(runCtx)
}

// Insert begins probing backend with the given spec (spec.md §4.6 Insert).
// The target starts seeded with spec.Initial happy bits already set and
// fires its first attempt immediately at interval-0, so a newly inserted
// backend doesn't wait a full interval before its first verdict (spec.md §9
// Open Question: resolved as "probe at once, then every Interval").
func (p *Poller) Insert(backend *Backend, spec Spec) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sched == nil {
		return fmt.Errorf("probe: Init must be called before Insert")
	}
	if _, exists := p.targets[backend.ID]; exists {
		return fmt.Errorf("probe: backend %s already inserted", backend.ID)
	}

	handle, err := p.pool.Reference(backend.Host, backend.Port)
	if err != nil {
		return fmt.Errorf("probe: referencing pool for %s: %w", backend.ID, err)
	}

	t := newTarget(backend.ID, spec, backend.Host, backend.Port, backend, p.pool, handle)
	p.targets[backend.ID] = t
	backend.attach(t)

	p.sched.insert(t, time.Now())
	return nil
}

// Remove detaches backend and stops probing it (spec.md §4.6 Remove). If a
// probe is in flight, teardown is deferred to that probe's own task body
// (target.markDoomed / scheduler.runTask) — Remove never blocks waiting for
// it (spec.md §5 handoff protocol).
func (p *Poller) Remove(backend *Backend) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.targets[backend.ID]
	if !ok {
		return fmt.Errorf("probe: backend %s not found", backend.ID)
	}
	delete(p.targets, backend.ID)

	p.sched.remove(t)
	immediate := t.markDoomed()
	backend.detach()
	if immediate {
		// No probe is in flight for t, so it's safe to clear its
		// back-reference and release its pool handle here directly;
		// otherwise scheduler.runTask does both itself once the in-flight
		// poke returns (spec.md §5, §4.6 "released exactly once").
		p.sched.mu.Lock()
		t.backend = nil
		p.sched.mu.Unlock()
		p.pool.Release(t.handle)
	}
	return nil
}

// Backend returns the real Backend object the poller has on file for id, so
// callers that only hold an id (the HTTP layer) can act on the tracked
// backend itself rather than a caller-constructed stand-in with zero-valued
// health fields.
func (p *Poller) Backend(id string) (*Backend, bool) {
	p.mu.Lock()
	t, ok := p.targets[id]
	p.mu.Unlock()
	if !ok {
		return nil, false
	}

	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	return t.backend, true
}

// Control pauses or resumes polling of backend without discarding its
// accumulated history (spec.md §4.6 Control): a paused target is removed
// from the heap but stays in p.targets, so Control(true) can reinsert it
// without rebuilding bitmaps from scratch.
func (p *Poller) Control(backend *Backend, enable bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.targets[backend.ID]
	if !ok {
		return fmt.Errorf("probe: backend %s not found", backend.ID)
	}

	if enable {
		p.sched.insert(t, time.Now())
		return nil
	}
	p.sched.remove(t)
	return nil
}

// Status renders a CLI status view to w (spec.md §6 "Status render"). With
// details=false it prints one summary line for backend; with details=true
// it adds a header, the average round-trip, a ruler, and the 64-probe
// history of happy and of every non-empty bitmap.
func (p *Poller) Status(w io.Writer, backend *Backend, details bool) {
	p.mu.Lock()
	t, ok := p.targets[backend.ID]
	p.mu.Unlock()
	if !ok {
		fmt.Fprintf(w, "%s: not under poll\n", backend.ID)
		return
	}

	p.sched.mu.Lock()
	defer p.sched.mu.Unlock()
	writeStatus(w, backend, t, details)
}

// Close stops the dispatcher and the worker pool. Pending in-flight probes
// are allowed to finish; no new ones are started.
func (p *Poller) Close() {
	p.mu.Lock()
	cancel := p.cancel
	sched := p.sched
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sched != nil {
		sched.close()
	}
	p.work.Close()
}
