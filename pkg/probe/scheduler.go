package probe

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// maxIdleWait caps how long the dispatcher sleeps when the heap is empty or
// its root isn't due yet, so a target inserted while the dispatcher is
// parked is noticed promptly via the condition variable broadcast rather
// than only on a timer (spec.md §4.4 "dispatcher thread").
const maxIdleWait = 8192 * time.Millisecond

// targetHeap is a container/heap min-heap keyed by target.due. A third-party
// priority-queue library would be the natural reach here, but nothing in the
// example corpus imports one, so container/heap is used directly
// (DESIGN.md: standard-library justification).
type targetHeap []*target

func (h targetHeap) Len() int            { return len(h) }
func (h targetHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h targetHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *targetHeap) Push(x any) {
	t := x.(*target)
	t.heapIdx = len(*h)
	*h = append(*h, t)
}

func (h *targetHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.heapIdx = -1
	*h = old[:n-1]
	return t
}

// scheduler owns the min-heap and the single dispatcher goroutine. All heap
// mutation happens under mu; cond wakes the dispatcher whenever the root
// might have changed (spec.md §5 "global mutex + condition variable
// guarding a min-heap").
type scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond
	h    targetHeap

	pool ConnPool
	work WorkerPool

	stop    chan struct{}
	stopped int32
	wg      sync.WaitGroup
}

func newScheduler(pool ConnPool, work WorkerPool) *scheduler {
	s := &scheduler{pool: pool, work: work, stop: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	heap.Init(&s.h)
	return s
}

// insert adds t to the heap with the given first-due time and wakes the
// dispatcher in case t is now the new root. Inserting a target that is
// already on the heap is a programming error and panics.
func (s *scheduler) insert(t *target, due time.Time) {
	s.mu.Lock()
	if t.heapIdx >= 0 && t.heapIdx < len(s.h) && s.h[t.heapIdx] == t {
		s.mu.Unlock()
		panic("probe: target " + t.id + " inserted into the heap twice")
	}
	t.due = due
	heap.Push(&s.h, t)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// remove implements the heap side of Remove (spec.md §4.6): drop t from the
// heap if it's still sitting there. If a probe is already in flight for t,
// the caller (Poller.Remove) must separately call target.markDoomed and
// leave teardown to the in-flight task.
func (s *scheduler) remove(t *target) {
	s.mu.Lock()
	if t.heapIdx >= 0 && t.heapIdx < len(s.h) && s.h[t.heapIdx] == t {
		heap.Remove(&s.h, t.heapIdx)
	}
	s.mu.Unlock()
}

// run is the dispatcher loop (spec.md §4.4). It pops the due root, marks it
// running, advances its due time by interval, and submits a probe task
// with front priority; on submission failure the target is left running=0
// so the next cycle retries it (spec.md §4.4 step 3 / §7).
func (s *scheduler) run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if len(s.h) == 0 {
			s.waitLocked(maxIdleWait)
			continue
		}

		root := s.h[0]
		wait := time.Until(root.due)
		if wait > 0 {
			if wait > maxIdleWait {
				wait = maxIdleWait
			}
			s.waitLocked(wait)
			continue
		}

		heap.Pop(&s.h)
		root.due = root.due.Add(root.spec.Interval)
		heap.Push(&s.h, root)

		t := root
		if !atomic.CompareAndSwapInt32(&t.running, stateIdle, stateRunning) {
			// A previous attempt for this target is still in flight (the
			// interval elapsed before it returned) or it's mid-teardown;
			// the at-most-one-probe-per-target invariant forbids a second
			// concurrent attempt, so this cycle is skipped for t and it
			// will be reconsidered at its next due time.
			continue
		}
		submitted := s.work.Submit(func() { s.runTask(ctx, t) }, PriorityFront)
		if !submitted {
			atomic.StoreInt32(&t.running, stateIdle)
		}
	}
}

// waitLocked sleeps on the condition variable for at most d: a timer
// broadcasts after d in case nothing else wakes the dispatcher sooner, and
// cond.Wait re-acquires mu on return as usual.
func (s *scheduler) waitLocked(d time.Duration) {
	timer := time.AfterFunc(d, s.cond.Broadcast)
	defer timer.Stop()
	s.cond.Wait()
}

// runTask is the worker-pool task body (spec.md §4.5): run the probe
// outside the scheduler's mutex, then retake it to fold the result in and
// to check for a Remove that arrived while the probe was in flight.
func (s *scheduler) runTask(ctx context.Context, t *target) {
	s.mu.Lock()
	t.startPoke()
	s.mu.Unlock()

	poke(ctx, s.pool, t)

	s.mu.Lock()
	t.hasPoked(time.Now())
	doomed := atomic.LoadInt32(&t.running) == stateDoomed
	if doomed {
		t.backend = nil
	} else {
		atomic.StoreInt32(&t.running, stateIdle)
	}
	s.mu.Unlock()

	if doomed {
		// Remove arrived while this probe was in flight and deferred
		// teardown here (target.markDoomed); release the pool reference
		// exactly once, now that the attempt has finished (spec.md §4.6).
		s.pool.Release(t.handle)
	}
}

func (s *scheduler) close() {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return
	}
	close(s.stop)
	s.cond.Broadcast()
	s.wg.Wait()
}
