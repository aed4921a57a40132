package probe

import (
	"container/heap"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetHeapOrdersByDue(t *testing.T) {
	h := &targetHeap{}
	heap.Init(h)

	now := time.Now()
	late := &target{due: now.Add(time.Hour)}
	soon := &target{due: now}
	mid := &target{due: now.Add(time.Minute)}

	heap.Push(h, late)
	heap.Push(h, soon)
	heap.Push(h, mid)

	first := heap.Pop(h).(*target)
	second := heap.Pop(h).(*target)
	third := heap.Pop(h).(*target)

	assert.Same(t, soon, first)
	assert.Same(t, mid, second)
	assert.Same(t, late, third)
}

func TestSchedulerInsertAndRemove(t *testing.T) {
	pool := NewDialConnPool("")
	work := NewBoundedWorkerPool(1, 1)
	defer work.Close()

	s := newScheduler(pool, work)
	tg := &target{due: time.Now().Add(time.Hour)}
	s.insert(tg, tg.due)

	s.mu.Lock()
	assert.Equal(t, 1, s.h.Len())
	s.mu.Unlock()

	s.remove(tg)
	s.mu.Lock()
	assert.Equal(t, 0, s.h.Len())
	s.mu.Unlock()
}

func TestSchedulerDispatchesWhenDue(t *testing.T) {
	addr := serveOnce(t, "HTTP/1.1 200 OK\r\n\r\n")
	pool := NewDialConnPool("")
	work := NewBoundedWorkerPool(2, 4)
	defer work.Close()

	s := newScheduler(pool, work)

	spec, err := NewSpec(RawSpec{ExpectedStatus: 200, Timeout: time.Second, Interval: time.Hour})
	require.NoError(t, err)
	b := NewBackend("b1", "", "127.0.0.1", addr.Port)
	handle, err := pool.Reference("127.0.0.1", addr.Port)
	require.NoError(t, err)
	tg := newTarget("b1", spec, "127.0.0.1", addr.Port, b, pool, handle)

	s.insert(tg, time.Now())

	go s.run(context.Background())
	defer s.close()

	deadline := time.After(2 * time.Second)
	for !b.Healthy() {
		select {
		case <-deadline:
			t.Fatal("dispatcher never ran the due target")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestSchedulerSkipsAlreadyRunningTarget verifies the at-most-one-probe-
// per-target invariant: if a target comes due again before its prior
// attempt finished (running != stateIdle), the dispatcher must not start a
// second concurrent attempt for it.
func TestSchedulerSkipsAlreadyRunningTarget(t *testing.T) {
	pool := NewDialConnPool("")
	work := NewBoundedWorkerPool(2, 4)
	defer work.Close()

	s := newScheduler(pool, work)

	spec, err := NewSpec(RawSpec{Interval: time.Hour})
	require.NoError(t, err)
	handle, err := pool.Reference("127.0.0.1", 1)
	require.NoError(t, err)
	tg := newTarget("b1", spec, "127.0.0.1", 1, nil, pool, handle)
	atomic.StoreInt32(&tg.running, stateRunning) // simulate an attempt already in flight

	s.insert(tg, time.Now())

	go s.run(context.Background())
	defer s.close()

	time.Sleep(100 * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, int32(stateRunning), atomic.LoadInt32(&tg.running),
		"dispatcher must not flip a target that is already running back through submission")
}
