package probe

import (
	"log"
	"sync/atomic"
	"time"
)

// Tri-state values for target.running (spec.md §5 "safe teardown handoff").
const (
	stateIdle    int32 = 0
	stateRunning int32 = 1
	stateDoomed  int32 = -1
)

// target is the poller's private per-backend probing state (spec.md §3
// "target"). It is reachable only through the poller's internal map/heap or
// through Backend.probe. Its fields are read and written under
// scheduler.mu, with two exceptions: poke fills bits, last and respBuf
// without a lock while running is stateRunning, and running itself is
// coordinated by the dispatcher and the task body via atomics so Remove can
// hand off teardown without a lock held across the in-flight probe
// (spec.md §5).
type target struct {
	id string

	spec Spec
	host string
	port int
	req  []byte // precomputed request buffer (spec.md §4.1 buildRequest)

	respBuf [responseLineBufSize]byte

	bits bitmaps
	last time.Duration
	avg  float64
	rate int
	good int

	due     time.Time
	heapIdx int

	running int32 // stateIdle | stateRunning | stateDoomed

	backend *Backend // non-owning; nil once detached
	pool    ConnPool
	handle  PoolHandle // taken once at Insert, released in Remove (idle) or at task exit (doomed)
}

func newTarget(id string, spec Spec, host string, port int, backend *Backend, pool ConnPool, handle PoolHandle) *target {
	t := &target{
		id:      id,
		spec:    spec,
		host:    host,
		port:    port,
		backend: backend,
		pool:    pool,
		handle:  handle,
		heapIdx: -1,
		good:    spec.Initial,
	}
	t.req = buildRequest(spec, host)
	for i := 0; i < spec.Initial; i++ {
		t.bits.set(bitHappy)
		t.bits.shift()
	}
	return t
}

// startPoke prepares the target for a fresh attempt: shift every history
// bitmap left by one, and clear last and the response buffer so a probe
// that fails before writing anything leaves no stale data behind
// (spec.md §4.3 startPoke). Called by scheduler.runTask under scheduler.mu
// at the start of the worker-pool task, immediately before poke.
func (t *target) startPoke() {
	t.bits.shift()
	t.last = 0
	for i := range t.respBuf {
		t.respBuf[i] = 0
	}
}

// hasPoked runs after poke() returns: it folds this attempt's verdict bits
// into the rolling average and the good count, drives the two-state health
// machine, and publishes the result to the attached Backend. Called under
// scheduler.mu from the worker-pool task body (spec.md §4.3 hasPoked,
// §4.5 task body).
func (t *target) hasPoked(now time.Time) {
	if t.bits[bitHappy]&1 != 0 {
		if t.rate < AvgRate {
			t.rate++
		}
		t.avg += (float64(t.last) - t.avg) / float64(t.rate)
	}

	t.good = t.bits.good(t.spec.Window)
	healthy := t.good >= t.spec.Threshold

	var transitioned bool
	if t.backend != nil {
		transitioned = t.backend.setHealth(healthy, t.bits[bitHappy], now)
	}

	log.Printf("probe %s %s:%d bits=%s avg=%s good=%d/%d healthy=%t changed=%t",
		t.id, t.host, t.port, t.bits.newestSummary(), t.avgDuration(), t.good, t.spec.Window, healthy, transitioned)
}

func (t *target) avgDuration() time.Duration {
	return time.Duration(t.avg)
}

// markDoomed implements the Remove handoff (spec.md §5): if no probe is in
// flight it claims the target itself and reports immediate reclaim; if a
// probe is in flight it flips running to stateDoomed and leaves teardown to
// the task body's own stateDoomed check once poke returns.
func (t *target) markDoomed() (immediate bool) {
	if atomic.CompareAndSwapInt32(&t.running, stateIdle, stateDoomed) {
		return true
	}
	atomic.CompareAndSwapInt32(&t.running, stateRunning, stateDoomed)
	return false
}
