package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

const responseLineBufSize = 128

// poke performs a single probe attempt (spec.md §4.2). It never retries
// within an attempt and never touches the backend or the heap, and takes no
// lock — it only mutates the target fields the dispatcher guarantees no
// other goroutine is touching while running == 1 (spec.md §5). The TCP-pool
// reference itself is taken once, at Insert, and released in Remove or at
// task exit (spec.md §4.6) — poke only ever opens against the cached handle.
func poke(ctx context.Context, pool ConnPool, t *target) {
	start := time.Now()
	deadline := start.Add(t.spec.Timeout)

	conn, fam, err := pool.Open(ctx, t.handle, deadline)
	if err != nil {
		// Connect failure is a silent miss (spec.md §7).
		return
	}
	defer conn.Close()

	switch fam {
	case familyIPv4:
		t.bits.set(bitGoodIPv4)
	case familyIPv6:
		t.bits.set(bitGoodIPv6)
	default:
		panic("probe: connected socket has unrecognized address family")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}

	conn.SetWriteDeadline(deadline)
	n, err := conn.Write(t.req)
	if err != nil || n != len(t.req) {
		t.bits.set(bitErrXmit)
		return
	}
	t.bits.set(bitGoodXmit)

	remaining = time.Until(deadline)
	if remaining <= 0 {
		return
	}

	total, readErr := readResponse(conn, t.respBuf[:], deadline)
	if readErr != nil {
		t.bits.set(bitErrRecv)
		return
	}
	if total == 0 {
		return
	}

	t.last = time.Since(start)
	t.bits.set(bitGoodRecv)

	status, ok := parseStatusLine(t.respBuf[:])
	if ok && status == t.spec.ExpectedStatus {
		t.bits.set(bitHappy)
	}
}

// readResponse fills buf (the 128-byte response-line buffer, spec.md §3)
// first, then drains any remainder into a scratch buffer until EOF,
// honoring the deadline on every iteration (spec.md §4.2 step 6).
func readResponse(conn net.Conn, buf []byte, deadline time.Time) (total int, err error) {
	filled := 0
	scratch := make([]byte, 4096)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return total, nil
		}
		conn.SetReadDeadline(deadline)

		var n int
		if filled < len(buf) {
			n, err = conn.Read(buf[filled:])
		} else {
			n, err = conn.Read(scratch)
		}

		if n > 0 {
			total += n
			if filled < len(buf) {
				filled += n
				if filled > len(buf) {
					filled = len(buf)
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return total, nil
			}
			return total, err
		}
	}
}

// parseStatusLine NUL-terminates at the first CR or LF and scans the
// status line (spec.md §4.2 step 9): "HTTP/<version> <status> [<reason>]".
func parseStatusLine(buf []byte) (status int, ok bool) {
	end := len(buf)
	for i, b := range buf {
		if b == '\r' || b == '\n' {
			end = i
			break
		}
	}
	line := string(buf[:end])

	var version string
	var reason string
	if _, err := fmt.Sscanf(line, "HTTP/%s %d %s", &version, &status, &reason); err == nil {
		return status, true
	}
	// Reason phrase may be absent or contain spaces; retry matching just
	// the required fields.
	if _, err := fmt.Sscanf(line, "HTTP/%s %d", &version, &status); err == nil {
		return status, true
	}
	return 0, false
}
