package probe

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// writeStatus renders one backend's status (spec.md §6 "Status render").
// The summary line carries bits.newestSummary, the happy bitmap, humanized
// average latency, good/window and health; the detailed view adds a header,
// the average round-trip, a ruler, and the 64-probe history, oldest to
// newest, of happy and of every non-empty bitmap.
func writeStatus(w io.Writer, backend *Backend, t *target, details bool) {
	stats := backend.Stats()
	fmt.Fprintf(w, "%-20s %-20s bits=%s happy=%#016x avg=%-8s good=%d/%d healthy=%t changed=%s\n",
		backend.ID, fmt.Sprintf("%s:%d", backend.Host, backend.Port),
		t.bits.newestSummary(), stats.Happy, humanizeDuration(t.avgDuration()), t.good, t.spec.Window,
		backend.Healthy(), humanize.Time(backend.HealthChanged()))

	if !details {
		return
	}

	fmt.Fprintf(w, "Current states for %s:\n", backend.ID)
	fmt.Fprintf(w, "average round-trip: %s\n", humanizeDuration(t.avgDuration()))
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for i, d := range bitmapTable {
		if !d.alwaysShow && t.bits[i] == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-14s %s\n", d.label, strip(t.bits[i], d.glyph))
	}
}

// humanizeDuration renders a duration the way the teacher's CLI surfaces
// round-trip times: sub-millisecond as "0ms", otherwise the whole-millisecond
// count.
func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0ms"
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
