package probe

import "math/bits"

// bitmapID names one of the seven history bitmaps (spec.md §3 "History
// bitmaps"). Re-expressed at runtime as a small descriptor table rather
// than the macro-expanded table the original C source uses (spec.md §9).
type bitmapID int

const (
	bitHappy bitmapID = iota
	bitGoodIPv4
	bitGoodIPv6
	bitGoodXmit
	bitGoodRecv
	bitErrXmit
	bitErrRecv
	bitmapCount
)

// bitDescriptor describes one history bitmap: its log glyph (spec.md §6
// "<bits>" field) and its detail-view label (spec.md §6 "Status render").
type bitDescriptor struct {
	name       string
	glyph      byte
	label      string
	alwaysShow bool
}

// bitmapTable is iterated wherever the seven criteria need uniform
// treatment: shifting on startPoke, rendering the log summary, and
// rendering the CLI detail view.
var bitmapTable = [bitmapCount]bitDescriptor{
	bitHappy:    {name: "happy", glyph: 'H', label: "Happy", alwaysShow: true},
	bitGoodIPv4: {name: "good_ipv4", glyph: '4', label: "IPv4 connect"},
	bitGoodIPv6: {name: "good_ipv6", glyph: '6', label: "IPv6 connect"},
	bitGoodXmit: {name: "good_xmit", glyph: 'X', label: "Transmit ok"},
	bitGoodRecv: {name: "good_recv", glyph: 'R', label: "Receive ok"},
	bitErrXmit:  {name: "err_xmit", glyph: 'x', label: "Transmit error"},
	bitErrRecv:  {name: "err_recv", glyph: 'r', label: "Receive error"},
}

// bitmaps is the set of seven 64-bit shift registers, bit 0 = most recent
// probe. Kept as a plain array so shifting, rendering, and popcount all
// iterate the same way.
type bitmaps [bitmapCount]uint64

// shift moves every bitmap left by one, clearing bit 0 to await this
// probe's verdicts (spec.md §4.3 startPoke).
func (b *bitmaps) shift() {
	for i := range b {
		b[i] <<= 1
	}
}

// set sets bit 0 of the named bitmap.
func (b *bitmaps) set(id bitmapID) {
	b[id] |= 1
}

// newestSummary renders the newest bit of every bitmap as one glyph-or-dash
// character per criterion, in table order (spec.md §6 log-line "<bits>").
func (b *bitmaps) newestSummary() string {
	out := make([]byte, bitmapCount)
	for i, d := range bitmapTable {
		if b[i]&1 != 0 {
			out[i] = d.glyph
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}

// good returns the popcount of the low `window` bits of happy
// (spec.md §3 invariant 5).
func (b *bitmaps) good(window int) int {
	mask := uint64(1)<<uint(window) - 1
	return bits.OnesCount64(b[bitHappy] & mask)
}

// strip renders one bitmap oldest-to-newest as a 64-character glyph-or-dash
// string (spec.md §9 "Status bitmap rendering" — opposite of the in-memory
// bit-0-is-newest layout, so iterate high bit to low bit).
func strip(v uint64, glyph byte) string {
	out := make([]byte, 64)
	for i := 0; i < 64; i++ {
		bitIdx := uint(63 - i)
		if v&(1<<bitIdx) != 0 {
			out[i] = glyph
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}
