package circlog

// extent is the tagged head/tail state called out in the Design Notes
// ("Sentinels vs. optionals"): rather than overloading two signed ints
// with magic (0,0)/(-1,-1) pairs the way the original C source does, the
// three states are named directly. erasedSpace/usedSpace/classify are the
// pure functions of C2 (spec.md §4.1), ported from
// original_source/src/circularflash.c: calculateErasedSpace/calculateSpace.
type extentKind int

const (
	extentCorrupt extentKind = iota
	extentPristine
	extentFull
	extentLive
)

type extent struct {
	kind       extentKind
	head, tail uint32
}

func pristineExtent() extent { return extent{kind: extentPristine} }
func fullExtent() extent     { return extent{kind: extentFull} }
func liveExtent(head, tail uint32) extent {
	return extent{kind: extentLive, head: head, tail: tail}
}

// classify maps a raw (head, tail) pair read back from a descriptor into
// its tagged state, exactly the case split of spec.md §3.2.
func classify(head, tail int64) extent {
	switch {
	case head == 0 && tail == 0:
		return pristineExtent()
	case head == -1 && tail == -1:
		return fullExtent()
	case head == tail:
		// Neither sentinel matched: corruption (spec.md §3.2 "'corrupted' when
		// head == tail and neither sentinel matches").
		return extent{kind: extentCorrupt}
	default:
		return liveExtent(uint32(head), uint32(tail))
	}
}

// erasedSpace implements spec.md §4.1/§3.2's erasedSpace function.
func erasedSpace(e extent, capacity uint32) uint32 {
	switch e.kind {
	case extentPristine:
		return capacity
	case extentFull:
		return 0
	case extentCorrupt:
		return 0
	default: // extentLive
		if e.head > e.tail {
			return capacity - (e.head - e.tail)
		}
		if e.head < e.tail {
			return capacity - (e.head + (capacity - e.tail))
		}
		return 0
	}
}

// usedSpace implements spec.md §3.2's usedSpace function, computed from the
// (tail, head) pair the same way original_source's calculateSpace does
// (it is not simply capacity-erasedSpace in the pristine/full cases).
func usedSpace(e extent, capacity uint32) uint32 {
	switch e.kind {
	case extentPristine:
		return 0
	case extentFull:
		return 0
	case extentCorrupt:
		return 0
	default: // extentLive
		if e.head > e.tail {
			return e.head - e.tail
		}
		if e.head < e.tail {
			return e.head + (capacity - e.tail)
		}
		return 0
	}
}

// corrupted reports whether e is the unrecoverable "head == tail, no
// sentinel matched" state (spec.md §7 "Corruption").
func (e extent) corrupted() bool { return e.kind == extentCorrupt }

// rawSpace computes used space directly from a (head, tail) pair without
// the pristine/full sentinel interpretation -- the same calculateSpace
// arithmetic the original source applies to cursor pointers, which (unlike
// the descriptor's head/tail) are never pristine or full sentinels once a
// cursor has been opened against a live or empty log.
func rawSpace(head, tail, capacity uint32) uint32 {
	switch {
	case head > tail:
		return head - tail
	case head < tail:
		return head + (capacity - tail)
	default:
		return 0
	}
}
