package circlog

// readSection is the pure translation of a logical (seek, desired) range
// against a frozen (tail, head, capacity) window into one or two physical
// reads (spec.md §4.5, component C6). It never touches l.state -- callers
// pass in whatever snapshot they froze (the live descriptor state for
// ReadLogPartial, a Cursor's snapHead/snapTail for Read).
//
// Ported from original_source/src/circularflash.c: circularReadSection.
func (l *Log) readSection(buf []byte, tail, head uint32, seek uint32, space uint32, desired uint32, remaining *uint32) uint32 {
	if space == 0 || desired == 0 {
		*remaining = 0
		return 0
	}

	base := l.cfg.BaseAddress
	capacity := l.cfg.LogsLength

	if head > tail {
		n, err := l.cfg.Device.Read(base+tail+seek, buf[:desired])
		if err != nil || uint32(n) != desired {
			l.debugf("IO error reading range")
			*remaining = 0
			return 0
		}
		*remaining = space - seek - desired
		return desired
	}

	// head < tail: the window wraps.
	firstLen := capacity - tail
	if seek >= firstLen {
		// Entirely in the post-wrap half.
		n, err := l.cfg.Device.Read(base+(seek-firstLen), buf[:desired])
		if err != nil || uint32(n) != desired {
			l.debugf("IO error reading range")
			*remaining = 0
			return 0
		}
		*remaining = space - seek - desired
		return desired
	}

	if seek+desired+tail > capacity {
		// Straddles the wrap boundary.
		secondLen := capacity - (tail + seek)
		if secondLen > 0 {
			n, err := l.cfg.Device.Read(base+tail+seek, buf[:secondLen])
			if err != nil || uint32(n) != secondLen {
				l.debugf("IO error reading range (pre-wrap half)")
				*remaining = 0
				return 0
			}
		}
		n, err := l.cfg.Device.Read(base, buf[secondLen:desired])
		if err != nil || uint32(n) != desired-secondLen {
			l.debugf("IO error reading range (post-wrap half)")
			*remaining = 0
			return 0
		}
		*remaining = space - seek - desired
		return desired
	}

	// Fully in the pre-wrap half, no straddle.
	n, err := l.cfg.Device.Read(base+tail+seek, buf[:desired])
	*remaining = space - seek - desired
	if err != nil {
		return 0
	}
	return uint32(n)
}

// ReadLogPartial reads up to desired bytes starting at seek bytes from the
// start of the log's used range (spec.md §4.5/§6.4). *remaining is set to
// the bytes left after this read. Returns 0 if not yet initialized.
func (l *Log) ReadLogPartial(out []byte, seek uint32, desired uint32, remaining *uint32) (int, Status) {
	if !l.initialized {
		return 0, StatusInit
	}

	l.enter()
	defer l.exit()

	space := usedSpace(l.state, l.cfg.LogsLength)
	if seek >= space {
		*remaining = 0
		return 0, StatusNone
	}
	if desired > space-seek {
		desired = space - seek
	}
	if desired > uint32(len(out)) {
		desired = uint32(len(out))
	}
	n := l.readSection(out, l.state.tail, l.state.head, seek, space, desired, remaining)
	return int(n), StatusNone
}
