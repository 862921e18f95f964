package circlog

// Write appends buf to the log (spec.md §4.4, component C5). A single
// call longer than one sector is silently truncated to SectorSize
// (spec.md Open Questions, "Size clamp at one sector per write" --
// deliberate, preserved). Returns the number of bytes actually persisted
// and StatusNone, or 0 and a non-StatusNone Status on failure. A failed
// call returns before head is moved: head is not advanced past any bytes a
// partial program may already have written, and the next append is
// programmed starting at that same head.
//
// Write never requires the first byte of buf to be anything in
// particular, but mount (Init) assumes records never begin with 0xFF --
// see spec.md's Open Questions on the first-byte-of-sector assumption.
//
// Ported from original_source/src/circularflash.c: circularWriteLog.
func (l *Log) Write(buf []byte) (int, Status) {
	if !l.initialized {
		return 0, StatusInit
	}
	if len(buf) > int(l.sectorSize) {
		buf = buf[:l.sectorSize]
	}
	length := uint32(len(buf))

	l.enter()
	defer l.exit()

	eraseSpace := erasedSpace(l.state, l.cfg.LogsLength)
	switch {
	case eraseSpace == 0:
		if !l.eraseWholeRegion() {
			return 0, StatusIO
		}
	case eraseSpace < 2*l.sectorSize:
		if !l.eraseNextSector() {
			return 0, StatusIO
		}
	}

	head, tail := l.state.head, l.state.tail
	headStart := head

	if head+length > l.cfg.LogsLength {
		firstLen := l.cfg.LogsLength - head
		n := l.insertWrite(l.cfg.BaseAddress+head, buf[:firstLen])
		if n != firstLen {
			l.debugf("write IO error (first half)")
			return 0, StatusIO
		}
		n = l.insertWrite(l.cfg.BaseAddress, buf[firstLen:])
		if n != length-firstLen {
			l.debugf("write IO error (second half)")
			return 0, StatusIO
		}
		head = length - firstLen
	} else {
		n := l.insertWrite(l.cfg.BaseAddress+head, buf)
		if n != length {
			l.debugf("write IO error")
			return 0, StatusIO
		}
		head += length
		if head >= l.cfg.LogsLength {
			head = 0
		}
	}

	l.state = classify(int64(head), int64(tail))
	l.updateIndexForNewRecord(headStart, buf)

	return int(length), StatusNone
}

// eraseWholeRegion handles spec.md §4.4 step 3's "EraseSpace == 0" branch:
// this only happens when the log was mounted into the full (-1,-1) state.
func (l *Log) eraseWholeRegion() bool {
	n, err := l.cfg.Device.Erase(l.cfg.BaseAddress, l.cfg.LogsLength)
	if err != nil || uint32(n) != l.cfg.LogsLength {
		l.debugf("erase IO error (whole region)")
		return false
	}
	l.debugf("entire region erased")
	l.state = pristineExtent()
	l.tailAtBoundary = true
	l.resetIndex()
	return true
}

// eraseNextSector handles the "EraseSpace < 2*sectorSize" pre-erase rule
// that guarantees Invariant W: one sector of headroom ahead of the writer
// at all times.
func (l *Log) eraseNextSector() bool {
	tail := l.state.tail
	n, err := l.cfg.Device.Erase(l.cfg.BaseAddress+tail, l.sectorSize)
	if err != nil || uint32(n) != l.sectorSize {
		l.debugf("erase IO error at 0x%x", l.cfg.BaseAddress+tail)
		return false
	}
	l.debugf("sector at 0x%x erased", l.cfg.BaseAddress+tail)
	l.resetIndexSector(tail / l.sectorSize)
	l.tailAtBoundary = false
	tail += l.sectorSize
	if tail >= l.cfg.LogsLength {
		tail = 0
	}
	l.state = classify(int64(l.state.head), int64(tail))
	return true
}
