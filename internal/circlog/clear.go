package circlog

// Clear erases the entire region and resets the descriptor to pristine
// (spec.md §4.9, component C5's counterpart for full resets). Unlike
// Write's pre-erase, which erases only as much as it needs to stay ahead
// of the writer, Clear always erases the whole configured range.
//
// Ported from original_source/src/circularflash.c: circularClearLog.
func (l *Log) Clear() Status {
	if !l.initialized {
		return StatusInit
	}

	l.enter()
	defer l.exit()

	n, err := l.cfg.Device.Erase(l.cfg.BaseAddress, l.cfg.LogsLength)
	if err != nil || uint32(n) != l.cfg.LogsLength {
		l.debugf("IO error erasing region on Clear")
		return StatusIO
	}

	l.state = pristineExtent()
	l.emptyFlag = true
	l.tailAtBoundary = true
	l.resetIndex()
	l.debugf("cleared")
	return StatusNone
}
