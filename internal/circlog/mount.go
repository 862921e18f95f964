package circlog

// Init mounts the log: it rebuilds (head, tail) from on-media byte
// patterns alone, exactly as spec.md §4.3 (C4) describes, because the
// format carries no superblock. Ported from
// original_source/src/circularflash.c: circularLogInit.
func (l *Log) Init() Status {
	l.enter()
	defer l.exit()

	l.state = fullExtent() // matches the C source's initial -1,-1 before recovery
	l.emptyFlag = false

	buf := l.cfg.WorkBuf
	dev := l.cfg.Device

	n, err := dev.Read(l.cfg.BaseAddress, buf[:4])
	if err != nil || n != 4 {
		l.debugf("mount: device error reading header")
		return StatusIO
	}

	var head, tail int64 = -1, -1
	sectors := l.sectorCount()

	if buf[0] == 0xFF {
		// Case A: region starts erased -- find tail first.
		tail = -1
		for i := uint32(1); i < sectors; i++ {
			n, err = dev.Read(l.cfg.BaseAddress+i*l.sectorSize, buf[:4])
			if err != nil || n != 4 {
				l.debugf("mount: device error scanning for tail")
				return StatusIO
			}
			if buf[0] != 0xFF {
				tail = int64(i * l.sectorSize)
				break
			}
		}
		if tail == -1 {
			l.debugf("device is empty")
			l.state = pristineExtent()
			l.emptyFlag = true
			l.tailAtBoundary = true
			l.initialized = true
			if err := l.maybeBuildIndex(); err != StatusNone {
				return err
			}
			return StatusNone
		}

		head = -1
		for i := uint32(tail); i < l.cfg.LogsLength; i += uint32(len(buf)) {
			readLen := uint32(len(buf))
			if i+readLen > l.cfg.LogsLength {
				readLen = l.cfg.LogsLength - i
			}
			n, err = dev.Read(l.cfg.BaseAddress+i, buf[:readLen])
			if err != nil || uint32(n) != readLen {
				l.debugf("mount: device error scanning for head")
				return StatusIO
			}
			if pos, ok := firstErased(buf[:readLen]); ok {
				head = int64(i + uint32(pos))
				break
			}
		}
		if head == -1 {
			head = 0
		}
	} else {
		// Case B: region starts written -- find head first.
		head = -1
		for i := uint32(0); i < l.cfg.LogsLength; i += uint32(len(buf)) {
			readLen := uint32(len(buf))
			if i+readLen > l.cfg.LogsLength {
				readLen = l.cfg.LogsLength - i
			}
			n, err = dev.Read(l.cfg.BaseAddress+i, buf[:readLen])
			if err != nil || uint32(n) != readLen {
				l.debugf("mount: device error scanning for head")
				return StatusIO
			}
			if pos, ok := firstErased(buf[:readLen]); ok {
				head = int64(i + uint32(pos))
				break
			}
		}
		if head == -1 {
			l.debugf("device is full")
			l.state = fullExtent()
			l.initialized = true
			// Index must still be reset to NoRecord here, exactly like the
			// empty-device and normal-mount paths above/below: usedSpace is
			// 0 for the full extent so buildIndex returns immediately after
			// resetIndex, but without this call a caller-provided Index
			// slice is left zero-valued, which isSentinel() does not treat
			// as NoRecord (spec.md §3.2 Invariant I).
			return l.maybeBuildIndex()
		}

		tail = -1
		for i := uint32(head)/l.sectorSize + 1; i < sectors; i++ {
			n, err = dev.Read(l.cfg.BaseAddress+i*l.sectorSize, buf[:4])
			if err != nil || n != 4 {
				l.debugf("mount: device error scanning for tail")
				return StatusIO
			}
			if buf[0] != 0xFF {
				tail = int64(i * l.sectorSize)
				break
			}
		}
		if tail == -1 {
			tail = 0
		}
	}

	l.state = classify(head, tail)
	l.initialized = true
	l.debugf("mounted: head=0x%x tail=0x%x erased=0x%x", head, tail, erasedSpace(l.state, l.cfg.LogsLength))

	return l.maybeBuildIndex()
}

// firstErased returns the index of the first 0xFF byte in p, if any.
func firstErased(p []byte) (int, bool) {
	for i, b := range p {
		if b == 0xFF {
			return i, true
		}
	}
	return 0, false
}
