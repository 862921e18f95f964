package circlog

// insertWrite is the "insertable write" of spec.md §4.2 (C3): it pads
// unaligned fragments with FLASH_ERASED (0xFF) and issues only
// program-unit aligned, program-unit sized physical writes. Padding with
// 0xFF is a no-op against erased bytes and is safe against already-written
// bytes only because Invariant W guarantees the engine never asks to
// program a byte that isn't currently erased.
//
// Ported from original_source/src/circularflash.c: circFlashInsertWrite.
func (l *Log) insertWrite(addr uint32, buf []byte) uint32 {
	unit := l.programUnit
	rem := addr % unit
	begin := addr - rem
	end := addr + uint32(len(buf))
	writeLen := ceilToUnit(end-begin, unit)

	if writeLen <= uint32(len(l.cfg.WorkBuf)) {
		return l.insertWriteFast(begin, rem, buf, writeLen)
	}
	return l.insertWriteStreaming(begin, rem, buf, writeLen)
}

func ceilToUnit(n, unit uint32) uint32 {
	if n%unit == 0 {
		return n
	}
	return (n/unit + 1) * unit
}

// insertWriteFast composes the whole padded region in WorkBuf and issues a
// single physical write (spec.md §4.2 step 2, "Fast path").
func (l *Log) insertWriteFast(begin, rem uint32, buf []byte, writeLen uint32) uint32 {
	scratch := l.cfg.WorkBuf[:writeLen]
	fillErased(scratch)
	copy(scratch[rem:], buf)
	n, err := l.cfg.Device.Write(l.cfg.BaseAddress+begin, scratch)
	if err != nil || uint32(n) != writeLen {
		return 0
	}
	return uint32(len(buf))
}

// insertWriteStreaming composes one program unit at a time when the
// padded region would not fit in WorkBuf (spec.md §4.2 step 3,
// "Streaming path").
func (l *Log) insertWriteStreaming(begin, rem uint32, buf []byte, writeLen uint32) uint32 {
	unit := l.programUnit
	startLen := uint32(len(buf))

	if rem != 0 {
		scratch := l.cfg.WorkBuf[:unit]
		fillErased(scratch)
		n := unit - rem
		if n > uint32(len(buf)) {
			n = uint32(len(buf))
		}
		copy(scratch[rem:], buf[:n])
		wn, err := l.cfg.Device.Write(l.cfg.BaseAddress+begin, scratch)
		if err != nil || uint32(wn) != unit {
			return 0
		}
		buf = buf[n:]
		begin += unit
		writeLen -= unit
	}

	for i := uint32(0); i < writeLen; i += unit {
		scratch := l.cfg.WorkBuf[:unit]
		fillErased(scratch)
		n := unit
		if uint32(len(buf)) < n {
			n = uint32(len(buf))
		}
		copy(scratch, buf[:n])
		wn, err := l.cfg.Device.Write(l.cfg.BaseAddress+begin+i, scratch)
		if err != nil || uint32(wn) != unit {
			return 0
		}
		buf = buf[n:]
	}
	return startLen
}

func fillErased(p []byte) {
	for i := range p {
		p[i] = 0xFF
	}
}
