package circlog

// The optional per-sector timestamp index (spec.md §4.8, component C9).
// Index and ParseTime are a both-or-neither capability pair (enforced in
// New); every function here is a safe no-op when Config.Index is nil.

func (l *Log) indexEnabled() bool { return l.cfg.Index != nil }

// resetIndex resets every slot to the NoRecord sentinel (spec.md §4.9
// Clear, and §4.4 step 3's "whole region erased" branch).
func (l *Log) resetIndex() {
	if !l.indexEnabled() {
		return
	}
	for i := range l.cfg.Index {
		l.cfg.Index[i] = NoRecord
	}
}

// resetIndexSector resets one sector's slot, called whenever that sector
// is erased (spec.md Invariant I: "Sectors freed by erase MUST be reset
// to the 0xFFFFFFFF sentinel").
func (l *Log) resetIndexSector(sector uint32) {
	if !l.indexEnabled() {
		return
	}
	l.cfg.Index[sector] = NoRecord
}

// updateIndexForNewRecord implements spec.md §4.4 step 6: if the sector
// the just-written record started in has no recorded first line yet,
// record this one.
func (l *Log) updateIndexForNewRecord(headStart uint32, buf []byte) {
	if !l.indexEnabled() || len(buf) == 0 {
		return
	}
	sector := headStart / l.sectorSize
	if l.cfg.Index[sector].Time != NoRecord.Time {
		return
	}
	l.cfg.Index[sector] = IndexEntry{
		FirstLine: headStart % l.sectorSize,
		Time:      l.cfg.ParseTime(buf),
	}
}

// maybeBuildIndex is called once at the end of Init, if indexing is
// configured (spec.md §4.3 step 5).
func (l *Log) maybeBuildIndex() Status {
	if !l.indexEnabled() {
		return StatusNone
	}
	return l.buildIndex()
}

// buildIndex rebuilds the whole index from scratch: every slot reset to
// NoRecord, then findFirstLine run for every sector wholly inside the used
// range (spec.md §4.8). The sector containing head is always partially
// (or not at all) used and is excluded, whether or not the range wraps.
func (l *Log) buildIndex() Status {
	l.resetIndex()
	if l.state.corrupted() {
		return StatusNone
	}
	if usedSpace(l.state, l.cfg.LogsLength) == 0 {
		return StatusNone
	}

	count := l.sectorCount()
	tailSector := l.state.tail / l.sectorSize
	headSector := l.state.head / l.sectorSize
	n := (headSector + count - tailSector) % count

	for i := uint32(0); i < n; i++ {
		sector := (tailSector + i) % count
		if status := l.findFirstLine(sector); status != StatusNone {
			return status
		}
	}
	return StatusNone
}

// findFirstLine implements spec.md §4.8's per-sector scan: read
// ProgramUnit+MaxDateLen bytes from the sector start, find the first
// newline, and record (time, firstLine) for the line that starts right
// after it. If no newline appears in the probed window the sector is left
// at the NoRecord sentinel.
func (l *Log) findFirstLine(sector uint32) Status {
	probeLen := l.programUnit + l.maxDateLen
	buf := l.cfg.WorkBuf[:probeLen]
	n, err := l.cfg.Device.Read(l.cfg.BaseAddress+sector*l.sectorSize, buf)
	if err != nil || uint32(n) != probeLen {
		l.debugf("index: device error probing sector %d", sector)
		return StatusIO
	}
	pos := -1
	for i, b := range buf {
		if b == '\n' {
			pos = i
			break
		}
	}
	if pos < 0 || pos+1 >= len(buf) {
		return StatusNone
	}
	firstLine := uint32(pos + 1)
	l.cfg.Index[sector] = IndexEntry{
		FirstLine: firstLine,
		Time:      l.cfg.ParseTime(buf[firstLine:]),
	}
	return StatusNone
}

// IndexedSearch returns the record with the exact timestamp `when`, or 0
// if no such record exists -- this is an exact-match search, never a
// floor/ceiling search (spec.md §8.1 P8, component C9).
//
// The index snapshot is taken under the lock (index entries are mutated by
// Init/Write/Clear under the same lock); the per-sector byte scan that
// follows uses the public, independently-locking ReadLogPartial so this
// call never holds the lock while doing IO, avoiding self-deadlock on a
// plain (non-reentrant) sync.Mutex.
func (l *Log) IndexedSearch(buf []byte, when uint32) int {
	if !l.initialized || !l.indexEnabled() {
		return 0
	}

	l.enter()
	state := l.state
	count := l.sectorCount()
	indexSnapshot := make([]IndexEntry, len(l.cfg.Index))
	copy(indexSnapshot, l.cfg.Index)
	l.exit()

	if state.corrupted() {
		return 0
	}

	tailSector := state.tail / l.sectorSize
	headSector := state.head / l.sectorSize
	var prevTime uint32 = 0xFFFFFFFF
	for i := uint32(0); i < count; i++ {
		sector := (headSector + count - i) % count
		entry := indexSnapshot[sector]
		if entry.isSentinel() {
			continue
		}
		if when < prevTime && when >= entry.Time {
			return l.findLogAtSector(buf, entry, sector, when)
		}
		prevTime = entry.Time
		if sector == tailSector {
			break
		}
	}
	return 0
}

// findLogAtSector scans forward within one sector from its recorded first
// line, parsing each line's timestamp until an exact match or overshoot.
// entry.FirstLine is sector-relative; ReadLogPartial's seek is relative to
// the log's logical start (the tail), so the absolute physical offset is
// converted to a logical seek before every read.
func (l *Log) findLogAtSector(buf []byte, entry IndexEntry, sector uint32, when uint32) int {
	physical := sector*l.sectorSize + entry.FirstLine

	l.enter()
	tail := l.state.tail
	capacity := l.cfg.LogsLength
	l.exit()
	seek := (physical + capacity - tail) % capacity

	scratch := make([]byte, SearchBufSize)
	for {
		var remaining uint32
		n, _ := l.ReadLogPartial(scratch, seek, uint32(len(scratch)), &remaining)
		if n == 0 {
			return 0
		}
		lineStart := 0
		for i := 0; i < n; i++ {
			if scratch[i] != '\n' {
				continue
			}
			line := scratch[lineStart : i+1]
			stamp := l.cfg.ParseTime(line)
			if stamp == when {
				m := copy(buf, line)
				return m
			}
			if stamp > when {
				return 0
			}
			seek += uint32(i + 1 - lineStart)
			lineStart = i + 1
		}
		if lineStart == 0 {
			// No newline in this window: can't make progress safely.
			return 0
		}
	}
}
