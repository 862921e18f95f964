package circlog

// Cursor is a snapshot used for ordered reads (spec.md §3.1 "Cursor", aka
// circular_FILE). It freezes (head, tail) at Open time so a long scan is
// never invalidated by concurrent writes (spec.md §8.1 P6) -- bytes may
// still be overwritten in the underlying device, but the cursor's logical
// window never grows or shrinks underneath it.
type Cursor struct {
	snapHead, snapTail uint32
	seekPos            uint32
	flags              Flags
	valid              bool
	scratch            [SearchBufSize]byte
}

// Open snapshots head and tail under the lock and positions seekPos
// according to flags (spec.md §4.6, component C7).
//
// Ported from original_source/src/circularflash.c: circularFileOpen.
func (l *Log) Open(flags Flags) (*Cursor, Status) {
	if !l.initialized {
		return nil, StatusInit
	}

	l.enter()
	defer l.exit()

	cur := &Cursor{flags: flags}
	tail := l.state.tail
	head := l.state.head

	// Forward one sector if low on erased headroom, so the cursor never
	// points into a sector that pre-erase is about to recycle.
	eraseSpace := erasedSpace(l.state, l.cfg.LogsLength)
	shifted := eraseSpace < (l.sectorSize*2)+(l.sectorSize/2)
	if shifted {
		tail += l.sectorSize
		if tail >= l.cfg.LogsLength {
			tail -= l.cfg.LogsLength
		}
	}
	cur.snapTail = tail
	cur.snapHead = head

	space := rawSpace(head, tail, l.cfg.LogsLength)

	switch flags {
	case FlagsOldest:
		cur.seekPos = 0
		// tail only lands on a proven record start on a pristine mount or
		// a just-completed Clear (spec.md §8.1 P1), and only if the
		// headroom shift above left it untouched. Once eraseNextSector has
		// advanced tail past any eviction, byte 0 of the window may be the
		// tail fragment of a record that started before the now-erased
		// sector, so skip forward to the first newline the same way the
		// original source's search loop does.
		if !l.tailAtBoundary || shifted {
			desired := space
			if desired > uint32(len(cur.scratch)) {
				desired = uint32(len(cur.scratch))
			}
			var remaining uint32
			n := l.readSection(cur.scratch[:], tail, head, 0, space, desired, &remaining)
			for i := uint32(0); i < n; i++ {
				if cur.scratch[i] == '\n' {
					cur.seekPos = i + 1
					break
				}
			}
			if cur.seekPos == space {
				cur.seekPos = 0
			}
		}
	default: // FlagsNewest
		cur.seekPos = space
	}

	cur.valid = true
	return cur, StatusNone
}

func (l *Log) cursorSpace(cur *Cursor) uint32 {
	return rawSpace(cur.snapHead, cur.snapTail, l.cfg.LogsLength)
}

// Read reads lines from an open cursor in the given direction (spec.md
// §4.6, component C7). filter is a prefix match against the raw start of
// each line -- note this differs from ReadLines' substring filter
// (spec.md Open Questions, preserved deliberately). Returns the number of
// bytes written to out.
func (l *Log) Read(cur *Cursor, out []byte, dir Dir, lines int32, filter []byte) int {
	if cur == nil || !cur.valid {
		return 0
	}
	switch dir {
	case DirForward:
		return l.readForward(cur, out, lines, filter)
	case DirReverse:
		return l.readReverse(cur, out, lines, filter)
	default:
		return 0
	}
}

// readForward ports original_source/src/circularflash.c: readForward.
func (l *Log) readForward(cur *Cursor, out []byte, lines int32, filter []byte) int {
	space := l.cursorSpace(cur)
	if cur.seekPos == space {
		return 0
	}

	l.enter()
	defer l.exit()

	if lines == LinesReadAll {
		var remaining uint32
		desired := space - cur.seekPos
		if desired > uint32(len(out)) {
			desired = uint32(len(out))
		}
		n := l.readSection(out, cur.snapTail, cur.snapHead, cur.seekPos, space, desired, &remaining)
		cur.seekPos += n
		return int(n)
	}

	totalRet := 0
	for lines > 0 {
		var remaining uint32
		n := l.readSection(cur.scratch[:], cur.snapTail, cur.snapHead, cur.seekPos, space, uint32(len(cur.scratch)), &remaining)
		if n == 0 {
			return totalRet
		}
		lineStart := 0
		foundAny := false
		for i := uint32(0); i < n; i++ {
			if cur.scratch[i] != '\n' {
				continue
			}
			foundAny = true
			line := cur.scratch[lineStart : i+1]
			if matchesPrefix(line, filter) {
				if totalRet+len(line) > len(out) {
					return totalRet
				}
				copy(out[totalRet:], line)
				totalRet += len(line)
				lines--
			}
			lineStart = int(i) + 1
			cur.seekPos += uint32(len(line))
			if cur.seekPos >= space {
				return totalRet
			}
			if lines == 0 {
				break
			}
		}
		if !foundAny {
			// No newline in this window: stop rather than hang (Design
			// Notes, "Reverse scan hang avoidance" applies symmetrically
			// to the forward direction's fixed-size scratch window).
			return totalRet
		}
	}
	return totalRet
}

// readReverse ports original_source/src/circularflash.c: readBack.
func (l *Log) readReverse(cur *Cursor, out []byte, lines int32, filter []byte) int {
	space := l.cursorSpace(cur)

	l.enter()
	defer l.exit()

	totalRet := 0
	for lines > 0 && cur.seekPos > 0 {
		var seekPos, seekLen uint32
		if uint32(len(cur.scratch)) > cur.seekPos {
			seekPos = 0
			seekLen = cur.seekPos
		} else {
			seekPos = cur.seekPos - uint32(len(cur.scratch))
			seekLen = uint32(len(cur.scratch))
		}
		var remaining uint32
		n := l.readSection(cur.scratch[:], cur.snapTail, cur.snapHead, seekPos, space, seekLen, &remaining)
		if n == 0 {
			return totalRet
		}

		lineEnd := int32(n) - 1
		foundAny := false
		for i := int32(n) - 2; i >= 0; i-- {
			if cur.scratch[i] != '\n' {
				continue
			}
			foundAny = true
			lineLen := uint32(lineEnd - i)
			lineStart := cur.scratch[i+1 : i+1+int32(lineLen)]
			if matchesPrefix(lineStart, filter) {
				if totalRet+len(lineStart) > len(out) {
					return totalRet
				}
				copy(out[totalRet:], lineStart)
				totalRet += len(lineStart)
				lines--
			}
			lineEnd = i
			cur.seekPos -= lineLen
			if lines == 0 {
				break
			}
		}
		if !foundAny {
			// Window had no newline: stop without consuming it, so a
			// caller that retries doesn't spin (Design Notes, "Reverse
			// scan hang avoidance").
			return totalRet
		}
	}
	return totalRet
}

// matchesPrefix implements the cursor's prefix-match filter semantics
// (spec.md §4.6 "Filter semantics"). A nil/empty filter matches everything.
func matchesPrefix(line, filter []byte) bool {
	if len(filter) == 0 {
		return true
	}
	if len(line) < len(filter) {
		return false
	}
	for i := range filter {
		if line[i] != filter[i] {
			return false
		}
	}
	return true
}
