package circlog

import (
	"bytes"
	"fmt"
)

// ReadLines is the tail-window heuristic "show me the last N lines" entry
// that needs no cursor (spec.md §4.7, component C8). filter, if non-empty,
// is a substring match -- this differs deliberately from Read's prefix
// match (spec.md Open Questions, "ReadLines filter semantics divergence").
// estLineLen defaults to LineEstimateFactor when 0.
//
// Ported from original_source/src/circularflash.c: circularReadLines.
func (l *Log) ReadLines(buf []byte, lines uint32, filter string, estLineLen uint32) int {
	if !l.initialized || len(buf) == 0 {
		return 0
	}
	if estLineLen == 0 {
		estLineLen = LineEstimateFactor
	}
	if uint32(len(buf)) < estLineLen {
		return 0
	}

	l.enter()
	space := usedSpace(l.state, l.cfg.LogsLength)
	l.exit()

	searchLen := lines * estLineLen
	if searchLen > uint32(len(buf))-1 {
		searchLen = uint32(len(buf)) - 1
	}
	var seek uint32
	if space > searchLen {
		seek = space - searchLen
	}

	var remaining uint32
	n, _ := l.ReadLogPartial(buf, seek, searchLen, &remaining)
	if n == 0 {
		return 0
	}
	ret := uint32(n)

	// Trim to the last `lines` newline-delimited lines.
	lastStart := uint32(0)
	remainingLines := lines
	trimmed := false
	for i := int(ret) - 3; i >= 0; i-- {
		if buf[i] == '\n' {
			remainingLines--
			lastStart = uint32(i) + 1
		}
		if remainingLines == 0 {
			newRet := ret - (uint32(i) + 1)
			copy(buf, buf[uint32(i)+1:ret])
			ret = newRet
			buf[ret] = 0
			trimmed = true
			break
		}
	}

	if filter != "" {
		return l.applySubstringFilter(buf, int(ret), filter, lines)
	}
	if !trimmed && remainingLines > 0 {
		// Fewer than `lines` newlines were found: finalize on lastStart,
		// exactly as the source does when it falls through with lines>0.
		copy(buf, buf[lastStart:ret])
		ret -= lastStart
		buf[ret] = 0
	}
	return int(ret)
}

// applySubstringFilter implements the "differs from C7: substring, not
// prefix" half of spec.md §4.7 step 5-6.
func (l *Log) applySubstringFilter(buf []byte, n int, filter string, lines uint32) int {
	foundLen := 0
	lastLineStart := 0
	needle := []byte(filter)
	for i := 0; i < n; i++ {
		if buf[i] != '\n' {
			continue
		}
		line := buf[lastLineStart:i]
		if bytes.Contains(line, needle) {
			full := buf[lastLineStart : i+1]
			copy(buf[foundLen:], full)
			foundLen += len(full)
		}
		lastLineStart = i + 1
	}

	if foundLen == 0 {
		msg := fmt.Sprintf("** Search item '%s' not found in %d lines **\r\n", filter, lines)
		copy(buf, msg)
		return len(msg)
	}
	if foundLen < len(buf) {
		buf[foundLen] = 0
	}
	return foundLen
}
