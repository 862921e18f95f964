package circlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"circlog/internal/flashio"
)

// testLayout is small enough to make sector boundaries and wrap-around
// easy to exercise deliberately within a unit test.
const (
	testSectorSize  uint32 = 64
	testProgramUnit uint32 = 16
	testMaxDateLen  uint32 = 8
)

func newTestDevice(capacity uint32) *flashio.SimFile {
	return flashio.NewSimFile(capacity)
}

func newTestLog(t *testing.T, dev flashio.Device, capacity uint32, indexed bool) *Log {
	t.Helper()
	cfg := Config{
		Name:        "test",
		BaseAddress: 0,
		LogsLength:  capacity,
		SectorSize:  testSectorSize,
		ProgramUnit: testProgramUnit,
		MaxDateLen:  testMaxDateLen,
		Device:      dev,
	}
	if indexed {
		cfg.Index = make([]IndexEntry, capacity/testSectorSize)
		cfg.ParseTime = parseDecimalPrefix
	}
	l, err := New(cfg)
	require.NoError(t, err)
	st := l.Init()
	require.Equal(t, StatusNone, st)
	return l
}

// parseDecimalPrefix reads a fixed-width 4-digit decimal counter prefix,
// e.g. "0007 hello\n" -> 7. Parsing stops at the first non-digit, so a
// line with no leading digit parses as 0.
func parseDecimalPrefix(line []byte) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(line); i++ {
		c := line[i]
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + uint32(c-'0')
	}
	return v
}

// seqLine produces a fixed-width 10-byte line so callers can reason about
// exact byte offsets across many writes: "%04d-%04d\n".
func seqLine(n int) []byte {
	return []byte(fmt.Sprintf("%04d-%04d\n", n, n))
}

// failAfterDevice wraps a Device and returns an IO error starting from the
// nth call to any of Read/Write/Erase (1-indexed), for testing that the
// host mutex is always released on an error path (spec.md §8.1 P9).
type failAfterDevice struct {
	inner flashio.Device
	calls int
	failN int
}

func (f *failAfterDevice) shouldFail() bool {
	f.calls++
	return f.failN > 0 && f.calls >= f.failN
}

func (f *failAfterDevice) Read(addr uint32, p []byte) (int, error) {
	if f.shouldFail() {
		return 0, fmt.Errorf("injected read failure")
	}
	return f.inner.Read(addr, p)
}

func (f *failAfterDevice) Write(addr uint32, p []byte) (int, error) {
	if f.shouldFail() {
		return 0, fmt.Errorf("injected write failure")
	}
	return f.inner.Write(addr, p)
}

func (f *failAfterDevice) Erase(addr, length uint32) (int, error) {
	if f.shouldFail() {
		return 0, fmt.Errorf("injected erase failure")
	}
	return f.inner.Erase(addr, length)
}
