package circlog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestConcurrentLogsAreIndependentUnderFanOut mounts several independently
// mutexed Log instances, each over its own device, and hammers them from
// concurrent goroutines. Nothing in spec.md promises safety for two
// goroutines sharing one Log without external synchronization (Non-goals:
// "no multi-threaded writer beyond a host mutex") -- this instead exercises
// the host-mutex discipline (P9) across many *independent* descriptors at
// once, the way a process embedding several circlog regions would.
func TestConcurrentLogsAreIndependentUnderFanOut(t *testing.T) {
	const numLogs = 8
	const writesPerLog = 40

	logs := make([]*Log, numLogs)

	var g errgroup.Group
	results := make([][]byte, numLogs)

	for i := 0; i < numLogs; i++ {
		dev := newTestDevice(256)
		logs[i] = newTestLog(t, dev, 256, false)
	}

	for i := 0; i < numLogs; i++ {
		i := i
		g.Go(func() error {
			l := logs[i]
			for n := 0; n < writesPerLog; n++ {
				line := seqLine(n)
				if _, st := l.Write(line); st != StatusNone {
					return fmt.Errorf("log %d write %d: status %v", i, n, st)
				}
			}
			cur, st := l.Open(FlagsOldest)
			if st != StatusNone {
				return fmt.Errorf("log %d open: status %v", i, st)
			}
			out := make([]byte, 4096)
			n := l.Read(cur, out, DirForward, LinesReadAll, nil)
			results[i] = append([]byte(nil), out[:n]...)
			return nil
		})
	}

	require.NoError(t, g.Wait())

	// Every log wrapped identically (same capacity, same write sequence),
	// so every survivor slice must be byte-identical: concurrent writers on
	// distinct Log descriptors must not observe or corrupt each other's
	// state (they share no Locker, no Device, no WorkBuf).
	for i := 1; i < numLogs; i++ {
		assert.Equal(t, results[0], results[i], "log %d diverged from log 0", i)
	}
	for i := 0; i < numLogs; i++ {
		assert.NotEmpty(t, results[i])
	}
}
