package flashio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

// Erased is the byte value an erased flash cell reads back as.
const Erased byte = 0xFF

// SimFile is a file-backed simulation of a NOR-flash-like device, used
// only for testing (spec.md §1 lists this as an external collaborator:
// "file-backed simulation of flash used only for testing"). It keeps the
// full region in memory and snapshots it to a backing file with
// github.com/natefinch/atomic, the same atomic-rename-over-target pattern
// internal/diskimage/atomic.go hand-rolled for disk image writes in the
// teacher repo.
//
// SimFile enforces the bit-clear-only semantics a real NOR chip has:
// each written byte is ANDed into the cell, so a 0xFF byte (the pad value
// of an insertable write) leaves the cell as it is, and Write refuses any
// other byte that would need a 0 bit set back to 1 outside of Erase,
// catching violations of Invariant W / property P4 in tests rather than
// silently producing data a real chip never would.
type SimFile struct {
	mu       sync.Mutex
	data     []byte
	path     string
	writeLog []WriteRecord // test observability: every physical Write call, in order
}

// WriteRecord captures one physical Write call, for property tests that
// assert program-unit alignment (spec.md §8.1 P3).
type WriteRecord struct {
	Addr uint32
	Len  uint32
}

// NewSimFile creates an all-erased in-memory device of the given capacity.
func NewSimFile(capacity uint32) *SimFile {
	data := make([]byte, capacity)
	for i := range data {
		data[i] = Erased
	}
	return &SimFile{data: data}
}

// OpenSimFile loads path if it exists and matches capacity, otherwise
// creates a fresh all-erased image backed by path. Call Persist to save
// state between runs (the demo CLI does this after every write/clear).
func OpenSimFile(path string, capacity uint32) (*SimFile, error) {
	sf := &SimFile{path: path}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil && uint32(len(raw)) == capacity:
		sf.data = raw
	case err == nil:
		return nil, fmt.Errorf("flashio: existing image %q is %d bytes, want %d", path, len(raw), capacity)
	case os.IsNotExist(err):
		sf.data = make([]byte, capacity)
		for i := range sf.data {
			sf.data[i] = Erased
		}
	default:
		return nil, err
	}
	return sf, nil
}

// Persist snapshots the current contents to the backing file atomically.
// A no-op for purely in-memory simulators (path == "").
func (s *SimFile) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	return atomic.WriteFile(s.path, bytes.NewReader(s.data))
}

func (s *SimFile) Read(addr uint32, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(addr)+uint64(len(p)) > uint64(len(s.data)) {
		return 0, fmt.Errorf("flashio: read [0x%x,0x%x) out of range", addr, uint64(addr)+uint64(len(p)))
	}
	copy(p, s.data[addr:])
	return len(p), nil
}

func (s *SimFile) Write(addr uint32, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(addr)+uint64(len(p)) > uint64(len(s.data)) {
		return 0, fmt.Errorf("flashio: write [0x%x,0x%x) out of range", addr, uint64(addr)+uint64(len(p)))
	}
	region := s.data[addr : uint64(addr)+uint64(len(p))]
	for i, b := range p {
		// A real NOR cell can only clear bits. A 0xFF byte is padding and
		// leaves the cell unchanged; for any other byte, (prev & b) == b means
		// every bit that is 1 in b is still 1 in prev -- i.e. no 0->1
		// transition was requested.
		if b != Erased && region[i]&b != b {
			return 0, fmt.Errorf("flashio: illegal 1-bit write at 0x%x: %08b -> %08b without erase", addr+uint32(i), region[i], b)
		}
		region[i] &= b
	}
	s.writeLog = append(s.writeLog, WriteRecord{Addr: addr, Len: uint32(len(p))})
	return len(p), nil
}

func (s *SimFile) Erase(addr, length uint32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(addr)+uint64(length) > uint64(len(s.data)) {
		return 0, fmt.Errorf("flashio: erase [0x%x,0x%x) out of range", addr, uint64(addr)+uint64(length))
	}
	region := s.data[addr : addr+length]
	for i := range region {
		region[i] = Erased
	}
	return int(length), nil
}

// WriteLog returns a copy of every physical Write call observed so far, in
// order, for assertions like "every write is program-unit aligned".
func (s *SimFile) WriteLog() []WriteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WriteRecord, len(s.writeLog))
	copy(out, s.writeLog)
	return out
}

// Snapshot returns a copy of the full region contents.
func (s *SimFile) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// Crash simulates a power loss partway through a program-unit write: bytes
// from addr+keep onward within the same unit are left at whatever they
// were before the in-flight write (normally still Erased), reproducing the
// "partial-write crash consistency" behavior spec.md's Open Questions
// documents as expected, rather than fixed.
func (s *SimFile) Crash(addr uint32, full []byte, keep int) (int, error) {
	if keep < 0 || keep > len(full) {
		return 0, fmt.Errorf("flashio: bad keep %d for %d bytes", keep, len(full))
	}
	return s.Write(addr, full[:keep])
}

var _ io.Closer = (*SimFile)(nil)

// Close persists final state; SimFile has no other resources to release.
func (s *SimFile) Close() error {
	return s.Persist()
}
