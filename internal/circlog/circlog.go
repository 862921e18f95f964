// Package circlog implements a circular, wear-aware, text-line log store
// layered over a NOR-flash-like device (component C1, see internal/flashio).
// It is the direct Go port of spec.md's core: mount/recovery from on-media
// byte patterns alone, program-unit aligned "insertable" appends, a
// pre-erase wrap discipline, random/line/reverse/filtered reads, and an
// optional per-sector timestamp index.
//
// The engine is single-threaded internally; every public entry acquires
// the caller-supplied Locker on entry and releases it on every exit path,
// mirroring the FLASH_MUTEX_ENTER/EXIT discipline of the original source.
package circlog

import (
	"fmt"
	"sync"

	"circlog/internal/flashio"
)

// Defaults, overridable per Config (spec.md §6.2).
const (
	DefaultSectorSize   uint32 = 0x1000
	DefaultProgramUnit  uint32 = 0x100
	DefaultMaxDateLen   uint32 = 32
	LineEstimateFactor  uint32 = 64
	SearchBufSize       int    = 1024
	LinesReadAll        int32  = -1
)

// Flags selects a Cursor's initial seek position (spec.md §3.1, CIRC_FLAGS).
type Flags int

const (
	FlagsOldest Flags = iota
	FlagsNewest
)

// Dir selects Read's scan direction (spec.md §3.1, CIRC_DIR).
type Dir int

const (
	DirForward Dir = iota
	DirReverse
)

// IndexEntry is one per-sector timestamp index slot (spec.md §3.1, C9).
type IndexEntry struct {
	Time      uint32
	FirstLine uint32
}

// NoRecord is the sentinel IndexEntry meaning "no known first line in this
// sector" (spec.md §3.2 Invariant I).
var NoRecord = IndexEntry{Time: 0xFFFFFFFF, FirstLine: 0xFFFFFFFF}

func (e IndexEntry) isSentinel() bool { return e == NoRecord }

// Config configures one log region on one device. It plays the role of
// the C source's circ_log_t descriptor fields that are supplied rather
// than computed: everything the caller owns.
type Config struct {
	// Name is an opaque display label, used only in log messages.
	Name string

	// BaseAddress and LogsLength describe the byte range on Device this
	// log owns. LogsLength must be a positive multiple of SectorSize.
	BaseAddress uint32
	LogsLength  uint32

	// SectorSize and ProgramUnit default to DefaultSectorSize/DefaultProgramUnit
	// when zero. ProgramUnit must divide SectorSize.
	SectorSize  uint32
	ProgramUnit uint32

	// MaxDateLen bounds how many bytes ParseTime may read from a line;
	// defaults to DefaultMaxDateLen. Must be strictly less than ProgramUnit.
	MaxDateLen uint32

	// WorkBuf is scratch space for reading sector headers and composing
	// program-unit-aligned writes. Must not be touched by the caller while
	// any circlog call is in flight (spec.md §5). Required length is at
	// least ProgramUnit+MaxDateLen; New allocates one of that size if nil.
	WorkBuf []byte

	// Device is the flash adapter collaborator (component C1).
	Device flashio.Device

	// Locker is the host mutex collaborator. If nil, New installs a plain
	// *sync.Mutex -- supply a no-op Locker explicitly if the caller
	// guarantees single-goroutine use and wants to skip the overhead.
	Locker sync.Locker

	// Index is the optional per-sector timestamp index (component C9).
	// Length must equal LogsLength/SectorSize. Index and ParseTime must be
	// both set or both nil (spec.md §3.1).
	Index []IndexEntry

	// ParseTime reads a timestamp from the start of a log line. It must
	// not read more than MaxDateLen bytes from line.
	ParseTime func(line []byte) uint32
}

// Log is a mounted log descriptor: a configured, long-lived handle over
// one region of one device (spec.md §3.1 "Log descriptor").
type Log struct {
	cfg Config

	sectorSize  uint32
	programUnit uint32
	maxDateLen  uint32

	state       extent
	initialized bool
	emptyFlag   bool

	// tailAtBoundary is true only when tail is provably the start of a
	// record: a pristine mount or a just-completed Clear/eraseWholeRegion,
	// with no eviction since. eraseNextSector clears it, since the sector
	// it advances tail into was never proven to start a record (spec.md
	// §8.1 P1, Open's OLDEST cursor).
	tailAtBoundary bool
}

// New validates cfg and returns an unmounted Log. Call Init to mount it.
func New(cfg Config) (*Log, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("circlog: Config.Device is required")
	}
	if cfg.LogsLength == 0 {
		return nil, fmt.Errorf("circlog: Config.LogsLength must be > 0")
	}
	if cfg.SectorSize == 0 {
		cfg.SectorSize = DefaultSectorSize
	}
	if cfg.ProgramUnit == 0 {
		cfg.ProgramUnit = DefaultProgramUnit
	}
	if cfg.MaxDateLen == 0 {
		cfg.MaxDateLen = DefaultMaxDateLen
	}
	if cfg.LogsLength%cfg.SectorSize != 0 {
		return nil, fmt.Errorf("circlog: LogsLength %d is not a multiple of SectorSize %d", cfg.LogsLength, cfg.SectorSize)
	}
	if cfg.SectorSize%cfg.ProgramUnit != 0 {
		return nil, fmt.Errorf("circlog: SectorSize %d is not a multiple of ProgramUnit %d", cfg.SectorSize, cfg.ProgramUnit)
	}
	if cfg.MaxDateLen >= cfg.ProgramUnit {
		return nil, fmt.Errorf("circlog: MaxDateLen %d must be < ProgramUnit %d", cfg.MaxDateLen, cfg.ProgramUnit)
	}
	if (cfg.Index == nil) != (cfg.ParseTime == nil) {
		return nil, fmt.Errorf("circlog: Index and ParseTime must be both set or both nil")
	}
	if cfg.Index != nil && len(cfg.Index) != int(cfg.LogsLength/cfg.SectorSize) {
		return nil, fmt.Errorf("circlog: len(Index) %d != sector count %d", len(cfg.Index), cfg.LogsLength/cfg.SectorSize)
	}
	minBuf := int(cfg.ProgramUnit + cfg.MaxDateLen)
	if cfg.WorkBuf == nil {
		cfg.WorkBuf = make([]byte, minBuf)
	} else if len(cfg.WorkBuf) < minBuf {
		return nil, fmt.Errorf("circlog: WorkBuf length %d < minimum %d", len(cfg.WorkBuf), minBuf)
	}
	if cfg.Locker == nil {
		cfg.Locker = &sync.Mutex{}
	}

	return &Log{
		cfg:         cfg,
		sectorSize:  cfg.SectorSize,
		programUnit: cfg.ProgramUnit,
		maxDateLen:  cfg.MaxDateLen,
	}, nil
}

func (l *Log) enter() { l.cfg.Locker.Lock() }
func (l *Log) exit()  { l.cfg.Locker.Unlock() }

func (l *Log) sectorCount() uint32 { return l.cfg.LogsLength / l.sectorSize }

// EmptyFlag reports whether the device contained no non-erased byte at
// mount time (spec.md §3.1).
func (l *Log) EmptyFlag() bool { return l.emptyFlag }

// Initialized reports whether Init has completed successfully.
func (l *Log) Initialized() bool { return l.initialized }
