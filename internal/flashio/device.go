// Package flashio defines the NOR-flash-like storage contract that
// circlog's engine is layered over (spec.md §6.1, component C1), plus the
// concrete collaborators used to exercise it: a file-backed simulator for
// tests and a real SPI NOR adapter skeleton.
//
// The contract itself is intentionally thin: three primitives, no
// metadata, no wear leveling beyond what the caller (circlog) imposes.
package flashio

// Device is the flash adapter contract of spec.md §6.1. Implementations
// are synchronous and are never re-entered by circlog while a call is in
// flight (spec.md §5 "Reentrancy").
type Device interface {
	// Read returns len(p) on success; any other return value is a short
	// read and is fatal to the caller that issued it. addr and len(p) may
	// be any values inside the device's valid range — reads are not
	// required to be program-unit or sector aligned.
	Read(addr uint32, p []byte) (int, error)

	// Write clears bits (1->0) within [addr, addr+len(p)). addr and
	// len(p) are always multiples of the program unit when called by
	// circlog. Returns len(p) on success.
	Write(addr uint32, p []byte) (int, error)

	// Erase resets [addr, addr+length) to all-0xFF. addr and length are
	// always multiples of the sector size when called by circlog.
	// Returns length on success.
	Erase(addr, length uint32) (int, error)
}
