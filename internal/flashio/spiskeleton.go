package flashio

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// SPISkeleton adapts a JEDEC SPI NOR flash chip to the Device interface
// (component C1's real-hardware side, as opposed to SimFile's in-memory
// stand-in). Command set and addressing follow the same chip family as
// the reference connection code this is ported from.
type SPISkeleton struct {
	conn spi.Conn
	cs   gpio.PinIO

	sectorSize4K  int
	sectorSize64K int
}

const (
	spiCmdReadID             = 0x9F
	spiCmdRead               = 0x03
	spiCmdWriteEnable        = 0x06
	spiCmdPageProgram        = 0x02
	spiCmdErase4KB           = 0x20
	spiCmdErase64KB          = 0xD8
	spiCmdReadStatusRegister = 0x05

	spiPageSize  = 256
	spiMaxTxSize = 65536
)

// NewSPISkeleton wraps an already-opened SPI connection and its chip-select
// pin. Callers are expected to have configured the port (mode, speed) via
// periph.io/x/host before constructing this.
func NewSPISkeleton(conn spi.Conn, cs gpio.PinIO) *SPISkeleton {
	return &SPISkeleton{conn: conn, cs: cs, sectorSize4K: 4 << 10, sectorSize64K: 64 << 10}
}

// OpenSPISkeleton registers the host's periph.io drivers, opens the named
// SPI bus at the given clock speed, looks up the named chip-select pin,
// and returns a ready-to-use SPISkeleton plus a closer for the bus. busName
// and csPin follow periph.io's registry naming (e.g. "/dev/spidev0.0",
// "GPIO24"); an empty busName opens the default bus.
func OpenSPISkeleton(busName, csPin string, maxHz int64) (*SPISkeleton, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("flashio: periph host init: %w", err)
	}
	port, err := spireg.Open(busName)
	if err != nil {
		return nil, nil, fmt.Errorf("flashio: opening spi bus %q: %w", busName, err)
	}
	conn, err := port.Connect(physic.Frequency(maxHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("flashio: connecting spi bus %q: %w", busName, err)
	}
	cs := gpioreg.ByName(csPin)
	if cs == nil {
		port.Close()
		return nil, nil, fmt.Errorf("flashio: no such gpio pin %q", csPin)
	}
	if err := cs.Out(gpio.High); err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("flashio: driving cs pin %q high: %w", csPin, err)
	}
	return NewSPISkeleton(conn, cs), port.Close, nil
}

func (f *SPISkeleton) tx(buf []byte) (err error) {
	if err = f.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := f.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	return f.conn.Tx(buf, buf)
}

func addr24(buf []byte, addr uint32) {
	buf[0] = byte(addr >> 16)
	buf[1] = byte(addr >> 8)
	buf[2] = byte(addr)
}

// Read implements Device. It splits the transfer into chip-sized chunks,
// matching the SPI controller's maximum single-transaction length.
func (f *SPISkeleton) Read(addr uint32, p []byte) (int, error) {
	const cmdBytes = 4
	const maxData = spiMaxTxSize - cmdBytes

	off := 0
	for remaining := len(p); remaining > 0; {
		chunk := remaining
		if chunk > maxData {
			chunk = maxData
		}
		buf := make([]byte, cmdBytes+chunk)
		buf[0] = spiCmdRead
		addr24(buf[1:], addr+uint32(off))
		if err := f.tx(buf); err != nil {
			return off, err
		}
		copy(p[off:off+chunk], buf[cmdBytes:])
		off += chunk
		remaining -= chunk
	}
	return off, nil
}

func (f *SPISkeleton) writeEnable() error {
	return f.tx([]byte{spiCmdWriteEnable})
}

// Write implements Device via repeated page-program commands, each clearing
// bits within one flash page (spec.md §2's "program can only clear bits").
// It does not verify the target region was erased first -- that invariant
// is the caller's (the circlog engine's) responsibility.
func (f *SPISkeleton) Write(addr uint32, p []byte) (int, error) {
	off := 0
	for remaining := len(p); remaining > 0; {
		chunk := remaining
		if chunk > spiPageSize {
			chunk = spiPageSize
		}
		if err := f.writeEnable(); err != nil {
			return off, err
		}
		buf := make([]byte, 4+chunk)
		buf[0] = spiCmdPageProgram
		addr24(buf[1:], addr+uint32(off))
		copy(buf[4:], p[off:off+chunk])
		if err := f.tx(buf); err != nil {
			return off, err
		}
		if err := f.busyWait(100*time.Microsecond, 5*time.Millisecond); err != nil {
			return off, err
		}
		off += chunk
		remaining -= chunk
	}
	return off, nil
}

// Erase implements Device, preferring 64KB block erases and falling back to
// 4KB sector erases for any remainder -- length and addr must both be
// multiples of 4KB.
func (f *SPISkeleton) Erase(addr, length uint32) (int, error) {
	if length%uint32(f.sectorSize4K) != 0 {
		return 0, fmt.Errorf("flashio: erase length %d is not a multiple of %d", length, f.sectorSize4K)
	}
	remaining := length
	cur := addr
	for remaining >= uint32(f.sectorSize64K) {
		if err := f.eraseOne(spiCmdErase64KB, cur, 100*time.Millisecond); err != nil {
			return int(length - remaining), err
		}
		cur += uint32(f.sectorSize64K)
		remaining -= uint32(f.sectorSize64K)
	}
	for remaining > 0 {
		if err := f.eraseOne(spiCmdErase4KB, cur, 50*time.Millisecond); err != nil {
			return int(length - remaining), err
		}
		cur += uint32(f.sectorSize4K)
		remaining -= uint32(f.sectorSize4K)
	}
	return int(length), nil
}

func (f *SPISkeleton) eraseOne(cmd byte, addr uint32, timeout time.Duration) error {
	if err := f.writeEnable(); err != nil {
		return err
	}
	buf := make([]byte, 4)
	buf[0] = cmd
	addr24(buf[1:], addr)
	if err := f.tx(buf); err != nil {
		return err
	}
	return f.busyWait(1*time.Millisecond, timeout)
}

func (f *SPISkeleton) readStatusRegister() (byte, error) {
	buf := []byte{spiCmdReadStatusRegister, 0}
	if err := f.tx(buf); err != nil {
		return 0, err
	}
	return buf[1], nil
}

func (f *SPISkeleton) busyWait(interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		sr, err := f.readStatusRegister()
		if err != nil {
			return err
		}
		if sr&0x01 == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("flashio: timed out waiting for flash to become ready")
		}
		time.Sleep(interval)
	}
}

// ReadID returns the chip's 3-byte JEDEC ID, useful for a demo tool to
// confirm it is talking to the expected part before trusting Read/Write.
func (f *SPISkeleton) ReadID() ([3]byte, error) {
	buf := make([]byte, 4)
	buf[0] = spiCmdReadID
	if err := f.tx(buf); err != nil {
		return [3]byte{}, err
	}
	return [3]byte(buf[1:]), nil
}
