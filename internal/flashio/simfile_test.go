package flashio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimFileAllErased(t *testing.T) {
	sf := NewSimFile(64)
	snap := sf.Snapshot()
	for i, b := range snap {
		require.Equalf(t, Erased, b, "byte %d not erased", i)
	}
}

func TestSimFileWriteRefusesSetBit(t *testing.T) {
	sf := NewSimFile(16)
	_, err := sf.Write(0, []byte{0x00})
	require.NoError(t, err)

	// 0x00 -> 0x0F would set bits back to 1 without an erase: illegal.
	_, err = sf.Write(0, []byte{0x0F})
	assert.Error(t, err)
}

func TestSimFileEraseResetsToErased(t *testing.T) {
	sf := NewSimFile(16)
	_, err := sf.Write(0, []byte{0x00, 0x00})
	require.NoError(t, err)

	_, err = sf.Erase(0, 16)
	require.NoError(t, err)

	snap := sf.Snapshot()
	for _, b := range snap {
		assert.Equal(t, Erased, b)
	}
}

func TestSimFileWriteLogRecordsEveryCall(t *testing.T) {
	sf := NewSimFile(16)
	_, err := sf.Write(0, []byte{0x01, 0x02})
	require.NoError(t, err)
	_, err = sf.Write(4, []byte{0x03})
	require.NoError(t, err)

	log := sf.WriteLog()
	require.Len(t, log, 2)
	assert.Equal(t, WriteRecord{Addr: 0, Len: 2}, log[0])
	assert.Equal(t, WriteRecord{Addr: 4, Len: 1}, log[1])
}

func TestSimFileOutOfRangeAccess(t *testing.T) {
	sf := NewSimFile(16)
	_, err := sf.Read(10, make([]byte, 10))
	assert.Error(t, err)
	_, err = sf.Write(10, make([]byte, 10))
	assert.Error(t, err)
	_, err = sf.Erase(10, 10)
	assert.Error(t, err)
}

func TestOpenSimFilePersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	sf, err := OpenSimFile(path, 32)
	require.NoError(t, err)
	_, err = sf.Write(0, []byte("hi"))
	require.NoError(t, err)
	require.NoError(t, sf.Persist())

	sf2, err := OpenSimFile(path, 32)
	require.NoError(t, err)
	assert.Equal(t, byte('h'), sf2.Snapshot()[0])
	assert.Equal(t, byte('i'), sf2.Snapshot()[1])
}

func TestOpenSimFileCapacityMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.bin")

	sf, err := OpenSimFile(path, 32)
	require.NoError(t, err)
	require.NoError(t, sf.Persist())

	_, err = OpenSimFile(path, 64)
	assert.Error(t, err)
}

func TestSimFileCrashLeavesTailUnwritten(t *testing.T) {
	sf := NewSimFile(16)
	full := []byte{0x01, 0x02, 0x03, 0x04}
	n, err := sf.Crash(0, full, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap := sf.Snapshot()
	assert.Equal(t, byte(0x01), snap[0])
	assert.Equal(t, byte(0x02), snap[1])
	assert.Equal(t, Erased, snap[2])
	assert.Equal(t, Erased, snap[3])
}
