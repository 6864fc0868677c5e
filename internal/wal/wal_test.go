package wal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	dir := t.TempDir()
	l, err := Open(filepath.Join(dir, "test.wal"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func encodeUint64(v uint64) EncodeFunc {
	return func(buf []byte) int {
		binary.LittleEndian.PutUint64(buf, v)
		return 8
	}
}

func TestAppendReplayRoundTrip(t *testing.T) {
	l := openTestLog(t)

	i0, err := l.Append(encodeUint64(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), i0)
	i1, err := l.Append(encodeUint64(20))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), i1)
	_, err = l.Append(encodeUint64(30))
	require.NoError(t, err)

	var got []uint64
	end, err := l.Replay(func(r Record) error {
		got = append(got, binary.LittleEndian.Uint64(r.Payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20, 30}, got)
	assert.Equal(t, l.Offset(), end)
}

func TestReplayStopsAtCorruptRecord(t *testing.T) {
	l := openTestLog(t)
	_, err := l.Append(encodeUint64(1))
	require.NoError(t, err)
	_, err = l.Append(encodeUint64(2))
	require.NoError(t, err)

	// Corrupt the CRC of the second record by flipping a byte in its
	// payload directly in the mapped region.
	secondRecordOffset := int64(align(headerSize+8, alignment))
	l.mapped[secondRecordOffset+headerSize] ^= 0xFF

	var got []uint64
	end, err := l.Replay(func(r Record) error {
		got = append(got, binary.LittleEndian.Uint64(r.Payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, got)
	assert.Equal(t, secondRecordOffset, end)
}

func TestReopenPreservesFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wal")

	l, err := Open(path, nil)
	require.NoError(t, err)
	_, err = l.Append(encodeUint64(42))
	require.NoError(t, err)
	require.NoError(t, l.Flush())
	require.NoError(t, l.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(initialSize), info.Size())
}

func TestGrowthDoublesFile(t *testing.T) {
	l := openTestLog(t)
	require.Equal(t, int64(initialSize), l.size)

	require.NoError(t, l.ensureCapacity(int64(initialSize)+1))
	assert.Equal(t, int64(initialSize)*2, l.size)

	info, err := l.file.Stat()
	require.NoError(t, err)
	assert.Equal(t, l.size, info.Size())

	// The log stays usable after growth.
	_, err = l.Append(encodeUint64(99))
	require.NoError(t, err)
	var got []uint64
	_, err = l.Replay(func(r Record) error {
		got = append(got, binary.LittleEndian.Uint64(r.Payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{99}, got)
}
