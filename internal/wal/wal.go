// Package wal implements an append-only, memory-mapped write-ahead
// log. Every command is durable in the mapped region before the
// matcher mutates the book or publishes a report: journal-before-
// mutate is the single durability invariant the rest of the engine
// leans on, since an unflushed crash can never lose a command that
// made it into the book.
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"
)

const (
	headerSize   = 8 // length(u32) + crc32(u32)
	initialSize  = 64 << 20
	alignment    = 8
	maxRecordLen = 1 << 20
)

// Log is an append-only sequence of length-prefixed, CRC-protected
// records backed by a growable memory-mapped file.
type Log struct {
	file    *os.File
	mapped  mmap.MMap
	size    int64  // current file/mapping size
	offset  int64  // next write offset (end of valid data)
	nextRec uint64 // monotonic count of records appended/replayed so far

	scratch []byte // pre-allocated encode buffer, reused across Append calls

	log *zap.Logger
}

// Open creates or reopens the WAL at path. A freshly created file is
// sized to initialSize; an existing file is mapped at its current size
// and scanned once (via Replay, by the caller) to find the valid tail.
func Open(path string, log *zap.Logger) (*Log, error) {
	if log == nil {
		log = zap.NewNop()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		size = initialSize
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("wal: truncate %s: %w", path, err)
		}
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("wal: mmap %s: %w", path, err)
	}

	return &Log{
		file:    f,
		mapped:  m,
		size:    size,
		scratch: make([]byte, 0, maxRecordLen),
		log:     log,
	}, nil
}

// Offset returns the current end-of-valid-data write offset. Replay
// uses this as the starting point for a fresh log; recovery resumes
// appends from here.
func (l *Log) Offset() int64 { return l.offset }

// SetOffset overrides the append cursor — used by Replay once it has
// determined the valid tail, and by recovery to resume after the last
// record a snapshot already accounts for.
func (l *Log) SetOffset(off int64) { l.offset = off }

// EncodeFunc writes a record's payload into buf and returns the
// written length. buf has enough capacity for any record the caller
// will ever emit; EncodeFunc must not allocate.
type EncodeFunc func(buf []byte) int

// Append reserves a record slot, asks encode to fill the payload into
// the WAL's own scratch buffer (zero allocation on this path), frames
// it with length and CRC32, and copies the frame into the mapped
// region. It returns the record's monotonic, 0-based wal_record_index.
func (l *Log) Append(encode EncodeFunc) (uint64, error) {
	if cap(l.scratch) < maxRecordLen {
		l.scratch = make([]byte, 0, maxRecordLen)
	}
	payload := l.scratch[:maxRecordLen]
	n := encode(payload)
	payload = payload[:n]

	frameLen := headerSize + n
	padded := align(frameLen, alignment)

	if err := l.ensureCapacity(l.offset + int64(padded)); err != nil {
		return 0, err
	}

	dst := l.mapped[l.offset:]
	binary.LittleEndian.PutUint32(dst[0:4], uint32(n))
	binary.LittleEndian.PutUint32(dst[4:8], crc32.ChecksumIEEE(payload))
	copy(dst[headerSize:], payload)
	for i := frameLen; i < padded; i++ {
		dst[i] = 0
	}

	l.offset += int64(padded)
	idx := l.nextRec
	l.nextRec++
	return idx, nil
}

// RecordIndex returns the number of records appended (or replayed) so
// far — the value the next Append call will assign.
func (l *Log) RecordIndex() uint64 { return l.nextRec }

// ensureCapacity doubles the backing file and remaps until it can hold
// need bytes. Growth is rare and explicitly not a hot-path concern.
func (l *Log) ensureCapacity(need int64) error {
	if need <= l.size {
		return nil
	}
	newSize := l.size
	for newSize < need {
		newSize *= 2
	}

	l.log.Info("wal: growing backing file", zap.Int64("from", l.size), zap.Int64("to", newSize))

	if err := l.mapped.Unmap(); err != nil {
		return fmt.Errorf("wal: unmap before growth: %w", err)
	}
	if err := l.file.Truncate(newSize); err != nil {
		return fmt.Errorf("wal: truncate to %d: %w", newSize, err)
	}
	m, err := mmap.Map(l.file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("wal: remap after growth: %w", err)
	}
	l.mapped = m
	l.size = newSize
	return nil
}

// Flush is the on-demand durability checkpoint (e.g. before a snapshot
// rename). The hot path never calls this — page-cache durability is
// sufficient for process-crash recovery.
func (l *Log) Flush() error {
	if err := l.mapped.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	return nil
}

// Close unmaps and closes the backing file.
func (l *Log) Close() error {
	if err := l.mapped.Unmap(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("wal: unmap: %w", err)
	}
	return l.file.Close()
}

func align(n, to int) int {
	rem := n % to
	if rem == 0 {
		return n
	}
	return n + (to - rem)
}
