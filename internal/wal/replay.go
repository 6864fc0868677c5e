package wal

import (
	"encoding/binary"
	"hash/crc32"
)

// Record is one decoded WAL entry: its payload bytes and the offset it
// starts at, for callers that want to resume appends from a known-good
// position.
type Record struct {
	Payload []byte
	Offset  int64
	Index   uint64
}

// Replay scans from offset 0, verifying each record's CRC. It stops at
// the first invalid or truncated record and reports the offset at
// which the log is logically truncated — the caller should SetOffset
// to that value before resuming appends, discarding anything at or
// after it.
//
// fn is called once per valid record in order; returning an error from
// fn stops replay early and is propagated to the caller, leaving the
// truncation point at that record's start (the record itself is not
// counted as applied).
func (l *Log) Replay(fn func(Record) error) (validEnd int64, err error) {
	var off int64
	var idx uint64
	for {
		if off+headerSize > l.size {
			break
		}
		header := l.mapped[off : off+headerSize]
		length := binary.LittleEndian.Uint32(header[0:4])
		wantCRC := binary.LittleEndian.Uint32(header[4:8])

		if length == 0 || length > maxRecordLen {
			break
		}
		payloadEnd := off + headerSize + int64(length)
		if payloadEnd > l.size {
			break
		}
		payload := l.mapped[off+headerSize : payloadEnd]
		if crc32.ChecksumIEEE(payload) != wantCRC {
			break
		}

		if fn != nil {
			if cbErr := fn(Record{Payload: payload, Offset: off, Index: idx}); cbErr != nil {
				return off, cbErr
			}
		}

		idx++
		off += int64(align(headerSize+int(length), alignment))
	}

	l.offset = off
	l.nextRec = idx
	return off, nil
}

// RecordKind is the first byte of a WAL/wire payload, shared between
// the log and the network codec.
type RecordKind byte

const (
	KindNewOrder    RecordKind = 0x01
	KindCancelOrder RecordKind = 0x02
)
