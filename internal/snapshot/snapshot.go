// Package snapshot implements periodic book checkpointing and startup
// recovery: a byte-reproducible serialization of every resting order,
// written atomically via temp-file-then-rename, and the recovery
// pieces that find the latest valid snapshot and restore it into a
// book. Replaying the WAL forward from it is done by engine.Recover.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/command"
	"github.com/trnahnh/velocity-match/internal/orderbook"
)

const (
	magic   uint32 = 0xFE11_0C0F
	version uint32 = 1

	orderRecordSize = 40 // id(8) + trader_id(8) + side(1, padded to 8) + price(8) + quantity(8) — see encodeOrder
)

// Header is the fixed-size prefix of a snapshot file.
type Header struct {
	Magic          uint32
	Version        uint32
	WalRecordIndex uint64
	Seq            uint32
	Count          uint64
}

// FileName returns the canonical name for a snapshot taken at
// walRecordIndex.
func FileName(walRecordIndex uint64) string {
	return fmt.Sprintf("snapshot_%010d.bin", walRecordIndex)
}

func tempFileName(walRecordIndex uint64) string {
	return FileName(walRecordIndex) + ".tmp"
}

// Writer serializes a book to disk. It owns no state between calls;
// every Save is a fresh enumerate-serialize-fsync-rename cycle.
type Writer struct {
	dir string
	log *zap.Logger
}

// NewWriter returns a Writer rooted at dir, which must already exist.
func NewWriter(dir string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{dir: dir, log: log}
}

// Save enumerates book's resting orders in a stable order (bids
// descending, asks ascending, FIFO within level), writes them to a
// temp file, fsyncs, and renames into place. The rename is the sole
// atomicity boundary: either the complete file exists afterward or
// the old snapshot (if any) is untouched.
func (w *Writer) Save(book *orderbook.Book, walRecordIndex uint64) (string, error) {
	tmpPath := filepath.Join(w.dir, tempFileName(walRecordIndex))
	finalPath := filepath.Join(w.dir, FileName(walRecordIndex))

	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("snapshot: create %s: %w", tmpPath, err)
	}

	if err := writeSnapshot(f, book, walRecordIndex); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("snapshot: fsync %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("snapshot: close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("snapshot: rename %s to %s: %w", tmpPath, finalPath, err)
	}

	w.log.Info("snapshot: saved",
		zap.String("file", finalPath),
		zap.Uint64("wal_record_index", walRecordIndex),
		zap.Int("resting_orders", book.RestingOrders()))
	return finalPath, nil
}

func writeSnapshot(w io.Writer, book *orderbook.Book, walRecordIndex uint64) error {
	bw := bufio.NewWriter(w)
	crc := crc32.NewIEEE()
	out := io.MultiWriter(bw, crc)

	count := book.RestingOrders()
	header := make([]byte, 4+4+8+4+8)
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint32(header[4:8], version)
	binary.LittleEndian.PutUint64(header[8:16], walRecordIndex)
	binary.LittleEndian.PutUint32(header[16:20], uint32(book.Seq()))
	binary.LittleEndian.PutUint64(header[20:28], uint64(count))
	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	rec := make([]byte, orderRecordSize)
	var writeErr error
	book.EachRestingOrder(func(o orderbook.SnapshotOrder) {
		if writeErr != nil {
			return
		}
		encodeOrder(rec, o)
		if _, err := out.Write(rec); err != nil {
			writeErr = fmt.Errorf("snapshot: write order record: %w", err)
		}
	})
	if writeErr != nil {
		return writeErr
	}

	if err := binary.Write(bw, binary.LittleEndian, crc.Sum32()); err != nil {
		return fmt.Errorf("snapshot: write trailing crc: %w", err)
	}
	return bw.Flush()
}

// encodeOrder packs a resting order into a 40-byte order record:
// id(8) + trader_id(8) + side(1)+reserved(7) + price(8) + quantity(8).
// Timestamp is intentionally not persisted: it exists only to reason
// about FIFO ordering, and Restore's sequential re-insertion in
// enumeration order already reproduces that structure exactly.
func encodeOrder(buf []byte, o orderbook.SnapshotOrder) {
	_ = buf[:orderRecordSize]
	binary.LittleEndian.PutUint64(buf[0:8], o.ID)
	binary.LittleEndian.PutUint64(buf[8:16], o.TraderID)
	buf[16] = byte(o.Side)
	for i := 17; i < 24; i++ {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint64(buf[24:32], uint64(o.Price))
	binary.LittleEndian.PutUint64(buf[32:40], o.Quantity)
}

func decodeOrder(buf []byte, timestamp uint64) orderbook.SnapshotOrder {
	return orderbook.SnapshotOrder{
		ID:        binary.LittleEndian.Uint64(buf[0:8]),
		TraderID:  binary.LittleEndian.Uint64(buf[8:16]),
		Side:      command.Side(buf[16]),
		Price:     int64(binary.LittleEndian.Uint64(buf[24:32])),
		Quantity:  binary.LittleEndian.Uint64(buf[32:40]),
		Timestamp: timestamp,
	}
}
