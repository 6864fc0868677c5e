package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/codec"
	"github.com/trnahnh/velocity-match/internal/publish"
	"github.com/trnahnh/velocity-match/internal/snapshot"
	"github.com/trnahnh/velocity-match/internal/wal"
)

// Recover loads the latest valid snapshot (if any), then replays every
// WAL record past the snapshot's wal_record_index through the normal
// apply path with publishing suppressed. The returned engine is ready
// for Start — its book, seq, and WAL offset are exactly where the
// original run left them at the last valid record.
func Recover(cfg Config, walLog *wal.Log, snapshots *snapshot.Writer, snapshotDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := New(cfg, walLog, snapshots, publish.Noop{}, log)

	var resumeFrom uint64
	loaded, found, err := snapshot.Latest(snapshotDir)
	if err != nil {
		return nil, fmt.Errorf("engine: recover: find snapshot: %w", err)
	}
	if found {
		resumeFrom, err = snapshot.RestoreInto(e.book, loaded)
		if err != nil {
			return nil, fmt.Errorf("engine: recover: restore snapshot: %w", err)
		}
		log.Info("engine: restored snapshot",
			zap.Uint64("wal_record_index", resumeFrom),
			zap.Int("orders", len(loaded.Orders)))
	}

	validEnd, err := walLog.Replay(func(rec wal.Record) error {
		if rec.Index < resumeFrom {
			return nil
		}
		return e.applyRecord(rec.Payload)
	})
	if err != nil {
		return nil, fmt.Errorf("engine: recover: replay: %w", err)
	}
	walLog.SetOffset(validEnd)

	log.Info("engine: recovery complete",
		zap.Int64("wal_valid_end", validEnd),
		zap.Uint64("resting_orders", uint64(e.book.RestingOrders())),
		zap.Uint64("seq", e.book.Seq()))
	return e, nil
}

// applyRecord decodes one WAL payload and replays it through the
// non-live apply path — book mutation only, no second WAL write, no
// publish.
func (e *Engine) applyRecord(payload []byte) error {
	kind, err := codec.PeekKind(payload)
	if err != nil {
		return err
	}
	switch kind {
	case codec.KindNewOrder:
		o, err := codec.DecodeNewOrder(payload)
		if err != nil {
			return err
		}
		e.applyNewOrder(o, false)
	case codec.KindCancelOrder:
		c, err := codec.DecodeCancelOrder(payload)
		if err != nil {
			return err
		}
		e.applyCancel(c, false)
	default:
		return errUnsupportedKind
	}
	return nil
}
