// Package engine wires the core pieces together: a producer goroutine
// pushes decoded commands into an SPSC ring; a single matcher
// goroutine pops them, journals to the WAL, mutates the book, and
// publishes execution reports — in that order, never blocking on
// network I/O while matching. This keeps the whole matching core
// single-threaded per instrument, with one WAL-before-mutate,
// publish-after-mutate pipeline feeding off the ring.
package engine

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/codec"
	"github.com/trnahnh/velocity-match/internal/command"
	"github.com/trnahnh/velocity-match/internal/metrics"
	"github.com/trnahnh/velocity-match/internal/orderbook"
	"github.com/trnahnh/velocity-match/internal/publish"
	"github.com/trnahnh/velocity-match/internal/ring"
	"github.com/trnahnh/velocity-match/internal/snapshot"
	"github.com/trnahnh/velocity-match/internal/wal"
)

// Envelope is the ring's payload type: a decoded command tagged by
// kind, carrying whichever of the two command shapes applies. The wire
// codec and the WAL both tag payloads the same way (§4.6), so the
// matcher re-uses the codec's kind bytes here instead of inventing its
// own tag.
type Envelope struct {
	Kind   byte
	Order  command.NewOrder
	Cancel command.CancelOrder
}

// Config holds the engine's fixed resource budgets.
type Config struct {
	ArenaCapacity    int
	RingCapacity     int
	SnapshotInterval int
}

// Engine owns the book, the ring, and the matcher goroutine. Every
// field but the ring is touched exclusively by that goroutine once
// Start has been called, per §5's "no mutexes exist in the core".
type Engine struct {
	book      *orderbook.Book
	ring      *ring.Buffer[Envelope]
	wal       *wal.Log
	snapshots *snapshot.Writer
	publisher publish.Publisher
	metrics   *metrics.Collector
	log       *zap.Logger

	snapshotInterval int
	sinceSnapshot    int

	stop        chan struct{}
	done        chan struct{}
	snapshotReq chan chan error
	inspectReq  chan inspectRequest
}

// inspectRequest lets a foreign goroutine (the admin HTTP surface) read
// book state without breaking §5's "book is owned exclusively by the
// matcher thread" invariant: fn runs on the matcher goroutine itself,
// between commands, and the caller blocks until done is closed.
type inspectRequest struct {
	fn   func(*orderbook.Book)
	done chan struct{}
}

// New constructs an engine around an already-open WAL and snapshot
// writer; wiring those as separate constructor arguments (rather than
// building them internally) lets cmd/velocity-match share the same WAL
// handle across recovery and live operation.
func New(cfg Config, walLog *wal.Log, snapshots *snapshot.Writer, publisher publish.Publisher, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = publish.Noop{}
	}
	return &Engine{
		book:             orderbook.New(cfg.ArenaCapacity),
		ring:             ring.New[Envelope](cfg.RingCapacity),
		wal:              walLog,
		snapshots:        snapshots,
		publisher:        publisher,
		metrics:          metrics.GetCollector(),
		log:              log,
		snapshotInterval: cfg.SnapshotInterval,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
		snapshotReq:      make(chan chan error),
		inspectReq:       make(chan inspectRequest),
	}
}

// Book exposes the resting book directly. Safe only when the matcher
// goroutine is not concurrently running (before Start, after Stop, or
// in tests that never call Start) — anything reading book state while
// the engine is live must go through Inspect instead.
func (e *Engine) Book() *orderbook.Book { return e.book }

// SetPublisher swaps the publisher used for subsequent execution
// reports. Recover always builds its engine with a Noop publisher
// (§4.7 step 4 — replayed reports must not be republished); the caller
// installs the real publisher once recovery has finished and before
// Start. Only safe to call before Start.
func (e *Engine) SetPublisher(p publish.Publisher) {
	if p == nil {
		p = publish.Noop{}
	}
	e.publisher = p
}

// Inspect runs fn against the book on the matcher goroutine, between
// commands, and blocks the caller until it completes. This is the only
// safe way for another goroutine (the admin HTTP surface) to read book
// state while the engine is running.
func (e *Engine) Inspect(fn func(*orderbook.Book)) error {
	req := inspectRequest{fn: fn, done: make(chan struct{})}
	select {
	case e.inspectReq <- req:
	case <-e.done:
		return fmt.Errorf("engine: stopped")
	}
	<-req.done
	return nil
}

// SubmitNewOrder is the producer-side entry point: it never touches
// the book, only the ring (§5 "it never touches the book").
func (e *Engine) SubmitNewOrder(o command.NewOrder) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := e.ring.Push(Envelope{Kind: codec.KindNewOrder, Order: o}); err != nil {
		e.metrics.RingPushFull.Inc()
		return err
	}
	return nil
}

// SubmitCancel is the producer-side entry point for cancellation.
func (e *Engine) SubmitCancel(c command.CancelOrder) error {
	if err := e.ring.Push(Envelope{Kind: codec.KindCancelOrder, Cancel: c}); err != nil {
		e.metrics.RingPushFull.Inc()
		return err
	}
	return nil
}

// Start runs the matcher loop in a dedicated, OS-thread-pinned
// goroutine: fewer context switches, better cache locality for the
// book's single-threaded mutation path.
func (e *Engine) Start() {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(e.done)

		for {
			select {
			case <-e.stop:
				e.drain()
				return
			case reply := <-e.snapshotReq:
				reply <- e.doSnapshot()
				continue
			case req := <-e.inspectReq:
				req.fn(e.book)
				close(req.done)
				continue
			default:
			}

			env, err := e.ring.Pop()
			if err != nil {
				e.metrics.RingPopEmpty.Inc()
				runtime.Gosched()
				continue
			}
			e.metrics.RingDepth.Set(float64(e.ring.Len()))
			e.apply(env, true)
		}
	}()
}

// Stop signals the matcher to drain the ring, flush the WAL, take a
// final snapshot, and exit; it blocks until that has happened.
func (e *Engine) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Engine) drain() {
	for {
		env, err := e.ring.Pop()
		if err != nil {
			break
		}
		e.apply(env, true)
	}
	if err := e.wal.Flush(); err != nil {
		e.log.Error("engine: wal flush on shutdown failed", zap.Error(err))
	}
	e.saveSnapshot()
}

// apply is the single path both live matching and recovery replay go
// through, differing only in live: a live command is journaled to the
// WAL, has its reports published, and counts toward the snapshot
// interval; a replayed one does none of these. publish must stay
// suppressed during replay per §4.7 step 4.
func (e *Engine) apply(env Envelope, live bool) {
	timer := metrics.NewTimer()
	switch env.Kind {
	case codec.KindNewOrder:
		e.metrics.CommandsTotal.WithLabelValues("new_order").Inc()
		e.applyNewOrder(env.Order, live)
	case codec.KindCancelOrder:
		e.metrics.CommandsTotal.WithLabelValues("cancel_order").Inc()
		e.applyCancel(env.Cancel, live)
	}
	e.metrics.CommandLatency.Observe(timer.ElapsedMicros())

	// BestBid/BestAsk return 0 for an empty side, which the gauges report.
	bid, _ := e.book.BestBid()
	ask, _ := e.book.BestAsk()
	e.metrics.BestBid.Set(float64(bid))
	e.metrics.BestAsk.Set(float64(ask))

	if live {
		e.sinceSnapshot++
		if e.snapshotInterval > 0 && e.sinceSnapshot >= e.snapshotInterval {
			e.saveSnapshot()
			e.sinceSnapshot = 0
		}
	}
}

// applyNewOrder enforces §7's DuplicateOrderId ordering: detection
// happens before the WAL write, so a rejected duplicate leaves no WAL
// trace. Everything else is journaled before it mutates the book.
func (e *Engine) applyNewOrder(o command.NewOrder, live bool) {
	if e.book.Exists(o.ID) {
		e.metrics.DuplicateOrderIDs.Inc()
		e.log.Warn("engine: duplicate order id rejected", zap.Uint64("order_id", o.ID))
		return
	}

	if live {
		if _, err := e.wal.Append(func(buf []byte) int {
			return codec.EncodeNewOrder(buf, o)
		}); err != nil {
			e.log.Error("engine: wal append failed", zap.Error(err))
			return
		}
	}

	reports, err := e.book.ApplyNewOrder(o)
	if err != nil {
		e.metrics.PoolExhaustions.Inc()
		e.log.Warn("engine: new order rejected", zap.Uint64("order_id", o.ID), zap.Error(err))
	}

	e.metrics.RestingOrders.Set(float64(e.book.RestingOrders()))

	if !live {
		return
	}
	for _, report := range reports {
		e.metrics.ExecutionReports.Inc()
		if err := e.publisher.Publish(report); err != nil {
			e.log.Warn("engine: publish failed", zap.Uint64("seq", report.Seq), zap.Error(err))
		}
	}
}

// applyCancel journals the cancel unconditionally — even an unknown id
// is logged "for replay faithfulness" per §7 — then applies it to the
// book, where it is a no-op if the id isn't resting.
func (e *Engine) applyCancel(c command.CancelOrder, live bool) {
	if live {
		if _, err := e.wal.Append(func(buf []byte) int {
			return codec.EncodeCancelOrder(buf, c)
		}); err != nil {
			e.log.Error("engine: wal append failed", zap.Error(err))
			return
		}
	}

	if _, err := e.book.ApplyCancel(c); err != nil {
		e.metrics.UnknownCancels.Inc()
	}
	e.metrics.RestingOrders.Set(float64(e.book.RestingOrders()))
}

// saveSnapshot is called from the matcher goroutine on the regular
// interval path; errors are logged since there is no caller waiting.
func (e *Engine) saveSnapshot() {
	if err := e.doSnapshot(); err != nil {
		e.log.Error("engine: snapshot save failed", zap.Error(err))
	}
}

// doSnapshot performs the save and records metrics. Only ever called
// from the matcher goroutine — either directly (saveSnapshot) or via
// the snapshotReq channel (ForceSnapshot) — so it touches e.book
// without synchronization.
func (e *Engine) doSnapshot() error {
	if e.snapshots == nil {
		return nil
	}
	timer := metrics.NewTimer()
	if _, err := e.snapshots.Save(e.book, e.wal.RecordIndex()); err != nil {
		e.metrics.SnapshotIntegrityFaults.Inc()
		return err
	}
	e.metrics.SnapshotsTaken.Inc()
	e.metrics.SnapshotLatency.Observe(timer.ElapsedMillis())
	return nil
}

// ForceSnapshot takes an out-of-band snapshot for the admin HTTP
// surface's POST /snapshot. The save itself runs on the matcher
// goroutine, between commands, via the snapshotReq request/reply
// channel that the matcher loop selects on alongside the stop signal —
// never touching the book from the calling goroutine.
func (e *Engine) ForceSnapshot() error {
	reply := make(chan error, 1)
	select {
	case e.snapshotReq <- reply:
	case <-e.done:
		return fmt.Errorf("engine: stopped")
	}
	return <-reply
}

// errUnsupportedKind is returned by recovery when a WAL record's kind
// byte doesn't match a known command.
var errUnsupportedKind = fmt.Errorf("engine: unsupported wal record kind")
