package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trnahnh/velocity-match/internal/command"
	"github.com/trnahnh/velocity-match/internal/publish"
	"github.com/trnahnh/velocity-match/internal/snapshot"
	"github.com/trnahnh/velocity-match/internal/wal"
)

// collectingPublisher records every report it is handed, for
// assertions, instead of sending anywhere.
type collectingPublisher struct {
	mu      sync.Mutex
	reports []command.ExecutionReport
}

func (p *collectingPublisher) Publish(r command.ExecutionReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return nil
}
func (p *collectingPublisher) Close() error { return nil }

func (p *collectingPublisher) snapshot() []command.ExecutionReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]command.ExecutionReport, len(p.reports))
	copy(out, p.reports)
	return out
}

// testFixture bundles the paths a recovery test needs to reopen the
// WAL after the original engine has shut down.
type testFixture struct {
	engine  *Engine
	walLog  *wal.Log
	walPath string
	snapDir string
}

func newTestEngine(t *testing.T, pub publish.Publisher) *testFixture {
	t.Helper()
	dir := t.TempDir()
	walPath := filepath.Join(dir, "test.wal")
	walLog, err := wal.Open(walPath, nil)
	require.NoError(t, err)

	snapDir := filepath.Join(dir, "snapshots")
	require.NoError(t, os.MkdirAll(snapDir, 0o755))
	writer := snapshot.NewWriter(snapDir, nil)

	cfg := Config{ArenaCapacity: 1024, RingCapacity: 64, SnapshotInterval: 0}
	e := New(cfg, walLog, writer, pub, nil)
	return &testFixture{engine: e, walLog: walLog, walPath: walPath, snapDir: snapDir}
}

func waitForDrain(e *Engine) {
	for e.ring.Len() > 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond)
}

func TestSubmitAndMatchProducesExecutionReport(t *testing.T) {
	pub := &collectingPublisher{}
	fx := newTestEngine(t, pub)
	defer fx.walLog.Close()

	fx.engine.Start()
	defer fx.engine.Stop()

	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 1, TraderID: 1, Side: command.Ask, Price: 100, Quantity: 10}))
	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 2, TraderID: 2, Side: command.Bid, Price: 100, Quantity: 10}))

	waitForDrain(fx.engine)

	reports := pub.snapshot()
	require.Len(t, reports, 1)
	assert.Equal(t, uint64(2), reports[0].TakerID)
	assert.Equal(t, uint64(1), reports[0].MakerID)
	assert.Equal(t, uint64(10), reports[0].Quantity)
}

func TestDuplicateOrderIDNeverWritesWAL(t *testing.T) {
	fx := newTestEngine(t, nil)
	defer fx.walLog.Close()

	fx.engine.Start()
	defer fx.engine.Stop()

	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 7, TraderID: 1, Side: command.Bid, Price: 50, Quantity: 1}))
	waitForDrain(fx.engine)
	offsetAfterFirst := fx.walLog.Offset()

	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 7, TraderID: 2, Side: command.Bid, Price: 51, Quantity: 1}))
	waitForDrain(fx.engine)

	assert.Equal(t, offsetAfterFirst, fx.walLog.Offset())
	assert.Equal(t, 1, fx.engine.book.RestingOrders())
}

func TestCancelAlwaysJournalsEvenWhenUnknown(t *testing.T) {
	fx := newTestEngine(t, nil)
	defer fx.walLog.Close()

	fx.engine.Start()
	defer fx.engine.Stop()

	offsetBefore := fx.walLog.Offset()
	require.NoError(t, fx.engine.SubmitCancel(command.CancelOrder{OrderID: 999}))
	waitForDrain(fx.engine)

	assert.Greater(t, fx.walLog.Offset(), offsetBefore)
}

func TestRecoverRebuildsBookFromWALOnly(t *testing.T) {
	fx := newTestEngine(t, nil)
	fx.engine.Start()

	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 1, TraderID: 1, Side: command.Bid, Price: 99, Quantity: 5}))
	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 2, TraderID: 2, Side: command.Bid, Price: 98, Quantity: 3}))
	waitForDrain(fx.engine)
	fx.engine.Stop()
	require.NoError(t, fx.walLog.Close())

	reopened, err := wal.Open(fx.walPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	// Stop wrote a final snapshot into fx.snapDir; recover from an empty
	// snapshot directory so the book comes from WAL replay alone.
	emptySnapDir := t.TempDir()
	recovered, err := Recover(Config{ArenaCapacity: 1024, RingCapacity: 64}, reopened, snapshot.NewWriter(emptySnapDir, nil), emptySnapDir, nil)
	require.NoError(t, err)

	bid, ok := recovered.Book().BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), bid)
	assert.Equal(t, 2, recovered.Book().RestingOrders())
}

func TestRecoverFromSnapshotSkipsOlderWALRecords(t *testing.T) {
	fx := newTestEngine(t, nil)
	fx.engine.Start()

	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 1, TraderID: 1, Side: command.Bid, Price: 10, Quantity: 1}))
	waitForDrain(fx.engine)
	require.NoError(t, fx.engine.ForceSnapshot())

	require.NoError(t, fx.engine.SubmitNewOrder(command.NewOrder{ID: 2, TraderID: 2, Side: command.Bid, Price: 11, Quantity: 1}))
	waitForDrain(fx.engine)
	fx.engine.Stop()
	require.NoError(t, fx.walLog.Close())

	reopened, err := wal.Open(fx.walPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	recovered, err := Recover(Config{ArenaCapacity: 1024, RingCapacity: 64}, reopened, snapshot.NewWriter(fx.snapDir, nil), fx.snapDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered.Book().RestingOrders())
}
