// Package orderbook implements the matching core: the arena-backed
// intrusive FIFO lists (list.go), the ordered bid/ask price-level maps
// (levels.go), and the price-time priority matching algorithm (this
// file).
package orderbook

import (
	"github.com/trnahnh/velocity-match/internal/arena"
	"github.com/trnahnh/velocity-match/internal/command"
)

// Book is the single-instrument order book and matching engine. It is
// owned exclusively by the matcher goroutine — no field here is ever
// touched concurrently.
type Book struct {
	pool *arena.Pool
	bids *levelMap // descending: best = highest price
	asks *levelMap // ascending: best = lowest price

	idIndex map[uint64]uint32

	seq   uint64 // execution-report sequence, strictly increasing
	clock uint64 // monotonic per-order timestamp source
}

// New creates an empty book backed by an arena of the given capacity.
func New(arenaCapacity int) *Book {
	return &Book{
		pool:    arena.New(arenaCapacity),
		bids:    newLevelMap(true),
		asks:    newLevelMap(false),
		idIndex: make(map[uint64]uint32, arenaCapacity),
	}
}

// BestBid returns the highest resting buy price, if any.
func (b *Book) BestBid() (int64, bool) {
	level, ok := b.bids.best()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest resting sell price, if any.
func (b *Book) BestAsk() (int64, bool) {
	level, ok := b.asks.best()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// Seq returns the most recently assigned execution-report sequence
// number (0 if none have been emitted yet).
func (b *Book) Seq() uint64 { return b.seq }

// Clock returns the monotonic per-order timestamp counter.
func (b *Book) Clock() uint64 { return b.clock }

// RestingOrders returns the number of live orders in the book —
// equivalently the arena's live count and id_index's length.
func (b *Book) RestingOrders() int { return b.pool.Live() }

// ArenaCapacity returns the fixed arena size this book was built with.
func (b *Book) ArenaCapacity() int { return b.pool.Capacity() }

// DepthLevel is one row of a market-depth snapshot.
type DepthLevel struct {
	Price    int64
	Quantity uint64
	Orders   int
}

// Depth returns up to n price levels per side, best price first.
func (b *Book) Depth(n int) (bids, asks []DepthLevel) {
	collect := func(m *levelMap) []DepthLevel {
		out := make([]DepthLevel, 0, n)
		m.ascend(func(level *PriceLevel) bool {
			if len(out) >= n {
				return false
			}
			out = append(out, DepthLevel{Price: level.Price, Quantity: level.TotalQty, Orders: level.Count})
			return true
		})
		return out
	}
	return collect(b.bids), collect(b.asks)
}

func (b *Book) sideMaps(side command.Side) (own, opposite *levelMap) {
	if side == command.Bid {
		return b.bids, b.asks
	}
	return b.asks, b.bids
}

// crosses reports whether an incoming order on side, priced at price,
// crosses the opposite side's best price.
func crosses(side command.Side, price int64, oppositeBestPrice int64) bool {
	if side == command.Bid {
		return oppositeBestPrice <= price
	}
	return oppositeBestPrice >= price
}

// Exists reports whether id currently resolves to a resting order, so
// a caller can reject a duplicate before ever touching the log —
// a rejected duplicate must leave no WAL trace.
func (b *Book) Exists(id uint64) bool {
	_, ok := b.idIndex[id]
	return ok
}

// ApplyNewOrder matches an incoming order to completion: self-trade
// prevention, FIFO sweep against the opposite side with partial fills,
// and resting the residual on the order's own side. Reports are
// returned in emission order. On command.ErrPoolExhausted, any fills
// already produced in reports are final — the book is left exactly as
// the partial execution left it.
func (b *Book) ApplyNewOrder(cmd command.NewOrder) ([]command.ExecutionReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if _, exists := b.idIndex[cmd.ID]; exists {
		return nil, command.ErrDuplicateOrderID
	}

	b.clock++
	timestamp := b.clock
	residual := cmd.Quantity

	own, opposite := b.sideMaps(cmd.Side)

	var reports []command.ExecutionReport
	for residual > 0 {
		bestLevel, ok := opposite.best()
		if !ok || !crosses(cmd.Side, cmd.Price, bestLevel.Price) {
			break
		}

		makerIdx, ok := peekHead(bestLevel)
		if !ok {
			break
		}
		maker := b.pool.Get(makerIdx)

		if maker.TraderID == cmd.TraderID {
			b.removeResting(opposite, bestLevel, makerIdx)
			continue
		}

		fill := min(residual, maker.Quantity)
		b.seq++
		reports = append(reports, command.ExecutionReport{
			Seq:       b.seq,
			TakerID:   cmd.ID,
			MakerID:   maker.ID,
			Price:     maker.Price,
			Quantity:  fill,
			Timestamp: timestamp,
		})

		residual -= fill
		maker.Quantity -= fill
		bestLevel.TotalQty -= fill

		if maker.Quantity == 0 {
			b.removeResting(opposite, bestLevel, makerIdx)
		}
	}

	if residual > 0 {
		idx, err := b.pool.Alloc(cmd.ID, cmd.TraderID, cmd.Side, cmd.Price, residual, timestamp)
		if err != nil {
			return reports, err
		}
		level := own.getOrCreate(cmd.Price)
		pushBack(b.pool, level, idx)
		b.idIndex[cmd.ID] = idx
	}

	return reports, nil
}

// removeResting fully unlinks and frees idx from level (on the given
// side's map), removing the level itself once empty. Used both by
// self-trade cancellation and by full-fill maker removal.
func (b *Book) removeResting(side *levelMap, level *PriceLevel, idx uint32) {
	node := b.pool.Get(idx)
	unlink(b.pool, level, idx)
	b.pool.Free(idx)
	delete(b.idIndex, node.ID)
	if level.Count == 0 {
		side.remove(level.Price)
	}
}

// ApplyCancel removes a resting order by id. Cancelling an unknown id
// is a no-op that still reports command.ErrUnknownOrderID so the
// caller can count it and log the WAL entry for replay faithfulness
// without treating it as a hard failure (see DESIGN.md Open Question 2).
func (b *Book) ApplyCancel(cmd command.CancelOrder) (command.CancelAck, error) {
	idx, ok := b.idIndex[cmd.OrderID]
	if !ok {
		return command.CancelAck{OrderID: cmd.OrderID, Found: false}, command.ErrUnknownOrderID
	}

	node := b.pool.Get(idx)
	side, _ := b.sideMaps(node.Side)
	level, ok := side.get(node.Price)
	if !ok {
		// Invariant violation guard: a live index must resolve to a
		// live level. Never expected in practice.
		return command.CancelAck{OrderID: cmd.OrderID, Found: false}, command.ErrUnknownOrderID
	}

	b.removeResting(side, level, idx)
	return command.CancelAck{OrderID: cmd.OrderID, Found: true}, nil
}

// SnapshotOrder is one resting order as enumerated for serialization.
type SnapshotOrder struct {
	ID        uint64
	TraderID  uint64
	Side      command.Side
	Price     int64
	Quantity  uint64
	Timestamp uint64
}

// EachRestingOrder enumerates every resting order in a stable,
// byte-reproducible order: bids descending by price, then asks
// ascending by price, FIFO within each level.
func (b *Book) EachRestingOrder(fn func(SnapshotOrder)) {
	walk := func(side *levelMap) {
		side.ascend(func(level *PriceLevel) bool {
			idx := level.Head
			for idx != arena.NIL {
				node := b.pool.Get(idx)
				fn(SnapshotOrder{
					ID:        node.ID,
					TraderID:  node.TraderID,
					Side:      node.Side,
					Price:     node.Price,
					Quantity:  node.Quantity,
					Timestamp: node.Timestamp,
				})
				idx = node.Next
			}
			return true
		})
	}
	walk(b.bids)
	walk(b.asks)
}

// Restore rebuilds an empty book by directly re-inserting orders
// without matching. seq is set to the snapshot's recorded sequence
// number so subsequent execution reports continue the same numbering.
func (b *Book) Restore(orders []SnapshotOrder, seq uint64) error {
	for _, o := range orders {
		idx, err := b.pool.Alloc(o.ID, o.TraderID, o.Side, o.Price, o.Quantity, o.Timestamp)
		if err != nil {
			return err
		}
		own, _ := b.sideMaps(o.Side)
		level := own.getOrCreate(o.Price)
		pushBack(b.pool, level, idx)
		b.idIndex[o.ID] = idx
		if o.Timestamp > b.clock {
			b.clock = o.Timestamp
		}
	}
	b.seq = seq
	return nil
}
