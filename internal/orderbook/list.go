package orderbook

import "github.com/trnahnh/velocity-match/internal/arena"

// PriceLevel is all resting orders at one price, threaded as an
// intrusive FIFO using arena indices. Head is the oldest order
// (highest FIFO priority), Tail the newest.
type PriceLevel struct {
	Price    int64
	TotalQty uint64
	Count    int
	Head     uint32
	Tail     uint32
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price, Head: arena.NIL, Tail: arena.NIL}
}

// pushBack appends idx at the tail of level's FIFO queue. O(1).
func pushBack(pool *arena.Pool, level *PriceLevel, idx uint32) {
	node := pool.Get(idx)
	node.Prev = level.Tail
	node.Next = arena.NIL

	if level.Tail != arena.NIL {
		pool.Get(level.Tail).Next = idx
	} else {
		level.Head = idx
	}
	level.Tail = idx
	level.Count++
	level.TotalQty += node.Quantity
}

// unlink detaches idx from level's FIFO queue, rewriting its
// neighbors' links and the level's head/tail if idx was an endpoint.
// O(1). The caller supplies the level the node's price resolves to.
func unlink(pool *arena.Pool, level *PriceLevel, idx uint32) {
	node := pool.Get(idx)
	prev, next := node.Prev, node.Next

	if prev != arena.NIL {
		pool.Get(prev).Next = next
	} else {
		level.Head = next
	}
	if next != arena.NIL {
		pool.Get(next).Prev = prev
	} else {
		level.Tail = prev
	}

	level.Count--
	level.TotalQty -= node.Quantity
	node.Prev = arena.NIL
	node.Next = arena.NIL
}

// peekHead returns the oldest order's arena index without removing it,
// or (arena.NIL, false) if the level is empty.
func peekHead(level *PriceLevel) (uint32, bool) {
	if level.Head == arena.NIL {
		return arena.NIL, false
	}
	return level.Head, true
}
