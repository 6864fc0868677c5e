// Package arena implements the fixed-capacity, allocation-free order
// pool the matching core runs on. Capacity is chosen once at
// construction; there is no dynamic growth.
//
// The pool is a flat array of Node plus a free list threaded through the
// vacant slots' Next field, exactly the technique used by arena-backed
// stores such as OPA's arena storage backend: a segment of fixed-size
// nodes, a freeHead index, and O(1) alloc/free via freelist pop/push.
package arena

import (
	"unsafe"

	"github.com/trnahnh/velocity-match/internal/command"
)

// NIL is the sentinel arena index meaning "no node" — list end, no
// predecessor/successor, empty free list.
const NIL uint32 = 1<<32 - 1

// Node is one resting order. It is laid out to occupy exactly one
// 64-byte cache line: hot fields (id, trader, price, quantity,
// timestamp, links) are packed together with no pointers, so the whole
// node can be copied, reset, and relinked without touching the heap.
//
// Cache line (64 bytes):
//
//	ID        uint64  8
//	TraderID  uint64  8
//	Price     int64   8
//	Quantity  uint64  8
//	Timestamp uint64  8
//	Prev      uint32  4
//	Next      uint32  4
//	Side      uint8   1
//	_         [15]byte (padding out to 64)
type Node struct {
	ID        uint64
	TraderID  uint64
	Price     int64
	Quantity  uint64
	Timestamp uint64
	Prev      uint32
	Next      uint32
	Side      command.Side
	_         [15]byte
}

// Compile-time assertion that Node still fits one cache line. If this
// ever fails to build, a field was added/reordered and grew the node.
const _ = -(unsafe.Sizeof(Node{}) - 64)

// Pool is the fixed-capacity order arena. It is single-writer: the
// matcher goroutine is the only caller, so no synchronization is used.
type Pool struct {
	nodes    []Node
	freeHead uint32
	live     int
}

// New allocates a pool with room for exactly capacity nodes. The
// backing slice is allocated once; alloc/free never touch the Go heap
// again after this call.
func New(capacity int) *Pool {
	p := &Pool{
		nodes:    make([]Node, capacity),
		freeHead: 0,
	}
	for i := 0; i < capacity; i++ {
		if i == capacity-1 {
			p.nodes[i].Next = NIL
		} else {
			p.nodes[i].Next = uint32(i + 1)
		}
	}
	if capacity == 0 {
		p.freeHead = NIL
	}
	return p
}

// Capacity returns the fixed number of node slots.
func (p *Pool) Capacity() int { return len(p.nodes) }

// Live returns the number of currently allocated (in-use) slots.
func (p *Pool) Live() int { return p.live }

// Alloc pops the head of the free list, stamps it with the given order
// identity, and returns its index. Returns command.ErrPoolExhausted if
// no slot is free; the caller is responsible for rejecting the command
// that needed it as a recoverable error rather than crashing the
// matcher.
func (p *Pool) Alloc(id, traderID uint64, side command.Side, price int64, qty uint64, timestamp uint64) (uint32, error) {
	if p.freeHead == NIL {
		return NIL, command.ErrPoolExhausted
	}
	idx := p.freeHead
	n := &p.nodes[idx]
	p.freeHead = n.Next

	n.ID = id
	n.TraderID = traderID
	n.Side = side
	n.Price = price
	n.Quantity = qty
	n.Timestamp = timestamp
	n.Prev = NIL
	n.Next = NIL
	p.live++
	return idx, nil
}

// Free returns idx to the free list. The caller guarantees the node has
// already been unlinked from any FIFO list and from id_index — Free
// itself does not touch either.
func (p *Pool) Free(idx uint32) {
	n := &p.nodes[idx]
	n.Prev = NIL
	n.Next = p.freeHead
	p.freeHead = idx
	p.live--
}

// Get returns a pointer to the node at idx for read or mutation. No
// bounds or liveness check is performed: callers only ever hold indices
// obtained from Alloc, id_index, or a FIFO list walk, all of which are
// internally consistent by construction.
func (p *Pool) Get(idx uint32) *Node {
	return &p.nodes[idx]
}
