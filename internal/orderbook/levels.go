package orderbook

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

// levelMap is the ordered price -> *PriceLevel map for one side of the
// book. Both sides share one implementation by flipping the tree's
// comparator: the bid comparator sorts the highest price first, the
// ask comparator sorts the lowest price first, so in both cases the
// tree's own minimum (Left()) is the side's best price — one red-black
// tree serves either a descending or ascending notion of "best"
// without a second code path.
type levelMap struct {
	tree *rbt.Tree[int64, *PriceLevel]
}

func newLevelMap(descending bool) *levelMap {
	var cmp func(a, b int64) int
	if descending {
		cmp = func(a, b int64) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			default:
				return 0
			}
		}
	} else {
		cmp = func(a, b int64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}
	return &levelMap{tree: rbt.NewWith[int64, *PriceLevel](cmp)}
}

func (m *levelMap) get(price int64) (*PriceLevel, bool) {
	return m.tree.Get(price)
}

func (m *levelMap) getOrCreate(price int64) *PriceLevel {
	level, found := m.tree.Get(price)
	if found {
		return level
	}
	level = newPriceLevel(price)
	m.tree.Put(price, level)
	return level
}

func (m *levelMap) remove(price int64) {
	m.tree.Remove(price)
}

func (m *levelMap) empty() bool {
	return m.tree.Empty()
}

func (m *levelMap) size() int {
	return m.tree.Size()
}

// best returns the side's best price level: the tree's own minimum
// under its (possibly reversed) comparator.
func (m *levelMap) best() (*PriceLevel, bool) {
	node := m.tree.Left()
	if node == nil {
		return nil, false
	}
	return node.Value, true
}

// ascend calls fn for every level in the tree's natural (comparator)
// order, which for the bid side is descending price and for the ask
// side is ascending price — the stable order snapshots enumerate in.
func (m *levelMap) ascend(fn func(level *PriceLevel) bool) {
	it := m.tree.Iterator()
	for it.Next() {
		if !fn(it.Value()) {
			return
		}
	}
}
