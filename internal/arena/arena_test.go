package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trnahnh/velocity-match/internal/command"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	p := New(4)
	assert.Equal(t, 4, p.Capacity())
	assert.Equal(t, 0, p.Live())

	idx, err := p.Alloc(1, 10, command.Bid, 100, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Live())

	n := p.Get(idx)
	assert.Equal(t, uint64(1), n.ID)
	assert.Equal(t, uint64(10), n.TraderID)
	assert.Equal(t, int64(100), n.Price)
	assert.Equal(t, uint64(5), n.Quantity)
	assert.Equal(t, NIL, n.Prev)
	assert.Equal(t, NIL, n.Next)

	p.Free(idx)
	assert.Equal(t, 0, p.Live())
}

func TestPoolExhausted(t *testing.T) {
	p := New(2)
	_, err := p.Alloc(1, 1, command.Bid, 1, 1, 1)
	require.NoError(t, err)
	_, err = p.Alloc(2, 1, command.Bid, 1, 1, 1)
	require.NoError(t, err)

	_, err = p.Alloc(3, 1, command.Bid, 1, 1, 1)
	assert.ErrorIs(t, err, command.ErrPoolExhausted)
}

func TestFreeThenAllocReusesSlot(t *testing.T) {
	p := New(1)
	idx, err := p.Alloc(1, 1, command.Bid, 1, 1, 1)
	require.NoError(t, err)
	p.Free(idx)

	idx2, err := p.Alloc(2, 1, command.Bid, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, idx, idx2)
}

// TestArenaAccounting checks that live count + free-list count equals
// arena capacity, at all times.
func TestArenaAccounting(t *testing.T) {
	const cap = 8
	p := New(cap)

	var allocated []uint32
	for i := 0; i < cap; i++ {
		idx, err := p.Alloc(uint64(i), 1, command.Bid, 1, 1, 1)
		require.NoError(t, err)
		allocated = append(allocated, idx)
	}
	assert.Equal(t, cap, p.Live())

	for _, idx := range allocated[:3] {
		p.Free(idx)
	}
	assert.Equal(t, cap-3, p.Live())

	freeCount := 0
	for h := p.freeHead; h != NIL; h = p.nodes[h].Next {
		freeCount++
	}
	assert.Equal(t, cap, p.Live()+freeCount)
}
