package orderbook

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trnahnh/velocity-match/internal/command"
)

// TestRandomCommandStreamHoldsUniversalInvariants drives a long,
// deterministically seeded stream of random new-order and cancel
// commands through a book and checks, after every single command,
// that the book never crosses, the arena accounting stays consistent
// with the live order index, and seq never goes backward.
func TestRandomCommandStreamHoldsUniversalInvariants(t *testing.T) {
	const (
		capacity  = 256
		commands  = 20_000
		priceLow  = 95
		priceHigh = 105
	)

	rng := rand.New(rand.NewSource(42))
	b := New(capacity)

	var live []uint64
	var nextID uint64
	var prevSeq uint64

	for i := 0; i < commands; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			victim := live[rng.Intn(len(live))]
			_, err := b.ApplyCancel(command.CancelOrder{OrderID: victim})
			require.True(t, err == nil || err == command.ErrUnknownOrderID)
		} else {
			nextID++
			side := command.Bid
			if rng.Intn(2) == 0 {
				side = command.Ask
			}
			price := int64(priceLow + rng.Intn(priceHigh-priceLow+1))
			qty := uint64(1 + rng.Intn(10))
			traderID := uint64(1 + rng.Intn(20))

			_, err := b.ApplyNewOrder(command.NewOrder{
				ID:       nextID,
				TraderID: traderID,
				Side:     side,
				Price:    price,
				Quantity: qty,
			})
			require.True(t, err == nil || err == command.ErrPoolExhausted)
		}

		// Fills during matching can remove resting maker orders (full
		// fills, self-trade cancellation) independently of the command
		// just issued, so the live set is re-derived from the book's
		// own index rather than tracked incrementally.
		live = liveIDs(b)

		assertNoCrossedBook(t, b)
		assertArenaAccounting(t, b, len(live))
		assert.GreaterOrEqual(t, b.Seq(), prevSeq)
		prevSeq = b.Seq()
	}
}

func liveIDs(b *Book) []uint64 {
	ids := make([]uint64, 0, len(b.idIndex))
	for id := range b.idIndex {
		ids = append(ids, id)
	}
	return ids
}

func assertNoCrossedBook(t *testing.T, b *Book) {
	t.Helper()
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	if hasBid && hasAsk {
		assert.Less(t, bid, ask, "book crossed: best bid %d >= best ask %d", bid, ask)
	}
}

func assertArenaAccounting(t *testing.T, b *Book, wantLive int) {
	t.Helper()
	assert.Equal(t, wantLive, b.RestingOrders())
	assert.Equal(t, wantLive, len(b.idIndex))
	assert.LessOrEqual(t, b.RestingOrders(), b.ArenaCapacity())
}

