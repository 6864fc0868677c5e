package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	r := New[int](4)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))

	v, err := r.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = r.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestEmptyRing(t *testing.T) {
	r := New[int](4)
	_, err := r.Pop()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFullRing(t *testing.T) {
	r := New[int](2)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	err := r.Push(3)
	assert.ErrorIs(t, err, ErrFull)
}

func TestWrapAroundReusesSlots(t *testing.T) {
	r := New[int](2)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))

	v, err := r.Pop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, r.Push(3))

	v, err = r.Pop()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	v, err = r.Pop()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestCapacityPowerOfTwoPanics(t *testing.T) {
	assert.Panics(t, func() { New[int](3) })
}

// TestSPSCNoLossNoDuplication drives a real producer goroutine against
// a real consumer goroutine through a small ring and checks every
// value arrives exactly once, in order.
func TestSPSCNoLossNoDuplication(t *testing.T) {
	const n = 200_000
	r := New[int](256)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for r.Push(i) == ErrFull {
				// back-pressure: spin until the consumer drains a slot.
			}
		}
	}()

	received := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			v, err := r.Pop()
			if err == ErrEmpty {
				continue
			}
			received = append(received, v)
		}
	}()

	wg.Wait()

	require.Len(t, received, n)
	for i, v := range received {
		require.Equal(t, i, v)
	}
}
