package snapshot

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trnahnh/velocity-match/internal/command"
	"github.com/trnahnh/velocity-match/internal/orderbook"
)

func buildBook(t *testing.T) *orderbook.Book {
	t.Helper()
	b := orderbook.New(1024)
	orders := []command.NewOrder{
		{ID: 1, TraderID: 1, Side: command.Bid, Price: 100, Quantity: 3},
		{ID: 2, TraderID: 2, Side: command.Bid, Price: 102, Quantity: 1},
		{ID: 3, TraderID: 3, Side: command.Ask, Price: 200, Quantity: 2},
	}
	for _, o := range orders {
		_, err := b.ApplyNewOrder(o)
		require.NoError(t, err)
	}
	return b
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	book := buildBook(t)
	w := NewWriter(dir, nil)

	path, err := w.Save(book, 42)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), loaded.Header.WalRecordIndex)
	assert.Equal(t, uint64(book.Seq()), uint64(loaded.Header.Seq))
	require.Len(t, loaded.Orders, book.RestingOrders())

	var prices []int64
	for _, o := range loaded.Orders {
		prices = append(prices, o.Price)
	}
	assert.Equal(t, []int64{102, 100, 200}, prices)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	book := buildBook(t)
	w := NewWriter(dir, nil)

	path, err := w.Save(book, 1)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[30] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load(path)
	assert.ErrorIs(t, err, command.ErrSnapshotIntegrity)
}

func TestLatestPicksHighestValidIndex(t *testing.T) {
	dir := t.TempDir()
	book := buildBook(t)
	w := NewWriter(dir, nil)

	_, err := w.Save(book, 10)
	require.NoError(t, err)
	path20, err := w.Save(book, 20)
	require.NoError(t, err)

	loaded, ok, err := Latest(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(20), loaded.Header.WalRecordIndex)

	// Corrupt the highest snapshot; Latest should fall back to 10.
	data, err := os.ReadFile(path20)
	require.NoError(t, err)
	data[30] ^= 0xFF
	require.NoError(t, os.WriteFile(path20, data, 0o644))

	loaded, ok, err = Latest(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), loaded.Header.WalRecordIndex)
}

func TestLatestEmptyDir(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := Latest(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreIntoPreservesStructure(t *testing.T) {
	dir := t.TempDir()
	book := buildBook(t)
	w := NewWriter(dir, nil)
	path, err := w.Save(book, 7)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)

	restored := orderbook.New(1024)
	resumeFrom, err := RestoreInto(restored, loaded)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), resumeFrom)

	ob, _ := book.BestBid()
	rb, _ := restored.BestBid()
	assert.Equal(t, ob, rb)
	oa, _ := book.BestAsk()
	ra, _ := restored.BestAsk()
	assert.Equal(t, oa, ra)
	assert.Equal(t, book.RestingOrders(), restored.RestingOrders())
}
