package service_test

import (
	"context"
	"testing"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockService_AddOrMergeMergesNaturalKey(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	first, merged, err := l.stock.AddOrMerge(ctx, domain.AddStockRequest{Grade: "St3", Thickness: 10, Length: 6000, Width: 1500, Quantity: 5})
	require.NoError(t, err)
	assert.False(t, merged)

	second, merged, err := l.stock.AddOrMerge(ctx, domain.AddStockRequest{Grade: "St3", Thickness: 10, Length: 6000, Width: 1500, Quantity: 3})
	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, first.ID, second.ID)

	items, err := l.stock.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 8, items[0].OnHand)
	assert.Equal(t, 8, items[0].Available)
	assert.Equal(t, 0, items[0].Reserved)
	assert.InDelta(t, 72.0, items[0].Area, 1e-9)
}

func TestStockService_AddOrMergeDistinctKeys(t *testing.T) {
	l := setupLedger(t)
	a := l.addStock(t, "St3", 10, 6000, 1500, 5)
	b := l.addStock(t, "St3", 8, 6000, 1500, 5)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestStockService_AddOrMergeValidates(t *testing.T) {
	l := setupLedger(t)
	_, _, err := l.stock.AddOrMerge(context.Background(), domain.AddStockRequest{Grade: "St3", Thickness: 10, Length: 6000, Width: 1500, Quantity: 0})
	require.ErrorIs(t, err, domain.ErrValidation)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "quantity")

	items, err := l.stock.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStockService_EditKeepsReserved(t *testing.T) {
	l := setupLedger(t)
	item := l.addStock(t, "St3", 10, 6000, 1500, 10)
	order := l.addOrder(t, "Заказ 100")
	l.reserve(t, order.ID, domain.NoRef, item.ID, 4)

	edited, err := l.stock.Edit(context.Background(), item.ID, domain.UpdateStockRequest{
		Grade: "St3", Thickness: 10, Length: 6000, Width: 1500, OnHand: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, edited.Reserved)
	assert.Equal(t, -2, edited.Available)
	assert.True(t, edited.Overdrawn())
	assert.InDelta(t, 18.0, edited.Area, 1e-9)
	l.requireInvariants(t)
}

func TestStockService_DeleteWithReservationIsAllowed(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	item := l.addStock(t, "St3", 10, 6000, 1500, 10)
	order := l.addOrder(t, "Заказ 100")
	r := l.reserve(t, order.ID, domain.NoRef, item.ID, 4)

	require.NoError(t, l.stock.Delete(ctx, item.ID))
	_, err := l.stock.Get(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The reservation keeps its dangling link and can still be deleted.
	assert.Equal(t, domain.RefTo(item.ID), l.reservation(t, r.ID).StockRef)
	require.NoError(t, l.reservations.Delete(ctx, r.ID))

	assert.ErrorIs(t, l.stock.Delete(ctx, item.ID), domain.ErrNotFound)
}

func TestStockService_DeletedIDIsNotReused(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	item := l.addStock(t, "St3", 10, 6000, 1500, 10)
	order := l.addOrder(t, "Заказ 100")
	r := l.reserve(t, order.ID, domain.NoRef, item.ID, 3)
	require.NoError(t, l.stock.Delete(ctx, item.ID))

	fresh := l.addStock(t, "AISI", 2, 2500, 1250, 4)
	assert.NotEqual(t, item.ID, fresh.ID)

	require.NoError(t, l.reservations.Delete(ctx, r.ID))
	got := l.stockItem(t, fresh.ID)
	assert.Equal(t, 4, got.OnHand)
	assert.Equal(t, 0, got.Reserved)
	assert.Equal(t, 4, got.Available)
	l.requireInvariants(t)
}

func TestStockService_UnreadableRowIsNotDropped(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	tbl := tablestore.NewTable("id", "grade", "thickness", "length", "width", "on_hand", "reserved")
	tbl.Append(tablestore.Record{"id": "1", "grade": "St3", "thickness": "10", "length": "6000", "width": "1500", "on_hand": "5", "reserved": "abc"})
	tbl.Append(tablestore.Record{"id": "2", "grade": "St3", "thickness": "8", "length": "6000", "width": "1500", "on_hand": "2", "reserved": "0"})
	require.NoError(t, l.store.SaveTable(ctx, repository.TableStock, tbl))

	_, _, err := l.stock.AddOrMerge(ctx, domain.AddStockRequest{Grade: "AISI", Thickness: 2, Length: 2500, Width: 1250, Quantity: 4})
	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, repository.ErrUnreadableRows)

	raw, err := l.store.LoadTable(ctx, repository.TableStock)
	require.NoError(t, err)
	assert.Len(t, raw.Rows, 2)

	// reading still works
	items, err := l.stock.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStockService_AdjustReservedAndAvailable(t *testing.T) {
	l := setupLedger(t)
	item := l.addStock(t, "St3", 10, 6000, 1500, 5)

	got, err := l.stock.AdjustReservedAndAvailable(context.Background(), item.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Reserved)
	assert.Equal(t, -2, got.Available)

	_, err = l.stock.AdjustReservedAndAvailable(context.Background(), 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockService_Balance(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	used := l.addStock(t, "St3", 10, 6000, 1500, 10)
	l.addStock(t, "AISI 304", 2, 2500, 1250, 3)
	empty := l.addStock(t, "09G2S", 4, 3000, 1500, 1)
	_, err := l.stock.Edit(ctx, empty.ID, domain.UpdateStockRequest{Grade: "09G2S", Thickness: 4, Length: 3000, Width: 1500, OnHand: 0})
	require.NoError(t, err)

	order := l.addOrder(t, "Заказ 100")
	r := l.reserve(t, order.ID, domain.NoRef, used.ID, 6)
	_, err = l.writeOffs.Create(ctx, domain.CreateWriteOffRequest{ReservationID: r.ID, Quantity: 2})
	require.NoError(t, err)

	rows, err := l.stock.Balance(ctx, config.Preferences{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "09G2S", rows[0].Material.Grade)
	assert.Equal(t, "AISI 304", rows[1].Material.Grade)

	st3 := rows[2]
	assert.Equal(t, used.ID, st3.StockID)
	assert.Equal(t, 8, st3.OnHand)
	assert.Equal(t, 4, st3.Reserved)
	assert.Equal(t, 2, st3.WrittenOff)
	assert.Equal(t, 4, st3.Available)

	rows, err = l.stock.Balance(ctx, config.Preferences{HideZeroBalance: true})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
