package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/matching"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"github.com/straye-as/sheet-ledger/internal/service"
	"github.com/straye-as/sheet-ledger/internal/storage"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ledger struct {
	store        *tablestore.MemoryStore
	repo         *repository.Repository
	stock        *service.StockService
	orders       *service.OrderService
	reservations *service.ReservationService
	writeOffs    *service.WriteOffService
	reconcile    *service.ReconciliationService
	imports      *service.ImportService
	exports      *service.ExportService
	artifacts    *storage.LocalStorage
}

func setupLedger(t *testing.T) *ledger {
	t.Helper()
	store := tablestore.NewMemoryStore()
	return setupLedgerOn(t, store, store)
}

func setupLedgerOn(t *testing.T, backing tablestore.Store, mem *tablestore.MemoryStore) *ledger {
	t.Helper()
	logger := zap.NewNop()
	repo := repository.New(backing, logger)

	matcher, err := matching.NewHeuristic("", 0)
	require.NoError(t, err)

	artifacts, err := storage.NewLocalStorage(t.TempDir(), logger)
	require.NoError(t, err)

	stock := service.NewStockService(repo, logger)
	writeOffs := service.NewWriteOffService(repo, logger)
	reconcile := service.NewReconciliationService(repo, matcher, writeOffs, logger)
	return &ledger{
		store:        mem,
		repo:         repo,
		stock:        stock,
		orders:       service.NewOrderService(repo, logger),
		reservations: service.NewReservationService(repo, logger),
		writeOffs:    writeOffs,
		reconcile:    reconcile,
		imports:      service.NewImportService(repo, reconcile, ';', logger),
		exports:      service.NewExportService(repo, stock, artifacts, logger),
		artifacts:    artifacts,
	}
}

func (l *ledger) addStock(t *testing.T, grade string, thickness, length, width float64, qty int) *domain.StockItem {
	t.Helper()
	item, _, err := l.stock.AddOrMerge(context.Background(), domain.AddStockRequest{
		Grade:     grade,
		Thickness: thickness,
		Length:    length,
		Width:     width,
		Quantity:  qty,
	})
	require.NoError(t, err)
	return item
}

func (l *ledger) addOrder(t *testing.T, name string) *domain.Order {
	t.Helper()
	o, err := l.orders.Create(context.Background(), domain.CreateOrderRequest{
		Name:     name,
		Customer: "Metallservis",
		Status:   domain.OrderStatusInProgress,
	})
	require.NoError(t, err)
	return o
}

func (l *ledger) addPart(t *testing.T, orderID int, name string, qty int) *domain.OrderPart {
	t.Helper()
	p, err := l.orders.AddPart(context.Background(), domain.CreatePartRequest{OrderID: orderID, Name: name, Quantity: qty})
	require.NoError(t, err)
	return p
}

func (l *ledger) reserve(t *testing.T, orderID int, part domain.Ref, stockID, qty int) *domain.Reservation {
	t.Helper()
	r, err := l.reservations.Create(context.Background(), domain.CreateReservationRequest{
		OrderID:  orderID,
		PartRef:  part,
		StockRef: domain.RefTo(stockID),
		Quantity: qty,
	})
	require.NoError(t, err)
	return r
}

func (l *ledger) stockItem(t *testing.T, id int) *domain.StockItem {
	t.Helper()
	item, err := l.stock.Get(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (l *ledger) reservation(t *testing.T, id int) domain.Reservation {
	t.Helper()
	all, err := l.reservations.List(context.Background(), 0)
	require.NoError(t, err)
	for _, r := range all {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("reservation %d not found", id)
	return domain.Reservation{}
}

func (l *ledger) part(t *testing.T, orderID, partID int) domain.OrderPart {
	t.Helper()
	_, parts, err := l.orders.Get(context.Background(), orderID)
	require.NoError(t, err)
	for _, p := range parts {
		if p.ID == partID {
			return p
		}
	}
	t.Fatalf("part %d not found", partID)
	return domain.OrderPart{}
}

// requireInvariants checks the conservation rules over every stored row
func (l *ledger) requireInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	items, err := l.stock.List(ctx)
	require.NoError(t, err)
	for _, it := range items {
		require.Equal(t, it.OnHand-it.Reserved, it.Available, "stock item %d", it.ID)
	}
	reservations, err := l.reservations.List(ctx, 0)
	require.NoError(t, err)
	for _, r := range reservations {
		require.Equal(t, r.Allocated-r.WrittenOff, r.Remaining, "reservation %d", r.ID)
		require.GreaterOrEqual(t, r.WrittenOff, 0)
		require.LessOrEqual(t, r.WrittenOff, r.Allocated)
	}
}

// failingStore fails SaveTable for one table
type failingStore struct {
	*tablestore.MemoryStore
	table string
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) SaveTable(ctx context.Context, name string, t *tablestore.Table) error {
	if name == s.table {
		return errDiskFull
	}
	return s.MemoryStore.SaveTable(ctx, name, t)
}

func laserEvent(order, material, matQty, part, partQty string) domain.ExternalEvent {
	return domain.ExternalEvent{
		Date:             "14.10.2026",
		Time:             "09:30:00",
		Operator:         "ivanov",
		Order:            order,
		Material:         material,
		MaterialQuantity: matQty,
		Part:             part,
		PartQuantity:     partQty,
	}
}
