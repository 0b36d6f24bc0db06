package service_test

import (
	"context"
	"testing"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"github.com/straye-as/sheet-ledger/internal/service"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reconcileFixture struct {
	*ledger
	item      *domain.StockItem
	order     *domain.Order
	orderPart *domain.OrderPart
	res       *domain.Reservation
}

func setupReconcile(t *testing.T, reserved int) *reconcileFixture {
	t.Helper()
	l := setupLedger(t)
	f := &reconcileFixture{ledger: l}
	f.item = l.addStock(t, "St3", 10, 6000, 1500, 20)
	f.order = l.addOrder(t, "УП-123 Стеллажи")
	f.orderPart = l.addPart(t, f.order.ID, "Кронштейн", 40)
	f.res = l.reserve(t, f.order.ID, domain.RefTo(f.orderPart.ID), f.item.ID, reserved)
	return f
}

func TestReconciliationService_ProcessPending(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()

	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "2", "кронштейн", "12"),
	})
	require.NoError(t, err)

	report, err := f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 2, report.Outcomes[0].Quantity)
	assert.False(t, report.Outcomes[0].Clamped)

	assert.Equal(t, 4, f.reservation(t, f.res.ID).Remaining)
	assert.Equal(t, 18, f.stockItem(t, f.item.ID).OnHand)
	assert.Equal(t, 12, f.part(t, f.order.ID, f.orderPart.ID).Cut)

	history, err := f.writeOffs.List(ctx, f.res.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	prov, ok := service.ParseProvenance(history[0].Comment)
	require.True(t, ok)
	assert.Equal(t, "ivanov", prov.Operator)
	assert.Equal(t, "Кронштейн", prov.Part)
	assert.Equal(t, "14.10.2026 09:30:00", prov.Timestamp)
	assert.Equal(t, 2026, history[0].WrittenAt.Year())

	events, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusWrittenOff, events[0].Status)
	assert.NotEmpty(t, events[0].StatusDate)
	f.requireInvariants(t)
}

func TestReconciliationService_PartialClamp(t *testing.T) {
	f := setupReconcile(t, 5)
	ctx := context.Background()

	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "8", "Кронштейн", "30"),
	})
	require.NoError(t, err)

	report, err := f.reconcile.ProcessRows(ctx, []int{0})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	out := report.Outcomes[0]
	assert.True(t, out.Clamped)
	assert.Equal(t, 5, out.Quantity)
	assert.NotEmpty(t, out.Message)

	assert.Equal(t, 0, f.reservation(t, f.res.ID).Remaining)
	assert.Equal(t, 30, f.part(t, f.order.ID, f.orderPart.ID).Cut)

	events, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusWrittenOff, events[0].Status)
	f.requireInvariants(t)
}

func TestReconciliationService_ReimportIsIdempotent(t *testing.T) {
	f := setupReconcile(t, 10)
	ctx := context.Background()
	batch := []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "4"),
		laserEvent("УП-123", "St3 10x1500x6000", "2", "Кронштейн", "8"),
		laserEvent("УП-999", "St3 10x1500x6000", "1", "Кронштейн", "4"),
	}

	_, err := f.reconcile.Import(ctx, batch)
	require.NoError(t, err)
	_, err = f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	_, err = f.reconcile.MarkManual(ctx, []int{2})
	require.NoError(t, err)

	before, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	writeOffsBefore, err := f.writeOffs.List(ctx, 0)
	require.NoError(t, err)

	stats, err := f.reconcile.Import(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Kept)
	assert.Equal(t, 0, stats.New)
	assert.Equal(t, 0, stats.Dropped)

	report, err := f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)

	after, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	writeOffsAfter, err := f.writeOffs.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, writeOffsBefore, writeOffsAfter)
}

func TestReconciliationService_ImportMerge(t *testing.T) {
	f := setupReconcile(t, 10)
	ctx := context.Background()
	a := laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "4")
	b := laserEvent("УП-123", "St3 10x1500x6000", "2", "Кронштейн", "8")
	c := laserEvent("УП-123", "St3 10x1500x6000", "3", "Кронштейн", "12")

	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{a, b})
	require.NoError(t, err)
	_, err = f.reconcile.ProcessRows(ctx, []int{0})
	require.NoError(t, err)

	// A status carried in the batch is ignored for keys not seen before.
	c.Status = domain.EventStatusWrittenOff
	stats, err := f.reconcile.Import(ctx, []domain.ExternalEvent{a, c})
	require.NoError(t, err)
	assert.Equal(t, domain.EventMergeStats{Total: 2, New: 1, Kept: 1, Dropped: 1, WrittenOff: 1, Pending: 1}, *stats)

	events, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStatusWrittenOff, events[0].Status)
	assert.Equal(t, "3", events[1].MaterialQuantity)
	assert.Equal(t, domain.EventStatusPending, events[1].Status)
}

func TestReconciliationService_RowFailuresDoNotAbortBatch(t *testing.T) {
	f := setupReconcile(t, 10)
	ctx := context.Background()

	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("Неизвестный заказ", "St3 10x1500x6000", "1", "Кронштейн", "1"),
		laserEvent("УП-123", "лист десятка", "1", "Кронштейн", "1"),
		laserEvent("УП-123", "St3 4x1500x6000", "1", "Кронштейн", "1"),
		laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "1"),
	})
	require.NoError(t, err)

	report, err := f.reconcile.ProcessRows(ctx, []int{0, 1, 2, 3, 17})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 4, report.Failed)
	require.Len(t, report.Outcomes, 5)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrOrderNotFound)
	assert.ErrorIs(t, report.Outcomes[1].Err, domain.ErrUnparsableMaterial)
	assert.ErrorIs(t, report.Outcomes[2].Err, domain.ErrNoSuitableReservation)
	assert.NoError(t, report.Outcomes[3].Err)
	assert.ErrorIs(t, report.Outcomes[4].Err, domain.ErrNotFound)

	summary, err := f.reconcile.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.WrittenOff)
	assert.Equal(t, 3, summary.Pending)
}

func TestReconciliationService_MaterialWithoutGradeFails(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()
	item := l.addStock(t, "AISI 304", 10, 6000, 1500, 5)
	order := l.addOrder(t, "УП-123")
	l.reserve(t, order.ID, domain.NoRef, item.ID, 3)

	_, err := l.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "10x1500x6000", "1", "", ""),
	})
	require.NoError(t, err)

	report, err := l.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, domain.ErrUnparsableMaterial)

	history, err := l.writeOffs.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestReconciliationService_SkipsRowsNotPending(t *testing.T) {
	f := setupReconcile(t, 10)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "1"),
	})
	require.NoError(t, err)
	_, err = f.reconcile.MarkManual(ctx, []int{0})
	require.NoError(t, err)

	report, err := f.reconcile.ProcessRows(ctx, []int{0})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Skipped)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 10, f.reservation(t, f.res.ID).Remaining)
}

func TestReconciliationService_MarkAndUnmarkManual(t *testing.T) {
	f := setupReconcile(t, 10)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "1"),
		laserEvent("УП-123", "St3 10x1500x6000", "2", "Кронштейн", "1"),
	})
	require.NoError(t, err)
	_, err = f.reconcile.ProcessRows(ctx, []int{1})
	require.NoError(t, err)

	changed, err := f.reconcile.MarkManual(ctx, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	events, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusManual, events[0].Status)
	assert.NotEmpty(t, events[0].StatusDate)
	assert.Equal(t, domain.EventStatusWrittenOff, events[1].Status)

	changed, err = f.reconcile.UnmarkManual(ctx, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	events, err = f.reconcile.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusPending, events[0].Status)
	assert.Empty(t, events[0].StatusDate)

	_, err = f.reconcile.MarkManual(ctx, []int{5})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconciliationService_ReverseReopensEvent(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "2", "кронштейн", "12"),
	})
	require.NoError(t, err)
	report, err := f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	writeOffID := report.Outcomes[0].WriteOffID

	require.NoError(t, f.writeOffs.Reverse(ctx, writeOffID))

	events, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusPending, events[0].Status)
	assert.Empty(t, events[0].StatusDate)
	assert.Equal(t, 0, f.part(t, f.order.ID, f.orderPart.ID).Cut)
	assert.Equal(t, 6, f.reservation(t, f.res.ID).Remaining)
	assert.Equal(t, 20, f.stockItem(t, f.item.ID).OnHand)

	// The reopened row reconciles again.
	report, err = f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 12, f.part(t, f.order.ID, f.orderPart.ID).Cut)
}

func TestReconciliationService_UnparsableQuantities(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "", "Кронштейн", "много"),
	})
	require.NoError(t, err)

	report, err := f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, 1, report.Outcomes[0].Quantity)
	assert.Contains(t, report.Outcomes[0].Message, "not credited")
	assert.Equal(t, 0, f.part(t, f.order.ID, f.orderPart.ID).Cut)
}

// fixedMatcher resolves every event to the same reservation
type fixedMatcher struct {
	reservationID int
}

func (m fixedMatcher) MatchOrder(_ string, orders []domain.Order) (*domain.Order, error) {
	return &orders[0], nil
}

func (m fixedMatcher) ParseMaterial(string) (domain.MaterialDescriptor, error) {
	return domain.MaterialDescriptor{}, nil
}

func (m fixedMatcher) MatchPart(string, []*domain.OrderPart) *domain.OrderPart {
	return nil
}

func (m fixedMatcher) SelectReservation(_ domain.MaterialDescriptor, _ *domain.OrderPart, candidates []*domain.Reservation) (*domain.Reservation, error) {
	for _, r := range candidates {
		if r.ID == m.reservationID {
			return r, nil
		}
	}
	return nil, domain.ErrNoSuitableReservation
}

func TestReconciliationService_PluggableMatcher(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()
	logger := zap.NewNop()
	svc := service.NewReconciliationService(f.repo, fixedMatcher{reservationID: f.res.ID}, f.writeOffs, logger)

	_, err := svc.Import(ctx, []domain.ExternalEvent{laserEvent("anything", "no dimensions", "3", "", "")})
	require.NoError(t, err)
	report, err := svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 3, f.reservation(t, f.res.ID).Remaining)
}

func TestReconciliationService_PersistenceFailureStopsBatch(t *testing.T) {
	mem := tablestore.NewMemoryStore()
	l := setupLedgerOn(t, mem, mem)
	item := l.addStock(t, "St3", 10, 6000, 1500, 20)
	order := l.addOrder(t, "УП-123")
	l.reserve(t, order.ID, domain.NoRef, item.ID, 10)
	ctx := context.Background()
	_, err := l.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "1", "", "0"),
		laserEvent("УП-123", "St3 10x1500x6000", "2", "", "0"),
	})
	require.NoError(t, err)

	broken := setupLedgerOn(t, &failingStore{MemoryStore: mem, table: repository.TableStock}, mem)
	report, err := broken.reconcile.ProcessPending(ctx)
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, errDiskFull)

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, repository.TableStock, perr.Table)
	assert.Equal(t, []string{repository.TableSequences, repository.TableWriteOffs, repository.TableReservations}, perr.Written)
	assert.Len(t, report.Outcomes, 1)
}

func TestReconciliationService_EditEvent(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-999", "St3 10x1500x6000", "2", "Кронштейн", "12"),
	})
	require.NoError(t, err)

	report, err := f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, report.Outcomes[0].Err, domain.ErrOrderNotFound)

	edited, err := f.reconcile.EditEvent(ctx, 0, domain.UpdateEventRequest{
		Order: "УП-123", Material: "St3 10x1500x6000", MaterialQuantity: "2", Part: "Кронштейн", PartQuantity: "12",
	})
	require.NoError(t, err)
	assert.Equal(t, "УП-123", edited.Order)
	assert.Equal(t, "ivanov", edited.Operator)
	assert.Equal(t, domain.EventStatusPending, edited.Status)

	report, err = f.reconcile.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	_, err = f.reconcile.EditEvent(ctx, 0, domain.UpdateEventRequest{Order: "УП-1", Material: "St3 10x1500x6000"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.reconcile.EditEvent(ctx, 5, domain.UpdateEventRequest{Order: "УП-1", Material: "St3 10x1500x6000"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.reconcile.EditEvent(ctx, 0, domain.UpdateEventRequest{Material: "St3 10x1500x6000"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReconciliationService_DeleteEvents(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "1"),
		laserEvent("УП-123", "St3 10x1500x6000", "2", "Кронштейн", "2"),
		laserEvent("УП-123", "St3 10x1500x6000", "3", "Кронштейн", "3"),
	})
	require.NoError(t, err)
	_, err = f.reconcile.ProcessRows(ctx, []int{0})
	require.NoError(t, err)

	_, err = f.reconcile.DeleteEvents(ctx, []int{1, 7})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	events, err := f.reconcile.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)

	n, err := f.reconcile.DeleteEvents(ctx, []int{2, 0, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	events, err = f.reconcile.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2", events[0].MaterialQuantity)

	// the write-off of the deleted row stays
	history, err := f.writeOffs.List(ctx, f.res.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 5, f.reservation(t, f.res.ID).Remaining)
}

func TestReconciliationService_ClearEvents(t *testing.T) {
	f := setupReconcile(t, 6)
	ctx := context.Background()
	_, err := f.reconcile.Import(ctx, []domain.ExternalEvent{
		laserEvent("УП-123", "St3 10x1500x6000", "1", "Кронштейн", "1"),
		laserEvent("УП-123", "St3 10x1500x6000", "2", "Кронштейн", "2"),
	})
	require.NoError(t, err)

	n, err := f.reconcile.ClearEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	summary, err := f.reconcile.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)

	n, err = f.reconcile.ClearEvents(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
