package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/matching"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"go.uber.org/zap"
)

// StatusDateLayout is the format of the status date of event rows
const StatusDateLayout = "2006-01-02 15:04"

var reconcileTables = []string{
	repository.TableEvents,
	repository.TableOrders,
	repository.TableParts,
	repository.TableReservations,
	repository.TableStock,
	repository.TableWriteOffs,
}

// ReconciliationService matches laser cutting events to reservations and writes them off
type ReconciliationService struct {
	repo      *repository.Repository
	matcher   matching.Matcher
	writeOffs *WriteOffService
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciliationService creates a new ReconciliationService instance
func NewReconciliationService(repo *repository.Repository, matcher matching.Matcher, writeOffs *WriteOffService, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{
		repo:      repo,
		matcher:   matcher,
		writeOffs: writeOffs,
		logger:    logger,
		now:       time.Now,
	}
}

// Events returns the persisted event rows
func (s *ReconciliationService) Events(ctx context.Context) ([]domain.ExternalEvent, error) {
	sess, err := s.repo.Begin(ctx, repository.TableEvents)
	if err != nil {
		return nil, err
	}
	return sess.Events, nil
}

// Import replaces the event table with batch. Rows already known keep their
// status and status date, new rows start Pending and rows missing from the
// batch are dropped. Identical rows are paired in order of appearance.
func (s *ReconciliationService) Import(ctx context.Context, batch []domain.ExternalEvent) (*domain.EventMergeStats, error) {
	var stats domain.EventMergeStats
	err := s.repo.WithSession(ctx, []string{repository.TableEvents}, func(sess *repository.Session) error {
		known := make(map[domain.EventKey][]domain.ExternalEvent)
		for _, e := range sess.Events {
			known[e.Key()] = append(known[e.Key()], e)
		}

		merged := make([]domain.ExternalEvent, 0, len(batch))
		for _, e := range batch {
			key := e.Key()
			if prev := known[key]; len(prev) > 0 {
				e.Status = prev[0].Status
				e.StatusDate = prev[0].StatusDate
				known[key] = prev[1:]
				stats.Kept++
			} else {
				e.Status = domain.EventStatusPending
				e.StatusDate = ""
				stats.New++
			}
			merged = append(merged, e)
		}
		for _, rest := range known {
			stats.Dropped += len(rest)
		}

		sess.Events = merged
		sess.Touch(repository.TableEvents)
		countStatuses(&stats, merged)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to import laser events", zap.Error(err))
		return nil, fmt.Errorf("failed to import events: %w", err)
	}

	s.logger.Info("Laser events imported",
		zap.Int("total", stats.Total),
		zap.Int("new", stats.New),
		zap.Int("kept", stats.Kept),
		zap.Int("dropped", stats.Dropped),
	)
	return &stats, nil
}

// ProcessPending reconciles every Pending row
func (s *ReconciliationService) ProcessPending(ctx context.Context) (*domain.ReconcileReport, error) {
	sess, err := s.repo.Begin(ctx, repository.TableEvents)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i, e := range sess.Events {
		if e.Status == domain.EventStatusPending {
			rows = append(rows, i)
		}
	}
	return s.ProcessRows(ctx, rows)
}

// ProcessRows reconciles the given rows one at a time. A row that cannot be
// matched is reported and left Pending; rows already done stay committed.
// Only a store failure stops the batch.
func (s *ReconciliationService) ProcessRows(ctx context.Context, rows []int) (*domain.ReconcileReport, error) {
	report := &domain.ReconcileReport{RunID: uuid.New().String()}
	log := s.logger.With(zap.String("run_id", report.RunID))

	for _, row := range rows {
		var outcome domain.EventOutcome
		err := s.repo.WithSession(ctx, reconcileTables, func(sess *repository.Session) error {
			var err error
			outcome, err = s.processRow(sess, row)
			return err
		})

		var perr *domain.PersistenceError
		if errors.As(err, &perr) {
			log.Error("Reconciliation aborted", zap.Int("row", row), zap.Error(err))
			report.Outcomes = append(report.Outcomes, domain.EventOutcome{Row: row, Err: err, Message: err.Error()})
			report.Failed++
			return report, fmt.Errorf("failed to reconcile row %d: %w", row, err)
		}
		if err != nil {
			outcome = domain.EventOutcome{Row: row, Err: err, Message: err.Error()}
			report.Failed++
			log.Warn("Event row not reconciled", zap.Int("row", row), zap.Error(err))
		} else if !outcome.Skipped {
			report.Processed++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	log.Info("Reconciliation finished",
		zap.Int("rows", len(rows)),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// processRow returns an error for rows that fail to match; nothing of the row
// is committed then.
func (s *ReconciliationService) processRow(sess *repository.Session, row int) (domain.EventOutcome, error) {
	outcome := domain.EventOutcome{Row: row}
	e := sess.FindEvent(row)
	if e == nil {
		return outcome, domain.NotFound("event row", row)
	}
	if e.Status != domain.EventStatusPending {
		outcome.Skipped = true
		outcome.Message = fmt.Sprintf("status is %s", e.Status)
		return outcome, nil
	}

	order, err := s.matcher.MatchOrder(e.Order, sess.Orders)
	if err != nil {
		return outcome, err
	}
	material, err := s.matcher.ParseMaterial(e.Material)
	if err != nil {
		return outcome, err
	}
	part := s.matcher.MatchPart(e.Part, sess.PartsOf(order.ID))
	res, err := s.matcher.SelectReservation(material, part, sess.OpenReservationsOf(order.ID))
	if err != nil {
		return outcome, err
	}

	qty, err := repository.ParseQuantity(e.MaterialQuantity)
	if err != nil || qty <= 0 {
		qty = 1
	}
	if qty > res.Remaining {
		outcome.Clamped = true
		outcome.Message = fmt.Sprintf("quantity %d clamped to reservation remainder %d", qty, res.Remaining)
		qty = res.Remaining
	}
	if res.StockRef.Valid {
		if item := sess.FindStock(res.StockRef.ID); item != nil && qty > item.OnHand {
			if item.OnHand <= 0 {
				return outcome, fmt.Errorf("%w: stock item %d is empty", domain.ErrInsufficientStock, item.ID)
			}
			outcome.Clamped = true
			outcome.Message = joinMessage(outcome.Message, fmt.Sprintf("quantity %d clamped to on-hand %d", qty, item.OnHand))
			qty = item.OnHand
		}
	}

	partQty, err := repository.ParseQuantity(e.PartQuantity)
	if err != nil || partQty < 0 {
		partQty = 0
		outcome.Message = joinMessage(outcome.Message, fmt.Sprintf("part quantity %q not credited", e.PartQuantity))
	}

	prov := Provenance{
		Operator:     e.Operator,
		Part:         e.Part,
		PartQuantity: partQty,
		HasQuantity:  true,
		Timestamp:    e.Timestamp(),
	}
	if part != nil {
		prov.Part = part.Name
	}

	writtenAt, err := repository.ParseTime(e.Timestamp())
	if err != nil {
		writtenAt = s.now()
	}
	w, err := s.writeOffs.record(sess, res, qty, prov.String(), writtenAt)
	if err != nil {
		return outcome, err
	}

	if part != nil && partQty > 0 {
		part.Cut += partQty
		sess.Touch(repository.TableParts)
	}

	e.Status = domain.EventStatusWrittenOff
	e.StatusDate = s.now().Format(StatusDateLayout)
	sess.Touch(repository.TableEvents)

	outcome.WriteOffID = w.ID
	outcome.Quantity = qty
	return outcome, nil
}

// MarkManual flags Pending rows as handled outside the ledger. Rows in any
// other state are left unchanged; the count of changed rows is returned.
func (s *ReconciliationService) MarkManual(ctx context.Context, rows []int) (int, error) {
	return s.setStatus(ctx, rows, domain.EventStatusPending, domain.EventStatusManual)
}

// UnmarkManual returns Manual rows to Pending
func (s *ReconciliationService) UnmarkManual(ctx context.Context, rows []int) (int, error) {
	return s.setStatus(ctx, rows, domain.EventStatusManual, domain.EventStatusPending)
}

func (s *ReconciliationService) setStatus(ctx context.Context, rows []int, from, to domain.EventStatus) (int, error) {
	changed := 0
	err := s.repo.WithSession(ctx, []string{repository.TableEvents}, func(sess *repository.Session) error {
		for _, row := range rows {
			e := sess.FindEvent(row)
			if e == nil {
				return domain.NotFound("event row", row)
			}
			if e.Status != from {
				s.logger.Warn("Event row status not changed",
					zap.Int("row", row),
					zap.String("status", string(e.Status)),
					zap.String("wanted", string(to)),
				)
				continue
			}
			e.Status = to
			e.StatusDate = ""
			if to == domain.EventStatusManual {
				e.StatusDate = s.now().Format(StatusDateLayout)
			}
			changed++
		}
		if changed > 0 {
			sess.Touch(repository.TableEvents)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to set event status %s: %w", to, err)
	}
	return changed, nil
}

// EditEvent replaces the order, material, part and quantities of a Pending
// or Manual row. Written-off rows are refused: reversal finds them by content.
func (s *ReconciliationService) EditEvent(ctx context.Context, row int, req domain.UpdateEventRequest) (*domain.ExternalEvent, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.ExternalEvent
	err := s.repo.WithSession(ctx, []string{repository.TableEvents}, func(sess *repository.Session) error {
		e := sess.FindEvent(row)
		if e == nil {
			return domain.NotFound("event row", row)
		}
		if e.Status == domain.EventStatusWrittenOff {
			return fmt.Errorf("%w: event row %d is written off; reverse its write-off first", domain.ErrValidation, row)
		}
		e.Order = req.Order
		e.Material = req.Material
		e.MaterialQuantity = req.MaterialQuantity
		e.Part = req.Part
		e.PartQuantity = req.PartQuantity
		sess.Touch(repository.TableEvents)
		result = *e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit event row %d: %w", row, err)
	}
	s.logger.Info("Event row updated", zap.Int("row", row))
	return &result, nil
}

// DeleteEvents removes the given rows. Every row is checked before any is
// removed. Write-offs made from deleted rows stay in the ledger.
func (s *ReconciliationService) DeleteEvents(ctx context.Context, rows []int) (int, error) {
	removed := 0
	err := s.repo.WithSession(ctx, []string{repository.TableEvents}, func(sess *repository.Session) error {
		drop := make(map[int]bool, len(rows))
		for _, row := range rows {
			e := sess.FindEvent(row)
			if e == nil {
				return domain.NotFound("event row", row)
			}
			if e.Status == domain.EventStatusWrittenOff && !drop[row] {
				s.logger.Warn("Deleting written-off event row", zap.Int("row", row), zap.String("event", e.Timestamp()))
			}
			drop[row] = true
		}
		if len(drop) == 0 {
			return nil
		}

		kept := make([]domain.ExternalEvent, 0, len(sess.Events)-len(drop))
		for i, e := range sess.Events {
			if !drop[i] {
				kept = append(kept, e)
			}
		}
		removed = len(sess.Events) - len(kept)
		sess.Events = kept
		sess.Touch(repository.TableEvents)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete event rows: %w", err)
	}
	s.logger.Info("Event rows deleted", zap.Int("rows", removed))
	return removed, nil
}

// ClearEvents empties the event table and returns the number of rows removed
func (s *ReconciliationService) ClearEvents(ctx context.Context) (int, error) {
	removed := 0
	err := s.repo.WithSession(ctx, []string{repository.TableEvents}, func(sess *repository.Session) error {
		removed = len(sess.Events)
		sess.Events = nil
		sess.Touch(repository.TableEvents)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear event table: %w", err)
	}
	s.logger.Info("Event table cleared", zap.Int("rows", removed))
	return removed, nil
}

// Summary counts event rows per status
func (s *ReconciliationService) Summary(ctx context.Context) (*domain.EventMergeStats, error) {
	sess, err := s.repo.Begin(ctx, repository.TableEvents)
	if err != nil {
		return nil, err
	}
	var stats domain.EventMergeStats
	countStatuses(&stats, sess.Events)
	return &stats, nil
}

func countStatuses(stats *domain.EventMergeStats, events []domain.ExternalEvent) {
	stats.Total = len(events)
	for _, e := range events {
		switch e.Status {
		case domain.EventStatusWrittenOff:
			stats.WrittenOff++
		case domain.EventStatusManual:
			stats.Manual++
		default:
			stats.Pending++
		}
	}
}

func joinMessage(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
