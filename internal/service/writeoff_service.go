package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"go.uber.org/zap"
)

var writeOffTables = []string{
	repository.TableWriteOffs,
	repository.TableReservations,
	repository.TableStock,
	repository.TableParts,
	repository.TableEvents,
}

// WriteOffService records consumed material against reservations
type WriteOffService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewWriteOffService creates a new WriteOffService instance
func NewWriteOffService(repo *repository.Repository, logger *zap.Logger) *WriteOffService {
	return &WriteOffService{repo: repo, logger: logger, now: time.Now}
}

// List returns the write-off history, optionally for one reservation (reservationID > 0)
func (s *WriteOffService) List(ctx context.Context, reservationID int) ([]domain.WriteOff, error) {
	sess, err := s.repo.Begin(ctx, repository.TableWriteOffs)
	if err != nil {
		return nil, err
	}
	if reservationID <= 0 {
		return sess.WriteOffs, nil
	}
	var out []domain.WriteOff
	for _, w := range sess.WriteOffs {
		if w.ReservationID == reservationID {
			out = append(out, w)
		}
	}
	return out, nil
}

// Create writes off qty from a reservation. Unlike reconciliation it never
// clamps: a quantity above the remainder or above on-hand is rejected.
func (s *WriteOffService) Create(ctx context.Context, req domain.CreateWriteOffRequest) (*domain.WriteOff, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.WriteOff
	err := s.repo.WithSession(ctx, writeOffTables, func(sess *repository.Session) error {
		r := sess.FindReservation(req.ReservationID)
		if r == nil {
			return domain.NotFound("reservation", req.ReservationID)
		}
		if req.Quantity > r.Remaining {
			return &domain.RemainderError{ReservationID: r.ID, Requested: req.Quantity, Remaining: r.Remaining}
		}
		if err := checkOnHand(sess, r.StockRef, req.Quantity); err != nil {
			return err
		}

		w, err := s.record(sess, r, req.Quantity, req.Comment, s.now())
		if err != nil {
			return err
		}
		if p, ok := ParseProvenance(w.Comment); ok {
			s.shiftCut(sess, w, p, +1)
		}
		result = *w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create write-off: %w", err)
	}

	s.logger.Info("Write-off created",
		zap.Int("writeoff_id", result.ID),
		zap.Int("reservation_id", result.ReservationID),
		zap.Int("quantity", result.Quantity),
	)
	return &result, nil
}

// Reverse deletes a write-off and returns its quantity to the reservation and stock.
// A reconciled write-off also hands its event row back to Pending.
func (s *WriteOffService) Reverse(ctx context.Context, id int) error {
	err := s.repo.WithSession(ctx, writeOffTables, func(sess *repository.Session) error {
		w := sess.FindWriteOff(id)
		if w == nil {
			return domain.NotFound("write-off", id)
		}
		reversed := *w
		if err := s.apply(sess, &reversed, -reversed.Quantity); err != nil {
			return err
		}
		sess.RemoveWriteOff(id)
		sess.Touch(repository.TableWriteOffs)

		if p, ok := ParseProvenance(reversed.Comment); ok {
			s.shiftCut(sess, &reversed, p, -1)
			s.reopenEvent(sess, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reverse write-off %d: %w", id, err)
	}
	s.logger.Info("Write-off reversed", zap.Int("writeoff_id", id))
	return nil
}

// Edit changes quantity and comment, applying only the difference to the
// reservation and stock.
func (s *WriteOffService) Edit(ctx context.Context, id int, req domain.UpdateWriteOffRequest) (*domain.WriteOff, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.WriteOff
	err := s.repo.WithSession(ctx, writeOffTables, func(sess *repository.Session) error {
		w := sess.FindWriteOff(id)
		if w == nil {
			return domain.NotFound("write-off", id)
		}
		r := sess.FindReservation(w.ReservationID)
		if r == nil {
			return domain.NotFound("reservation", w.ReservationID)
		}
		delta := req.Quantity - w.Quantity
		if delta > r.Remaining {
			return &domain.RemainderError{ReservationID: r.ID, Requested: delta, Remaining: r.Remaining}
		}
		if err := checkOnHand(sess, w.StockRef, delta); err != nil {
			return err
		}
		if err := s.apply(sess, w, delta); err != nil {
			return err
		}

		oldProv, hadOld := ParseProvenance(w.Comment)
		w.Quantity = req.Quantity
		w.Comment = req.Comment
		newProv, hasNew := ParseProvenance(w.Comment)
		if hadOld != hasNew || oldProv != newProv {
			if hadOld {
				s.shiftCut(sess, w, oldProv, -1)
			}
			if hasNew {
				s.shiftCut(sess, w, newProv, +1)
			}
		}
		sess.Touch(repository.TableWriteOffs)
		result = *w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit write-off %d: %w", id, err)
	}

	s.logger.Info("Write-off updated", zap.Int("writeoff_id", id), zap.Int("quantity", result.Quantity))
	return &result, nil
}

// checkOnHand rejects taking qty more sheets from a linked stock item than it holds
func checkOnHand(sess *repository.Session, ref domain.Ref, qty int) error {
	if !ref.Valid || qty <= 0 {
		return nil
	}
	if item := sess.FindStock(ref.ID); item != nil && qty > item.OnHand {
		return fmt.Errorf("%w: stock item %d has %d on hand, requested %d",
			domain.ErrInsufficientStock, item.ID, item.OnHand, qty)
	}
	return nil
}

// record appends a write-off of qty against r and moves the quantities.
// The caller has already checked qty against the remainder.
func (s *WriteOffService) record(sess *repository.Session, r *domain.Reservation, qty int, comment string, at time.Time) (*domain.WriteOff, error) {
	w := domain.WriteOff{
		ID:            sess.NextWriteOffID(),
		ReservationID: r.ID,
		OrderID:       r.OrderID,
		StockRef:      r.StockRef,
		Material:      r.Material,
		Quantity:      qty,
		WrittenAt:     at,
		Comment:       comment,
	}
	if err := s.apply(sess, &w, qty); err != nil {
		return nil, err
	}
	sess.WriteOffs = append(sess.WriteOffs, w)
	sess.Touch(repository.TableWriteOffs)
	return &sess.WriteOffs[len(sess.WriteOffs)-1], nil
}

// apply moves delta sheets of w from its reservation remainder into written-off
// and out of stock. A negative delta is the inverse.
func (s *WriteOffService) apply(sess *repository.Session, w *domain.WriteOff, delta int) error {
	r := sess.FindReservation(w.ReservationID)
	if r == nil {
		return domain.NotFound("reservation", w.ReservationID)
	}
	written := r.WrittenOff + delta
	if written < 0 || written > r.Allocated {
		return &domain.RemainderError{ReservationID: r.ID, Requested: delta, Remaining: r.Remaining}
	}
	r.WrittenOff = written
	r.Recalculate()
	sess.Touch(repository.TableReservations)

	if !w.StockRef.Valid {
		return nil
	}
	if sess.FindStock(w.StockRef.ID) == nil {
		s.logger.Warn("Write-off refers to a deleted stock item",
			zap.Int("reservation_id", r.ID),
			zap.Int("stock_id", w.StockRef.ID),
		)
		return nil
	}
	return consumeStock(sess, w.StockRef.ID, delta)
}

// shiftCut moves the cut counter of the part named in the provenance by the
// part quantity it carries. Failures are logged and ignored.
func (s *WriteOffService) shiftCut(sess *repository.Session, w *domain.WriteOff, p Provenance, sign int) {
	qty := p.PartQuantity
	if !p.HasQuantity {
		qty = s.eventPartQuantity(sess, p)
	}
	if qty <= 0 {
		return
	}

	parts := sess.PartsOf(w.OrderID)
	var matches []*domain.OrderPart
	for _, part := range parts {
		if strings.EqualFold(strings.TrimSpace(part.Name), strings.TrimSpace(p.Part)) {
			matches = append(matches, part)
		}
	}
	if len(matches) == 0 {
		for _, part := range parts {
			if sameName(part.Name, p.Part) {
				matches = append(matches, part)
			}
		}
	}
	if len(matches) != 1 {
		s.logger.Warn("Cannot locate part for cut counter",
			zap.Int("writeoff_id", w.ID),
			zap.String("part", p.Part),
			zap.Int("candidates", len(matches)),
		)
		return
	}

	part := matches[0]
	part.Cut += sign * qty
	if part.Cut < 0 {
		part.Cut = 0
	}
	sess.Touch(repository.TableParts)
}

// eventPartQuantity recovers the part quantity of legacy comments from the event row
func (s *WriteOffService) eventPartQuantity(sess *repository.Session, p Provenance) int {
	if e := findEventFor(sess, p, domain.EventStatusWrittenOff); e != nil {
		if n, err := repository.ParseQuantity(e.PartQuantity); err == nil {
			return n
		}
	}
	return 0
}

// reopenEvent puts the event row that produced a reconciled write-off back to Pending
func (s *WriteOffService) reopenEvent(sess *repository.Session, p Provenance) {
	e := findEventFor(sess, p, domain.EventStatusWrittenOff)
	if e == nil {
		s.logger.Warn("No written-off event row matches reversed write-off",
			zap.String("operator", p.Operator),
			zap.String("event", p.Timestamp),
		)
		return
	}
	e.Status = domain.EventStatusPending
	e.StatusDate = ""
	sess.Touch(repository.TableEvents)
}

func findEventFor(sess *repository.Session, p Provenance, status domain.EventStatus) *domain.ExternalEvent {
	for i := range sess.Events {
		e := &sess.Events[i]
		if e.Status == status && e.Timestamp() == p.Timestamp && e.Operator == p.Operator && sameName(e.Part, p.Part) {
			return e
		}
	}
	return nil
}

// sameName compares part names the way reconciliation matched them
func sameName(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
