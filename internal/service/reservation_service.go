package service

import (
	"context"
	"fmt"
	"time"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"go.uber.org/zap"
)

var reservationTables = []string{
	repository.TableReservations,
	repository.TableStock,
	repository.TableOrders,
	repository.TableParts,
	repository.TableWriteOffs,
}

// ReservationService earmarks sheets of stock for orders and keeps the
// reserved pool of linked stock items in step
type ReservationService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewReservationService creates a new ReservationService instance
func NewReservationService(repo *repository.Repository, logger *zap.Logger) *ReservationService {
	return &ReservationService{repo: repo, logger: logger, now: time.Now}
}

// List returns all reservations, optionally restricted to one order (orderID > 0)
func (s *ReservationService) List(ctx context.Context, orderID int) ([]domain.Reservation, error) {
	sess, err := s.repo.Begin(ctx, repository.TableReservations)
	if err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return sess.Reservations, nil
	}
	var out []domain.Reservation
	for _, r := range sess.Reservations {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Create earmarks material for an order. A linked stock item has its reserved
// pool increased even when that drives available below zero.
func (s *ReservationService) Create(ctx context.Context, req domain.CreateReservationRequest) (*domain.Reservation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.Reservation
	err := s.repo.WithSession(ctx, reservationTables, func(sess *repository.Session) error {
		if sess.FindOrder(req.OrderID) == nil {
			return domain.NotFound("order", req.OrderID)
		}
		partName, err := resolvePart(sess, req.OrderID, req.PartRef)
		if err != nil {
			return err
		}

		material := req.Material
		if req.StockRef.Valid {
			item := sess.FindStock(req.StockRef.ID)
			if item == nil {
				return domain.NotFound("stock item", req.StockRef.ID)
			}
			material = item.MaterialDescriptor
			if err := adjustReserved(sess, item.ID, req.Quantity); err != nil {
				return err
			}
		} else if err := validateDescriptor(material); err != nil {
			return err
		}

		r := domain.Reservation{
			ID:        sess.NextReservationID(),
			OrderID:   req.OrderID,
			PartRef:   req.PartRef,
			PartName:  partName,
			StockRef:  req.StockRef,
			Material:  material,
			Allocated: req.Quantity,
			CreatedAt: s.now(),
		}
		r.Recalculate()
		sess.Reservations = append(sess.Reservations, r)
		sess.Touch(repository.TableReservations)
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	s.logger.Info("Reservation created",
		zap.Int("reservation_id", result.ID),
		zap.Int("order_id", result.OrderID),
		zap.String("stock_ref", result.StockRef.String()),
		zap.Int("quantity", result.Allocated),
	)
	return &result, nil
}

// Delete returns only the remaining quantity to stock; written-off sheets are gone
func (s *ReservationService) Delete(ctx context.Context, id int) error {
	var returned int
	err := s.repo.WithSession(ctx, reservationTables, func(sess *repository.Session) error {
		r := sess.FindReservation(id)
		if r == nil {
			return domain.NotFound("reservation", id)
		}
		returned = r.Remaining
		if r.StockRef.Valid && r.Remaining != 0 {
			if err := s.moveReserved(sess, r, -r.Remaining); err != nil {
				return err
			}
		}
		sess.RemoveReservation(id)
		sess.Touch(repository.TableReservations)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, err)
	}
	s.logger.Info("Reservation deleted", zap.Int("reservation_id", id), zap.Int("returned", returned))
	return nil
}

// Edit changes quantity, order and part. The new quantity may not drop below
// what is already written off.
func (s *ReservationService) Edit(ctx context.Context, id int, req domain.UpdateReservationRequest) (*domain.Reservation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.Reservation
	err := s.repo.WithSession(ctx, reservationTables, func(sess *repository.Session) error {
		r := sess.FindReservation(id)
		if r == nil {
			return domain.NotFound("reservation", id)
		}
		if req.Quantity < r.WrittenOff {
			return domain.NewValidationError("quantity",
				fmt.Sprintf("Must be at least the written-off quantity %d", r.WrittenOff))
		}
		if sess.FindOrder(req.OrderID) == nil {
			return domain.NotFound("order", req.OrderID)
		}
		partName, err := resolvePart(sess, req.OrderID, req.PartRef)
		if err != nil {
			return err
		}

		if delta := req.Quantity - r.Allocated; delta != 0 && r.StockRef.Valid {
			if err := s.moveReserved(sess, r, delta); err != nil {
				return err
			}
		}
		r.Allocated = req.Quantity
		r.OrderID = req.OrderID
		r.PartRef = req.PartRef
		r.PartName = partName
		r.Recalculate()
		sess.Touch(repository.TableReservations)
		result = *r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit reservation %d: %w", id, err)
	}

	s.logger.Info("Reservation updated", zap.Int("reservation_id", id), zap.Int("allocated", result.Allocated))
	return &result, nil
}

// moveReserved forwards a change of the reservation to its stock item.
// A stock item deleted since the reservation was made is skipped.
func (s *ReservationService) moveReserved(sess *repository.Session, r *domain.Reservation, delta int) error {
	if sess.FindStock(r.StockRef.ID) == nil {
		s.logger.Warn("Reservation refers to a deleted stock item",
			zap.Int("reservation_id", r.ID),
			zap.Int("stock_id", r.StockRef.ID),
		)
		return nil
	}
	return adjustReserved(sess, r.StockRef.ID, delta)
}

// resolvePart checks that a linked part belongs to the order and returns its name
func resolvePart(sess *repository.Session, orderID int, ref domain.Ref) (string, error) {
	if !ref.Valid {
		return "", nil
	}
	part := sess.FindPart(ref.ID)
	if part == nil {
		return "", domain.NotFound("order part", ref.ID)
	}
	if part.OrderID != orderID {
		return "", domain.NewValidationError("partRef",
			fmt.Sprintf("Part %d belongs to order %d", part.ID, part.OrderID))
	}
	return part.Name, nil
}

func validateDescriptor(d domain.MaterialDescriptor) error {
	switch {
	case d.Grade == "":
		return domain.NewValidationError("grade", "grade is required")
	case d.Thickness <= 0:
		return domain.NewValidationError("thickness", "Must be greater than 0")
	case d.Length <= 0:
		return domain.NewValidationError("length", "Must be greater than 0")
	case d.Width <= 0:
		return domain.NewValidationError("width", "Must be greater than 0")
	}
	return nil
}
