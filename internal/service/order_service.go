package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"go.uber.org/zap"
)

// OrderService is the order and part registry
type OrderService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewOrderService creates a new OrderService instance
func NewOrderService(repo *repository.Repository, logger *zap.Logger) *OrderService {
	return &OrderService{repo: repo, logger: logger, now: time.Now}
}

// List returns orders in table order. Done and cancelled orders are hidden
// when the preferences ask for it.
func (s *OrderService) List(ctx context.Context, prefs config.Preferences) ([]domain.Order, error) {
	sess, err := s.repo.Begin(ctx, repository.TableOrders)
	if err != nil {
		return nil, err
	}
	if !prefs.HideCompletedOrders {
		return sess.Orders, nil
	}
	out := make([]domain.Order, 0, len(sess.Orders))
	for _, o := range sess.Orders {
		if o.Status == domain.OrderStatusDone || o.Status == domain.OrderStatusCancelled {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Get returns an order with its parts
func (s *OrderService) Get(ctx context.Context, id int) (*domain.Order, []domain.OrderPart, error) {
	sess, err := s.repo.Begin(ctx, repository.TableOrders, repository.TableParts)
	if err != nil {
		return nil, nil, err
	}
	o := sess.FindOrder(id)
	if o == nil {
		return nil, nil, domain.NotFound("order", id)
	}
	parts := make([]domain.OrderPart, 0)
	for _, p := range sess.PartsOf(id) {
		parts = append(parts, *p)
	}
	return o, parts, nil
}

// Create adds an order. Status defaults to New.
func (s *OrderService) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.Order
	err := s.repo.WithSession(ctx, []string{repository.TableOrders}, func(sess *repository.Session) error {
		result = createOrder(sess, req, s.now())
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create order", zap.String("name", req.Name), zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created", zap.Int("order_id", result.ID), zap.String("name", result.Name))
	return &result, nil
}

// Update replaces the editable fields of an order
func (s *OrderService) Update(ctx context.Context, id int, req domain.UpdateOrderRequest) (*domain.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.Order
	err := s.repo.WithSession(ctx, []string{repository.TableOrders}, func(sess *repository.Session) error {
		o := sess.FindOrder(id)
		if o == nil {
			return domain.NotFound("order", id)
		}
		o.Name = req.Name
		o.Customer = req.Customer
		o.Status = req.Status
		o.Notes = req.Notes
		sess.Touch(repository.TableOrders)
		result = *o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update order %d: %w", id, err)
	}
	return &result, nil
}

// Delete removes an order and its parts. Its reservations stay behind orphaned.
func (s *OrderService) Delete(ctx context.Context, id int) error {
	tables := []string{repository.TableOrders, repository.TableParts, repository.TableReservations}
	err := s.repo.WithSession(ctx, tables, func(sess *repository.Session) error {
		if !sess.RemoveOrder(id) {
			return domain.NotFound("order", id)
		}
		removed := sess.RemovePartsOf(id)
		orphaned := 0
		for _, r := range sess.Reservations {
			if r.OrderID == id {
				orphaned++
			}
		}
		if orphaned > 0 {
			s.logger.Warn("Deleted order leaves orphaned reservations",
				zap.Int("order_id", id),
				zap.Int("reservations", orphaned),
			)
		}
		sess.Touch(repository.TableOrders, repository.TableParts)
		s.logger.Info("Order deleted", zap.Int("order_id", id), zap.Int("parts_removed", removed))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}
	return nil
}

// AddPart adds a requested part line to an order
func (s *OrderService) AddPart(ctx context.Context, req domain.CreatePartRequest) (*domain.OrderPart, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.OrderPart
	tables := []string{repository.TableOrders, repository.TableParts}
	err := s.repo.WithSession(ctx, tables, func(sess *repository.Session) error {
		if sess.FindOrder(req.OrderID) == nil {
			return domain.NotFound("order", req.OrderID)
		}
		result = addPart(sess, req.OrderID, req.Name, req.Quantity)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add part: %w", err)
	}
	return &result, nil
}

// UpdatePart renames a part or changes its requested quantity. Reservations
// keep the part name they were created with.
func (s *OrderService) UpdatePart(ctx context.Context, id int, req domain.UpdatePartRequest) (*domain.OrderPart, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.OrderPart
	err := s.repo.WithSession(ctx, []string{repository.TableParts}, func(sess *repository.Session) error {
		p := sess.FindPart(id)
		if p == nil {
			return domain.NotFound("order part", id)
		}
		p.Name = req.Name
		p.Quantity = req.Quantity
		sess.Touch(repository.TableParts)
		result = *p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update part %d: %w", id, err)
	}
	return &result, nil
}

// DeletePart removes a part line
func (s *OrderService) DeletePart(ctx context.Context, id int) error {
	err := s.repo.WithSession(ctx, []string{repository.TableParts}, func(sess *repository.Session) error {
		if !sess.RemovePart(id) {
			return domain.NotFound("order part", id)
		}
		sess.Touch(repository.TableParts)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete part %d: %w", id, err)
	}
	return nil
}

// SetStages sets the cut and bent counters. Values beyond the requested
// quantity are accepted and reported as warnings.
func (s *OrderService) SetStages(ctx context.Context, partID int, req domain.UpdateStagesRequest) (*domain.OrderPart, []string, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	var (
		result   domain.OrderPart
		warnings []string
	)
	err := s.repo.WithSession(ctx, []string{repository.TableParts}, func(sess *repository.Session) error {
		p := sess.FindPart(partID)
		if p == nil {
			return domain.NotFound("order part", partID)
		}
		p.Cut = req.Cut
		p.Bent = req.Bent
		sess.Touch(repository.TableParts)
		result = *p
		warnings = stageWarnings(p)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set stages of part %d: %w", partID, err)
	}

	for _, w := range warnings {
		s.logger.Warn("Stage counter out of range", zap.Int("part_id", partID), zap.String("warning", w))
	}
	return &result, warnings, nil
}

func createOrder(sess *repository.Session, req domain.CreateOrderRequest, now time.Time) domain.Order {
	status := req.Status
	if status == "" {
		status = domain.OrderStatusNew
	}
	o := domain.Order{
		ID:        sess.NextOrderID(),
		Name:      strings.TrimSpace(req.Name),
		Customer:  strings.TrimSpace(req.Customer),
		CreatedAt: now,
		Status:    status,
		Notes:     req.Notes,
	}
	sess.Orders = append(sess.Orders, o)
	sess.Touch(repository.TableOrders)
	return o
}

func addPart(sess *repository.Session, orderID int, name string, qty int) domain.OrderPart {
	p := domain.OrderPart{
		ID:       sess.NextPartID(),
		OrderID:  orderID,
		Name:     strings.TrimSpace(name),
		Quantity: qty,
	}
	sess.Parts = append(sess.Parts, p)
	sess.Touch(repository.TableParts)
	return p
}

func stageWarnings(p *domain.OrderPart) []string {
	var out []string
	if p.Cut > p.Quantity {
		out = append(out, fmt.Sprintf("cut %d exceeds requested %d", p.Cut, p.Quantity))
	}
	if p.Bent > p.Cut {
		out = append(out, fmt.Sprintf("bent %d exceeds cut %d", p.Bent, p.Cut))
	}
	return out
}
