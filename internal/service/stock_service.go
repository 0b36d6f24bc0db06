package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/mapper"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"go.uber.org/zap"
)

// stockCreateTables are loaded wherever stock may be created so new ids
// skip the references left behind by deleted items
var stockCreateTables = []string{
	repository.TableStock,
	repository.TableReservations,
	repository.TableWriteOffs,
}

// StockService owns on-hand, reserved and available quantities of sheet stock
type StockService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewStockService creates a new StockService instance
func NewStockService(repo *repository.Repository, logger *zap.Logger) *StockService {
	return &StockService{repo: repo, logger: logger, now: time.Now}
}

// List returns all stock items in table order
func (s *StockService) List(ctx context.Context) ([]domain.StockItem, error) {
	sess, err := s.repo.Begin(ctx, repository.TableStock)
	if err != nil {
		return nil, err
	}
	return sess.Stock, nil
}

// Get returns one stock item
func (s *StockService) Get(ctx context.Context, id int) (*domain.StockItem, error) {
	sess, err := s.repo.Begin(ctx, repository.TableStock)
	if err != nil {
		return nil, err
	}
	item := sess.FindStock(id)
	if item == nil {
		return nil, domain.NotFound("stock item", id)
	}
	return item, nil
}

// AddOrMerge adds sheets to the item with the same natural key, or creates one.
// The boolean reports whether an existing item was merged into.
func (s *StockService) AddOrMerge(ctx context.Context, req domain.AddStockRequest) (*domain.StockItem, bool, error) {
	if err := validateRequest(req); err != nil {
		return nil, false, err
	}

	var (
		result domain.StockItem
		merged bool
	)
	err := s.repo.WithSession(ctx, stockCreateTables, func(sess *repository.Session) error {
		item, m := addOrMergeStock(sess, req.Descriptor(), req.Quantity, s.now())
		result, merged = *item, m
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add stock", zap.String("grade", req.Grade), zap.Error(err))
		return nil, false, fmt.Errorf("failed to add stock: %w", err)
	}

	s.logger.Info("Stock added",
		zap.Int("stock_id", result.ID),
		zap.Int("quantity", req.Quantity),
		zap.Bool("merged", merged),
	)
	return &result, merged, nil
}

// Edit replaces descriptor and on-hand. Reserved is kept as is.
func (s *StockService) Edit(ctx context.Context, id int, req domain.UpdateStockRequest) (*domain.StockItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result domain.StockItem
	err := s.repo.WithSession(ctx, []string{repository.TableStock}, func(sess *repository.Session) error {
		item := sess.FindStock(id)
		if item == nil {
			return domain.NotFound("stock item", id)
		}
		item.MaterialDescriptor = domain.MaterialDescriptor{
			Grade:     req.Grade,
			Thickness: req.Thickness,
			Length:    req.Length,
			Width:     req.Width,
		}
		item.OnHand = req.OnHand
		item.Recalculate()
		sess.Touch(repository.TableStock)
		result = *item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit stock item %d: %w", id, err)
	}

	if result.Overdrawn() {
		s.logger.Warn("Stock item overdrawn after edit", zap.Int("stock_id", id), zap.Int("available", result.Available))
	}
	return &result, nil
}

// Delete removes a stock item. Reservations pointing at it are left as they are.
func (s *StockService) Delete(ctx context.Context, id int) error {
	tables := []string{repository.TableStock, repository.TableReservations}
	err := s.repo.WithSession(ctx, tables, func(sess *repository.Session) error {
		if !sess.RemoveStock(id) {
			return domain.NotFound("stock item", id)
		}
		dangling := 0
		for _, r := range sess.Reservations {
			if r.StockRef.Is(id) && r.Remaining > 0 {
				dangling++
			}
		}
		if dangling > 0 {
			s.logger.Warn("Deleted stock item still has open reservations",
				zap.Int("stock_id", id),
				zap.Int("reservations", dangling),
			)
		}
		sess.Touch(repository.TableStock)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete stock item %d: %w", id, err)
	}
	s.logger.Info("Stock item deleted", zap.Int("stock_id", id))
	return nil
}

// AdjustReservedAndAvailable moves delta sheets into (or out of, when negative) the reserved pool
func (s *StockService) AdjustReservedAndAvailable(ctx context.Context, id, delta int) (*domain.StockItem, error) {
	var result domain.StockItem
	err := s.repo.WithSession(ctx, []string{repository.TableStock}, func(sess *repository.Session) error {
		if err := adjustReserved(sess, id, delta); err != nil {
			return err
		}
		result = *sess.FindStock(id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to adjust reserved of stock item %d: %w", id, err)
	}
	return &result, nil
}

// Balance reports per-item quantities with the total written off from each item
func (s *StockService) Balance(ctx context.Context, prefs config.Preferences) ([]domain.BalanceRow, error) {
	sess, err := s.repo.Begin(ctx, repository.TableStock, repository.TableWriteOffs)
	if err != nil {
		return nil, err
	}
	written := sess.WrittenOffByStock()

	rows := make([]domain.BalanceRow, 0, len(sess.Stock))
	for _, it := range sess.Stock {
		if prefs.HideZeroBalance && it.OnHand == 0 && it.Reserved == 0 {
			continue
		}
		rows = append(rows, mapper.ToBalanceRow(&it, written[it.ID]))
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Material, rows[j].Material
		if a.Grade != b.Grade {
			return a.Grade < b.Grade
		}
		return a.Thickness < b.Thickness
	})
	return rows, nil
}

// addOrMergeStock returns a pointer into sess.Stock; it is valid until the slice grows again
func addOrMergeStock(sess *repository.Session, d domain.MaterialDescriptor, qty int, now time.Time) (*domain.StockItem, bool) {
	sess.Touch(repository.TableStock)
	if item := sess.FindStockByKey(d); item != nil {
		item.OnHand += qty
		item.Recalculate()
		return item, true
	}
	item := domain.StockItem{
		ID:                 sess.NextStockID(),
		MaterialDescriptor: d,
		OnHand:             qty,
		CreatedAt:          now,
	}
	item.Recalculate()
	sess.Stock = append(sess.Stock, item)
	return &sess.Stock[len(sess.Stock)-1], false
}

// adjustReserved is the single place that changes reserved outside of Edit
func adjustReserved(sess *repository.Session, id, delta int) error {
	item := sess.FindStock(id)
	if item == nil {
		return domain.NotFound("stock item", id)
	}
	item.Reserved += delta
	item.Recalculate()
	sess.Touch(repository.TableStock)
	return nil
}

// consumeStock removes written-off sheets from both on-hand and reserved.
// A negative qty puts them back.
func consumeStock(sess *repository.Session, id, qty int) error {
	item := sess.FindStock(id)
	if item == nil {
		return domain.NotFound("stock item", id)
	}
	item.OnHand -= qty
	return adjustReserved(sess, id, -qty)
}
