package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/exporter"
	"github.com/straye-as/sheet-ledger/internal/importer"
	"github.com/straye-as/sheet-ledger/internal/mapper"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"github.com/straye-as/sheet-ledger/internal/storage"
	"go.uber.org/zap"
)

// Artifact kinds, also the top-level folders in storage
const (
	ArtifactBalance   = "balance"
	ArtifactLaserTask = "laser_task"
	ArtifactTemplate  = "template"
	ArtifactEvents    = "laser_log"
)

// ExportService builds report workbooks and stores them
type ExportService struct {
	repo    *repository.Repository
	stock   *StockService
	storage storage.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService creates a new ExportService instance
func NewExportService(repo *repository.Repository, stock *StockService, store storage.Storage, logger *zap.Logger) *ExportService {
	return &ExportService{repo: repo, stock: stock, storage: store, logger: logger, now: time.Now}
}

// LaserTask returns one row per reservation of the given orders, or of every
// InProgress order when orderIDs is empty. Orders without reservations are
// reported as warnings.
func (s *ExportService) LaserTask(ctx context.Context, orderIDs []int) ([]domain.LaserTaskRow, []string, error) {
	sess, err := s.repo.Begin(ctx, repository.TableOrders, repository.TableReservations)
	if err != nil {
		return nil, nil, err
	}

	var selected []*domain.Order
	if len(orderIDs) == 0 {
		for i := range sess.Orders {
			if sess.Orders[i].Status == domain.OrderStatusInProgress {
				selected = append(selected, &sess.Orders[i])
			}
		}
	}
	for _, id := range orderIDs {
		o := sess.FindOrder(id)
		if o == nil {
			return nil, nil, domain.NotFound("order", id)
		}
		selected = append(selected, o)
	}

	var (
		rows     []domain.LaserTaskRow
		warnings []string
	)
	for _, o := range selected {
		found := false
		for i := range sess.Reservations {
			r := sess.Reservations[i]
			if r.OrderID != o.ID {
				continue
			}
			found = true
			rows = append(rows, mapper.ToLaserTaskRow(o, &r))
		}
		if !found {
			warnings = append(warnings, fmt.Sprintf("%s - %s: no reservations", o.Customer, o.Name))
		}
	}
	return rows, warnings, nil
}

// ExportLaserTask writes the laser task workbook to storage
func (s *ExportService) ExportLaserTask(ctx context.Context, orderIDs []int) (*storage.Artifact, []string, error) {
	rows, warnings, err := s.LaserTask(ctx, orderIDs)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("Order left out of laser task", zap.String("warning", w))
	}
	if len(rows) == 0 {
		return nil, warnings, fmt.Errorf("%w: no reservations to export", domain.ErrValidation)
	}

	var buf bytes.Buffer
	if err := exporter.WriteLaserTask(&buf, rows); err != nil {
		return nil, warnings, err
	}
	a, err := s.save(ctx, ArtifactLaserTask, &buf)
	if err != nil {
		return nil, warnings, err
	}
	s.logger.Info("Laser task exported", zap.String("key", a.Key), zap.Int("rows", len(rows)))
	return a, warnings, nil
}

// ExportBalance writes the stock balance workbook to storage
func (s *ExportService) ExportBalance(ctx context.Context, prefs config.Preferences) (*storage.Artifact, error) {
	rows, err := s.stock.Balance(ctx, prefs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := exporter.WriteBalance(&buf, rows); err != nil {
		return nil, err
	}
	a, err := s.save(ctx, ArtifactBalance, &buf)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Balance exported", zap.String("key", a.Key), zap.Int("rows", len(rows)))
	return a, nil
}

// ExportEvents writes the laser event log with its statuses to storage
func (s *ExportService) ExportEvents(ctx context.Context) (*storage.Artifact, error) {
	sess, err := s.repo.Begin(ctx, repository.TableEvents)
	if err != nil {
		return nil, err
	}
	if len(sess.Events) == 0 {
		return nil, fmt.Errorf("%w: event table is empty", domain.ErrValidation)
	}

	var buf bytes.Buffer
	if err := exporter.WriteEvents(&buf, sess.Events); err != nil {
		return nil, err
	}
	a, err := s.save(ctx, ArtifactEvents, &buf)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Laser log exported", zap.String("key", a.Key), zap.Int("rows", len(sess.Events)))
	return a, nil
}

// ExportTemplate writes an empty import workbook of the given kind to storage
func (s *ExportService) ExportTemplate(ctx context.Context, kind string) (*storage.Artifact, error) {
	var buf bytes.Buffer
	if err := importer.WriteTemplate(kind, &buf); err != nil {
		return nil, err
	}
	return s.save(ctx, ArtifactTemplate+"_"+kind, &buf)
}

func (s *ExportService) save(ctx context.Context, kind string, buf *bytes.Buffer) (*storage.Artifact, error) {
	key := storage.ArtifactKey(kind, ".xlsx", s.now())
	a, err := s.storage.Save(ctx, key, storage.XLSXContentType, buf)
	if err != nil {
		s.logger.Error("Failed to store export", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to store %s: %w", kind, err)
	}
	return a, nil
}
