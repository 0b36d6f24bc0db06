package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/importer"
	"github.com/straye-as/sheet-ledger/internal/repository"
	"go.uber.org/zap"
)

// ImportService loads materials, orders and laser logs from files
type ImportService struct {
	repo      *repository.Repository
	reconcile *ReconciliationService
	separator rune
	logger    *zap.Logger
	now       func() time.Time
}

// NewImportService creates a new ImportService instance. separator is used
// for csv files without a sep= hint.
func NewImportService(repo *repository.Repository, reconcile *ReconciliationService, separator rune, logger *zap.Logger) *ImportService {
	return &ImportService{
		repo:      repo,
		reconcile: reconcile,
		separator: separator,
		logger:    logger,
		now:       time.Now,
	}
}

// ImportMaterials adds every valid row of a materials file to stock in one
// session. Rows matching an existing item by natural key are merged.
func (s *ImportService) ImportMaterials(ctx context.Context, path string) (*domain.ImportResult, error) {
	sheet, err := importer.ReadFile(path, s.separator)
	if err != nil {
		return nil, err
	}
	rows, issues, err := importer.ParseMaterials(sheet)
	if err != nil {
		return nil, err
	}

	result := &domain.ImportResult{Errors: issues}
	err = s.repo.WithSession(ctx, stockCreateTables, func(sess *repository.Session) error {
		now := s.now()
		for _, row := range rows {
			if err := validateRequest(row.Request); err != nil {
				result.Errors = append(result.Errors, domain.RowIssue{Row: row.Line, Message: err.Error(), Err: err})
				continue
			}
			if _, merged := addOrMergeStock(sess, row.Request.Descriptor(), row.Request.Quantity, now); merged {
				result.Merged++
			} else {
				result.Created++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to import materials", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to import materials: %w", err)
	}

	s.logger.Info("Materials imported",
		zap.String("path", path),
		zap.Int("created", result.Created),
		zap.Int("merged", result.Merged),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// ImportOrders creates the orders of a workbook and the parts listed under
// them. A part is attached only to an order of the same file.
func (s *ImportService) ImportOrders(ctx context.Context, path string) (*domain.ImportResult, error) {
	orders, parts, err := s.readOrderSheets(path)
	if err != nil {
		return nil, err
	}
	batch, errs, warnings, err := importer.ParseOrders(orders, parts)
	if err != nil {
		return nil, err
	}

	result := &domain.ImportResult{Errors: errs, Warnings: warnings}
	tables := []string{repository.TableOrders, repository.TableParts}
	err = s.repo.WithSession(ctx, tables, func(sess *repository.Session) error {
		now := s.now()
		byName := make(map[string]int, len(batch.Orders))
		for _, row := range batch.Orders {
			if err := validateRequest(row.Request); err != nil {
				result.Errors = append(result.Errors, domain.RowIssue{Row: row.Line, Message: err.Error(), Err: err})
				continue
			}
			o := createOrder(sess, row.Request, now)
			key := strings.ToLower(o.Name)
			if _, dup := byName[key]; dup {
				result.Warnings = append(result.Warnings, domain.RowIssue{
					Row:     row.Line,
					Message: fmt.Sprintf("order %q appears twice, parts go to the first one", o.Name),
				})
			} else {
				byName[key] = o.ID
			}
			result.Created++
		}

		for _, p := range batch.Parts {
			orderID, ok := byName[strings.ToLower(strings.TrimSpace(p.OrderName))]
			if !ok {
				result.Errors = append(result.Errors, domain.RowIssue{
					Row:     p.Line,
					Message: fmt.Sprintf("part %q refers to order %q which is not in this file", p.Name, p.OrderName),
					Err:     domain.ErrNotFound,
				})
				continue
			}
			addPart(sess, orderID, p.Name, p.Quantity)
			result.Parts++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to import orders", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to import orders: %w", err)
	}

	s.logger.Info("Orders imported",
		zap.String("path", path),
		zap.Int("orders", result.Created),
		zap.Int("parts", result.Parts),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// ImportEvents reads a laser log and merges it into the event table
func (s *ImportService) ImportEvents(ctx context.Context, path string) (*domain.EventMergeStats, error) {
	sheet, err := importer.ReadFile(path, s.separator)
	if err != nil {
		return nil, err
	}
	events, err := importer.ParseEvents(sheet)
	if err != nil {
		return nil, err
	}
	return s.reconcile.Import(ctx, events)
}

// readOrderSheets returns the orders sheet and the parts sheet when the file
// has one. A csv file only carries orders.
func (s *ImportService) readOrderSheets(path string) (*importer.Sheet, *importer.Sheet, error) {
	if !importer.IsWorkbook(path) {
		orders, err := importer.ReadFile(path, s.separator)
		return orders, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	wb, err := importer.OpenWorkbook(f)
	if err != nil {
		return nil, nil, err
	}
	defer wb.Close()

	orders, err := wb.Sheet(importer.OrdersSheetNames...)
	if err != nil {
		return nil, nil, err
	}
	parts, err := wb.Sheet(importer.PartsSheetNames...)
	if errors.Is(err, importer.ErrSheetNotFound) || errors.Is(err, importer.ErrEmptySheet) {
		return orders, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return orders, parts, nil
}
