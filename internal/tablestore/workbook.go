package tablestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const defaultSheet = "Sheet1"

// WorkbookStore keeps every table as a sheet of a single xlsx file.
// The first sheet row holds the column names.
type WorkbookStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewWorkbookStore creates a store backed by the workbook at path
func NewWorkbookStore(path string, logger *zap.Logger) *WorkbookStore {
	return &WorkbookStore{path: path, logger: logger}
}

// Path returns the workbook location
func (s *WorkbookStore) Path() string {
	return s.path
}

// LoadTable reads the sheet named after the table
func (s *WorkbookStore) LoadTable(_ context.Context, name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Table{}, nil
		}
		s.logger.Warn("Workbook unreadable, treating table as empty",
			zap.String("path", s.path),
			zap.String("table", name),
			zap.Error(err),
		)
		return &Table{}, nil
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		return &Table{}, nil
	}
	rows, err := f.GetRows(name)
	if err != nil {
		s.logger.Warn("Sheet unreadable, treating table as empty", zap.String("table", name), zap.Error(err))
		return &Table{}, nil
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	t := &Table{Columns: rows[0]}
	for _, row := range rows[1:] {
		rec := make(Record, len(t.Columns))
		empty := true
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
				if row[i] != "" {
					empty = false
				}
			} else {
				rec[col] = ""
			}
		}
		if !empty {
			t.Rows = append(t.Rows, rec)
		}
	}
	return t, nil
}

// SaveTable replaces the sheet named after the table and rewrites the file.
// The file is written to a temporary sibling and renamed into place.
func (s *WorkbookStore) SaveTable(_ context.Context, name string, table *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := name
	idx, _ := f.GetSheetIndex(name)
	switch {
	case created:
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("failed to name sheet %s: %w", name, err)
		}
	case idx < 0:
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	default:
		sheet = "~" + name
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	if err := writeSheet(f, sheet, table); err != nil {
		return err
	}

	if sheet != name {
		if err := f.DeleteSheet(name); err != nil {
			return fmt.Errorf("failed to drop sheet %s: %w", name, err)
		}
		if err := f.SetSheetName(sheet, name); err != nil {
			return fmt.Errorf("failed to rename sheet %s: %w", sheet, err)
		}
	}

	return s.commit(f)
}

func (s *WorkbookStore) open() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	// never overwrite a workbook we could not read: the other sheets would be lost
	return nil, false, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
}

func (s *WorkbookStore) commit(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create workbook directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temporary workbook: %w", err)
	}
	tmpPath := tmp.Name()
	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close workbook: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, table *Table) error {
	header := make([]interface{}, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	for i, r := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := table.Values(r)
		row := make([]interface{}, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i, sheet, err)
		}
	}
	return nil
}
