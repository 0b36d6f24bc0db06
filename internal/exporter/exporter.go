// Package exporter renders ledger reports as xlsx workbooks.
package exporter

import (
	"fmt"
	"io"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	BalanceSheet   = "Balance"
	LaserTaskSheet = "Laser task"
	EventsSheet    = "Laser log"
)

var (
	balanceHeader   = []interface{}{"ID", "Grade", "Thickness", "Length", "Width", "On hand", "Reserved", "Written off", "Available", "Area"}
	laserTaskHeader = []interface{}{"Customer", "Order", "Part", "Material", "Quantity"}
	// column names the events importer accepts, so the log can be loaded again
	eventsHeader = []interface{}{
		"date", "time", "operator", "order", "material", "material_quantity",
		"part", "part_quantity", "written_off", "writeoff_date",
	}
)

// WriteBalance writes the stock balance. Overdrawn items get a red fill.
func WriteBalance(w io.Writer, rows []domain.BalanceRow) error {
	f, err := newWorkbook(BalanceSheet, balanceHeader)
	if err != nil {
		return err
	}
	defer f.Close()

	overdrawn, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, r := range rows {
		rowNo := i + 2
		values := []interface{}{
			r.StockID,
			r.Material.Grade,
			r.Material.Thickness,
			r.Material.Length,
			r.Material.Width,
			r.OnHand,
			r.Reserved,
			r.WrittenOff,
			r.Available,
			r.Area,
		}
		if err := setRow(f, BalanceSheet, rowNo, values); err != nil {
			return err
		}
		if r.Overdrawn {
			first, _ := excelize.CoordinatesToCellName(1, rowNo)
			last, _ := excelize.CoordinatesToCellName(len(values), rowNo)
			if err := f.SetCellStyle(BalanceSheet, first, last, overdrawn); err != nil {
				return fmt.Errorf("failed to style row %d: %w", rowNo, err)
			}
		}
	}
	return finish(f, w, BalanceSheet, len(balanceHeader))
}

// WriteLaserTask writes one row per reservation line of the task
func WriteLaserTask(w io.Writer, rows []domain.LaserTaskRow) error {
	f, err := newWorkbook(LaserTaskSheet, laserTaskHeader)
	if err != nil {
		return err
	}
	defer f.Close()

	for i, r := range rows {
		part := r.Part
		if part == "" {
			part = domain.NoPartLabel
		}
		if err := setRow(f, LaserTaskSheet, i+2, []interface{}{r.Customer, r.Order, part, r.Material, r.Quantity}); err != nil {
			return err
		}
	}
	return finish(f, w, LaserTaskSheet, len(laserTaskHeader))
}

// WriteEvents writes the laser event log with its status columns. Pending
// rows have an empty status.
func WriteEvents(w io.Writer, events []domain.ExternalEvent) error {
	f, err := newWorkbook(EventsSheet, eventsHeader)
	if err != nil {
		return err
	}
	defer f.Close()

	for i, e := range events {
		status := string(e.Status)
		if e.Status == domain.EventStatusPending {
			status = ""
		}
		values := []interface{}{
			e.Date, e.Time, e.Operator, e.Order, e.Material, e.MaterialQuantity,
			e.Part, e.PartQuantity, status, e.StatusDate,
		}
		if err := setRow(f, EventsSheet, i+2, values); err != nil {
			return err
		}
	}
	return finish(f, w, EventsSheet, len(eventsHeader))
}

func newWorkbook(sheet string, header []interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to style header: %w", err)
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNo, err)
	}
	return nil
}

func finish(f *excelize.File, w io.Writer, sheet string, cols int) error {
	lastCol, _ := excelize.ColumnNumberToName(cols)
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
