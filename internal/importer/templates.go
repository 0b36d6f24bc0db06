package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Template kinds accepted by WriteTemplate
const (
	TemplateMaterials = "materials"
	TemplateOrders    = "orders"
)

// WriteTemplate writes an empty import workbook with headers and one sample row
func WriteTemplate(kind string, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	switch kind {
	case TemplateMaterials:
		if err := templateSheet(f, "Sheet1", "Materials", materialColumns, nil,
			[]interface{}{"St3", 10, 6000, 1500, 5}); err != nil {
			return err
		}
	case TemplateOrders:
		if err := templateSheet(f, "Sheet1", OrdersSheetNames[0], orderColumns, orderOptionalColumns,
			[]interface{}{"УП-123 Стеллажи", "Metallservis", "New", ""}); err != nil {
			return err
		}
		if _, err := f.NewSheet(PartsSheetNames[0]); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := templateSheet(f, PartsSheetNames[0], PartsSheetNames[0], partColumns, nil,
			[]interface{}{"УП-123 Стеллажи", "Кронштейн", 40}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown template %q", kind)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

func templateSheet(f *excelize.File, from, to string, required, optional []column, sample []interface{}) error {
	if from != to {
		if err := f.SetSheetName(from, to); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	}
	header := make([]interface{}, 0, len(required)+len(optional))
	for _, c := range append(append([]column{}, required...), optional...) {
		header = append(header, c.name())
	}
	if err := f.SetSheetRow(to, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetSheetRow(to, "A2", &sample); err != nil {
		return fmt.Errorf("failed to write sample row: %w", err)
	}
	return nil
}
