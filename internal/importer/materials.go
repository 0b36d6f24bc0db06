package importer

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
)

var materialColumns = []column{
	{"grade", []string{"grade", "Марка"}},
	{"thickness", []string{"thickness", "Толщина"}},
	{"length", []string{"length", "Длина"}},
	{"width", []string{"width", "Ширина"}},
	{"quantity", []string{"quantity", "Количество штук", "Количество"}},
}

// MaterialRow is a parsed materials line with its source row
type MaterialRow struct {
	Line    int
	Request domain.AddStockRequest
}

// ParseMaterials reads stock lines. Rows with bad values are returned as issues
// and the rest still parse.
func ParseMaterials(s *Sheet) ([]MaterialRow, []domain.RowIssue, error) {
	idx, err := resolveColumns(s, materialColumns, nil)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    []MaterialRow
		issues []domain.RowIssue
	)
	for i, row := range s.Rows {
		line := s.Lines[i]
		grade := idx.get(row, "grade")
		if grade == "" {
			issues = append(issues, rowError(line, "grade is empty"))
			continue
		}

		req := domain.AddStockRequest{Grade: grade}
		var bad string
		for _, f := range []struct {
			key string
			dst *float64
		}{
			{"thickness", &req.Thickness},
			{"length", &req.Length},
			{"width", &req.Width},
		} {
			v, err := repository.ParseDecimal(idx.get(row, f.key))
			if err != nil || v <= 0 {
				bad = f.key
				break
			}
			*f.dst = v
		}
		if bad != "" {
			issues = append(issues, rowError(line, "%s %q is not a positive number", bad, idx.get(row, bad)))
			continue
		}

		qty, err := repository.ParseQuantity(idx.get(row, "quantity"))
		if err != nil || qty <= 0 {
			issues = append(issues, rowError(line, "quantity %q is not a positive whole number", idx.get(row, "quantity")))
			continue
		}
		req.Quantity = qty
		out = append(out, MaterialRow{Line: line, Request: req})
	}
	return out, issues, nil
}
