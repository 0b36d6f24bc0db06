package importer

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
)

// Sheet names accepted for the orders workbook
var (
	OrdersSheetNames = []string{"Orders", "Заказы"}
	PartsSheetNames  = []string{"Parts", "Детали"}
)

var (
	orderColumns = []column{
		{"name", []string{"name", "Название заказа"}},
		{"customer", []string{"customer", "Заказчик"}},
	}
	orderOptionalColumns = []column{
		{"status", []string{"status", "Статус"}},
		{"notes", []string{"notes", "Примечания"}},
	}
	partColumns = []column{
		{"order", []string{"order name", "Название заказа", "order"}},
		{"name", []string{"part name", "Название детали", "part"}},
		{"quantity", []string{"quantity", "Количество"}},
	}
)

// OrderRow is a parsed order line
type OrderRow struct {
	Line    int
	Request domain.CreateOrderRequest
}

// PartRow is a parsed part line. OrderName still has to be matched against
// the orders of the same batch.
type PartRow struct {
	Line      int
	OrderName string
	Name      string
	Quantity  int
}

// OrderBatch is the content of an orders workbook
type OrderBatch struct {
	Orders []OrderRow
	Parts  []PartRow
}

// ParseOrders reads the orders sheet and, when given, the parts sheet. An
// unknown status falls back to New with a warning.
func ParseOrders(orders, parts *Sheet) (*OrderBatch, []domain.RowIssue, []domain.RowIssue, error) {
	idx, err := resolveColumns(orders, orderColumns, orderOptionalColumns)
	if err != nil {
		return nil, nil, nil, err
	}

	batch := &OrderBatch{}
	var errs, warnings []domain.RowIssue
	for i, row := range orders.Rows {
		line := orders.Lines[i]
		name, customer := idx.get(row, "name"), idx.get(row, "customer")
		if name == "" {
			errs = append(errs, rowError(line, "order name is empty"))
			continue
		}
		if customer == "" {
			errs = append(errs, rowError(line, "customer of order %q is empty", name))
			continue
		}

		label := idx.get(row, "status")
		status, ok := domain.ParseOrderStatus(label)
		if !ok && label != "" {
			warnings = append(warnings, rowError(line, "unknown status %q, using %s", label, domain.OrderStatusNew))
		}
		batch.Orders = append(batch.Orders, OrderRow{
			Line: line,
			Request: domain.CreateOrderRequest{
				Name:     name,
				Customer: customer,
				Status:   status,
				Notes:    idx.get(row, "notes"),
			},
		})
	}

	if parts == nil {
		return batch, errs, warnings, nil
	}
	pidx, err := resolveColumns(parts, partColumns, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	for i, row := range parts.Rows {
		line := parts.Lines[i]
		p := PartRow{Line: line, OrderName: pidx.get(row, "order"), Name: pidx.get(row, "name")}
		if p.OrderName == "" || p.Name == "" {
			errs = append(errs, rowError(line, "part row needs an order name and a part name"))
			continue
		}
		qty, err := repository.ParseQuantity(pidx.get(row, "quantity"))
		if err != nil || qty <= 0 {
			errs = append(errs, rowError(line, "quantity %q of part %q is not a positive whole number", pidx.get(row, "quantity"), p.Name))
			continue
		}
		p.Quantity = qty
		batch.Parts = append(batch.Parts, p)
	}
	return batch, errs, warnings, nil
}
