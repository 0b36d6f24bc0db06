package importer

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
)

var eventColumns = []column{
	{"date", []string{"date", "Дата (МСК)", "Дата"}},
	{"time", []string{"time", "Время (МСК)", "Время"}},
	{"operator", []string{"operator", "username"}},
	{"order", []string{"order", "Заказ"}},
	{"material", []string{"material", "metal", "Металл"}},
	{"material_quantity", []string{"material_quantity", "metal_quantity"}},
	{"part", []string{"part", "Деталь"}},
	{"part_quantity", []string{"part_quantity"}},
}

// ParseEvents reads a laser cutting log. Values are kept as printed; matching
// interprets them later. Every row comes back Pending: status columns of an
// exported log are ignored and the merge into the event table decides the
// status by key.
func ParseEvents(s *Sheet) ([]domain.ExternalEvent, error) {
	idx, err := resolveColumns(s, eventColumns, nil)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ExternalEvent, 0, len(s.Rows))
	for _, row := range s.Rows {
		e := domain.ExternalEvent{
			Date:             idx.get(row, "date"),
			Time:             idx.get(row, "time"),
			Operator:         idx.get(row, "operator"),
			Order:            idx.get(row, "order"),
			Material:         idx.get(row, "material"),
			MaterialQuantity: idx.get(row, "material_quantity"),
			Part:             idx.get(row, "part"),
			PartQuantity:     idx.get(row, "part_quantity"),
			Status:           domain.EventStatusPending,
		}
		out = append(out, e)
	}
	return out, nil
}
