package repository

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

func encodeEvent(e *domain.ExternalEvent) tablestore.Record {
	status := string(e.Status)
	if e.Status == domain.EventStatusPending {
		status = ""
	}
	return tablestore.Record{
		"date":              e.Date,
		"time":              e.Time,
		"operator":          e.Operator,
		"order":             e.Order,
		"material":          e.Material,
		"material_quantity": e.MaterialQuantity,
		"part":              e.Part,
		"part_quantity":     e.PartQuantity,
		"written_off":       status,
		"writeoff_date":     e.StatusDate,
	}
}

func decodeEvent(rec tablestore.Record) (domain.ExternalEvent, error) {
	r := fieldReader{rec: rec}
	e := domain.ExternalEvent{
		Date:             r.str("date"),
		Time:             r.str("time"),
		Operator:         r.str("operator"),
		Order:            r.str("order"),
		Material:         r.str("material"),
		MaterialQuantity: r.str("material_quantity"),
		Part:             r.str("part"),
		PartQuantity:     r.str("part_quantity"),
		Status:           domain.ParseEventStatus(r.str("written_off")),
		StatusDate:       r.str("writeoff_date"),
	}
	return e, r.err
}

// FindEvent returns the event at row index i, or nil when out of range
func (s *Session) FindEvent(i int) *domain.ExternalEvent {
	if i < 0 || i >= len(s.Events) {
		return nil
	}
	return &s.Events[i]
}
