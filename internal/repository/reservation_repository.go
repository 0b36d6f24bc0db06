package repository

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

func encodeReservation(r *domain.Reservation) tablestore.Record {
	return tablestore.Record{
		"id":          formatInt(r.ID),
		"order_id":    formatInt(r.OrderID),
		"part_id":     r.PartRef.String(),
		"part_name":   r.PartName,
		"stock_id":    r.StockRef.String(),
		"grade":       r.Material.Grade,
		"thickness":   formatFloat(r.Material.Thickness),
		"length":      formatFloat(r.Material.Length),
		"width":       formatFloat(r.Material.Width),
		"allocated":   formatInt(r.Allocated),
		"written_off": formatInt(r.WrittenOff),
		"remaining":   formatInt(r.Remaining),
		"created_at":  formatTime(r.CreatedAt),
	}
}

func decodeReservation(rec tablestore.Record) (domain.Reservation, error) {
	r := fieldReader{rec: rec}
	res := domain.Reservation{
		ID:       r.int("id"),
		OrderID:  r.int("order_id"),
		PartRef:  r.ref("part_id"),
		PartName: r.str("part_name"),
		StockRef: r.ref("stock_id"),
		Material: domain.MaterialDescriptor{
			Grade:     r.str("grade"),
			Thickness: r.float("thickness"),
			Length:    r.float("length"),
			Width:     r.float("width"),
		},
		Allocated:  r.int("allocated"),
		WrittenOff: r.int("written_off"),
		CreatedAt:  r.time("created_at"),
	}
	res.Recalculate()
	return res, r.err
}

// FindReservation returns the reservation with id, or nil
func (s *Session) FindReservation(id int) *domain.Reservation {
	for i := range s.Reservations {
		if s.Reservations[i].ID == id {
			return &s.Reservations[i]
		}
	}
	return nil
}

// OpenReservationsOf returns the order's reservations that still have a remainder
func (s *Session) OpenReservationsOf(orderID int) []*domain.Reservation {
	var out []*domain.Reservation
	for i := range s.Reservations {
		if s.Reservations[i].OrderID == orderID && s.Reservations[i].Remaining > 0 {
			out = append(out, &s.Reservations[i])
		}
	}
	return out
}

// NextReservationID allocates a reservation id above every id ever handed
// out and every reservation referenced by the loaded write-offs
func (s *Session) NextReservationID() int {
	maxID := 0
	for _, r := range s.Reservations {
		maxID = max(maxID, r.ID)
	}
	for _, w := range s.WriteOffs {
		maxID = max(maxID, w.ReservationID)
	}
	return s.nextID(seqReservation, maxID)
}

// RemoveReservation deletes the reservation with id and reports whether it existed
func (s *Session) RemoveReservation(id int) bool {
	for i := range s.Reservations {
		if s.Reservations[i].ID == id {
			s.Reservations = append(s.Reservations[:i], s.Reservations[i+1:]...)
			return true
		}
	}
	return false
}
