package repository

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

func encodeWriteOff(w *domain.WriteOff) tablestore.Record {
	return tablestore.Record{
		"id":             formatInt(w.ID),
		"reservation_id": formatInt(w.ReservationID),
		"order_id":       formatInt(w.OrderID),
		"stock_id":       w.StockRef.String(),
		"grade":          w.Material.Grade,
		"thickness":      formatFloat(w.Material.Thickness),
		"length":         formatFloat(w.Material.Length),
		"width":          formatFloat(w.Material.Width),
		"quantity":       formatInt(w.Quantity),
		"written_at":     formatTime(w.WrittenAt),
		"comment":        w.Comment,
	}
}

func decodeWriteOff(rec tablestore.Record) (domain.WriteOff, error) {
	r := fieldReader{rec: rec}
	w := domain.WriteOff{
		ID:            r.int("id"),
		ReservationID: r.int("reservation_id"),
		OrderID:       r.int("order_id"),
		StockRef:      r.ref("stock_id"),
		Material: domain.MaterialDescriptor{
			Grade:     r.str("grade"),
			Thickness: r.float("thickness"),
			Length:    r.float("length"),
			Width:     r.float("width"),
		},
		Quantity:  r.int("quantity"),
		WrittenAt: r.time("written_at"),
		Comment:   rec["comment"],
	}
	return w, r.err
}

// FindWriteOff returns the write-off with id, or nil
func (s *Session) FindWriteOff(id int) *domain.WriteOff {
	for i := range s.WriteOffs {
		if s.WriteOffs[i].ID == id {
			return &s.WriteOffs[i]
		}
	}
	return nil
}

// NextWriteOffID allocates a write-off id that was never handed out before
func (s *Session) NextWriteOffID() int {
	maxID := 0
	for _, w := range s.WriteOffs {
		maxID = max(maxID, w.ID)
	}
	return s.nextID(seqWriteOff, maxID)
}

// RemoveWriteOff deletes the write-off with id and reports whether it existed
func (s *Session) RemoveWriteOff(id int) bool {
	for i := range s.WriteOffs {
		if s.WriteOffs[i].ID == id {
			s.WriteOffs = append(s.WriteOffs[:i], s.WriteOffs[i+1:]...)
			return true
		}
	}
	return false
}

// WrittenOffByStock sums write-off quantities per linked stock id
func (s *Session) WrittenOffByStock() map[int]int {
	out := make(map[int]int)
	for _, w := range s.WriteOffs {
		if w.StockRef.Valid {
			out[w.StockRef.ID] += w.Quantity
		}
	}
	return out
}
