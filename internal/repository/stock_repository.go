package repository

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

func encodeStock(s *domain.StockItem) tablestore.Record {
	return tablestore.Record{
		"id":         formatInt(s.ID),
		"grade":      s.Grade,
		"thickness":  formatFloat(s.Thickness),
		"length":     formatFloat(s.Length),
		"width":      formatFloat(s.Width),
		"on_hand":    formatInt(s.OnHand),
		"reserved":   formatInt(s.Reserved),
		"available":  formatInt(s.Available),
		"area":       formatFloat(s.Area),
		"created_at": formatTime(s.CreatedAt),
	}
}

// decodeStock ignores the stored available and area and recomputes them
func decodeStock(rec tablestore.Record) (domain.StockItem, error) {
	r := fieldReader{rec: rec}
	s := domain.StockItem{
		ID: r.int("id"),
		MaterialDescriptor: domain.MaterialDescriptor{
			Grade:     r.str("grade"),
			Thickness: r.float("thickness"),
			Length:    r.float("length"),
			Width:     r.float("width"),
		},
		OnHand:    r.int("on_hand"),
		Reserved:  r.int("reserved"),
		CreatedAt: r.time("created_at"),
	}
	s.Recalculate()
	return s, r.err
}

// FindStock returns the stock item with id, or nil
func (s *Session) FindStock(id int) *domain.StockItem {
	for i := range s.Stock {
		if s.Stock[i].ID == id {
			return &s.Stock[i]
		}
	}
	return nil
}

// FindStockByKey returns the stock item with the natural key of d, or nil
func (s *Session) FindStockByKey(d domain.MaterialDescriptor) *domain.StockItem {
	for i := range s.Stock {
		if s.Stock[i].SameKey(d) {
			return &s.Stock[i]
		}
	}
	return nil
}

// NextStockID allocates a stock id above every id ever handed out and every
// stock reference held by the loaded reservations and write-offs
func (s *Session) NextStockID() int {
	maxID := 0
	for _, it := range s.Stock {
		maxID = max(maxID, it.ID)
	}
	for _, r := range s.Reservations {
		if r.StockRef.Valid {
			maxID = max(maxID, r.StockRef.ID)
		}
	}
	for _, w := range s.WriteOffs {
		if w.StockRef.Valid {
			maxID = max(maxID, w.StockRef.ID)
		}
	}
	return s.nextID(seqStock, maxID)
}

// RemoveStock deletes the stock item with id and reports whether it existed
func (s *Session) RemoveStock(id int) bool {
	for i := range s.Stock {
		if s.Stock[i].ID == id {
			s.Stock = append(s.Stock[:i], s.Stock[i+1:]...)
			return true
		}
	}
	return false
}
