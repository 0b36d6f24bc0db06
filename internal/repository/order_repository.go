package repository

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

// firstOrderID is the id given to the first order of an empty registry
const firstOrderID = 1001

func encodeOrder(o *domain.Order) tablestore.Record {
	return tablestore.Record{
		"id":         formatInt(o.ID),
		"name":       o.Name,
		"customer":   o.Customer,
		"created_at": formatTime(o.CreatedAt),
		"status":     string(o.Status),
		"notes":      o.Notes,
	}
}

func decodeOrder(rec tablestore.Record) (domain.Order, error) {
	r := fieldReader{rec: rec}
	status, _ := domain.ParseOrderStatus(r.str("status"))
	o := domain.Order{
		ID:        r.int("id"),
		Name:      r.str("name"),
		Customer:  r.str("customer"),
		CreatedAt: r.time("created_at"),
		Status:    status,
		Notes:     r.str("notes"),
	}
	return o, r.err
}

func encodePart(p *domain.OrderPart) tablestore.Record {
	return tablestore.Record{
		"id":        formatInt(p.ID),
		"order_id":  formatInt(p.OrderID),
		"part_name": p.Name,
		"quantity":  formatInt(p.Quantity),
		"cut":       formatInt(p.Cut),
		"bent":      formatInt(p.Bent),
	}
}

func decodePart(rec tablestore.Record) (domain.OrderPart, error) {
	r := fieldReader{rec: rec}
	p := domain.OrderPart{
		ID:       r.int("id"),
		OrderID:  r.int("order_id"),
		Name:     r.str("part_name"),
		Quantity: r.int("quantity"),
		Cut:      r.int("cut"),
		Bent:     r.int("bent"),
	}
	return p, r.err
}

// FindOrder returns the order with id, or nil
func (s *Session) FindOrder(id int) *domain.Order {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			return &s.Orders[i]
		}
	}
	return nil
}

// NextOrderID allocates an order id, starting at 1001. Ids of deleted
// orders and orders still named by loaded reservations are skipped.
func (s *Session) NextOrderID() int {
	maxID := firstOrderID - 1
	for _, o := range s.Orders {
		maxID = max(maxID, o.ID)
	}
	for _, r := range s.Reservations {
		maxID = max(maxID, r.OrderID)
	}
	return s.nextID(seqOrder, maxID)
}

// RemoveOrder deletes the order with id and reports whether it existed
func (s *Session) RemoveOrder(id int) bool {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			s.Orders = append(s.Orders[:i], s.Orders[i+1:]...)
			return true
		}
	}
	return false
}

// FindPart returns the order part with id, or nil
func (s *Session) FindPart(id int) *domain.OrderPart {
	for i := range s.Parts {
		if s.Parts[i].ID == id {
			return &s.Parts[i]
		}
	}
	return nil
}

// PartsOf returns pointers to the parts of an order in table order
func (s *Session) PartsOf(orderID int) []*domain.OrderPart {
	var out []*domain.OrderPart
	for i := range s.Parts {
		if s.Parts[i].OrderID == orderID {
			out = append(out, &s.Parts[i])
		}
	}
	return out
}

// NextPartID allocates a part id that was never handed out before
func (s *Session) NextPartID() int {
	maxID := 0
	for _, p := range s.Parts {
		maxID = max(maxID, p.ID)
	}
	for _, r := range s.Reservations {
		if r.PartRef.Valid {
			maxID = max(maxID, r.PartRef.ID)
		}
	}
	return s.nextID(seqPart, maxID)
}

// RemovePart deletes the part with id and reports whether it existed
func (s *Session) RemovePart(id int) bool {
	for i := range s.Parts {
		if s.Parts[i].ID == id {
			s.Parts = append(s.Parts[:i], s.Parts[i+1:]...)
			return true
		}
	}
	return false
}

// RemovePartsOf deletes every part of an order and returns how many were removed
func (s *Session) RemovePartsOf(orderID int) int {
	kept := s.Parts[:0]
	removed := 0
	for _, p := range s.Parts {
		if p.OrderID == orderID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.Parts = kept
	return removed
}
