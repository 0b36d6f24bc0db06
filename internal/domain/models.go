package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "New"
	OrderStatusInProgress OrderStatus = "InProgress"
	OrderStatusDone       OrderStatus = "Done"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// legacyOrderStatuses maps the labels used by the original workbook files.
var legacyOrderStatuses = map[string]OrderStatus{
	"Новый":    OrderStatusNew,
	"В работе": OrderStatusInProgress,
	"Завершен": OrderStatusDone,
	"Отменен":  OrderStatusCancelled,
}

// ParseOrderStatus resolves a status label, accepting legacy labels.
// The boolean is false when the label is empty or unrecognized.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusNew, OrderStatusInProgress, OrderStatusDone, OrderStatusCancelled:
		return OrderStatus(s), true
	}
	if st, ok := legacyOrderStatuses[s]; ok {
		return st, true
	}
	return OrderStatusNew, false
}

// EventStatus is the reconciliation state of an external event row
type EventStatus string

const (
	EventStatusPending    EventStatus = "Pending"
	EventStatusWrittenOff EventStatus = "WrittenOff"
	EventStatusManual     EventStatus = "Manual"
)

// ParseEventStatus reads the status column of a stored event row. Tables
// carried over from the spreadsheet tool mark processed rows with a check
// mark or yes.
func ParseEventStatus(s string) EventStatus {
	switch s {
	case string(EventStatusWrittenOff), "✓", "Да", "Yes", "yes":
		return EventStatusWrittenOff
	case string(EventStatusManual), "Вручную":
		return EventStatusManual
	default:
		return EventStatusPending
	}
}

// Ref is an optional reference to another record.
type Ref struct {
	ID    int
	Valid bool
}

// NoRef is the unlinked reference.
var NoRef = Ref{}

// RefTo returns a reference to id.
func RefTo(id int) Ref {
	return Ref{ID: id, Valid: true}
}

// Is reports whether the reference points at id.
func (r Ref) Is(id int) bool {
	return r.Valid && r.ID == id
}

// String encodes the reference, using -1 for unlinked.
func (r Ref) String() string {
	if !r.Valid {
		return "-1"
	}
	return strconv.Itoa(r.ID)
}

// ParseRef decodes a stored reference. Empty and negative values are unlinked.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return NoRef, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NoRef, fmt.Errorf("invalid reference %q: %w", s, err)
	}
	if f < 0 {
		return NoRef, nil
	}
	return RefTo(int(f)), nil
}

// MaterialDescriptor identifies a sheet material by grade and dimensions (mm)
type MaterialDescriptor struct {
	Grade     string  `json:"grade"`
	Thickness float64 `json:"thickness"`
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
}

// SameKey reports whether two descriptors share the natural key.
func (d MaterialDescriptor) SameKey(o MaterialDescriptor) bool {
	return d.Grade == o.Grade && d.Thickness == o.Thickness && d.Length == o.Length && d.Width == o.Width
}

// String renders the descriptor the way cutting tasks print it.
func (d MaterialDescriptor) String() string {
	return fmt.Sprintf("%s %sмм %sx%s", d.Grade, FormatNumber(d.Thickness), FormatNumber(d.Width), FormatNumber(d.Length))
}

// StockItem is a sheet material on the warehouse floor
type StockItem struct {
	ID int `json:"id"`
	MaterialDescriptor
	OnHand    int       `json:"onHand"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
	Area      float64   `json:"area"`
	CreatedAt time.Time `json:"createdAt"`
}

// Recalculate refreshes the derived available and area fields.
func (s *StockItem) Recalculate() {
	s.Available = s.OnHand - s.Reserved
	s.Area = SheetArea(s.Length, s.Width, s.OnHand)
}

// Overdrawn reports a negative available quantity.
func (s *StockItem) Overdrawn() bool {
	return s.Available < 0
}

// SheetArea returns length*width*qty in square metres rounded to 2 decimals.
func SheetArea(length, width float64, qty int) float64 {
	area := decimal.NewFromFloat(length).
		Mul(decimal.NewFromFloat(width)).
		Mul(decimal.NewFromInt(int64(qty))).
		Div(decimal.NewFromInt(1_000_000)).
		Round(2)
	f, _ := area.Float64()
	return f
}

// FormatNumber prints a dimension without trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Order is a customer job
type Order struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Customer  string      `json:"customer"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    OrderStatus `json:"status"`
	Notes     string      `json:"notes"`
}

// OrderPart is a requested part line of an order with its stage counters
type OrderPart struct {
	ID       int    `json:"id"`
	OrderID  int    `json:"orderId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Cut      int    `json:"cut"`
	Bent     int    `json:"bent"`
}

// NoPartLabel names the part of a reservation not tied to an order part
const NoPartLabel = "No part"

// Reservation earmarks material for an order
type Reservation struct {
	ID         int                `json:"id"`
	OrderID    int                `json:"orderId"`
	PartRef    Ref                `json:"partRef"`
	PartName   string             `json:"partName"`
	StockRef   Ref                `json:"stockRef"`
	Material   MaterialDescriptor `json:"material"`
	Allocated  int                `json:"allocated"`
	WrittenOff int                `json:"writtenOff"`
	Remaining  int                `json:"remaining"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// Recalculate refreshes the remaining quantity.
func (r *Reservation) Recalculate() {
	r.Remaining = r.Allocated - r.WrittenOff
}

// WriteOff records consumed material
type WriteOff struct {
	ID            int                `json:"id"`
	ReservationID int                `json:"reservationId"`
	OrderID       int                `json:"orderId"`
	StockRef      Ref                `json:"stockRef"`
	Material      MaterialDescriptor `json:"material"`
	Quantity      int                `json:"quantity"`
	WrittenAt     time.Time          `json:"writtenAt"`
	Comment       string             `json:"comment"`
}

// ExternalEvent is one row of a laser cutting log
type ExternalEvent struct {
	Date             string      `json:"date"`
	Time             string      `json:"time"`
	Operator         string      `json:"operator"`
	Order            string      `json:"order"`
	Material         string      `json:"material"`
	MaterialQuantity string      `json:"materialQuantity"`
	Part             string      `json:"part"`
	PartQuantity     string      `json:"partQuantity"`
	Status           EventStatus `json:"status"`
	StatusDate       string      `json:"statusDate"`
}

// EventKey is the structural identity of an event row across re-imports
type EventKey struct {
	Date, Time, Operator, Order, Material, MaterialQuantity, Part, PartQuantity string
}

// Key returns the structural identity of the event.
func (e *ExternalEvent) Key() EventKey {
	return EventKey{
		Date:             e.Date,
		Time:             e.Time,
		Operator:         e.Operator,
		Order:            e.Order,
		Material:         e.Material,
		MaterialQuantity: e.MaterialQuantity,
		Part:             e.Part,
		PartQuantity:     e.PartQuantity,
	}
}

// Timestamp returns the event date and time as printed in provenance comments.
func (e *ExternalEvent) Timestamp() string {
	return e.Date + " " + e.Time
}
