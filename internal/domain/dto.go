package domain

// ============================================================================
// Stock
// ============================================================================

// AddStockRequest adds sheets to stock, merging on the natural key
type AddStockRequest struct {
	Grade     string  `json:"grade" validate:"required,max=100"`
	Thickness float64 `json:"thickness" validate:"gt=0"`
	Length    float64 `json:"length" validate:"gt=0"`
	Width     float64 `json:"width" validate:"gt=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
}

// Descriptor returns the natural key of the request.
func (r AddStockRequest) Descriptor() MaterialDescriptor {
	return MaterialDescriptor{Grade: r.Grade, Thickness: r.Thickness, Length: r.Length, Width: r.Width}
}

// UpdateStockRequest replaces the editable fields of a stock item
type UpdateStockRequest struct {
	Grade     string  `json:"grade" validate:"required,max=100"`
	Thickness float64 `json:"thickness" validate:"gt=0"`
	Length    float64 `json:"length" validate:"gt=0"`
	Width     float64 `json:"width" validate:"gt=0"`
	OnHand    int     `json:"onHand" validate:"gte=0"`
}

// ============================================================================
// Orders
// ============================================================================

type CreateOrderRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	Customer string      `json:"customer" validate:"required,max=200"`
	Status   OrderStatus `json:"status,omitempty" validate:"omitempty,oneof=New InProgress Done Cancelled"`
	Notes    string      `json:"notes,omitempty"`
}

type UpdateOrderRequest struct {
	Name     string      `json:"name" validate:"required,max=200"`
	Customer string      `json:"customer" validate:"required,max=200"`
	Status   OrderStatus `json:"status" validate:"required,oneof=New InProgress Done Cancelled"`
	Notes    string      `json:"notes,omitempty"`
}

type CreatePartRequest struct {
	OrderID  int    `json:"orderId" validate:"gt=0"`
	Name     string `json:"name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type UpdatePartRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// UpdateStagesRequest sets the cut and bent counters of a part
type UpdateStagesRequest struct {
	Cut  int `json:"cut" validate:"gte=0"`
	Bent int `json:"bent" validate:"gte=0"`
}

// ============================================================================
// Reservations and write-offs
// ============================================================================

// CreateReservationRequest earmarks material for an order. Material is used
// only when StockRef is unlinked.
type CreateReservationRequest struct {
	OrderID  int                `json:"orderId" validate:"gt=0"`
	PartRef  Ref                `json:"partRef"`
	StockRef Ref                `json:"stockRef"`
	Material MaterialDescriptor `json:"material"`
	Quantity int                `json:"quantity" validate:"gt=0"`
}

type UpdateReservationRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
	OrderID  int `json:"orderId" validate:"gt=0"`
	PartRef  Ref `json:"partRef"`
}

type CreateWriteOffRequest struct {
	ReservationID int    `json:"reservationId" validate:"gt=0"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	Comment       string `json:"comment,omitempty"`
}

type UpdateWriteOffRequest struct {
	Quantity int    `json:"quantity" validate:"gt=0"`
	Comment  string `json:"comment,omitempty"`
}

// ============================================================================
// Laser events
// ============================================================================

// UpdateEventRequest replaces the editable fields of an event row. Date,
// time and operator identify the cut and are kept.
type UpdateEventRequest struct {
	Order            string `json:"order" validate:"required,max=200"`
	Material         string `json:"material" validate:"required,max=200"`
	MaterialQuantity string `json:"materialQuantity" validate:"max=20"`
	Part             string `json:"part" validate:"max=200"`
	PartQuantity     string `json:"partQuantity" validate:"max=20"`
}

// ============================================================================
// Reports and batch results
// ============================================================================

// BalanceRow is one line of the stock balance report
type BalanceRow struct {
	StockID    int                `json:"stockId"`
	Material   MaterialDescriptor `json:"material"`
	OnHand     int                `json:"onHand"`
	Reserved   int                `json:"reserved"`
	WrittenOff int                `json:"writtenOff"`
	Available  int                `json:"available"`
	Area       float64            `json:"area"`
	Overdrawn  bool               `json:"overdrawn"`
}

// LaserTaskRow is one line of the cutting task sheet
type LaserTaskRow struct {
	Customer string `json:"customer"`
	Order    string `json:"order"`
	Part     string `json:"part"`
	Material string `json:"material"`
	Quantity int    `json:"quantity"`
}

// RowIssue is a per-row problem reported by an import or batch
type RowIssue struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// ImportResult summarises a file import
type ImportResult struct {
	Created  int        `json:"created"`
	Merged   int        `json:"merged"`
	Parts    int        `json:"parts,omitempty"`
	Errors   []RowIssue `json:"errors,omitempty"`
	Warnings []RowIssue `json:"warnings,omitempty"`
}

// EventMergeStats summarises a re-import of an external event log
type EventMergeStats struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Kept       int `json:"kept"`
	Dropped    int `json:"dropped"`
	WrittenOff int `json:"writtenOff"`
	Manual     int `json:"manual"`
	Pending    int `json:"pending"`
}

// EventOutcome is the result of reconciling one event row
type EventOutcome struct {
	Row        int    `json:"row"`
	WriteOffID int    `json:"writeOffId,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
	Clamped    bool   `json:"clamped,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Message    string `json:"message,omitempty"`
	Err        error  `json:"-"`
}

// ReconcileReport collects per-row outcomes of one reconciliation run
type ReconcileReport struct {
	RunID     string         `json:"runId"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Outcomes  []EventOutcome `json:"outcomes"`
}
