package repository

// Table names as stored in the table store
const (
	TableStock        = "materials"
	TableOrders       = "orders"
	TableParts        = "order_parts"
	TableReservations = "reservations"
	TableWriteOffs    = "writeoffs"
	TableEvents       = "laser_events"
	TableSequences    = "id_sequences"
)

// CommitOrder is the fixed persistence order of a session. Sequences go
// first so an allocated id is recorded before any row uses it. History
// follows so that an interrupted commit never leaves stock or reservations
// ahead of the write-offs that explain them.
var CommitOrder = []string{
	TableSequences,
	TableWriteOffs,
	TableReservations,
	TableStock,
	TableParts,
	TableOrders,
	TableEvents,
}

// AllTables lists every ledger table
var AllTables = CommitOrder

var (
	stockColumns = []string{
		"id", "grade", "thickness", "length", "width",
		"on_hand", "reserved", "available", "area", "created_at",
	}
	orderColumns = []string{
		"id", "name", "customer", "created_at", "status", "notes",
	}
	partColumns = []string{
		"id", "order_id", "part_name", "quantity", "cut", "bent",
	}
	reservationColumns = []string{
		"id", "order_id", "part_id", "part_name", "stock_id",
		"grade", "thickness", "length", "width",
		"allocated", "written_off", "remaining", "created_at",
	}
	writeOffColumns = []string{
		"id", "reservation_id", "order_id", "stock_id",
		"grade", "thickness", "length", "width",
		"quantity", "written_at", "comment",
	}
	eventColumns = []string{
		"date", "time", "operator", "order", "material",
		"material_quantity", "part", "part_quantity",
		"written_off", "writeoff_date",
	}
	sequenceColumns = []string{"entity", "last"}
)
