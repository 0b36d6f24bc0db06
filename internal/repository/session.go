package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/tablestore"
	"go.uber.org/zap"
)

// ErrUnreadableRows is wrapped when a session would rewrite a table that had rows it could not decode
var ErrUnreadableRows = errors.New("table has unreadable rows")

// Repository opens sessions over a table store
type Repository struct {
	store  tablestore.Store
	logger *zap.Logger
}

// New creates a new Repository instance
func New(store tablestore.Store, logger *zap.Logger) *Repository {
	return &Repository{store: store, logger: logger}
}

// Session holds in-memory copies of the loaded tables of one operation.
// Mutate the slices, Touch the tables that changed, then Commit.
type Session struct {
	Stock        []domain.StockItem
	Orders       []domain.Order
	Parts        []domain.OrderPart
	Reservations []domain.Reservation
	WriteOffs    []domain.WriteOff
	Events       []domain.ExternalEvent

	store      tablestore.Store
	logger     *zap.Logger
	loaded     map[string]bool
	dirty      map[string]bool
	unreadable map[string]int
	seq        map[string]int
	err        error
}

// WithSession loads the named tables, runs fn and commits the touched
// tables when fn succeeds. When fn fails nothing is written.
//
// The commit is best effort: tables are replaced one by one in CommitOrder
// and a failure part way leaves the earlier tables written. The returned
// PersistenceError lists them; re-running the operation is the recovery path.
func (r *Repository) WithSession(ctx context.Context, tables []string, fn func(s *Session) error) error {
	s, err := r.Begin(ctx, tables...)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return s.Commit(ctx)
}

// Begin loads the named tables into a new session. The id sequences are
// always loaded.
func (r *Repository) Begin(ctx context.Context, tables ...string) (*Session, error) {
	s := &Session{
		store:      r.store,
		logger:     r.logger,
		loaded:     make(map[string]bool),
		dirty:      make(map[string]bool),
		unreadable: make(map[string]int),
		seq:        make(map[string]int),
	}
	for _, name := range append([]string{TableSequences}, tables...) {
		if s.loaded[name] {
			continue
		}
		if err := s.load(ctx, name); err != nil {
			return nil, err
		}
		s.loaded[name] = true
	}
	return s, nil
}

// Touch marks tables as changed so Commit writes them. Touching a table
// that had unreadable rows fails the session, since rewriting it would
// drop those rows.
func (s *Session) Touch(tables ...string) {
	for _, name := range tables {
		if s.err == nil {
			switch {
			case !s.loaded[name]:
				// writing a table that was never loaded would wipe it
				s.err = fmt.Errorf("table %s modified without being loaded", name)
			case s.unreadable[name] > 0:
				s.err = &domain.PersistenceError{
					Table: name,
					Op:    "save",
					Err:   fmt.Errorf("%w: %d rows would be lost", ErrUnreadableRows, s.unreadable[name]),
				}
			}
		}
		s.dirty[name] = true
	}
}

// Unreadable returns the number of rows of a table that failed to decode
func (s *Session) Unreadable(table string) int {
	return s.unreadable[table]
}

// Dirty reports whether a table is pending write
func (s *Session) Dirty(table string) bool {
	return s.dirty[table]
}

// Commit writes the touched tables in CommitOrder
func (s *Session) Commit(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}
	var written []string
	for _, name := range CommitOrder {
		if !s.dirty[name] {
			continue
		}
		if err := s.store.SaveTable(ctx, name, s.encode(name)); err != nil {
			s.logger.Error("Failed to save table",
				zap.String("table", name),
				zap.Strings("already_written", written),
				zap.Error(err),
			)
			return &domain.PersistenceError{Table: name, Op: "save", Written: written, Err: err}
		}
		written = append(written, name)
		delete(s.dirty, name)
	}
	return nil
}

func (s *Session) load(ctx context.Context, name string) error {
	t, err := s.store.LoadTable(ctx, name)
	if err != nil {
		s.logger.Error("Failed to load table", zap.String("table", name), zap.Error(err))
		return &domain.PersistenceError{Table: name, Op: "load", Err: err}
	}

	switch name {
	case TableSequences:
		for _, e := range decodeRows(s, name, t, decodeSequence) {
			s.seq[e.entity] = e.last
		}
	case TableStock:
		s.Stock = decodeRows(s, name, t, decodeStock)
	case TableOrders:
		s.Orders = decodeRows(s, name, t, decodeOrder)
	case TableParts:
		s.Parts = decodeRows(s, name, t, decodePart)
	case TableReservations:
		s.Reservations = decodeRows(s, name, t, decodeReservation)
	case TableWriteOffs:
		s.WriteOffs = decodeRows(s, name, t, decodeWriteOff)
	case TableEvents:
		s.Events = decodeRows(s, name, t, decodeEvent)
	default:
		return fmt.Errorf("unknown table %s", name)
	}
	return nil
}

// decodeRows skips rows that cannot be decoded, logs them and counts them
// against the table so that it is never written back short.
func decodeRows[T any](s *Session, name string, t *tablestore.Table, decode func(tablestore.Record) (T, error)) []T {
	out := make([]T, 0, t.Len())
	for i, rec := range t.Rows {
		v, err := decode(rec)
		if err != nil {
			s.logger.Warn("Skipping unreadable row",
				zap.String("table", name),
				zap.Int("row", i+1),
				zap.Error(err),
			)
			s.unreadable[name]++
			continue
		}
		out = append(out, v)
	}
	return out
}

func (s *Session) encode(name string) *tablestore.Table {
	switch name {
	case TableSequences:
		return s.encodeSequences()
	case TableStock:
		return encodeRows(stockColumns, s.Stock, encodeStock)
	case TableOrders:
		return encodeRows(orderColumns, s.Orders, encodeOrder)
	case TableParts:
		return encodeRows(partColumns, s.Parts, encodePart)
	case TableReservations:
		return encodeRows(reservationColumns, s.Reservations, encodeReservation)
	case TableWriteOffs:
		return encodeRows(writeOffColumns, s.WriteOffs, encodeWriteOff)
	case TableEvents:
		return encodeRows(eventColumns, s.Events, encodeEvent)
	}
	return tablestore.NewTable()
}

func encodeRows[T any](columns []string, items []T, encode func(*T) tablestore.Record) *tablestore.Table {
	t := tablestore.NewTable(columns...)
	for i := range items {
		t.Append(encode(&items[i]))
	}
	return t
}
