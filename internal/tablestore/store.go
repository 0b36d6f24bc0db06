// Package tablestore persists named tables of string records. A store only
// knows how to load a whole table and replace a whole table; it never writes
// part of a table and never spans tables in one transaction.
package tablestore

import (
	"context"
	"fmt"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/database"
	"go.uber.org/zap"
)

// Record is one row keyed by column name
type Record map[string]string

// Table is an ordered set of records sharing a column list
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable creates an empty table with the given columns
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Append adds a record to the end of the table
func (t *Table) Append(r Record) {
	t.Rows = append(t.Rows, r)
}

// Len returns the row count
func (t *Table) Len() int {
	return len(t.Rows)
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	if t == nil {
		return &Table{}
	}
	c := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Record, len(t.Rows)),
	}
	for i, r := range t.Rows {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		c.Rows[i] = cp
	}
	return c
}

// Values returns the record's values in column order
func (t *Table) Values(r Record) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = r[c]
	}
	return out
}

// Store loads and replaces whole tables.
// LoadTable returns an empty table when the table is absent or unreadable;
// an error means the store itself could not be reached.
type Store interface {
	LoadTable(ctx context.Context, name string) (*Table, error)
	SaveTable(ctx context.Context, name string, table *Table) error
}

// NewStore creates a table store based on configuration.
func NewStore(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "workbook":
		return NewWorkbookStore(cfg.Path, logger), nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		db, err := database.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		s := NewGormStore(db, logger)
		if cfg.AutoMigrate {
			if err := s.AutoMigrate(ctx); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
