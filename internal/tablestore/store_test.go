package tablestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/straye-as/sheet-ledger/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.NewDatabase(&config.StoreConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	s := NewGormStore(db, zap.NewNop())
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory":   NewMemoryStore(),
		"sqlite":   newSQLiteStore(t),
		"workbook": NewWorkbookStore(filepath.Join(t.TempDir(), "ledger.xlsx"), zap.NewNop()),
	}
}

func sampleTable() *Table {
	t := NewTable("id", "grade", "thickness")
	t.Append(Record{"id": "1", "grade": "St3", "thickness": "10"})
	t.Append(Record{"id": "2", "grade": "09Г2С", "thickness": "2.5"})
	t.Append(Record{"id": "3", "grade": "AISI 304", "thickness": ""})
	return t
}

func TestStore_MissingTableIsEmpty(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			tbl, err := s.LoadTable(context.Background(), "materials")
			require.NoError(t, err)
			assert.Equal(t, 0, tbl.Len())
		})
	}
}

func TestStore_SaveThenLoadPreservesOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveTable(ctx, "materials", sampleTable()))

			got, err := s.LoadTable(ctx, "materials")
			require.NoError(t, err)
			assert.Equal(t, []string{"id", "grade", "thickness"}, got.Columns)
			require.Equal(t, 3, got.Len())
			assert.Equal(t, "St3", got.Rows[0]["grade"])
			assert.Equal(t, "09Г2С", got.Rows[1]["grade"])
			assert.Equal(t, "2.5", got.Rows[1]["thickness"])
			assert.Equal(t, "", got.Rows[2]["thickness"])
		})
	}
}

func TestStore_SaveReplacesWholeTable(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveTable(ctx, "materials", sampleTable()))
			require.NoError(t, s.SaveTable(ctx, "orders", NewTable("id", "name")))

			smaller := NewTable("id", "grade", "thickness")
			smaller.Append(Record{"id": "9", "grade": "Amg5", "thickness": "4"})
			require.NoError(t, s.SaveTable(ctx, "materials", smaller))

			got, err := s.LoadTable(ctx, "materials")
			require.NoError(t, err)
			require.Equal(t, 1, got.Len())
			assert.Equal(t, "9", got.Rows[0]["id"])

			other, err := s.LoadTable(ctx, "orders")
			require.NoError(t, err)
			assert.Equal(t, 0, other.Len())
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tbl := sampleTable()
	require.NoError(t, s.SaveTable(ctx, "materials", tbl))

	tbl.Rows[0]["grade"] = "changed"
	loaded, err := s.LoadTable(ctx, "materials")
	require.NoError(t, err)
	assert.Equal(t, "St3", loaded.Rows[0]["grade"])

	loaded.Rows[0]["grade"] = "changed again"
	again, err := s.LoadTable(ctx, "materials")
	require.NoError(t, err)
	assert.Equal(t, "St3", again.Rows[0]["grade"])
}

func TestWorkbookStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0644))
	s := NewWorkbookStore(path, zap.NewNop())

	tbl, err := s.LoadTable(ctx, "materials")
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())

	// refuse to clobber a file that could not be read
	err = s.SaveTable(ctx, "materials", sampleTable())
	assert.Error(t, err)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, &config.StoreConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewStore(ctx, &config.StoreConfig{Driver: "sqlite", Path: ":memory:", AutoMigrate: true}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, s)

	_, err = NewStore(ctx, &config.StoreConfig{Driver: "csv"}, zap.NewNop())
	assert.Error(t, err)
}
