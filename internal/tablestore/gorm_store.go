package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type tableRecord struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Columns   string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (tableRecord) TableName() string { return "ledger_tables" }

type rowRecord struct {
	Table    string `gorm:"column:table_name;primaryKey;size:64"`
	Position int    `gorm:"primaryKey;autoIncrement:false"`
	Payload  string `gorm:"type:text;not null"`
}

func (rowRecord) TableName() string { return "ledger_rows" }

// GormStore keeps tables in a SQL database as JSON rows.
// Each SaveTable runs in its own database transaction.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// NewGormStore creates a new GormStore instance
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger}
}

// AutoMigrate creates the store tables (for development and tests)
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&tableRecord{}, &rowRecord{}); err != nil {
		return fmt.Errorf("failed to migrate table store: %w", err)
	}
	return nil
}

// LoadTable reads the named table in row order
func (s *GormStore) LoadTable(ctx context.Context, name string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var meta tableRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load table %s: %w", name, err)
	}

	var rows []rowRecord
	if err := s.db.WithContext(ctx).
		Where("table_name = ?", name).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load rows of %s: %w", name, err)
	}

	t := &Table{}
	if err := json.Unmarshal([]byte(meta.Columns), &t.Columns); err != nil {
		s.logger.Warn("Corrupt table header, treating table as empty", zap.String("table", name), zap.Error(err))
		return &Table{}, nil
	}
	t.Rows = make([]Record, 0, len(rows))
	for _, row := range rows {
		var rec Record
		if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
			s.logger.Warn("Corrupt table row, treating table as empty",
				zap.String("table", name),
				zap.Int("position", row.Position),
				zap.Error(err),
			)
			return &Table{}, nil
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// SaveTable replaces all rows of the named table
func (s *GormStore) SaveTable(ctx context.Context, name string, table *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns of %s: %w", name, err)
	}
	rows := make([]rowRecord, 0, len(table.Rows))
	for i, r := range table.Rows {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode row %d of %s: %w", i, name, err)
		}
		rows = append(rows, rowRecord{Table: name, Position: i, Payload: string(payload)})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&tableRecord{Name: name, Columns: string(columns), UpdatedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("failed to save table %s: %w", name, err)
		}
		if err := tx.Where("table_name = ?", name).Delete(&rowRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear rows of %s: %w", name, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("failed to insert rows of %s: %w", name, err)
		}
		return nil
	})
}
