package mapper

import (
	"testing"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestToBalanceRow(t *testing.T) {
	item := &domain.StockItem{
		ID:                 3,
		MaterialDescriptor: domain.MaterialDescriptor{Grade: "St3", Thickness: 10, Length: 6000, Width: 1500},
		OnHand:             2,
		Reserved:           5,
	}
	item.Recalculate()

	row := ToBalanceRow(item, 4)
	assert.Equal(t, 3, row.StockID)
	assert.Equal(t, 4, row.WrittenOff)
	assert.Equal(t, -3, row.Available)
	assert.Equal(t, 18.0, row.Area)
	assert.True(t, row.Overdrawn)
}

func TestToLaserTaskRow(t *testing.T) {
	order := &domain.Order{ID: 1001, Name: "УП-123", Customer: "Metallservis"}
	material := domain.MaterialDescriptor{Grade: "St3", Thickness: 1.5, Length: 2500, Width: 1250}

	tests := []struct {
		name string
		r    domain.Reservation
		want string
	}{
		{"linked part", domain.Reservation{PartRef: domain.RefTo(7), PartName: "Кронштейн"}, "Кронштейн"},
		{"unlinked", domain.Reservation{PartRef: domain.NoRef, PartName: "Кронштейн"}, domain.NoPartLabel},
		{"linked without name", domain.Reservation{PartRef: domain.RefTo(7)}, domain.NoPartLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.r
			r.Material = material
			r.Allocated, r.WrittenOff = 5, 2
			r.Recalculate()

			row := ToLaserTaskRow(order, &r)
			assert.Equal(t, tt.want, row.Part)
			assert.Equal(t, "St3 1.5мм 1250x2500", row.Material)
			assert.Equal(t, 3, row.Quantity)
			assert.Equal(t, "Metallservis", row.Customer)
		})
	}
}
