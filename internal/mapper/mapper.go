// Package mapper converts ledger models into report rows.
package mapper

import (
	"github.com/straye-as/sheet-ledger/internal/domain"
)

// ToBalanceRow converts a StockItem to a BalanceRow
func ToBalanceRow(item *domain.StockItem, writtenOff int) domain.BalanceRow {
	return domain.BalanceRow{
		StockID:    item.ID,
		Material:   item.MaterialDescriptor,
		OnHand:     item.OnHand,
		Reserved:   item.Reserved,
		WrittenOff: writtenOff,
		Available:  item.Available,
		Area:       item.Area,
		Overdrawn:  item.Overdrawn(),
	}
}

// ToLaserTaskRow converts a reservation of order to a LaserTaskRow.
// Reservations without a part get NoPartLabel.
func ToLaserTaskRow(order *domain.Order, r *domain.Reservation) domain.LaserTaskRow {
	part := r.PartName
	if !r.PartRef.Valid || part == "" {
		part = domain.NoPartLabel
	}
	return domain.LaserTaskRow{
		Customer: order.Customer,
		Order:    order.Name,
		Part:     part,
		Material: r.Material.String(),
		Quantity: r.Remaining,
	}
}
