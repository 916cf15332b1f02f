package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable record of a completed checkout.
type Order struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	BuyerID   uint            `gorm:"not null;index" json:"buyer"`
	Items     []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedAt time.Time       `gorm:"index" json:"createdAt"`
}

// OrderItem snapshots the title and unit price at checkout time.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	OrderID   uint            `gorm:"not null;index" json:"-"`
	ListingID uint            `gorm:"not null;index" json:"listingId"`
	Title     string          `gorm:"size:255;not null" json:"title"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
}

// LineTotal is quantity times unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
