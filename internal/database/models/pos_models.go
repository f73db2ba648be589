package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusPartial   SaleStatus = "partial"
	SaleStatusPaid      SaleStatus = "paid"
	SaleStatusCancelled SaleStatus = "cancelled"
)

type DiscountKind string

const (
	DiscountAmount  DiscountKind = "amount"
	DiscountPercent DiscountKind = "percent"
)

type Sale struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNumber string `gorm:"type:varchar(32);uniqueIndex;not null" json:"invoice_number"`
	ClientID      int64  `gorm:"not null;index" json:"client_id"`
	CreatedBy     *int64 `json:"created_by,omitempty"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DiscountKind   DiscountKind    `gorm:"type:varchar(16);not null" json:"discount_kind"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	TaxPercent     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_percent"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_paid"`
	Status         SaleStatus      `gorm:"type:varchar(16);not null;index" json:"status"`

	Notes *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client    *Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	LineItems []SaleLineItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"line_items,omitempty"`
	Payments  []Payment      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
}

// Remaining is the balance still owed on the sale.
func (s Sale) Remaining() decimal.Decimal {
	return s.TotalAmount.Sub(s.AmountPaid)
}

type SaleLineItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID    int64           `gorm:"index;not null" json:"sale_id"`
	ProductID int64           `gorm:"index;not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type Payment struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SaleID     int64           `gorm:"index;not null" json:"sale_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	RecordedBy *int64          `json:"recorded_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
