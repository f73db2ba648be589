package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

type Product struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CategoryID    *int64          `gorm:"index" json:"category_id,omitempty"`
	Name          string          `gorm:"type:varchar(100);not null;index" json:"name"`
	Description   *string         `gorm:"type:text" json:"description,omitempty"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"purchase_price"`
	SalePrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sale_price"`
	StockMin      int             `gorm:"not null" json:"stock_min"`
	CurrentStock  int             `gorm:"not null;check:chk_products_current_stock,current_stock >= 0" json:"current_stock"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

type MovementKind string

const (
	MovementEntry      MovementKind = "entry"
	MovementExit       MovementKind = "exit"
	MovementAdjustment MovementKind = "adjustment"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementEntry, MovementExit, MovementAdjustment:
		return true
	}
	return false
}

// StockMovement is append-only. Quantity is the signed delta applied to
// Product.CurrentStock.
type StockMovement struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64        `gorm:"index;not null" json:"product_id"`
	UserID      *int64       `gorm:"index" json:"user_id,omitempty"`
	Kind        MovementKind `gorm:"type:varchar(16);not null" json:"kind"`
	Quantity    int          `gorm:"not null" json:"quantity"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}
