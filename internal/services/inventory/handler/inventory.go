package handler

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/events"
	"caisse-system/internal/permissions"
)

type InventoryHandler struct {
	db        *gorm.DB
	log       *zap.Logger
	now       func() time.Time
	publisher events.Publisher
}

type Option func(*InventoryHandler)

func WithClock(now func() time.Time) Option {
	return func(h *InventoryHandler) { h.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(h *InventoryHandler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(h *InventoryHandler) {
		if p != nil {
			h.publisher = p
		}
	}
}

func NewInventoryHandler(db *gorm.DB, opts ...Option) *InventoryHandler {
	h := &InventoryHandler{
		db:        db,
		log:       zap.NewNop(),
		now:       time.Now,
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *InventoryHandler) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now()
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.log.Warn("failed to publish event",
			zap.String("event_type", event.Type),
			zap.Int64("product_id", event.ProductID),
			zap.Error(err),
		)
	}
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// --- Categories ---

func (h *InventoryHandler) CreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return nil, apperr.Fields(map[string]string{"name": "must be between 2 and 100 characters"})
	}

	category := models.Category{
		Name:        name,
		Description: strPtr(description),
		CreatedAt:   h.now().UTC(),
	}
	if err := h.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, apperr.FromDB(err, "category "+name)
	}
	return &category, nil
}

func (h *InventoryHandler) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	if err := h.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("category %d", id))
	}
	return &category, nil
}

func (h *InventoryHandler) ListCategories(ctx context.Context) []models.Category {
	var categories []models.Category
	if err := h.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		h.log.Warn("list categories failed", zap.Error(err))
		return []models.Category{}
	}
	return categories
}

// --- Products ---

type ProductInput struct {
	CategoryID    *int64
	Name          string
	Description   string
	PurchasePrice decimal.Decimal
	SalePrice     decimal.Decimal
	StockMin      int
	// InitialStock is only read by CreateProduct.
	InitialStock int
}

func (in ProductInput) validate() error {
	v := map[string]string{}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.Name)); n < 2 || n > 100 {
		v["name"] = "must be between 2 and 100 characters"
	}
	if in.PurchasePrice.IsNegative() {
		v["purchase_price"] = "must not be negative"
	}
	if in.SalePrice.IsNegative() {
		v["sale_price"] = "must not be negative"
	} else if !in.SalePrice.GreaterThan(in.PurchasePrice) {
		v["sale_price"] = "must be greater than the purchase price"
	}
	if in.StockMin < 0 {
		v["stock_min"] = "must not be negative"
	}
	if in.InitialStock < 0 {
		v["initial_stock"] = "must not be negative"
	}
	if len(v) > 0 {
		return apperr.Fields(v)
	}
	return nil
}

func (h *InventoryHandler) checkCategory(tx *gorm.DB, id *int64) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Category{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return apperr.Storage(err, "look up category")
	}
	if n == 0 {
		return apperr.NotFound("category %d not found", *id)
	}
	return nil
}

// CreateProduct inserts a product. A nonzero initial stock is recorded as an
// entry movement in the same transaction.
func (h *InventoryHandler) CreateProduct(ctx context.Context, caller permissions.Caller, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := h.now().UTC()
	product := models.Product{
		CategoryID:    in.CategoryID,
		Name:          strings.TrimSpace(in.Name),
		Description:   strPtr(in.Description),
		PurchasePrice: in.PurchasePrice.Round(2),
		SalePrice:     in.SalePrice.Round(2),
		StockMin:      in.StockMin,
		CurrentStock:  in.InitialStock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := h.checkCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if err := tx.Create(&product).Error; err != nil {
			return apperr.FromDB(err, "product "+product.Name)
		}
		if in.InitialStock == 0 {
			return nil
		}
		movement := models.StockMovement{
			ProductID:   product.ID,
			UserID:      caller.UserRef(),
			Kind:        models.MovementEntry,
			Quantity:    in.InitialStock,
			Description: strPtr("Stock initial"),
			CreatedAt:   now,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return apperr.Storage(err, "record initial stock")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("product created", zap.Int64("product_id", product.ID), zap.Int("initial_stock", in.InitialStock))
	return &product, nil
}

func (h *InventoryHandler) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := h.db.WithContext(ctx).Preload("Category").First(&product, id).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("product %d", id))
	}
	return &product, nil
}

// UpdateProduct edits catalog fields. Stock only changes through AdjustStock.
func (h *InventoryHandler) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	in.InitialStock = 0
	if err := in.validate(); err != nil {
		return nil, err
	}

	var product models.Product
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			return apperr.FromDB(err, fmt.Sprintf("product %d", id))
		}
		if err := h.checkCategory(tx, in.CategoryID); err != nil {
			return err
		}

		product.CategoryID = in.CategoryID
		product.Name = strings.TrimSpace(in.Name)
		product.Description = strPtr(in.Description)
		product.PurchasePrice = in.PurchasePrice.Round(2)
		product.SalePrice = in.SalePrice.Round(2)
		product.StockMin = in.StockMin
		product.UpdatedAt = h.now().UTC()

		err := tx.Model(&product).
			Select("category_id", "name", "description", "purchase_price", "sale_price", "stock_min", "updated_at").
			Updates(&product).Error
		if err != nil {
			return apperr.FromDB(err, "product "+product.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product that has never been sold and has no stock
// history. Stock movements are never deleted, so a product that ever held
// stock stays in the catalog.
func (h *InventoryHandler) DeleteProduct(ctx context.Context, id int64) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, id).Error; err != nil {
			return apperr.FromDB(err, fmt.Sprintf("product %d", id))
		}

		var sold int64
		if err := tx.Model(&models.SaleLineItem{}).Where("product_id = ?", id).Count(&sold).Error; err != nil {
			return apperr.Storage(err, "check product usage")
		}
		if sold > 0 {
			return apperr.Conflict(apperr.ErrInUse, "product %q appears on %d sale lines", product.Name, sold)
		}

		var moved int64
		if err := tx.Model(&models.StockMovement{}).Where("product_id = ?", id).Count(&moved).Error; err != nil {
			return apperr.Storage(err, "check stock history")
		}
		if moved > 0 {
			return apperr.Conflict(apperr.ErrInUse, "product %q has %d stock movements", product.Name, moved)
		}

		if err := tx.Delete(&product).Error; err != nil {
			return apperr.Storage(err, "delete product")
		}
		return nil
	})
}

// ListProducts orders by category then name.
func (h *InventoryHandler) ListProducts(ctx context.Context) []models.Product {
	var products []models.Product
	err := h.db.WithContext(ctx).
		Preload("Category").
		Order("category_id ASC").
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		h.log.Warn("list products failed", zap.Error(err))
		return []models.Product{}
	}
	return products
}

func (h *InventoryHandler) ListProductsByCategory(ctx context.Context, categoryID int64) []models.Product {
	var products []models.Product
	err := h.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		h.log.Warn("list products by category failed", zap.Int64("category_id", categoryID), zap.Error(err))
		return []models.Product{}
	}
	return products
}

func (h *InventoryHandler) SearchProducts(ctx context.Context, term string) []models.Product {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"

	var products []models.Product
	err := h.db.WithContext(ctx).
		Preload("Category").
		Where("LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?", pattern, pattern).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		h.log.Warn("search products failed", zap.String("term", term), zap.Error(err))
		return []models.Product{}
	}
	return products
}

// Margin is the markup of sale over purchase price, in percent.
func Margin(purchase, sale decimal.Decimal) decimal.Decimal {
	if purchase.IsZero() {
		return decimal.Zero
	}
	return sale.Sub(purchase).Div(purchase).Mul(decimal.NewFromInt(100)).Round(2)
}
