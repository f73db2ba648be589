package handler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/events"
	"caisse-system/internal/permissions"
)

type AdjustStockRequest struct {
	ProductID   int64
	Delta       int
	Kind        models.MovementKind
	Description string
}

func (r AdjustStockRequest) validate() error {
	if r.ProductID <= 0 {
		return apperr.Validation(nil, "product_id must be positive")
	}
	if !r.Kind.Valid() {
		return apperr.Validation(nil, "unknown movement kind %q", r.Kind)
	}
	switch {
	case r.Delta == 0:
		return apperr.Validation(nil, "quantity must not be zero")
	case r.Kind == models.MovementEntry && r.Delta < 0:
		return apperr.Validation(nil, "an entry must add stock")
	case r.Kind == models.MovementExit && r.Delta > 0:
		return apperr.Validation(nil, "an exit must remove stock")
	}
	return nil
}

// AdjustStock applies a signed delta to a product's stock and appends the
// matching movement in one transaction. It returns the new stock level.
//
// Besides refusing to take stock below zero, it rejects a zero delta, an
// entry that removes stock and an exit that adds stock, so every movement's
// kind matches its sign. Adjustments accept either sign.
func (h *InventoryHandler) AdjustStock(ctx context.Context, caller permissions.Caller, req AdjustStockRequest) (int, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	now := h.now().UTC()
	tx := h.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, apperr.Storage(tx.Error, "begin transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, req.ProductID).Error; err != nil {
		tx.Rollback()
		return 0, apperr.FromDB(err, fmt.Sprintf("product %d", req.ProductID))
	}

	newStock := product.CurrentStock + req.Delta
	if newStock < 0 {
		tx.Rollback()
		return 0, apperr.Validation(apperr.ErrInsufficientStock,
			"insufficient stock for %q: available %d, requested %d", product.Name, product.CurrentStock, -req.Delta)
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND current_stock = ?", product.ID, product.CurrentStock).
		Updates(map[string]any{"current_stock": newStock, "updated_at": now})
	if res.Error != nil {
		tx.Rollback()
		return 0, apperr.Storage(res.Error, "update stock")
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return 0, apperr.Conflict(apperr.ErrConcurrentUpdate, "stock of %q changed concurrently", product.Name)
	}

	movement := models.StockMovement{
		ProductID:   product.ID,
		UserID:      caller.UserRef(),
		Kind:        req.Kind,
		Quantity:    req.Delta,
		Description: strPtr(strings.TrimSpace(req.Description)),
		CreatedAt:   now,
	}
	if err := tx.Create(&movement).Error; err != nil {
		tx.Rollback()
		return 0, apperr.Storage(err, "insert stock movement")
	}

	if err := tx.Commit().Error; err != nil {
		return 0, apperr.Storage(err, "commit stock adjustment")
	}

	h.log.Info("stock adjusted",
		zap.Int64("product_id", product.ID),
		zap.String("kind", string(req.Kind)),
		zap.Int("delta", req.Delta),
		zap.Int("stock", newStock),
		zap.Int64("user_id", caller.UserID),
	)
	h.publish(ctx, events.Event{
		Type:      events.StockAdjusted,
		ProductID: product.ID,
		UserID:    caller.UserID,
		Quantity:  req.Delta,
		Status:    string(req.Kind),
	})
	if newStock <= product.StockMin {
		h.publish(ctx, events.Event{
			Type:      events.StockLow,
			ProductID: product.ID,
			Quantity:  newStock,
		})
	}
	return newStock, nil
}

// GetMovements returns the stock history of a product, most recent first.
func (h *InventoryHandler) GetMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	db := h.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return nil, apperr.Storage(err, "look up product")
	}
	if n == 0 {
		return nil, apperr.NotFound("product %d not found", productID)
	}

	var movements []models.StockMovement
	err := db.Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&movements).Error
	if err != nil {
		return nil, apperr.Storage(err, "list stock movements")
	}
	return movements, nil
}

// GetLowStock lists products at or below their minimum, most critical first.
func (h *InventoryHandler) GetLowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := h.db.WithContext(ctx).
		Preload("Category").
		Where("current_stock <= stock_min").
		Order("current_stock ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, apperr.Storage(err, "list low stock")
	}
	return products, nil
}

// PublishLowStockAlerts emits a stock.low event per product currently at or
// below its minimum and returns how many were sent.
func (h *InventoryHandler) PublishLowStockAlerts(ctx context.Context) (int, error) {
	products, err := h.GetLowStock(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range products {
		h.publish(ctx, events.Event{
			Type:      events.StockLow,
			ProductID: p.ID,
			Quantity:  p.CurrentStock,
		})
	}
	return len(products), nil
}
