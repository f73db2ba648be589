package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/events"
	"caisse-system/internal/permissions"
)

var hundred = decimal.NewFromInt(100)

type LineItemInput struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type CreateSaleRequest struct {
	ClientID     int64
	LineItems    []LineItemInput
	DiscountKind models.DiscountKind
	Discount     decimal.Decimal
	// TaxPercent nil means the configured default rate.
	TaxPercent *decimal.Decimal
	Notes      string
}

type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// ComputeTotals applies the discount to the subtotal and then tax to the
// discounted amount. Arithmetic runs at full precision and only the returned
// values are rounded half-up to cents. TaxAmount absorbs the rounding so that
// Subtotal - DiscountAmount + TaxAmount == Total holds exactly.
func ComputeTotals(items []LineItemInput, kind models.DiscountKind, discount, taxPercent decimal.Decimal) (Totals, error) {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	var discountAmount decimal.Decimal
	switch kind {
	case models.DiscountPercent:
		discountAmount = subtotal.Mul(discount).Div(hundred)
	default:
		discountAmount = discount
	}

	net := subtotal.Sub(discountAmount)
	if net.IsNegative() {
		return Totals{}, apperr.Validation(apperr.ErrInvalidDiscount,
			"discount %s exceeds subtotal %s", discountAmount.String(), subtotal.String())
	}
	total := net.Mul(decimal.NewFromInt(1).Add(taxPercent.Div(hundred))).Round(2)

	storedSubtotal := subtotal.Round(2)
	storedDiscount := discountAmount.Round(2)
	return Totals{
		Subtotal:       storedSubtotal,
		DiscountAmount: storedDiscount,
		TaxAmount:      total.Sub(storedSubtotal.Sub(storedDiscount)),
		Total:          total,
	}, nil
}

func validateSaleRequest(req CreateSaleRequest, tax decimal.Decimal) error {
	if len(req.LineItems) == 0 {
		return apperr.Validation(apperr.ErrEmptySale, "a sale needs at least one line item")
	}
	for i, it := range req.LineItems {
		switch {
		case it.ProductID <= 0:
			return apperr.Validation(nil, "line %d: product_id must be positive", i+1)
		case it.Quantity <= 0:
			return apperr.Validation(nil, "line %d: quantity must be greater than 0", i+1)
		case it.UnitPrice.IsNegative():
			return apperr.Validation(nil, "line %d: unit_price must not be negative", i+1)
		case !it.UnitPrice.Equal(it.UnitPrice.Round(2)):
			return apperr.Validation(nil, "line %d: unit_price must not have more than 2 decimals", i+1)
		}
	}
	if tax.IsNegative() || tax.GreaterThan(hundred) {
		return apperr.Validation(nil, "tax_percent must be between 0 and 100")
	}
	if req.Discount.IsNegative() {
		return apperr.Validation(apperr.ErrInvalidDiscount, "discount must not be negative")
	}
	switch req.DiscountKind {
	case models.DiscountPercent:
		if req.Discount.GreaterThan(hundred) {
			return apperr.Validation(apperr.ErrInvalidDiscount, "percent discount must be between 0 and 100")
		}
	case models.DiscountAmount:
	default:
		return apperr.Validation(nil, "unknown discount kind %q", req.DiscountKind)
	}
	return nil
}

// CreateSale records a sale and its line items in one transaction. Stock is
// not touched; stock exits are recorded separately through the stock ledger.
func (h *POSHandler) CreateSale(ctx context.Context, caller permissions.Caller, req CreateSaleRequest) (*models.Sale, error) {
	if req.DiscountKind == "" {
		req.DiscountKind = models.DiscountAmount
	}
	tax := h.defaultTax(ctx)
	if req.TaxPercent != nil {
		tax = *req.TaxPercent
	}

	if err := validateSaleRequest(req, tax); err != nil {
		return nil, err
	}
	totals, err := ComputeTotals(req.LineItems, req.DiscountKind, req.Discount, tax)
	if err != nil {
		return nil, err
	}
	if err := h.checkReferences(ctx, req); err != nil {
		return nil, err
	}

	sale, err := h.insertSale(ctx, caller, req, tax, totals)
	if errors.Is(err, apperr.ErrDuplicateInvoiceNumber) {
		h.log.Warn("invoice number taken concurrently, retrying", zap.Error(err))
		sale, err = h.insertSale(ctx, caller, req, tax, totals)
	}
	if err != nil {
		return nil, err
	}

	h.log.Info("sale created",
		zap.Int64("sale_id", sale.ID),
		zap.String("invoice_number", sale.InvoiceNumber),
		zap.String("total", sale.TotalAmount.StringFixed(2)),
		zap.Int64("user_id", caller.UserID),
	)
	h.publish(ctx, events.Event{
		Type:          events.SaleCreated,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		UserID:        caller.UserID,
		Amount:        decimalPtr(sale.TotalAmount),
		Status:        string(sale.Status),
	})
	return sale, nil
}

func (h *POSHandler) checkReferences(ctx context.Context, req CreateSaleRequest) error {
	db := h.db.WithContext(ctx)

	var client models.Client
	if err := db.Select("id").First(&client, req.ClientID).Error; err != nil {
		return apperr.FromDB(err, fmt.Sprintf("client %d", req.ClientID))
	}

	ids := make([]int64, 0, len(req.LineItems))
	seen := make(map[int64]bool, len(req.LineItems))
	for _, it := range req.LineItems {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	var found []int64
	if err := db.Model(&models.Product{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return apperr.Storage(err, "look up products")
	}
	if len(found) != len(ids) {
		present := make(map[int64]bool, len(found))
		for _, id := range found {
			present[id] = true
		}
		for _, id := range ids {
			if !present[id] {
				return apperr.NotFound("product %d not found", id)
			}
		}
	}
	return nil
}

func (h *POSHandler) insertSale(ctx context.Context, caller permissions.Caller, req CreateSaleRequest, tax decimal.Decimal, totals Totals) (*models.Sale, error) {
	now := h.now()

	tx := h.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperr.Storage(tx.Error, "begin transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	number, err := h.numberer.Next(tx, now)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	sale := models.Sale{
		InvoiceNumber:  number,
		ClientID:       req.ClientID,
		CreatedBy:      caller.UserRef(),
		Subtotal:       totals.Subtotal,
		DiscountKind:   req.DiscountKind,
		DiscountValue:  req.Discount,
		DiscountAmount: totals.DiscountAmount,
		TaxPercent:     tax,
		TaxAmount:      totals.TaxAmount,
		TotalAmount:    totals.Total,
		AmountPaid:     decimal.Zero,
		Status:         models.SaleStatusPending,
		Notes:          strPtr(strings.TrimSpace(req.Notes)),
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}

	if err := tx.Omit(clause.Associations).Create(&sale).Error; err != nil {
		tx.Rollback()
		if apperr.IsUniqueViolation(err) {
			return nil, &apperr.Error{
				Kind:    apperr.ErrConflict,
				Reason:  apperr.ErrDuplicateInvoiceNumber,
				Message: "invoice number " + number + " already used",
				Err:     err,
			}
		}
		return nil, apperr.Storage(err, "insert sale")
	}

	items := make([]models.SaleLineItem, len(req.LineItems))
	for i, in := range req.LineItems {
		items[i] = models.SaleLineItem{
			SaleID:    sale.ID,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineTotal: in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2),
		}
		if err := tx.Create(&items[i]).Error; err != nil {
			tx.Rollback()
			return nil, apperr.Storage(err, "insert line item %d", i+1)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Storage(err, "commit sale")
	}

	sale.LineItems = items
	return &sale, nil
}

func (h *POSHandler) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := h.db.WithContext(ctx).
		Preload("Client").
		Preload("LineItems.Product").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC")
		}).
		First(&sale, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, saleRef(id))
	}
	return &sale, nil
}

func (h *POSHandler) GetSaleByInvoiceNumber(ctx context.Context, number string) (*models.Sale, error) {
	var sale models.Sale
	err := h.db.WithContext(ctx).
		Preload("Client").
		Preload("LineItems.Product").
		Where("invoice_number = ?", number).
		First(&sale).Error
	if err != nil {
		return nil, apperr.FromDB(err, "invoice "+number)
	}
	return &sale, nil
}

// ListSales returns the most recent sales first together with the total count.
func (h *POSHandler) ListSales(ctx context.Context, limit, offset int) ([]models.Sale, int64) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var total int64
	var sales []models.Sale
	db := h.db.WithContext(ctx)
	if err := db.Model(&models.Sale{}).Count(&total).Error; err != nil {
		h.log.Warn("count sales failed", zap.Error(err))
		return []models.Sale{}, 0
	}
	err := db.Preload("Client").
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&sales).Error
	if err != nil {
		h.log.Warn("list sales failed", zap.Error(err))
		return []models.Sale{}, 0
	}
	return sales, total
}

type SearchBy string

const (
	SearchByNumber SearchBy = "number"
	SearchByClient SearchBy = "client"
)

func (h *POSHandler) SearchSales(ctx context.Context, term string, by SearchBy) []models.Sale {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	query := h.db.WithContext(ctx).Preload("Client")

	switch by {
	case SearchByClient:
		query = query.
			Joins("JOIN clients ON clients.id = sales.client_id").
			Where("LOWER(clients.last_name) LIKE ? OR LOWER(clients.first_name) LIKE ?", pattern, pattern)
	default:
		query = query.Where("LOWER(sales.invoice_number) LIKE ?", pattern)
	}

	var sales []models.Sale
	if err := query.Order("sales.created_at DESC, sales.id DESC").Find(&sales).Error; err != nil {
		h.log.Warn("search sales failed", zap.String("term", term), zap.Error(err))
		return []models.Sale{}
	}
	return sales
}

// ListUnpaidSales returns pending and partially paid sales, oldest first.
func (h *POSHandler) ListUnpaidSales(ctx context.Context) []models.Sale {
	var sales []models.Sale
	err := h.db.WithContext(ctx).
		Preload("Client").
		Where("status IN ?", []models.SaleStatus{models.SaleStatusPending, models.SaleStatusPartial}).
		Order("created_at ASC, id ASC").
		Find(&sales).Error
	if err != nil {
		h.log.Warn("list unpaid sales failed", zap.Error(err))
		return []models.Sale{}
	}
	return sales
}

// CancelSale marks a sale cancelled. Fully paid sales cannot be cancelled and
// cancelling twice is a no-op.
func (h *POSHandler) CancelSale(ctx context.Context, caller permissions.Caller, id int64) (*models.Sale, error) {
	tx := h.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperr.Storage(tx.Error, "begin transaction")
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var sale models.Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sale, id).Error; err != nil {
		tx.Rollback()
		return nil, apperr.FromDB(err, saleRef(id))
	}

	switch sale.Status {
	case models.SaleStatusCancelled:
		tx.Rollback()
		return &sale, nil
	case models.SaleStatusPaid:
		tx.Rollback()
		return nil, apperr.Validation(apperr.ErrSaleSettled, "sale %s is fully paid", sale.InvoiceNumber)
	}

	res := tx.Model(&models.Sale{}).
		Where("id = ? AND status = ?", sale.ID, sale.Status).
		Updates(map[string]any{"status": models.SaleStatusCancelled, "updated_at": h.now().UTC()})
	if res.Error != nil {
		tx.Rollback()
		return nil, apperr.Storage(res.Error, "cancel sale")
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict(apperr.ErrConcurrentUpdate, "sale %s changed while cancelling", sale.InvoiceNumber)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Storage(err, "commit cancel")
	}

	sale.Status = models.SaleStatusCancelled
	h.log.Info("sale cancelled", zap.Int64("sale_id", sale.ID), zap.Int64("user_id", caller.UserID))
	h.publish(ctx, events.Event{
		Type:          events.SaleCancelled,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		UserID:        caller.UserID,
		Status:        string(sale.Status),
	})
	return &sale, nil
}

// DeleteSale removes a sale with its line items and payments.
func (h *POSHandler) DeleteSale(ctx context.Context, caller permissions.Caller, id int64) error {
	var sale models.Sale
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sale, id).Error; err != nil {
			return apperr.FromDB(err, saleRef(id))
		}
		if err := tx.Where("sale_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return apperr.Storage(err, "delete payments")
		}
		if err := tx.Where("sale_id = ?", id).Delete(&models.SaleLineItem{}).Error; err != nil {
			return apperr.Storage(err, "delete line items")
		}
		if err := tx.Delete(&models.Sale{}, id).Error; err != nil {
			return apperr.Storage(err, "delete sale")
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.log.Info("sale deleted", zap.Int64("sale_id", id), zap.Int64("user_id", caller.UserID))
	h.publish(ctx, events.Event{
		Type:          events.SaleDeleted,
		SaleID:        id,
		InvoiceNumber: sale.InvoiceNumber,
		UserID:        caller.UserID,
	})
	return nil
}
