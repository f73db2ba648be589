package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/events"
	"caisse-system/internal/permissions"
)

type PaymentResult struct {
	SaleID     int64             `json:"sale_id"`
	Payment    models.Payment    `json:"payment"`
	AmountPaid decimal.Decimal   `json:"amount_paid"`
	Status     models.SaleStatus `json:"status"`
	Remaining  decimal.Decimal   `json:"remaining"`
}

// DeriveStatus maps the paid amount of a non-cancelled sale to its status.
func DeriveStatus(total, paid decimal.Decimal) models.SaleStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.SaleStatusPaid
	case paid.IsPositive():
		return models.SaleStatusPartial
	default:
		return models.SaleStatusPending
	}
}

// RecordPayment adds amount to what has been paid on a sale. The sale update
// and the payment row are written in one transaction; an amount larger than
// the remaining balance is rejected without touching anything.
func (h *POSHandler) RecordPayment(ctx context.Context, caller permissions.Caller, saleID int64, amount decimal.Decimal) (*PaymentResult, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.Validation(nil, "payment amount must be greater than 0")
	}

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

	var sale models.Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sale, saleID).Error; err != nil {
		tx.Rollback()
		return nil, apperr.FromDB(err, saleRef(saleID))
	}

	if sale.Status == models.SaleStatusCancelled {
		tx.Rollback()
		return nil, apperr.Validation(apperr.ErrSaleCancelled, "sale %s is cancelled", sale.InvoiceNumber)
	}

	newPaid := sale.AmountPaid.Add(amount)
	if newPaid.GreaterThan(sale.TotalAmount) {
		tx.Rollback()
		return nil, apperr.Validation(apperr.ErrOverpayment,
			"payment %s exceeds remaining balance %s", amount.StringFixed(2), sale.Remaining().StringFixed(2))
	}
	status := DeriveStatus(sale.TotalAmount, newPaid)

	res := tx.Model(&models.Sale{}).
		Where("id = ? AND amount_paid = ?", sale.ID, sale.AmountPaid).
		Updates(map[string]any{
			"amount_paid": newPaid,
			"status":      status,
			"updated_at":  now.UTC(),
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, apperr.Storage(res.Error, "update sale balance")
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict(apperr.ErrConcurrentUpdate, "sale %s was paid concurrently", sale.InvoiceNumber)
	}

	payment := models.Payment{
		SaleID:     sale.ID,
		Amount:     amount,
		RecordedBy: caller.UserRef(),
		CreatedAt:  now.UTC(),
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, apperr.Storage(err, "insert payment")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Storage(err, "commit payment")
	}

	result := &PaymentResult{
		SaleID:     sale.ID,
		Payment:    payment,
		AmountPaid: newPaid,
		Status:     status,
		Remaining:  sale.TotalAmount.Sub(newPaid),
	}

	h.log.Info("payment recorded",
		zap.Int64("sale_id", sale.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", string(status)),
		zap.Int64("user_id", caller.UserID),
	)
	h.publish(ctx, events.Event{
		Type:          events.PaymentRecorded,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		UserID:        caller.UserID,
		Amount:        decimalPtr(amount),
		Status:        string(status),
	})
	return result, nil
}

// GetPaymentHistory lists the payments of a sale, most recent first.
func (h *POSHandler) GetPaymentHistory(ctx context.Context, saleID int64) ([]models.Payment, error) {
	db := h.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Sale{}).Where("id = ?", saleID).Count(&count).Error; err != nil {
		return nil, apperr.Storage(err, "look up sale")
	}
	if count == 0 {
		return nil, apperr.NotFound("sale %d not found", saleID)
	}

	var payments []models.Payment
	if err := db.Where("sale_id = ?", saleID).Order("created_at DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, apperr.Storage(err, "list payments")
	}
	return payments, nil
}
