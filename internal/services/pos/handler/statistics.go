package handler

import (
	"context"

	"github.com/shopspring/decimal"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
)

type SaleStatistics struct {
	TotalSales         int64           `json:"total_sales"`
	Revenue            decimal.Decimal `json:"revenue"`
	AverageTicket      decimal.Decimal `json:"average_ticket"`
	PaidRevenue        decimal.Decimal `json:"paid_revenue"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// GetSaleStatistics aggregates the sales created today, in the clock's
// location. Sums are done in decimal so the result does not depend on how the
// store represents numeric columns.
func (h *POSHandler) GetSaleStatistics(ctx context.Context) (SaleStatistics, error) {
	start, end := dayBounds(h.now())

	var rows []models.Sale
	err := h.db.WithContext(ctx).
		Select("id", "total_amount", "amount_paid", "status").
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&rows).Error
	if err != nil {
		return SaleStatistics{}, apperr.Storage(err, "load today's sales")
	}

	stats := SaleStatistics{
		Revenue:            decimal.Zero,
		AverageTicket:      decimal.Zero,
		PaidRevenue:        decimal.Zero,
		OutstandingBalance: decimal.Zero,
	}
	for _, s := range rows {
		stats.TotalSales++
		stats.Revenue = stats.Revenue.Add(s.TotalAmount)
		switch s.Status {
		case models.SaleStatusPaid:
			stats.PaidRevenue = stats.PaidRevenue.Add(s.TotalAmount)
		case models.SaleStatusPending, models.SaleStatusPartial:
			stats.OutstandingBalance = stats.OutstandingBalance.Add(s.Remaining())
		}
	}
	if stats.TotalSales > 0 {
		stats.AverageTicket = stats.Revenue.Div(decimal.NewFromInt(stats.TotalSales)).Round(2)
	}
	return stats, nil
}
