package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"caisse-system/internal/database/models"
	"caisse-system/internal/database/testdb"
	"caisse-system/internal/events"
)

// Wednesday.
var reportNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

type reportFixture struct {
	db       *gorm.DB
	h        *ReportsHandler
	clients  []models.Client
	products []models.Product
	seq      int
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db := testdb.New(t)

	cat := models.Category{Name: "Boissons"}
	require.NoError(t, db.Create(&cat).Error)

	f := &reportFixture{db: db, h: NewReportsHandler(db, nil, nil).WithClock(func() time.Time { return reportNow })}
	f.clients = []models.Client{
		{LastName: "Diop", FirstName: "Awa"},
		{LastName: "Fall", FirstName: "Moussa"},
	}
	require.NoError(t, db.Create(&f.clients).Error)

	f.products = []models.Product{
		{Name: "Bissap", CategoryID: &cat.ID, PurchasePrice: decimal.NewFromInt(50), SalePrice: decimal.NewFromInt(100), StockMin: 5, CurrentStock: 20},
		{Name: "Savon", PurchasePrice: decimal.NewFromInt(200), SalePrice: decimal.NewFromInt(300), StockMin: 10, CurrentStock: 2},
		{Name: "Riz", PurchasePrice: decimal.NewFromInt(400), SalePrice: decimal.NewFromInt(500), StockMin: 8, CurrentStock: 7},
	}
	require.NoError(t, db.Create(&f.products).Error)
	return f
}

func (f *reportFixture) sale(t *testing.T, client int, at time.Time, status models.SaleStatus, lines ...models.SaleLineItem) models.Sale {
	t.Helper()
	f.seq++
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	s := models.Sale{
		InvoiceNumber: fmt.Sprintf("%04d/%02d/%06d", at.Year(), int(at.Month()), f.seq),
		ClientID:      f.clients[client].ID,
		Subtotal:      total,
		DiscountKind:  models.DiscountAmount,
		TotalAmount:   total,
		Status:        status,
		CreatedAt:     at,
		UpdatedAt:     at,
		LineItems:     lines,
	}
	require.NoError(t, f.db.Create(&s).Error)
	return s
}

func line(p models.Product, qty int) models.SaleLineItem {
	return models.SaleLineItem{
		ProductID: p.ID,
		Quantity:  qty,
		UnitPrice: p.SalePrice,
		LineTotal: p.SalePrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func seedSales(t *testing.T, f *reportFixture) {
	t.Helper()
	bissap, savon, riz := f.products[0], f.products[1], f.products[2]
	// today
	f.sale(t, 0, reportNow.Add(-time.Hour), models.SaleStatusPaid, line(bissap, 3))
	f.sale(t, 1, reportNow.Add(-2*time.Hour), models.SaleStatusPending, line(riz, 2))
	// Monday, same week
	f.sale(t, 1, reportNow.AddDate(0, 0, -2), models.SaleStatusPartial, line(savon, 1), line(bissap, 1))
	// earlier this month, previous week
	f.sale(t, 0, reportNow.AddDate(0, 0, -10), models.SaleStatusCancelled, line(bissap, 5))
	// previous month
	f.sale(t, 1, reportNow.AddDate(0, 0, -20), models.SaleStatusPaid, line(riz, 10))
}

func TestRevenueAndCountByPeriod(t *testing.T) {
	f := newReportFixture(t)
	seedSales(t, f)
	ctx := context.Background()

	assert.Equal(t, "1300", f.h.RevenueByPeriod(ctx, PeriodToday).String())
	assert.Equal(t, "1700", f.h.RevenueByPeriod(ctx, PeriodWeek).String())
	assert.Equal(t, "2200", f.h.RevenueByPeriod(ctx, PeriodMonth).String())

	assert.Equal(t, 2, f.h.SalesCount(ctx, PeriodToday))
	assert.Equal(t, 3, f.h.SalesCount(ctx, PeriodWeek))
	assert.Equal(t, 4, f.h.SalesCount(ctx, PeriodMonth))
}

func TestTopProductsAndClients(t *testing.T) {
	f := newReportFixture(t)
	seedSales(t, f)
	ctx := context.Background()

	top := f.h.TopProducts(ctx, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "Bissap", top[0].Name)
	assert.Equal(t, "Boissons", top[0].Category)
	assert.Equal(t, 9, top[0].Quantity)
	assert.Equal(t, "900", top[0].Revenue.String())
	assert.Equal(t, "Riz", top[1].Name)
	assert.Equal(t, uncategorized, top[1].Category)

	clients := f.h.TopClients(ctx, 5)
	require.Len(t, clients, 2)
	assert.Equal(t, "Fall Moussa", clients[0].Name)
	assert.Equal(t, 2, clients[0].Purchases)
	assert.Equal(t, "1400", clients[0].Revenue.String())
	assert.Equal(t, "800", clients[1].Revenue.String())
}

func TestCriticalStockOrderedByDeficit(t *testing.T) {
	f := newReportFixture(t)

	critical := f.h.CriticalStock(context.Background(), 0)
	require.Len(t, critical, 2)
	assert.Equal(t, "Savon", critical[0].Name)
	assert.Equal(t, 8, critical[0].Deficit)
	assert.Equal(t, "Riz", critical[1].Name)
	assert.Equal(t, 1, critical[1].Deficit)

	assert.Len(t, f.h.CriticalStock(context.Background(), 1), 1)
}

func TestRevenueByCategory(t *testing.T) {
	f := newReportFixture(t)
	seedSales(t, f)

	byCat := f.h.RevenueByCategory(context.Background(), PeriodMonth)
	require.Len(t, byCat, 2)
	assert.Equal(t, uncategorized, byCat[0].Category)
	assert.Equal(t, "1300", byCat[0].Revenue.String())
	assert.Equal(t, "Boissons", byCat[1].Category)
	assert.Equal(t, "900", byCat[1].Revenue.String())
	assert.Equal(t, 3, byCat[1].Items)
}

func TestRevenueEvolution(t *testing.T) {
	f := newReportFixture(t)
	seedSales(t, f)

	evo := f.h.RevenueEvolution(context.Background(), 7)
	require.Len(t, evo, 2)
	assert.Equal(t, "2024-03-11", evo[0].Date)
	assert.Equal(t, 1, evo[0].Sales)
	assert.Equal(t, "2024-03-13", evo[1].Date)
	assert.Equal(t, 2, evo[1].Sales)
	assert.Equal(t, "1300", evo[1].Revenue.String())

	assert.Len(t, f.h.RevenueEvolution(context.Background(), 30), 4)
}

func TestPaymentStatusBreakdown(t *testing.T) {
	f := newReportFixture(t)
	seedSales(t, f)

	got := map[models.SaleStatus]int{}
	for _, b := range f.h.PaymentStatus(context.Background()) {
		got[b.Status] = b.Count
	}
	assert.Equal(t, map[models.SaleStatus]int{
		models.SaleStatusPaid:      2,
		models.SaleStatusPending:   1,
		models.SaleStatusPartial:   1,
		models.SaleStatusCancelled: 1,
	}, got)
}

func TestDashboardSummaryWithoutCache(t *testing.T) {
	f := newReportFixture(t)
	seedSales(t, f)
	ctx := context.Background()

	summary := f.h.DashboardSummary(ctx)
	assert.Equal(t, "1300", summary.RevenueToday.String())
	assert.Equal(t, 4, summary.SalesMonth)
	assert.Len(t, summary.CriticalStock, 2)
	assert.NotEmpty(t, summary.Evolution)

	f.h.InvalidateDashboard(ctx)
	assert.NoError(t, f.h.Publish(ctx, events.Event{Type: events.PaymentRecorded, SaleID: 1}))
}

func TestReportsDegradeOnStorageFailure(t *testing.T) {
	f := newReportFixture(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	ctx := context.Background()
	assert.True(t, f.h.RevenueByPeriod(ctx, PeriodMonth).IsZero())
	assert.Empty(t, f.h.TopProducts(ctx, 5))
	assert.Empty(t, f.h.CriticalStock(ctx, 5))
	assert.Empty(t, f.h.RevenueEvolution(ctx, 30))
}
