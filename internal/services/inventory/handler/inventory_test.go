package handler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/database/testdb"
	"caisse-system/internal/events"
	"caisse-system/internal/permissions"
)

var manager = permissions.Caller{UserID: 3, Username: "moussa", Role: permissions.RoleAdmin}

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newHandler(t *testing.T) (*InventoryHandler, *gorm.DB, *events.Recorder) {
	t.Helper()
	db := testdb.New(t)
	rec := &events.Recorder{}
	clock := &testClock{t: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)}
	return NewInventoryHandler(db, WithClock(clock.Now), WithPublisher(rec)), db, rec
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createProduct(t *testing.T, h *InventoryHandler, name string, stock, min int) *models.Product {
	t.Helper()
	p, err := h.CreateProduct(context.Background(), manager, ProductInput{
		Name:          name,
		PurchasePrice: dec("10"),
		SalePrice:     dec("15"),
		StockMin:      min,
		InitialStock:  stock,
	})
	require.NoError(t, err)
	return p
}

func movementSum(t *testing.T, db *gorm.DB, productID int64) int {
	t.Helper()
	var movements []models.StockMovement
	require.NoError(t, db.Where("product_id = ?", productID).Find(&movements).Error)
	sum := 0
	for _, m := range movements {
		sum += m.Quantity
	}
	return sum
}

func currentStock(t *testing.T, db *gorm.DB, productID int64) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.CurrentStock
}

func TestCreateProductRecordsInitialStock(t *testing.T) {
	h, db, _ := newHandler(t)

	p := createProduct(t, h, "Sucre 1kg", 12, 3)
	assert.Equal(t, 12, p.CurrentStock)

	movements, err := h.GetMovements(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementEntry, movements[0].Kind)
	assert.Equal(t, 12, movements[0].Quantity)
	require.NotNil(t, movements[0].UserID)
	assert.Equal(t, manager.UserID, *movements[0].UserID)

	empty := createProduct(t, h, "Lait 1L", 0, 3)
	movements, err = h.GetMovements(context.Background(), empty.ID)
	require.NoError(t, err)
	assert.Empty(t, movements)
	assert.Equal(t, 0, movementSum(t, db, empty.ID))
}

func TestCreateProductValidation(t *testing.T) {
	h, db, _ := newHandler(t)

	_, err := h.CreateProduct(context.Background(), manager, ProductInput{
		Name:          "X",
		PurchasePrice: dec("20"),
		SalePrice:     dec("15"),
		StockMin:      -1,
		InitialStock:  -4,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.Violations, 4)
	assert.Contains(t, ae.Violations, "sale_price")

	missing := int64(42)
	_, err = h.CreateProduct(context.Background(), manager, ProductInput{
		CategoryID:    &missing,
		Name:          "Savon",
		PurchasePrice: dec("1"),
		SalePrice:     dec("2"),
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Product{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	h, db, rec := newHandler(t)
	p := createProduct(t, h, "Farine 2kg", 5, 1)

	_, err := h.AdjustStock(context.Background(), manager, AdjustStockRequest{
		ProductID: p.ID,
		Delta:     -10,
		Kind:      models.MovementExit,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	assert.Equal(t, 5, currentStock(t, db, p.ID))
	assert.Equal(t, 5, movementSum(t, db, p.ID))
	assert.Empty(t, rec.Events())
}

func TestAdjustStockKeepsLedgerConsistent(t *testing.T) {
	h, db, rec := newHandler(t)
	p := createProduct(t, h, "Café 250g", 10, 4)

	steps := []AdjustStockRequest{
		{ProductID: p.ID, Delta: -3, Kind: models.MovementExit, Description: "Vente comptoir"},
		{ProductID: p.ID, Delta: 20, Kind: models.MovementEntry, Description: "Livraison"},
		{ProductID: p.ID, Delta: -2, Kind: models.MovementAdjustment, Description: "Casse"},
		{ProductID: p.ID, Delta: -25, Kind: models.MovementExit},
	}
	want := []int{7, 27, 25, 0}
	for i, step := range steps {
		got, err := h.AdjustStock(context.Background(), manager, step)
		require.NoError(t, err)
		assert.Equal(t, want[i], got)
		assert.Equal(t, currentStock(t, db, p.ID), movementSum(t, db, p.ID))
	}

	movements, err := h.GetMovements(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, movements, 5)
	assert.Equal(t, -25, movements[0].Quantity)
	assert.Equal(t, 10, movements[4].Quantity)
	assert.Equal(t, "Casse", *movements[1].Description)

	assert.Equal(t, []string{
		events.StockAdjusted,
		events.StockAdjusted,
		events.StockAdjusted,
		events.StockAdjusted, events.StockLow,
	}, rec.Types())
}

func TestAdjustStockValidation(t *testing.T) {
	h, db, rec := newHandler(t)
	p := createProduct(t, h, "Thé vert", 5, 1)

	cases := []struct {
		name string
		req  AdjustStockRequest
		kind error
	}{
		{"zero delta", AdjustStockRequest{ProductID: p.ID, Delta: 0, Kind: models.MovementAdjustment}, apperr.ErrValidation},
		{"entry removing stock", AdjustStockRequest{ProductID: p.ID, Delta: -1, Kind: models.MovementEntry}, apperr.ErrValidation},
		{"exit adding stock", AdjustStockRequest{ProductID: p.ID, Delta: 1, Kind: models.MovementExit}, apperr.ErrValidation},
		{"unknown kind", AdjustStockRequest{ProductID: p.ID, Delta: 1, Kind: "gift"}, apperr.ErrValidation},
		{"unknown product", AdjustStockRequest{ProductID: 999, Delta: 1, Kind: models.MovementEntry}, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.AdjustStock(context.Background(), manager, tc.req)
			assert.ErrorIs(t, err, tc.kind)
		})
	}

	assert.Equal(t, 5, currentStock(t, db, p.ID))
	assert.Equal(t, 5, movementSum(t, db, p.ID))
	assert.Empty(t, rec.Events())

	got, err := h.AdjustStock(context.Background(), manager, AdjustStockRequest{ProductID: p.ID, Delta: 2, Kind: models.MovementAdjustment})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestGetLowStockIsOrderedAndIdempotent(t *testing.T) {
	h, _, _ := newHandler(t)
	a := createProduct(t, h, "Piles AA", 4, 5)
	createProduct(t, h, "Allumettes", 50, 10)
	c := createProduct(t, h, "Bougies", 0, 2)
	d := createProduct(t, h, "Sel", 3, 3)

	first, err := h.GetLowStock(context.Background())
	require.NoError(t, err)
	second, err := h.GetLowStock(context.Background())
	require.NoError(t, err)

	ids := func(ps []models.Product) []int64 {
		out := make([]int64, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}
	assert.Equal(t, []int64{c.ID, d.ID, a.ID}, ids(first))
	assert.Equal(t, ids(first), ids(second))
}

func TestGetMovementsUnknownProduct(t *testing.T) {
	h, _, _ := newHandler(t)
	_, err := h.GetMovements(context.Background(), 77)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPublishLowStockAlerts(t *testing.T) {
	h, _, rec := newHandler(t)
	createProduct(t, h, "Piles AA", 1, 5)
	createProduct(t, h, "Allumettes", 50, 10)

	n, err := h.PublishLowStockAlerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{events.StockLow}, rec.Types())
}

func TestUpdateProductKeepsStock(t *testing.T) {
	h, db, _ := newHandler(t)
	p := createProduct(t, h, "Pain de mie", 8, 2)

	updated, err := h.UpdateProduct(context.Background(), p.ID, ProductInput{
		Name:          "Pain de mie complet",
		PurchasePrice: dec("12"),
		SalePrice:     dec("18.5"),
		StockMin:      4,
		InitialStock:  100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pain de mie complet", updated.Name)
	assert.Equal(t, 8, currentStock(t, db, p.ID))

	_, err = h.UpdateProduct(context.Background(), 999, ProductInput{Name: "Rien", PurchasePrice: dec("1"), SalePrice: dec("2")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteProduct(t *testing.T) {
	h, db, _ := newHandler(t)
	unused := createProduct(t, h, "Éponge", 0, 1)
	stocked := createProduct(t, h, "Serpillière", 5, 1)
	sold := createProduct(t, h, "Balai", 0, 1)

	client := models.Client{LastName: "Fall", FirstName: "Ibrahima"}
	require.NoError(t, db.Create(&client).Error)
	sale := models.Sale{InvoiceNumber: "2024/03/000001", ClientID: client.ID, Status: models.SaleStatusPending, DiscountKind: models.DiscountAmount}
	require.NoError(t, db.Create(&sale).Error)
	require.NoError(t, db.Create(&models.SaleLineItem{SaleID: sale.ID, ProductID: sold.ID, Quantity: 1, UnitPrice: dec("15"), LineTotal: dec("15")}).Error)

	err := h.DeleteProduct(context.Background(), sold.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, err, apperr.ErrInUse)

	// drained stock still leaves history behind
	_, err = h.AdjustStock(context.Background(), manager, AdjustStockRequest{ProductID: stocked.ID, Delta: -5, Kind: models.MovementExit})
	require.NoError(t, err)
	err = h.DeleteProduct(context.Background(), stocked.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, err, apperr.ErrInUse)
	assert.Equal(t, 0, movementSum(t, db, stocked.ID))
	var history int64
	require.NoError(t, db.Model(&models.StockMovement{}).Where("product_id = ?", stocked.ID).Count(&history).Error)
	assert.EqualValues(t, 2, history)

	require.NoError(t, h.DeleteProduct(context.Background(), unused.ID))
	_, err = h.GetProduct(context.Background(), unused.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCategoriesAndSearch(t *testing.T) {
	h, _, _ := newHandler(t)

	drinks, err := h.CreateCategory(context.Background(), "Boissons", "Eaux et jus")
	require.NoError(t, err)
	_, err = h.CreateCategory(context.Background(), "Boissons", "")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = h.CreateCategory(context.Background(), "B", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.CreateProduct(context.Background(), manager, ProductInput{
		CategoryID:    &drinks.ID,
		Name:          "Jus de bissap",
		Description:   "Bouteille 50cl",
		PurchasePrice: dec("300"),
		SalePrice:     dec("500"),
	})
	require.NoError(t, err)
	createProduct(t, h, "Savon de Marseille", 3, 1)

	assert.Len(t, h.ListCategories(context.Background()), 1)
	assert.Len(t, h.ListProductsByCategory(context.Background(), drinks.ID), 1)
	assert.Len(t, h.ListProducts(context.Background()), 2)

	found := h.SearchProducts(context.Background(), "BISSAP")
	require.Len(t, found, 1)
	require.NotNil(t, found[0].Category)
	assert.Equal(t, "Boissons", found[0].Category.Name)
	assert.Len(t, h.SearchProducts(context.Background(), "50cl"), 1)
	assert.Empty(t, h.SearchProducts(context.Background(), "riz"))
}

func TestMargin(t *testing.T) {
	assert.Equal(t, "50.00", Margin(dec("10"), dec("15")).StringFixed(2))
	assert.Equal(t, "33.33", Margin(dec("300"), dec("400")).StringFixed(2))
	assert.True(t, Margin(decimal.Zero, dec("5")).IsZero())
}
