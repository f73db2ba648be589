package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/database/testdb"
)

func validInput() ClientInput {
	return ClientInput{
		LastName:   "Ndiaye",
		FirstName:  "Fatou",
		Phone:      "+33 (6) 12-34-56-78",
		Email:      "fatou.ndiaye@example.com",
		City:       "Lyon",
		PostalCode: "69003",
	}
}

func TestClientInputValidate(t *testing.T) {
	assert.NoError(t, validInput().Validate())
	assert.NoError(t, ClientInput{LastName: "Ba", FirstName: "Oumar"}.Validate())
	assert.NoError(t, ClientInput{LastName: "Ba", FirstName: "Oumar", Email: "oumar.ba+caisse@mail.example.sn"}.Validate())

	cases := []struct {
		field string
		edit  func(*ClientInput)
	}{
		{"last_name", func(in *ClientInput) { in.LastName = "N" }},
		{"first_name", func(in *ClientInput) { in.FirstName = "" }},
		{"email", func(in *ClientInput) { in.Email = "fatou.example.com" }},
		{"email", func(in *ClientInput) { in.Email = "fatou ndiaye@example.com" }},
		{"phone", func(in *ClientInput) { in.Phone = "06 12 34" }},
		{"phone", func(in *ClientInput) { in.Phone = "06 12 34 56 7x" }},
		{"postal_code", func(in *ClientInput) { in.PostalCode = "6900" }},
	}
	for _, tc := range cases {
		in := validInput()
		tc.edit(&in)

		err := in.Validate()
		require.Error(t, err, tc.field)
		var ae *apperr.Error
		require.ErrorAs(t, err, &ae)
		assert.Contains(t, ae.Violations, tc.field)
		assert.Len(t, ae.Violations, 1)
	}
}

func TestClientLifecycle(t *testing.T) {
	db := testdb.New(t)
	h := NewCustomerHandler(db, zap.NewNop())
	ctx := context.Background()

	in := validInput()
	in.LastName = "  Ndiaye "
	client, err := h.CreateClient(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Ndiaye", client.LastName)

	other, err := h.CreateClient(ctx, ClientInput{LastName: "Sarr", FirstName: "Mamadou"})
	require.NoError(t, err)

	in.City = "Dakar"
	in.PostalCode = ""
	updated, err := h.UpdateClient(ctx, client.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Dakar", updated.City)

	_, err = h.UpdateClient(ctx, 999, in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	listed := h.ListClients(ctx)
	require.Len(t, listed, 2)
	assert.Equal(t, "Ndiaye", listed[0].LastName)

	assert.Len(t, h.SearchClients(ctx, "fatou"), 1)
	assert.Len(t, h.SearchClients(ctx, "12-34"), 1)
	assert.Empty(t, h.SearchClients(ctx, "diallo"))

	sale := models.Sale{
		InvoiceNumber: "2024/03/000001",
		ClientID:      client.ID,
		TotalAmount:   decimal.RequireFromString("300"),
		Status:        models.SaleStatusPending,
		DiscountKind:  models.DiscountAmount,
	}
	require.NoError(t, db.Create(&sale).Error)

	err = h.DeleteClient(ctx, client.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.ErrorIs(t, err, apperr.ErrInUse)

	require.NoError(t, h.DeleteClient(ctx, other.ID))
	_, err = h.GetClient(ctx, other.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClientStatistics(t *testing.T) {
	db := testdb.New(t)
	h := NewCustomerHandler(db, nil)
	ctx := context.Background()

	client, err := h.CreateClient(ctx, validInput())
	require.NoError(t, err)

	stats, err := h.ClientStatistics(ctx, client.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.PurchaseCount)
	assert.Nil(t, stats.LastPurchase)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, total := range []string{"100", "250.50"} {
		sale := models.Sale{
			InvoiceNumber: fmt.Sprintf("2024/03/%06d", i+1),
			ClientID:      client.ID,
			TotalAmount:   decimal.RequireFromString(total),
			Status:        models.SaleStatusPending,
			DiscountKind:  models.DiscountAmount,
			CreatedAt:     base.AddDate(0, 0, i),
		}
		require.NoError(t, db.Create(&sale).Error)
	}

	history, err := h.PurchaseHistory(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "250.50", history[0].TotalAmount.StringFixed(2))

	stats, err = h.ClientStatistics(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.PurchaseCount)
	assert.Equal(t, "350.50", stats.TotalSpent.StringFixed(2))
	assert.Equal(t, "175.25", stats.AverageBasket.StringFixed(2))
	require.NotNil(t, stats.LastPurchase)
	assert.True(t, stats.LastPurchase.Equal(base.AddDate(0, 0, 1)))

	_, err = h.ClientStatistics(ctx, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
