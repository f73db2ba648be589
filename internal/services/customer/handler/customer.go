package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
)

var (
	validate      = validator.New()
	phoneStripper = strings.NewReplacer(" ", "", "-", "", "+", "", "(", "", ")", "")
	postalPattern = regexp.MustCompile(`^\d{5}$`)
	digitsPattern = regexp.MustCompile(`^\d+$`)
)

type CustomerHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCustomerHandler(db *gorm.DB, log *zap.Logger) *CustomerHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CustomerHandler{db: db, log: log}
}

type ClientInput struct {
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func (in ClientInput) normalize() ClientInput {
	return ClientInput{
		LastName:   strings.TrimSpace(in.LastName),
		FirstName:  strings.TrimSpace(in.FirstName),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.TrimSpace(in.Email),
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		PostalCode: strings.TrimSpace(in.PostalCode),
	}
}

// Validate reports every field problem at once. Contact fields are optional
// but must be well formed when present.
func (in ClientInput) Validate() error {
	v := map[string]string{}
	checkName := func(field, value string) {
		if n := utf8.RuneCountInString(value); n < 2 || n > 100 {
			v[field] = "must be between 2 and 100 characters"
		}
	}
	checkName("last_name", in.LastName)
	checkName("first_name", in.FirstName)

	if in.Email != "" && validate.Var(in.Email, "email") != nil {
		v["email"] = "invalid email address"
	}
	if in.Phone != "" {
		digits := phoneStripper.Replace(in.Phone)
		if !digitsPattern.MatchString(digits) || len(digits) < 10 {
			v["phone"] = "must contain at least 10 digits"
		}
	}
	if in.PostalCode != "" && !postalPattern.MatchString(in.PostalCode) {
		v["postal_code"] = "must be exactly 5 digits"
	}

	if len(v) > 0 {
		return apperr.Fields(v)
	}
	return nil
}

func (in ClientInput) apply(c *models.Client) {
	c.LastName = in.LastName
	c.FirstName = in.FirstName
	c.Phone = in.Phone
	c.Email = in.Email
	c.Address = in.Address
	c.City = in.City
	c.PostalCode = in.PostalCode
}

func (h *CustomerHandler) CreateClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var client models.Client
	in.apply(&client)
	if err := h.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, apperr.FromDB(err, "client")
	}
	h.log.Info("client created", zap.Int64("client_id", client.ID))
	return &client, nil
}

func (h *CustomerHandler) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var client models.Client
	if err := h.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("client %d", id))
	}
	return &client, nil
}

func (h *CustomerHandler) UpdateClient(ctx context.Context, id int64, in ClientInput) (*models.Client, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	client, err := h.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(client)
	if err := h.db.WithContext(ctx).Save(client).Error; err != nil {
		return nil, apperr.FromDB(err, "client")
	}
	return client, nil
}

// DeleteClient refuses to remove a client that has sales.
func (h *CustomerHandler) DeleteClient(ctx context.Context, id int64) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, id).Error; err != nil {
			return apperr.FromDB(err, fmt.Sprintf("client %d", id))
		}

		var sales int64
		if err := tx.Model(&models.Sale{}).Where("client_id = ?", id).Count(&sales).Error; err != nil {
			return apperr.Storage(err, "check client sales")
		}
		if sales > 0 {
			return apperr.Conflict(apperr.ErrInUse, "%s has %d sales", client.FullName(), sales)
		}

		if err := tx.Delete(&client).Error; err != nil {
			return apperr.Storage(err, "delete client")
		}
		return nil
	})
}

func (h *CustomerHandler) ListClients(ctx context.Context) []models.Client {
	var clients []models.Client
	if err := h.db.WithContext(ctx).Order("last_name ASC, first_name ASC").Find(&clients).Error; err != nil {
		h.log.Warn("list clients failed", zap.Error(err))
		return []models.Client{}
	}
	return clients
}

func (h *CustomerHandler) SearchClients(ctx context.Context, term string) []models.Client {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"

	var clients []models.Client
	err := h.db.WithContext(ctx).
		Where("LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?",
			pattern, pattern, pattern, pattern).
		Order("last_name ASC, first_name ASC").
		Find(&clients).Error
	if err != nil {
		h.log.Warn("search clients failed", zap.String("term", term), zap.Error(err))
		return []models.Client{}
	}
	return clients
}

// PurchaseHistory lists a client's sales, most recent first.
func (h *CustomerHandler) PurchaseHistory(ctx context.Context, id int64) ([]models.Sale, error) {
	if _, err := h.GetClient(ctx, id); err != nil {
		return nil, err
	}

	var sales []models.Sale
	err := h.db.WithContext(ctx).
		Where("client_id = ?", id).
		Order("created_at DESC, id DESC").
		Find(&sales).Error
	if err != nil {
		return nil, apperr.Storage(err, "list client sales")
	}
	return sales, nil
}

type ClientStatistics struct {
	PurchaseCount int64           `json:"purchase_count"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	AverageBasket decimal.Decimal `json:"average_basket"`
	LastPurchase  *time.Time      `json:"last_purchase,omitempty"`
}

func (h *CustomerHandler) ClientStatistics(ctx context.Context, id int64) (ClientStatistics, error) {
	sales, err := h.PurchaseHistory(ctx, id)
	if err != nil {
		return ClientStatistics{}, err
	}

	stats := ClientStatistics{TotalSpent: decimal.Zero, AverageBasket: decimal.Zero}
	for i, s := range sales {
		if i == 0 {
			last := s.CreatedAt
			stats.LastPurchase = &last
		}
		stats.PurchaseCount++
		stats.TotalSpent = stats.TotalSpent.Add(s.TotalAmount)
	}
	if stats.PurchaseCount > 0 {
		stats.AverageBasket = stats.TotalSpent.Div(decimal.NewFromInt(stats.PurchaseCount)).Round(2)
	}
	return stats, nil
}
