package handler

import (
	"context"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
)

type CompanyInfo struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Website  string `json:"website"`
	LogoPath string `json:"logo_path"`
}

type GeneralSettings struct {
	Currency          string          `json:"currency"`
	DefaultTaxPercent decimal.Decimal `json:"default_tax_percent"`
	InvoicePrefix     string          `json:"invoice_prefix"`
	DateFormat        string          `json:"date_format"`
	Timezone          string          `json:"timezone"`
}

func DefaultGeneralSettings() GeneralSettings {
	return GeneralSettings{
		Currency:          "XOF",
		DefaultTaxPercent: decimal.NewFromInt(20),
		InvoicePrefix:     "FAC",
		DateFormat:        "DD/MM/YYYY",
		Timezone:          "Europe/Paris",
	}
}

// Storage keys stay private to this package.
const (
	keyCompanyName    = "company_name"
	keyCompanyAddress = "company_address"
	keyCompanyPhone   = "company_phone"
	keyCompanyEmail   = "company_email"
	keyCompanyWebsite = "company_website"
	keyCompanyLogo    = "company_logo"

	keyCurrency      = "currency"
	keyTaxDefault    = "tva_default"
	keyInvoicePrefix = "invoice_prefix"
	keyDateFormat    = "date_format"
	keyTimezone      = "timezone"
)

var descriptions = map[string]string{
	keyCompanyName:    "Nom de l'entreprise",
	keyCompanyAddress: "Adresse",
	keyCompanyPhone:   "Téléphone",
	keyCompanyEmail:   "Email",
	keyCompanyWebsite: "Site web",
	keyCompanyLogo:    "Chemin du logo",
	keyCurrency:       "Devise",
	keyTaxDefault:     "TVA par défaut (%)",
	keyInvoicePrefix:  "Préfixe des factures",
	keyDateFormat:     "Format de date",
	keyTimezone:       "Fuseau horaire",
}

type SettingsHandler struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewSettingsHandler(db *gorm.DB, log *zap.Logger) *SettingsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsHandler{db: db, log: log, now: time.Now}
}

func (h *SettingsHandler) load(ctx context.Context, keys ...string) (map[string]string, error) {
	var rows []models.Setting
	if err := h.db.WithContext(ctx).Where("setting_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, apperr.Storage(err, "load settings")
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return values, nil
}

func (h *SettingsHandler) save(ctx context.Context, values map[string]string) error {
	now := h.now().UTC()
	rows := make([]models.Setting, 0, len(values))
	for k, v := range values {
		row := models.Setting{Key: k, Value: v, UpdatedAt: now}
		if d, ok := descriptions[k]; ok {
			row.Description = &d
		}
		rows = append(rows, row)
	}

	err := h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return apperr.Storage(err, "save settings")
	}
	return nil
}

func (h *SettingsHandler) GetCompanyInfo(ctx context.Context) (CompanyInfo, error) {
	v, err := h.load(ctx, keyCompanyName, keyCompanyAddress, keyCompanyPhone, keyCompanyEmail, keyCompanyWebsite, keyCompanyLogo)
	if err != nil {
		return CompanyInfo{}, err
	}
	return CompanyInfo{
		Name:     v[keyCompanyName],
		Address:  v[keyCompanyAddress],
		Phone:    v[keyCompanyPhone],
		Email:    v[keyCompanyEmail],
		Website:  v[keyCompanyWebsite],
		LogoPath: v[keyCompanyLogo],
	}, nil
}

// UpdateCompanyInfo stores every field. An empty logo path keeps the current logo.
func (h *SettingsHandler) UpdateCompanyInfo(ctx context.Context, info CompanyInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return apperr.Fields(map[string]string{"name": "is required"})
	}
	values := map[string]string{
		keyCompanyName:    strings.TrimSpace(info.Name),
		keyCompanyAddress: strings.TrimSpace(info.Address),
		keyCompanyPhone:   strings.TrimSpace(info.Phone),
		keyCompanyEmail:   strings.TrimSpace(info.Email),
		keyCompanyWebsite: strings.TrimSpace(info.Website),
	}
	if logo := strings.TrimSpace(info.LogoPath); logo != "" {
		values[keyCompanyLogo] = logo
	}
	return h.save(ctx, values)
}

// GetGeneralSettings fills missing or unreadable keys with defaults.
func (h *SettingsHandler) GetGeneralSettings(ctx context.Context) (GeneralSettings, error) {
	v, err := h.load(ctx, keyCurrency, keyTaxDefault, keyInvoicePrefix, keyDateFormat, keyTimezone)
	if err != nil {
		return DefaultGeneralSettings(), err
	}

	s := DefaultGeneralSettings()
	if c, ok := v[keyCurrency]; ok && c != "" {
		s.Currency = c
	}
	if raw, ok := v[keyTaxDefault]; ok {
		if tax, err := decimal.NewFromString(raw); err == nil {
			s.DefaultTaxPercent = tax
		} else {
			h.log.Warn("ignoring malformed default tax", zap.String("value", raw))
		}
	}
	if p, ok := v[keyInvoicePrefix]; ok && p != "" {
		s.InvoicePrefix = p
	}
	if f, ok := v[keyDateFormat]; ok && f != "" {
		s.DateFormat = f
	}
	if tz, ok := v[keyTimezone]; ok && tz != "" {
		s.Timezone = tz
	}
	return s, nil
}

func (h *SettingsHandler) UpdateGeneralSettings(ctx context.Context, s GeneralSettings) error {
	v := map[string]string{}
	if s.DefaultTaxPercent.IsNegative() || s.DefaultTaxPercent.GreaterThan(decimal.NewFromInt(100)) {
		v["default_tax_percent"] = "must be between 0 and 100"
	}
	if strings.TrimSpace(s.Currency) == "" {
		v["currency"] = "is required"
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil || s.Timezone == "" {
		v["timezone"] = "unknown timezone"
	}
	if len(v) > 0 {
		return apperr.Fields(v)
	}

	return h.save(ctx, map[string]string{
		keyCurrency:      strings.TrimSpace(s.Currency),
		keyTaxDefault:    s.DefaultTaxPercent.String(),
		keyInvoicePrefix: strings.TrimSpace(s.InvoicePrefix),
		keyDateFormat:    strings.TrimSpace(s.DateFormat),
		keyTimezone:      s.Timezone,
	})
}

// DefaultTaxPercent reads the configured rate, falling back to the built-in
// default when the store is unavailable.
func (h *SettingsHandler) DefaultTaxPercent(ctx context.Context) decimal.Decimal {
	s, err := h.GetGeneralSettings(ctx)
	if err != nil {
		h.log.Warn("using default tax rate", zap.Error(err))
	}
	return s.DefaultTaxPercent
}
