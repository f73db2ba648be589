package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caisse-system/internal/events"
)

var DefaultTaxPercent = decimal.NewFromInt(20)

// Numberer hands out the next invoice number inside the sale transaction.
type Numberer interface {
	Next(tx *gorm.DB, now time.Time) (string, error)
}

type TaxSource func(ctx context.Context) decimal.Decimal

type POSHandler struct {
	db         *gorm.DB
	log        *zap.Logger
	now        func() time.Time
	publisher  events.Publisher
	numberer   Numberer
	defaultTax TaxSource
}

type Option func(*POSHandler)

func WithClock(now func() time.Time) Option {
	return func(h *POSHandler) { h.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(h *POSHandler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(h *POSHandler) {
		if p != nil {
			h.publisher = p
		}
	}
}

func WithNumberer(n Numberer) Option {
	return func(h *POSHandler) { h.numberer = n }
}

// WithDefaultTax sets where the tax rate comes from when a sale omits one.
func WithDefaultTax(src TaxSource) Option {
	return func(h *POSHandler) { h.defaultTax = src }
}

func NewPOSHandler(db *gorm.DB, opts ...Option) *POSHandler {
	h := &POSHandler{
		db:         db,
		log:        zap.NewNop(),
		now:        time.Now,
		publisher:  events.Nop{},
		numberer:   InvoiceNumberGenerator{},
		defaultTax: func(context.Context) decimal.Decimal { return DefaultTaxPercent },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// publish runs after commit; a lost event never fails the operation.
func (h *POSHandler) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now()
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.log.Warn("failed to publish event",
			zap.String("event_type", event.Type),
			zap.Int64("sale_id", event.SaleID),
			zap.Error(err),
		)
	}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func saleRef(id int64) string {
	return fmt.Sprintf("sale %d", id)
}
