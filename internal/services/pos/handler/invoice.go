package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
)

const (
	invoiceDigits    = 6
	maxInvoiceNumber = 999999
)

// InvoiceNumberGenerator derives YYYY/MM/NNNNNN numbers from the highest
// number already stored for the month. The read is not serialised against
// other writers; the unique index on sales.invoice_number rejects a
// collision and CreateSale retries once with a fresh number.
type InvoiceNumberGenerator struct{}

func (InvoiceNumberGenerator) Next(tx *gorm.DB, now time.Time) (string, error) {
	prefix := now.Format("2006/01/")

	var last []string
	err := tx.Model(&models.Sale{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &last).Error
	if err != nil {
		return "", apperr.Storage(err, "read last invoice number")
	}

	next := 1
	if len(last) > 0 {
		seq, err := parseSequence(last[0], prefix)
		if err != nil {
			return "", err
		}
		next = seq + 1
	}
	if next > maxInvoiceNumber {
		return "", apperr.Conflict(nil, "invoice sequence exhausted for %s", strings.TrimSuffix(prefix, "/"))
	}

	return FormatInvoiceNumber(now, next), nil
}

func FormatInvoiceNumber(now time.Time, seq int) string {
	return fmt.Sprintf("%s%0*d", now.Format("2006/01/"), invoiceDigits, seq)
}

func parseSequence(number, prefix string) (int, error) {
	suffix := strings.TrimPrefix(number, prefix)
	seq, err := strconv.Atoi(suffix)
	if err != nil || len(suffix) != invoiceDigits || seq < 0 {
		return 0, apperr.Storage(err, "malformed invoice number %q", number)
	}
	return seq, nil
}

// GenerateInvoiceNumber previews the number the next sale of the current month
// would receive.
func (h *POSHandler) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	return h.numberer.Next(h.db.WithContext(ctx), h.now())
}
