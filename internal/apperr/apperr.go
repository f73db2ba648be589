package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Error kinds. Every error returned by the ledger services matches exactly one
// of these with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")
)

// Reasons refine a kind.
var (
	ErrEmptySale              = errors.New("sale has no line items")
	ErrInvalidDiscount        = errors.New("discount exceeds subtotal")
	ErrOverpayment            = errors.New("payment exceeds remaining balance")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrDuplicateInvoiceNumber = errors.New("duplicate invoice number")
	ErrSaleCancelled          = errors.New("sale is cancelled")
	ErrSaleSettled            = errors.New("sale is fully paid")
	ErrInUse                  = errors.New("record is referenced")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrConcurrentUpdate       = errors.New("record changed concurrently")
)

type Error struct {
	Kind       error
	Reason     error
	Message    string
	Violations map[string]string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Reason != nil {
		b.WriteString(": ")
		b.WriteString(e.Reason.Error())
	}
	if len(e.Violations) > 0 {
		fields := make([]string, 0, len(e.Violations))
		for f := range e.Violations {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(&b, "; %s: %s", f, e.Violations[f])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// GRPCStatus lets status.FromError and status.Code understand ledger errors.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(Code(e), e.Error())
}

func Validation(reason error, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Fields reports per-field violations, collected before anything is written.
func Fields(violations map[string]string) *Error {
	return &Error{Kind: ErrValidation, Violations: violations}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(reason error, format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Storage(err error, format string, args ...any) *Error {
	return &Error{Kind: ErrStorage, Message: fmt.Sprintf(format, args...), Err: err}
}

// FromDB classifies a gorm error. Record-not-found and unique violations keep
// their meaning; anything else is a storage failure.
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("%s not found", what)
	case IsUniqueViolation(err):
		return &Error{Kind: ErrConflict, Message: what + " already exists", Err: err}
	default:
		return Storage(err, "%s", what)
	}
}

func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// sqlite without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrConflict):
		return codes.Aborted
	case errors.Is(err, ErrStorage):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) && len(ae.Violations) > 0 {
		return http.StatusUnprocessableEntity
	}
	switch Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Aborted:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
