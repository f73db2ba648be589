package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

func TestKindAndReasonMatch(t *testing.T) {
	err := Validation(ErrOverpayment, "amount 350 exceeds remaining 300")
	wrapped := fmt.Errorf("record payment: %w", err)

	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.ErrorIs(t, wrapped, ErrOverpayment)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Contains(t, err.Error(), "amount 350 exceeds remaining 300")
}

func TestFromDB(t *testing.T) {
	assert.Nil(t, FromDB(nil, "sale"))
	assert.ErrorIs(t, FromDB(gorm.ErrRecordNotFound, "sale"), ErrNotFound)
	assert.ErrorIs(t, FromDB(gorm.ErrDuplicatedKey, "sale"), ErrConflict)
	assert.ErrorIs(t, FromDB(&pgconn.PgError{Code: "23505"}, "sale"), ErrConflict)

	boom := errors.New("connection reset")
	err := FromDB(boom, "sale")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)

	already := NotFound("client 4 not found")
	assert.Same(t, already, FromDB(already, "client"))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		http int
	}{
		{Validation(ErrEmptySale, "no items"), codes.InvalidArgument, http.StatusBadRequest},
		{Fields(map[string]string{"email": "invalid"}), codes.InvalidArgument, http.StatusUnprocessableEntity},
		{NotFound("sale 1 not found"), codes.NotFound, http.StatusNotFound},
		{Conflict(ErrDuplicateInvoiceNumber, "2024/03/000001"), codes.Aborted, http.StatusConflict},
		{Storage(errors.New("down"), "insert sale"), codes.Unavailable, http.StatusServiceUnavailable},
		{errors.New("other"), codes.Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, Code(tc.err), tc.err.Error())
		assert.Equal(t, tc.http, HTTPStatus(tc.err), tc.err.Error())
	}

	st, ok := status.FromError(NotFound("product 9 not found"))
	assert.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
}

func TestViolationsAreListedInOrder(t *testing.T) {
	err := Fields(map[string]string{"phone": "too short", "email": "invalid format"})
	assert.Equal(t, "validation failed; email: invalid format; phone: too short", err.Error())
}
