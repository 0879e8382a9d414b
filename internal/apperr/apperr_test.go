package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NotFound("order")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "order not found", err.Error())
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("checkout: %w", InsufficientStock("p1"))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, KindInsufficientStock, KindOf(err))
}

func TestError_SentinelIdentity(t *testing.T) {
	sentinel := New(KindBadRequest, "order cannot be cancelled")
	other := New(KindBadRequest, "order cannot be cancelled")

	assert.ErrorIs(t, sentinel, sentinel)
	assert.NotErrorIs(t, other, sentinel)
	assert.ErrorIs(t, other, ErrBadRequest)
}

func TestKindOf_Untagged(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindBadRequest, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindInsufficientStock, http.StatusBadRequest},
		{KindInvalidCoupon, http.StatusBadRequest},
		{KindOrderExpired, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "invalid coupon: Code not found", Message(InvalidCoupon("Code not found")))
	assert.Equal(t, "payment gateway error", Message(Internal("payment gateway error", errors.New("dial tcp"))))
	assert.Equal(t, "internal server error", Message(errors.New("pq: connection refused")))
}
