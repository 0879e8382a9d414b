package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

var (
	ErrCodeNotFound      = apperr.InvalidCoupon("Code not found")
	ErrNotStarted        = apperr.InvalidCoupon("Coupon is not active yet")
	ErrExpired           = apperr.InvalidCoupon("Coupon has expired")
	ErrUsageLimitReached = apperr.InvalidCoupon("Usage limit reached")
	ErrPerUserLimit      = apperr.InvalidCoupon("You have already used this coupon")
)

// Result is a successful validation.
type Result struct {
	Coupon   model.Coupon
	Discount int64
}

// Evaluator validates coupon codes against an order total.
type Evaluator struct {
	now func() time.Time
}

func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// WithClock overrides the evaluator clock.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// NormalizeCode makes codes case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks code against orderTotal. userID may be empty for guests,
// in which case the per-user cap is not checked.
func (e *Evaluator) Validate(ctx context.Context, tx store.CouponRepository, code string, orderTotal int64, userID string) (*Result, error) {
	c, err := tx.GetCouponByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrCodeNotFound
	}

	now := e.now()
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return nil, ErrNotStarted
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return nil, ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return nil, ErrUsageLimitReached
	}
	if c.MinPurchase != nil && orderTotal < *c.MinPurchase {
		return nil, apperr.InvalidCoupon(fmt.Sprintf("Minimum purchase is %d", *c.MinPurchase))
	}
	if userID != "" && c.UsagePerUser != nil {
		used, err := tx.CountCouponUsage(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= *c.UsagePerUser {
			return nil, ErrPerUserLimit
		}
	}

	return &Result{Coupon: *c, Discount: CalculateDiscount(*c, orderTotal)}, nil
}

// CalculateDiscount applies the coupon rule to orderTotal. The result never
// exceeds orderTotal.
func CalculateDiscount(c model.Coupon, orderTotal int64) int64 {
	var discount int64
	switch c.Type {
	case model.CouponPercentage:
		discount = orderTotal * c.Value / 100
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
	case model.CouponFixed:
		discount = c.Value
	}

	if discount > orderTotal {
		discount = orderTotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// RecordUsage counts a redemption against the coupon. It must run in the
// same unit of work that persisted the order; zero discounts are not recorded.
func (e *Evaluator) RecordUsage(ctx context.Context, tx store.CouponRepository, c model.Coupon, orderID, userID string, discount int64) error {
	if discount <= 0 {
		return nil
	}

	now := e.now()
	claimed, err := tx.ClaimCouponUse(ctx, c.ID, now)
	if err != nil {
		return fmt.Errorf("claim coupon use: %w", err)
	}
	if !claimed {
		return ErrUsageLimitReached
	}

	return tx.InsertCouponUsage(ctx, &model.CouponUsage{
		ID:             uuid.New().String(),
		CouponID:       c.ID,
		OrderID:        orderID,
		UserID:         userID,
		DiscountAmount: discount,
		CreatedAt:      now,
	})
}
