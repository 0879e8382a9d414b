package coupon

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/weddify/binks/internal/apperr"
	"github.com/weddify/binks/internal/infrastructure/store"
	"github.com/weddify/binks/internal/model"
)

var (
	ErrCouponNotFound = apperr.NotFound("coupon")
	ErrDuplicateCode  = apperr.Conflict("coupon code already exists")
)

// CreateInput describes a new coupon.
type CreateInput struct {
	Code         string           `json:"code"`
	Description  string           `json:"description"`
	Type         model.CouponType `json:"type"`
	Value        int64            `json:"value"`
	MaxDiscount  *int64           `json:"max_discount,omitempty"`
	MinPurchase  *int64           `json:"min_purchase,omitempty"`
	UsageLimit   *int             `json:"usage_limit,omitempty"`
	UsagePerUser *int             `json:"usage_per_user,omitempty"`
	StartsAt     *time.Time       `json:"starts_at,omitempty"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
}

// Service manages coupons and serves checkout previews.
type Service struct {
	store     store.Store
	evaluator *Evaluator
}

func NewService(st store.Store, evaluator *Evaluator) *Service {
	return &Service{store: st, evaluator: evaluator}
}

// Validate previews the discount a code would give on orderTotal.
func (s *Service) Validate(ctx context.Context, code string, orderTotal int64, userID string) (*Result, error) {
	var res *Result
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		res, err = s.evaluator.Validate(ctx, tx, code, orderTotal, userID)
		return err
	})
	return res, err
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Coupon, error) {
	code := NormalizeCode(in.Code)
	switch {
	case code == "":
		return nil, apperr.BadRequest("code is required")
	case in.Type != model.CouponPercentage && in.Type != model.CouponFixed:
		return nil, apperr.BadRequest("type must be PERCENTAGE or FIXED")
	case in.Value <= 0:
		return nil, apperr.BadRequest("value must be positive")
	case in.Type == model.CouponPercentage && in.Value > 100:
		return nil, apperr.BadRequest("percentage cannot exceed 100")
	case in.StartsAt != nil && in.ExpiresAt != nil && in.ExpiresAt.Before(*in.StartsAt):
		return nil, apperr.BadRequest("expires_at must be after starts_at")
	}

	now := s.evaluator.now()
	c := &model.Coupon{
		ID:           uuid.New().String(),
		Code:         code,
		Description:  in.Description,
		Type:         in.Type,
		Value:        in.Value,
		MaxDiscount:  in.MaxDiscount,
		MinPurchase:  in.MinPurchase,
		UsageLimit:   in.UsageLimit,
		UsagePerUser: in.UsagePerUser,
		StartsAt:     in.StartsAt,
		ExpiresAt:    in.ExpiresAt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertCoupon(ctx, c)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrDuplicateCode
		}
		return nil, err
	}

	log.Printf("[Coupon] Created %s (%s %d)", c.Code, c.Type, c.Value)
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]model.Coupon, error) {
	var coupons []model.Coupon
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		coupons, err = tx.ListCoupons(ctx)
		return err
	})
	return coupons, err
}

// SetActive enables or disables a coupon.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*model.Coupon, error) {
	var c *model.Coupon
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SetCouponActive(ctx, id, active, s.evaluator.now()); err != nil {
			return err
		}
		var err error
		c, err = tx.GetCoupon(ctx, id)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCouponNotFound
	}
	return c, err
}
