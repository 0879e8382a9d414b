package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/weddify/binks/internal/model"
)

const couponColumns = `id, code, description, type, value, max_discount, min_purchase, usage_limit,
	usage_count, usage_per_user, starts_at, expires_at, is_active, created_at, updated_at`

func scanCoupon(row rowScanner) (*model.Coupon, error) {
	var (
		c            model.Coupon
		maxDiscount  sql.NullInt64
		minPurchase  sql.NullInt64
		usageLimit   sql.NullInt32
		usagePerUser sql.NullInt32
		startsAt     sql.NullTime
		expiresAt    sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Code, &c.Description, &c.Type, &c.Value, &maxDiscount, &minPurchase,
		&usageLimit, &c.UsageCount, &usagePerUser, &startsAt, &expiresAt, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Int64
	}
	if minPurchase.Valid {
		c.MinPurchase = &minPurchase.Int64
	}
	if usageLimit.Valid {
		v := int(usageLimit.Int32)
		c.UsageLimit = &v
	}
	if usagePerUser.Valid {
		v := int(usagePerUser.Int32)
		c.UsagePerUser = &v
	}
	c.StartsAt = timePtr(startsAt)
	c.ExpiresAt = timePtr(expiresAt)
	return &c, nil
}

func (t *pgTx) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(t.q.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (t *pgTx) GetCoupon(ctx context.Context, id string) (*model.Coupon, error) {
	c, err := scanCoupon(t.q.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (t *pgTx) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coupons []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

func optionalInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func optionalInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (t *pgTx) InsertCoupon(ctx context.Context, c *model.Coupon) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO coupons (id, code, description, type, value, max_discount, min_purchase, usage_limit,
		                      usage_count, usage_per_user, starts_at, expires_at, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		c.ID, c.Code, c.Description, string(c.Type), c.Value, optionalInt64(c.MaxDiscount),
		optionalInt64(c.MinPurchase), optionalInt(c.UsageLimit), c.UsageCount, optionalInt(c.UsagePerUser),
		nullTime(c.StartsAt), nullTime(c.ExpiresAt), c.IsActive, c.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) SetCouponActive(ctx context.Context, id string, active bool, at time.Time) error {
	return t.execOne(ctx, `UPDATE coupons SET is_active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
}

func (t *pgTx) CountCouponUsage(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID).Scan(&n)
	return n, mapErr(err)
}

func (t *pgTx) ClaimCouponUse(ctx context.Context, couponID string, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE coupons SET usage_count = usage_count + 1, updated_at = $2
		  WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		couponID, at)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *pgTx) InsertCouponUsage(ctx context.Context, u *model.CouponUsage) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.CouponID, u.OrderID, nullString(u.UserID), u.DiscountAmount, u.CreatedAt)
	return mapErr(err)
}
