package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/carts"
	"storefront/internal/infra/dbx"
	"storefront/internal/pricing"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

const couponColumns = `code, discount_type, discount_value, minimum_amount_cents,
       COALESCE(description, ''), expires_at, is_active, usage_limit, used_count`

type couponRow struct {
	coupon     pricing.Coupon
	active     bool
	usageLimit *int
	usedCount  int
}

func scanCoupon(row pgx.Row) (couponRow, error) {
	var (
		c     couponRow
		dtype string
	)
	err := row.Scan(&c.coupon.Code, &dtype, &c.coupon.Value, &c.coupon.MinimumCents,
		&c.coupon.Description, &c.coupon.ExpiresAt, &c.active, &c.usageLimit, &c.usedCount)
	c.coupon.Type = pricing.DiscountType(dtype)
	return c, err
}

func (r *Repository) Validate(ctx context.Context, code string, cart carts.Snapshot) (pricing.Coupon, error) {
	c, err := scanCoupon(r.q.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE upper(code) = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.Coupon{}, &RejectionError{Reason: "coupon not found"}
	}
	if err != nil {
		return pricing.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}

	switch {
	case !c.active:
		return pricing.Coupon{}, &RejectionError{Reason: "coupon is not active"}
	case !c.coupon.Type.Valid():
		return pricing.Coupon{}, &RejectionError{Reason: "coupon is misconfigured"}
	case c.coupon.ExpiresAt != nil && !c.coupon.ExpiresAt.After(time.Now()):
		return pricing.Coupon{}, &RejectionError{Reason: "coupon has expired"}
	case c.usageLimit != nil && c.usedCount >= *c.usageLimit:
		return pricing.Coupon{}, &RejectionError{Reason: "coupon usage limit reached"}
	case !c.coupon.Eligible(cart.SubtotalCents):
		return pricing.Coupon{}, &RejectionError{
			Reason: fmt.Sprintf("minimum order amount of $%s not met", pricing.Format(c.coupon.MinimumCents)),
		}
	}
	return c.coupon, nil
}

func (r *Repository) ListAvailable(ctx context.Context, cart carts.Snapshot) ([]pricing.Coupon, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+couponColumns+`
FROM coupons
WHERE is_active = true
  AND (expires_at IS NULL OR expires_at > now())
  AND (usage_limit IS NULL OR used_count < usage_limit)
  AND minimum_amount_cents <= $1
ORDER BY minimum_amount_cents DESC, code ASC
`, cart.SubtotalCents)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var out []pricing.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		if c.coupon.Type.Valid() {
			out = append(out, c.coupon)
		}
	}
	return out, rows.Err()
}

// Redeem counts one use of code. It runs inside the order transaction.
func (r *Repository) Redeem(ctx context.Context, code string) error {
	tag, err := r.q.Exec(ctx, `
UPDATE coupons
SET used_count = used_count + 1,
    updated_at = now()
WHERE upper(code) = $1
  AND (usage_limit IS NULL OR used_count < usage_limit)
`, pricing.NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &RejectionError{Reason: "coupon usage limit reached"}
	}
	return nil
}
