package coupons

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/domain/carts"
	"storefront/internal/pricing"

	"go.uber.org/zap"
)

// Resolver keeps at most one coupon on a cart. Apply and remove are
// serialized, so the later call always decides the final coupon.
type Resolver struct {
	mu      sync.Mutex
	cart    *carts.Store
	backend Backend
	logger  *zap.SugaredLogger
}

func NewResolver(cart *carts.Store, backend Backend, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{cart: cart, backend: backend, logger: logger}
}

func (r *Resolver) ApplyCoupon(ctx context.Context, code string) (pricing.Coupon, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return pricing.Coupon{}, ErrEmptyCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.backend.Validate(ctx, code, r.cart.Snapshot())
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			return pricing.Coupon{}, fmt.Errorf("%w: %s", ErrInvalidCoupon, rej.Reason)
		}
		r.logger.Warnw("coupon validation failed", "code", code, "error", err)
		return pricing.Coupon{}, fmt.Errorf("validate coupon %s: %w", code, err)
	}
	c.Code = code

	if err := r.cart.ApplyCoupon(c); err != nil {
		if errors.Is(err, carts.ErrCouponBelowMinimum) {
			return pricing.Coupon{}, fmt.Errorf("%w: %s", ErrInvalidCoupon, err)
		}
		return pricing.Coupon{}, err
	}

	r.logger.Infow("coupon applied", "owner", r.cart.Owner(), "code", code)
	return c, nil
}

func (r *Resolver) RemoveCoupon(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart.RemoveCoupon()
}

// ListAvailableCoupons returns the coupons the current subtotal qualifies for.
func (r *Resolver) ListAvailableCoupons(ctx context.Context) ([]pricing.Coupon, error) {
	snap := r.cart.Snapshot()
	list, err := r.backend.ListAvailable(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}

	out := make([]pricing.Coupon, 0, len(list))
	for _, c := range list {
		if c.Eligible(snap.SubtotalCents) {
			out = append(out, c)
		}
	}
	return out, nil
}
