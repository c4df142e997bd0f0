package coupons

import (
	"context"
	"errors"

	"storefront/internal/domain/carts"
	"storefront/internal/pricing"
)

var (
	ErrEmptyCode     = errors.New("coupon code is required")
	ErrInvalidCoupon = errors.New("invalid coupon")
)

// RejectionError is returned by a Backend when a code exists in the request
// but cannot be applied to the cart.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

type Backend interface {
	Validate(ctx context.Context, code string, cart carts.Snapshot) (pricing.Coupon, error)
	ListAvailable(ctx context.Context, cart carts.Snapshot) ([]pricing.Coupon, error)
}
