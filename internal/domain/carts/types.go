package carts

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/pricing"
)

var (
	ErrOutOfStock         = errors.New("out of stock")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrItemNotFound       = errors.New("cart item not found")
	ErrCartLocked         = errors.New("cart is locked while checkout is in progress")
	ErrCartSyncing        = errors.New("cart has unsaved changes")
	ErrCouponBelowMinimum = errors.New("cart subtotal is below the coupon minimum")
)

type Variant struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

func (v *Variant) empty() bool {
	return v == nil || (v.Size == "" && v.Color == "")
}

type CartItem struct {
	ItemID     string   `json:"item_id"`
	ProductID  string   `json:"product_id"`
	Name       string   `json:"name"`
	Image      string   `json:"image,omitempty"`
	Quantity   int      `json:"quantity"`
	PriceCents int64    `json:"price_cents"`
	Variant    *Variant `json:"variant,omitempty"`
	MaxStock   int      `json:"max_stock"`
}

func (i CartItem) LineTotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

// ItemID derives the line key for a product and variant, so adding the same
// combination twice lands on one line.
func ItemID(productID string, v *Variant) string {
	if v.empty() {
		return productID
	}
	return strings.Join([]string{productID, strings.ToLower(v.Size), strings.ToLower(v.Color)}, ":")
}

type MutationStatus string

const (
	MutationPending    MutationStatus = "pending"
	MutationCommitted  MutationStatus = "committed"
	MutationFailed     MutationStatus = "failed"
	MutationSuperseded MutationStatus = "superseded"
)

// Mutation is the outcome of one optimistic change to a cart line.
// Superseded means a later request for the same item owns the final value.
type Mutation struct {
	ItemID string         `json:"item_id"`
	Status MutationStatus `json:"status"`
	Error  string         `json:"error,omitempty"`
}

type Line struct {
	CartItem
	LineTotalCents int64  `json:"line_total_cents"`
	Pending        bool   `json:"pending"`
	Error          string `json:"error,omitempty"`
}

type Snapshot struct {
	Owner          string                 `json:"-"`
	Items          []Line                 `json:"items"`
	Coupon         *pricing.Coupon        `json:"coupon,omitempty"`
	CouponEligible bool                   `json:"coupon_eligible"`
	ShippingMethod pricing.ShippingMethod `json:"shipping_method"`
	pricing.Breakdown
	ItemCount int    `json:"item_count"`
	Locked    bool   `json:"locked"`
	Version   uint64 `json:"version"`
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Syncing reports whether any line still waits for the backend.
func (s Snapshot) Syncing() bool {
	for _, l := range s.Items {
		if l.Pending {
			return true
		}
	}
	return false
}

// AppliedCoupon returns the coupon only while it counts toward pricing.
func (s Snapshot) AppliedCoupon() *pricing.Coupon {
	if s.Coupon != nil && s.CouponEligible {
		return s.Coupon
	}
	return nil
}

// Backend persists cart lines for one owner. Upsert writes an absolute
// quantity, so replaying the latest request is always safe.
type Backend interface {
	Load(ctx context.Context, owner string) ([]CartItem, error)
	Upsert(ctx context.Context, owner string, item CartItem) (CartItem, error)
	Remove(ctx context.Context, owner, itemID string) error
	Clear(ctx context.Context, owner string) error
}
