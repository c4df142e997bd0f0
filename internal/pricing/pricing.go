package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is applied to the discounted subtotal.
const DefaultTaxRate = "0.08"

type ShippingMethod string

const (
	ShippingStandard  ShippingMethod = "standard"
	ShippingExpress   ShippingMethod = "express"
	ShippingOvernight ShippingMethod = "overnight"
)

type ShippingOption struct {
	Method        ShippingMethod `json:"method"`
	Label         string         `json:"label"`
	PriceCents    int64          `json:"price_cents"`
	EstimatedTime string         `json:"estimated_time"`
}

var shippingOptions = []ShippingOption{
	{Method: ShippingStandard, Label: "Standard Shipping", PriceCents: 0, EstimatedTime: "5-7 business days"},
	{Method: ShippingExpress, Label: "Express Shipping", PriceCents: 999, EstimatedTime: "2-3 business days"},
	{Method: ShippingOvernight, Label: "Overnight Shipping", PriceCents: 1999, EstimatedTime: "1 business day"},
}

// ShippingOptions lists the available methods, cheapest first.
func ShippingOptions() []ShippingOption {
	out := make([]ShippingOption, len(shippingOptions))
	copy(out, shippingOptions)
	return out
}

func LookupShipping(m ShippingMethod) (ShippingOption, bool) {
	for _, o := range shippingOptions {
		if o.Method == m {
			return o, true
		}
	}
	return ShippingOption{}, false
}

type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeShipping DiscountType = "free_shipping"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixed, DiscountFreeShipping:
		return true
	}
	return false
}

// Coupon is a validated discount code. Value is a whole percent for
// percentage coupons and cents for fixed ones; free_shipping ignores it.
type Coupon struct {
	Code         string       `json:"code"`
	Type         DiscountType `json:"discount_type"`
	Value        int64        `json:"discount_value"`
	MinimumCents int64        `json:"minimum_amount_cents"`
	Description  string       `json:"description,omitempty"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

// NormalizeCode returns the canonical form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c Coupon) Eligible(subtotalCents int64) bool {
	return subtotalCents > 0 && subtotalCents >= c.MinimumCents
}

// DiscountFor returns the amount taken off the item subtotal.
func (c Coupon) DiscountFor(subtotalCents int64) int64 {
	switch c.Type {
	case DiscountPercentage:
		pct := c.Value
		if pct > 100 {
			pct = 100
		}
		return decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(pct)).
			Div(hundred).
			Round(0).
			IntPart()
	case DiscountFixed:
		return min(c.Value, subtotalCents)
	default:
		return 0
	}
}

func (c Coupon) String() string {
	switch c.Type {
	case DiscountPercentage:
		return fmt.Sprintf("%s (%d%% off)", c.Code, c.Value)
	case DiscountFixed:
		return fmt.Sprintf("%s ($%s off)", c.Code, Format(c.Value))
	default:
		return fmt.Sprintf("%s (free shipping)", c.Code)
	}
}

type Breakdown struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type Calculator struct {
	taxRate decimal.Decimal
}

// NewCalculator parses a tax rate such as "0.08".
func NewCalculator(taxRate string) (Calculator, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return Calculator{}, fmt.Errorf("parse tax rate %q: %w", taxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Calculator{}, fmt.Errorf("tax rate %s out of range", rate)
	}
	return Calculator{taxRate: rate}, nil
}

// DefaultCalculator uses DefaultTaxRate.
func DefaultCalculator() Calculator {
	return Calculator{taxRate: decimal.RequireFromString(DefaultTaxRate)}
}

// Compute derives every pricing field from the item subtotal. A coupon that
// is not eligible for subtotal contributes nothing.
func (c Calculator) Compute(subtotalCents int64, coupon *Coupon, method ShippingMethod) Breakdown {
	b := Breakdown{SubtotalCents: subtotalCents}

	freeShipping := false
	if coupon != nil && coupon.Eligible(subtotalCents) {
		b.DiscountCents = coupon.DiscountFor(subtotalCents)
		freeShipping = coupon.Type == DiscountFreeShipping
	}

	if opt, ok := LookupShipping(method); ok && subtotalCents > 0 && !freeShipping {
		b.ShippingCents = opt.PriceCents
	}

	taxable := subtotalCents - b.DiscountCents
	b.TaxCents = decimal.NewFromInt(taxable).Mul(c.taxRate).Round(0).IntPart()
	b.TotalCents = taxable + b.ShippingCents + b.TaxCents
	return b
}
