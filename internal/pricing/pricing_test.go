package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_GuestStandardShipping(t *testing.T) {
	calc := DefaultCalculator()

	b := calc.Compute(4200, nil, ShippingStandard)

	assert.Equal(t, int64(4200), b.SubtotalCents)
	assert.Equal(t, int64(0), b.ShippingCents)
	assert.Equal(t, int64(336), b.TaxCents)
	assert.Equal(t, int64(4536), b.TotalCents)
	assert.Equal(t, 45.36, Dollars(b.TotalCents))
}

func TestCompute_PercentageCoupon(t *testing.T) {
	calc := DefaultCalculator()
	save10 := &Coupon{Code: "SAVE10", Type: DiscountPercentage, Value: 10, MinimumCents: 2000}

	b := calc.Compute(5000, save10, ShippingStandard)
	assert.Equal(t, int64(500), b.DiscountCents)
	assert.Equal(t, b.SubtotalCents-500+b.ShippingCents+b.TaxCents, b.TotalCents)

	below := calc.Compute(1000, save10, ShippingStandard)
	assert.Equal(t, int64(0), below.DiscountCents)
}

func TestCompute_FixedCouponCappedAtSubtotal(t *testing.T) {
	calc := DefaultCalculator()
	off := &Coupon{Code: "TENOFF", Type: DiscountFixed, Value: 1000}

	b := calc.Compute(600, off, ShippingExpress)

	assert.Equal(t, int64(600), b.DiscountCents)
	assert.Equal(t, int64(0), b.TaxCents)
	assert.Equal(t, int64(999), b.TotalCents)
}

func TestCompute_FreeShippingWaivesShipping(t *testing.T) {
	calc := DefaultCalculator()
	ship := &Coupon{Code: "SHIPFREE", Type: DiscountFreeShipping}

	b := calc.Compute(2500, ship, ShippingOvernight)

	assert.Equal(t, int64(0), b.DiscountCents)
	assert.Equal(t, int64(0), b.ShippingCents)
	assert.Equal(t, int64(2700), b.TotalCents)
}

func TestCompute_EmptyCartHasNoShipping(t *testing.T) {
	b := DefaultCalculator().Compute(0, nil, ShippingOvernight)
	assert.Equal(t, Breakdown{}, b)
}

func TestNewCalculator(t *testing.T) {
	calc, err := NewCalculator("0.10")
	require.NoError(t, err)
	assert.Equal(t, int64(100), calc.Compute(1000, nil, ShippingStandard).TaxCents)

	_, err = NewCalculator("abc")
	assert.Error(t, err)

	_, err = NewCalculator("1.5")
	assert.Error(t, err)
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("  save10 "))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "45.36", Format(4536))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, int64(4536), FromDollars(45.36))
	assert.Equal(t, int64(1999), FromDollars(19.99))
}
