package coupons

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/domain/carts"
	"storefront/internal/domain/products"
	"storefront/internal/mocks"
	"storefront/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type resolverFixtures struct {
	cart     *carts.Store
	backend  *mocks.MockCouponBackend
	resolver *Resolver
}

func createTestResolver(t *testing.T, subtotalCents int64) resolverFixtures {
	t.Helper()
	logger := zap.NewNop().Sugar()
	cart := carts.NewStore("guest:coupons", mocks.NewMemoryCartBackend(), pricing.DefaultCalculator(), logger)
	if subtotalCents > 0 {
		p := products.Product{ID: "jacket", Name: "Jacket", PriceCents: subtotalCents, IsActive: true}
		_, err := cart.AddItem(context.Background(), p, 1, nil)
		require.NoError(t, err)
	}
	backend := mocks.NewMockCouponBackend(t)
	return resolverFixtures{cart: cart, backend: backend, resolver: NewResolver(cart, backend, logger)}
}

func save10() pricing.Coupon {
	return pricing.Coupon{Code: "SAVE10", Type: pricing.DiscountPercentage, Value: 10, MinimumCents: 2000}
}

func TestApplyCouponNormalizesCodeAndDiscounts(t *testing.T) {
	fx := createTestResolver(t, 5000)
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(save10(), nil).Once()

	c, err := fx.resolver.ApplyCoupon(context.Background(), "  save10 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", c.Code)

	snap := fx.cart.Snapshot()
	assert.Equal(t, int64(500), snap.DiscountCents)
	// 50.00 - 5.00 + 8% of 45.00
	assert.Equal(t, int64(4860), snap.TotalCents)
}

func TestApplyCouponRejectsBlankCode(t *testing.T) {
	fx := createTestResolver(t, 5000)

	_, err := fx.resolver.ApplyCoupon(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCode)
	fx.backend.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyCouponBelowMinimumLeavesCartUntouched(t *testing.T) {
	fx := createTestResolver(t, 1000)
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(save10(), nil).Once()

	_, err := fx.resolver.ApplyCoupon(context.Background(), "SAVE10")
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	snap := fx.cart.Snapshot()
	assert.Nil(t, snap.Coupon)
	assert.Zero(t, snap.DiscountCents)
}

func TestApplyCouponBackendRejection(t *testing.T) {
	fx := createTestResolver(t, 5000)
	fx.backend.On("Validate", mock.Anything, "EXPIRED", mock.Anything).
		Return(pricing.Coupon{}, &RejectionError{Reason: "coupon has expired"}).Once()

	_, err := fx.resolver.ApplyCoupon(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Contains(t, err.Error(), "coupon has expired")
}

func TestApplyCouponBackendFailureIsNotARejection(t *testing.T) {
	fx := createTestResolver(t, 5000)
	boom := errors.New("connection reset")
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(pricing.Coupon{}, boom).Once()

	_, err := fx.resolver.ApplyCoupon(context.Background(), "SAVE10")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCoupon)
}

func TestApplyCouponReplacesPreviousCoupon(t *testing.T) {
	fx := createTestResolver(t, 5000)
	ship := pricing.Coupon{Code: "FREESHIP", Type: pricing.DiscountFreeShipping}
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(save10(), nil).Once()
	fx.backend.On("Validate", mock.Anything, "FREESHIP", mock.Anything).Return(ship, nil).Once()

	_, err := fx.resolver.ApplyCoupon(context.Background(), "SAVE10")
	require.NoError(t, err)
	_, err = fx.resolver.ApplyCoupon(context.Background(), "FREESHIP")
	require.NoError(t, err)

	snap := fx.cart.Snapshot()
	require.NotNil(t, snap.Coupon)
	assert.Equal(t, "FREESHIP", snap.Coupon.Code)
	assert.Zero(t, snap.DiscountCents)
}

func TestRemoveCoupon(t *testing.T) {
	fx := createTestResolver(t, 5000)
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(save10(), nil).Once()

	_, err := fx.resolver.ApplyCoupon(context.Background(), "SAVE10")
	require.NoError(t, err)
	require.NoError(t, fx.resolver.RemoveCoupon(context.Background()))

	snap := fx.cart.Snapshot()
	assert.Nil(t, snap.Coupon)
	assert.Equal(t, int64(5400), snap.TotalCents)
}

func TestRemoveCouponRefusedWhileCartFrozen(t *testing.T) {
	fx := createTestResolver(t, 5000)
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(save10(), nil).Once()

	_, err := fx.resolver.ApplyCoupon(context.Background(), "SAVE10")
	require.NoError(t, err)
	frozen, err := fx.cart.Freeze()
	require.NoError(t, err)

	err = fx.resolver.RemoveCoupon(context.Background())

	assert.ErrorIs(t, err, carts.ErrCartLocked)
	snap := fx.cart.Snapshot()
	require.NotNil(t, snap.Coupon)
	assert.Equal(t, "SAVE10", snap.Coupon.Code)
	assert.Equal(t, frozen.TotalCents, snap.TotalCents)

	fx.cart.Thaw()
	require.NoError(t, fx.resolver.RemoveCoupon(context.Background()))
	assert.Nil(t, fx.cart.Snapshot().Coupon)
}

func TestConcurrentApplyAndRemoveEndConsistent(t *testing.T) {
	fx := createTestResolver(t, 5000)
	fx.backend.On("Validate", mock.Anything, "SAVE10", mock.Anything).Return(save10(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = fx.resolver.ApplyCoupon(context.Background(), "SAVE10")
		}()
		go func() {
			defer wg.Done()
			_ = fx.resolver.RemoveCoupon(context.Background())
		}()
	}
	wg.Wait()

	snap := fx.cart.Snapshot()
	if snap.Coupon == nil {
		assert.Zero(t, snap.DiscountCents)
	} else {
		assert.Equal(t, int64(500), snap.DiscountCents)
	}
}

func TestListAvailableCouponsFiltersBySubtotal(t *testing.T) {
	fx := createTestResolver(t, 1500)
	big := pricing.Coupon{Code: "BIG", Type: pricing.DiscountFixed, Value: 1000, MinimumCents: 10000}
	small := pricing.Coupon{Code: "SMALL", Type: pricing.DiscountFixed, Value: 200, MinimumCents: 1000}
	fx.backend.On("ListAvailable", mock.Anything, mock.Anything).Return([]pricing.Coupon{big, small}, nil).Once()

	list, err := fx.resolver.ListAvailableCoupons(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SMALL", list[0].Code)
}
