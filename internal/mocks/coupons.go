package mocks

import (
	"context"
	"testing"

	"storefront/internal/domain/carts"
	"storefront/internal/pricing"

	"github.com/stretchr/testify/mock"
)

type MockCouponBackend struct {
	mock.Mock
}

func NewMockCouponBackend(t *testing.T) *MockCouponBackend {
	m := &MockCouponBackend{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCouponBackend) Validate(ctx context.Context, code string, cart carts.Snapshot) (pricing.Coupon, error) {
	args := m.Called(ctx, code, cart)
	c, _ := args.Get(0).(pricing.Coupon)
	return c, args.Error(1)
}

func (m *MockCouponBackend) ListAvailable(ctx context.Context, cart carts.Snapshot) ([]pricing.Coupon, error) {
	args := m.Called(ctx, cart)
	list, _ := args.Get(0).([]pricing.Coupon)
	return list, args.Error(1)
}
