package mocks

import (
	"context"
	"testing"

	"storefront/internal/domain/orders"

	"github.com/stretchr/testify/mock"
)

type MockOrderBackend struct {
	mock.Mock
}

func NewMockOrderBackend(t *testing.T) *MockOrderBackend {
	m := &MockOrderBackend{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockOrderBackend) Create(ctx context.Context, userID *int64, p orders.Payload) (*orders.Order, error) {
	args := m.Called(ctx, userID, p)
	if fn, ok := args.Get(0).(func(orders.Payload) *orders.Order); ok {
		return fn(p), args.Error(1)
	}
	o, _ := args.Get(0).(*orders.Order)
	return o, args.Error(1)
}
