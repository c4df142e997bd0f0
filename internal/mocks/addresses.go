package mocks

import (
	"context"
	"testing"

	"storefront/internal/domain/addresses"

	"github.com/stretchr/testify/mock"
)

type MockAddressBackend struct {
	mock.Mock
}

func NewMockAddressBackend(t *testing.T) *MockAddressBackend {
	m := &MockAddressBackend{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAddressBackend) List(ctx context.Context, userID int64) ([]addresses.Address, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]addresses.Address)
	return list, args.Error(1)
}

func (m *MockAddressBackend) Create(ctx context.Context, userID int64, a addresses.Address) (addresses.Address, error) {
	args := m.Called(ctx, userID, a)
	out, _ := args.Get(0).(addresses.Address)
	return out, args.Error(1)
}

func (m *MockAddressBackend) Update(ctx context.Context, userID int64, a addresses.Address) (addresses.Address, error) {
	args := m.Called(ctx, userID, a)
	out, _ := args.Get(0).(addresses.Address)
	return out, args.Error(1)
}

func (m *MockAddressBackend) Delete(ctx context.Context, userID int64, id string) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockAddressBackend) SetDefault(ctx context.Context, userID int64, id string) (addresses.Address, error) {
	args := m.Called(ctx, userID, id)
	out, _ := args.Get(0).(addresses.Address)
	return out, args.Error(1)
}
