package mocks

import (
	"context"
	"testing"

	"storefront/internal/payments"

	"github.com/stretchr/testify/mock"
)

type MockPaymentExecutor struct {
	mock.Mock
}

func NewMockPaymentExecutor(t *testing.T) *MockPaymentExecutor {
	m := &MockPaymentExecutor{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPaymentExecutor) Execute(ctx context.Context, req payments.Request) (payments.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(payments.Result)
	return res, args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func NewMockReconciler(t *testing.T) *MockReconciler {
	m := &MockReconciler{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockReconciler) FlagForReconciliation(ctx context.Context, res payments.Result, note string) error {
	args := m.Called(ctx, res, note)
	return args.Error(0)
}
