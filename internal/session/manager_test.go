package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/domain/addresses"
	"storefront/internal/mocks"
	"storefront/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type managerFixtures struct {
	manager   *Manager
	addresses *mocks.MockAddressBackend
	clock     *time.Time
}

func createTestManager(t *testing.T) managerFixtures {
	t.Helper()
	addrs := mocks.NewMockAddressBackend(t)
	deps := Deps{
		Carts:      mocks.NewMemoryCartBackend(),
		Coupons:    mocks.NewMockCouponBackend(t),
		Addresses:  addrs,
		Orders:     mocks.NewMockOrderBackend(t),
		Payments:   mocks.NewMockPaymentExecutor(t),
		Reconciler: mocks.NewMockReconciler(t),
		Calculator: pricing.DefaultCalculator(),
		Checkout:   checkout.Config{RedirectDelay: time.Hour},
	}
	m := NewManager(deps, 30*time.Minute, zap.NewNop().Sugar())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	t.Cleanup(func() {
		for _, k := range m.keys() {
			m.End(k)
		}
	})
	return managerFixtures{manager: m, addresses: addrs, clock: &now}
}

func (m *Manager) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		out = append(out, k)
	}
	return out
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		identity checkout.Identity
		token    string
		want     string
		wantErr  error
	}{
		{name: "user wins over token", identity: checkout.Identity{UserID: 7}, token: "abc", want: "user:7"},
		{name: "guest token", token: "abc", want: "guest:abc"},
		{name: "nothing", wantErr: ErrNoIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.identity, tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetReusesSession(t *testing.T) {
	fx := createTestManager(t)

	a, err := fx.manager.Get(context.Background(), checkout.Identity{}, "tok")
	require.NoError(t, err)
	b, err := fx.manager.Get(context.Background(), checkout.Identity{}, "tok")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Nil(t, a.Addresses)
	assert.Equal(t, "guest:tok", a.Cart.Owner())
}

func TestConcurrentFirstGetSharesOneSession(t *testing.T) {
	fx := createTestManager(t)

	var wg sync.WaitGroup
	got := make([]*Session, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := fx.manager.Get(context.Background(), checkout.Identity{}, "race")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got[1:] {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, fx.manager.Len())
}

func TestCheckoutRequiresStart(t *testing.T) {
	fx := createTestManager(t)
	s, err := fx.manager.Get(context.Background(), checkout.Identity{}, "tok")
	require.NoError(t, err)

	_, err = s.Checkout()
	assert.ErrorIs(t, err, ErrNoCheckout)

	o := s.ResetCheckout(context.Background())
	again := s.ResetCheckout(context.Background())
	assert.Same(t, o, again)

	cur, err := s.Checkout()
	require.NoError(t, err)
	assert.Same(t, o, cur)
}

func TestResetCheckoutPreselectsDefaultAddress(t *testing.T) {
	fx := createTestManager(t)
	def := addresses.Address{ID: "a2", Type: addresses.TypeHome, Name: "Ada", Street: "1 Main St",
		City: "Springfield", State: "IL", Zip: "62701", Country: "US", Phone: "5550100", IsDefault: true}
	fx.addresses.On("List", mock.Anything, int64(9)).
		Return([]addresses.Address{{ID: "a1"}, def}, nil).Once()

	s, err := fx.manager.Get(context.Background(), checkout.Identity{UserID: 9, Email: "ada@example.com"}, "")
	require.NoError(t, err)
	require.NotNil(t, s.Addresses)

	o := s.ResetCheckout(context.Background())
	st := o.State()
	require.NotNil(t, st.Address)
	assert.Equal(t, "a2", st.Address.ID)
}

func TestSweepEndsIdleSessions(t *testing.T) {
	fx := createTestManager(t)
	_, err := fx.manager.Get(context.Background(), checkout.Identity{}, "old")
	require.NoError(t, err)

	*fx.clock = fx.clock.Add(20 * time.Minute)
	_, err = fx.manager.Get(context.Background(), checkout.Identity{}, "new")
	require.NoError(t, err)

	*fx.clock = fx.clock.Add(15 * time.Minute)
	assert.Equal(t, 1, fx.manager.Sweep())
	assert.Equal(t, 1, fx.manager.Len())

	s, err := fx.manager.Get(context.Background(), checkout.Identity{}, "new")
	require.NoError(t, err)
	assert.Equal(t, "guest:new", s.Key)
}

func TestEndDropsSession(t *testing.T) {
	fx := createTestManager(t)
	s, err := fx.manager.Get(context.Background(), checkout.Identity{}, "tok")
	require.NoError(t, err)
	s.ResetCheckout(context.Background())

	fx.manager.End(s.Key)
	assert.Zero(t, fx.manager.Len())

	fresh, err := fx.manager.Get(context.Background(), checkout.Identity{}, "tok")
	require.NoError(t, err)
	assert.NotSame(t, s, fresh)
}
