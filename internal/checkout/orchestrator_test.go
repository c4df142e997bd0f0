package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/products"
	"storefront/internal/mocks"
	"storefront/internal/payments"
	"storefront/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	hoodie = products.Product{ID: "hoodie", Name: "Hoodie", PriceCents: 3000, IsActive: true}
	cap_   = products.Product{ID: "cap", Name: "Cap", PriceCents: 1200, IsActive: true}

	completeGuest = GuestInfo{
		Email: "guest@example.com", FirstName: "Ada", LastName: "Lovelace",
		Address: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Phone: "5550100",
	}
)

type orchestratorFixtures struct {
	o          *Orchestrator
	cart       *carts.Store
	cartDB     *mocks.MemoryCartBackend
	orders     *mocks.MockOrderBackend
	payer      *mocks.MockPaymentExecutor
	reconciler *mocks.MockReconciler
	redirects  chan string
}

func createTestOrchestrator(t *testing.T, id Identity) orchestratorFixtures {
	t.Helper()
	logger := zap.NewNop().Sugar()
	cartDB := mocks.NewMemoryCartBackend()
	cart := carts.NewStore("test", cartDB, pricing.DefaultCalculator(), logger)

	ctx := context.Background()
	_, err := cart.AddItem(ctx, hoodie, 1, nil)
	require.NoError(t, err)
	_, err = cart.AddItem(ctx, cap_, 1, nil)
	require.NoError(t, err)

	fx := orchestratorFixtures{
		cart:       cart,
		cartDB:     cartDB,
		orders:     mocks.NewMockOrderBackend(t),
		payer:      mocks.NewMockPaymentExecutor(t),
		reconciler: mocks.NewMockReconciler(t),
		redirects:  make(chan string, 4),
	}
	fx.o = New(id, cart, fx.orders, fx.payer, fx.reconciler, Config{
		RedirectDelay: 20 * time.Millisecond,
		OnRedirect:    func(to string) { fx.redirects <- to },
	}, logger)
	t.Cleanup(fx.o.Close)
	return fx
}

// toPayment moves a guest checkout to the Payment step with terms accepted.
func (fx orchestratorFixtures) toPayment(t *testing.T, method payments.Method) {
	t.Helper()
	require.NoError(t, fx.o.SetGuestInfo(completeGuest))
	require.NoError(t, fx.o.CompleteShipping())
	require.NoError(t, fx.o.SelectPaymentMethod(method))
	require.NoError(t, fx.o.SetAgreeToTerms(true))
}

func orderFrom(p orders.Payload) *orders.Order {
	return &orders.Order{
		ID:              1,
		OrderNumber:     "SHOP-ABCD-EFGH",
		ShippingAddress: p.ShippingAddress,
		PaymentMethod:   p.PaymentMethod,
		Items:           p.Items,
		PaymentResult:   p.PaymentResult,
		CouponCode:      p.CouponCode,
		Status:          "pending",
		IsPaid:          p.PaymentResult.Paid(),
		Pricing: orders.Pricing{
			ItemsPrice:    p.ItemsPrice,
			ShippingPrice: p.ShippingPrice,
			TaxPrice:      p.TaxPrice,
			TotalPrice:    p.TotalPrice,
		},
		CreatedAt: time.Now(),
	}
}

func expectOrderCreated(m *mocks.MockOrderBackend) *mock.Call {
	return m.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(orderFrom, nil)
}

func TestOrchestrator_AuthenticatedWithoutAddressCannotCompleteShipping(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{UserID: 7, Email: "u@example.com"})

	err := fx.o.CompleteShipping()

	assert.ErrorIs(t, err, ErrMissingAddress)
	assert.Equal(t, StepShipping, fx.o.State().CurrentStep)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestOrchestrator_AuthenticatedWithAddressAdvances(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{UserID: 7, Email: "u@example.com"})

	require.NoError(t, fx.o.SelectAddress(addresses.Address{ID: "a1", Name: "Ada", Street: "1 Main St", City: "Springfield"}))
	require.NoError(t, fx.o.CompleteShipping())
	assert.Equal(t, StepPayment, fx.o.State().CurrentStep)
}

func TestOrchestrator_GuestInfoValidation(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})

	require.NoError(t, fx.o.SetGuestInfo(GuestInfo{Email: "guest@example.com", FirstName: "Ada"}))
	err := fx.o.CompleteShipping()
	require.ErrorIs(t, err, ErrIncompleteGuestInfo)
	assert.Contains(t, err.Error(), "lastName")
	assert.Contains(t, err.Error(), "zipCode")
	assert.NotContains(t, err.Error(), "firstName")

	bad := completeGuest
	bad.Email = "not-an-email"
	require.NoError(t, fx.o.SetGuestInfo(bad))
	assert.ErrorIs(t, fx.o.CompleteShipping(), ErrInvalidEmail)

	padded := completeGuest
	padded.City = "   "
	require.NoError(t, fx.o.SetGuestInfo(padded))
	assert.ErrorIs(t, fx.o.CompleteShipping(), ErrIncompleteGuestInfo)

	assert.Equal(t, StepShipping, fx.o.State().CurrentStep)
	assert.NotEmpty(t, fx.o.State().LastError)
}

func TestOrchestrator_CompleteShippingRejectsEmptyCart(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	require.NoError(t, fx.cart.Clear(context.Background()))
	require.NoError(t, fx.o.SetGuestInfo(completeGuest))

	assert.ErrorIs(t, fx.o.CompleteShipping(), ErrEmptyCart)
}

func TestOrchestrator_StepTransitions(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})

	require.NoError(t, fx.o.Back(), "back from shipping is a no-op")
	assert.Equal(t, StepShipping, fx.o.State().CurrentStep)

	fx.toPayment(t, payments.MethodCOD)
	assert.ErrorIs(t, fx.o.CompleteShipping(), ErrInvalidTransition)

	require.NoError(t, fx.o.Back())
	assert.Equal(t, StepShipping, fx.o.State().CurrentStep)

	_, err := fx.o.CreateOrder(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrchestrator_TermsRequiredBeforeOrder(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCOD)
	require.NoError(t, fx.o.SetAgreeToTerms(false))

	_, err := fx.o.CreateOrder(context.Background(), nil)

	assert.ErrorIs(t, err, ErrTermsNotAccepted)
	assert.Equal(t, StepPayment, fx.o.State().CurrentStep)
	assert.False(t, fx.o.State().IsProcessing)
	fx.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_PaymentMethodRequired(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	require.NoError(t, fx.o.SetGuestInfo(completeGuest))
	require.NoError(t, fx.o.CompleteShipping())
	require.NoError(t, fx.o.SetAgreeToTerms(true))

	_, err := fx.o.CreateOrder(context.Background(), nil)
	assert.ErrorIs(t, err, ErrPaymentMethodRequired)
}

func TestOrchestrator_ApplePayIsUnsupported(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})

	err := fx.o.SelectPaymentMethod(payments.MethodApplePay)
	assert.ErrorIs(t, err, ErrUnsupportedPaymentMethod)
	assert.ErrorIs(t, fx.o.SelectPaymentMethod("bitcoin"), ErrUnsupportedPaymentMethod)
	assert.Empty(t, fx.o.State().PaymentMethod)
}

func TestOrchestrator_GuestCashOnDeliveryPlacesOrder(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	dispatcher := payments.NewDispatcher(nil, zap.NewNop().Sugar())
	cod, err := payments.NewCashOnDelivery("salt")
	require.NoError(t, err)
	dispatcher.Register(payments.MethodCOD, cod)
	fx.o.payer = dispatcher

	fx.toPayment(t, payments.MethodCOD)
	expectOrderCreated(fx.orders).Once()

	order, err := fx.o.Pay(context.Background(), PaymentInput{})
	require.NoError(t, err)

	p := fx.orders.Calls[0].Arguments.Get(2).(orders.Payload)
	assert.Nil(t, fx.orders.Calls[0].Arguments.Get(1).(*int64))
	assert.Equal(t, 42.0, p.ItemsPrice)
	assert.Equal(t, 0.0, p.ShippingPrice)
	assert.Equal(t, 3.36, p.TaxPrice)
	assert.Equal(t, 45.36, p.TotalPrice)
	assert.Equal(t, "cash_on_delivery", p.PaymentMethod)
	assert.Equal(t, "Ada Lovelace", p.ShippingAddress.Name)
	assert.Equal(t, "62701", p.ShippingAddress.ZipCode)
	require.NotNil(t, p.PaymentResult)
	assert.Equal(t, payments.StatusPending, p.PaymentResult.Status)
	assert.Len(t, p.Items, 2)

	st := fx.o.State()
	assert.True(t, st.OrderConfirmed)
	assert.Equal(t, StepConfirmation, st.CurrentStep)
	assert.False(t, st.IsProcessing)
	assert.Equal(t, 45.36, st.OrderData.Pricing.TotalPrice)
	assert.Equal(t, order, st.OrderData)

	assert.True(t, fx.cart.Snapshot().IsEmpty())
	assert.Equal(t, 1, fx.cartDB.Clears())

	require.NoError(t, fx.o.EnsureCartCleared(context.Background()))
	require.NoError(t, fx.o.EnsureCartCleared(context.Background()))
	assert.Equal(t, 1, fx.cartDB.Clears(), "cart cleared exactly once")

	select {
	case to := <-fx.redirects:
		t.Fatalf("redirect fired after confirmation: %s", to)
	case <-time.After(60 * time.Millisecond):
	}

	_, err = fx.o.CreateOrder(context.Background(), nil)
	assert.ErrorIs(t, err, ErrOrderAlreadyPlaced)
	assert.ErrorIs(t, fx.o.SetNotes("late"), ErrOrderAlreadyPlaced)
}

func TestOrchestrator_AuthenticatedOrderCarriesUserAndAddress(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{UserID: 42, Email: "u@example.com"})
	require.NoError(t, fx.o.SelectAddress(addresses.Address{
		ID: "a1", Name: "Ada", Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701", Phone: "555",
	}))
	require.NoError(t, fx.o.CompleteShipping())
	require.NoError(t, fx.o.SelectPaymentMethod(payments.MethodCard))
	require.NoError(t, fx.o.SetAgreeToTerms(true))
	require.NoError(t, fx.o.SetNotes("  leave at door "))

	card := payments.Result{ID: "pi_1", Status: payments.StatusSucceeded, Method: payments.MethodCard, IntentID: "pi_1"}
	fx.payer.On("Execute", mock.Anything, mock.MatchedBy(func(r payments.Request) bool {
		return r.Method == payments.MethodCard && r.AmountCents == 4536 && r.Email == "u@example.com"
	})).Return(card, nil).Once()
	expectOrderCreated(fx.orders).Once()

	_, err := fx.o.Pay(context.Background(), PaymentInput{ClientSecret: "pi_1_secret_x", Card: &payments.CardDetails{PaymentMethodID: "pm"}})
	require.NoError(t, err)

	uid := fx.orders.Calls[0].Arguments.Get(1).(*int64)
	require.NotNil(t, uid)
	assert.Equal(t, int64(42), *uid)
	p := fx.orders.Calls[0].Arguments.Get(2).(orders.Payload)
	assert.Equal(t, "u@example.com", p.ShippingAddress.Email)
	assert.Equal(t, "1 Main St", p.ShippingAddress.Address)
	assert.Equal(t, "pi_1", p.PaymentIntentID)
	assert.Equal(t, "leave at door", p.Notes)

	conf, err := fx.o.Confirmation()
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSucceeded, conf.PaymentStatus)
	assert.True(t, conf.IsPaid)
}

func TestOrchestrator_PaymentFailureStaysOnPayment(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCard)

	declined := &payments.PaymentError{Method: payments.MethodCard, Message: "Your card was declined."}
	fx.payer.On("Execute", mock.Anything, mock.Anything).Return(payments.Result{}, declined).Once()

	_, err := fx.o.Pay(context.Background(), PaymentInput{})

	var pe *payments.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindPayment, KindOf(err))
	st := fx.o.State()
	assert.Equal(t, StepPayment, st.CurrentStep)
	assert.False(t, st.IsProcessing)
	assert.Equal(t, "Your card was declined.", st.LastError)
	assert.False(t, fx.cart.Snapshot().IsEmpty())
	assert.False(t, fx.cart.Snapshot().Locked)
	fx.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_OrderFailureSurfacesBackendMessage(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCOD)

	fx.orders.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &orders.RejectedError{Message: "Coupon SAVE10 is no longer valid"}).Once()
	_, err := fx.o.CreateOrder(context.Background(), nil)

	var oe *OrderError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "Coupon SAVE10 is no longer valid", oe.Message)
	assert.Equal(t, StepPayment, fx.o.State().CurrentStep)
	assert.False(t, fx.o.State().IsProcessing)

	fx.orders.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	_, err = fx.o.CreateOrder(context.Background(), nil)
	assert.EqualError(t, err, GenericOrderFailure)
	assert.Equal(t, GenericOrderFailure, fx.o.State().LastError)

	_, err = fx.cart.AddItem(context.Background(), hoodie, 1, nil)
	assert.NoError(t, err, "cart is thawed after a failed attempt")
	assert.Equal(t, 0, fx.cartDB.Clears())
}

func TestOrchestrator_SettledPaymentWithoutOrderNeedsReconciliation(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodPayPal)

	captured := payments.Result{ID: "PP-1", Status: "COMPLETED", Method: payments.MethodPayPal, AmountCents: 4536, Currency: "usd"}
	fx.payer.On("Execute", mock.Anything, mock.Anything).Return(captured, nil).Once()
	fx.orders.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	fx.reconciler.On("FlagForReconciliation", mock.Anything, captured, "db down").Return(nil).Once()

	_, err := fx.o.Pay(context.Background(), PaymentInput{PayPalOrderID: "PP-1"})

	var re *ReconciliationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "payment completed but order failed, contact support", err.Error())
	assert.Equal(t, "PP-1", re.PaymentID)
	assert.Equal(t, KindReconciliation, KindOf(err))
	assert.Equal(t, StepPayment, fx.o.State().CurrentStep)

	// retry places the order without charging again
	expectOrderCreated(fx.orders).Once()
	_, err = fx.o.Pay(context.Background(), PaymentInput{PayPalOrderID: "PP-1"})
	require.NoError(t, err)
	assert.True(t, fx.o.State().OrderConfirmed)
	fx.payer.AssertNumberOfCalls(t, "Execute", 1)
}

func TestOrchestrator_SettledPaymentIsNotReusedForALargerCart(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCard)
	ctx := context.Background()

	charged := payments.Result{ID: "pi_1", Status: payments.StatusSucceeded, Method: payments.MethodCard, AmountCents: 4536, Currency: "usd"}
	fx.payer.On("Execute", mock.Anything, mock.Anything).Return(charged, nil).Once()
	fx.orders.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	fx.reconciler.On("FlagForReconciliation", mock.Anything, charged, "db down").Return(nil).Once()

	_, err := fx.o.Pay(ctx, PaymentInput{ClientSecret: "pi_1_secret_x", Card: &payments.CardDetails{PaymentMethodID: "pm"}})
	require.Equal(t, KindReconciliation, KindOf(err))

	m, err := fx.cart.AddItem(ctx, hoodie, 3, nil)
	require.NoError(t, err)

	_, err = fx.o.Pay(ctx, PaymentInput{})
	assert.ErrorIs(t, err, ErrPaymentAmountChanged)
	assert.Equal(t, KindConflict, KindOf(err))
	st := fx.o.State()
	assert.Equal(t, StepPayment, st.CurrentStep)
	assert.False(t, st.IsProcessing)
	assert.Equal(t, ErrPaymentAmountChanged.Error(), st.LastError)
	assert.False(t, fx.cart.Snapshot().Locked)
	fx.payer.AssertNumberOfCalls(t, "Execute", 1)
	fx.orders.AssertNumberOfCalls(t, "Create", 1)

	// back to the amount that was charged, the payment is reused
	_, err = fx.cart.UpdateQuantity(ctx, m.ItemID, 1)
	require.NoError(t, err)
	expectOrderCreated(fx.orders).Once()

	order, err := fx.o.Pay(ctx, PaymentInput{})
	require.NoError(t, err)
	assert.Equal(t, 45.36, order.Pricing.TotalPrice)
	assert.True(t, order.IsPaid)
	fx.payer.AssertNumberOfCalls(t, "Execute", 1)
}

func TestOrchestrator_CreateOrderWithoutResultOnlyForCashOnDelivery(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCard)

	_, err := fx.o.CreateOrder(context.Background(), nil)

	assert.ErrorIs(t, err, ErrPaymentResultRequired)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.False(t, fx.o.State().IsProcessing)
	assert.False(t, fx.cart.Snapshot().Locked)
	fx.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_ConcurrentCreateOrderIsRejected(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCOD)

	release := make(chan struct{})
	call := expectOrderCreated(fx.orders).Once()
	call.Run(func(mock.Arguments) { <-release })

	done := make(chan error, 1)
	go func() {
		_, err := fx.o.CreateOrder(context.Background(), nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return fx.o.State().IsProcessing }, time.Second, 5*time.Millisecond)

	_, err := fx.o.CreateOrder(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyProcessing)
	assert.ErrorIs(t, fx.o.Back(), ErrAlreadyProcessing)

	_, err = fx.cart.AddItem(context.Background(), cap_, 1, nil)
	assert.ErrorIs(t, err, carts.ErrCartLocked)

	close(release)
	require.NoError(t, <-done)
	assert.True(t, fx.o.State().OrderConfirmed)
}

func TestOrchestrator_RedirectsWhenCartEmptiesBeforeConfirmation(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	fx.toPayment(t, payments.MethodCOD)

	require.NoError(t, fx.cart.Clear(context.Background()))

	select {
	case to := <-fx.redirects:
		assert.Equal(t, DefaultRedirectTo, to)
	case <-time.After(time.Second):
		t.Fatal("redirect did not fire")
	}
	assert.Equal(t, DefaultRedirectTo, fx.o.State().Redirect)
}

func TestOrchestrator_RedirectCancelledWhenItemsReturn(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})
	ctx := context.Background()

	require.NoError(t, fx.cart.Clear(ctx))
	_, err := fx.cart.AddItem(ctx, hoodie, 1, nil)
	require.NoError(t, err)

	select {
	case to := <-fx.redirects:
		t.Fatalf("unexpected redirect to %s", to)
	case <-time.After(60 * time.Millisecond):
	}
	assert.Empty(t, fx.o.State().Redirect)
}

func TestOrchestrator_SelectShippingMethodReprices(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})

	require.NoError(t, fx.o.SelectShippingMethod(pricing.ShippingExpress))

	snap := fx.cart.Snapshot()
	assert.Equal(t, int64(999), snap.ShippingCents)
	assert.Equal(t, int64(4200+999+336), snap.TotalCents)
	assert.Equal(t, pricing.ShippingExpress, fx.o.State().ShippingMethod)

	assert.Error(t, fx.o.SelectShippingMethod("teleport"))
}

func TestOrchestrator_ConfirmationBeforeOrder(t *testing.T) {
	fx := createTestOrchestrator(t, Identity{})

	_, err := fx.o.Confirmation()
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.ErrorIs(t, fx.o.EnsureCartCleared(context.Background()), ErrNotConfirmed)
	assert.Equal(t, 0, fx.cartDB.Clears())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrMissingAddress, KindValidation},
		{fmt.Errorf("%w: email", ErrIncompleteGuestInfo), KindValidation},
		{carts.ErrInsufficientStock, KindStock},
		{fmt.Errorf("wrap: %w", carts.ErrOutOfStock), KindStock},
		{ErrAlreadyProcessing, KindConflict},
		{carts.ErrCartSyncing, KindConflict},
		{addresses.ErrCannotDeleteDefault, KindConflict},
		{&payments.PaymentError{Message: "declined"}, KindPayment},
		{&ReconciliationError{Err: errors.New("x")}, KindReconciliation},
		{orders.ErrNotFound, KindNotFound},
		{&orders.RejectedError{Message: "nope"}, KindBackend},
		{errors.New("boom"), KindBackend},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), tc.err.Error())
	}
}
