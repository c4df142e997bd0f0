package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/checkout"
	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/coupons"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/products"
	"storefront/internal/domain/storage"
	"storefront/internal/mocks"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type catalog map[string]products.Product

func (c catalog) GetByID(_ context.Context, id string) (*products.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	return &p, nil
}

func createTestApplication(t *testing.T) *application {
	t.Helper()

	logger := zap.NewNop().Sugar()
	dispatcher := payments.NewDispatcher(nil, logger)

	sessions := session.NewManager(session.Deps{
		Carts:      mocks.NewMemoryCartBackend(),
		Coupons:    mocks.NewMockCouponBackend(t),
		Addresses:  mocks.NewMockAddressBackend(t),
		Orders:     mocks.NewMockOrderBackend(t),
		Payments:   dispatcher,
		Reconciler: dispatcher,
		Calculator: pricing.DefaultCalculator(),
	}, session.DefaultIdleTTL, logger)

	return &application{
		config: config{addr: ":0", env: "test"},
		store: &storage.Container{
			Products: catalog{
				"tee": {ID: "tee", Name: "Tee", PriceCents: 2100, IsActive: true, Sizes: []string{"M"}},
				"old": {ID: "old", Name: "Retired", PriceCents: 900},
			},
		},
		logger:   logger,
		sessions: sessions,
		payments: dispatcher,
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, guest string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if guest != "" {
		req.Header.Set(guestTokenHeader, guest)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestIdentifyIssuesGuestToken(t *testing.T) {
	app := createTestApplication(t)
	mux := app.mount()

	rr := doRequest(t, mux, http.MethodGet, "/v1/store/cart", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	token := rr.Header().Get(guestTokenHeader)
	_, err := uuid.Parse(token)
	assert.NoError(t, err)

	var snap carts.Snapshot
	decodeData(t, rr, &snap)
	assert.True(t, snap.IsEmpty())
}

func TestIdentifyRejectsMalformedGuestToken(t *testing.T) {
	app := createTestApplication(t)

	rr := doRequest(t, app.mount(), http.MethodGet, "/v1/store/cart", "not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddItemThenReadCart(t *testing.T) {
	app := createTestApplication(t)
	mux := app.mount()
	guest := uuid.NewString()

	rr := doRequest(t, mux, http.MethodPost, "/v1/store/cart/items", guest, AddCartItemPayload{ProductID: "tee", Quantity: 2, Size: "M"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res CartMutationResponse
	decodeData(t, rr, &res)
	assert.Equal(t, carts.MutationCommitted, res.Mutation.Status)

	rr = doRequest(t, mux, http.MethodGet, "/v1/store/cart", guest, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var snap carts.Snapshot
	decodeData(t, rr, &snap)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, int64(4200), snap.SubtotalCents)
}

func TestAddItemErrors(t *testing.T) {
	app := createTestApplication(t)
	mux := app.mount()
	guest := uuid.NewString()

	tests := []struct {
		name    string
		payload AddCartItemPayload
		status  int
	}{
		{"unknown product", AddCartItemPayload{ProductID: "nope", Quantity: 1}, http.StatusNotFound},
		{"inactive product", AddCartItemPayload{ProductID: "old", Quantity: 1}, http.StatusNotFound},
		{"zero quantity", AddCartItemPayload{ProductID: "tee", Quantity: 0}, http.StatusBadRequest},
		{"unknown size", AddCartItemPayload{ProductID: "tee", Quantity: 1, Size: "XXL"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, mux, http.MethodPost, "/v1/store/cart/items", guest, tt.payload)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestCheckoutMustBeStarted(t *testing.T) {
	app := createTestApplication(t)
	mux := app.mount()
	guest := uuid.NewString()

	rr := doRequest(t, mux, http.MethodGet, "/v1/store/checkout", guest, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(t, mux, http.MethodPost, "/v1/store/checkout", guest, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var res CheckoutResponse
	decodeData(t, rr, &res)
	assert.Equal(t, checkout.StepShipping, res.State.CurrentStep)
	assert.NotEmpty(t, res.Reference)
}

func TestAddressesRequireSignIn(t *testing.T) {
	app := createTestApplication(t)

	rr := doRequest(t, app.mount(), http.MethodGet, "/v1/store/addresses", uuid.NewString(), nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestOutcomeErrorResponse(t *testing.T) {
	app := createTestApplication(t)

	tests := []struct {
		err    error
		status int
	}{
		{checkout.ErrTermsNotAccepted, http.StatusBadRequest},
		{coupons.ErrInvalidCoupon, http.StatusBadRequest},
		{carts.ErrInsufficientStock, http.StatusConflict},
		{carts.ErrCartLocked, http.StatusConflict},
		{addresses.ErrCannotDeleteDefault, http.StatusConflict},
		{fmt.Errorf("lookup: %w", orders.ErrNotFound), http.StatusNotFound},
		{&payments.PaymentError{Method: payments.MethodCard, Message: "Your card was declined."}, http.StatusPaymentRequired},
		{&checkout.ReconciliationError{Method: payments.MethodCard, PaymentID: "pi_1"}, http.StatusBadGateway},
		{&checkout.OrderError{Message: "Coupon SAVE10 is no longer valid"}, http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/store/checkout/orders", nil)

			app.outcomeErrorResponse(rr, req, tt.err)

			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestReconciliationResponseCarriesPaymentID(t *testing.T) {
	app := createTestApplication(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/store/checkout/orders", nil)

	app.outcomeErrorResponse(rr, req, &checkout.ReconciliationError{Method: payments.MethodPayPal, PaymentID: "PAY-9"})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "PAY-9")
}
