package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/payments"
)

type PayPalFallbackPayload struct {
	OrderID string `json:"order_id" validate:"required"`
}

// createCardIntentHandler godoc
//
//	@Summary		Create card payment intent
//	@Description	Creates a payment intent for the current cart total. The client confirms it and sends the client secret with the order.
//	@Tags			payments
//	@Produce		json
//	@Success		201	{object}	payments.Intent
//	@Failure		400	{object}	ErrorBadRequestResponse	"Card payments unavailable or cart empty"
//	@Failure		402	{object}	error
//	@Failure		409	{object}	error
//	@Router			/store/checkout/payments/card/intent [post]
func (app *application) createCardIntentHandler(w http.ResponseWriter, r *http.Request) {
	if !app.payments.Supports(payments.MethodCard) {
		app.badRequestResponse(w, r, errors.New("card payments are not available"))
		return
	}

	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	snap := sess.Cart.Snapshot()
	if snap.IsEmpty() {
		app.badRequestResponse(w, r, errors.New("your cart is empty"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	intent, err := app.card.CreateIntent(ctx, snap.TotalCents, app.config.checkout.currency, o.Reference())
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, intent); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createPayPalOrderHandler godoc
//
//	@Summary		Create PayPal order
//	@Description	Creates a PayPal order for the cart total. Mode tells the client whether to use the button or redirect to approveUrl.
//	@Tags			payments
//	@Produce		json
//	@Success		201	{object}	payments.Approval
//	@Failure		400	{object}	ErrorBadRequestResponse
//	@Failure		402	{object}	error
//	@Router			/store/checkout/payments/paypal/order [post]
func (app *application) createPayPalOrderHandler(w http.ResponseWriter, r *http.Request) {
	if !app.payments.Supports(payments.MethodPayPal) {
		app.badRequestResponse(w, r, errors.New("PayPal is not available"))
		return
	}

	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	snap := sess.Cart.Snapshot()
	if snap.IsEmpty() {
		app.badRequestResponse(w, r, errors.New("your cart is empty"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	approval, err := app.paypal.Begin(ctx, snap.TotalCents, app.config.checkout.currency, o.Reference())
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, approval); err != nil {
		app.internalServerError(w, r, err)
	}
}

// paypalFallbackHandler godoc
//
//	@Summary		PayPal redirect link
//	@Description	Returns the manual approval link when the PayPal button fails to load.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		PayPalFallbackPayload	true	"PayPal order"
//	@Success		200		{object}	payments.Approval
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Router			/store/checkout/payments/paypal/fallback [post]
func (app *application) paypalFallbackHandler(w http.ResponseWriter, r *http.Request) {
	if !app.payments.Supports(payments.MethodPayPal) {
		app.badRequestResponse(w, r, errors.New("PayPal is not available"))
		return
	}

	var payload PayPalFallbackPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if _, _, ok := app.activeCheckout(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	approval, err := app.paypal.Fallback(ctx, payload.OrderID)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, approval); err != nil {
		app.internalServerError(w, r, err)
	}
}
