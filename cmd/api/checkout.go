package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/orders"
	"storefront/internal/events"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/session"
)

// CheckoutResponse is the checkout state plus the cart it is pricing.
type CheckoutResponse struct {
	Reference string         `json:"reference"`
	State     checkout.State `json:"state"`
	Cart      carts.Snapshot `json:"cart"`
}

type CheckoutShippingPayload struct {
	AddressID      string                 `json:"address_id,omitempty"`
	Guest          *checkout.GuestInfo    `json:"guest,omitempty"`
	ShippingMethod pricing.ShippingMethod `json:"shipping_method,omitempty"`
}

type CheckoutOptionsPayload struct {
	PaymentMethod *payments.Method `json:"payment_method,omitempty"`
	AgreeToTerms  *bool            `json:"agree_to_terms,omitempty"`
	Notes         *string          `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type PlaceOrderResponse struct {
	Order        *orders.Order         `json:"order"`
	Confirmation checkout.Confirmation `json:"confirmation"`
}

func (app *application) checkoutResponse(sess *session.Session, o *checkout.Orchestrator) CheckoutResponse {
	return CheckoutResponse{Reference: o.Reference(), State: o.State(), Cart: sess.Cart.Snapshot()}
}

// activeCheckout resolves the caller's session and running checkout, writing
// the error response itself when either is missing.
func (app *application) activeCheckout(w http.ResponseWriter, r *http.Request) (*session.Session, *checkout.Orchestrator, bool) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return nil, nil, false
	}

	o, err := sess.Checkout()
	if err != nil {
		if errors.Is(err, session.ErrNoCheckout) {
			app.conflictResponse(w, r, err)
			return nil, nil, false
		}
		app.internalServerError(w, r, err)
		return nil, nil, false
	}
	return sess, o, true
}

// startCheckoutHandler godoc
//
//	@Summary		Start checkout
//	@Description	Starts a checkout on step 1, or returns the one in progress. Signed-in shoppers get their default address preselected.
//	@Tags			checkout
//	@Produce		json
//	@Param			X-Guest-Token	header		string	false	"Guest token"
//	@Success		200				{object}	CheckoutResponse
//	@Failure		500				{object}	ErrorInternalServerResponse
//	@Router			/store/checkout [post]
func (app *application) startCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o := sess.ResetCheckout(ctx)

	if err := app.jsonResponse(w, http.StatusOK, app.checkoutResponse(sess, o)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getCheckoutHandler godoc
//
//	@Summary		Get checkout state
//	@Tags			checkout
//	@Produce		json
//	@Success		200	{object}	CheckoutResponse
//	@Failure		409	{object}	error	"No checkout started"
//	@Router			/store/checkout [get]
func (app *application) getCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.checkoutResponse(sess, o)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCheckoutShippingHandler godoc
//
//	@Summary		Fill in shipping
//	@Description	Signed-in shoppers pick a saved address by id. Guests send the contact form. Either may choose a shipping method.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CheckoutShippingPayload	true	"Shipping step"
//	@Success		200		{object}	CheckoutResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error
//	@Router			/store/checkout/shipping [put]
func (app *application) updateCheckoutShippingHandler(w http.ResponseWriter, r *http.Request) {
	var payload CheckoutShippingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	if payload.AddressID != "" {
		if sess.Addresses == nil {
			app.badRequestResponse(w, r, errors.New("guests cannot use saved addresses"))
			return
		}
		a, found := sess.Addresses.Get(payload.AddressID)
		if !found {
			app.notFoundResponse(w, r, errors.New("address not found"))
			return
		}
		if err := o.SelectAddress(a); err != nil {
			app.outcomeErrorResponse(w, r, err)
			return
		}
	}

	if payload.Guest != nil {
		if err := o.SetGuestInfo(*payload.Guest); err != nil {
			app.outcomeErrorResponse(w, r, err)
			return
		}
	}

	if payload.ShippingMethod != "" {
		if err := o.SelectShippingMethod(payload.ShippingMethod); err != nil {
			app.outcomeErrorResponse(w, r, err)
			return
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, app.checkoutResponse(sess, o)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// completeShippingHandler godoc
//
//	@Summary		Continue to payment
//	@Description	Validates the shipping step and moves to step 2.
//	@Tags			checkout
//	@Produce		json
//	@Success		200	{object}	CheckoutResponse
//	@Failure		400	{object}	ErrorBadRequestResponse	"Missing address or invalid guest details"
//	@Failure		409	{object}	error
//	@Router			/store/checkout/shipping/complete [post]
func (app *application) completeShippingHandler(w http.ResponseWriter, r *http.Request) {
	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	if err := o.CompleteShipping(); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.checkoutResponse(sess, o)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// checkoutBackHandler godoc
//
//	@Summary		Back to shipping
//	@Tags			checkout
//	@Produce		json
//	@Success		200	{object}	CheckoutResponse
//	@Failure		409	{object}	error	"Order is processing or already placed"
//	@Router			/store/checkout/back [post]
func (app *application) checkoutBackHandler(w http.ResponseWriter, r *http.Request) {
	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	if err := o.Back(); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.checkoutResponse(sess, o)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCheckoutOptionsHandler godoc
//
//	@Summary		Set payment options
//	@Description	Payment method, terms agreement and order notes. Omitted fields are left unchanged.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CheckoutOptionsPayload	true	"Payment step"
//	@Success		200		{object}	CheckoutResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		409		{object}	error
//	@Router			/store/checkout/options [put]
func (app *application) updateCheckoutOptionsHandler(w http.ResponseWriter, r *http.Request) {
	var payload CheckoutOptionsPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	sess, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	if payload.PaymentMethod != nil {
		m := *payload.PaymentMethod
		if m.Known() && m != payments.MethodApplePay && !app.payments.Supports(m) {
			app.badRequestResponse(w, r, checkout.ErrUnsupportedPaymentMethod)
			return
		}
		if err := o.SelectPaymentMethod(m); err != nil {
			app.outcomeErrorResponse(w, r, err)
			return
		}
	}
	if payload.AgreeToTerms != nil {
		if err := o.SetAgreeToTerms(*payload.AgreeToTerms); err != nil {
			app.outcomeErrorResponse(w, r, err)
			return
		}
	}
	if payload.Notes != nil {
		if err := o.SetNotes(*payload.Notes); err != nil {
			app.outcomeErrorResponse(w, r, err)
			return
		}
	}

	if err := app.jsonResponse(w, http.StatusOK, app.checkoutResponse(sess, o)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// placeOrderHandler godoc
//
//	@Summary		Place order
//	@Description	Charges the selected method and creates the order. A payment that settled on an earlier attempt is not charged again.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		checkout.PaymentInput	false	"Client payment details"
//	@Success		201		{object}	PlaceOrderResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		402		{object}	error	"Payment failed"
//	@Failure		409		{object}	error
//	@Failure		422		{object}	error	"Order rejected"
//	@Failure		502		{object}	error	"Paid but no order, contact support"
//	@Router			/store/checkout/orders [post]
func (app *application) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload checkout.PaymentInput
	if err := readOptionalJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if payload.Card != nil {
		if err := Validate.Struct(payload.Card); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	_, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	order, err := o.Pay(ctx, payload)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	conf, err := o.Confirmation()
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := o.EnsureCartCleared(ctx); err != nil {
		app.logger.Warnw("cart not cleared after order", "order_number", order.OrderNumber, "error", err)
	}

	app.afterOrderPlaced(o.Identity(), conf)
	app.publishOrderConfirmed(events.NewOrderConfirmed(order, time.Now()))

	if err := app.jsonResponse(w, http.StatusCreated, PlaceOrderResponse{Order: order, Confirmation: conf}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// confirmationHandler godoc
//
//	@Summary		Order confirmation
//	@Description	Receipt for the placed order. Makes sure the cart has been emptied exactly once.
//	@Tags			checkout
//	@Produce		json
//	@Success		200	{object}	checkout.Confirmation
//	@Failure		404	{object}	error	"No order confirmed yet"
//	@Router			/store/checkout/confirmation [get]
func (app *application) confirmationHandler(w http.ResponseWriter, r *http.Request) {
	_, o, ok := app.activeCheckout(w, r)
	if !ok {
		return
	}

	conf, err := o.Confirmation()
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := o.EnsureCartCleared(ctx); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, conf); err != nil {
		app.internalServerError(w, r, err)
	}
}
