package main

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/carts"
	"storefront/internal/pricing"
)

type ApplyCouponPayload struct {
	Code string `json:"code" validate:"required,max=50"`
}

type CouponResponse struct {
	Coupon pricing.Coupon `json:"coupon"`
	Cart   carts.Snapshot `json:"cart"`
}

// applyCouponHandler godoc
//
//	@Summary		Apply coupon
//	@Description	Validates the code against the current cart and replaces any coupon already applied.
//	@Tags			coupons
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ApplyCouponPayload	true	"Coupon code"
//	@Success		200		{object}	CouponResponse
//	@Failure		400		{object}	ErrorBadRequestResponse	"Invalid or ineligible coupon"
//	@Failure		409		{object}	error					"Cart locked by checkout"
//	@Router			/store/cart/coupon [post]
func (app *application) applyCouponHandler(w http.ResponseWriter, r *http.Request) {
	var payload ApplyCouponPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := sess.Coupons.ApplyCoupon(ctx, payload.Code)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, CouponResponse{Coupon: c, Cart: sess.Cart.Snapshot()}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// removeCouponHandler godoc
//
//	@Summary		Remove coupon
//	@Tags			coupons
//	@Produce		json
//	@Success		200	{object}	carts.Snapshot
//	@Failure		409	{object}	error	"Cart is locked during checkout"
//	@Router			/store/cart/coupon [delete]
func (app *application) removeCouponHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := sess.Coupons.RemoveCoupon(r.Context()); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, sess.Cart.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listCouponsHandler godoc
//
//	@Summary		List available coupons
//	@Description	Active coupons whose minimum the current subtotal meets.
//	@Tags			coupons
//	@Produce		json
//	@Success		200	{array}		pricing.Coupon
//	@Failure		500	{object}	ErrorInternalServerResponse
//	@Router			/store/coupons [get]
func (app *application) listCouponsHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := sess.Coupons.ListAvailableCoupons(ctx)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}
