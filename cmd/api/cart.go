package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain/carts"
	"storefront/internal/domain/products"
	"storefront/internal/pricing"

	"github.com/go-chi/chi/v5"
)

type AddCartItemPayload struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
	Size      string `json:"size,omitempty" validate:"max=20"`
	Color     string `json:"color,omitempty" validate:"max=30"`
}

type UpdateCartItemPayload struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

type ShippingMethodPayload struct {
	Method pricing.ShippingMethod `json:"method" validate:"required"`
}

// CartMutationResponse is the outcome of one item write plus the cart after it.
type CartMutationResponse struct {
	Mutation carts.Mutation `json:"mutation"`
	Cart     carts.Snapshot `json:"cart"`
}

// getCartHandler godoc
//
//	@Summary		Get cart
//	@Description	Returns the caller's cart with every pricing field. Guests pass X-Guest-Token.
//	@Tags			cart
//	@Produce		json
//	@Param			X-Guest-Token	header		string	false	"Guest token"
//	@Success		200				{object}	carts.Snapshot
//	@Failure		500				{object}	ErrorInternalServerResponse
//	@Router			/store/cart [get]
func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, sess.Cart.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

// addCartItemHandler godoc
//
//	@Summary		Add item to cart
//	@Description	Adds a product, or raises the quantity of the same product and variant. Quantity is capped at stock.
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		AddCartItemPayload	true	"Item"
//	@Success		200		{object}	CartMutationResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error	"Out of stock or cart locked"
//	@Router			/store/cart/items [post]
func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var payload AddCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	product, err := app.store.Products.GetByID(ctx, payload.ProductID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	if !product.IsActive {
		app.notFoundResponse(w, r, products.ErrNotFound)
		return
	}

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	var variant *carts.Variant
	if payload.Size != "" || payload.Color != "" {
		variant = &carts.Variant{Size: payload.Size, Color: payload.Color}
	}

	m, err := sess.Cart.AddItem(ctx, *product, payload.Quantity, variant)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, CartMutationResponse{Mutation: m, Cart: sess.Cart.Snapshot()}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateCartItemHandler godoc
//
//	@Summary		Update item quantity
//	@Description	Sets an absolute quantity. Zero removes the item.
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			itemID	path		string					true	"Cart item ID"
//	@Param			payload	body		UpdateCartItemPayload	true	"Quantity"
//	@Success		200		{object}	CartMutationResponse
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error
//	@Router			/store/cart/items/{itemID} [patch]
func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var payload UpdateCartItemPayload
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

	m, err := sess.Cart.UpdateQuantity(ctx, itemID, payload.Quantity)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, CartMutationResponse{Mutation: m, Cart: sess.Cart.Snapshot()}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// removeCartItemHandler godoc
//
//	@Summary		Remove item
//	@Tags			cart
//	@Produce		json
//	@Param			itemID	path		string	true	"Cart item ID"
//	@Success		200		{object}	CartMutationResponse
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error
//	@Router			/store/cart/items/{itemID} [delete]
func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	m, err := sess.Cart.RemoveItem(ctx, itemID)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, CartMutationResponse{Mutation: m, Cart: sess.Cart.Snapshot()}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// clearCartHandler godoc
//
//	@Summary		Clear cart
//	@Description	Empties the cart. Refused while a checkout holds the cart.
//	@Tags			cart
//	@Success		204
//	@Failure		409	{object}	error
//	@Router			/store/cart [delete]
func (app *application) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := sess.Cart.Clear(ctx); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setCartShippingHandler godoc
//
//	@Summary		Choose shipping method
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ShippingMethodPayload	true	"Shipping method"
//	@Success		200		{object}	carts.Snapshot
//	@Failure		400		{object}	ErrorBadRequestResponse
//	@Router			/store/cart/shipping [put]
func (app *application) setCartShippingHandler(w http.ResponseWriter, r *http.Request) {
	var payload ShippingMethodPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if _, ok := pricing.LookupShipping(payload.Method); !ok {
		app.badRequestResponse(w, r, errors.New("unknown shipping method"))
		return
	}

	sess, err := app.sessionFor(r)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := sess.Cart.SetShippingMethod(payload.Method); err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, sess.Cart.Snapshot()); err != nil {
		app.internalServerError(w, r, err)
	}
}

// listShippingOptionsHandler godoc
//
//	@Summary		List shipping options
//	@Tags			cart
//	@Produce		json
//	@Success		200	{array}	pricing.ShippingOption
//	@Router			/store/shipping-options [get]
func (app *application) listShippingOptionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.jsonResponse(w, http.StatusOK, pricing.ShippingOptions()); err != nil {
		app.internalServerError(w, r, err)
	}
}
