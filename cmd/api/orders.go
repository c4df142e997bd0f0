package main

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/orders"
	"storefront/internal/params"

	"github.com/go-chi/chi/v5"
)

type OrderListResponse struct {
	Orders     []orders.Order    `json:"orders"`
	Pagination params.Pagination `json:"pagination"`
}

// listOrdersHandler godoc
//
//	@Summary		List my orders
//	@Description	Newest first. Optional status filter.
//	@Tags			orders
//	@Produce		json
//	@Param			page	query		int		false	"Page"
//	@Param			limit	query		int		false	"Page size (max 50)"
//	@Param			status	query		string	false	"pending, processing, shipped, delivered or cancelled"
//	@Success		200		{object}	OrderListResponse
//	@Failure		401		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/orders [get]
func (app *application) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	q := r.URL.Query()
	p := params.ParsePagination(q)
	status := params.ParseOrderStatus(q)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, total, err := app.store.Orders.ListByUser(ctx, user.ID, status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if list == nil {
		list = []orders.Order{}
	}

	if err := app.jsonResponse(w, http.StatusOK, OrderListResponse{Orders: list, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getOrderHandler godoc
//
//	@Summary		Get one of my orders
//	@Tags			orders
//	@Produce		json
//	@Param			orderNumber	path		string	true	"Order number"
//	@Success		200			{object}	orders.Order
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/orders/{orderNumber} [get]
func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	number := chi.URLParam(r, "orderNumber")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := app.store.Orders.GetByNumberForUser(ctx, user.ID, number)
	if err != nil {
		app.outcomeErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, o); err != nil {
		app.internalServerError(w, r, err)
	}
}
