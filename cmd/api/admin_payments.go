package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/params"

	"github.com/go-chi/chi/v5"
)

type ReconciliationListResponse struct {
	Payments   []*paymentsrepo.Payment `json:"payments"`
	Pagination params.Pagination       `json:"pagination"`
}

// listReconciliationHandler godoc
//
//	@Summary		Payments needing reconciliation
//	@Description	Payments that were captured but never linked to an order, oldest first.
//	@Tags			admin
//	@Produce		json
//	@Param			page	query		int	false	"Page"
//	@Param			limit	query		int	false	"Page size (max 50)"
//	@Success		200		{object}	ReconciliationListResponse
//	@Failure		401		{object}	error
//	@Security		BasicAuth
//	@Router			/admin/payments/reconciliation [get]
func (app *application) listReconciliationHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, total, err := app.store.Payments.ListNeedingReconciliation(ctx, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if list == nil {
		list = []*paymentsrepo.Payment{}
	}

	if err := app.jsonResponse(w, http.StatusOK, ReconciliationListResponse{Payments: list, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getPaymentHandler godoc
//
//	@Summary		Look up a journaled payment
//	@Tags			admin
//	@Produce		json
//	@Param			provider	path		string	true	"stripe, paypal or cash_on_delivery"
//	@Param			ref			path		string	true	"Provider reference"
//	@Success		200			{object}	paymentsrepo.Payment
//	@Failure		404			{object}	error
//	@Security		BasicAuth
//	@Router			/admin/payments/{provider}/{ref} [get]
func (app *application) getPaymentHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	ref := chi.URLParam(r, "ref")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pmt, err := app.store.Payments.GetByProviderRef(ctx, provider, ref)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if pmt == nil {
		app.notFoundResponse(w, r, errors.New("payment not found"))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, pmt); err != nil {
		app.internalServerError(w, r, err)
	}
}
