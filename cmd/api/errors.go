package main

import (
	"errors"
	"net/http"

	"storefront/internal/checkout"
	"storefront/internal/payments"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, err.Error())
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) unprocessableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unprocessable request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

func (app *application) paymentRequiredResponse(w http.ResponseWriter, r *http.Request, err *payments.PaymentError) {
	app.logger.Warnw("payment failed", "method", r.Method, "path", r.URL.Path, "provider", err.Method, "error", err.Error())

	writeJSONError(w, http.StatusPaymentRequired, err.Message)
}

// reconciliationResponse is for money taken without an order. The payment
// id is returned so support can find it.
func (app *application) reconciliationResponse(w http.ResponseWriter, r *http.Request, err *checkout.ReconciliationError) {
	app.logger.Errorw("payment needs reconciliation", "method", r.Method, "path", r.URL.Path,
		"provider", err.Method, "payment_id", err.PaymentID, "error", err.Err)

	type envelope struct {
		Success   bool   `json:"success"`
		Message   string `json:"message"`
		Status    int    `json:"status"`
		PaymentID string `json:"payment_id"`
	}
	writeJSON(w, http.StatusBadGateway, &envelope{
		Success:   false,
		Message:   err.Error(),
		Status:    http.StatusBadGateway,
		PaymentID: err.PaymentID,
	})
}

// outcomeErrorResponse maps a cart, coupon, address or checkout error to a
// status code.
func (app *application) outcomeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		recon    *checkout.ReconciliationError
		payErr   *payments.PaymentError
		orderErr *checkout.OrderError
	)

	switch checkout.KindOf(err) {
	case checkout.KindReconciliation:
		errors.As(err, &recon)
		app.reconciliationResponse(w, r, recon)
	case checkout.KindPayment:
		errors.As(err, &payErr)
		app.paymentRequiredResponse(w, r, payErr)
	case checkout.KindValidation:
		app.badRequestResponse(w, r, err)
	case checkout.KindStock, checkout.KindConflict:
		app.conflictResponse(w, r, err)
	case checkout.KindNotFound:
		app.notFoundResponse(w, r, err)
	default:
		if errors.As(err, &orderErr) {
			app.unprocessableResponse(w, r, orderErr)
			return
		}
		app.internalServerError(w, r, err)
	}
}
