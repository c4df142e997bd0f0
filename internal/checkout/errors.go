package checkout

import (
	"errors"

	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/coupons"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/products"
	"storefront/internal/payments"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingAddress           = errors.New("please select a shipping address")
	ErrIncompleteGuestInfo      = errors.New("please fill in all required fields")
	ErrInvalidEmail             = errors.New("please enter a valid email address")
	ErrEmptyCart                = errors.New("your cart is empty")
	ErrInvalidTransition        = errors.New("checkout step transition not allowed")
	ErrTermsNotAccepted         = errors.New("please accept the terms and conditions")
	ErrAlreadyProcessing        = errors.New("order is already being processed")
	ErrOrderAlreadyPlaced       = errors.New("order has already been placed")
	ErrUnsupportedPaymentMethod = errors.New("payment method is not supported")
	ErrPaymentMethodRequired    = errors.New("please choose a payment method")
	ErrNotConfirmed             = errors.New("no order has been confirmed yet")
	ErrPaymentAmountChanged     = errors.New("your cart changed after payment was taken, restore it or contact support")
	ErrPaymentResultRequired    = errors.New("payment has not been completed")
)

// OrderError is a failed order creation. Message is safe to show the buyer.
type OrderError struct {
	Message string
	Err     error
}

func (e *OrderError) Error() string { return e.Message }

func (e *OrderError) Unwrap() error { return e.Err }

// ReconciliationError means money was taken but no order exists.
type ReconciliationError struct {
	Method    payments.Method
	PaymentID string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return "payment completed but order failed, contact support"
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

type Kind string

const (
	KindValidation     Kind = "validation"
	KindStock          Kind = "stock"
	KindConflict       Kind = "conflict"
	KindPayment        Kind = "payment"
	KindReconciliation Kind = "reconciliation"
	KindNotFound       Kind = "not_found"
	KindBackend        Kind = "backend"
)

// KindOf classifies err for the caller deciding what to show.
func KindOf(err error) Kind {
	var (
		recon  *ReconciliationError
		payErr *payments.PaymentError
		verrs  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &recon):
		return KindReconciliation
	case errors.As(err, &payErr):
		return KindPayment
	case errors.As(err, &verrs),
		errors.Is(err, ErrMissingAddress),
		errors.Is(err, ErrIncompleteGuestInfo),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrTermsNotAccepted),
		errors.Is(err, ErrPaymentMethodRequired),
		errors.Is(err, ErrPaymentResultRequired),
		errors.Is(err, ErrUnsupportedPaymentMethod),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, carts.ErrInvalidQuantity),
		errors.Is(err, products.ErrUnknownVariant),
		errors.Is(err, coupons.ErrEmptyCode),
		errors.Is(err, coupons.ErrInvalidCoupon):
		return KindValidation
	case errors.Is(err, carts.ErrOutOfStock),
		errors.Is(err, carts.ErrInsufficientStock):
		return KindStock
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAlreadyProcessing),
		errors.Is(err, ErrOrderAlreadyPlaced),
		errors.Is(err, ErrPaymentAmountChanged),
		errors.Is(err, carts.ErrCartLocked),
		errors.Is(err, carts.ErrCartSyncing),
		errors.Is(err, addresses.ErrCannotDeleteDefault):
		return KindConflict
	case errors.Is(err, ErrNotConfirmed),
		errors.Is(err, carts.ErrItemNotFound),
		errors.Is(err, addresses.ErrNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, products.ErrNotFound):
		return KindNotFound
	}
	return KindBackend
}
