package payments

import (
	"context"
	"strings"
)

type Method string

const (
	MethodCard     Method = "stripe"
	MethodPayPal   Method = "paypal"
	MethodCOD      Method = "cash_on_delivery"
	MethodApplePay Method = "apple_pay"
)

// Known reports whether m is a method the storefront recognises, registered or not.
func (m Method) Known() bool {
	switch m {
	case MethodCard, MethodPayPal, MethodCOD, MethodApplePay:
		return true
	}
	return false
}

// SettlesLater is true for methods collected after the order is placed.
func (m Method) SettlesLater() bool {
	return m == MethodCOD
}

const (
	StatusSucceeded = "succeeded"
	StatusCompleted = "COMPLETED"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

type CardDetails struct {
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

type Request struct {
	Method        Method
	AmountCents   int64
	Currency      string
	Email         string
	Reference     string
	ClientSecret  string // card: secret returned by CreateIntent
	Card          *CardDetails
	PayPalOrderID string
}

// Result is serialised as the order's paymentResult.
type Result struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address,omitempty"`

	Method      Method `json:"-"`
	IntentID    string `json:"-"`
	AmountCents int64  `json:"-"`
	Currency    string `json:"-"`
}

// Settled reports whether money has moved at the provider.
func (r Result) Settled() bool {
	return r.Status == StatusSucceeded || strings.EqualFold(r.Status, StatusCompleted)
}

// Covers reports whether the result paid exactly amountCents in currency.
func (r Result) Covers(amountCents int64, currency string) bool {
	if r.AmountCents != amountCents {
		return false
	}
	return r.Currency == "" || currency == "" || strings.EqualFold(r.Currency, currency)
}

// PaymentError is the single failure shape of every strategy.
type PaymentError struct {
	Method  Method
	Message string
	Err     error
}

func (e *PaymentError) Error() string { return e.Message }

func (e *PaymentError) Unwrap() error { return e.Err }

type Strategy interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Journal persists payment attempts. paymentsrepo.Repository implements it.
type Journal interface {
	Record(ctx context.Context, provider, ref string, amountCents int64, currency, status string, payload any) error
	FlagForReconciliation(ctx context.Context, provider, ref, note string) error
}
