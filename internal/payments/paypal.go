package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ModeSDK      = "sdk"
	ModeRedirect = "redirect"

	DefaultPayPalLoadTimeout = 8 * time.Second
)

type PayPalOrder struct {
	ID         string
	Status     string
	ApproveURL string
	PayerEmail string
	UpdateTime string

	// Captured amount, set by CaptureOrder.
	AmountCents int64
	Currency    string
}

type PayPalProvider interface {
	CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (PayPalOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (PayPalOrder, error)
	ApproveURL(orderID string) string
}

// Approval tells the client how to collect buyer approval.
type Approval struct {
	OrderID    string `json:"orderId"`
	ApproveURL string `json:"approveUrl"`
	Mode       string `json:"mode"`
}

type PayPalStrategy struct {
	provider    PayPalProvider
	loadTimeout time.Duration
	logger      *zap.SugaredLogger
	now         func() time.Time
}

func NewPayPalStrategy(provider PayPalProvider, loadTimeout time.Duration, logger *zap.SugaredLogger) *PayPalStrategy {
	if loadTimeout <= 0 {
		loadTimeout = DefaultPayPalLoadTimeout
	}
	return &PayPalStrategy{provider: provider, loadTimeout: loadTimeout, logger: logger, now: time.Now}
}

// Begin creates the provider order. If that does not finish within the load
// timeout the buyer is sent to the redirect flow instead.
func (s *PayPalStrategy) Begin(ctx context.Context, amountCents int64, currency, reference string) (Approval, error) {
	if amountCents <= 0 {
		return Approval{}, &PaymentError{Method: MethodPayPal, Message: "amount must be greater than zero"}
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	order, err := s.provider.CreateOrder(loadCtx, amountCents, currency, reference)
	cancel()
	if err == nil {
		return Approval{OrderID: order.ID, ApproveURL: order.ApproveURL, Mode: ModeSDK}, nil
	}

	s.logger.Warnw("paypal sdk path unavailable, falling back to redirect", "reference", reference, "error", err)

	order, err = s.provider.CreateOrder(ctx, amountCents, currency, reference)
	if err != nil {
		return Approval{}, &PaymentError{Method: MethodPayPal, Message: "PayPal is unavailable, please choose another payment method", Err: err}
	}
	link := order.ApproveURL
	if link == "" {
		link = s.provider.ApproveURL(order.ID)
	}
	return Approval{OrderID: order.ID, ApproveURL: link, Mode: ModeRedirect}, nil
}

// Fallback returns the manual redirect link for an existing order.
func (s *PayPalStrategy) Fallback(_ context.Context, orderID string) (Approval, error) {
	if orderID == "" {
		return Approval{}, &PaymentError{Method: MethodPayPal, Message: "PayPal order is missing"}
	}
	return Approval{OrderID: orderID, ApproveURL: s.provider.ApproveURL(orderID), Mode: ModeRedirect}, nil
}

func (s *PayPalStrategy) Execute(ctx context.Context, req Request) (Result, error) {
	if req.PayPalOrderID == "" {
		return Result{}, &PaymentError{Method: MethodPayPal, Message: "PayPal order is missing"}
	}

	order, err := s.provider.CaptureOrder(ctx, req.PayPalOrderID)
	if err != nil {
		return Result{}, &PaymentError{Method: MethodPayPal, Message: "PayPal payment failed", Err: err}
	}
	if !strings.EqualFold(order.Status, StatusCompleted) {
		return Result{}, &PaymentError{Method: MethodPayPal, Message: fmt.Sprintf("PayPal payment was not completed (%s)", order.Status)}
	}
	if req.AmountCents > 0 && order.AmountCents != req.AmountCents {
		s.logger.Errorw("paypal capture amount mismatch", "order", order.ID, "captured", order.AmountCents, "expected", req.AmountCents)
		return Result{}, &PaymentError{Method: MethodPayPal, Message: "payment amount does not match order total"}
	}
	if req.Currency != "" && order.Currency != "" && !strings.EqualFold(order.Currency, req.Currency) {
		return Result{}, &PaymentError{Method: MethodPayPal, Message: "payment currency does not match order currency"}
	}

	updated := order.UpdateTime
	if updated == "" {
		updated = s.now().UTC().Format(time.RFC3339)
	}
	email := order.PayerEmail
	if email == "" {
		email = req.Email
	}
	return Result{
		ID:           order.ID,
		Status:       StatusCompleted,
		UpdateTime:   updated,
		EmailAddress: email,
		AmountCents:  order.AmountCents,
		Currency:     strings.ToLower(order.Currency),
	}, nil
}
