package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrIntentAlreadyConfirmed = errors.New("payment intent already confirmed")

// DeclineError is a card rejected by the issuer or the provider's risk checks.
type DeclineError struct {
	Code    string
	Message string
}

func (e *DeclineError) Error() string { return e.Message }

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type CardProvider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency, reference string) (Intent, error)
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
}

type CardStrategy struct {
	provider CardProvider
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewCardStrategy(provider CardProvider, logger *zap.SugaredLogger) *CardStrategy {
	return &CardStrategy{provider: provider, logger: logger, now: time.Now}
}

// CreateIntent opens an intent for amountCents in minor units.
func (s *CardStrategy) CreateIntent(ctx context.Context, amountCents int64, currency, reference string) (Intent, error) {
	if amountCents <= 0 {
		return Intent{}, &PaymentError{Method: MethodCard, Message: "amount must be greater than zero"}
	}
	in, err := s.provider.CreateIntent(ctx, amountCents, strings.ToLower(currency), reference)
	if err != nil {
		return Intent{}, &PaymentError{Method: MethodCard, Message: "could not start card payment", Err: err}
	}
	return in, nil
}

func (s *CardStrategy) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Card == nil || req.Card.PaymentMethodID == "" {
		return Result{}, &PaymentError{Method: MethodCard, Message: "card details are required"}
	}
	intentID := IntentIDFromSecret(req.ClientSecret)
	if intentID == "" {
		return Result{}, &PaymentError{Method: MethodCard, Message: "payment intent is missing"}
	}

	in, err := s.provider.ConfirmIntent(ctx, intentID, req.Card.PaymentMethodID)
	if errors.Is(err, ErrIntentAlreadyConfirmed) {
		s.logger.Infow("intent already confirmed, retrieving", "intent", intentID)
		in, err = s.provider.RetrieveIntent(ctx, intentID)
	}
	if err != nil {
		var decline *DeclineError
		if errors.As(err, &decline) {
			return Result{}, &PaymentError{Method: MethodCard, Message: decline.Message, Err: err}
		}
		return Result{}, &PaymentError{Method: MethodCard, Message: "card payment failed", Err: err}
	}

	if req.AmountCents > 0 && in.AmountCents > 0 && in.AmountCents != req.AmountCents {
		return Result{}, &PaymentError{Method: MethodCard, Message: "payment amount does not match order total"}
	}

	switch in.Status {
	case StatusSucceeded:
	case "requires_action":
		return Result{}, &PaymentError{Method: MethodCard, Message: "card requires additional authentication"}
	default:
		return Result{}, &PaymentError{Method: MethodCard, Message: fmt.Sprintf("card payment was not completed (%s)", in.Status)}
	}

	return Result{
		ID:           in.ID,
		Status:       StatusSucceeded,
		UpdateTime:   s.now().UTC().Format(time.RFC3339),
		EmailAddress: req.Email,
		IntentID:     in.ID,
		AmountCents:  in.AmountCents,
		Currency:     in.Currency,
	}, nil
}

// IntentIDFromSecret extracts "pi_123" from "pi_123_secret_abc".
func IntentIDFromSecret(secret string) string {
	if i := strings.Index(secret, "_secret_"); i > 0 {
		return secret[:i]
	}
	return ""
}
