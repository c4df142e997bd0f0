package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher routes a payment request to the strategy registered for its method.
type Dispatcher struct {
	mu         sync.RWMutex
	strategies map[Method]Strategy
	journal    Journal
	logger     *zap.SugaredLogger
}

func NewDispatcher(journal Journal, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		strategies: make(map[Method]Strategy),
		journal:    journal,
		logger:     logger,
	}
}

func (d *Dispatcher) Register(method Method, s Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strategies[method] = s
}

func (d *Dispatcher) Supports(method Method) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.strategies[method]
	return ok
}

func (d *Dispatcher) Execute(ctx context.Context, req Request) (Result, error) {
	d.mu.RLock()
	s, ok := d.strategies[req.Method]
	d.mu.RUnlock()
	if !ok {
		return Result{}, &PaymentError{Method: req.Method, Message: fmt.Sprintf("payment method not supported: %s", req.Method)}
	}

	res, err := s.Execute(ctx, req)
	if err != nil {
		var pe *PaymentError
		if !errors.As(err, &pe) {
			pe = &PaymentError{Method: req.Method, Message: "payment failed", Err: err}
		}
		if pe.Method == "" {
			pe.Method = req.Method
		}
		d.logger.Warnw("payment failed", "method", req.Method, "reference", req.Reference, "error", pe.Message)
		d.record(ctx, req.Method, failedRef(req), req.AmountCents, req.Currency, StatusFailed, map[string]string{"message": pe.Message})
		return Result{}, pe
	}

	res.Method = req.Method
	if res.AmountCents == 0 {
		res.AmountCents = req.AmountCents
	}
	if res.Currency == "" {
		res.Currency = req.Currency
	}
	d.record(ctx, req.Method, res.ID, res.AmountCents, res.Currency, res.Status, res)
	return res, nil
}

// FlagForReconciliation marks a settled payment whose order could not be created.
func (d *Dispatcher) FlagForReconciliation(ctx context.Context, res Result, note string) error {
	d.logger.Errorw("payment needs reconciliation", "method", res.Method, "payment_id", res.ID, "note", note)
	if d.journal == nil {
		return nil
	}
	return d.journal.FlagForReconciliation(ctx, string(res.Method), res.ID, note)
}

func (d *Dispatcher) record(ctx context.Context, method Method, ref string, amount int64, currency, status string, payload any) {
	if d.journal == nil || ref == "" {
		return
	}
	if err := d.journal.Record(ctx, string(method), ref, amount, currency, status, payload); err != nil {
		d.logger.Errorw("payment journal write failed", "method", method, "ref", ref, "error", err)
	}
}

func failedRef(req Request) string {
	switch {
	case req.PayPalOrderID != "":
		return req.PayPalOrderID
	case req.ClientSecret != "":
		return IntentIDFromSecret(req.ClientSecret)
	}
	return req.Reference
}
