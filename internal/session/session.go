package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/coupons"
	"storefront/internal/domain/orders"
	"storefront/internal/pricing"

	"go.uber.org/zap"
)

var (
	ErrNoIdentity = errors.New("request carries neither a user nor a guest token")
	ErrNoCheckout = errors.New("checkout has not been started")
)

const DefaultIdleTTL = 2 * time.Hour

// Deps are the shared backends every session is wired to.
type Deps struct {
	Carts      carts.Backend
	Coupons    coupons.Backend
	Addresses  addresses.Backend
	Orders     orders.Backend
	Payments   checkout.PaymentExecutor
	Reconciler checkout.Reconciler
	Calculator pricing.Calculator
	Checkout   checkout.Config
}

// Session is one shopper's cart, coupon resolver, address book and checkout.
// Addresses is nil for guests.
type Session struct {
	Key       string
	Identity  checkout.Identity
	Cart      *carts.Store
	Coupons   *coupons.Resolver
	Addresses *addresses.Book

	deps   *Deps
	logger *zap.SugaredLogger

	mu       sync.Mutex
	checkout *checkout.Orchestrator
	lastSeen time.Time
}

// Checkout returns the running orchestrator.
func (s *Session) Checkout() (*checkout.Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	return s.checkout, nil
}

// ResetCheckout starts a checkout, or returns the running one unless it has
// already placed its order. Authenticated shoppers get their default address
// preselected.
func (s *Session) ResetCheckout(ctx context.Context) *checkout.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkout != nil && !s.checkout.Terminal() {
		return s.checkout
	}
	if s.checkout != nil {
		s.checkout.Close()
	}

	o := checkout.New(s.Identity, s.Cart, s.deps.Orders, s.deps.Payments, s.deps.Reconciler, s.deps.Checkout, s.logger)
	if s.Addresses != nil {
		if _, err := s.Addresses.List(ctx); err != nil {
			s.logger.Warnw("address preload failed", "session", s.Key, "error", err)
		} else if def, ok := s.Addresses.Default(); ok {
			if err := o.SelectAddress(def); err != nil {
				s.logger.Warnw("default address not selectable", "session", s.Key, "error", err)
			}
		}
	}
	s.checkout = o
	return o
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) close() {
	s.mu.Lock()
	o := s.checkout
	s.checkout = nil
	s.mu.Unlock()
	if o != nil {
		o.Close()
	}
}

// Key names the session for an identity: user:<id> or guest:<token>.
func Key(identity checkout.Identity, guestToken string) (string, error) {
	switch {
	case identity.Authenticated():
		return fmt.Sprintf("user:%d", identity.UserID), nil
	case guestToken != "":
		return "guest:" + guestToken, nil
	}
	return "", ErrNoIdentity
}
