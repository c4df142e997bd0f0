package storage

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/domain/addresses"
	"storefront/internal/domain/carts"
	"storefront/internal/domain/coupons"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/domain/products"
	"storefront/internal/domain/pushtokens"
	"storefront/internal/domain/users"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool         *pgxpool.Pool // IMPORTANT: set the pool so WithSalesTx works
	orderNumbers *orders.OrderNumberGenerator

	Users      users.Store
	Products   products.Store
	Carts      carts.Backend
	Coupons    *coupons.Repository
	Addresses  addresses.Backend
	Orders     orders.Store
	Payments   paymentsrepo.Store
	PushTokens pushtokens.Store
}

func NewContainer(db *pgxpool.Pool, gen *orders.OrderNumberGenerator) *Container {
	return &Container{
		pool:         db,
		orderNumbers: gen,
		Users:        users.NewRepository(db),
		Products:     products.NewRepository(db),
		Carts:        carts.NewRepository(db),
		Coupons:      coupons.NewRepository(db),
		Addresses:    addresses.NewRepository(db),
		Orders:       orders.NewRepository(db, gen),
		Payments:     paymentsrepo.NewRepository(db),
		PushTokens:   pushtokens.NewRepository(db),
	}
}

// SalesTx is a temporary, tx-scoped set of repos for atomic units of work.
type SalesTx struct {
	Orders   *orders.Repository
	Coupons  *coupons.Repository
	Payments *paymentsrepo.Repository
}

// WithSalesTx runs a sales unit-of-work atomically.
func (c *Container) WithSalesTx(ctx context.Context, fn func(s *SalesTx) error) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil (did you forget to set pool in NewContainer?)")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &SalesTx{
		Orders:   orders.NewRepository(tx, c.orderNumbers),
		Coupons:  coupons.NewRepository(tx),
		Payments: paymentsrepo.NewRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// OrderBackend creates orders atomically with coupon redemption and the
// payment journal link.
func (c *Container) OrderBackend() orders.Backend {
	return orderBackend{c: c}
}

type orderBackend struct{ c *Container }

func (b orderBackend) Create(ctx context.Context, userID *int64, p orders.Payload) (*orders.Order, error) {
	var created *orders.Order

	err := b.c.WithSalesTx(ctx, func(s *SalesTx) error {
		o, err := s.Orders.Create(ctx, userID, p)
		if err != nil {
			return err
		}

		if p.CouponCode != "" {
			if err := s.Coupons.Redeem(ctx, p.CouponCode); err != nil {
				var rej *coupons.RejectionError
				if errors.As(err, &rej) {
					return &orders.RejectedError{Message: "Coupon " + p.CouponCode + " is no longer valid"}
				}
				return err
			}
		}

		if ref := paymentReference(p); ref != "" {
			if err := s.Payments.AttachToOrder(ctx, p.PaymentMethod, ref, o.ID); err != nil {
				return err
			}
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func paymentReference(p orders.Payload) string {
	if p.PaymentResult != nil && p.PaymentResult.ID != "" {
		return p.PaymentResult.ID
	}
	return p.PaymentIntentID
}
