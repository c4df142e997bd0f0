package carts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the Postgres cart backend. Owners are session keys
// ("user:42", "guest:<token>"); each owner has at most one active cart.
type Repository struct {
	db  dbx.Querier
	ttl time.Duration
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q, ttl: 7 * 24 * time.Hour}
}

func NewRepositoryWithTTL(q dbx.Querier, ttl time.Duration) *Repository {
	return &Repository{db: q, ttl: ttl}
}

func (r *Repository) bumpTTL(ctx context.Context, cartID int64) {
	_, _ = r.db.Exec(ctx, `
UPDATE carts
SET expires_at = $2,
    updated_at = now()
WHERE id = $1
  AND status = 'active'
`, cartID, time.Now().Add(r.ttl))
}

func (r *Repository) activeCart(ctx context.Context, owner string) (int64, bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
SELECT id
FROM carts
WHERE owner_key = $1
  AND status = 'active'
  AND (expires_at IS NULL OR expires_at > now())
ORDER BY id DESC
LIMIT 1
`, owner).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select active cart: %w", err)
	}
	return id, true, nil
}

// ensureCart returns the owner's active cart, creating it when missing.
// Expired carts are abandoned first so they stop blocking the unique index
// on (owner_key) WHERE status = 'active'.
func (r *Repository) ensureCart(ctx context.Context, owner string) (int64, error) {
	const maxAttempts = 2

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if id, ok, err := r.activeCart(ctx, owner); err != nil {
			return 0, err
		} else if ok {
			return id, nil
		}

		if _, err := r.db.Exec(ctx, `
UPDATE carts
SET status = 'abandoned', updated_at = now()
WHERE owner_key = $1
  AND status = 'active'
  AND expires_at IS NOT NULL
  AND expires_at <= now()
`, owner); err != nil {
			return 0, fmt.Errorf("abandon expired cart: %w", err)
		}

		var id int64
		err := r.db.QueryRow(ctx, `
INSERT INTO carts (owner_key, status, expires_at)
VALUES ($1, 'active', $2)
RETURNING id
`, owner, time.Now().Add(r.ttl)).Scan(&id)
		if err == nil {
			return id, nil
		}

		// A concurrent request created the cart first; read the winner.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return 0, fmt.Errorf("create cart: %w", err)
	}
	return 0, fmt.Errorf("create cart: owner %s kept conflicting", owner)
}

func (r *Repository) Load(ctx context.Context, owner string) ([]CartItem, error) {
	cartID, ok, err := r.activeCart(ctx, owner)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
SELECT item_key, product_id, name, COALESCE(image_url, ''),
       COALESCE(size, ''), COALESCE(color, ''),
       quantity, price_cents, max_stock
FROM cart_items
WHERE cart_id = $1
ORDER BY id ASC
`, cartID)
	if err != nil {
		return nil, fmt.Errorf("load cart items: %w", err)
	}
	defer rows.Close()

	var out []CartItem
	for rows.Next() {
		var (
			it          CartItem
			size, color string
		)
		if err := rows.Scan(&it.ItemID, &it.ProductID, &it.Name, &it.Image,
			&size, &color, &it.Quantity, &it.PriceCents, &it.MaxStock); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		it.Variant = copyVariant(&Variant{Size: size, Color: color})
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.bumpTTL(ctx, cartID)
	return out, nil
}

// Upsert writes the line with an absolute quantity. Stock is re-checked
// against the products table, which is the authoritative inventory.
func (r *Repository) Upsert(ctx context.Context, owner string, item CartItem) (CartItem, error) {
	cartID, err := r.ensureCart(ctx, owner)
	if err != nil {
		return CartItem{}, err
	}

	var tracked bool
	var stock int
	err = r.db.QueryRow(ctx, `
SELECT track_inventory, stock_quantity
FROM products
WHERE id = $1 AND is_active = true
`, item.ProductID).Scan(&tracked, &stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return CartItem{}, fmt.Errorf("%w: product %s is no longer available", ErrOutOfStock, item.ProductID)
	}
	if err != nil {
		return CartItem{}, fmt.Errorf("check stock: %w", err)
	}
	if tracked && item.Quantity > stock {
		return CartItem{}, fmt.Errorf("%w: only %d available", ErrInsufficientStock, stock)
	}

	var size, color *string
	if item.Variant != nil {
		size, color = nullable(item.Variant.Size), nullable(item.Variant.Color)
	}

	out := item
	err = r.db.QueryRow(ctx, `
INSERT INTO cart_items (cart_id, item_key, product_id, name, image_url, size, color, quantity, price_cents, max_stock)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
ON CONFLICT (cart_id, item_key)
DO UPDATE SET quantity = EXCLUDED.quantity,
              max_stock = EXCLUDED.max_stock,
              updated_at = now()
RETURNING quantity, price_cents
`, cartID, item.ItemID, item.ProductID, item.Name, item.Image, size, color,
		item.Quantity, item.PriceCents, item.MaxStock).Scan(&out.Quantity, &out.PriceCents)
	if err != nil {
		return CartItem{}, fmt.Errorf("upsert cart item: %w", err)
	}

	r.bumpTTL(ctx, cartID)
	return out, nil
}

func (r *Repository) Remove(ctx context.Context, owner, itemID string) error {
	_, err := r.db.Exec(ctx, `
DELETE FROM cart_items ci
USING carts c
WHERE ci.cart_id = c.id
  AND c.owner_key = $1
  AND c.status = 'active'
  AND ci.item_key = $2
`, owner, itemID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, owner string) error {
	_, err := r.db.Exec(ctx, `
DELETE FROM cart_items ci
USING carts c
WHERE ci.cart_id = c.id
  AND c.owner_key = $1
  AND c.status = 'active'
`, owner)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
