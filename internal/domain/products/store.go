package products

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

// GetByID returns an active product with its inventory snapshot.
func (r *Repository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.q.QueryRow(ctx, `
SELECT id, name, COALESCE(image_url, ''), price_cents,
       COALESCE(sizes, '{}'), COALESCE(colors, '{}'),
       track_inventory, stock_quantity, is_active
FROM products
WHERE id = $1 AND is_active = true`, id).
		Scan(&p.ID, &p.Name, &p.ImageURL, &p.PriceCents,
			&p.Sizes, &p.Colors,
			&p.Inventory.Tracked, &p.Inventory.Quantity, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}
