package products

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// DefaultMaxStock bounds the quantity of a product whose inventory is not tracked.
const DefaultMaxStock = 10

var (
	ErrNotFound       = errors.New("product not found")
	ErrUnknownVariant = errors.New("variant not offered for product")
)

type Inventory struct {
	Tracked  bool `json:"tracked"`
	Quantity int  `json:"quantity"`
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Sizes      []string  `json:"sizes,omitempty"`
	Colors     []string  `json:"colors,omitempty"`
	Inventory  Inventory `json:"inventory"`
	IsActive   bool      `json:"is_active"`
}

// MaxStock is the largest quantity of this product a single cart line may hold.
func (p Product) MaxStock() int {
	if p.Inventory.Tracked {
		return max(p.Inventory.Quantity, 0)
	}
	return DefaultMaxStock
}

// CheckVariant reports whether size and color are offered. Empty values are
// accepted for products without that dimension.
func (p Product) CheckVariant(size, color string) error {
	if size != "" && !slices.Contains(p.Sizes, size) {
		return fmt.Errorf("%w: size %q", ErrUnknownVariant, size)
	}
	if color != "" && !slices.Contains(p.Colors, color) {
		return fmt.Errorf("%w: color %q", ErrUnknownVariant, color)
	}
	return nil
}

type Store interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}
