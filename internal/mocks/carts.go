package mocks

import (
	"context"
	"sync"

	"storefront/internal/domain/carts"
)

// MemoryCartBackend is an in-memory carts.Backend that counts clears.
type MemoryCartBackend struct {
	mu     sync.Mutex
	lines  map[string]map[string]carts.CartItem
	order  map[string][]string
	clears int
}

func NewMemoryCartBackend() *MemoryCartBackend {
	return &MemoryCartBackend{
		lines: make(map[string]map[string]carts.CartItem),
		order: make(map[string][]string),
	}
}

func (b *MemoryCartBackend) Load(_ context.Context, owner string) ([]carts.CartItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]carts.CartItem, 0, len(b.order[owner]))
	for _, id := range b.order[owner] {
		out = append(out, b.lines[owner][id])
	}
	return out, nil
}

func (b *MemoryCartBackend) Upsert(_ context.Context, owner string, item carts.CartItem) (carts.CartItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lines[owner] == nil {
		b.lines[owner] = make(map[string]carts.CartItem)
	}
	if _, ok := b.lines[owner][item.ItemID]; !ok {
		b.order[owner] = append(b.order[owner], item.ItemID)
	}
	b.lines[owner][item.ItemID] = item
	return item, nil
}

func (b *MemoryCartBackend) Remove(_ context.Context, owner, itemID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lines[owner], itemID)
	ids := b.order[owner][:0]
	for _, id := range b.order[owner] {
		if id != itemID {
			ids = append(ids, id)
		}
	}
	b.order[owner] = ids
	return nil
}

func (b *MemoryCartBackend) Clear(_ context.Context, owner string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clears++
	delete(b.lines, owner)
	delete(b.order, owner)
	return nil
}

func (b *MemoryCartBackend) Clears() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clears
}
