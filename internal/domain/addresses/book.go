package addresses

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Book is one user's address book. It keeps exactly one default address:
// the first address becomes default, and the default can only move through
// SetDefault or an update that promotes another address.
type Book struct {
	mu      sync.Mutex
	userID  int64
	backend Backend
	logger  *zap.SugaredLogger
	cache   []Address
}

func NewBook(userID int64, backend Backend, logger *zap.SugaredLogger) *Book {
	return &Book{userID: userID, backend: backend, logger: logger}
}

func (b *Book) List(ctx context.Context) ([]Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshLocked(ctx)
}

// Get returns a cached address without calling the backend.
func (b *Book) Get(id string) (Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.cache {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

func (b *Book) Default() (Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.cache {
		if a.IsDefault {
			return a, true
		}
	}
	return Address{}, false
}

func (b *Book) Create(ctx context.Context, in Address) (Address, error) {
	if err := validate.Struct(in); err != nil {
		return Address{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.refreshLocked(ctx)
	if err != nil {
		return Address{}, err
	}
	if len(existing) == 0 {
		in.IsDefault = true
	}

	created, err := b.backend.Create(ctx, b.userID, in)
	if err != nil {
		return Address{}, fmt.Errorf("create address: %w", err)
	}
	if _, err := b.refreshLocked(ctx); err != nil {
		b.logger.Warnw("address cache refresh failed", "user_id", b.userID, "error", err)
	}
	return created, nil
}

func (b *Book) Update(ctx context.Context, id string, in Address) (Address, error) {
	if err := validate.Struct(in); err != nil {
		return Address{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.refreshLocked(ctx)
	if err != nil {
		return Address{}, err
	}
	cur, ok := find(existing, id)
	if !ok {
		return Address{}, ErrNotFound
	}

	in.ID = id
	if cur.IsDefault {
		in.IsDefault = true
	}

	updated, err := b.backend.Update(ctx, b.userID, in)
	if err != nil {
		return Address{}, fmt.Errorf("update address: %w", err)
	}
	if _, err := b.refreshLocked(ctx); err != nil {
		b.logger.Warnw("address cache refresh failed", "user_id", b.userID, "error", err)
	}
	return updated, nil
}

// Delete removes an address. The default address may only be deleted when
// it is the last one left.
func (b *Book) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.refreshLocked(ctx)
	if err != nil {
		return err
	}
	cur, ok := find(existing, id)
	if !ok {
		return ErrNotFound
	}
	if cur.IsDefault && len(existing) > 1 {
		return ErrCannotDeleteDefault
	}

	if err := b.backend.Delete(ctx, b.userID, id); err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if _, err := b.refreshLocked(ctx); err != nil {
		b.logger.Warnw("address cache refresh failed", "user_id", b.userID, "error", err)
	}
	return nil
}

func (b *Book) SetDefault(ctx context.Context, id string) (Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.refreshLocked(ctx)
	if err != nil {
		return Address{}, err
	}
	if _, ok := find(existing, id); !ok {
		return Address{}, ErrNotFound
	}

	a, err := b.backend.SetDefault(ctx, b.userID, id)
	if err != nil {
		return Address{}, fmt.Errorf("set default address: %w", err)
	}
	if _, err := b.refreshLocked(ctx); err != nil {
		b.logger.Warnw("address cache refresh failed", "user_id", b.userID, "error", err)
	}
	return a, nil
}

func (b *Book) refreshLocked(ctx context.Context) ([]Address, error) {
	list, err := b.backend.List(ctx, b.userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	b.cache = list
	out := make([]Address, len(list))
	copy(out, list)
	return out, nil
}

func find(list []Address, id string) (Address, bool) {
	for _, a := range list {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}
