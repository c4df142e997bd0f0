package addresses

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("address not found")
	ErrCannotDeleteDefault = errors.New("cannot delete the default address; choose another default first")
)

type Type string

const (
	TypeHome  Type = "home"
	TypeWork  Type = "work"
	TypeOther Type = "other"
)

type Address struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"-"`
	Type         Type      `json:"type" validate:"required,oneof=home work other"`
	Name         string    `json:"name" validate:"required,max=120"`
	Street       string    `json:"street" validate:"required,max=200"`
	Apartment    string    `json:"apartment,omitempty" validate:"max=100"`
	City         string    `json:"city" validate:"required,max=100"`
	State        string    `json:"state" validate:"required,max=100"`
	Zip          string    `json:"zip" validate:"required,max=20"`
	Country      string    `json:"country" validate:"required,max=100"`
	Phone        string    `json:"phone" validate:"required,max=30"`
	IsDefault    bool      `json:"is_default"`
	Instructions string    `json:"instructions,omitempty" validate:"max=500"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Backend stores addresses keyed by id. Create and Update with IsDefault set
// must demote every other address of the user in the same statement.
type Backend interface {
	List(ctx context.Context, userID int64) ([]Address, error)
	Create(ctx context.Context, userID int64, a Address) (Address, error)
	Update(ctx context.Context, userID int64, a Address) (Address, error)
	Delete(ctx context.Context, userID int64, id string) error
	SetDefault(ctx context.Context, userID int64, id string) (Address, error)
}
