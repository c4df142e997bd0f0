package orders

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("order not found")

// RejectedError carries the message of a {success: false, message} response.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

type ShippingAddress struct {
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Address      string `json:"address"`
	Apartment    string `json:"apartment,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country,omitempty"`
	Phone        string `json:"phone"`
	Instructions string `json:"instructions,omitempty"`
}

type Item struct {
	Product  string  `json:"product"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Size     string  `json:"size,omitempty"`
	Color    string  `json:"color,omitempty"`
}

type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address,omitempty"`
}

// Paid reports whether the provider captured the money.
func (r *PaymentResult) Paid() bool {
	if r == nil {
		return false
	}
	return r.Status == "succeeded" || strings.EqualFold(r.Status, "COMPLETED")
}

// Payload is the order create request. Field names are a wire contract.
type Payload struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Items           []Item          `json:"items"`
	ItemsPrice      float64         `json:"itemsPrice"`
	ShippingPrice   float64         `json:"shippingPrice"`
	TaxPrice        float64         `json:"taxPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// Validate returns a *RejectedError describing the first problem found.
func (p Payload) Validate() error {
	switch {
	case len(p.Items) == 0:
		return &RejectedError{Message: "Order has no items"}
	case p.PaymentMethod == "":
		return &RejectedError{Message: "Payment method is required"}
	case p.ShippingAddress.Name == "" || p.ShippingAddress.Address == "" || p.ShippingAddress.City == "":
		return &RejectedError{Message: "Shipping address is incomplete"}
	case p.TotalPrice < 0:
		return &RejectedError{Message: "Order total cannot be negative"}
	}
	for _, it := range p.Items {
		if it.Quantity <= 0 || it.Price < 0 {
			return &RejectedError{Message: "Order contains an invalid item"}
		}
	}
	return nil
}

type Pricing struct {
	ItemsPrice    float64 `json:"itemsPrice"`
	DiscountPrice float64 `json:"discountPrice"`
	ShippingPrice float64 `json:"shippingPrice"`
	TaxPrice      float64 `json:"taxPrice"`
	TotalPrice    float64 `json:"totalPrice"`
}

type Order struct {
	ID              int64           `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          *int64          `json:"userId,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	Items           []Item          `json:"items,omitempty"`
	Pricing         Pricing         `json:"pricing"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Status          string          `json:"status"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Backend creates orders. A rejected payload yields *RejectedError.
type Backend interface {
	Create(ctx context.Context, userID *int64, p Payload) (*Order, error)
}

type Store interface {
	Backend
	ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Order, int, error)
	GetByNumberForUser(ctx context.Context, userID int64, orderNumber string) (*Order, error)
}
