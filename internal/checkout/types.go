package checkout

import (
	"reflect"
	"strings"
	"time"

	"storefront/internal/domain/addresses"
	"storefront/internal/domain/orders"
	"storefront/internal/payments"
	"storefront/internal/pricing"

	"github.com/go-playground/validator/v10"
)

type Step int

const (
	StepShipping     Step = 1
	StepPayment      Step = 2
	StepConfirmation Step = 3
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	}
	return "unknown"
}

const (
	DefaultRedirectDelay = 1500 * time.Millisecond
	DefaultRedirectTo    = "/cart"
	DefaultCurrency      = "USD"

	GenericOrderFailure = "We couldn't place your order. Please try again."
)

// Identity is who is checking out. A zero UserID is a guest.
type Identity struct {
	UserID int64
	Email  string
	Name   string
}

func (i Identity) Authenticated() bool { return i.UserID > 0 }

// GuestInfo is the contact and shipping form a guest fills in.
type GuestInfo struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Address   string `json:"address" validate:"required"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (g GuestInfo) trimmed() GuestInfo {
	return GuestInfo{
		Email:     strings.TrimSpace(g.Email),
		FirstName: strings.TrimSpace(g.FirstName),
		LastName:  strings.TrimSpace(g.LastName),
		Address:   strings.TrimSpace(g.Address),
		Apartment: strings.TrimSpace(g.Apartment),
		City:      strings.TrimSpace(g.City),
		State:     strings.TrimSpace(g.State),
		ZipCode:   strings.TrimSpace(g.ZipCode),
		Country:   strings.TrimSpace(g.Country),
		Phone:     strings.TrimSpace(g.Phone),
	}
}

type State struct {
	CurrentStep    Step                   `json:"currentStep"`
	Address        *addresses.Address     `json:"address,omitempty"`
	Guest          *GuestInfo             `json:"guest,omitempty"`
	ShippingMethod pricing.ShippingMethod `json:"shippingMethod"`
	PaymentMethod  payments.Method        `json:"paymentMethod,omitempty"`
	AgreeToTerms   bool                   `json:"agreeToTerms"`
	Notes          string                 `json:"notes,omitempty"`
	IsProcessing   bool                   `json:"isProcessing"`
	OrderConfirmed bool                   `json:"orderConfirmed"`
	OrderData      *orders.Order          `json:"orderData,omitempty"`
	Redirect       string                 `json:"redirect,omitempty"`
	LastError      string                 `json:"lastError,omitempty"`
}

type Config struct {
	RedirectDelay time.Duration
	RedirectTo    string
	Currency      string
	// OnRedirect runs on the timer goroutine when the empty-cart guard fires.
	OnRedirect func(to string)
}

func (c Config) withDefaults() Config {
	if c.RedirectDelay <= 0 {
		c.RedirectDelay = DefaultRedirectDelay
	}
	if c.RedirectTo == "" {
		c.RedirectTo = DefaultRedirectTo
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	return c
}

// PaymentInput carries what the selected strategy needs from the client.
type PaymentInput struct {
	ClientSecret  string                `json:"clientSecret,omitempty"`
	Card          *payments.CardDetails `json:"card,omitempty"`
	PayPalOrderID string                `json:"paypalOrderId,omitempty"`
}

// Confirmation is the read-only receipt built from the placed order.
type Confirmation struct {
	OrderNumber     string                 `json:"orderNumber"`
	Items           []orders.Item          `json:"items"`
	Pricing         orders.Pricing         `json:"pricing"`
	ShippingAddress orders.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	PaymentStatus   string                 `json:"paymentStatus"`
	IsPaid          bool                   `json:"isPaid"`
	CouponCode      string                 `json:"couponCode,omitempty"`
	PlacedAt        time.Time              `json:"placedAt"`
}
