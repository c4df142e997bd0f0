package mailer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"
)

type flakyDialer struct {
	failures int
	calls    int
	sent     []*mail.Message
}

func (d *flakyDialer) DialAndSend(m ...*mail.Message) error {
	d.calls++
	if d.calls <= d.failures {
		return errors.New("421 try again later")
	}
	d.sent = append(d.sent, m...)
	return nil
}

type item struct {
	Name     string
	Size     string
	Color    string
	Quantity int
	Price    float64
}

func confirmationData() any {
	type pricing struct{ ItemsPrice, DiscountPrice, ShippingPrice, TaxPrice, TotalPrice float64 }
	type address struct{ Name, Address, Apartment, City, State, ZipCode string }
	type order struct {
		OrderNumber     string
		Items           []item
		Pricing         pricing
		ShippingAddress address
		CouponCode      string
		PaymentStatus   string
		IsPaid          bool
	}
	return struct {
		Name  string
		Order order
	}{
		Name: "Ada",
		Order: order{
			OrderNumber:     "SHOP-AB12-CD34",
			Items:           []item{{Name: "Hoodie", Size: "M", Quantity: 1, Price: 30}},
			Pricing:         pricing{ItemsPrice: 30, TaxPrice: 2.4, TotalPrice: 32.4},
			ShippingAddress: address{Name: "Ada", Address: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"},
			PaymentStatus:   "pending",
		},
	}
}

func TestRenderOrderConfirmation(t *testing.T) {
	subject, body, err := render(OrderConfirmationTemplate, confirmationData())
	require.NoError(t, err)

	assert.Equal(t, "Your order SHOP-AB12-CD34 is confirmed", subject)
	assert.Contains(t, body, "Hoodie (M)")
	assert.Contains(t, body, "$32.40")
	assert.Contains(t, body, "Payment status: pending")
	assert.NotContains(t, body, "Coupon")
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	d := &flakyDialer{failures: 2}
	c := &SMTPClient{dialer: d, fromEmail: "orders@example.com", backoff: time.Millisecond}

	status, err := c.Send(OrderConfirmationTemplate, "Ada", "ada@example.com", confirmationData())
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, 3, d.calls)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"Your order SHOP-AB12-CD34 is confirmed"}, d.sent[0].GetHeader("Subject"))
}

func TestSendGivesUp(t *testing.T) {
	d := &flakyDialer{failures: 10}
	c := &SMTPClient{dialer: d, fromEmail: "orders@example.com", backoff: time.Millisecond}

	status, err := c.Send(OrderConfirmationTemplate, "Ada", "ada@example.com", confirmationData())
	assert.Error(t, err)
	assert.Equal(t, -1, status)
	assert.Equal(t, maxRetries, d.calls)
}

func TestSendUnknownTemplate(t *testing.T) {
	c := &SMTPClient{dialer: &flakyDialer{}, fromEmail: "orders@example.com"}
	_, err := c.Send("missing.tmpl", "Ada", "ada@example.com", nil)
	assert.Error(t, err)
}

func TestNewSMTPClientRequiresHost(t *testing.T) {
	_, err := NewSMTPClient("", 587, "", "", "orders@example.com")
	assert.Error(t, err)
}
