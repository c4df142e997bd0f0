package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/domain/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderConfirmed(t *testing.T) {
	uid := int64(5)
	o := &orders.Order{
		OrderNumber:     "SHOP-AB12-CD34",
		UserID:          &uid,
		ShippingAddress: orders.ShippingAddress{Email: "ada@example.com"},
		PaymentMethod:   "stripe",
		IsPaid:          true,
		Pricing:         orders.Pricing{TotalPrice: 45.36},
		Items: []orders.Item{
			{Product: "hoodie", Quantity: 1, Size: "M"},
			{Product: "cap", Quantity: 2},
		},
	}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))

	ev := NewOrderConfirmed(o, now)

	assert.Equal(t, TypeOrderConfirmed, ev.Type)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())
	require.Len(t, ev.Lines, 2)
	assert.Equal(t, OrderLine{ProductID: "cap", Quantity: 2}, ev.Lines[1])

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"order_number":"SHOP-AB12-CD34"`)
	assert.Contains(t, string(raw), `"user_id":5`)
}

func TestNewOrderConfirmedGuestOmitsUser(t *testing.T) {
	ev := NewOrderConfirmed(&orders.Order{OrderNumber: "SHOP-1"}, time.Now())
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "user_id")
	assert.NotNil(t, ev.Lines)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishOrderConfirmed(context.Background(), OrderConfirmed{}))
}
