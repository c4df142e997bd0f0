package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain/orders"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const TypeOrderConfirmed = "order.confirmed"

type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

// OrderConfirmed is what fulfilment consumes once an order exists.
type OrderConfirmed struct {
	Type          string      `json:"type"`
	OrderNumber   string      `json:"order_number"`
	UserID        *int64      `json:"user_id,omitempty"`
	Email         string      `json:"email,omitempty"`
	PaymentMethod string      `json:"payment_method"`
	IsPaid        bool        `json:"is_paid"`
	TotalPrice    float64     `json:"total_price"`
	Lines         []OrderLine `json:"lines"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

func NewOrderConfirmed(o *orders.Order, now time.Time) OrderConfirmed {
	ev := OrderConfirmed{
		Type:          TypeOrderConfirmed,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Email:         o.ShippingAddress.Email,
		PaymentMethod: o.PaymentMethod,
		IsPaid:        o.IsPaid,
		TotalPrice:    o.Pricing.TotalPrice,
		Lines:         make([]OrderLine, 0, len(o.Items)),
		OccurredAt:    now.UTC(),
	}
	for _, it := range o.Items {
		ev.Lines = append(ev.Lines, OrderLine{ProductID: it.Product, Quantity: it.Quantity, Size: it.Size, Color: it.Color})
	}
	return ev
}

type Publisher interface {
	PublishOrderConfirmed(ctx context.Context, ev OrderConfirmed) error
}

type AMQPPublisher struct {
	pool      *ChannelPool
	queueName string
	logger    *zap.SugaredLogger
}

func NewAMQPPublisher(pool *ChannelPool, queueName string, logger *zap.SugaredLogger) *AMQPPublisher {
	return &AMQPPublisher{pool: pool, queueName: queueName, logger: logger}
}

func (p *AMQPPublisher) PublishOrderConfirmed(ctx context.Context, ev OrderConfirmed) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ch, err := p.pool.Get()
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         ev.Type,
		MessageId:    ev.OrderNumber,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}

	p.logger.Infow("event published", "type", ev.Type, "order_number", ev.OrderNumber)
	return nil
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderConfirmed(context.Context, OrderConfirmed) error { return nil }
