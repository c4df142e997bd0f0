package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/9ssi7/exponent"
)

var ErrNoPushTokens = errors.New("no push tokens")

type OrderEvent string

const (
	OrderConfirmed OrderEvent = "CONFIRMED"
	OrderShipped   OrderEvent = "SHIPPED"
	OrderCancelled OrderEvent = "CANCELLED"
)

// TokenSource looks up the Expo tokens registered for users.
type TokenSource interface {
	GetTokensByUserIDs(ctx context.Context, userIDs []int64) (map[int64][]string, error)
}

func SendOrderNotification(ctx context.Context, push PushSender, tokens TokenSource, userID int64, event OrderEvent, orderNumber string) error {
	tokensMap, err := tokens.GetTokensByUserIDs(ctx, []int64{userID})
	if err != nil {
		return err
	}
	userTokens := tokensMap[userID]
	if len(userTokens) == 0 {
		return ErrNoPushTokens
	}

	title, body := orderMessage(event, orderNumber)

	msgs := make([]*exponent.Message, 0, len(userTokens))
	for _, t := range userTokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			// the app routes on screen when the notification is tapped
			Data: map[string]string{
				"type":        "order",
				"event":       string(event),
				"orderNumber": orderNumber,
				"screen":      "orders/" + orderNumber,
			},
		})
	}

	_, err = push.Publish(ctx, msgs)
	return err
}

func orderMessage(event OrderEvent, orderNumber string) (string, string) {
	switch event {
	case OrderConfirmed:
		return "Order Confirmed", fmt.Sprintf("Your order %s has been placed.", orderNumber)
	case OrderShipped:
		return "Order Shipped", fmt.Sprintf("Your order %s is on its way.", orderNumber)
	case OrderCancelled:
		return "Order Cancelled", fmt.Sprintf("Your order %s has been cancelled.", orderNumber)
	}
	return "Order Update", fmt.Sprintf("Your order %s has an update.", orderNumber)
}
