package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/events"
	"storefront/internal/mailer"
	"storefront/internal/notifications"
)

// startBackground runs the session sweeper and the rate limiter reset loop
// until ctx is cancelled.
func (app *application) startBackground(ctx context.Context) {
	app.background(func() { app.sessions.Run(ctx) })

	if app.config.rateLimiter.Enabled {
		app.background(func() { app.rateLimiter.Run(ctx) })
	}
}

// background runs fn on its own goroutine and keeps a panic from taking the
// server down. run waits for these on shutdown.
func (app *application) background(fn func()) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.Errorw("background task panicked", "error", fmt.Sprintf("%v", err))
			}
		}()

		fn()
	}()
}

// afterOrderPlaced sends the confirmation mail and push, and publishes the
// order event. None of these can fail the order.
func (app *application) afterOrderPlaced(identity checkout.Identity, order checkout.Confirmation) {
	app.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		email := identity.Email
		if email == "" {
			email = order.ShippingAddress.Email
		}
		name := identity.Name
		if name == "" {
			name = order.ShippingAddress.Name
		}

		if app.mailer != nil && email != "" {
			data := struct {
				Name  string
				Order checkout.Confirmation
			}{Name: name, Order: order}

			status, err := app.mailer.Send(mailer.OrderConfirmationTemplate, name, email, data)
			if err != nil {
				app.logger.Errorw("error sending order confirmation", "order_number", order.OrderNumber, "error", err.Error())
			} else {
				app.logger.Infow("order confirmation sent", "order_number", order.OrderNumber, "status", status)
			}
		}

		if identity.Authenticated() {
			err := notifications.SendOrderNotification(ctx, app.push, app.store.PushTokens, identity.UserID, notifications.OrderConfirmed, order.OrderNumber)
			if err != nil && !errors.Is(err, notifications.ErrNoPushTokens) {
				app.logger.Warnw("order push failed", "order_number", order.OrderNumber, "error", err)
			}
		}
	})
}

// publishOrderConfirmed emits order.confirmed for downstream fulfilment.
func (app *application) publishOrderConfirmed(ev events.OrderConfirmed) {
	app.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.events.PublishOrderConfirmed(ctx, ev); err != nil {
			app.logger.Errorw("publish order event failed", "order_number", ev.OrderNumber, "error", err)
		}
	})
}
