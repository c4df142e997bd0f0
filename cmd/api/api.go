package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/docs" // registers the generated swagger spec
	"storefront/internal/auth"
	"storefront/internal/domain/storage"
	"storefront/internal/events"
	"storefront/internal/mailer"
	"storefront/internal/notifications"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"
	"storefront/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	push          notifications.PushSender
	events        events.Publisher
	authenticator auth.Authenticator
	rateLimiter   *ratelimiter.FixedWindowRateLimiter
	sessions      *session.Manager
	payments      *payments.Dispatcher
	card          *payments.CardStrategy
	paypal        *payments.PayPalStrategy
	wg            sync.WaitGroup
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	frontendURL string
	mail        mailConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
	checkout    checkoutConfig
	stripe      stripeConfig
	paypal      paypalConfig
	cod         codConfig
	expo        expoConfig
	rabbitmq    rabbitmqConfig
	orders      orderConfig
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	refreshSecret   string
	secret          string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
	aud             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	fromEmail string
	smtp      smtpConfig
}

type smtpConfig struct {
	host     string
	port     int
	username string
	password string
}

type dbConfig struct {
	addr        string
	maxConns    int
	minConns    int
	maxIdleTime string
}

type checkoutConfig struct {
	taxRate       string
	redirectDelay time.Duration
	redirectTo    string
	sessionTTL    time.Duration
	currency      string
}

type stripeConfig struct {
	secretKey string
	baseURL   string
}

type paypalConfig struct {
	clientID    string
	secret      string
	baseURL     string
	returnURL   string
	cancelURL   string
	loadTimeout time.Duration
}

type codConfig struct {
	salt string
}

type expoConfig struct {
	accessToken string
}

type rabbitmqConfig struct {
	url      string
	queue    string
	poolSize int
}

type orderConfig struct {
	numberPrefix string
	numberSecret string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", guestTokenHeader},
		ExposedHeaders:   []string{"Link", guestTokenHeader},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// handlers see ctx.Done() once a request runs past this
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(app.RateLimiterMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/admin/payments", func(r chi.Router) {
			r.Use(app.BasicAuthMiddleware())
			r.Get("/reconciliation", app.listReconciliationHandler)
			r.Get("/{provider}/{ref}", app.getPaymentHandler)
		})

		// Public routes
		r.Route("/authentication", func(r chi.Router) {
			r.Post("/user", app.registerUserHandler)
			r.Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
			r.With(app.AuthTokenMiddleware).Post("/logout", app.logoutHandler)
		})

		r.Route("/users/push-tokens", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/", app.savePushTokenHandler)
			r.Delete("/", app.removePushTokenHandler)
		})

		r.Route("/store", func(r chi.Router) {
			r.Use(app.IdentifyMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", app.getCartHandler)
				r.Delete("/", app.clearCartHandler)
				r.Post("/items", app.addCartItemHandler)
				r.Patch("/items/{itemID}", app.updateCartItemHandler)
				r.Delete("/items/{itemID}", app.removeCartItemHandler)
				r.Put("/shipping", app.setCartShippingHandler)
				r.Post("/coupon", app.applyCouponHandler)
				r.Delete("/coupon", app.removeCouponHandler)
			})
			r.Get("/coupons", app.listCouponsHandler)
			r.Get("/shipping-options", app.listShippingOptionsHandler)

			r.Route("/addresses", func(r chi.Router) {
				r.Use(app.RequireUserMiddleware)
				r.Get("/", app.listAddressesHandler)
				r.Post("/", app.createAddressHandler)
				r.Put("/{addressID}", app.updateAddressHandler)
				r.Delete("/{addressID}", app.deleteAddressHandler)
				r.Put("/{addressID}/default", app.setDefaultAddressHandler)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", app.startCheckoutHandler)
				r.Get("/", app.getCheckoutHandler)
				r.Put("/shipping", app.updateCheckoutShippingHandler)
				r.Post("/shipping/complete", app.completeShippingHandler)
				r.Post("/back", app.checkoutBackHandler)
				r.Put("/options", app.updateCheckoutOptionsHandler)
				r.Post("/payments/card/intent", app.createCardIntentHandler)
				r.Post("/payments/paypal/order", app.createPayPalOrderHandler)
				r.Post("/payments/paypal/fallback", app.paypalFallbackHandler)
				r.Post("/orders", app.placeOrderHandler)
				r.Get("/confirmation", app.confirmationHandler)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Use(app.RequireUserMiddleware)
				r.Get("/", app.listOrdersHandler)
				r.Get("/{orderNumber}", app.getOrderHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		err := srv.Shutdown(ctx)
		app.logger.Infow("waiting for background tasks")
		app.wg.Wait()
		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
