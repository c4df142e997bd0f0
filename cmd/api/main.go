package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"

	"storefront/internal/auth"
	"storefront/internal/checkout"
	"storefront/internal/db"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/storage"
	"storefront/internal/events"
	"storefront/internal/mailer"
	"storefront/internal/notifications"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/ratelimiter"
	"storefront/internal/session"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

//	@title			Storefront API
//	@description	Cart, coupons, address book and checkout for the storefront.

//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	if err := godotenv.Load(); err != nil && os.Getenv("ENV") == "production" {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg := loadConfig()

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Database
	pool, err := db.New(db.Config{
		Addr:        cfg.db.addr,
		MaxConns:    int32(cfg.db.maxConns),
		MinConns:    int32(cfg.db.minConns),
		MaxIdleTime: cfg.db.maxIdleTime,
	})
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	logger.Info("database connection pool established")

	store := storage.NewContainer(pool, orders.NewOrderNumberGenerator(cfg.orders.numberPrefix, cfg.orders.numberSecret))

	calc, err := pricing.NewCalculator(cfg.checkout.taxRate)
	if err != nil {
		logger.Fatalw("invalid tax rate", "rate", cfg.checkout.taxRate, "error", err)
	}

	// Payments
	dispatcher := payments.NewDispatcher(store.Payments, logger)

	card := payments.NewCardStrategy(payments.NewStripeClient(cfg.stripe.secretKey, cfg.stripe.baseURL), logger)
	if cfg.stripe.secretKey != "" {
		dispatcher.Register(payments.MethodCard, card)
	}

	paypal := payments.NewPayPalStrategy(
		payments.NewPayPalClient(cfg.paypal.clientID, cfg.paypal.secret, cfg.paypal.baseURL, cfg.paypal.returnURL, cfg.paypal.cancelURL),
		cfg.paypal.loadTimeout,
		logger,
	)
	if cfg.paypal.clientID != "" {
		dispatcher.Register(payments.MethodPayPal, paypal)
	}

	cod, err := payments.NewCashOnDelivery(cfg.cod.salt)
	if err != nil {
		logger.Fatal(err)
	}
	dispatcher.Register(payments.MethodCOD, cod)

	// Mail
	var mail mailer.Client
	if cfg.mail.smtp.host != "" {
		smtp, err := mailer.NewSMTPClient(cfg.mail.smtp.host, cfg.mail.smtp.port, cfg.mail.smtp.username, cfg.mail.smtp.password, cfg.mail.fromEmail)
		if err != nil {
			logger.Fatal(err)
		}
		mail = smtp
	}

	// Events
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.rabbitmq.url != "" {
		channels, err := events.NewChannelPool(cfg.rabbitmq.url, cfg.rabbitmq.queue, cfg.rabbitmq.poolSize, logger)
		if err != nil {
			logger.Fatal(err)
		}
		defer channels.Close()
		publisher = events.NewAMQPPublisher(channels, cfg.rabbitmq.queue, logger)
	}

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	jwtAuthenticator := auth.NewJWTAuthenticator(auth.Config{
		Secret:        cfg.auth.token.secret,
		RefreshSecret: cfg.auth.token.refreshSecret,
		Issuer:        cfg.auth.token.iss,
		Audience:      cfg.auth.token.aud,
		AccessTTL:     cfg.auth.token.accessTokenExp,
		RefreshTTL:    cfg.auth.token.refreshTokenExp,
	})

	sessions := session.NewManager(session.Deps{
		Carts:      store.Carts,
		Coupons:    store.Coupons,
		Addresses:  store.Addresses,
		Orders:     store.OrderBackend(),
		Payments:   dispatcher,
		Reconciler: dispatcher,
		Calculator: calc,
		Checkout: checkout.Config{
			RedirectDelay: cfg.checkout.redirectDelay,
			RedirectTo:    cfg.checkout.redirectTo,
			Currency:      cfg.checkout.currency,
		},
	}, cfg.checkout.sessionTTL, logger)

	app := &application{
		config:        cfg,
		logger:        logger,
		store:         store,
		mailer:        mail,
		push:          notifications.NewExpoAdapter(cfg.expo.accessToken),
		events:        publisher,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		sessions:      sessions,
		payments:      dispatcher,
		card:          card,
		paypal:        paypal,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	app.startBackground(ctx)

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("database", expvar.Func(func() any {
		return pool.Stat().TotalConns()
	}))
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("sessions", expvar.Func(func() any {
		return sessions.Len()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
