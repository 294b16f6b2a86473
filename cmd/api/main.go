package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/cart"
	"github.com/ariefcatur/go-shop-payments/internal/checkout"
	"github.com/ariefcatur/go-shop-payments/internal/config"
	"github.com/ariefcatur/go-shop-payments/internal/fulfillment"
	"github.com/ariefcatur/go-shop-payments/internal/gateway"
	"github.com/ariefcatur/go-shop-payments/internal/httpx"
	"github.com/ariefcatur/go-shop-payments/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/logger"
	"github.com/ariefcatur/go-shop-payments/internal/notify"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/postgres"
	"github.com/ariefcatur/go-shop-payments/internal/redisx"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		fatal(log, "db migrate", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, 16)
	if err != nil {
		fatal(log, "db connect", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for confirmation mails
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderConfirmation, 1024, log)
	prod.Start(ctx)

	if cfg.Stripe.WebhookSecret == "" || cfg.JWTSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET or JWT_SECRET is empty, every webhook or authenticated call will be rejected")
	}
	gw := gateway.NewStripe(cfg.Stripe)

	carts := &cart.Repo{DB: db}
	repo := &orders.Repo{DB: db}
	orch := &fulfillment.Orchestrator{
		Verifier:  gw,
		Customers: &fulfillment.CustomerResolver{Gateway: gw},
		Carts:     carts,
		Orders:    repo,
		Inventory: &inventory.Adjuster{DB: db},
		Notifier:  &notify.Dispatcher{Gateway: gw, Queue: prod, Service: cfg.ServiceName},
		Progress:  &fulfillment.Store{DB: db},
		Guard:     &fulfillment.Guard{Redis: rdb, TTL: cfg.LockTTL},
		LeadTime:  cfg.DeliveryLeadTime,
		Log:       log,
	}

	router := httpx.NewRouter(log)
	ph := &httpx.PaymentHandler{
		Checkout: &checkout.Creator{Carts: carts, Gateway: gw},
		Webhooks: orch,
		Payments: repo,
		Auth:     httpx.Auth([]byte(cfg.JWTSecret)),
		Log:      log,
	}
	ph.Register(router)

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// graceful shutdown
	go func() {
		log.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "listen", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox, flush and close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}
