package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/config"
	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/logger"
	"github.com/ariefcatur/go-shop-payments/internal/notify"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.ServiceName+"-mailer", cfg.LogLevel)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// SMTP
	mailer, err := notify.NewMailer(cfg.Mail)
	if err != nil {
		log.Error("smtp", "err", err)
		os.Exit(1)
	}

	w := &notify.Worker{
		Mailer:      mailer,
		Redis:       rdb,
		ServiceName: cfg.MailerGroup,
		Log:         log,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.MailerGroup, orders.TopicOrderConfirmation, cfg.MailerWorkers, log)

	go func() {
		log.Info("mailer consumer started", "group", cfg.MailerGroup, "topic", orders.TopicOrderConfirmation, "workers", cfg.MailerWorkers)
		if err := cons.Start(ctx, w.HandleConfirmation); err != nil {
			log.Error("consumer exit", "err", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
