package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-shop-payments/internal/kafka"
	"github.com/ariefcatur/go-shop-payments/internal/orders"
	"github.com/ariefcatur/go-shop-payments/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Worker consumes queued confirmations and mails them. An offset is committed
// only after the mail went out, so SMTP failures are retried by redelivery.
type Worker struct {
	Mailer      Sender
	Redis       *redis.Client
	ServiceName string
	Log         *slog.Logger
}

// HandleConfirmation is installed as the consumer handler.
func (w *Worker) HandleConfirmation(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		w.Log.ErrorContext(ctx, "drop undecodable message", "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventOrderConfirmed {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, w.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, w.Redis, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderConfirmedPayload](env.Payload)
	if err != nil {
		w.Log.ErrorContext(ctx, "drop confirmation with bad payload", "event_id", env.EventID, "err", err)
		return nil
	}
	if p.To == "" {
		w.Log.WarnContext(ctx, "confirmation without recipient", "order_id", p.OrderID)
		return nil
	}

	if err := w.Mailer.Send(ctx, p.To, p.Subject, p.Body); err != nil {
		w.Log.ErrorContext(ctx, "send confirmation failed", "order_id", p.OrderID, "session_id", p.SessionID, "err", err)
		return err
	}
	_ = w.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	w.Log.InfoContext(ctx, "confirmation sent", "order_id", p.OrderID)
	return nil
}
