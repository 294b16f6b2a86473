package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r           messageReader
	workers     int
	log         *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, maxAttempts: 8, backoff: 500 * time.Millisecond}
}

// Start pins every partition to one worker. A commit for offset N marks all
// earlier offsets of the partition as done, so messages of a partition are
// handled and committed strictly in order, and a worker stops at the first
// message it could not finish.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			c.work(ctx, h, in)
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) work(ctx context.Context, h Handler, in <-chan kafka.Message) {
	for m := range in {
		// Stopping leaves the rest uncommitted; they are fetched again after restart.
		if ctx.Err() != nil || !c.process(ctx, h, m) {
			return
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			c.log.Error("commit failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
		}
	}
}

// process retries h with doubling backoff. It reports whether the offset may
// be committed: true on success or once attempts are exhausted, false when
// ctx ended first so the message is fetched again after restart.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if attempt >= c.maxAttempts {
			c.log.Error("giving up on message",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "attempts", attempt, "err", err)
			return true
		}
		c.log.Warn("handler failed, retrying", "topic", m.Topic, "offset", m.Offset, "attempt", attempt, "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
		wait *= 2
	}
}
