package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shortlyhq/shortly/internal/models"
)

const (
	ackWait       = 30 * time.Second
	insertTimeout = 5 * time.Second
)

// ClickStore persists one durable record per consumed click event.
type ClickStore interface {
	Insert(ctx context.Context, ev *models.ClickEvent) error
}

// Consumer is the long-running ingestor: it reads click events from the
// stream's committed consumer position and writes durable click records.
//
// Delivery is at-least-once: a crash after insert but before ack redelivers
// the event and produces a duplicate record. That is accepted — the clicks
// table is append-only raw telemetry, and the user-facing counts come from
// the live aggregates, not from this table.
type Consumer struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	stream  string
	durable string
	store   ClickStore
	logger  *slog.Logger
}

// NewConsumer connects to the event log. Unlike the publisher, the worker
// has no purpose without the log, so a connection failure is fatal here.
func NewConsumer(url, stream, durable string, store ClickStore, logger *slog.Logger) (*Consumer, error) {
	const op = "event.NewConsumer"

	nc, js, err := connect(url, stream)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Consumer{
		nc:      nc,
		js:      js,
		stream:  stream,
		durable: durable,
		store:   store,
		logger:  logger,
	}, nil
}

// Run subscribes and blocks until the context is cancelled. The durable
// consumer resumes from its committed position; a brand-new durable starts
// at new messages rather than replaying the stream from the beginning.
// Members of the same queue group split subjects between them, each seeing
// one subject's events in order.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "event.Consumer.Run"

	sub, err := c.js.QueueSubscribe(streamSubjects, c.durable, c.handle,
		nats.Durable(c.durable),
		nats.ManualAck(),
		nats.AckWait(ackWait),
		nats.DeliverNew(),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to subscribe: %w", op, err)
	}

	c.logger.Info("consuming click events",
		slog.String("stream", c.stream), slog.String("durable", c.durable))

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		c.logger.Warn("failed to drain subscription", slog.Any("err", err))
	}
	c.nc.Close()

	return nil
}

// handle processes one delivery. Every outcome acks: a malformed event can
// never become processable, and a failed insert is dropped rather than
// redelivered forever (no local retry buffer, per the at-least-once model).
func (c *Consumer) handle(msg *nats.Msg) {
	if err := c.process(context.Background(), msg.Data); err != nil {
		c.logger.Error("failed to process click event",
			slog.String("subject", msg.Subject), slog.Any("err", err))
	}

	if err := msg.Ack(); err != nil {
		c.logger.Warn("failed to ack click event",
			slog.String("subject", msg.Subject), slog.Any("err", err))
	}
}

func (c *Consumer) process(ctx context.Context, data []byte) error {
	const op = "event.Consumer.process"

	var ev models.ClickEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%s: malformed event: %w", op, err)
	}
	if ev.ShortCode == "" {
		return fmt.Errorf("%s: malformed event: missing short code", op)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	if err := c.store.Insert(ctx, &ev); err != nil {
		return fmt.Errorf("%s: failed to persist click record: %w", op, err)
	}

	return nil
}
