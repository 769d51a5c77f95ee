// Package event carries click events over NATS JetStream: the server
// publishes one event per successful redirect, and the analytics worker
// consumes them into durable click records.
//
// Events for a short code always publish to the subject clicks.<shortCode>,
// so their order within the stream matches publish order per code. Short
// codes are nanoid tokens (letters, digits, '-', '_') and are therefore
// always valid subject tokens.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shortlyhq/shortly/internal/models"
)

const (
	subjectPrefix  = "clicks."
	streamSubjects = "clicks.>"

	publishTimeout = 2 * time.Second
)

// connState tracks the publisher's connection explicitly instead of relying
// on errors caught ad hoc at each publish site.
type connState int

const (
	stateUninitialized connState = iota
	stateConnected
	stateUnavailable
)

// Publisher emits click events on a best-effort basis. Publishing never
// blocks the caller beyond a short bounded timeout and never returns an
// error: click analytics is telemetry, and the redirect path must succeed
// regardless of event log health.
type Publisher struct {
	url    string
	stream string
	logger *slog.Logger

	mu    sync.Mutex
	state connState
	nc    *nats.Conn
	js    nats.JetStreamContext
}

// NewPublisher prepares a publisher without connecting. The first publish
// attempts the connection; if the broker is unreachable then, the publisher
// stays a silent no-op for the rest of the process lifetime.
func NewPublisher(url, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		url:    url,
		stream: stream,
		logger: logger,
		state:  stateUninitialized,
	}
}

// Publish sends the event to the log. Fire-and-forget: connection and publish
// failures are logged and swallowed.
func (p *Publisher) Publish(ctx context.Context, ev models.ClickEvent) {
	js, ok := p.ensure()
	if !ok {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("failed to encode click event",
			slog.String("short_code", ev.ShortCode), slog.Any("err", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := js.Publish(Subject(ev.ShortCode), data, nats.Context(ctx)); err != nil {
		p.logger.Warn("failed to publish click event",
			slog.String("short_code", ev.ShortCode), slog.Any("err", err))
	}
}

// Close drains the underlying connection if one was ever established.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil {
		p.nc.Close()
	}
}

// ensure lazily establishes the connection on first use. A failed attempt
// moves the publisher to unavailable permanently; every later publish is a
// no-op without touching the network again.
func (p *Publisher) ensure() (nats.JetStreamContext, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateConnected:
		return p.js, true
	case stateUnavailable:
		return nil, false
	}

	nc, js, err := connect(p.url, p.stream)
	if err != nil {
		p.state = stateUnavailable
		p.logger.Warn("event log unavailable, click events will be dropped", slog.Any("err", err))
		return nil, false
	}

	p.state = stateConnected
	p.nc = nc
	p.js = js
	p.logger.Info("connected to event log", slog.String("stream", p.stream))

	return p.js, true
}

// Subject returns the per-code subject an event is routed to.
func Subject(shortCode string) string {
	return subjectPrefix + shortCode
}

// connect dials NATS and makes sure the click stream exists with file
// storage, creating it on first run.
func connect(url, stream string) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url,
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("event.connect: failed to connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("event.connect: failed to create jetstream context: %w", err)
	}

	_, err = js.StreamInfo(stream)
	if err == nats.ErrStreamNotFound {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     stream,
			Subjects: []string{streamSubjects},
			Storage:  nats.FileStorage,
		})
	}
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("event.connect: failed to ensure stream: %w", err)
	}

	return nc, js, nil
}
