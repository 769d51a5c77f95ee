// The analytics worker is the standalone click event ingestor. It consumes
// the durable event log and appends one click record per event. It may lag
// or be offline without affecting redirects or the live aggregates.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/shortlyhq/shortly/internal/config"
	dbpostgres "github.com/shortlyhq/shortly/internal/database/postgres"
	"github.com/shortlyhq/shortly/internal/event"
	"github.com/shortlyhq/shortly/pkg/postgres"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("service", "analytics-worker"),
	)

	g, ctx := errgroup.WithContext(ctx)

	db, err := postgres.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return db.Close()
	})

	clickRepo := dbpostgres.NewClickRepository(db)

	consumer, err := event.NewConsumer(cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.Consumer, clickRepo, logger)
	if err != nil {
		return err
	}

	g.Go(func() error {
		return consumer.Run(ctx)
	})

	return g.Wait()
}
