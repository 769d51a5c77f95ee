package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shortlyhq/shortly/internal/analytics"
	myhttp "github.com/shortlyhq/shortly/internal/api/http"
	"github.com/shortlyhq/shortly/internal/cache"
	"github.com/shortlyhq/shortly/internal/config"
	dbpostgres "github.com/shortlyhq/shortly/internal/database/postgres"
	"github.com/shortlyhq/shortly/internal/event"
	"github.com/shortlyhq/shortly/internal/ratelimit"
	"github.com/shortlyhq/shortly/internal/service"
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

	logger := httplog.NewLogger("shortly", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})
	slogger := logger.Logger

	g, ctx := errgroup.WithContext(ctx)

	db, err := postgres.New(ctx, cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return db.Close()
	})

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	g.Go(func() error {
		<-ctx.Done()
		return rdb.Close()
	})

	urlCache := cache.New(rdb, cfg.Redis.CacheTTL, slogger)

	// Redis being down is not fatal: the cache degrades to the database,
	// aggregation updates are dropped and the rate limiter fails open.
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if err := urlCache.Ping(pingCtx); err != nil {
		slogger.Warn("redis unreachable, serving degraded", "err", err)
	}
	pingCancel()

	tracker := analytics.New(rdb, slogger)
	limiter := ratelimit.New(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, slogger)

	publisher := event.NewPublisher(cfg.NATS.URL, cfg.NATS.Stream, slogger)
	g.Go(func() error {
		<-ctx.Done()
		publisher.Close()
		return nil
	})

	urlRepo := dbpostgres.NewURLRepository(db)
	urlSvc := service.NewURLService(urlRepo, urlCache, tracker, publisher, cfg.ShortCodeLength)

	r := myhttp.NewRouter(logger, urlSvc, tracker, ratelimit.Middleware(limiter))

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}
