package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/shortlyhq/shortly/internal/models"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// ShortenURL creates a shortened version of the provided original URL,
	// optionally expiring at the given time.
	ShortenURL(ctx context.Context, originalURL string, expiresAt *time.Time) (*models.URL, error)

	// Resolve returns the destination for a short code and records the click.
	// It returns database.ErrURLNotFound or database.ErrURLExpired as terminal outcomes.
	Resolve(ctx context.Context, shortCode string, visit models.Visit) (string, error)

	// DeactivateURL disables the URL, making it no longer functional.
	DeactivateURL(ctx context.Context, shortCode string) error

	// URLStats retrieves the durable record plus the live click total.
	URLStats(ctx context.Context, shortCode string) (*models.URLStats, error)
}

// AnalyticsService exposes the live aggregation queries behind the dashboard endpoints.
type AnalyticsService interface {
	// TopURLs returns up to n short codes by descending click count.
	TopURLs(ctx context.Context, n int64) ([]models.TrendingURL, error)

	// DailySeries returns a dense per-day click series for one short code.
	DailySeries(ctx context.Context, shortCode string, days int) ([]models.DailyClicks, error)

	// AggregateDailySeries returns the per-day click series summed over all short codes.
	AggregateDailySeries(ctx context.Context, days int) ([]models.DailyClicks, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
// The rate limiting middleware is optional; passing nil disables it.
func NewRouter(logger *httplog.Logger, urlSvc URLService, analyticsSvc AnalyticsService, rateLimit func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	if rateLimit != nil {
		r.Use(rateLimit)
	}

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleShortenURL(urlSvc, validate))

			r.Route("/{shortCode}", func(r chi.Router) {
				r.Delete("/", handleDeactivateURL(urlSvc))
				r.Get("/stats", handleGetURLStats(urlSvc))
				r.Get("/daily", handleGetURLDailyClicks(analyticsSvc))
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/trending", handleGetTrendingURLs(analyticsSvc))
			r.Get("/daily", handleGetDailyClicks(analyticsSvc))
		})
	})

	// Redirect route, last so API paths take precedence.
	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
