package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/pkg/response"
)

const (
	defaultTrendingLimit = 10
	maxTrendingLimit     = 100

	defaultSeriesDays = 7
	maxSeriesDays     = 90
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// shortenRequest represents the request payload for creating a shortened URL.
type shortenRequest struct {
	URL       string     `json:"url" validate:"required,url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// urlResponse represents the response payload for a shortened URL operation.
type urlResponse struct {
	ID        int64      `json:"id"`
	ShortCode string     `json:"short_code"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// urlStatsResponse extends urlResponse with the live click total.
type urlStatsResponse struct {
	urlResponse
	TotalClicks int64 `json:"total_clicks"`
}

// toURLResponse converts a URL model from the business layer into a response payload.
func toURLResponse(url *models.URL) urlResponse {
	return urlResponse{
		ID:        url.ID,
		ShortCode: url.ShortCode,
		URL:       url.OriginalURL,
		CreatedAt: url.CreatedAt,
		ExpiresAt: url.ExpiresAt,
	}
}

// visitFrom extracts the click attributes recorded for a redirect.
func visitFrom(r *http.Request) models.Visit {
	return models.Visit{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}
}

// handleShortenURL handles POST requests to shorten a URL.
//
// The request must contain a valid URL and may carry an expiry time, which
// must lie in the future. The handler validates the input, calls the URL
// shortening service, and returns the generated short code with relevant metadata.
func handleShortenURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Response{
				Status:  response.StatusError,
				Error:   "Validation Error",
				Message: "The expiration date must be in the future.",
			})
			return
		}

		url, err := svc.ShortenURL(r.Context(), req.URL, req.ExpiresAt)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

// handleRedirect handles GET requests on short links.
//
// A resolvable short code answers with a 302 to the destination. 302 rather
// than 301: browsers cache permanent redirects and would bypass the server —
// and click tracking — on repeat visits. A missing code yields 404 and an
// expired one 410.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		dest, err := svc.Resolve(r.Context(), shortCode, visitFrom(r))
		if err != nil {
			switch {
			case errors.Is(err, database.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, database.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, dest, http.StatusFound)
	}
}

// handleDeactivateURL handles DELETE requests to deactivate the URL.
//
// Once deactivated, the URL will no longer be functional. The handler returns a success message
// if deactivation is successful or an error if the short code doesn't exist.
func handleDeactivateURL(svc URLService) http.HandlerFunc {
	const op = "api.http.handleDeactivateURL"
	const successMsg = "The URL was successfully deactivated."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		err := svc.DeactivateURL(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

// handleGetURLStats handles GET requests to retrieve usage statistics for a shortened URL.
//
// The handler combines the durable record with the live click total, returning the data
// or a 404 error if the URL doesn't exist.
func handleGetURLStats(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		stats, err := svc.URLStats(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, urlStatsResponse{
			urlResponse: toURLResponse(&stats.URL),
			TotalClicks: stats.TotalClicks,
		}))
	}
}

// handleGetTrendingURLs handles GET requests for the global click ranking.
func handleGetTrendingURLs(svc AnalyticsService) http.HandlerFunc {
	const op = "api.http.handleGetTrendingURLs"
	const successMsg = "The trending URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", defaultTrendingLimit, maxTrendingLimit)

		top, err := svc.TopURLs(r.Context(), int64(limit))
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, top))
	}
}

// handleGetDailyClicks handles GET requests for the per-day click totals
// summed across all short codes.
func handleGetDailyClicks(svc AnalyticsService) http.HandlerFunc {
	const op = "api.http.handleGetDailyClicks"
	const successMsg = "The daily click totals retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		days := queryInt(r, "days", defaultSeriesDays, maxSeriesDays)

		series, err := svc.AggregateDailySeries(r.Context(), days)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, series))
	}
}

// handleGetURLDailyClicks handles GET requests for one short code's per-day
// click series. A short code that was never clicked yields an all-zero series.
func handleGetURLDailyClicks(svc AnalyticsService) http.HandlerFunc {
	const op = "api.http.handleGetURLDailyClicks"
	const successMsg = "The daily click series retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")
		days := queryInt(r, "days", defaultSeriesDays, maxSeriesDays)

		series, err := svc.DailySeries(r.Context(), shortCode, days)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, series))
	}
}

// queryInt parses a positive integer query parameter, falling back to def
// and clamping to max.
func queryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return def
	}
	if val > max {
		return max
	}

	return val
}
