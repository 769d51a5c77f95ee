package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
	"github.com/shortlyhq/shortly/pkg/response"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) ShortenURL(ctx context.Context, originalURL string, expiresAt *time.Time) (*models.URL, error) {
	args := s.Called(ctx, originalURL, expiresAt)
	url, _ := args.Get(0).(*models.URL)
	return url, args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, shortCode string, visit models.Visit) (string, error) {
	args := s.Called(ctx, shortCode, visit)
	return args.String(0), args.Error(1)
}

func (s *MockURLService) DeactivateURL(ctx context.Context, shortCode string) error {
	args := s.Called(ctx, shortCode)
	return args.Error(0)
}

func (s *MockURLService) URLStats(ctx context.Context, shortCode string) (*models.URLStats, error) {
	args := s.Called(ctx, shortCode)
	stats, _ := args.Get(0).(*models.URLStats)
	return stats, args.Error(1)
}

type MockAnalyticsService struct {
	mock.Mock
}

func (s *MockAnalyticsService) TopURLs(ctx context.Context, n int64) ([]models.TrendingURL, error) {
	args := s.Called(ctx, n)
	top, _ := args.Get(0).([]models.TrendingURL)
	return top, args.Error(1)
}

func (s *MockAnalyticsService) DailySeries(ctx context.Context, shortCode string, days int) ([]models.DailyClicks, error) {
	args := s.Called(ctx, shortCode, days)
	series, _ := args.Get(0).([]models.DailyClicks)
	return series, args.Error(1)
}

func (s *MockAnalyticsService) AggregateDailySeries(ctx context.Context, days int) ([]models.DailyClicks, error) {
	args := s.Called(ctx, days)
	series, _ := args.Get(0).([]models.DailyClicks)
	return series, args.Error(1)
}

type HandlersTestSuite struct {
	suite.Suite
	logger           *httplog.Logger
	urlSvcMock       *MockURLService
	analyticsSvcMock *MockAnalyticsService
	server           *httptest.Server
	e                *httpexpect.Expect
}

func (suite *HandlersTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *HandlersTestSuite) SetupSubTest() {
	suite.urlSvcMock = new(MockURLService)
	suite.analyticsSvcMock = new(MockAnalyticsService)
	router := NewRouter(suite.logger, suite.urlSvcMock, suite.analyticsSvcMock, nil)
	suite.server = httptest.NewServer(router)
	suite.e = httpexpect.Default(suite.T(), suite.server.URL)
}

func (suite *HandlersTestSuite) TearDownSubTest() {
	suite.urlSvcMock.AssertExpectations(suite.T())
	suite.analyticsSvcMock.AssertExpectations(suite.T())
	suite.server.Close()
}

func (suite *HandlersTestSuite) TestPing() {
	const path = "/api/v1/ping"

	suite.Run("success", func() {
		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			Text().Contains("pong")
	})
}

func (suite *HandlersTestSuite) TestShortenURL() {
	const path = "/api/v1/shorten"

	suite.Run("empty request body", func() {
		suite.e.POST(path).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Empty Request Body")
	})

	suite.Run("invalid url", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{"url": "not a url"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Validation Error")
	})

	suite.Run("expiry in the past", func() {
		suite.e.POST(path).
			WithJSON(map[string]string{
				"url":        "https://example.com",
				"expires_at": time.Now().Add(-time.Hour).Format(time.RFC3339),
			}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "Validation Error")
	})

	suite.Run("server error", func() {
		suite.urlSvcMock.On("ShortenURL", mock.Anything, "https://example.com", (*time.Time)(nil)).
			Return(nil, assert.AnError)

		suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.On("ShortenURL", mock.Anything, "https://example.com", (*time.Time)(nil)).
			Return(&models.URL{ID: 1, ShortCode: "abc123", OriginalURL: "https://example.com"}, nil)

		resp := suite.e.POST(path).
			WithJSON(map[string]string{"url": "https://example.com"}).
			Expect().
			Status(http.StatusCreated).
			JSON().Object().
			HasValue("status", response.StatusSuccess)

		resp.Value("data").Object().
			HasValue("short_code", "abc123").
			HasValue("url", "https://example.com")
	})
}

func (suite *HandlersTestSuite) TestRedirect() {
	suite.Run("not found", func() {
		suite.urlSvcMock.On("Resolve", mock.Anything, "missing", mock.Anything).
			Return("", database.ErrURLNotFound)

		suite.e.GET("/missing").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("expired", func() {
		suite.urlSvcMock.On("Resolve", mock.Anything, "old42", mock.Anything).
			Return("", database.ErrURLExpired)

		suite.e.GET("/old42").
			Expect().
			Status(http.StatusGone).
			JSON().Object().
			HasValue("status", response.StatusError).
			HasValue("error", "URL Expired")
	})

	suite.Run("server error", func() {
		suite.urlSvcMock.On("Resolve", mock.Anything, "abc123", mock.Anything).
			Return("", assert.AnError)

		suite.e.GET("/abc123").
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.On("Resolve", mock.Anything, "abc123", mock.Anything).
			Return("https://example.com", nil)

		suite.e.GET("/abc123").
			WithRedirectPolicy(httpexpect.DontFollowRedirects).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com")
	})
}

func (suite *HandlersTestSuite) TestDeactivateURL() {
	const path = "/api/v1/shorten/{shortCode}"

	suite.Run("url not found", func() {
		suite.urlSvcMock.On("DeactivateURL", mock.Anything, "missing").
			Return(database.ErrURLNotFound)

		suite.e.DELETE(path, "missing").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.On("DeactivateURL", mock.Anything, "abc123").
			Return(nil)

		suite.e.DELETE(path, "abc123").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess)
	})
}

func (suite *HandlersTestSuite) TestGetURLStats() {
	const path = "/api/v1/shorten/{shortCode}/stats"

	suite.Run("url not found", func() {
		suite.urlSvcMock.On("URLStats", mock.Anything, "missing").
			Return(nil, database.ErrURLNotFound)

		suite.e.GET(path, "missing").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("success", func() {
		suite.urlSvcMock.On("URLStats", mock.Anything, "abc123").
			Return(&models.URLStats{
				URL:         models.URL{ID: 1, ShortCode: "abc123", OriginalURL: "https://example.com"},
				TotalClicks: 42,
			}, nil)

		resp := suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess)

		resp.Value("data").Object().
			HasValue("short_code", "abc123").
			HasValue("total_clicks", 42)
	})
}

func (suite *HandlersTestSuite) TestGetTrendingURLs() {
	const path = "/api/v1/analytics/trending"

	suite.Run("server error", func() {
		suite.analyticsSvcMock.On("TopURLs", mock.Anything, int64(10)).
			Return(nil, assert.AnError)

		suite.e.GET(path).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("status", response.StatusError)
	})

	suite.Run("limit is clamped", func() {
		suite.analyticsSvcMock.On("TopURLs", mock.Anything, int64(100)).
			Return([]models.TrendingURL{}, nil)

		suite.e.GET(path).
			WithQuery("limit", 10000).
			Expect().
			Status(http.StatusOK)
	})

	suite.Run("success", func() {
		suite.analyticsSvcMock.On("TopURLs", mock.Anything, int64(2)).
			Return([]models.TrendingURL{
				{ShortCode: "abc123", Clicks: 42},
				{ShortCode: "xyz789", Clicks: 17},
			}, nil)

		resp := suite.e.GET(path).
			WithQuery("limit", 2).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess)

		data := resp.Value("data").Array()
		data.Length().IsEqual(2)
		data.Value(0).Object().HasValue("short_code", "abc123").HasValue("clicks", 42)
	})
}

func (suite *HandlersTestSuite) TestGetDailyClicks() {
	const path = "/api/v1/analytics/daily"

	suite.Run("default window", func() {
		suite.analyticsSvcMock.On("AggregateDailySeries", mock.Anything, 7).
			Return([]models.DailyClicks{}, nil)

		suite.e.GET(path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess)
	})

	suite.Run("success", func() {
		suite.analyticsSvcMock.On("AggregateDailySeries", mock.Anything, 2).
			Return([]models.DailyClicks{
				{Date: "2024-05-13", Clicks: 3},
				{Date: "2024-05-14", Clicks: 5},
			}, nil)

		resp := suite.e.GET(path).
			WithQuery("days", 2).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		data := resp.Value("data").Array()
		data.Length().IsEqual(2)
		data.Value(1).Object().HasValue("date", "2024-05-14").HasValue("clicks", 5)
	})
}

func (suite *HandlersTestSuite) TestGetURLDailyClicks() {
	const path = "/api/v1/shorten/{shortCode}/daily"

	suite.Run("success", func() {
		suite.analyticsSvcMock.On("DailySeries", mock.Anything, "abc123", 7).
			Return([]models.DailyClicks{
				{Date: "2024-05-14", Clicks: 1},
			}, nil)

		suite.e.GET(path, "abc123").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("status", response.StatusSuccess)
	})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
