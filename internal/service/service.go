package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/shortlyhq/shortly/internal/database"
	"github.com/shortlyhq/shortly/internal/models"
)

// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a short code is exceeded.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

// URLRepository defines the interface for working with URLs at the business logic layer.
type URLRepository interface {
	// Create inserts a new shortened URL into the repository.
	Create(ctx context.Context, shortCode, originalURL string, expiresAt *time.Time) (*models.URL, error)

	// GetByShortCode retrieves a URL by its short code.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// Delete removes a URL by its short code.
	Delete(ctx context.Context, shortCode string) error
}

// URLCache is the cache-aside store consulted before the repository on every
// resolution. Implementations degrade to misses/no-ops on store failure.
type URLCache interface {
	GetURL(ctx context.Context, shortCode string) (string, bool)
	SetURL(ctx context.Context, shortCode, destination string)
	Delete(ctx context.Context, shortCode string)
}

// ClickTracker updates the live aggregates. RecordClick must not fail the
// caller; TotalClicks feeds the stats endpoint.
type ClickTracker interface {
	RecordClick(ctx context.Context, shortCode string, at time.Time)
	TotalClicks(ctx context.Context, shortCode string) (int64, error)
}

// ClickPublisher emits click events onto the durable log, best effort.
type ClickPublisher interface {
	Publish(ctx context.Context, ev models.ClickEvent)
}

// URLService implements shortening, resolution and deactivation on top of
// the durable record store, with the cache, aggregates and event log hanging
// off the resolution path.
type URLService struct {
	repo            URLRepository
	cache           URLCache
	tracker         ClickTracker
	publisher       ClickPublisher
	shortCodeLength int

	now func() time.Time
}

func NewURLService(repo URLRepository, cache URLCache, tracker ClickTracker, publisher ClickPublisher, shortCodeLength int) *URLService {
	return &URLService{
		repo:            repo,
		cache:           cache,
		tracker:         tracker,
		publisher:       publisher,
		shortCodeLength: shortCodeLength,
		now:             time.Now,
	}
}

// ShortenURL generates a short code for the provided original URL and stores it in the repository.
// It attempts to generate a unique short code up to a maximum number of retries.
func (s *URLService) ShortenURL(ctx context.Context, originalURL string, expiresAt *time.Time) (*models.URL, error) {
	const op = "service.URLService.ShortenURL"
	const maxRetries = 5

	for i := 0; i < maxRetries; i++ {
		shortCode, err := gonanoid.New(s.shortCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err := s.repo.Create(ctx, shortCode, originalURL, expiresAt)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// Resolve returns the destination for a short code and accounts for the
// click.
//
// The cache is consulted first; on a hit the repository is not touched at
// all. On a miss the record is loaded, expiry is enforced (an expired record
// is deleted from both stores and surfaced as database.ErrURLExpired, so the
// next call sees ErrURLNotFound), and a valid record populates the cache.
//
// Every successful resolution — hit or miss — bumps the live aggregates and
// then emits one click event, in that order. Both are best effort and cannot
// fail the redirect. A not-found or expired short code creates no cache or
// aggregate state.
func (s *URLService) Resolve(ctx context.Context, shortCode string, visit models.Visit) (string, error) {
	const op = "service.URLService.Resolve"

	if dest, ok := s.cache.GetURL(ctx, shortCode); ok {
		s.trackClick(ctx, shortCode, visit)
		return dest, nil
	}

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if url.Expired(s.now()) {
		if err := s.repo.Delete(ctx, shortCode); err != nil && !errors.Is(err, database.ErrURLNotFound) {
			return "", fmt.Errorf("%s: failed to delete expired url: %w", op, err)
		}
		s.cache.Delete(ctx, shortCode)

		return "", fmt.Errorf("%s: %w", op, database.ErrURLExpired)
	}

	s.cache.SetURL(ctx, shortCode, url.OriginalURL)
	s.trackClick(ctx, shortCode, visit)

	return url.OriginalURL, nil
}

// DeactivateURL removes the URL from the repository and drops its cache
// entry so the short code stops resolving immediately, not after cache TTL.
func (s *URLService) DeactivateURL(ctx context.Context, shortCode string) error {
	const op = "service.URLService.DeactivateURL"

	if err := s.repo.Delete(ctx, shortCode); err != nil {
		return fmt.Errorf("%s: failed to deactivate url: %w", op, err)
	}

	s.cache.Delete(ctx, shortCode)

	return nil
}

// URLStats combines the durable record with the live click total.
func (s *URLService) URLStats(ctx context.Context, shortCode string) (*models.URLStats, error) {
	const op = "service.URLService.URLStats"

	url, err := s.repo.GetByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	total, err := s.tracker.TotalClicks(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get click total: %w", op, err)
	}

	return &models.URLStats{URL: *url, TotalClicks: total}, nil
}

// trackClick performs the two per-click side effects in their required
// order: the synchronous aggregate update, then the event emission.
func (s *URLService) trackClick(ctx context.Context, shortCode string, visit models.Visit) {
	now := s.now()

	s.tracker.RecordClick(ctx, shortCode, now)
	s.publisher.Publish(ctx, models.ClickEvent{
		ShortCode: shortCode,
		IP:        visit.IP,
		UserAgent: visit.UserAgent,
		Referrer:  visit.Referrer,
		Timestamp: now.UTC(),
	})
}
