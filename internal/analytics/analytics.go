// Package analytics maintains the live click aggregates in Redis.
//
// Three structures are kept per the key scheme below: a per-code total
// counter, a per-code daily histogram and a single global ranking sorted set
// whose score is the total click count. All mutation goes through single
// store-native atomic commands (INCR, HINCRBY, ZINCRBY), never a read
// followed by a write, so concurrent clicks on the same short code cannot
// lose updates.
//
// These aggregates are updated synchronously on the serving path and are
// fully independent of the durable click log: the ranking and daily counts
// reflect the just-served click even when the event pipeline is down.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shortlyhq/shortly/internal/models"
)

const (
	totalKeyPrefix = "url:clicks:"
	dailyKeyPrefix = "url:daily:"
	trendingKey    = "trending:urls"

	dateLayout = "2006-01-02"
)

// Tracker is the aggregation engine over a shared Redis instance.
type Tracker struct {
	rdb    *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

func New(rdb *redis.Client, logger *slog.Logger) *Tracker {
	return &Tracker{
		rdb:    rdb,
		logger: logger,
		now:    time.Now,
	}
}

func totalKey(shortCode string) string {
	return totalKeyPrefix + shortCode
}

func dailyKey(shortCode string) string {
	return dailyKeyPrefix + shortCode
}

// Day formats the instant as the UTC calendar date used as histogram field.
func Day(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// RecordClick bumps all three aggregates for the short code by one. The
// three increments ride a single pipeline round trip; each command is
// individually atomic at the store.
//
// Failures are logged and swallowed: aggregation must never degrade the
// redirect path.
func (t *Tracker) RecordClick(ctx context.Context, shortCode string, at time.Time) {
	day := Day(at)

	_, err := t.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, totalKey(shortCode))
		p.HIncrBy(ctx, dailyKey(shortCode), day, 1)
		p.ZIncrBy(ctx, trendingKey, 1, shortCode)
		return nil
	})
	if err != nil {
		t.logger.Warn("failed to record click aggregates",
			slog.String("short_code", shortCode), slog.Any("err", err))
	}
}

// TotalClicks returns the live total for the short code, zero if it has
// never been clicked.
func (t *Tracker) TotalClicks(ctx context.Context, shortCode string) (int64, error) {
	const op = "analytics.Tracker.TotalClicks"

	val, err := t.rdb.Get(ctx, totalKey(shortCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: malformed counter value %q: %w", op, val, err)
	}

	return count, nil
}

// TopURLs returns up to n short codes ordered by descending click count.
// Equal scores fall back to Redis's lexicographic member ordering, which a
// descending range reverses: among ties, the lexicographically greater short
// code comes first.
func (t *Tracker) TopURLs(ctx context.Context, n int64) ([]models.TrendingURL, error) {
	const op = "analytics.Tracker.TopURLs"

	if n <= 0 {
		return nil, nil
	}

	members, err := t.rdb.ZRevRangeWithScores(ctx, trendingKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	top := make([]models.TrendingURL, 0, len(members))
	for _, m := range members {
		shortCode, ok := m.Member.(string)
		if !ok {
			continue
		}
		top = append(top, models.TrendingURL{
			ShortCode: shortCode,
			Clicks:    int64(m.Score),
		})
	}

	return top, nil
}

// DailySeries returns a dense series of exactly `days` consecutive dates
// ending today (UTC), each with the short code's click count for that date.
// Dates without clicks appear with a zero count, so the result can be
// plotted directly.
func (t *Tracker) DailySeries(ctx context.Context, shortCode string, days int) ([]models.DailyClicks, error) {
	const op = "analytics.Tracker.DailySeries"

	if days <= 0 {
		return nil, nil
	}

	histogram, err := t.rdb.HGetAll(ctx, dailyKey(shortCode)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return densify(histogram, lastDays(t.now(), days)), nil
}

// AggregateDailySeries sums the daily series of every short code that has
// ever been clicked, using the ranking set as the registry of known codes.
// Cost is O(identifiers x days), which is fine for a single shared Redis but
// is the first thing to shard when the link population grows.
func (t *Tracker) AggregateDailySeries(ctx context.Context, days int) ([]models.DailyClicks, error) {
	const op = "analytics.Tracker.AggregateDailySeries"

	if days <= 0 {
		return nil, nil
	}

	shortCodes, err := t.rdb.ZRange(ctx, trendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dates := lastDays(t.now(), days)
	totals := make(map[string]int64, days)

	for _, shortCode := range shortCodes {
		histogram, err := t.rdb.HGetAll(ctx, dailyKey(shortCode)).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, entry := range densify(histogram, dates) {
			totals[entry.Date] += entry.Clicks
		}
	}

	series := make([]models.DailyClicks, 0, days)
	for _, date := range dates {
		series = append(series, models.DailyClicks{Date: date, Clicks: totals[date]})
	}

	return series, nil
}

// lastDays returns `days` consecutive UTC dates in ascending order, the last
// one being the date of `now`.
func lastDays(now time.Time, days int) []string {
	today := now.UTC()

	dates := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		dates = append(dates, today.AddDate(0, 0, -i).Format(dateLayout))
	}

	return dates
}

// densify maps the sparse histogram onto the requested dates, filling gaps
// with zero. Unparseable histogram values count as zero rather than failing
// the whole series.
func densify(histogram map[string]string, dates []string) []models.DailyClicks {
	series := make([]models.DailyClicks, 0, len(dates))
	for _, date := range dates {
		var clicks int64
		if raw, ok := histogram[date]; ok {
			clicks, _ = strconv.ParseInt(raw, 10, 64)
		}
		series = append(series, models.DailyClicks{Date: date, Clicks: clicks})
	}

	return series
}
