package models

import "time"

// URL represents a shortened URL and its associated metadata.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
	// ExpiresAt is the optional timestamp after which the shortened URL stops
	// resolving. A nil value means the URL never expires.
	ExpiresAt *time.Time
}

// Expired reports whether the URL's expiry time has passed at the given instant.
func (u *URL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}

// URLStats combines the durable URL record with its live click total.
type URLStats struct {
	URL
	// TotalClicks is the live click counter maintained by the aggregation store.
	TotalClicks int64
}
